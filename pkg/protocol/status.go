package protocol

// ClassifiedError is implemented by error types that know their wire
// status (model's ModelError, InferenceError and TrainingError) so the
// dispatcher and worker can pick a response STATUS byte without a type
// switch per package.
type ClassifiedError interface {
	error
	ErrStatus() Status
}

// StatusOf extracts the wire STATUS byte for err, defaulting to
// StatusError (0x01) for anything that doesn't implement
// ClassifiedError — per spec.md §7, unrecognized errors still surface
// as STATUS=0x01, never silently dropped.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	if se, ok := err.(ClassifiedError); ok {
		return se.ErrStatus()
	}
	return StatusError
}
