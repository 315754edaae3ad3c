package arena

import "unsafe"

// bytesToFloat32Slice reinterprets a byte slice backed by the arena as
// a []float32 without copying. raw's length must be a multiple of 4;
// callers (AllocFloat32s) guarantee this by construction.
func bytesToFloat32Slice(raw []byte) []float32 {
	if len(raw) == 0 {
		return nil
	}
	n := len(raw) / 4
	return unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), n)
}
