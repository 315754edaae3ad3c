package model

// Snapshot re-encodes the currently loaded model's header, layer
// descriptors and (possibly trained) weights back into a complete
// .aif32 V3 byte stream, for AI_SAVE. It is the device-side mirror of
// EncodeFile, which only host tooling used before.
func (m *Model) Snapshot() ([]byte, error) {
	if m.state == StateEmpty {
		return nil, &ModelError{Op: "snapshot", Err: ErrNoModelLoaded}
	}
	descs := make([]LayerDescriptorInput, len(m.layers))
	for i, l := range m.layers {
		descs[i] = LayerDescriptorInput{Kind: l.Desc.Kind, Flags: l.Desc.Flags, Params: l.Desc.Params}
	}
	return EncodeFile(m.header.NameString(), descs, m.Weights), nil
}
