// Package transport abstracts the byte-oriented full-duplex stream
// the dispatcher reads frames from and writes responses to (spec.md
// §1 names "two byte-oriented full-duplex streams" as the only
// transport requirement). Sprite One itself speaks this over a serial
// link to the host; this package also provides an in-memory pipe so
// the dispatcher and its tests never need real hardware.
package transport

import "io"

// Stream is the minimal full-duplex byte stream the dispatcher needs.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}
