package main

import (
	"fmt"
	"time"

	"github.com/sprite-one/coprocessor/pkg/protocol"
	"github.com/sprite-one/coprocessor/pkg/transport"
)

// client is a thin synchronous request/response wrapper over a
// transport.Stream, the host-side mirror of how the dispatcher itself
// talks the wire protocol. One command is ever in flight at a time,
// matching the firmware's own synchronous discipline.
type client struct {
	stream transport.Stream
	sink   *protocol.WriterSink
	dec    *protocol.Decoder
}

func newClient(stream transport.Stream) (*client, error) {
	dec, err := protocol.NewDecoder(make([]byte, 256), true)
	if err != nil {
		return nil, err
	}
	return &client{stream: stream, sink: &protocol.WriterSink{W: stream}, dec: dec}, nil
}

// do sends one request frame and blocks for its response.
func (c *client) do(cmd byte, payload []byte) (protocol.Frame, error) {
	if err := protocol.EncodeRequest(c.sink, cmd, payload); err != nil {
		return protocol.Frame{}, fmt.Errorf("send cmd %#x: %w", cmd, err)
	}

	buf := make([]byte, 1)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			return protocol.Frame{}, fmt.Errorf("timed out waiting for response to cmd %#x", cmd)
		}
		n, err := c.stream.Read(buf)
		if err != nil {
			return protocol.Frame{}, fmt.Errorf("read response to cmd %#x: %w", cmd, err)
		}
		if n == 0 {
			continue
		}
		frame, ok, ferr := c.dec.Feed(buf[0])
		if ferr != nil {
			return protocol.Frame{}, fmt.Errorf("decode response to cmd %#x: %w", cmd, ferr)
		}
		if ok {
			return frame, nil
		}
	}
}

// statusErr turns a non-OK response status into a Go error.
func statusErr(cmd byte, f protocol.Frame) error {
	if f.Status == protocol.StatusOK {
		return nil
	}
	return fmt.Errorf("cmd %#x: device returned status %#x", cmd, f.Status)
}
