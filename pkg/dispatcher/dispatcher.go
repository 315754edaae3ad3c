// Package dispatcher implements the I/O-core side of Sprite One (C5,
// spec.md §4.5): it decodes wire frames, classifies each command, and
// either executes it in-line (system, upload, filesystem, batch,
// industrial) or enqueues it to the worker and waits for the matching
// response. Grounded on the teacher's pkg/service.Service, generalized
// from a fixed BLE/Redis wiring to a protocol state machine with its
// own immediate-command handlers.
package dispatcher

import (
	"encoding/binary"
	"errors"
	"io"
	"log"
	"time"

	"github.com/sprite-one/coprocessor/pkg/identity"
	"github.com/sprite-one/coprocessor/pkg/industrial"
	"github.com/sprite-one/coprocessor/pkg/model"
	"github.com/sprite-one/coprocessor/pkg/protocol"
	"github.com/sprite-one/coprocessor/pkg/queue"
	"github.com/sprite-one/coprocessor/pkg/store"
	"github.com/sprite-one/coprocessor/pkg/telemetry"
	"github.com/sprite-one/coprocessor/pkg/transport"
	"github.com/sprite-one/coprocessor/pkg/wire"
)

// Firmware version reported by VERSION (0x0F).
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// maxBatchDepth bounds BATCH recursion per spec.md §4.5: "Depth is
// bounded by a small constant (2) to prevent stack explosion."
const maxBatchDepth = 2

// defaultResponseTimeout bounds how long the dispatcher waits for the
// worker's response to a deferred command. Not named in spec.md — a
// defensive addition so a wedged worker degrades to an error response
// instead of hanging the I/O core forever.
const defaultResponseTimeout = 5 * time.Second

// scratchSize is the decoder's payload buffer; must be large enough
// for the maximum frame payload (255 bytes).
const scratchSize = 256

type fsPhase int

const (
	fsIdle fsPhase = iota
	fsSaving
	fsLoading
)

// Dispatcher is the command dispatcher. Model and Industrial are
// shared with the worker's State; direct access here is limited to
// RESET, BUFFER_STATUS's arena query, the filesystem-boundary
// operations spec.md §4.5 keeps on the I/O core (AI_SAVE's snapshot,
// AI_LOAD's completion) and the
// industrial primitives, which spec.md classifies as immediate despite
// the buffer otherwise being "worker-only" (spec.md §5) — resolved in
// DESIGN.md as an explicit exception for near-zero-latency ops.
type Dispatcher struct {
	stream transport.Stream
	sink   *protocol.WriterSink
	dec    *protocol.Decoder

	q          *queue.Queue
	store      *store.Store
	model      *model.Model
	industrial *industrial.Buffer
	identity   identity.ID
	telemetry  *telemetry.Publisher

	responseTimeout time.Duration

	isUploading   bool
	uploadSession *store.UploadSession

	fsState      fsPhase
	saveTask     *store.SaveTask
	loadTask     *store.LoadTask
	loadFilename string
}

// New builds a Dispatcher. m and ind must be the same pointers the
// worker's State holds.
func New(stream transport.Stream, q *queue.Queue, st *store.Store, m *model.Model, ind *industrial.Buffer, id identity.ID, tel *telemetry.Publisher) (*Dispatcher, error) {
	dec, err := protocol.NewDecoder(make([]byte, scratchSize), false)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		stream:          stream,
		sink:            &protocol.WriterSink{W: stream},
		dec:             dec,
		q:               q,
		store:           st,
		model:           m,
		industrial:      ind,
		identity:        id,
		telemetry:       tel,
		responseTimeout: defaultResponseTimeout,
	}, nil
}

// Run reads bytes from the transport until it is closed or returns an
// unrecoverable error, dispatching complete frames as they arrive.
// Per spec.md §5, the I/O core blocks only on the wire read and (via
// the queue) briefly on its mutex; background filesystem steps are
// advanced once per byte read, the closest this byte-oriented
// transport gets to "once per event-loop tick."
func (d *Dispatcher) Run() error {
	buf := make([]byte, 1)
	for {
		d.tickBackgroundFS()

		n, err := d.stream.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			continue
		}

		frame, ok, ferr := d.dec.Feed(buf[0])
		if ferr != nil {
			// Protocol errors reset the decoder and emit no response
			// (spec.md §7: "the host learns via timeout").
			log.Printf("dispatcher: %v", ferr)
			continue
		}
		if !ok {
			continue
		}
		d.dispatch(frame, 0)
	}
}

func (d *Dispatcher) dispatch(f protocol.Frame, depth int) {
	if f.Cmd == protocol.CmdBatch {
		d.dispatchBatch(f.Payload, depth)
		return
	}
	status, data := d.execute(f.Cmd, f.Payload)
	d.writeResponse(f.Cmd, status, data)
}

func (d *Dispatcher) execute(cmd byte, payload []byte) (protocol.Status, []byte) {
	switch protocol.ClassOf(cmd) {
	case protocol.ClassSystem:
		return d.handleSystem(cmd, payload)
	case protocol.ClassUploadAdjunct:
		return d.handleUploadAdjunct(cmd, payload)
	case protocol.ClassIndustrial:
		return d.handleIndustrial(cmd, payload)
	case protocol.ClassGraphics, protocol.ClassSprite:
		return d.deferToWorker(cmd, payload)
	case protocol.ClassAI:
		if protocol.AICommandDeferred(cmd) {
			return d.deferToWorker(cmd, payload)
		}
		return d.handleAIFilesystem(cmd, payload)
	case protocol.ClassModel:
		if protocol.ModelCommandDeferred(cmd) {
			return d.deferToWorker(cmd, payload)
		}
		return d.handleModelFilesystem(cmd, payload)
	default:
		return protocol.StatusError, nil
	}
}

func (d *Dispatcher) writeResponse(cmd byte, status protocol.Status, data []byte) {
	if err := protocol.EncodeResponse(d.sink, cmd, status, data); err != nil {
		log.Printf("dispatcher: write response for cmd %#x: %v", cmd, err)
	}
}

// deferToWorker enqueues cmd for the worker and blocks (polling the
// response ring) until its answer arrives. Per spec.md §5 "the
// dispatcher drains the response queue before reading the next wire
// byte," exactly one command is ever in flight across both cores at a
// time, so there is no cross-goroutine race on the shared model.
func (d *Dispatcher) deferToWorker(cmd byte, payload []byte) (protocol.Status, []byte) {
	if isTrainingCommand(cmd) && d.fsState != fsIdle {
		return protocol.StatusError, nil
	}
	if !d.q.PushCommand(cmd, payload) {
		return protocol.StatusError, nil
	}

	deadline := time.Now().Add(d.responseTimeout)
	for {
		entry, ok := d.q.PopResponse()
		if ok {
			data := append([]byte(nil), entry.Data[:entry.DataLen]...)
			return protocol.Status(entry.Status), data
		}
		if time.Now().After(deadline) {
			log.Printf("dispatcher: timed out waiting for worker response to cmd %#x", cmd)
			return protocol.StatusError, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func isTrainingCommand(cmd byte) bool {
	switch cmd {
	case protocol.CmdAITrain, protocol.CmdFinetuneStart, protocol.CmdFinetuneData:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) handleSystem(cmd byte, payload []byte) (protocol.Status, []byte) {
	switch cmd {
	case protocol.CmdNOP:
		return protocol.StatusOK, nil
	case protocol.CmdReset:
		d.model.Reset()
		d.industrial.Reset()
		return protocol.StatusOK, nil
	case protocol.CmdBufferStatus:
		free := make([]byte, 2)
		remaining := d.model.ArenaRemaining()
		if remaining > 0xFFFF {
			remaining = 0xFFFF // saturate: the wire field is a u16
		}
		binary.LittleEndian.PutUint16(free, uint16(remaining))
		return protocol.StatusOK, free
	case protocol.CmdVersion:
		return protocol.StatusOK, []byte{VersionMajor, VersionMinor, VersionPatch}
	default:
		return protocol.StatusError, nil
	}
}

func (d *Dispatcher) handleIndustrial(cmd byte, payload []byte) (protocol.Status, []byte) {
	switch cmd {
	case protocol.CmdDeviceID:
		id := d.identity
		return protocol.StatusOK, id[:]
	case protocol.CmdBufferReset:
		d.industrial.Reset()
		return protocol.StatusOK, nil
	case protocol.CmdBufferWrite:
		if len(payload) < 4 {
			return protocol.StatusError, nil
		}
		d.industrial.Write(wire.DecodeF32(payload))
		return protocol.StatusOK, nil
	case protocol.CmdBufferSnapshot:
		return protocol.StatusOK, wire.EncodeF32s(d.industrial.Snapshot())
	case protocol.CmdBaselineCapture:
		d.industrial.CaptureBaseline()
		return protocol.StatusOK, nil
	case protocol.CmdGetDelta:
		delta, err := d.industrial.Delta()
		if err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, wire.EncodeF32(delta)
	case protocol.CmdCorrelate:
		corr, err := d.industrial.Correlate(wire.DecodeF32s(payload))
		if err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, wire.EncodeF32(corr)
	default:
		return protocol.StatusError, nil
	}
}

func (d *Dispatcher) handleUploadAdjunct(cmd byte, payload []byte) (protocol.Status, []byte) {
	switch cmd {
	case protocol.CmdUploadChunk:
		if d.uploadSession == nil {
			return protocol.StatusError, nil
		}
		if err := d.uploadSession.WriteChunk(payload); err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdUploadEnd:
		if d.uploadSession == nil || len(payload) < 4 {
			return protocol.StatusError, nil
		}
		expected := binary.LittleEndian.Uint32(payload)
		err := d.uploadSession.Finish(expected)
		d.uploadSession = nil
		d.isUploading = false
		if err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil
	default:
		return protocol.StatusError, nil
	}
}

func (d *Dispatcher) handleModelFilesystem(cmd byte, payload []byte) (protocol.Status, []byte) {
	switch cmd {
	case protocol.CmdModelUpload:
		if d.isUploading {
			return protocol.StatusError, nil
		}
		sess, err := d.store.BeginUpload(string(payload))
		if err != nil {
			return protocol.StatusError, nil
		}
		d.uploadSession = sess
		d.isUploading = true
		return protocol.StatusOK, nil
	case protocol.CmdModelDelete:
		err := d.store.Delete(string(payload))
		if errors.Is(err, store.ErrNotFound) {
			return protocol.StatusNotFound, nil
		}
		if err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil
	default:
		return protocol.StatusError, nil
	}
}

func (d *Dispatcher) handleAIFilesystem(cmd byte, payload []byte) (protocol.Status, []byte) {
	switch cmd {
	case protocol.CmdAISave:
		if d.fsState != fsIdle || d.isUploading {
			return protocol.StatusError, nil
		}
		if d.model.State() == model.StateEmpty {
			return protocol.StatusNotFound, nil
		}
		snap, err := d.model.Snapshot()
		if err != nil {
			return protocol.StatusOf(err), nil
		}
		task, err := d.store.BeginSave(string(payload), snap)
		if err != nil {
			return protocol.StatusError, nil
		}
		d.saveTask = task
		d.fsState = fsSaving
		return protocol.StatusOK, nil

	case protocol.CmdAILoad:
		if d.fsState != fsIdle || d.isUploading {
			return protocol.StatusError, nil
		}
		filename := string(payload)
		task, err := d.store.BeginLoad(filename)
		if errors.Is(err, store.ErrNotFound) {
			return protocol.StatusNotFound, nil
		}
		if err != nil {
			return protocol.StatusError, nil
		}
		d.loadTask = task
		d.loadFilename = filename
		d.fsState = fsLoading
		return protocol.StatusOK, nil

	case protocol.CmdAIList:
		names, err := d.store.List()
		if err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, wire.EncodeFilenames(names)

	case protocol.CmdAIDelete:
		err := d.store.Delete(string(payload))
		if errors.Is(err, store.ErrNotFound) {
			return protocol.StatusNotFound, nil
		}
		if err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil

	default:
		return protocol.StatusError, nil
	}
}

// tickBackgroundFS advances an in-progress AI_SAVE/AI_LOAD by one
// bounded step (spec.md §4.5: "a background task polled each
// event-loop tick ... writing/reading in <= 256-byte steps"). Neither
// direction emits a completion response frame; the host observes
// completion by polling AI_STATUS or MODEL_INFO.
func (d *Dispatcher) tickBackgroundFS() {
	switch d.fsState {
	case fsSaving:
		done, err := d.saveTask.Tick()
		if err != nil {
			log.Printf("dispatcher: save tick: %v", err)
			d.fsState, d.saveTask = fsIdle, nil
			return
		}
		if done {
			d.fsState, d.saveTask = fsIdle, nil
		}

	case fsLoading:
		done, err := d.loadTask.Tick()
		if err != nil {
			log.Printf("dispatcher: load tick: %v", err)
			d.fsState, d.loadTask = fsIdle, nil
			return
		}
		if done {
			if err := d.model.Load(d.loadFilename, d.loadTask.Bytes()); err != nil {
				log.Printf("dispatcher: load %s into model: %v", d.loadFilename, err)
			} else if d.telemetry != nil {
				_ = d.telemetry.Publish(telemetry.EventModelLoaded, d.loadFilename)
			}
			d.fsState, d.loadTask = fsIdle, nil
		}
	}
}

// dispatchBatch iterates a BATCH payload's packed
// [sub_cmd, sub_len, sub_payload] tuples, re-entering dispatch for
// each so every sub-command emits its own response frame in source
// order (spec.md §4.5/§5). Depth is bounded by maxBatchDepth.
func (d *Dispatcher) dispatchBatch(payload []byte, depth int) {
	if depth >= maxBatchDepth {
		d.writeResponse(protocol.CmdBatch, protocol.StatusError, nil)
		return
	}
	i := 0
	for i+2 <= len(payload) {
		subCmd := payload[i]
		subLen := int(payload[i+1])
		i += 2
		if i+subLen > len(payload) {
			break
		}
		sub := payload[i : i+subLen]
		i += subLen
		d.dispatch(protocol.Frame{Cmd: subCmd, Payload: sub}, depth+1)
	}
}
