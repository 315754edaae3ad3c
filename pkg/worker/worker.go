// Package worker implements the AI-core side of the Sprite One
// concurrency substrate (spec.md §5): a single goroutine that drains
// the command queue and executes graphics, sprite, inference and
// training commands against worker-owned state, publishing results on
// the response ring. Grounded on the teacher's USOCK.readLoop
// (pkg/usock/usock.go) select/default polling loop, generalized from
// "read a byte from serial" to "pop a command from the queue."
package worker

import (
	"encoding/binary"
	"log"
	"sync"
	"time"

	"github.com/sprite-one/coprocessor/pkg/graphics"
	"github.com/sprite-one/coprocessor/pkg/identity"
	"github.com/sprite-one/coprocessor/pkg/industrial"
	"github.com/sprite-one/coprocessor/pkg/model"
	"github.com/sprite-one/coprocessor/pkg/protocol"
	"github.com/sprite-one/coprocessor/pkg/queue"
	"github.com/sprite-one/coprocessor/pkg/sprite"
	"github.com/sprite-one/coprocessor/pkg/store"
	"github.com/sprite-one/coprocessor/pkg/telemetry"
	"github.com/sprite-one/coprocessor/pkg/wire"
)

// State is the worker-owned "single structure instead of file-scope
// statics" named in spec.md §9 DESIGN NOTES. Model, FrameBuffer,
// Sprites and Industrial are exclusively mutated by the worker
// goroutine; Store is shared read access for MODEL_LIST/MODEL_SELECT
// (the dispatcher also holds it, for the filesystem commands that run
// in-line).
type State struct {
	Model      *model.Model
	FB         *graphics.FrameBuffer
	Sprites    *sprite.Table
	Industrial *industrial.Buffer
	Identity   identity.ID
	Store      *store.Store
	Telemetry  *telemetry.Publisher
}

// defaultTrainLR is used by AI_TRAIN when the model has not already
// been prepared for training via FINETUNE_START; it is a reasonable
// default for the small Dense/Sigmoid networks spec.md's XOR example
// trains, not a tuned hyperparameter.
const defaultTrainLR = 0.5

// Worker pops commands pushed by the dispatcher and pushes back
// responses, one at a time, in order (spec.md §4.2/§5: ordering is
// preserved because the dispatcher never pushes a second command
// before consuming the first response).
type Worker struct {
	q     *queue.Queue
	state *State

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a Worker over q and state. Start must be called to
// begin processing.
func New(q *queue.Queue, state *State) *Worker {
	return &Worker{q: q, state: state, stopChan: make(chan struct{})}
}

// Start launches the worker's processing goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	if w.state.Telemetry != nil {
		_ = w.state.Telemetry.Publish(telemetry.EventWorkerStarted, "")
	}
}

// Stop signals the worker to exit and waits for it to do so.
func (w *Worker) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopChan:
			return
		default:
			entry, ok := w.q.PopCommand()
			if !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			status, data := w.handle(entry.Cmd, entry.Payload[:entry.Len])
			if !w.q.PushResponse(entry.Cmd, byte(status), data) {
				log.Printf("worker: response queue full, dropping response for cmd %#x", entry.Cmd)
			}
		}
	}
}

func (w *Worker) handle(cmd byte, payload []byte) (protocol.Status, []byte) {
	switch protocol.ClassOf(cmd) {
	case protocol.ClassGraphics:
		return w.handleGraphics(cmd, payload)
	case protocol.ClassSprite:
		return w.handleSprite(cmd, payload)
	case protocol.ClassAI:
		return w.handleAI(cmd, payload)
	case protocol.ClassModel:
		return w.handleModel(cmd, payload)
	default:
		return protocol.StatusError, nil
	}
}

func (w *Worker) handleGraphics(cmd byte, payload []byte) (protocol.Status, []byte) {
	fb := w.state.FB
	switch cmd {
	case protocol.CmdClear:
		if len(payload) < 1 {
			return protocol.StatusError, nil
		}
		fb.Clear(payload[0])
		return protocol.StatusOK, nil
	case protocol.CmdPixel:
		if len(payload) < 3 {
			return protocol.StatusError, nil
		}
		if err := fb.SetPixel(int(payload[0]), int(payload[1]), payload[2]); err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdRect:
		if len(payload) < 5 {
			return protocol.StatusError, nil
		}
		if err := fb.Rect(int(payload[0]), int(payload[1]), int(payload[2]), int(payload[3]), payload[4]); err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdText:
		if len(payload) < 3 {
			return protocol.StatusError, nil
		}
		if err := fb.Text(int(payload[0]), int(payload[1]), payload[2], payload[3:]); err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdFlush:
		fb.Flush()
		return protocol.StatusOK, nil
	default:
		return protocol.StatusError, nil
	}
}

func (w *Worker) handleSprite(cmd byte, payload []byte) (protocol.Status, []byte) {
	t := w.state.Sprites
	switch cmd {
	case protocol.CmdSpriteDefine:
		if len(payload) < 4 {
			return protocol.StatusError, nil
		}
		if err := t.Define(payload[0], int(payload[1]), int(payload[2]), payload[3]); err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdSpriteMove:
		if len(payload) < 3 {
			return protocol.StatusError, nil
		}
		if err := t.Move(payload[0], int(payload[1]), int(payload[2])); err != nil {
			return protocol.StatusNotFound, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdSpriteShow:
		if len(payload) < 1 {
			return protocol.StatusError, nil
		}
		if err := t.Show(payload[0]); err != nil {
			return protocol.StatusNotFound, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdSpriteHide:
		if len(payload) < 1 {
			return protocol.StatusError, nil
		}
		if err := t.Hide(payload[0]); err != nil {
			return protocol.StatusNotFound, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdSpriteDelete:
		if len(payload) < 1 {
			return protocol.StatusError, nil
		}
		if err := t.Delete(payload[0]); err != nil {
			return protocol.StatusNotFound, nil
		}
		return protocol.StatusOK, nil
	case protocol.CmdSpriteCollide:
		if len(payload) < 2 {
			return protocol.StatusError, nil
		}
		collide, err := t.Collide(payload[0], payload[1])
		if err != nil {
			return protocol.StatusNotFound, nil
		}
		flag := byte(0)
		if collide {
			flag = 1
		}
		return protocol.StatusOK, []byte{flag}
	case protocol.CmdSpriteCompose:
		t.Compose(w.state.FB)
		return protocol.StatusOK, nil
	default:
		return protocol.StatusError, nil
	}
}

func (w *Worker) handleAI(cmd byte, payload []byte) (protocol.Status, []byte) {
	m := w.state.Model
	switch cmd {
	case protocol.CmdAIInfer:
		out, err := m.Infer(wire.DecodeF32s(payload))
		if err != nil {
			return protocol.StatusOf(err), nil
		}
		return protocol.StatusOK, wire.EncodeF32s(out)

	case protocol.CmdAITrain:
		if m.State() == model.StateLoaded {
			if err := m.PrepareTraining(defaultTrainLR); err != nil {
				return protocol.StatusOf(err), nil
			}
		}
		inDim, outDim := m.InputDim(), m.OutputDim()
		if len(payload) != (inDim+outDim)*4 {
			return protocol.StatusError, nil
		}
		all := wire.DecodeF32s(payload)
		loss, err := m.TrainStep(all[:inDim], all[inDim:])
		if err != nil {
			return protocol.StatusOf(err), nil
		}
		if w.state.Telemetry != nil {
			_ = w.state.Telemetry.Publish(telemetry.EventTrainStep, "")
		}
		return protocol.StatusOK, wire.EncodeF32s([]float32{loss})

	case protocol.CmdAIStatus:
		return protocol.StatusOK, encodeAIStatus(m)

	default:
		return protocol.StatusError, nil
	}
}

// encodeAIStatus builds the 12-byte AI_STATUS response named in
// spec.md §6: state, model_type, epochs(u16), last_loss(f32),
// input_dim(u16), output_dim(u16).
func encodeAIStatus(m *model.Model) []byte {
	b := make([]byte, 12)
	b[0] = byte(m.State())
	b[1] = byte(m.Kind())
	binary.LittleEndian.PutUint16(b[2:4], uint16(m.Epoch()))
	binary.LittleEndian.PutUint32(b[4:8], binary.LittleEndian.Uint32(wire.EncodeF32(m.LastLoss())))
	binary.LittleEndian.PutUint16(b[8:10], uint16(m.InputDim()))
	binary.LittleEndian.PutUint16(b[10:12], uint16(m.OutputDim()))
	return b
}

func (w *Worker) handleModel(cmd byte, payload []byte) (protocol.Status, []byte) {
	m := w.state.Model
	switch cmd {
	case protocol.CmdModelInfo:
		if m.State() == model.StateEmpty {
			return protocol.StatusNotFound, nil
		}
		return protocol.StatusOK, model.EncodeHeader(m.Header())

	case protocol.CmdModelList:
		names, err := w.state.Store.List()
		if err != nil {
			return protocol.StatusError, nil
		}
		return protocol.StatusOK, wire.EncodeFilenames(names)

	case protocol.CmdModelSelect:
		filename := string(payload)
		data, err := w.state.Store.Read(filename)
		if err != nil {
			return protocol.StatusNotFound, nil
		}
		if err := m.Load(filename, data); err != nil {
			return protocol.StatusOf(err), nil
		}
		if w.state.Telemetry != nil {
			_ = w.state.Telemetry.Publish(telemetry.EventModelLoaded, filename)
		}
		return protocol.StatusOK, nil

	case protocol.CmdFinetuneStart:
		if len(payload) < 4 {
			return protocol.StatusError, nil
		}
		lr := wire.DecodeF32(payload)
		if err := m.PrepareTraining(lr); err != nil {
			return protocol.StatusOf(err), nil
		}
		return protocol.StatusOK, nil

	case protocol.CmdFinetuneData:
		inDim, outDim := m.InputDim(), m.OutputDim()
		if len(payload) != (inDim+outDim)*4 {
			return protocol.StatusError, nil
		}
		all := wire.DecodeF32s(payload)
		loss, err := m.TrainStep(all[:inDim], all[inDim:])
		if err != nil {
			return protocol.StatusOf(err), nil
		}
		return protocol.StatusOK, wire.EncodeF32s([]float32{loss})

	case protocol.CmdFinetuneStop:
		m.StopTraining()
		return protocol.StatusOK, nil

	default:
		return protocol.StatusError, nil
	}
}
