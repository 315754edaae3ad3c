// Package queue implements the single-producer/single-consumer command
// and response rings that connect the I/O core (dispatcher) to the AI
// core (worker), per spec.md §4.2.
//
// Grounded in the teacher's mutex-guarded shared-state shape
// (pkg/usock.USOCK embeds one sync.Mutex protecting all of its
// mutable fields); here one mutex protects both ring's head/tail
// indices, per the REDESIGN FLAGS note in spec.md §9: "a single small
// lock covering both head/tail pairs is simpler than per-ring locks
// and has no measured contention."
package queue

import "sync"

// MaxPayload is the largest payload a queue entry can carry. Commands
// with larger payloads (MODEL_UPLOAD and its chunks) never touch the
// queue — they execute synchronously on the I/O core.
const MaxPayload = 64

// CommandEntry is one request handed from the dispatcher to the worker.
type CommandEntry struct {
	Cmd     byte
	Len     byte
	Payload [MaxPayload]byte
}

// ResponseEntry is one result handed back from the worker to the
// dispatcher.
type ResponseEntry struct {
	Cmd     byte
	Status  byte
	DataLen byte
	Data    [MaxPayload]byte
}

// Queue is a fixed-capacity pair of SPSC rings: commands flow
// dispatcher -> worker, responses flow worker -> dispatcher. Capacity
// is shared between both rings for simplicity; spec.md does not
// mandate they be sized independently.
type Queue struct {
	mu sync.Mutex

	cmds      []CommandEntry
	cmdHead   int
	cmdTail   int
	cmdCount  int

	resps     []ResponseEntry
	respHead  int
	respTail  int
	respCount int
}

// New creates a Queue with the given per-ring capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		cmds:  make([]CommandEntry, capacity),
		resps: make([]ResponseEntry, capacity),
	}
}

// PushCommand enqueues a command for the worker. It returns false
// (without blocking) when the ring is full — per spec.md §4.2 "When
// the queue is full, the dispatcher returns Error to the host; no
// silent queuing."
func (q *Queue) PushCommand(cmd byte, payload []byte) bool {
	if len(payload) > MaxPayload {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cmdCount == len(q.cmds) {
		return false
	}
	e := &q.cmds[q.cmdTail]
	e.Cmd = cmd
	e.Len = byte(len(payload))
	copy(e.Payload[:], payload)
	q.cmdTail = (q.cmdTail + 1) % len(q.cmds)
	q.cmdCount++
	return true
}

// PopCommand dequeues the oldest command for the worker. ok is false
// when the ring is empty.
func (q *Queue) PopCommand() (entry CommandEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cmdCount == 0 {
		return CommandEntry{}, false
	}
	entry = q.cmds[q.cmdHead]
	q.cmdHead = (q.cmdHead + 1) % len(q.cmds)
	q.cmdCount--
	return entry, true
}

// PushResponse enqueues a response for the dispatcher. Mirrors
// PushCommand's full-queue semantics.
func (q *Queue) PushResponse(cmd, status byte, data []byte) bool {
	if len(data) > MaxPayload {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.respCount == len(q.resps) {
		return false
	}
	e := &q.resps[q.respTail]
	e.Cmd = cmd
	e.Status = status
	e.DataLen = byte(len(data))
	copy(e.Data[:], data)
	q.respTail = (q.respTail + 1) % len(q.resps)
	q.respCount++
	return true
}

// PopResponse dequeues the oldest response for the dispatcher.
func (q *Queue) PopResponse() (entry ResponseEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.respCount == 0 {
		return ResponseEntry{}, false
	}
	entry = q.resps[q.respHead]
	q.respHead = (q.respHead + 1) % len(q.resps)
	q.respCount--
	return entry, true
}

// CommandLen reports how many commands are currently queued, for
// diagnostics.
func (q *Queue) CommandLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cmdCount
}

// ResponseLen reports how many responses are currently queued.
func (q *Queue) ResponseLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.respCount
}

// Capacity returns the shared per-ring capacity.
func (q *Queue) Capacity() int {
	return len(q.cmds)
}
