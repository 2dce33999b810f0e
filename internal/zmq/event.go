// Package zmq subscribes to the node's hashtx/hashblock notifications.
package zmq

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"
)

type Kind int

const (
	HashTx Kind = iota
	HashBlock
)

func (k Kind) String() string {
	switch k {
	case HashTx:
		return "hashtx"
	case HashBlock:
		return "hashblock"
	default:
		return "unknown"
	}
}

// Event is one decoded notification. Hash is in display (RPC) byte order.
type Event struct {
	Kind     Kind
	Hash     string
	Seq      uint32
	HasSeq   bool
	Received time.Time
}

// DecodeFrames turns a multipart message into an Event. Messages with
// fewer than two frames or another topic are reported as not ok.
func DecodeFrames(frames [][]byte, now time.Time) (Event, bool) {
	if len(frames) < 2 {
		return Event{}, false
	}

	var kind Kind
	switch strings.TrimRight(string(frames[0]), "\x00") {
	case "hashtx":
		kind = HashTx
	case "hashblock":
		kind = HashBlock
	default:
		return Event{}, false
	}

	ev := Event{
		Kind:     kind,
		Hash:     reversedHex(frames[1]),
		Received: now,
	}
	if len(frames) >= 3 && len(frames[2]) == 4 {
		ev.Seq = binary.LittleEndian.Uint32(frames[2])
		ev.HasSeq = true
	}
	return ev, true
}

func reversedHex(b []byte) string {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return hex.EncodeToString(out)
}

// Ring keeps the most recent events up to a fixed capacity, dropping the
// oldest first.
type Ring struct {
	buf   []Event
	start int
	size  int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Event, capacity)}
}

func (r *Ring) Push(ev Event) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

func (r *Ring) Len() int { return r.size }
func (r *Ring) Cap() int { return len(r.buf) }

// At returns the i-th event, oldest first.
func (r *Ring) At(i int) (Event, bool) {
	if i < 0 || i >= r.size {
		return Event{}, false
	}
	return r.buf[(r.start+i)%len(r.buf)], true
}

// Newest returns events newest first.
func (r *Ring) Newest() []Event {
	out := make([]Event, 0, r.size)
	for i := r.size - 1; i >= 0; i-- {
		ev, _ := r.At(i)
		out = append(out, ev)
	}
	return out
}

// Counts returns how many buffered events are of each kind.
func (r *Ring) Counts() (tx, block int) {
	for i := 0; i < r.size; i++ {
		ev, _ := r.At(i)
		if ev.Kind == HashBlock {
			block++
		} else {
			tx++
		}
	}
	return tx, block
}
