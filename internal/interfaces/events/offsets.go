package events

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type partitionKey struct {
	topic     string
	partition int
}

// partitionState offsets leídos en orden y los ya procesados que esperan a los anteriores.
type partitionState struct {
	pending []int64
	done    map[int64]kafka.Message
}

// offsetTracker calcula, por partición, hasta dónde se puede confirmar sin saltarse mensajes
// que otro worker todavía procesa.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[partitionKey]*partitionState
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: make(map[partitionKey]*partitionState)}
}

func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := partitionKey{msg.Topic, msg.Partition}
	st, ok := t.parts[k]
	if !ok {
		st = &partitionState{done: make(map[int64]kafka.Message)}
		t.parts[k] = st
	}
	st.pending = append(st.pending, msg.Offset)
}

// complete marca msg como procesado y devuelve el último mensaje contiguo confirmable, si lo hay.
func (t *offsetTracker) complete(msg kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.parts[partitionKey{msg.Topic, msg.Partition}]
	if !ok {
		return kafka.Message{}, false
	}
	st.done[msg.Offset] = msg

	var last kafka.Message
	advanced := false
	for len(st.pending) > 0 {
		m, ok := st.done[st.pending[0]]
		if !ok {
			break
		}
		delete(st.done, st.pending[0])
		st.pending = st.pending[1:]
		last, advanced = m, true
	}
	return last, advanced
}
