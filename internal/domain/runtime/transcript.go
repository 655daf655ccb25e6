package runtime

import (
	"time"

	"github.com/google/uuid"
)

type ChatEntry struct {
	SenderID   uuid.UUID
	SenderName string
	Text       string
	Timestamp  time.Time
}

// Transcript - кольцевой буфер чата фиксированной емкости, при переполнении
// вытесняются самые старые записи.
type Transcript struct {
	entries []ChatEntry
	start   int
	size    int
}

func NewTranscript(capacity int) *Transcript {
	if capacity < 1 {
		capacity = 1
	}

	return &Transcript{entries: make([]ChatEntry, capacity)}
}

func (t *Transcript) Append(entry ChatEntry) {
	capacity := len(t.entries)

	if t.size < capacity {
		t.entries[(t.start+t.size)%capacity] = entry
		t.size++
		return
	}

	t.entries[t.start] = entry
	t.start = (t.start + 1) % capacity
}

// Entries возвращает копию записей от старых к новым
func (t *Transcript) Entries() []ChatEntry {
	out := make([]ChatEntry, 0, t.size)

	for i := 0; i < t.size; i++ {
		out = append(out, t.entries[(t.start+i)%len(t.entries)])
	}

	return out
}

func (t *Transcript) Len() int {
	return t.size
}

func (t *Transcript) Cap() int {
	return len(t.entries)
}
