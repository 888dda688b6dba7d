package mocks

import (
	"sync"

	"github.com/mcoot/assassingame/internal/dependencies/random"
)

// MockRandom replays queued values. An exhausted queue yields 0 or "".
// Safe for concurrent use.
type MockRandom struct {
	mu      sync.Mutex
	ints    []int
	strings []string
}

var _ random.Random = (*MockRandom)(nil)

func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn pops the next queued int. Values outside [0, n) wrap into range.
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if n > 0 {
		v = ((v % n) + n) % n
	}
	return v
}

// String pops the next queued string, ignoring length and alphabet
func (r *MockRandom) String(int, string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strings) == 0 {
		return ""
	}
	s := r.strings[0]
	r.strings = r.strings[1:]
	return s
}

// QueueIntn appends values for Intn
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints = append(r.ints, values...)
}

// QueueString appends game codes or codenames for String
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = append(r.strings, values...)
}

// QueueIdentityShuffle queues the draws that make a Fisher-Yates shuffle of
// n members leave them in join order, so a started ring is 1 -> 2 -> ... -> n -> 1.
func (r *MockRandom) QueueIdentityShuffle(n int) {
	for i := n - 1; i > 0; i-- {
		r.QueueIntn(i)
	}
}

// Pending reports how many queued ints are unconsumed
func (r *MockRandom) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ints)
}
