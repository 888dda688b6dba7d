package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/assassingame/internal/dependencies/clock"
)

// MockClock only moves when told to
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

var _ clock.Clock = (*MockClock)(nil)

// NewMockClock starts the clock at t
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d, e.g. past a game's end time
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
