// Package events delivers game events to subscribers after the originating
// transaction commits. Delivery is best effort and never fails the operation.
package events

import (
	"context"

	"github.com/mcoot/assassingame/internal/model"
)

// Publisher delivers events to whoever is listening
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, model.Event) {}

// Multi publishes to several publishers in order
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event model.Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}
