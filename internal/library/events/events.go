// Package events is the seam between domain services and the dashboard feed.
package events

import "context"

// Actor who performed an action
type Actor struct {
	ID   string
	Name string
	Role string
}

// Feed receives notifications for the team and activity records.
// Implementations are best effort and never fail the caller.
type Feed interface {
	// Notify raise a dashboard notification
	Notify(ctx context.Context, kind, title, body, link string)
	// Record append to the activity log
	Record(ctx context.Context, actor Actor, action, target, targetID string)
}

// Nop discards everything
type Nop struct{}

// Notify implements Feed
func (Nop) Notify(context.Context, string, string, string, string) {}

// Record implements Feed
func (Nop) Record(context.Context, Actor, string, string, string) {}
