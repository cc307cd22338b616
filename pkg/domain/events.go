package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventLoaded    EventType = "loaded"
	EventReloaded  EventType = "reloaded"
	EventForgotten EventType = "forgotten"
	EventFailed    EventType = "failed"
)

// LoadEvent describes a change to the viewer's current graph or history.
type LoadEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	Source    string    `json:"source,omitempty"`
	Digest    string    `json:"digest,omitempty"`
	Nodes     int       `json:"nodes,omitempty"`
	Links     int       `json:"links,omitempty"`
	Dropped   int       `json:"dropped,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LifecycleHooks defines callbacks for viewer observability. They run
// synchronously on the goroutine that triggered the event.
type LifecycleHooks struct {
	OnLoad    func(context.Context, *LoadEvent)
	OnFailure func(context.Context, *LoadEvent)
	OnForget  func(context.Context, *LoadEvent)
}
