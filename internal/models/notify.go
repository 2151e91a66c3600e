package models

import "time"

// NotificationKind tells consumers what changed.
type NotificationKind string

const (
	RecordAdded   NotificationKind = "record_added"
	RecordUpdated NotificationKind = "record_updated"
	StatusChanged NotificationKind = "status"
)

// Notification is the produced interface of the core: one per correlation
// or scan result, plus human-readable status strings.
type Notification struct {
	Kind   NotificationKind `json:"kind"`
	Record *TrafficRecord   `json:"record,omitempty"`
	Status string           `json:"status,omitempty"`
	Time   time.Time        `json:"time"`
}

// Sink receives notifications. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// MultiSink fans a notification out to every member in order.
type MultiSink []Sink

func (m MultiSink) Notify(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// Dispatcher marshals an action onto the presentation thread.
type Dispatcher interface {
	Dispatch(action func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(action func())

func (f DispatcherFunc) Dispatch(action func()) { f(action) }

// Inline runs actions on the calling goroutine.
var Inline Dispatcher = DispatcherFunc(func(action func()) { action() })

// Dispatched returns a Sink that delivers to s through d.
func Dispatched(d Dispatcher, s Sink) Sink {
	return SinkFunc(func(n Notification) {
		d.Dispatch(func() { s.Notify(n) })
	})
}

// RecordNotification builds an added/updated notification carrying a copy of r.
func RecordNotification(kind NotificationKind, r TrafficRecord) Notification {
	return Notification{Kind: kind, Record: &r, Time: r.Timestamp}
}

// StatusNotification builds a status notification.
func StatusNotification(status string, at time.Time) Notification {
	return Notification{Kind: StatusChanged, Status: status, Time: at}
}
