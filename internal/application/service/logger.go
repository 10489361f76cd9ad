package service

import (
	"context"

	"github.com/garyjia/po-authorization/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventPublisher hands committed events to their subscribers
type EventPublisher interface {
	Publish(ctx context.Context, evts ...*event.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, evts ...*event.Event) {}
