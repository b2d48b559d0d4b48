package dispatcher

import (
	"context"

	"github.com/garyjia/travel-claims/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// AnyEvent is the pseudo event type under which catch-all handlers are registered
const AnyEvent event.Type = "*"
