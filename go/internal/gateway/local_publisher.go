package gateway

import (
	"context"
	"fmt"

	"github.com/mcdev12/rankparty/go/internal/models"
	"github.com/mcdev12/rankparty/go/internal/outbox"
)

// LocalPublisher hands relayed outbox events straight to the connection
// manager of this process. Used when no message bus is configured.
type LocalPublisher struct {
	cm *ConnectionManager
}

var _ outbox.Publisher = (*LocalPublisher)(nil)

// NewLocalPublisher creates a publisher broadcasting through cm
func NewLocalPublisher(cm *ConnectionManager) *LocalPublisher {
	return &LocalPublisher{cm: cm}
}

// Publish broadcasts a committed event to its room
func (p *LocalPublisher) Publish(ctx context.Context, event models.OutboxEvent) error {
	roomEvent, err := EventFromOutbox(event)
	if err != nil {
		return fmt.Errorf("convert outbox event %s: %w", event.ID, err)
	}
	p.cm.BroadcastToRoom(roomEvent.RoomCode, roomEvent)
	return nil
}
