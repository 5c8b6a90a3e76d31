package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/opdline/clinic-queue/pkg/logging"
)

// Publisher records change events into the outbox. Feed delivery is a hint,
// not part of the operation's contract, so Publish swallows failures after
// logging them.
type Publisher struct {
	store  *OutboxStore
	logger *logging.Logger
}

func NewPublisher(store *OutboxStore, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{store: store, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) {
	if _, err := p.store.Insert(ctx, eventType, payload); err != nil {
		p.logger.Error("failed to record change event", "type", eventType, "error", err)
	}
}

// DirectPublisher hands events straight to the delivery handler, skipping the
// outbox. Used in memory mode where there is no database to stage through;
// events are lost if the process dies before delivery.
type DirectPublisher struct {
	handler DeliveryHandler
	logger  *logging.Logger
}

func NewDirectPublisher(handler DeliveryHandler, logger *logging.Logger) *DirectPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &DirectPublisher{handler: handler, logger: logger}
}

func (p *DirectPublisher) Publish(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal change event", "type", eventType, "error", err)
		return
	}
	entry := OutboxEntry{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if err := p.handler.Handle(ctx, entry); err != nil {
		p.logger.Error("failed to deliver change event", "type", eventType, "error", err)
	}
}
