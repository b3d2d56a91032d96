package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/lipetsk-helpdesk/helpdesk-bot/internal/events"
)

// EventWorker logs request events and forwards them to Kafka.
type EventWorker struct {
	dispatcher events.Dispatcher
	forwarder  *events.KafkaForwarder
	logger     *zap.Logger
}

// NewEventWorker creates the worker. forwarder may be nil.
func NewEventWorker(dispatcher events.Dispatcher, forwarder *events.KafkaForwarder, logger *zap.Logger) *EventWorker {
	return &EventWorker{dispatcher: dispatcher, forwarder: forwarder, logger: logger}
}

// Start subscribes handlers.
func (w *EventWorker) Start() {
	if w == nil || w.dispatcher == nil {
		return
	}
	w.dispatcher.Subscribe(events.EventRequestCreated, w.handleRequestCreated)
	w.dispatcher.Subscribe(events.EventRequestStatusChanged, w.handleStatusChanged)
	w.dispatcher.Subscribe(events.EventRequestAssigned, w.handleAssigned)
	if w.forwarder.Enabled() {
		w.dispatcher.Subscribe(events.AllEvents, w.forwarder.Handle)
	}
}

func (w *EventWorker) handleRequestCreated(_ context.Context, event events.Event) error {
	w.logger.Info("RequestCreated", zap.Int64("request_id", event.RequestID), zap.Any("payload", event.Payload))
	return nil
}

func (w *EventWorker) handleStatusChanged(_ context.Context, event events.Event) error {
	w.logger.Info("RequestStatusChanged",
		zap.Int64("request_id", event.RequestID),
		zap.Int64("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}

func (w *EventWorker) handleAssigned(_ context.Context, event events.Event) error {
	w.logger.Info("RequestAssigned", zap.Int64("request_id", event.RequestID), zap.Any("payload", event.Payload))
	return nil
}
