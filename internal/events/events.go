package events

import (
	"context"
	"encoding/json"
	"strings"

	"delixmi-order-services/internal/queue"
	"delixmi-order-services/internal/ws"

	"go.uber.org/zap"
)

// Event types pushed over the realtime bus.
const (
	TypeOrderPlaced     = "ORDER_PLACED"
	TypeNewOrderPending = "NEW_ORDER_PENDING"
	TypeStatusChanged   = "ORDER_STATUS_CHANGED"
	TypeOrderCancelled  = "ORDER_CANCELLED"

	TypeAvailableOrder          = "AVAILABLE_ORDER"
	TypeAvailableOrderWithdrawn = "AVAILABLE_ORDER_WITHDRAWN"
	TypeOrderClaimed            = "ORDER_CLAIMED"

	TypePaymentReceived = "PAYMENT_RECEIVED"
	TypePaymentFailed   = "PAYMENT_FAILED"
)

// Emitter fans events out to local websocket rooms and, when a broker is
// configured, to the other nodes. Callers invoke it only after the state
// change has committed.
type Emitter struct {
	Hub    *ws.Hub
	Queue  *queue.Client
	Logger *zap.Logger
	NodeID string
}

func New(hub *ws.Hub, queueClient *queue.Client, logger *zap.Logger, nodeID string) *Emitter {
	return &Emitter{Hub: hub, Queue: queueClient, Logger: logger, NodeID: nodeID}
}

type envelope struct {
	NodeID string   `json:"nodeId"`
	Rooms  []string `json:"rooms"`
	Event  ws.Event `json:"event"`
}

func (e *Emitter) Emit(ctx context.Context, rooms []string, eventType string, data map[string]any) {
	event := ws.NewEvent(eventType, data)

	for _, room := range rooms {
		e.Hub.Broadcast(room, event)
	}

	if e.Queue == nil {
		return
	}
	env := envelope{NodeID: e.NodeID, Rooms: rooms, Event: event}
	if err := e.Queue.PublishJSON(ctx, queue.EventsExchange, routingKey(eventType), env); err != nil && e.Logger != nil {
		e.Logger.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

// RunBridge consumes the per-node queue and re-broadcasts events emitted by
// the other nodes into local rooms.
func (e *Emitter) RunBridge(queueName string) error {
	return e.Queue.Consume(queueName, func(ctx context.Context, body []byte) error {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			if e.Logger != nil {
				e.Logger.Warn("malformed bus event", zap.Error(err))
			}
			return nil
		}
		if env.NodeID == e.NodeID {
			return nil
		}
		for _, room := range env.Rooms {
			e.Hub.Broadcast(room, env.Event)
		}
		return nil
	})
}

// routingKey turns ORDER_STATUS_CHANGED into order.status_changed so topic
// bindings like `order.#` keep working.
func routingKey(eventType string) string {
	lower := strings.ToLower(eventType)
	if rest, ok := strings.CutPrefix(lower, "order_"); ok {
		return "order." + rest
	}
	return "order." + lower
}
