package handlers

import (
	"context"

	"delixmi-order-services/internal/events"
	"delixmi-order-services/internal/ws"

	"go.uber.org/zap"
)

// announceOrder computes the eligibility set for a ready order and fans the
// AVAILABLE_ORDER event out to every qualified courier. It runs detached from
// the request that triggered the transition, after that transition committed.
func (h *Handler) announceOrder(orderID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), h.Config.ExternalCallTimeout)
	defer cancel()

	snap, err := h.Dispatch.Snapshot(ctx, orderID)
	if err != nil {
		h.Logger.Error("dispatch snapshot failed", zap.Int64("orderId", orderID), zapError(err))
		return
	}
	candidates, err := h.Dispatch.EligibleDrivers(ctx, snap)
	if err != nil {
		h.Logger.Error("dispatch eligibility failed", zap.Int64("orderId", orderID), zapError(err))
		return
	}
	if len(candidates) == 0 {
		h.Logger.Info("no eligible couriers for order", zap.Int64("orderId", orderID))
		return
	}

	rooms := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		rooms = append(rooms, ws.UserRoom(candidate.UserID))
	}
	h.Events.Emit(ctx, rooms, events.TypeAvailableOrder, map[string]any{
		"order": snap,
	})
}

// withdrawOrder tells every courier in the eligibility set except the winner
// that the order is gone.
func (h *Handler) withdrawOrder(ctx context.Context, orderID, winnerID int64, candidateIDs []int64) {
	rooms := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if id == winnerID {
			continue
		}
		rooms = append(rooms, ws.UserRoom(id))
	}
	if len(rooms) == 0 {
		return
	}
	h.Events.Emit(ctx, rooms, events.TypeAvailableOrderWithdrawn, map[string]any{
		"orderId": orderID,
	})
}
