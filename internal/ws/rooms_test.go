package ws

import (
	"testing"
	"time"

	"delixmi-order-services/internal/auth"
)

func TestRoomNames(t *testing.T) {
	if got := RestaurantRoom(42); got != "restaurant_42" {
		t.Fatalf("RestaurantRoom(42) = %q", got)
	}
	if got := UserRoom(7); got != "user_7" {
		t.Fatalf("UserRoom(7) = %q", got)
	}
}

func TestRoomsForPrincipal(t *testing.T) {
	restaurantID := int64(3)

	cases := []struct {
		name     string
		bindings []auth.RoleBinding
		expected []string
	}{
		{
			name:     "customer joins only their user room",
			bindings: []auth.RoleBinding{{Role: auth.RoleCustomer}},
			expected: []string{"user_9"},
		},
		{
			name:     "driver joins only their user room",
			bindings: []auth.RoleBinding{{Role: auth.RoleDriverPlatform}},
			expected: []string{"user_9"},
		},
		{
			name:     "owner also joins the restaurant room",
			bindings: []auth.RoleBinding{{Role: auth.RoleOwner, RestaurantID: &restaurantID}},
			expected: []string{"user_9", "restaurant_3"},
		},
		{
			name: "duplicate staff bindings join the restaurant room once",
			bindings: []auth.RoleBinding{
				{Role: auth.RoleOwner, RestaurantID: &restaurantID},
				{Role: auth.RoleKitchenStaff, RestaurantID: &restaurantID},
			},
			expected: []string{"user_9", "restaurant_3"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &auth.Principal{UserID: 9, IsActive: true, Bindings: tc.bindings}
			rooms := RoomsForPrincipal(p)
			if len(rooms) != len(tc.expected) {
				t.Fatalf("rooms = %v, expected %v", rooms, tc.expected)
			}
			for i := range rooms {
				if rooms[i] != tc.expected[i] {
					t.Fatalf("rooms = %v, expected %v", rooms, tc.expected)
				}
			}
		})
	}
}

func TestNewEventStampsTimestamp(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent("ORDER_PLACED", map[string]any{"orderId": int64(1)})

	raw, ok := event.Data["timestamp"].(string)
	if !ok {
		t.Fatal("timestamp missing from event data")
	}
	stamped, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
	if stamped.Before(before.Add(-time.Second)) || stamped.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("timestamp %v outside expected window", stamped)
	}
	if event.Data["orderId"] != int64(1) {
		t.Fatal("event data must be preserved")
	}
}

func TestNewEventNilData(t *testing.T) {
	event := NewEvent("CONNECTION_ESTABLISHED", nil)
	if event.Data == nil {
		t.Fatal("nil data must become an empty map")
	}
	if _, ok := event.Data["timestamp"]; !ok {
		t.Fatal("timestamp must be stamped even without data")
	}
}

func TestHubRoomSizeEmpty(t *testing.T) {
	hub := NewHub(nil)
	if hub.RoomSize("restaurant_1") != 0 {
		t.Fatal("empty hub must report zero members")
	}
	// Broadcast into an empty room is a no-op.
	hub.Broadcast("restaurant_1", NewEvent("ORDER_PLACED", nil))
}
