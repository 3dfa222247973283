package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"delixmi-order-services/internal/orders"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// claimTable emulates the single order row the conditional claim update
// races over: the first writer that finds it ready and unassigned wins.
type claimTable struct {
	mu       sync.Mutex
	status   string
	driverID *int64
}

func (t *claimTable) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	driverID := args[0].(int64)
	if t.status == orders.StatusReadyForPickup && t.driverID == nil {
		t.status = orders.StatusOutForDelivery
		t.driverID = &driverID
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	table := &claimTable{status: orders.StatusReadyForPickup}

	const drivers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
	)
	start := make(chan struct{})
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(driverID int64) {
			defer wg.Done()
			<-start
			won, err := claim(context.Background(), table, 42, driverID)
			if err != nil {
				t.Errorf("claim by driver %d: %v", driverID, err)
				return
			}
			if won {
				mu.Lock()
				winners = append(winners, driverID)
				mu.Unlock()
			}
		}(int64(i + 1))
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winning claim, got %d: %v", len(winners), winners)
	}
	if table.driverID == nil || *table.driverID != winners[0] {
		t.Fatalf("assigned driver does not match the winner %d", winners[0])
	}
	if table.status != orders.StatusOutForDelivery {
		t.Fatalf("expected order to be out_for_delivery, got %s", table.status)
	}
}

func TestClaimAlreadyTaken(t *testing.T) {
	assigned := int64(7)
	table := &claimTable{status: orders.StatusOutForDelivery, driverID: &assigned}

	won, err := claim(context.Background(), table, 42, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if won {
		t.Fatal("claim on an assigned order must not win")
	}
	if *table.driverID != assigned {
		t.Fatalf("assignment changed to driver %d", *table.driverID)
	}
}

type deliveryRow struct {
	err    error
	method string
}

func (r deliveryRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.method
	return nil
}

type deliveryFake struct {
	row     deliveryRow
	execSQL []string
}

func (f *deliveryFake) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return f.row
}

func (f *deliveryFake) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func TestMarkDeliveredNoMatchingRow(t *testing.T) {
	fake := &deliveryFake{row: deliveryRow{err: pgx.ErrNoRows}}

	done, err := markDelivered(context.Background(), fake, 42, 7, time.Now())
	if err != nil {
		t.Fatalf("a missed conditional update is not an error: %v", err)
	}
	if done {
		t.Fatal("expected delivery to be rejected")
	}
	if len(fake.execSQL) != 0 {
		t.Fatalf("no settlement writes expected, got %d", len(fake.execSQL))
	}
}

func TestMarkDeliveredQueryFailure(t *testing.T) {
	boom := errors.New("connection reset")
	fake := &deliveryFake{row: deliveryRow{err: boom}}

	done, err := markDelivered(context.Background(), fake, 42, 7, time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("expected the query error to surface, got %v", err)
	}
	if done {
		t.Fatal("a failed update must not report success")
	}
}

func TestMarkDeliveredSettlesCash(t *testing.T) {
	fake := &deliveryFake{row: deliveryRow{method: orders.MethodCash}}

	done, err := markDelivered(context.Background(), fake, 42, 7, time.Now())
	if err != nil || !done {
		t.Fatalf("expected delivery to complete, got done=%v err=%v", done, err)
	}
	if len(fake.execSQL) != 2 {
		t.Fatalf("cash settlement needs 2 writes, got %d", len(fake.execSQL))
	}
	if !strings.Contains(fake.execSQL[0], "update orders") || !strings.Contains(fake.execSQL[1], "update payments") {
		t.Fatalf("unexpected settlement writes: %v", fake.execSQL)
	}
}

func TestMarkDeliveredCardSkipsSettlement(t *testing.T) {
	fake := &deliveryFake{row: deliveryRow{method: orders.MethodMercadoPago}}

	done, err := markDelivered(context.Background(), fake, 42, 7, time.Now())
	if err != nil || !done {
		t.Fatalf("expected delivery to complete, got done=%v err=%v", done, err)
	}
	if len(fake.execSQL) != 0 {
		t.Fatalf("card orders settle via webhook, got %d writes", len(fake.execSQL))
	}
}

type tagFake struct {
	tag string
	err error
}

func (f *tagFake) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag(f.tag), nil
}

func TestDriverProfileUpdates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("timeout")

	cases := []struct {
		name string
		fake *tagFake
		want error
	}{
		{"status updated", &tagFake{tag: "UPDATE 1"}, nil},
		{"no profile row", &tagFake{tag: "UPDATE 0"}, ErrDriverProfileNotFound},
		{"query failure", &tagFake{err: boom}, boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := setDriverStatus(ctx, tc.fake, 7, "online"); !errors.Is(err, tc.want) {
				t.Fatalf("setDriverStatus: expected %v, got %v", tc.want, err)
			}
			if err := updateDriverLocation(ctx, tc.fake, 7, 19.43, -99.13); !errors.Is(err, tc.want) {
				t.Fatalf("updateDriverLocation: expected %v, got %v", tc.want, err)
			}
		})
	}
}
