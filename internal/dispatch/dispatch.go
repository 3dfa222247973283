package dispatch

import (
	"context"
	"errors"
	"math"
	"time"

	"delixmi-order-services/internal/orders"
	"delixmi-order-services/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PlatformRadiusKm bounds the eligibility of platform couriers around the
// branch. Restaurant-bound couriers are not distance-filtered.
const PlatformRadiusKm = 10.0

var ErrDriverProfileNotFound = errors.New("driver profile not found")

type Engine struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
}

func New(db *pgxpool.Pool, logger *zap.Logger) *Engine {
	return &Engine{DB: db, Logger: logger}
}

type Candidate struct {
	UserID     int64
	DistanceKm float64
}

type OrderSnapshot struct {
	OrderID             int64   `json:"orderId"`
	BranchID            int64   `json:"branchId"`
	RestaurantID        int64   `json:"restaurantId"`
	RestaurantName      string  `json:"restaurantName"`
	UsesPlatformDrivers bool    `json:"-"`
	PickupLatitude      float64 `json:"pickupLatitude"`
	PickupLongitude     float64 `json:"pickupLongitude"`
	DropLatitude        float64 `json:"dropLatitude"`
	DropLongitude       float64 `json:"dropLongitude"`
	DropAddress         string  `json:"dropAddress"`
	Subtotal            float64 `json:"subtotal"`
	DeliveryFee         float64 `json:"deliveryFee"`
	Total               float64 `json:"total"`
	PaymentMethod       string  `json:"paymentMethod"`
}

// HaversineKm is the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371.0
	toRad := func(deg float64) float64 {
		return deg * math.Pi / 180
	}

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	lat1Rad := toRad(lat1)
	lat2Rad := toRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Snapshot loads the dispatch payload announced to couriers.
func (e *Engine) Snapshot(ctx context.Context, orderID int64) (OrderSnapshot, error) {
	var (
		snap        OrderSnapshot
		subtotal    pgtype.Numeric
		deliveryFee pgtype.Numeric
		total       pgtype.Numeric
		dropAddress pgtype.Text
	)
	err := e.DB.QueryRow(ctx, `
		select o.id, o.branch_id, b.restaurant_id, r.name, b.uses_platform_drivers,
		       b.latitude, b.longitude,
		       a.latitude, a.longitude, a.street_line,
		       o.subtotal, o.delivery_fee, o.total, o.payment_method
		from orders o
		join branches b on b.id = o.branch_id
		join restaurants r on r.id = b.restaurant_id
		join addresses a on a.id = o.address_id
		where o.id = $1
	`, orderID).Scan(
		&snap.OrderID, &snap.BranchID, &snap.RestaurantID, &snap.RestaurantName, &snap.UsesPlatformDrivers,
		&snap.PickupLatitude, &snap.PickupLongitude,
		&snap.DropLatitude, &snap.DropLongitude, &dropAddress,
		&subtotal, &deliveryFee, &total, &snap.PaymentMethod,
	)
	if err != nil {
		return OrderSnapshot{}, err
	}
	if dropAddress.Valid {
		snap.DropAddress = dropAddress.String
	}
	snap.Subtotal = utils.NumericToFloat64(subtotal)
	snap.DeliveryFee = utils.NumericToFloat64(deliveryFee)
	snap.Total = utils.NumericToFloat64(total)
	return snap, nil
}

// EligibleDrivers computes E(order): platform couriers online within the
// radius of the branch, or restaurant couriers bound to the branch's
// restaurant. Evaluated on demand; there is no dispatch queue.
func (e *Engine) EligibleDrivers(ctx context.Context, snap OrderSnapshot) ([]Candidate, error) {
	if snap.UsesPlatformDrivers {
		rows, err := e.DB.Query(ctx, `
			select u.id, dp.latitude, dp.longitude
			from users u
			join driver_profiles dp on dp.user_id = u.id
			join user_roles ur on ur.user_id = u.id
			join roles r on r.id = ur.role_id and r.name = 'driver_platform'
			where dp.status = 'online'
			  and dp.latitude is not null and dp.longitude is not null
		`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		candidates := make([]Candidate, 0)
		for rows.Next() {
			var (
				userID   int64
				lat, lng float64
			)
			if err := rows.Scan(&userID, &lat, &lng); err != nil {
				return nil, err
			}
			distance := HaversineKm(snap.PickupLatitude, snap.PickupLongitude, lat, lng)
			if distance <= PlatformRadiusKm {
				candidates = append(candidates, Candidate{UserID: userID, DistanceKm: distance})
			}
		}
		return candidates, rows.Err()
	}

	rows, err := e.DB.Query(ctx, `
		select u.id
		from users u
		join driver_profiles dp on dp.user_id = u.id
		join user_roles ur on ur.user_id = u.id
		join roles r on r.id = ur.role_id and r.name = 'driver_restaurant'
		where dp.status = 'online' and ur.restaurant_id = $1
	`, snap.RestaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{UserID: userID})
	}
	return candidates, rows.Err()
}

// eligibilityPredicate is reused by Claim and AvailableOrders. It binds:
// driver id, then the radius. Table aliases o (orders) and b (branches) must
// be in scope.
const eligibilityPredicate = `
	exists (
		select 1 from driver_profiles dp
		where dp.user_id = $1 and dp.status = 'online'
		  and (
			(
				b.uses_platform_drivers
				and exists (
					select 1 from user_roles ur join roles ro on ro.id = ur.role_id
					where ur.user_id = $1 and ro.name = 'driver_platform'
				)
				and dp.latitude is not null and dp.longitude is not null
				and (
					6371 * 2 * asin(sqrt(
						power(sin(radians(b.latitude - dp.latitude) / 2), 2)
						+ cos(radians(dp.latitude)) * cos(radians(b.latitude))
						* power(sin(radians(b.longitude - dp.longitude) / 2), 2)
					))
				) <= $2
			)
			or (
				not b.uses_platform_drivers
				and exists (
					select 1 from user_roles ur join roles ro on ro.id = ur.role_id
					where ur.user_id = $1 and ro.name = 'driver_restaurant'
					  and ur.restaurant_id = b.restaurant_id
				)
			)
		  )
	)`

// Claim is the first-claim-wins operation: a single conditional update that
// assigns the courier and advances the order, with eligibility encoded in the
// predicate. Under concurrent claims at most one writer sees one affected row.
func (e *Engine) Claim(ctx context.Context, orderID, driverID int64) (bool, error) {
	return claim(ctx, e.DB, orderID, driverID)
}

func claim(ctx context.Context, q orders.Querier, orderID, driverID int64) (bool, error) {
	tag, err := q.Exec(ctx, `
		update orders o
		set delivery_driver_id = $1, status = 'out_for_delivery', updated_at = now()
		from branches b
		where o.id = $3
		  and b.id = o.branch_id
		  and o.status = 'ready_for_pickup'
		  and o.delivery_driver_id is null
		  and `+eligibilityPredicate, driverID, PlatformRadiusKm, orderID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// deliveryQuerier is what markDelivered needs from a transaction.
type deliveryQuerier interface {
	orders.Querier
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MarkDelivered completes the assigned courier's delivery. Cash orders settle
// their payment in the same transaction.
func (e *Engine) MarkDelivered(ctx context.Context, orderID, driverID int64) (bool, error) {
	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	done, err := markDelivered(ctx, tx, orderID, driverID, time.Now().UTC())
	if err != nil || !done {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func markDelivered(ctx context.Context, q deliveryQuerier, orderID, driverID int64, now time.Time) (bool, error) {
	var paymentMethod string
	err := q.QueryRow(ctx, `
		update orders
		set status = $3, order_delivered_at = $4, updated_at = $4
		where id = $1 and delivery_driver_id = $2 and status = $5
		returning payment_method
	`, orderID, driverID, orders.StatusDelivered, now, orders.StatusOutForDelivery).Scan(&paymentMethod)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Another state or another courier.
			return false, nil
		}
		return false, err
	}

	if paymentMethod == orders.MethodCash {
		if _, err := q.Exec(ctx, `
			update orders set payment_status = $2 where id = $1
		`, orderID, orders.PaymentCompleted); err != nil {
			return false, err
		}
		if _, err := q.Exec(ctx, `
			update payments set status = $2, paid_at = coalesce(paid_at, $3) where order_id = $1
		`, orderID, orders.PaymentCompleted, now); err != nil {
			return false, err
		}
	}
	return true, nil
}

// SetDriverStatus only affects future eligibility; existing assignments are
// untouched.
func (e *Engine) SetDriverStatus(ctx context.Context, driverID int64, status string) error {
	return setDriverStatus(ctx, e.DB, driverID, status)
}

func setDriverStatus(ctx context.Context, q orders.Querier, driverID int64, status string) error {
	tag, err := q.Exec(ctx, `
		update driver_profiles set status = $2, updated_at = now() where user_id = $1
	`, driverID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverProfileNotFound
	}
	return nil
}

func (e *Engine) UpdateDriverLocation(ctx context.Context, driverID int64, lat, lng float64) error {
	return updateDriverLocation(ctx, e.DB, driverID, lat, lng)
}

func updateDriverLocation(ctx context.Context, q orders.Querier, driverID int64, lat, lng float64) error {
	tag, err := q.Exec(ctx, `
		update driver_profiles
		set latitude = $2, longitude = $3, last_seen_at = now(), updated_at = now()
		where user_id = $1
	`, driverID, lat, lng)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverProfileNotFound
	}
	return nil
}

// AvailableOrders lists ready, unassigned orders the courier could claim
// right now, newest first.
func (e *Engine) AvailableOrders(ctx context.Context, driverID int64, limit, offset int) ([]OrderSnapshot, error) {
	rows, err := e.DB.Query(ctx, `
		select o.id, o.branch_id, b.restaurant_id, r.name, b.uses_platform_drivers,
		       b.latitude, b.longitude,
		       a.latitude, a.longitude, a.street_line,
		       o.subtotal, o.delivery_fee, o.total, o.payment_method
		from orders o
		join branches b on b.id = o.branch_id
		join restaurants r on r.id = b.restaurant_id
		join addresses a on a.id = o.address_id
		where o.status = 'ready_for_pickup'
		  and o.delivery_driver_id is null
		  and `+eligibilityPredicate+`
		order by o.order_placed_at desc
		limit $3 offset $4
	`, driverID, PlatformRadiusKm, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]OrderSnapshot, 0)
	for rows.Next() {
		var (
			snap        OrderSnapshot
			subtotal    pgtype.Numeric
			deliveryFee pgtype.Numeric
			total       pgtype.Numeric
			dropAddress pgtype.Text
		)
		if err := rows.Scan(
			&snap.OrderID, &snap.BranchID, &snap.RestaurantID, &snap.RestaurantName, &snap.UsesPlatformDrivers,
			&snap.PickupLatitude, &snap.PickupLongitude,
			&snap.DropLatitude, &snap.DropLongitude, &dropAddress,
			&subtotal, &deliveryFee, &total, &snap.PaymentMethod,
		); err != nil {
			return nil, err
		}
		if dropAddress.Valid {
			snap.DropAddress = dropAddress.String
		}
		snap.Subtotal = utils.NumericToFloat64(subtotal)
		snap.DeliveryFee = utils.NumericToFloat64(deliveryFee)
		snap.Total = utils.NumericToFloat64(total)
		out = append(out, snap)
	}
	return out, rows.Err()
}
