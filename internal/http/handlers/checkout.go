package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/events"
	"delixmi-order-services/internal/orders"
	"delixmi-order-services/internal/payments"
	"delixmi-order-services/internal/pricing"
	"delixmi-order-services/internal/utils"
	"delixmi-order-services/internal/ws"
	"delixmi-order-services/pkg/response"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// priceDriftTolerance absorbs rounding noise between the stored add-time price
// and the freshly computed one; anything beyond it rejects the checkout.
var priceDriftTolerance = decimal.RequireFromString("0.01")

type checkoutRequest struct {
	AddressID           int64  `json:"addressId"`
	UseCart             bool   `json:"useCart"`
	RestaurantID        int64  `json:"restaurantId"`
	BranchID            int64  `json:"branchId"`
	PaymentMethod       string `json:"paymentMethod"`
	SpecialInstructions string `json:"specialInstructions"`
}

type checkoutLine struct {
	cartItemID  int64
	productID   int64
	productName string
	quantity    int32
	available   bool
	priceAtAdd  decimal.Decimal
	unitPrice   decimal.Decimal
	options     []checkoutOption
}

type checkoutOption struct {
	optionID   int64
	name       string
	priceDelta decimal.Decimal
}

// CheckoutCreatePreference assembles the customer's cart into a persisted
// order inside one transaction: schedule and availability re-validation, price
// drift detection, full money breakdown, commission snapshot, item and
// modifier copies, payment row, and cart teardown. For card payments a hosted
// checkout preference is requested after commit.
func (h *Handler) CheckoutCreatePreference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpOrderPlace, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	var body checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.ValidationErrors(w, "Invalid request body", nil)
		return
	}
	if !body.UseCart {
		response.ValidationErrors(w, "useCart must be true; direct item checkout is not supported", nil)
		return
	}
	if body.AddressID <= 0 || body.RestaurantID <= 0 {
		response.ValidationErrors(w, "addressId and restaurantId are required", nil)
		return
	}
	body.PaymentMethod = strings.ToLower(strings.TrimSpace(body.PaymentMethod))
	if body.PaymentMethod != orders.MethodMercadoPago && body.PaymentMethod != orders.MethodCash {
		response.ValidationErrors(w, "paymentMethod must be \"mercadopago\" or \"cash\"", nil)
		return
	}

	var dropPoint pricing.Point
	var streetLine pgtype.Text
	err := h.DB.QueryRow(ctx, `
		select latitude, longitude, street_line
		from addresses
		where id = $1 and user_id = $2
	`, body.AddressID, principal.UserID).Scan(&dropPoint.Latitude, &dropPoint.Longitude, &streetLine)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "ADDRESS_NOT_FOUND", "Address not found")
			return
		}
		h.Logger.Error("checkout address lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("checkout begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cartID int64
	if err := tx.QueryRow(ctx, `
		select id from carts where user_id = $1 and restaurant_id = $2
	`, principal.UserID, body.RestaurantID).Scan(&cartID); err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusBadRequest, "EMPTY_CART", "Your cart for this restaurant is empty")
			return
		}
		h.Logger.Error("checkout cart lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	lines, err := loadCheckoutLines(ctx, tx, cartID)
	if err != nil {
		h.Logger.Error("checkout cart load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	if len(lines) == 0 {
		response.Error(w, http.StatusBadRequest, "EMPTY_CART", "Your cart for this restaurant is empty")
		return
	}

	branch, err := loadCheckoutBranch(ctx, tx, body.RestaurantID, body.BranchID)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "BRANCH_NOT_FOUND", "No active branch available for this restaurant")
			return
		}
		h.Logger.Error("checkout branch lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	if branch.restaurantStatus != "active" {
		response.Error(w, http.StatusConflict, "PRODUCT_UNAVAILABLE", "Restaurant is not accepting orders")
		return
	}

	local := orders.BranchLocalTime(branch.timezone, time.Now())
	open, err := branchOpenAt(ctx, tx, branch.id, local)
	if err != nil {
		h.Logger.Error("checkout schedule lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	if !open {
		response.Error(w, http.StatusConflict, "BRANCH_CLOSED", "The branch is closed right now")
		return
	}

	// Re-validate each line against the live catalog. Reject on drift; the
	// customer retries with the fresh price instead of being silently repriced.
	items := make([]pricing.LineItem, 0, len(lines))
	for _, line := range lines {
		if !line.available {
			response.ErrorWithData(w, http.StatusConflict, "PRODUCT_UNAVAILABLE",
				fmt.Sprintf("%q is no longer available", line.productName),
				map[string]any{"productId": line.productID})
			return
		}
		deltas := make([]decimal.Decimal, 0, len(line.options))
		for _, opt := range line.options {
			deltas = append(deltas, opt.priceDelta)
		}
		current, err := pricing.LineTotal(line.unitPrice, deltas)
		if err != nil {
			response.ValidationErrors(w, "Computed item price is invalid", nil)
			return
		}
		if current.Sub(line.priceAtAdd).Abs().GreaterThan(priceDriftTolerance) {
			response.ErrorWithData(w, http.StatusConflict, "PRICE_DRIFT",
				fmt.Sprintf("The price of %q changed since it was added; please review your cart and retry", line.productName),
				map[string]any{
					"cartItemId":   line.cartItemID,
					"productId":    line.productID,
					"currentPrice": utils.Money(current),
					"priceAtAdd":   utils.Money(line.priceAtAdd),
				})
			return
		}
		items = append(items, pricing.LineItem{
			ProductID:    line.productID,
			UnitPrice:    line.unitPrice,
			OptionDeltas: deltas,
			Quantity:     line.quantity,
		})
	}

	quote, err := pricing.PriceCart(ctx, items, pricing.Point{Latitude: branch.latitude, Longitude: branch.longitude}, dropPoint, h.Distance)
	if err != nil {
		h.Logger.Error("checkout pricing failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	_, payout := pricing.CommissionSplit(quote.Subtotal, branch.commissionRate)

	now := time.Now().UTC()
	var orderID int64
	var instructions *string
	if trimmed := strings.TrimSpace(body.SpecialInstructions); trimmed != "" {
		instructions = &trimmed
	}
	if err := tx.QueryRow(ctx, `
		insert into orders (
			customer_id, branch_id, address_id,
			subtotal, delivery_fee, platform_fee, total,
			commission_rate_snapshot, restaurant_payout,
			payment_method, payment_status, status,
			special_instructions, order_placed_at, updated_at
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		returning id
	`,
		principal.UserID, branch.id, body.AddressID,
		utils.Money(quote.Subtotal), utils.Money(quote.DeliveryFee), utils.Money(quote.ServiceFee), utils.Money(quote.Total),
		utils.Money(branch.commissionRate), utils.Money(payout),
		body.PaymentMethod, orders.PaymentPending, orders.StatusPending,
		instructions, now,
	).Scan(&orderID); err != nil {
		h.Logger.Error("checkout order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	for _, line := range lines {
		deltas := make([]decimal.Decimal, 0, len(line.options))
		for _, opt := range line.options {
			deltas = append(deltas, opt.priceDelta)
		}
		perUnit, _ := pricing.LineTotal(line.unitPrice, deltas)

		var orderItemID int64
		if err := tx.QueryRow(ctx, `
			insert into order_items (order_id, product_id, product_name, quantity, price_per_unit)
			values ($1, $2, $3, $4, $5)
			returning id
		`, orderID, line.productID, line.productName, line.quantity, utils.Money(perUnit)).Scan(&orderItemID); err != nil {
			h.Logger.Error("checkout order item insert failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
			return
		}
		for _, opt := range line.options {
			if _, err := tx.Exec(ctx, `
				insert into order_item_modifiers (order_item_id, modifier_option_id, option_name, price_delta)
				values ($1, $2, $3, $4)
			`, orderItemID, opt.optionID, opt.name, utils.Money(opt.priceDelta)); err != nil {
				h.Logger.Error("checkout order modifier insert failed", zapError(err))
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
				return
			}
		}
	}

	externalReference := uuid.NewString()
	var providerPaymentID *string
	if body.PaymentMethod == orders.MethodCash {
		pseudo := fmt.Sprintf("cash_%d_%d", orderID, now.UnixNano())
		providerPaymentID = &pseudo
	}
	if _, err := tx.Exec(ctx, `
		insert into payments (order_id, amount, provider, provider_payment_id, external_reference, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, now(), now())
	`, orderID, utils.Money(quote.Total), body.PaymentMethod, providerPaymentID, externalReference, orders.PaymentPending); err != nil {
		h.Logger.Error("checkout payment insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	if _, err := tx.Exec(ctx, `
		delete from cart_item_modifiers
		where cart_item_id in (select id from cart_items where cart_id = $1)
	`, cartID); err != nil {
		h.Logger.Error("checkout cart teardown failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	if _, err := tx.Exec(ctx, `delete from cart_items where cart_id = $1`, cartID); err != nil {
		h.Logger.Error("checkout cart teardown failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	if _, err := tx.Exec(ctx, `delete from carts where id = $1`, cartID); err != nil {
		h.Logger.Error("checkout cart teardown failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("checkout commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	// Side effects run only after the commit above.
	orderData := map[string]any{
		"orderId":       orderID,
		"restaurantId":  body.RestaurantID,
		"branchId":      branch.id,
		"customerId":    principal.UserID,
		"subtotal":      utils.Money(quote.Subtotal),
		"deliveryFee":   utils.Money(quote.DeliveryFee),
		"serviceFee":    utils.Money(quote.ServiceFee),
		"total":         utils.Money(quote.Total),
		"paymentMethod": body.PaymentMethod,
		"status":        orders.StatusPending,
	}
	rooms := []string{ws.RestaurantRoom(body.RestaurantID)}
	h.Events.Emit(ctx, rooms, events.TypeOrderPlaced, orderData)
	if body.PaymentMethod == orders.MethodCash {
		// Cash orders are actionable immediately; card orders surface to the
		// dashboard once the payment webhook confirms them.
		h.Events.Emit(ctx, rooms, events.TypeNewOrderPending, orderData)
	}

	data := map[string]any{
		"orderId":             orderID,
		"total":               utils.Money(quote.Total),
		"paymentMethod":       body.PaymentMethod,
		"paymentStatus":       orders.PaymentPending,
		"status":              orders.StatusPending,
		"estimatedMinMinutes": quote.EstimatedMinMinutes,
		"estimatedMaxMinutes": quote.EstimatedMaxMinutes,
	}

	if body.PaymentMethod == orders.MethodMercadoPago {
		preference, err := h.createPreference(orderID, branch.restaurantName, quote.Total, externalReference)
		if err != nil {
			h.Logger.Error("checkout preference failed", zapError(err))
			h.failPayment(orderID, principal.UserID)
			response.ErrorWithData(w, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR",
				"The payment provider could not be reached; the order is saved and payment can be retried",
				map[string]any{"orderId": orderID})
			return
		}
		data["preferenceId"] = preference.ID
		data["redirectUrl"] = preference.RedirectURL
	}

	response.Created(w, "Order placed successfully", data)
}

type checkoutBranch struct {
	id               int64
	latitude         float64
	longitude        float64
	timezone         string
	restaurantStatus string
	restaurantName   string
	commissionRate   decimal.Decimal
}

func loadCheckoutBranch(ctx context.Context, tx pgx.Tx, restaurantID, branchID int64) (checkoutBranch, error) {
	query := `
		select b.id, b.latitude, b.longitude, coalesce(b.timezone, ''), r.status, r.name, r.commission_rate
		from branches b
		join restaurants r on r.id = b.restaurant_id
		where b.restaurant_id = $1 and b.status = 'active'
	`
	args := []any{restaurantID}
	if branchID > 0 {
		query += ` and b.id = $2`
		args = append(args, branchID)
	}
	query += ` order by b.id limit 1`

	var (
		branch checkoutBranch
		rate   pgtype.Numeric
	)
	err := tx.QueryRow(ctx, query, args...).Scan(
		&branch.id, &branch.latitude, &branch.longitude, &branch.timezone,
		&branch.restaurantStatus, &branch.restaurantName, &rate,
	)
	if err != nil {
		return checkoutBranch{}, err
	}
	branch.commissionRate = utils.NumericToDecimal(rate)
	return branch, nil
}

func branchOpenAt(ctx context.Context, tx pgx.Tx, branchID int64, local time.Time) (bool, error) {
	var window orders.ScheduleWindow
	err := tx.QueryRow(ctx, `
		select opening_time, closing_time, is_closed
		from branch_schedules
		where branch_id = $1 and day_of_week = $2
	`, branchID, int(local.Weekday())).Scan(&window.Opening, &window.Closing, &window.IsClosed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return window.IsOpenAt(local), nil
}

func loadCheckoutLines(ctx context.Context, tx pgx.Tx, cartID int64) ([]*checkoutLine, error) {
	rows, err := tx.Query(ctx, `
		select ci.id, ci.product_id, p.name, p.price, p.is_available, ci.quantity, ci.price_at_add
		from cart_items ci
		join products p on p.id = ci.product_id
		where ci.cart_id = $1
		order by ci.id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]*checkoutLine, 0)
	byID := make(map[int64]*checkoutLine)
	itemIDs := make([]int64, 0)
	for rows.Next() {
		var (
			line       checkoutLine
			price      pgtype.Numeric
			priceAtAdd pgtype.Numeric
		)
		if err := rows.Scan(&line.cartItemID, &line.productID, &line.productName, &price, &line.available, &line.quantity, &priceAtAdd); err != nil {
			return nil, err
		}
		line.unitPrice = utils.NumericToDecimal(price)
		line.priceAtAdd = utils.NumericToDecimal(priceAtAdd)
		copied := line
		lines = append(lines, &copied)
		byID[copied.cartItemID] = &copied
		itemIDs = append(itemIDs, copied.cartItemID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return lines, nil
	}

	modRows, err := tx.Query(ctx, `
		select cim.cart_item_id, mo.id, mo.name, mo.price
		from cart_item_modifiers cim
		join modifier_options mo on mo.id = cim.modifier_option_id
		where cim.cart_item_id = any($1)
		order by cim.cart_item_id, mo.id
	`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer modRows.Close()
	for modRows.Next() {
		var (
			itemID int64
			opt    checkoutOption
			price  pgtype.Numeric
		)
		if err := modRows.Scan(&itemID, &opt.optionID, &opt.name, &price); err != nil {
			return nil, err
		}
		opt.priceDelta = utils.NumericToDecimal(price)
		if line := byID[itemID]; line != nil {
			line.options = append(line.options, opt)
		}
	}
	return lines, modRows.Err()
}

// createPreference talks to the gateway under the bounded external-call
// timeout, then records the intent id on the payment row.
func (h *Handler) createPreference(orderID int64, restaurantName string, total decimal.Decimal, externalReference string) (payments.Preference, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.Config.ExternalCallTimeout)
	defer cancel()

	preference, err := h.Gateway.CreatePreference(ctx, payments.PreferenceRequest{
		OrderID:           orderID,
		Title:             fmt.Sprintf("Pedido #%d - %s", orderID, restaurantName),
		Total:             total,
		ExternalReference: externalReference,
		NotificationURL:   h.Config.MercadoPagoWebhookURL,
	})
	if err != nil {
		return payments.Preference{}, err
	}

	if _, err := h.DB.Exec(ctx, `
		update payments set provider_payment_id = $2, updated_at = now() where order_id = $1
	`, orderID, preference.ID); err != nil {
		h.Logger.Error("preference id persist failed", zapError(err))
	}
	return preference, nil
}

// failPayment marks a just-created order's payment as failed after a gateway
// error. The order itself stays pending so the customer can retry payment.
func (h *Handler) failPayment(orderID, customerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), h.Config.ExternalCallTimeout)
	defer cancel()

	if _, err := h.DB.Exec(ctx, `
		update payments set status = $2, updated_at = now() where order_id = $1 and status = $3
	`, orderID, orders.PaymentFailed, orders.PaymentPending); err != nil {
		h.Logger.Error("payment fail persist failed", zapError(err))
	}
	if _, err := orders.SetPaymentStatus(ctx, h.DB, orderID, orders.PaymentPending, orders.PaymentFailed); err != nil {
		h.Logger.Error("order payment status persist failed", zapError(err))
	}

	h.Events.Emit(ctx, []string{ws.UserRoom(customerID)}, events.TypePaymentFailed, map[string]any{
		"orderId": orderID,
	})
}
