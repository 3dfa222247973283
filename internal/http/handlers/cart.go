package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/pricing"
	"delixmi-order-services/internal/utils"
	"delixmi-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxCartQuantity = 99

type cartAddRequest struct {
	ProductID         int64   `json:"productId"`
	Quantity          int32   `json:"quantity"`
	ModifierOptionIDs []int64 `json:"modifierOptionIds"`
}

// CartAdd appends a product (with its selected modifier options) to the
// customer's per-restaurant cart, snapshotting the unit price at this moment.
// An existing line with the identical option set absorbs the quantity instead.
func (h *Handler) CartAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpCartManage, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	var body cartAddRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.ValidationErrors(w, "Invalid request body", nil)
		return
	}
	if body.ProductID <= 0 {
		response.ValidationErrors(w, "productId is required", nil)
		return
	}
	if body.Quantity < 1 || body.Quantity > maxCartQuantity {
		response.ValidationErrors(w, "quantity must be between 1 and 99", nil)
		return
	}

	var (
		productName  string
		productPrice pgtype.Numeric
		isAvailable  bool
		restaurantID int64
		restStatus   string
	)
	err := h.DB.QueryRow(ctx, `
		select p.name, p.price, p.is_available, p.restaurant_id, r.status
		from products p
		join restaurants r on r.id = p.restaurant_id
		where p.id = $1
	`, body.ProductID).Scan(&productName, &productPrice, &isAvailable, &restaurantID, &restStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
			return
		}
		h.Logger.Error("cart add product lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}
	if !isAvailable || restStatus != "active" {
		response.Error(w, http.StatusConflict, "PRODUCT_UNAVAILABLE", "Product is not available right now")
		return
	}

	optionIDs := dedupeInt64(body.ModifierOptionIDs)
	deltas, selectedByGroup, err := h.loadSelectedOptions(ctx, body.ProductID, restaurantID, optionIDs)
	if err != nil {
		if err == errOptionMismatch {
			response.ValidationErrors(w, "One or more modifier options do not belong to this product", nil)
			return
		}
		h.Logger.Error("cart add option lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}
	if err := h.validateGroupSelections(ctx, body.ProductID, selectedByGroup); err != nil {
		if ve, ok := err.(groupSelectionError); ok {
			response.ValidationErrors(w, ve.message, nil)
			return
		}
		h.Logger.Error("cart add group validation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	priceAtAdd, err := pricing.LineTotal(utils.NumericToDecimal(productPrice), deltas)
	if err != nil {
		response.ValidationErrors(w, "Computed item price is invalid", nil)
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("cart add begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cartID int64
	if err := tx.QueryRow(ctx, `
		insert into carts (user_id, restaurant_id, created_at, updated_at)
		values ($1, $2, now(), now())
		on conflict (user_id, restaurant_id) do update set updated_at = now()
		returning id
	`, principal.UserID, restaurantID).Scan(&cartID); err != nil {
		h.Logger.Error("cart upsert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	existingID, existingQty, err := findCartLine(ctx, tx, cartID, body.ProductID, optionIDs)
	if err != nil {
		h.Logger.Error("cart line lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	itemID := existingID
	quantity := body.Quantity
	if existingID != 0 {
		quantity = existingQty + body.Quantity
		if quantity > maxCartQuantity {
			quantity = maxCartQuantity
		}
		if _, err := tx.Exec(ctx, `
			update cart_items set quantity = $2, updated_at = now() where id = $1
		`, existingID, quantity); err != nil {
			h.Logger.Error("cart line update failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
			return
		}
	} else {
		if err := tx.QueryRow(ctx, `
			insert into cart_items (cart_id, product_id, quantity, price_at_add, created_at, updated_at)
			values ($1, $2, $3, $4, now(), now())
			returning id
		`, cartID, body.ProductID, quantity, utils.Money(priceAtAdd)).Scan(&itemID); err != nil {
			h.Logger.Error("cart line insert failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
			return
		}
		for _, optionID := range optionIDs {
			if _, err := tx.Exec(ctx, `
				insert into cart_item_modifiers (cart_item_id, modifier_option_id)
				values ($1, $2)
			`, itemID, optionID); err != nil {
				h.Logger.Error("cart modifier insert failed", zapError(err))
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
				return
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("cart add commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	response.Created(w, "Item added to cart", map[string]any{
		"cartId":       cartID,
		"itemId":       itemID,
		"productId":    body.ProductID,
		"productName":  productName,
		"quantity":     quantity,
		"priceAtAdd":   utils.Money(priceAtAdd),
		"restaurantId": restaurantID,
	})
}

type cartUpdateRequest struct {
	Quantity *int32 `json:"quantity"`
}

// CartUpdateQuantity sets a line's quantity; zero removes the line.
func (h *Handler) CartUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpCartManage, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.ValidationErrors(w, "Valid itemId is required", nil)
		return
	}

	var body cartUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity == nil {
		response.ValidationErrors(w, "quantity is required", nil)
		return
	}
	quantity := *body.Quantity
	if quantity < 0 || quantity > maxCartQuantity {
		response.ValidationErrors(w, "quantity must be between 0 and 99", nil)
		return
	}

	cartID, err := h.ownedCartItem(ctx, itemID, principal.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "CART_ITEM_NOT_FOUND", "Cart item not found")
			return
		}
		h.Logger.Error("cart item lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update cart")
		return
	}

	if quantity == 0 {
		if err := h.deleteCartLine(ctx, itemID, cartID); err != nil {
			h.Logger.Error("cart line delete failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update cart")
			return
		}
		response.Success(w, "Item removed from cart", map[string]any{"itemId": itemID})
		return
	}

	if _, err := h.DB.Exec(ctx, `
		update cart_items set quantity = $2, updated_at = now() where id = $1
	`, itemID, quantity); err != nil {
		h.Logger.Error("cart line update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update cart")
		return
	}

	response.Success(w, "Cart updated", map[string]any{"itemId": itemID, "quantity": quantity})
}

func (h *Handler) CartRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpCartManage, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.ValidationErrors(w, "Valid itemId is required", nil)
		return
	}

	cartID, err := h.ownedCartItem(ctx, itemID, principal.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "CART_ITEM_NOT_FOUND", "Cart item not found")
			return
		}
		h.Logger.Error("cart item lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}

	if err := h.deleteCartLine(ctx, itemID, cartID); err != nil {
		h.Logger.Error("cart line delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}

	response.Success(w, "Item removed from cart", map[string]any{"itemId": itemID})
}

// CartClear wipes every cart of the user atomically, or just one restaurant's
// cart when the restaurantId query is present.
func (h *Handler) CartClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpCartManage, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	var restaurantID int64
	if raw := r.URL.Query().Get("restaurantId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			response.ValidationErrors(w, "restaurantId must be a positive integer", nil)
			return
		}
		restaurantID = parsed
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("cart clear begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear cart")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cartFilter := `select id from carts where user_id = $1`
	args := []any{principal.UserID}
	if restaurantID != 0 {
		cartFilter += ` and restaurant_id = $2`
		args = append(args, restaurantID)
	}

	if _, err := tx.Exec(ctx, `
		delete from cart_item_modifiers
		where cart_item_id in (select id from cart_items where cart_id in (`+cartFilter+`))
	`, args...); err != nil {
		h.Logger.Error("cart clear modifiers failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear cart")
		return
	}
	if _, err := tx.Exec(ctx, `
		delete from cart_items where cart_id in (`+cartFilter+`)
	`, args...); err != nil {
		h.Logger.Error("cart clear items failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear cart")
		return
	}
	tag, err := tx.Exec(ctx, `delete from carts where id in (`+cartFilter+`)`, args...)
	if err != nil {
		h.Logger.Error("cart clear failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear cart")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("cart clear commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear cart")
		return
	}

	response.Success(w, "Cart cleared", map[string]any{"cartsRemoved": tag.RowsAffected()})
}

// CartList returns the user's carts grouped by restaurant with per-line
// modifiers, a subtotal, and the item count.
func (h *Handler) CartList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpCartManage, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select c.id, c.restaurant_id, r.name,
		       ci.id, ci.product_id, p.name, ci.quantity, ci.price_at_add
		from carts c
		join restaurants r on r.id = c.restaurant_id
		left join cart_items ci on ci.cart_id = c.id
		left join products p on p.id = ci.product_id
		where c.user_id = $1
		order by c.id, ci.id
	`, principal.UserID)
	if err != nil {
		h.Logger.Error("cart list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve cart")
		return
	}
	defer rows.Close()

	type cartLine struct {
		ID         int64            `json:"itemId"`
		ProductID  int64            `json:"productId"`
		Name       string           `json:"productName"`
		Quantity   int32            `json:"quantity"`
		PriceAtAdd string           `json:"priceAtAdd"`
		LineTotal  string           `json:"lineTotal"`
		Modifiers  []map[string]any `json:"modifiers"`
	}
	type cartView struct {
		CartID         int64       `json:"cartId"`
		RestaurantID   int64       `json:"restaurantId"`
		RestaurantName string      `json:"restaurantName"`
		Items          []*cartLine `json:"items"`
		Subtotal       string      `json:"subtotal"`
		ItemCount      int32       `json:"itemCount"`
	}

	carts := make([]*cartView, 0)
	byCart := make(map[int64]*cartView)
	lineByID := make(map[int64]*cartLine)
	itemIDs := make([]int64, 0)
	subtotals := make(map[int64]decimal.Decimal)

	for rows.Next() {
		var (
			cartID       int64
			restaurantID int64
			restName     string
			itemID       pgtype.Int8
			productID    pgtype.Int8
			productName  pgtype.Text
			quantity     pgtype.Int4
			priceAtAdd   pgtype.Numeric
		)
		if err := rows.Scan(&cartID, &restaurantID, &restName, &itemID, &productID, &productName, &quantity, &priceAtAdd); err != nil {
			h.Logger.Error("cart list scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve cart")
			return
		}

		view := byCart[cartID]
		if view == nil {
			view = &cartView{CartID: cartID, RestaurantID: restaurantID, RestaurantName: restName, Items: make([]*cartLine, 0)}
			byCart[cartID] = view
			carts = append(carts, view)
			subtotals[cartID] = decimal.Zero
		}
		if !itemID.Valid {
			continue
		}

		price := utils.NumericToDecimal(priceAtAdd)
		lineTotal := price.Mul(decimal.NewFromInt32(quantity.Int32))
		line := &cartLine{
			ID:         itemID.Int64,
			ProductID:  productID.Int64,
			Name:       productName.String,
			Quantity:   quantity.Int32,
			PriceAtAdd: utils.Money(price),
			LineTotal:  utils.Money(lineTotal),
			Modifiers:  make([]map[string]any, 0),
		}
		view.Items = append(view.Items, line)
		view.ItemCount += quantity.Int32
		subtotals[cartID] = subtotals[cartID].Add(lineTotal)
		lineByID[itemID.Int64] = line
		itemIDs = append(itemIDs, itemID.Int64)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("cart list rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve cart")
		return
	}

	if len(itemIDs) > 0 {
		modRows, err := h.DB.Query(ctx, `
			select cim.cart_item_id, mo.id, mo.name, mo.price
			from cart_item_modifiers cim
			join modifier_options mo on mo.id = cim.modifier_option_id
			where cim.cart_item_id = any($1)
			order by cim.cart_item_id, mo.id
		`, itemIDs)
		if err != nil {
			h.Logger.Error("cart modifiers query failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve cart")
			return
		}
		defer modRows.Close()
		for modRows.Next() {
			var (
				itemID     int64
				optionID   int64
				optionName string
				price      pgtype.Numeric
			)
			if err := modRows.Scan(&itemID, &optionID, &optionName, &price); err != nil {
				h.Logger.Error("cart modifiers scan failed", zapError(err))
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve cart")
				return
			}
			if line := lineByID[itemID]; line != nil {
				line.Modifiers = append(line.Modifiers, map[string]any{
					"optionId":   optionID,
					"name":       optionName,
					"priceDelta": utils.Money(utils.NumericToDecimal(price)),
				})
			}
		}
		if err := modRows.Err(); err != nil {
			h.Logger.Error("cart modifiers rows failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve cart")
			return
		}
	}

	for _, view := range carts {
		view.Subtotal = utils.Money(pricing.Round2(subtotals[view.CartID]))
	}

	response.Success(w, "Cart retrieved successfully", map[string]any{"carts": carts})
}

var errOptionMismatch = errors.New("option does not belong to product")

type groupSelectionError struct{ message string }

func (e groupSelectionError) Error() string { return e.message }

// loadSelectedOptions resolves the selected option rows and returns their
// price deltas plus the per-group selection counts. Every option must belong
// to a group attached to the product within the same restaurant.
func (h *Handler) loadSelectedOptions(ctx context.Context, productID, restaurantID int64, optionIDs []int64) ([]decimal.Decimal, map[int64]int, error) {
	deltas := make([]decimal.Decimal, 0, len(optionIDs))
	selectedByGroup := make(map[int64]int)
	if len(optionIDs) == 0 {
		return deltas, selectedByGroup, nil
	}

	rows, err := h.DB.Query(ctx, `
		select mo.id, mo.price, mg.id
		from modifier_options mo
		join modifier_groups mg on mg.id = mo.modifier_group_id
		join product_modifier_groups pmg on pmg.modifier_group_id = mg.id and pmg.product_id = $1
		where mo.id = any($2) and mg.restaurant_id = $3
	`, productID, optionIDs, restaurantID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	found := make(map[int64]struct{})
	for rows.Next() {
		var (
			optionID int64
			price    pgtype.Numeric
			groupID  int64
		)
		if err := rows.Scan(&optionID, &price, &groupID); err != nil {
			return nil, nil, err
		}
		found[optionID] = struct{}{}
		deltas = append(deltas, utils.NumericToDecimal(price))
		selectedByGroup[groupID]++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(found) != len(optionIDs) {
		return nil, nil, errOptionMismatch
	}
	return deltas, selectedByGroup, nil
}

// validateGroupSelections enforces min/max selection per modifier group: every
// group with selections stays within bounds, and required groups (min > 0)
// cannot be skipped.
func (h *Handler) validateGroupSelections(ctx context.Context, productID int64, selectedByGroup map[int64]int) error {
	rows, err := h.DB.Query(ctx, `
		select mg.id, mg.name, mg.min_selection, mg.max_selection
		from modifier_groups mg
		join product_modifier_groups pmg on pmg.modifier_group_id = mg.id
		where pmg.product_id = $1
	`, productID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			groupID  int64
			name     string
			minSel   int
			maxSel   int
		)
		if err := rows.Scan(&groupID, &name, &minSel, &maxSel); err != nil {
			return err
		}
		selected := selectedByGroup[groupID]
		if selected == 0 && minSel == 0 {
			continue
		}
		if selected < minSel {
			return groupSelectionError{message: "Modifier group \"" + name + "\" requires at least " + strconv.Itoa(minSel) + " selection(s)"}
		}
		if selected > maxSel {
			return groupSelectionError{message: "Modifier group \"" + name + "\" allows at most " + strconv.Itoa(maxSel) + " selection(s)"}
		}
	}
	return rows.Err()
}

// findCartLine locates an existing cart line holding the same product with the
// identical modifier option set.
func findCartLine(ctx context.Context, tx pgx.Tx, cartID, productID int64, optionIDs []int64) (int64, int32, error) {
	rows, err := tx.Query(ctx, `
		select ci.id, ci.quantity,
		       coalesce(array_agg(cim.modifier_option_id) filter (where cim.modifier_option_id is not null), '{}')
		from cart_items ci
		left join cart_item_modifiers cim on cim.cart_item_id = ci.id
		where ci.cart_id = $1 and ci.product_id = $2
		group by ci.id, ci.quantity
	`, cartID, productID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	want := append([]int64(nil), optionIDs...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	for rows.Next() {
		var (
			itemID   int64
			quantity int32
			options  []int64
		)
		if err := rows.Scan(&itemID, &quantity, &options); err != nil {
			return 0, 0, err
		}
		sort.Slice(options, func(i, j int) bool { return options[i] < options[j] })
		if int64SlicesEqual(want, options) {
			return itemID, quantity, nil
		}
	}
	return 0, 0, rows.Err()
}

func (h *Handler) ownedCartItem(ctx context.Context, itemID, userID int64) (int64, error) {
	var cartID int64
	err := h.DB.QueryRow(ctx, `
		select c.id
		from cart_items ci
		join carts c on c.id = ci.cart_id
		where ci.id = $1 and c.user_id = $2
	`, itemID, userID).Scan(&cartID)
	return cartID, err
}

// deleteCartLine removes a line and its modifiers; an emptied cart row goes
// with it.
func (h *Handler) deleteCartLine(ctx context.Context, itemID, cartID int64) error {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `delete from cart_item_modifiers where cart_item_id = $1`, itemID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from cart_items where id = $1`, itemID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		delete from carts c where c.id = $1
		  and not exists (select 1 from cart_items ci where ci.cart_id = c.id)
	`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func dedupeInt64(values []int64) []int64 {
	out := make([]int64, 0, len(values))
	seen := make(map[int64]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func int64SlicesEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
