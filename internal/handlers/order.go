package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/fsm"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// errInsufficientStock aborts order creation when a guarded stock decrement
// matches no row.
var errInsufficientStock = errors.New("insufficient stock")

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	provider services.PaymentProvider
	mailer   *services.Mailer
	log      *zap.Logger
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, cfg *config.Config, provider services.PaymentProvider, mailer *services.Mailer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{db: db, cfg: cfg, provider: provider, mailer: mailer, log: logger}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
}

type shippingRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type createOrderRequest struct {
	// Items are only consulted for guest checkout; authenticated users'
	// orders snapshot their server-side cart.
	Items            []orderItemRequest `json:"items"`
	Shipping         shippingRequest    `json:"shipping"`
	GuestName        string             `json:"guest_name"`
	GuestEmail       string             `json:"guest_email"`
	PaymentReference string             `json:"payment_reference"`
	Notes            string             `json:"notes"`
}

// CreateOrder converts a confirmed payment plus a cart snapshot into an
// immutable order. Order persistence, guarded stock decrements, and cart
// deletion run in one database transaction; the confirmation email is
// fire-and-forget after commit.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.PaymentReference == "" {
		return fiber.NewError(fiber.StatusBadRequest, "payment reference is required")
	}
	if req.Shipping.Address == "" || req.Shipping.City == "" {
		return fiber.NewError(fiber.StatusBadRequest, "shipping address is required")
	}

	user, authenticated := middleware.CurrentUser(c)
	if !authenticated && (req.GuestName == "" || req.GuestEmail == "") {
		return fiber.NewError(fiber.StatusBadRequest, "guest name and email are required")
	}

	// Build the item snapshot before touching the payment so invalid
	// requests never reach the provider round-trip below.
	items, cart, err := h.buildItems(user, req.Items)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "order must contain at least one item")
	}

	txn, status, err := h.confirmPayment(c.Context(), req.PaymentReference)
	if err != nil {
		return err
	}

	order := models.Order{
		OrderNumber:      generateOrderNumber(),
		Status:           fsm.StatusPending,
		PlacedAt:         time.Now(),
		Currency:         txn.Currency,
		ShippingName:     req.Shipping.Name,
		ShippingPhone:    req.Shipping.Phone,
		ShippingAddress:  req.Shipping.Address,
		ShippingCity:     req.Shipping.City,
		ShippingPostcode: req.Shipping.Postcode,
		ShippingCountry:  req.Shipping.Country,
		PaymentProvider:  txn.Provider,
		PaymentReference: txn.Reference,
		Paid:             true,
		Items:            items,
	}
	if authenticated {
		order.UserID = &user.ID
	} else {
		order.GuestName = req.GuestName
		order.GuestEmail = strings.TrimSpace(req.GuestEmail)
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	order.Subtotal = subtotal
	order.ShippingFee = h.cfg.ShippingFee
	order.TotalAmount = subtotal.Add(order.ShippingFee)

	// The provider reported what was actually charged; a mismatched total
	// means the cart changed between intent and confirmation.
	if minorUnits(order.TotalAmount) != status.Amount {
		return fiber.NewError(fiber.StatusConflict, "paid amount does not match order total")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, item := range order.Items {
			if item.ProductID == nil {
				continue
			}
			result := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", *item.ProductID, item.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errInsufficientStock
			}
		}

		if cart != nil {
			if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(cart).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, errInsufficientStock) {
			return fiber.NewError(fiber.StatusConflict, "insufficient stock for one or more items")
		}
		// The unique index on payment_reference is the authoritative guard;
		// a concurrent checkout that slipped past confirmPayment lands here.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "payment already used for an order")
		}
		return err
	}

	metrics.OrdersCreated.Inc()
	if authenticated {
		order.User = user
	}
	h.mailer.SendOrderConfirmation(&order)
	h.log.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("provider", order.PaymentProvider),
		zap.String("total", order.TotalAmount.String()))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           order.ID,
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"placed_at":    order.PlacedAt,
			"total":        order.TotalAmount,
			"currency":     order.Currency,
		},
	})
}

// buildItems snapshots the authenticated user's cart, or prices the request
// items from the catalog for guests. Prices are frozen here and never change
// with later catalog edits.
func (h *OrderHandler) buildItems(user *models.User, reqItems []orderItemRequest) ([]models.OrderItem, *models.Cart, error) {
	if user != nil {
		var cart models.Cart
		err := h.db.Preload("Items").Where("user_id = ?", user.ID).First(&cart).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, fiber.NewError(fiber.StatusBadRequest, "cart is empty")
			}
			return nil, nil, err
		}

		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			productID := line.ProductID
			items = append(items, models.OrderItem{
				ProductID:   &productID,
				ProductName: line.ProductName,
				Color:       line.Color,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				LineTotal:   line.LineTotal(),
			})
		}
		return items, &cart, nil
	}

	items := make([]models.OrderItem, 0, len(reqItems))
	for _, reqItem := range reqItems {
		productID, err := uuid.Parse(reqItem.ProductID)
		if err != nil {
			return nil, nil, fiber.NewError(fiber.StatusBadRequest, "invalid product id")
		}
		if reqItem.Quantity <= 0 {
			return nil, nil, fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
		}

		var product models.Product
		if err := h.db.First(&product, "id = ? AND is_active = ?", productID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, fiber.NewError(fiber.StatusNotFound, "product not found")
			}
			return nil, nil, err
		}

		// Fail before the provider round-trip; the transaction's guarded
		// decrement still has the final word.
		if !product.InStock(reqItem.Quantity) {
			return nil, nil, fiber.NewError(fiber.StatusConflict, "insufficient stock for one or more items")
		}

		line := models.CartItem{Quantity: reqItem.Quantity, UnitPrice: product.Price}
		items = append(items, models.OrderItem{
			ProductID:   &product.ID,
			ProductName: product.Name,
			Color:       reqItem.Color,
			Quantity:    reqItem.Quantity,
			UnitPrice:   product.Price,
			LineTotal:   line.LineTotal(),
		})
	}
	return items, nil, nil
}

// confirmPayment verifies the reference with the provider and marks the
// stored transaction succeeded. An already-consumed reference is rejected so
// one payment cannot back two orders.
func (h *OrderHandler) confirmPayment(ctx context.Context, reference string) (*models.PaymentTransaction, *services.PaymentStatus, error) {
	var txn models.PaymentTransaction
	if err := h.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fiber.NewError(fiber.StatusNotFound, "payment transaction not found")
		}
		return nil, nil, err
	}

	if txn.Status == models.PaymentStatusSucceeded {
		var existing int64
		if err := h.db.Model(&models.Order{}).Where("payment_reference = ?", reference).Count(&existing).Error; err != nil {
			return nil, nil, err
		}
		if existing > 0 {
			return nil, nil, fiber.NewError(fiber.StatusConflict, "payment already used for an order")
		}
	}

	status, err := h.provider.VerifyPayment(ctx, reference)
	if err != nil {
		h.log.Error("payment verification failed", zap.String("reference", reference), zap.Error(err))
		return nil, nil, fiber.NewError(fiber.StatusBadGateway, "payment verification failed")
	}

	if !strings.EqualFold(status.Currency, txn.Currency) {
		return nil, nil, fiber.NewError(fiber.StatusConflict, "paid currency does not match the payment intent")
	}

	outcome := models.PaymentStatusFailed
	if status.Paid {
		outcome = models.PaymentStatusSucceeded
	}
	metrics.PaymentsVerified.WithLabelValues(h.provider.Name(), outcome).Inc()

	if !status.Paid {
		if err := h.db.Model(&txn).Update("status", models.PaymentStatusFailed).Error; err != nil {
			return nil, nil, err
		}
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "payment has not succeeded")
	}

	now := time.Now()
	if err := h.db.Model(&txn).Updates(map[string]any{
		"status":       models.PaymentStatusSucceeded,
		"confirmed_at": &now,
	}).Error; err != nil {
		return nil, nil, err
	}
	txn.Status = models.PaymentStatusSucceeded

	return &txn, status, nil
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order owned by the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// AdminListOrders returns all orders with optional status filter. Admin only.
func (h *OrderHandler) AdminListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves an order through the lifecycle. Illegal transitions are
// rejected; repeating the current status is an idempotent no-op, so a double
// "shipped" request produces one email, not two. Cancelling a paid order
// restocks its items.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var order models.Order
	if err := h.db.Preload("Items").Preload("User").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if err := fsm.Validate(order.Status, req.Status); err != nil {
		if errors.Is(err, fsm.ErrUnknownStatus) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown status")
		}
		return fiber.NewError(fiber.StatusConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, req.Status))
	}

	if order.Status == req.Status {
		return c.JSON(fiber.Map{"success": true, "data": order})
	}

	now := time.Now()
	updates := map[string]any{"status": req.Status}
	switch req.Status {
	case fsm.StatusShipped:
		updates["shipped_at"] = &now
	case fsm.StatusDelivered:
		updates["delivered_at"] = &now
	case fsm.StatusCancelled:
		updates["cancelled_at"] = &now
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}

		if req.Status == fsm.StatusCancelled && order.Paid {
			for _, item := range order.Items {
				if item.ProductID == nil {
					continue
				}
				if err := tx.Model(&models.Product{}).
					Where("id = ?", *item.ProductID).
					UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	order.Status = req.Status
	if fsm.NotifiesCustomer(req.Status) {
		h.mailer.SendOrderStatus(&order)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// generateOrderNumber combines a timestamp with a random suffix so two orders
// placed in the same instant still get distinct numbers.
func generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("#%d-%s", time.Now().UnixNano()%1000000000, suffix)
}
