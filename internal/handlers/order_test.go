package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/fsm"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// fakeProvider returns a canned verification result and counts how often it
// was asked.
type fakeProvider struct {
	status      services.PaymentStatus
	err         error
	verifyCalls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*services.PaymentIntent, error) {
	return &services.PaymentIntent{Provider: "fake", Reference: uuid.NewString()}, nil
}

func (f *fakeProvider) VerifyPayment(ctx context.Context, reference string) (*services.PaymentStatus, error) {
	f.verifyCalls++
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	status.Reference = reference
	return &status, nil
}

func setupOrderDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentTransaction{},
	))

	// The products table carries Postgres array columns, so it is created by
	// hand here with plain text in their place.
	require.NoError(t, db.Exec(`CREATE TABLE products (
		id text PRIMARY KEY,
		created_at datetime,
		updated_at datetime,
		slug text,
		name text,
		description text,
		price numeric,
		currency text,
		stock integer,
		is_active numeric,
		category_id text,
		subcategory text,
		colors text,
		hero_image text,
		thumbnail text,
		gallery text
	)`).Error)

	return db
}

func orderTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:    "test-secret",
		TokenExpires: time.Hour,
	}
}

func orderApp(db *gorm.DB, cfg *config.Config, provider services.PaymentProvider, mailer *services.Mailer) *fiber.App {
	app := fiber.New()
	h := NewOrderHandler(db, cfg, provider, mailer, zap.NewNop())
	app.Post("/orders", middleware.OptionalAuth(db, cfg), h.CreateOrder)
	app.Put("/orders/:id/status", h.UpdateStatus)
	return app
}

func seedUser(t *testing.T, db *gorm.DB, cfg *config.Config) (*models.User, string) {
	t.Helper()

	user := &models.User{FirstName: "Ada", Email: "ada@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(user).Error)

	token, err := utils.GenerateToken(cfg.JWTSecret, user.ID, cfg.TokenExpires)
	require.NoError(t, err)
	return user, token
}

func seedProduct(t *testing.T, db *gorm.DB, price string, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		Slug:     uuid.NewString(),
		Name:     "Granny Square Tote",
		Price:    decimal.RequireFromString(price),
		Currency: "GBP",
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedCart(t *testing.T, db *gorm.DB, user *models.User, lines ...models.CartItem) *models.Cart {
	t.Helper()

	cart := &models.Cart{UserID: user.ID, Items: lines}
	cart.Recompute()
	require.NoError(t, db.Create(cart).Error)
	return cart
}

func seedTransaction(t *testing.T, db *gorm.DB, amount int64, currency string) string {
	t.Helper()

	ref := uuid.NewString()
	txn := &models.PaymentTransaction{
		Provider:  "fake",
		Reference: ref,
		Amount:    amount,
		Currency:  currency,
		Status:    models.PaymentStatusPending,
	}
	require.NoError(t, db.Create(txn).Error)
	return ref
}

func checkoutPayload(ref string) createOrderRequest {
	return createOrderRequest{
		Shipping: shippingRequest{
			Name:     "Ada Lovelace",
			Address:  "12 Yarn Lane",
			City:     "London",
			Postcode: "N1 9GU",
			Country:  "GB",
		},
		PaymentReference: ref,
	}
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func TestCheckoutSnapshotsCartAndClearsIt(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	user, token := seedUser(t, db, cfg)
	product := seedProduct(t, db, "10.00", 5)
	seedCart(t, db, user, models.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    2,
		UnitPrice:   product.Price,
	})
	ref := seedTransaction(t, db, 2000, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 2000, Currency: "GBP"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	resp := doRequest(t, app, fiber.MethodPost, "/orders", token, checkoutPayload(ref))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// A later catalog price change must not move the order's frozen prices.
	require.NoError(t, db.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("price", decimal.RequireFromString("99.00")).Error)

	var order models.Order
	require.NoError(t, db.Preload("Items").First(&order, "payment_reference = ?", ref).Error)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")),
		"unit price moved to %s", order.Items[0].UnitPrice)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, fsm.StatusPending, order.Status)
	assert.True(t, order.Paid)

	// The cart was consumed by the checkout.
	err := db.First(&models.Cart{}, "user_id = ?", user.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 3, reloaded.Stock)

	var txn models.PaymentTransaction
	require.NoError(t, db.First(&txn, "reference = ?", ref).Error)
	assert.Equal(t, models.PaymentStatusSucceeded, txn.Status)
}

func TestCheckoutAppliesShippingFee(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	cfg.ShippingFee = decimal.RequireFromString("4.99")
	user, token := seedUser(t, db, cfg)
	product := seedProduct(t, db, "25.00", 5)
	seedCart(t, db, user, models.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   product.Price,
	})
	ref := seedTransaction(t, db, 2999, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 2999, Currency: "GBP"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	resp := doRequest(t, app, fiber.MethodPost, "/orders", token, checkoutPayload(ref))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var order models.Order
	require.NoError(t, db.First(&order, "payment_reference = ?", ref).Error)
	assert.True(t, order.ShippingFee.Equal(decimal.RequireFromString("4.99")))
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("29.99")),
		"total %s", order.TotalAmount)
}

func TestCheckoutRejectsReusedPaymentReference(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	user, token := seedUser(t, db, cfg)
	product := seedProduct(t, db, "10.00", 10)
	seedCart(t, db, user, models.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   product.Price,
	})
	ref := seedTransaction(t, db, 1000, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 1000, Currency: "GBP"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	resp := doRequest(t, app, fiber.MethodPost, "/orders", token, checkoutPayload(ref))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Same payment again, fresh cart: the reference is spent.
	seedCart(t, db, user, models.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   product.Price,
	})
	resp = doRequest(t, app, fiber.MethodPost, "/orders", token, checkoutPayload(ref))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Where("payment_reference = ?", ref).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)

	// The schema itself holds the line even if two requests raced past the
	// handler's pre-check.
	dup := models.Order{
		OrderNumber:      generateOrderNumber(),
		Status:           fsm.StatusPending,
		PlacedAt:         time.Now(),
		PaymentReference: ref,
		Paid:             true,
	}
	assert.Error(t, db.Create(&dup).Error)
}

func TestCheckoutRejectsAmountMismatch(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	user, token := seedUser(t, db, cfg)
	product := seedProduct(t, db, "25.00", 5)
	seedCart(t, db, user, models.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   product.Price,
	})
	ref := seedTransaction(t, db, 2500, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 999, Currency: "GBP"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	resp := doRequest(t, app, fiber.MethodPost, "/orders", token, checkoutPayload(ref))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)

	// Nothing was committed: cart and stock are untouched.
	require.NoError(t, db.First(&models.Cart{}, "user_id = ?", user.ID).Error)
	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 5, reloaded.Stock)
}

func TestCheckoutRejectsCurrencyMismatch(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	user, token := seedUser(t, db, cfg)
	product := seedProduct(t, db, "25.00", 5)
	seedCart(t, db, user, models.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   product.Price,
	})
	ref := seedTransaction(t, db, 2500, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 2500, Currency: "USD"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	resp := doRequest(t, app, fiber.MethodPost, "/orders", token, checkoutPayload(ref))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestGuestCheckout(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	product := seedProduct(t, db, "15.00", 4)
	ref := seedTransaction(t, db, 1500, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 1500, Currency: "GBP"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	payload := checkoutPayload(ref)
	payload.GuestName = "Grace Hopper"
	payload.GuestEmail = "grace@example.com"
	payload.Items = []orderItemRequest{{ProductID: product.ID.String(), Quantity: 1}}

	resp := doRequest(t, app, fiber.MethodPost, "/orders", "", payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var order models.Order
	require.NoError(t, db.Preload("Items").First(&order, "payment_reference = ?", ref).Error)
	assert.Nil(t, order.UserID)
	assert.Equal(t, "grace@example.com", order.GuestEmail)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("15.00")))

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 3, reloaded.Stock)
}

func TestGuestCheckoutInsufficientStockSkipsProvider(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	product := seedProduct(t, db, "15.00", 2)
	ref := seedTransaction(t, db, 4500, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 4500, Currency: "GBP"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	payload := checkoutPayload(ref)
	payload.GuestName = "Grace Hopper"
	payload.GuestEmail = "grace@example.com"
	payload.Items = []orderItemRequest{{ProductID: product.ID.String(), Quantity: 3}}

	resp := doRequest(t, app, fiber.MethodPost, "/orders", "", payload)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Zero(t, provider.verifyCalls, "verification must not run for an unfulfillable order")
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	user, token := seedUser(t, db, cfg)
	product := seedProduct(t, db, "10.00", 1)
	// Cart was filled while stock was still available.
	seedCart(t, db, user, models.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    2,
		UnitPrice:   product.Price,
	})
	ref := seedTransaction(t, db, 2000, "GBP")

	provider := &fakeProvider{status: services.PaymentStatus{Paid: true, Amount: 2000, Currency: "GBP"}}
	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, provider, mailer)

	resp := doRequest(t, app, fiber.MethodPost, "/orders", token, checkoutPayload(ref))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)

	require.NoError(t, db.First(&models.Cart{}, "user_id = ?", user.ID).Error)
	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 1, reloaded.Stock)
}

func seedOrder(t *testing.T, db *gorm.DB, status string, paid bool, items ...models.OrderItem) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderNumber:      generateOrderNumber(),
		Status:           status,
		PlacedAt:         time.Now(),
		GuestName:        "Grace Hopper",
		GuestEmail:       "grace@example.com",
		PaymentReference: uuid.NewString(),
		Paid:             paid,
		Items:            items,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestStatusUpdateRepeatedShippedEmailsOnce(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	order := seedOrder(t, db, fsm.StatusProcessing, true)

	mails := make(chan struct{}, 4)
	mailAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mails <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer mailAPI.Close()

	mailer := services.NewMailer(mailAPI.URL, "test-key", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, &fakeProvider{}, mailer)

	resp := doRequest(t, app, fiber.MethodPut, "/orders/"+order.ID.String()+"/status", "",
		updateStatusRequest{Status: fsm.StatusShipped})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	select {
	case <-mails:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a status email after the first transition")
	}

	// Replaying the same transition is a no-op and stays silent.
	resp = doRequest(t, app, fiber.MethodPut, "/orders/"+order.ID.String()+"/status", "",
		updateStatusRequest{Status: fsm.StatusShipped})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	select {
	case <-mails:
		t.Fatal("repeated status update must not send another email")
	case <-time.After(300 * time.Millisecond):
	}

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, fsm.StatusShipped, reloaded.Status)
	assert.NotNil(t, reloaded.ShippedAt)
}

func TestStatusUpdateRejectsIllegalTransition(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	order := seedOrder(t, db, fsm.StatusDelivered, true)

	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, &fakeProvider{}, mailer)

	resp := doRequest(t, app, fiber.MethodPut, "/orders/"+order.ID.String()+"/status", "",
		updateStatusRequest{Status: fsm.StatusProcessing})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = doRequest(t, app, fiber.MethodPut, "/orders/"+order.ID.String()+"/status", "",
		updateStatusRequest{Status: "teleported"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCancelRestocksPaidOrder(t *testing.T) {
	db := setupOrderDB(t)
	cfg := orderTestConfig()
	product := seedProduct(t, db, "10.00", 3)
	order := seedOrder(t, db, fsm.StatusPending, true, models.OrderItem{
		ProductID:   &product.ID,
		ProductName: product.Name,
		Quantity:    2,
		UnitPrice:   product.Price,
		LineTotal:   decimal.RequireFromString("20.00"),
	})

	mailer := services.NewMailer("", "", "shop@example.com", "", zap.NewNop())
	app := orderApp(db, cfg, &fakeProvider{}, mailer)

	resp := doRequest(t, app, fiber.MethodPut, "/orders/"+order.ID.String()+"/status", "",
		updateStatusRequest{Status: fsm.StatusCancelled})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, fsm.StatusCancelled, reloaded.Status)
	assert.NotNil(t, reloaded.CancelledAt)

	var restocked models.Product
	require.NoError(t, db.First(&restocked, "id = ?", product.ID).Error)
	assert.Equal(t, 5, restocked.Stock)
}
