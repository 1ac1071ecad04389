package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, provider services.PaymentProvider, mailer *services.Mailer, logger *zap.Logger) {
	authHandler := handlers.NewAuthHandler(db, cfg, mailer)
	catalogHandler := handlers.NewCatalogHandler(db)
	productHandler := handlers.NewProductHandler(db)
	uploadHandler := handlers.NewUploadHandler(db, cfg.UploadDir)
	cartHandler := handlers.NewCartHandler(db)
	wishlistHandler := handlers.NewWishlistHandler(db)
	orderHandler := handlers.NewOrderHandler(db, cfg, provider, mailer, logger)
	paymentHandler := handlers.NewPaymentHandler(db, provider, logger)
	contactHandler := handlers.NewContactHandler(db, mailer)
	userHandler := handlers.NewUserHandler(db)
	adminHandler := handlers.NewAdminHandler(db)

	requireAuth := middleware.RequireAuth(db, cfg)
	optionalAuth := middleware.OptionalAuth(db, cfg)
	requireAdmin := middleware.RequireAdmin()

	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/verify-email", authHandler.VerifyEmail)
	auth.Post("/forgot-password", authHandler.ForgotPassword)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Get("/me", requireAuth, authHandler.Me)

	// Catalog
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Post("/", requireAuth, requireAdmin, catalogHandler.CreateCategory)
	categories.Put("/:id", requireAuth, requireAdmin, catalogHandler.UpdateCategory)
	categories.Delete("/:id", requireAuth, requireAdmin, catalogHandler.DeleteCategory)

	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Post("/", requireAuth, requireAdmin, productHandler.CreateProduct)
	products.Put("/:id", requireAuth, requireAdmin, productHandler.UpdateProduct)
	products.Delete("/:id", requireAuth, requireAdmin, productHandler.DeleteProduct)
	products.Post("/:id/image", requireAuth, requireAdmin, uploadHandler.UploadProductImage)

	// Cart
	cart := api.Group("/cart", requireAuth)
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:productID", cartHandler.UpdateItem)
	cart.Delete("/items/:productID", cartHandler.RemoveItem)
	cart.Delete("/", cartHandler.ClearCart)

	// Wishlist
	wishlist := api.Group("/wishlist", requireAuth)
	wishlist.Get("/", wishlistHandler.ListWishlist)
	wishlist.Post("/", wishlistHandler.AddToWishlist)
	wishlist.Delete("/:productID", wishlistHandler.RemoveFromWishlist)

	// Payments: optional auth enables guest checkout.
	payments := api.Group("/payments")
	payments.Post("/intent", optionalAuth, paymentHandler.CreateIntent)
	payments.Get("/verify/:reference", paymentHandler.VerifyPayment)

	// Orders
	orders := api.Group("/orders")
	orders.Post("/", optionalAuth, orderHandler.CreateOrder)
	orders.Get("/", requireAuth, orderHandler.ListOrders)
	orders.Get("/:id", requireAuth, orderHandler.GetOrder)

	// Contact form
	contact := api.Group("/contact")
	contact.Post("/", contactHandler.CreateMessage)
	contact.Get("/", requireAuth, requireAdmin, contactHandler.ListMessages)
	contact.Put("/:id/read", requireAuth, requireAdmin, contactHandler.MarkRead)

	// Admin
	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", orderHandler.AdminListOrders)
	admin.Put("/orders/:id/status", orderHandler.UpdateStatus)

	users := api.Group("/users")
	users.Put("/me", requireAuth, userHandler.UpdateProfile)
	users.Get("/", requireAuth, requireAdmin, userHandler.ListUsers)
	users.Get("/:id", requireAuth, requireAdmin, userHandler.GetUser)
	users.Put("/:id/role", requireAuth, requireAdmin, userHandler.UpdateRole)
	users.Delete("/:id", requireAuth, requireAdmin, userHandler.DeleteUser)
}
