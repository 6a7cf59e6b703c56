package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/config"
	"github.com/jamolstroy/jamolstroy-service/internal/core/addresses"
	"github.com/jamolstroy/jamolstroy-service/internal/core/auth"
	"github.com/jamolstroy/jamolstroy-service/internal/core/cart"
	"github.com/jamolstroy/jamolstroy-service/internal/core/catalog"
	"github.com/jamolstroy/jamolstroy-service/internal/core/orders"
	"github.com/jamolstroy/jamolstroy-service/internal/core/reviews"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
	"github.com/jamolstroy/jamolstroy-service/internal/core/workers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogfiber "github.com/samber/slog-fiber"
)

const userIDHeader = "X-User-ID"

func initGlobalMiddlewares(app *fiber.App, cfg *config.Config) {
	app.Use(
		compress.New(compress.Config{
			Level: compress.LevelDefault,
		}),

		slogfiber.NewWithFilters(slog.Default(), slogfiber.IgnorePath("/health")),

		cors.New(cors.Config{
			AllowOrigins: "*",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID",
			AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		}),

		favicon.New(),
		limiter.New(limiter.Config{
			Max:               cfg.RateLimitMax,
			Expiration:        time.Duration(cfg.RateLimitWindow) * time.Second,
			LimiterMiddleware: limiter.SlidingWindow{},
		}),
	)

	app.Use(otelfiber.Middleware())
}

// requireUser resolves the authenticated account from the X-User-ID header.
// The gateway terminates real authentication; this service only needs the
// account identity it forwarded.
func (s *Server) requireUser(c *fiber.Ctx) error {
	raw := c.Get(userIDHeader)
	if raw == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user identity"})
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid user identity"})
	}

	c.Locals("userID", userID)
	return c.Next()
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user identity"})
	}

	user, err := s.usersService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve user"})
	}
	if user == nil || !user.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
	}

	return c.Next()
}

func currentUserID(c *fiber.Ctx) uuid.UUID {
	userID, _ := c.Locals("userID").(uuid.UUID)
	return userID
}

func (s *Server) registerHttpRoutes() {
	app := s.app

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "timestamp": time.Now().Unix()})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")

	// Telegram login flow
	authRoutes := v1.Group("/auth/telegram")
	authRoutes.Post("/sessions", s.handleCreateLoginSession)
	authRoutes.Get("/sessions/:token", s.handlePollLoginSession)

	// Catalog
	v1.Get("/categories", s.handleListCategories)
	v1.Get("/products", s.handleListProducts)
	v1.Get("/products/search", s.handleSearchProducts)
	v1.Get("/products/popular", s.handleListPopularProducts)
	v1.Get("/products/:id", s.handleGetProduct)
	v1.Get("/products/:id/reviews", s.handleListReviews)
	v1.Get("/products/:id/reviews/summary", s.handleReviewSummary)

	// Workers marketplace
	v1.Get("/workers", s.handleListWorkers)
	v1.Get("/workers/professions", s.handleListProfessions)
	v1.Get("/workers/:id", s.handleGetWorker)

	// Authenticated storefront surface
	userRoutes := v1.Group("", s.requireUser)
	userRoutes.Get("/me", s.handleGetProfile)
	userRoutes.Put("/me", s.handleUpdateProfile)

	userRoutes.Get("/cart", s.handleGetCart)
	userRoutes.Post("/cart/items", s.handleAddCartItem)
	userRoutes.Put("/cart/items/:productId", s.handleSetCartQuantity)
	userRoutes.Delete("/cart/items/:productId", s.handleRemoveCartItem)
	userRoutes.Delete("/cart", s.handleClearCart)

	userRoutes.Post("/orders", s.handlePlaceOrder)
	userRoutes.Get("/orders", s.handleListOrders)
	userRoutes.Get("/orders/:id", s.handleGetOrder)
	userRoutes.Post("/orders/:id/cancel", s.handleCancelOrder)

	userRoutes.Get("/addresses", s.handleListAddresses)
	userRoutes.Post("/addresses", s.handleCreateAddress)
	userRoutes.Put("/addresses/:id/default", s.handleSetDefaultAddress)
	userRoutes.Delete("/addresses/:id", s.handleDeleteAddress)

	userRoutes.Post("/products/:id/reviews", s.handleSubmitReview)
	userRoutes.Delete("/products/:id/reviews", s.handleDeleteReview)

	// Admin surface
	adminRoutes := v1.Group("/admin", s.requireUser, s.requireAdmin)
	adminRoutes.Post("/products", s.handleCreateProduct)
	adminRoutes.Put("/products/:id/stock", s.handleSetProductStock)
	adminRoutes.Post("/products/:id/image", s.handleUploadProductImage)
	adminRoutes.Get("/orders", s.handleListAllOrders)
	adminRoutes.Get("/users", s.handleListUsers)
	adminRoutes.Post("/orders/:id/advance", s.handleAdvanceOrder)
	adminRoutes.Post("/workers", s.handleCreateWorker)
	adminRoutes.Put("/workers/:id", s.handleUpdateWorker)
	adminRoutes.Delete("/workers/:id", s.handleDeleteWorker)
	adminRoutes.Post("/workers/:id/photo", s.handleUploadWorkerPhoto)
}

func (s *Server) handleListUsers(c *fiber.Ctx) error {
	userList, err := s.usersService.GetAllUsers(c.UserContext())
	if err != nil {
		return internalError(c, "failed to list users", err)
	}
	return c.JSON(fiber.Map{"users": userList})
}

func (s *Server) handleCreateLoginSession(c *fiber.Ctx) error {
	var body struct {
		ClientID string `json:"client_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	result, err := s.authService.Create(c.UserContext(), body.ClientID)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidClientID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid client_id"})
		}
		slog.Error("Failed to create login session", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create login session"})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (s *Server) handlePollLoginSession(c *fiber.Ctx) error {
	result, err := s.authService.Poll(c.UserContext(), c.Params("token"))
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "login session not found"})
		}
		slog.Error("Failed to poll login session", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to poll login session"})
	}

	return c.JSON(result)
}

func (s *Server) handleListCategories(c *fiber.Ctx) error {
	categories, err := s.catalogService.ListCategories(c.UserContext())
	if err != nil {
		return internalError(c, "failed to list categories", err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (s *Server) handleListProducts(c *fiber.Ctx) error {
	var categoryID *uuid.UUID
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid category_id"})
		}
		categoryID = &id
	}

	products, err := s.catalogService.ListProducts(c.UserContext(), categoryID)
	if err != nil {
		return internalError(c, "failed to list products", err)
	}
	return c.JSON(fiber.Map{"products": products})
}

func (s *Server) handleSearchProducts(c *fiber.Ctx) error {
	term := c.Query("q")
	if term == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing query parameter q"})
	}

	products, err := s.catalogService.SearchProducts(c.UserContext(), term)
	if err != nil {
		return internalError(c, "failed to search products", err)
	}
	return c.JSON(fiber.Map{"products": products})
}

func (s *Server) handleListPopularProducts(c *fiber.Ctx) error {
	products, err := s.catalogService.ListPopularProducts(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		return internalError(c, "failed to list popular products", err)
	}
	return c.JSON(fiber.Map{"products": products})
}

func (s *Server) handleGetProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	product, err := s.catalogService.GetProductByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return internalError(c, "failed to get product", err)
	}
	return c.JSON(product)
}

func (s *Server) handleListReviews(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	list, err := s.reviewsService.ListByProduct(c.UserContext(), productID)
	if err != nil {
		return internalError(c, "failed to list reviews", err)
	}
	return c.JSON(fiber.Map{"reviews": list})
}

func (s *Server) handleReviewSummary(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	summary, err := s.reviewsService.Summarize(c.UserContext(), productID)
	if err != nil {
		return internalError(c, "failed to summarize reviews", err)
	}
	return c.JSON(summary)
}

func (s *Server) handleListWorkers(c *fiber.Ctx) error {
	filter := workers.Filter{
		Profession:    c.Query("profession"),
		OnlyAvailable: c.QueryBool("available"),
	}

	list, err := s.workersService.ListWorkers(c.UserContext(), filter)
	if err != nil {
		return internalError(c, "failed to list workers", err)
	}
	return c.JSON(fiber.Map{"workers": list})
}

func (s *Server) handleListProfessions(c *fiber.Ctx) error {
	professions, err := s.workersService.ListProfessions(c.UserContext())
	if err != nil {
		return internalError(c, "failed to list professions", err)
	}
	return c.JSON(fiber.Map{"professions": professions})
}

func (s *Server) handleGetWorker(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	worker, err := s.workersService.GetWorkerByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, workers.ErrWorkerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
		}
		return internalError(c, "failed to get worker", err)
	}
	return c.JSON(worker)
}

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	user, err := s.usersService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return internalError(c, "failed to get profile", err)
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	return c.JSON(user)
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var body struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Phone     *string `json:"phone"`
		Locale    *string `json:"locale"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	user, err := s.usersService.UpdateProfile(c.UserContext(), currentUserID(c), users.ProfileUpdate{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Phone:     body.Phone,
		Locale:    body.Locale,
	})
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return internalError(c, "failed to update profile", err)
	}
	return c.JSON(user)
}

func (s *Server) handleGetCart(c *fiber.Ctx) error {
	userCart, err := s.cartService.GetCart(c.UserContext(), currentUserID(c))
	if err != nil {
		return internalError(c, "failed to get cart", err)
	}
	return c.JSON(userCart)
}

func (s *Server) handleAddCartItem(c *fiber.Ctx) error {
	var body struct {
		ProductID uuid.UUID `json:"product_id"`
		Quantity  int       `json:"quantity"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Quantity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must be positive"})
	}

	if _, err := s.catalogService.GetProductByID(c.UserContext(), body.ProductID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return internalError(c, "failed to verify product", err)
	}

	if err := s.cartService.AddItem(c.UserContext(), currentUserID(c), body.ProductID, body.Quantity); err != nil {
		return internalError(c, "failed to add cart item", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSetCartQuantity(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Quantity < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must not be negative"})
	}

	if err := s.cartService.SetQuantity(c.UserContext(), currentUserID(c), productID, body.Quantity); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cart item not found"})
		}
		return internalError(c, "failed to update cart item", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleRemoveCartItem(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	if err := s.cartService.RemoveItem(c.UserContext(), currentUserID(c), productID); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cart item not found"})
		}
		return internalError(c, "failed to remove cart item", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleClearCart(c *fiber.Ctx) error {
	if err := s.cartService.Clear(c.UserContext(), currentUserID(c)); err != nil {
		return internalError(c, "failed to clear cart", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePlaceOrder(c *fiber.Ctx) error {
	var body struct {
		AddressID *uuid.UUID `json:"address_id"`
		Comment   *string    `json:"comment"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	order, err := s.ordersService.PlaceOrder(c.UserContext(), orders.PlaceOrderRequest{
		UserID:    currentUserID(c),
		AddressID: body.AddressID,
		Comment:   body.Comment,
	})
	if err != nil {
		if errors.Is(err, orders.ErrEmptyCart) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "cart is empty"})
		}
		return internalError(c, "failed to place order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (s *Server) handleListOrders(c *fiber.Ctx) error {
	list, err := s.ordersService.ListOrders(c.UserContext(), currentUserID(c))
	if err != nil {
		return internalError(c, "failed to list orders", err)
	}
	return c.JSON(fiber.Map{"orders": list})
}

func (s *Server) handleGetOrder(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := s.ordersService.GetOrder(c.UserContext(), currentUserID(c), orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		}
		return internalError(c, "failed to get order", err)
	}
	return c.JSON(order)
}

func (s *Server) handleCancelOrder(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := s.ordersService.CancelOrder(c.UserContext(), currentUserID(c), orderID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		case errors.Is(err, orders.ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "order can no longer be cancelled"})
		}
		return internalError(c, "failed to cancel order", err)
	}
	return c.JSON(order)
}

func (s *Server) handleListAddresses(c *fiber.Ctx) error {
	list, err := s.addressesService.ListAddresses(c.UserContext(), currentUserID(c))
	if err != nil {
		return internalError(c, "failed to list addresses", err)
	}
	return c.JSON(fiber.Map{"addresses": list})
}

func (s *Server) handleCreateAddress(c *fiber.Ctx) error {
	var body struct {
		Label     string `json:"label"`
		Line      string `json:"line"`
		City      string `json:"city"`
		IsDefault bool   `json:"is_default"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Line == "" || body.City == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "line and city are required"})
	}

	address, err := s.addressesService.CreateAddress(c.UserContext(), currentUserID(c), addresses.CreateAddressRequest{
		Label:     body.Label,
		Line:      body.Line,
		City:      body.City,
		IsDefault: body.IsDefault,
	})
	if err != nil {
		return internalError(c, "failed to create address", err)
	}
	return c.Status(fiber.StatusCreated).JSON(address)
}

func (s *Server) handleSetDefaultAddress(c *fiber.Ctx) error {
	addressID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid address id"})
	}

	if err := s.addressesService.SetDefault(c.UserContext(), currentUserID(c), addressID); err != nil {
		if errors.Is(err, addresses.ErrAddressNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "address not found"})
		}
		return internalError(c, "failed to set default address", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDeleteAddress(c *fiber.Ctx) error {
	addressID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid address id"})
	}

	if err := s.addressesService.DeleteAddress(c.UserContext(), currentUserID(c), addressID); err != nil {
		if errors.Is(err, addresses.ErrAddressNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "address not found"})
		}
		return internalError(c, "failed to delete address", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSubmitReview(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var body struct {
		Rating  int     `json:"rating"`
		Comment *string `json:"comment"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	review, err := s.reviewsService.SubmitReview(c.UserContext(), currentUserID(c), productID, body.Rating, body.Comment)
	if err != nil {
		if errors.Is(err, reviews.ErrInvalidRating) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rating must be between 1 and 5"})
		}
		return internalError(c, "failed to submit review", err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

func (s *Server) handleDeleteReview(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	if err := s.reviewsService.DeleteReview(c.UserContext(), currentUserID(c), productID); err != nil {
		if errors.Is(err, reviews.ErrReviewNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "review not found"})
		}
		return internalError(c, "failed to delete review", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCreateProduct(c *fiber.Ctx) error {
	var body struct {
		Name        string     `json:"name"`
		Description *string    `json:"description"`
		CategoryID  *uuid.UUID `json:"category_id"`
		Price       int64      `json:"price"`
		Unit        string     `json:"unit"`
		ImageURL    *string    `json:"image_url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Name == "" || body.Price <= 0 || body.Unit == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name, positive price and unit are required"})
	}

	product, err := s.catalogService.CreateProduct(c.UserContext(), catalog.CreateProductRequest{
		Name:        body.Name,
		Description: body.Description,
		CategoryID:  body.CategoryID,
		Price:       body.Price,
		Unit:        body.Unit,
		ImageURL:    body.ImageURL,
	})
	if err != nil {
		return internalError(c, "failed to create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (s *Server) handleSetProductStock(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var body struct {
		InStock bool `json:"in_stock"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := s.catalogService.SetProductStock(c.UserContext(), productID, body.InStock); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return internalError(c, "failed to update product stock", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleUploadProductImage(c *fiber.Ctx) error {
	if s.storageService == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "image storage is not configured"})
	}

	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing image file"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return internalError(c, "failed to read uploaded image", err)
	}
	defer file.Close()

	url, err := s.storageService.UploadProductImage(c.UserContext(), productID,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file, fileHeader.Size)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.catalogService.SetProductImage(c.UserContext(), productID, url); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		return internalError(c, "failed to store product image url", err)
	}

	return c.JSON(fiber.Map{"image_url": url})
}

func (s *Server) handleListAllOrders(c *fiber.Ctx) error {
	list, err := s.ordersService.ListAllOrders(c.UserContext())
	if err != nil {
		return internalError(c, "failed to list open orders", err)
	}
	return c.JSON(fiber.Map{"orders": list})
}

func (s *Server) handleAdvanceOrder(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := s.ordersService.AdvanceStatus(c.UserContext(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
		case errors.Is(err, orders.ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "order is in a terminal state"})
		}
		return internalError(c, "failed to advance order", err)
	}
	return c.JSON(order)
}

func (s *Server) handleCreateWorker(c *fiber.Ctx) error {
	var body struct {
		FullName   string  `json:"full_name"`
		Profession string  `json:"profession"`
		Phone      string  `json:"phone"`
		DailyRate  int64   `json:"daily_rate"`
		Experience int     `json:"experience_years"`
		Bio        *string `json:"bio"`
		PhotoURL   *string `json:"photo_url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.FullName == "" || body.Profession == "" || body.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "full_name, profession and phone are required"})
	}

	worker, err := s.workersService.CreateWorker(c.UserContext(), workers.CreateWorkerRequest{
		FullName:   body.FullName,
		Profession: body.Profession,
		Phone:      body.Phone,
		DailyRate:  body.DailyRate,
		Experience: body.Experience,
		Bio:        body.Bio,
		PhotoURL:   body.PhotoURL,
	})
	if err != nil {
		return internalError(c, "failed to create worker", err)
	}
	return c.Status(fiber.StatusCreated).JSON(worker)
}

func (s *Server) handleUpdateWorker(c *fiber.Ctx) error {
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	var body struct {
		FullName   *string `json:"full_name"`
		Profession *string `json:"profession"`
		Phone      *string `json:"phone"`
		DailyRate  *int64  `json:"daily_rate"`
		Experience *int    `json:"experience_years"`
		Bio        *string `json:"bio"`
		PhotoURL   *string `json:"photo_url"`
		Available  *bool   `json:"available"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	worker, err := s.workersService.UpdateWorker(c.UserContext(), workerID, workers.WorkerUpdate{
		FullName:   body.FullName,
		Profession: body.Profession,
		Phone:      body.Phone,
		DailyRate:  body.DailyRate,
		Experience: body.Experience,
		Bio:        body.Bio,
		PhotoURL:   body.PhotoURL,
		Available:  body.Available,
	})
	if err != nil {
		if errors.Is(err, workers.ErrWorkerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
		}
		return internalError(c, "failed to update worker", err)
	}
	return c.JSON(worker)
}

func (s *Server) handleDeleteWorker(c *fiber.Ctx) error {
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	if err := s.workersService.DeleteWorker(c.UserContext(), workerID); err != nil {
		if errors.Is(err, workers.ErrWorkerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
		}
		return internalError(c, "failed to delete worker", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleUploadWorkerPhoto(c *fiber.Ctx) error {
	if s.storageService == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "image storage is not configured"})
	}

	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing photo file"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return internalError(c, "failed to read uploaded photo", err)
	}
	defer file.Close()

	url, err := s.storageService.UploadWorkerPhoto(c.UserContext(), workerID,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file, fileHeader.Size)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	photoURL := url
	if _, err := s.workersService.UpdateWorker(c.UserContext(), workerID, workers.WorkerUpdate{PhotoURL: &photoURL}); err != nil {
		if errors.Is(err, workers.ErrWorkerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
		}
		return internalError(c, "failed to store worker photo url", err)
	}

	return c.JSON(fiber.Map{"photo_url": url})
}

func internalError(c *fiber.Ctx, message string, err error) error {
	slog.Error(message, "error", err.Error(), "path", c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}
