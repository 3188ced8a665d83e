package httpserver

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"crystal-bloomery/internal/domain"
	cartsvc "crystal-bloomery/internal/service/cart"
)

// Deps carries the services the router exposes.
type Deps struct {
	CartSvc       cartService
	NewsletterSvc newsletterService
	MaxQuantity   int
	CORSOrigins   []string
}

type cartService interface {
	Get(ctx context.Context, token string) (*domain.CartSession, error)
	AddItem(ctx context.Context, token string, item cartsvc.NewItem) (*domain.CartSession, error)
	UpdateQuantity(ctx context.Context, token, variantID string, quantity int) (*domain.CartSession, error)
	RemoveItem(ctx context.Context, token, variantID string) (*domain.CartSession, error)
	Clear(ctx context.Context, token string) (*domain.CartSession, error)
	Sync(ctx context.Context, token string) (*domain.CartSession, error)
	CheckoutURL(ctx context.Context, token string) (string, error)
}

type newsletterService interface {
	Subscribe(ctx context.Context, email string) error
}

// buildRouter wires routes for the storefront API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api")
	api.Use(sessionMiddleware())

	api.GET("/cart", getCartHandler(logger, deps.CartSvc))
	api.POST("/cart/items", addItemHandler(logger, deps.CartSvc, deps.MaxQuantity))
	api.PATCH("/cart/items/:variantId", updateQuantityHandler(logger, deps.CartSvc, deps.MaxQuantity))
	api.DELETE("/cart/items/:variantId", removeItemHandler(logger, deps.CartSvc))
	api.DELETE("/cart", clearCartHandler(logger, deps.CartSvc))
	api.POST("/cart/sync", syncCartHandler(logger, deps.CartSvc))
	api.GET("/cart/checkout", checkoutURLHandler(logger, deps.CartSvc))

	api.POST("/newsletter/subscribe", subscribeHandler(logger, deps.NewsletterSvc))

	return router
}
