package httpserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"crystal-bloomery/internal/domain"
	cartsvc "crystal-bloomery/internal/service/cart"
)

type addItemRequest struct {
	VariantID  string            `json:"variantId" binding:"required"`
	Title      string            `json:"title" binding:"required"`
	ImageURL   string            `json:"imageUrl"`
	PriceCents int64             `json:"priceCents" binding:"gte=0"`
	Currency   string            `json:"currency" binding:"required"`
	Options    map[string]string `json:"options"`
	Quantity   int               `json:"quantity" binding:"required,gt=0"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Items       []domain.CartLine `json:"items"`
	CartID      *string           `json:"cartId,omitempty"`
	CheckoutURL *string           `json:"checkoutUrl,omitempty"`
}

func toCartResponse(sess *domain.CartSession) cartResponse {
	items := sess.Lines
	if items == nil {
		items = []domain.CartLine{}
	}
	return cartResponse{
		Items:       items,
		CartID:      sess.CartID,
		CheckoutURL: sess.CheckoutURL,
	}
}

func getCartHandler(logger *log.Logger, svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.Get(c.Request.Context(), sessionToken(c))
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(sess))
	}
}

func addItemHandler(logger *log.Logger, svc cartService, maxQuantity int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token := sessionToken(c)
		sess, err := svc.Get(c.Request.Context(), token)
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		if sess.TotalQuantity()+req.Quantity > maxQuantity {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart quantity limit reached"})
			return
		}

		sess, err = svc.AddItem(c.Request.Context(), token, cartsvc.NewItem{
			VariantID:  req.VariantID,
			Title:      req.Title,
			ImageURL:   req.ImageURL,
			PriceCents: req.PriceCents,
			Currency:   req.Currency,
			Options:    req.Options,
			Quantity:   req.Quantity,
		})
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(sess))
	}
}

func updateQuantityHandler(logger *log.Logger, svc cartService, maxQuantity int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token := sessionToken(c)
		variantID := c.Param("variantId")

		if req.Quantity > 0 {
			sess, err := svc.Get(c.Request.Context(), token)
			if err != nil {
				respondCartError(c, logger, err)
				return
			}
			if idx := sess.FindLine(variantID); idx >= 0 {
				if sess.TotalQuantity()-sess.Lines[idx].Quantity+req.Quantity > maxQuantity {
					c.JSON(http.StatusBadRequest, gin.H{"error": "cart quantity limit reached"})
					return
				}
			}
		}

		sess, err := svc.UpdateQuantity(c.Request.Context(), token, variantID, req.Quantity)
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(sess))
	}
}

func removeItemHandler(logger *log.Logger, svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.RemoveItem(c.Request.Context(), sessionToken(c), c.Param("variantId"))
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(sess))
	}
}

func clearCartHandler(logger *log.Logger, svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.Clear(c.Request.Context(), sessionToken(c))
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(sess))
	}
}

func syncCartHandler(logger *log.Logger, svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		sess, err := svc.Sync(c.Request.Context(), token)
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		if sess == nil {
			// A sync for this session was already in flight; return the
			// state as it stands once that sync releases the session.
			sess, err = svc.Get(c.Request.Context(), token)
			if err != nil {
				respondCartError(c, logger, err)
				return
			}
		}
		c.JSON(http.StatusOK, toCartResponse(sess))
	}
}

func checkoutURLHandler(logger *log.Logger, svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := svc.CheckoutURL(c.Request.Context(), sessionToken(c))
		if err != nil {
			respondCartError(c, logger, err)
			return
		}
		if url == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "no checkout available"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"checkoutUrl": url})
	}
}

func respondCartError(c *gin.Context, logger *log.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrLineNotSynced):
		c.JSON(http.StatusConflict, gin.H{"error": "item is still syncing, try again"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not in cart"})
	default:
		logger.Printf("cart operation failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "cart service unavailable"})
	}
}
