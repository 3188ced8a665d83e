package httpserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"crystal-bloomery/internal/service/newsletter"
)

type subscribeRequest struct {
	Email string `json:"email" binding:"required"`
}

func subscribeHandler(logger *log.Logger, svc newsletterService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
			return
		}

		err := svc.Subscribe(c.Request.Context(), req.Email)
		if errors.Is(err, newsletter.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "please enter a valid email address"})
			return
		}
		if err != nil {
			logger.Printf("newsletter subscription failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "subscription failed, try again later"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
