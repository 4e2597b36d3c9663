package subscriptions

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const resultPage = `<!DOCTYPE html>
<html>
<head>
    <title>Fuel Alert</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 480px; margin: 80px auto; padding: 24px; text-align: center;">
    <p style="font-size: 18px;">%s</p>
    <p><a href="/" style="color: #16a34a;">&larr; Back to Fuel Alert</a></p>
</body>
</html>`

// NewRouter exposes the subscription lifecycle over HTTP. The JSON
// endpoint serves the signup form, the HTML ones serve the links
// embedded in emails.
func NewRouter(service Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/api/subscribe", func(c *gin.Context) {
		var req struct {
			Email string `json:"email"`
			City  string `json:"city"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		err := service.RequestSubscription(c.Request.Context(), req.Email, req.City)
		var invalid ValidationError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Reason})
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "signup failed", "err", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process signup"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Check your inbox to confirm"})
	})

	router.GET("/confirm", func(c *gin.Context) {
		addr := c.Query("email")
		city := c.Query("city")
		presented := c.Query("token")
		if addr == "" || city == "" || presented == "" {
			renderResult(c, http.StatusBadRequest, "Missing parameters.")
			return
		}

		err := service.Confirm(c.Request.Context(), addr, city, presented)
		var invalid ValidationError
		if errors.As(err, &invalid) {
			renderResult(c, http.StatusBadRequest, invalid.Reason)
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "confirm failed", "err", err.Error())
			renderResult(c, http.StatusInternalServerError, "Something went wrong, please try again later.")
			return
		}

		renderResult(c, http.StatusOK, "You're subscribed! You'll only hear from us when prices hit bottom.")
	})

	router.GET("/unsubscribe", func(c *gin.Context) {
		addr := c.Query("email")
		city := c.Query("city")
		presented := c.Query("token")
		if addr == "" || city == "" || presented == "" {
			renderResult(c, http.StatusBadRequest, "Missing parameters.")
			return
		}

		if !service.VerifyUnsubscribe(addr, city, presented) {
			renderResult(c, http.StatusBadRequest, "Invalid unsubscribe link.")
			return
		}

		err := service.Unsubscribe(c.Request.Context(), addr, city)
		var invalid ValidationError
		if errors.As(err, &invalid) {
			renderResult(c, http.StatusBadRequest, invalid.Reason)
			return
		}
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "unsubscribe failed", "err", err.Error())
			renderResult(c, http.StatusInternalServerError, "Something went wrong, please try again later.")
			return
		}

		renderResult(c, http.StatusOK, "You've been unsubscribed.")
	})

	return router
}

func renderResult(c *gin.Context, status int, message string) {
	c.Data(status, "text/html; charset=utf-8", []byte(fmt.Sprintf(resultPage, message)))
}
