package routes

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/middleware"
	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/services"
)

// ParsePublicKey decodes the application's hex encoded Ed25519 key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return ed25519.PublicKey(key), nil
}

// HTTPHandler serves the health check and the interactions endpoint.
type HTTPHandler struct {
	router    *Router
	session   InteractionSession
	publicKey ed25519.PublicKey
	ping      func(ctx context.Context) error
	notifier  services.NotifierStatus
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewHTTPHandler(rt *Router, session InteractionSession, publicKey ed25519.PublicKey, ping func(ctx context.Context) error, notifier services.NotifierStatus, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		router:    rt,
		session:   session,
		publicKey: publicKey,
		ping:      ping,
		notifier:  notifier,
		logger:    logger.Named("http"),
	}
}

// RegisterHTTPRoutes mounts the bot's endpoints on e. /interactions is only
// mounted when a public key is configured.
func RegisterHTTPRoutes(e *echo.Echo, h *HTTPHandler) {
	e.Use(middleware.SecurityHeaders())

	e.Match([]string{http.MethodGet, http.MethodHead}, "/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "OK",
			"message": "KUET auth bot is running",
		})
	})
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", h.Health)

	if h.publicKey != nil {
		e.POST("/interactions", h.Interactions)
	}
}

// Health reports database reachability and whether emails can be sent.
func (h *HTTPHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	database := "connected"
	if h.ping != nil {
		if err := h.ping(ctx); err != nil {
			h.logger.Warn("health check ping failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			database = "unreachable"
		}
	}

	message := "healthy"
	if status != http.StatusOK {
		message = "unhealthy"
	}
	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
		Data: map[string]interface{}{
			"database": database,
			"email":    h.notifier,
		},
	})
}

// Interactions receives interactions pushed by Discord over HTTP. Commands
// are deferred and processed after the response is written.
func (h *HTTPHandler) Interactions(c echo.Context) error {
	if !discordgo.VerifyInteraction(c.Request(), h.publicKey) {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "invalid request signature",
		})
	}

	var i discordgo.Interaction
	if err := json.NewDecoder(c.Request().Body).Decode(&i); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	switch i.Type {
	case discordgo.InteractionPing:
		return c.JSON(http.StatusOK, discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})

	case discordgo.InteractionApplicationCommandAutocomplete:
		return c.JSON(http.StatusOK, autocompleteResult(h.router.Autocomplete(&i)))

	case discordgo.InteractionApplicationCommand:
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := h.router.HandleInteraction(ctx, &i, NewResponder(h.session, &i)); err != nil {
				h.logger.Error("failed to handle interaction", zap.String("interaction_id", i.ID), zap.Error(err))
			}
		}()
		return c.JSON(http.StatusOK, deferredEphemeral())
	}

	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: "unsupported interaction type",
	})
}

// Wait blocks until in-flight HTTP interactions finish.
func (h *HTTPHandler) Wait() {
	h.wg.Wait()
}
