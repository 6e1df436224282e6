// Package httpx is the command layer: one endpoint per bot command, each a
// thin shim that parses input, calls the catalog or ledger, and hands back a
// pre-rendered reply string for the chat gateway to post. The gateway itself
// (slash-command registration, role lookup, localization) lives outside this
// service.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ordermat/go-order-bot/internal/catalog"
	"github.com/ordermat/go-order-bot/internal/events"
	kafkax "github.com/ordermat/go-order-bot/internal/kafka"
	"github.com/ordermat/go-order-bot/internal/ledger"
	"github.com/ordermat/go-order-bot/internal/storage"
)

// BotHandler wires the command endpoints. Producer may be nil, which
// disables notification fan-out.
type BotHandler struct {
	Catalog  *catalog.Service
	Ledger   *ledger.Service
	Repo     *storage.Repository
	Producer *kafkax.Producer
	Service  string
	Currency string
	// AdminToken guards the admin-only commands; empty denies them all.
	AdminToken string
	Log        *zap.Logger
}

func (h *BotHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Post("/orders", h.placeOrder)
	r.Patch("/orders", h.editOrder)
	r.Get("/orders/{userID}", h.getOrder)
	r.Put("/users/{userID}/language", h.setLanguage)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/products", h.addProducts)
		r.Post("/products/remove", h.removeProducts)
		r.Patch("/products", h.updateProducts)
		r.Get("/orders", h.getAllOrders)
		r.Get("/orders/index/{n}", h.userByIndex)
		r.Post("/orders/complete", h.completeOrders)
		r.Put("/orders/{userID}/status", h.updateStatus)
	})
}

func (h *BotHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if h.AdminToken == "" || token != h.AdminToken {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "permission denied"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var pe *storage.PersistenceError
	switch {
	case errors.As(err, &pe):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ledger.ErrNoOrder),
		errors.Is(err, ledger.ErrBadIndex),
		errors.Is(err, ledger.ErrNoActiveOrders):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrAlreadyExists),
		errors.Is(err, catalog.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrNoChanges),
		errors.Is(err, ledger.ErrNegativeTotal),
		errors.Is(err, ledger.ErrInsufficientQuantity),
		errors.Is(err, ledger.ErrInvalidStatus):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// notify publishes one admin notification event. Fire-and-forget: command
// replies never wait on the broker.
func (h *BotHandler) notify(eventType, userID, message string, payload events.NotificationPayload) {
	if h.Producer == nil {
		return
	}
	payload.Message = message
	env := events.Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     h.Service,
		UserID:       userID,
		Payload:      kafkax.MustMarshal(payload),
	}
	h.Producer.Publish(events.PartitionKey(userID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
