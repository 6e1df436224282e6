package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ordermat/go-order-bot/internal/events"
	"github.com/ordermat/go-order-bot/internal/format"
	"github.com/ordermat/go-order-bot/internal/ledger"
	"github.com/ordermat/go-order-bot/internal/parser"
	"github.com/ordermat/go-order-bot/internal/storage"
)

type orderReq struct {
	UserID string `json:"user_id"`
	// Product is a single name/index when Amount is set, or a bulk string
	// "Product1:Amount1, Product2:Amount2".
	Product string `json:"product"`
	Amount  *int   `json:"amount"`
}

func (h *BotHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Product == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if req.Amount != nil {
		if *req.Amount <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
			return
		}
		res, err := h.Ledger.AddOrder(r.Context(), req.UserID, req.Product, *req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		reply := fmt.Sprintf("Ordered %d x %s.", res.Amount, res.Name)
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
		h.notify(events.EventOrderPlaced, req.UserID,
			fmt.Sprintf("**New Order**: <@%s> ordered %d x %s.", req.UserID, res.Amount, res.Name),
			events.NotificationPayload{Product: res.Name, Amount: res.Amount})
		return
	}

	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	parsed := parser.ParseBulk(req.Product, &snap, parser.ValueInteger, true)
	resp := bulkResp{Failed: parsed.Failed}
	for _, item := range parsed.Items {
		if item.Int() <= 0 {
			resp.Failed = append(resp.Failed, fmt.Sprintf("%s (Amount must be positive)", item.Original))
			continue
		}
		res, err := h.Ledger.AddOrder(r.Context(), req.UserID, item.Name, item.Int())
		if err != nil {
			resp.Failed = append(resp.Failed, fmt.Sprintf("%s (%v)", item.Name, err))
			continue
		}
		resp.Succeeded = append(resp.Succeeded, fmt.Sprintf("%d x %s", res.Amount, res.Name))
	}
	resp.Reply = bulkReply(resp, "**Ordered:**", "**Failed:**", "No products were ordered.")
	writeJSON(w, http.StatusOK, resp)
	if len(resp.Succeeded) > 0 {
		h.notify(events.EventOrderPlaced, req.UserID,
			fmt.Sprintf("**New Bulk Order**: <@%s> ordered:\n%s", req.UserID, strings.Join(resp.Succeeded, "\n")),
			events.NotificationPayload{})
	}
}

func (h *BotHandler) editOrder(w http.ResponseWriter, r *http.Request) {
	var req orderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Product == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if req.Amount != nil {
		res, err := h.Ledger.EditOrder(r.Context(), req.UserID, req.Product, *req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		var reply string
		switch res.Action {
		case ledger.ActionUnchanged:
			reply = fmt.Sprintf("Order for %s is already %d.", res.Name, res.Quantity)
		case ledger.ActionIncreased:
			reply = fmt.Sprintf("Increased %s order by %d to total %d.", res.Name, res.Diff, res.Quantity)
		default:
			reply = fmt.Sprintf("Decreased %s order by %d to total %d.", res.Name, -res.Diff, res.Quantity)
		}
		writeJSON(w, http.StatusOK, map[string]any{"reply": reply, "action": res.Action})
		if res.Action != ledger.ActionUnchanged {
			h.notify(events.EventOrderEdited, req.UserID,
				fmt.Sprintf("**Order Updated**: <@%s> set %s to %d (%s).", req.UserID, res.Name, res.Quantity, res.Action),
				events.NotificationPayload{Product: res.Name, Amount: res.Quantity})
		}
		return
	}

	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	parsed := parser.ParseBulk(req.Product, &snap, parser.ValueInteger, true)
	resp := bulkResp{Failed: parsed.Failed}
	for _, item := range parsed.Items {
		res, err := h.Ledger.EditOrder(r.Context(), req.UserID, item.Name, item.Int())
		if err != nil {
			resp.Failed = append(resp.Failed, fmt.Sprintf("%s (%v)", item.Name, err))
			continue
		}
		if res.Action == ledger.ActionUnchanged {
			continue
		}
		resp.Succeeded = append(resp.Succeeded, fmt.Sprintf("%s: %d (%s)", res.Name, res.Quantity, res.Action))
	}
	resp.Reply = bulkReply(resp, "**Updated Orders:**", "**Failed:**", "No orders changed.")
	writeJSON(w, http.StatusOK, resp)
	if len(resp.Succeeded) > 0 {
		h.notify(events.EventOrderEdited, req.UserID,
			fmt.Sprintf("**Bulk Order Update**: <@%s> updated:\n%s", req.UserID, strings.Join(resp.Succeeded, "\n")),
			events.NotificationPayload{})
	}
}

type orderResp struct {
	UserID     string                   `json:"user_id"`
	Status     storage.Status           `json:"status"`
	LastChange storage.Timestamp        `json:"last_change"`
	Items      map[string]*storage.Line `json:"items"`
	Reply      string                   `json:"reply"`
}

func (h *BotHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	order, err := h.Ledger.GetUserOrder(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp{
		UserID:     userID,
		Status:     order.Status,
		LastChange: order.LastChange,
		Items:      order.Items,
		Reply:      format.Order(order, "Your Orders", h.Currency),
	})
}

type allOrdersResp struct {
	Orders []orderResp `json:"orders"`
	Reply  string      `json:"reply"`
}

func (h *BotHandler) getAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Ledger.GetAllOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := h.Ledger.UserIndex(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := allOrdersResp{Orders: []orderResp{}, Reply: format.AllOrders(orders, index, h.Currency)}
	for _, userID := range index {
		order := orders[userID]
		if order == nil {
			continue
		}
		resp.Orders = append(resp.Orders, orderResp{
			UserID:     userID,
			Status:     order.Status,
			LastChange: order.LastChange,
			Items:      order.Items,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// userByIndex maps a listing index ("order #3") back to a user ID so admin
// commands can target users without copying IDs around.
func (h *BotHandler) userByIndex(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid index"})
		return
	}
	userID, err := h.Ledger.UserByIndex(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

type completeReq struct {
	UserID  string `json:"user_id"`
	Index   int    `json:"index"` // alternative to UserID: listing index
	Product string `json:"product"`
	Amount  *int   `json:"amount"`
}

// completeOrders dispatches the four completion shapes: everything, one
// user, one user's product, or a partial amount of one user's product.
func (h *BotHandler) completeOrders(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" && req.Index > 0 {
		userID, err := h.Ledger.UserByIndex(r.Context(), req.Index)
		if err != nil {
			writeError(w, err)
			return
		}
		req.UserID = userID
	}

	switch {
	case req.Product == "" && req.UserID == "":
		count, err := h.Ledger.CompleteAllOrders(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		reply := fmt.Sprintf("Completed all orders for %d users.", count)
		writeJSON(w, http.StatusOK, map[string]any{"reply": reply, "count": count})
		h.notify(events.EventOrderCompleted, "", "**Orders Completed**: all orders were completed.", events.NotificationPayload{})

	case req.Product == "" && req.Amount == nil:
		if err := h.Ledger.CompleteUserOrders(r.Context(), req.UserID); err != nil {
			writeError(w, err)
			return
		}
		reply := fmt.Sprintf("Completed all orders for <@%s>.", req.UserID)
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
		h.notify(events.EventOrderCompleted, req.UserID, "**Orders Completed**: "+reply, events.NotificationPayload{})

	case req.Product != "" && req.UserID != "" && req.Amount != nil:
		if *req.Amount <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
			return
		}
		res, err := h.Ledger.CompleteOrder(r.Context(), req.UserID, req.Product, *req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		// the completed amount is the caller's input; the ledger reports cost
		reply := fmt.Sprintf("Completed %d x %s for <@%s> (%s%s).",
			*req.Amount, res.Name, req.UserID, h.Currency, res.Cost.StringFixed(2))
		writeJSON(w, http.StatusOK, map[string]any{"reply": reply, "cost": res.Cost})
		h.notify(events.EventOrderCompleted, req.UserID, "**Order Completed**: "+reply,
			events.NotificationPayload{Product: res.Name, Amount: *req.Amount})

	case req.Product != "" && req.UserID != "":
		name, err := h.Ledger.CompleteProductOrders(r.Context(), req.UserID, req.Product)
		if err != nil {
			writeError(w, err)
			return
		}
		reply := fmt.Sprintf("Completed all %s orders for <@%s>.", name, req.UserID)
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
		h.notify(events.EventOrderCompleted, req.UserID, "**Order Completed**: "+reply,
			events.NotificationPayload{Product: name})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid combination, see /help"})
	}
}

type statusReq struct {
	Status storage.Status `json:"status"`
}

func (h *BotHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Ledger.UpdateStatus(r.Context(), userID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	reply := fmt.Sprintf("Updated status for <@%s> to **%s**.", userID, req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	h.notify(events.EventOrderStatusChanged, userID, "**Status Update**: "+reply,
		events.NotificationPayload{Status: string(req.Status)})
}

type languageReq struct {
	Language string `json:"language"`
}

var knownLanguages = map[string]bool{"en": true, "de": true, "sk": true, "cs": true}

func (h *BotHandler) setLanguage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req languageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !knownLanguages[req.Language] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown language code"})
		return
	}
	if err := h.Repo.SetUserLanguage(r.Context(), userID, req.Language); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": fmt.Sprintf("Language set to %s.", req.Language)})
}
