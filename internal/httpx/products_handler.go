package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ordermat/go-order-bot/internal/catalog"
	"github.com/ordermat/go-order-bot/internal/events"
	"github.com/ordermat/go-order-bot/internal/parser"
)

type productRow struct {
	Index int             `json:"index"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type listProductsResp struct {
	Products []productRow `json:"products"`
	Reply    string       `json:"reply"`
}

func (h *BotHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusOK, listProductsResp{Products: []productRow{}, Reply: "No products available."})
		return
	}
	rows := make([]productRow, 0, len(entries))
	var b strings.Builder
	b.WriteString("**Available Products:**\n")
	for i, e := range entries {
		rows = append(rows, productRow{Index: i + 1, Name: e.Name, Price: e.Price})
		fmt.Fprintf(&b, "%d. %s — %s%s\n", i+1, e.Name, h.Currency, e.Price.StringFixed(2))
	}
	writeJSON(w, http.StatusOK, listProductsResp{Products: rows, Reply: b.String()})
}

type addProductsReq struct {
	// Name is a single product name, or a "Name:Price, Name2:Price2" bulk
	// string when Price is omitted.
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

type bulkResp struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
	Reply     string   `json:"reply"`
}

func (h *BotHandler) addProducts(w http.ResponseWriter, r *http.Request) {
	var req addProductsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if req.Price != nil {
		if err := h.Catalog.Add(r.Context(), req.Name, *req.Price); err != nil {
			writeError(w, err)
			return
		}
		reply := fmt.Sprintf("Product %q added with price %s%s.", req.Name, h.Currency, req.Price.StringFixed(2))
		writeJSON(w, http.StatusCreated, map[string]string{"reply": reply})
		return
	}

	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	// non-strict: an unresolved token names the product being created
	parsed := parser.ParseBulk(req.Name, &snap, parser.ValueNumber, false)
	resp := bulkResp{Failed: parsed.Failed}
	for _, item := range parsed.Items {
		if err := h.Catalog.Add(r.Context(), item.Name, item.Value); err != nil {
			resp.Failed = append(resp.Failed, fmt.Sprintf("%s (%v)", item.Name, err))
			continue
		}
		resp.Succeeded = append(resp.Succeeded, fmt.Sprintf("%s (%s%s)", item.Name, h.Currency, item.Value.StringFixed(2)))
	}
	resp.Reply = bulkReply(resp,
		fmt.Sprintf("**Added %d products:**", len(resp.Succeeded)),
		"**Failed to add:**",
		"No products were added. Check your format (Name:Price, Name2:Price2).")
	writeJSON(w, http.StatusOK, resp)
}

type removeProductsReq struct {
	Name string `json:"name"` // names or indices, comma separated
}

func (h *BotHandler) removeProducts(w http.ResponseWriter, r *http.Request) {
	var req removeProductsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	// Every index is resolved to a name against the snapshot before any
	// removal happens, so positions cannot shift mid-batch.
	parsed := parser.ParseBulk(req.Name, &snap, parser.ValueNone, false)
	resp := bulkResp{Failed: parsed.Failed}

	seen := map[string]bool{}
	for _, item := range parsed.Items {
		if seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		removed, err := h.Catalog.Remove(r.Context(), item.Name)
		if err != nil {
			resp.Failed = append(resp.Failed, fmt.Sprintf("%s (%v)", item.Name, err))
			continue
		}
		resp.Succeeded = append(resp.Succeeded, removed)
	}
	resp.Reply = bulkReply(resp, "**Removed products:**", "**Failed to remove:**",
		fmt.Sprintf("Product %q not found.", req.Name))
	writeJSON(w, http.StatusOK, resp)
}

type updateProductsReq struct {
	// Product is a single name/index when NewPrice is set, or a complex bulk
	// string "Name:NewPrice, Name:NewName, Name:NewName:NewPrice".
	Product  string           `json:"product"`
	NewPrice *decimal.Decimal `json:"new_price"`
}

func (h *BotHandler) updateProducts(w http.ResponseWriter, r *http.Request) {
	var req updateProductsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Product == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if req.NewPrice != nil {
		change, err := h.Catalog.SetPrice(r.Context(), req.Product, *req.NewPrice)
		if err != nil {
			writeError(w, err)
			return
		}
		reply := fmt.Sprintf("Updated %q: %s%s -> %s%s.", change.Name,
			h.Currency, change.OldPrice.StringFixed(2), h.Currency, change.NewPrice.StringFixed(2))
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
		h.notify(events.EventProductsChanged, "", reply, events.NotificationPayload{Product: change.Name})
		return
	}

	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	parsed := parser.ParseComplexBulk(req.Product, &snap)
	resp := bulkResp{Failed: parsed.Failed}
	for _, upd := range parsed.Updates {
		res, err := h.Catalog.Update(r.Context(), upd.Name, catalog.Changes{
			NewName:     upd.NewName,
			HasNewName:  upd.HasNewName,
			NewPrice:    upd.NewPrice,
			HasNewPrice: upd.HasNewPrice,
		})
		if err != nil {
			resp.Failed = append(resp.Failed, fmt.Sprintf("%s (%v)", upd.Original, err))
			continue
		}
		switch {
		case res.OldName != res.Name && !res.OldPrice.Equal(res.NewPrice):
			resp.Succeeded = append(resp.Succeeded, fmt.Sprintf("%s -> %s: %s%s -> %s%s",
				res.OldName, res.Name, h.Currency, res.OldPrice.StringFixed(2), h.Currency, res.NewPrice.StringFixed(2)))
		case res.OldName != res.Name:
			resp.Succeeded = append(resp.Succeeded, fmt.Sprintf("%s -> %s", res.OldName, res.Name))
		default:
			resp.Succeeded = append(resp.Succeeded, fmt.Sprintf("%s: %s%s -> %s%s",
				res.Name, h.Currency, res.OldPrice.StringFixed(2), h.Currency, res.NewPrice.StringFixed(2)))
		}
	}
	resp.Reply = bulkReply(resp, "**Updated products:**", "**Failed to update:**", "No prices were updated.")
	writeJSON(w, http.StatusOK, resp)
	if len(resp.Succeeded) > 0 {
		h.notify(events.EventProductsChanged, "",
			"**Catalog Update:**\n"+strings.Join(resp.Succeeded, "\n"), events.NotificationPayload{})
	}
}

// bulkReply renders the shared success/failure reply shape of bulk commands.
func bulkReply(resp bulkResp, successHeader, failedHeader, empty string) string {
	var b strings.Builder
	if len(resp.Succeeded) > 0 {
		b.WriteString(successHeader + "\n" + strings.Join(resp.Succeeded, "\n") + "\n")
	}
	if len(resp.Failed) > 0 {
		b.WriteString(failedHeader + "\n" + strings.Join(resp.Failed, "\n") + "\n")
	}
	if b.Len() == 0 {
		return empty
	}
	return b.String()
}
