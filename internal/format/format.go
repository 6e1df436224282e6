// Package format renders ledger snapshots into the reply strings the chat
// gateway posts back verbatim. Markdown-ish bold markers match what the chat
// platform renders.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ordermat/go-order-bot/internal/storage"
)

// Items renders one line per product with quantity and cost, plus the
// summed total. Products are listed alphabetically so replies are stable.
func Items(items map[string]*storage.Line, currency string) (string, decimal.Decimal) {
	if len(items) == 0 {
		return "No items.\n", decimal.Zero
	}
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	total := decimal.Zero
	for _, name := range names {
		line := items[name]
		cost := line.Cost()
		total = total.Add(cost)
		fmt.Fprintf(&b, "- **%s**: %d (%s%s)\n", name, line.Quantity(), currency, cost.StringFixed(2))
	}
	return b.String(), total
}

// Order renders a full order: title, status, last change, items, total.
func Order(order *storage.UserOrder, title, currency string) string {
	if order == nil || len(order.Items) == 0 {
		return title + "\nNo active orders."
	}
	text, total := Items(order.Items, currency)
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (Status: **%s**, Last Updated: %s):\n",
		title, order.Status, order.LastChange.Time().Format("2006-01-02 15:04:05"))
	b.WriteString(text)
	fmt.Fprintf(&b, "\n**Total:** %s%s", currency, total.StringFixed(2))
	return b.String()
}

// AllOrders renders the admin overview: one line per user in listing-index
// order with a compact item summary, then the grand total.
func AllOrders(orders map[string]*storage.UserOrder, index []string, currency string) string {
	if len(orders) == 0 {
		return "No active orders found."
	}
	var b strings.Builder
	b.WriteString("**All Orders:**\n")
	grand := decimal.Zero
	for i, userID := range index {
		order := orders[userID]
		if order == nil {
			continue
		}
		names := make([]string, 0, len(order.Items))
		for name := range order.Items {
			names = append(names, name)
		}
		sort.Strings(names)

		parts := make([]string, 0, len(names))
		userTotal := decimal.Zero
		for _, name := range names {
			line := order.Items[name]
			parts = append(parts, fmt.Sprintf("%s x%d", name, line.Quantity()))
			userTotal = userTotal.Add(line.Cost())
		}
		grand = grand.Add(userTotal)
		fmt.Fprintf(&b, "#%d <@%s> [%s]: %s (**%s%s**)\n",
			i+1, userID, order.Status, strings.Join(parts, ", "), currency, userTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\n**Grand Total:** %s%s", currency, grand.StringFixed(2))
	return b.String()
}
