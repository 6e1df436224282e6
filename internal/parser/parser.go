// Package parser splits the free-text bulk arguments of bot commands into
// per-product entries. Tokens are comma separated; a bad token fails on its
// own and never aborts the rest of the list.
package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ordermat/go-order-bot/internal/catalog"
	"github.com/ordermat/go-order-bot/internal/storage"
)

// ValueKind selects how the part after the colon is parsed.
type ValueKind string

const (
	ValueNone    ValueKind = "none"    // bare names, no colon expected
	ValueInteger ValueKind = "integer" // whole amounts
	ValueNumber  ValueKind = "number"  // prices
)

// Item is one successfully parsed token.
type Item struct {
	Name     string          // resolved product name, or the raw text in non-strict mode
	Value    decimal.Decimal // meaningless for ValueNone
	Original string          // the token as the user typed it
}

// Int returns the value truncated to an integer amount.
func (it Item) Int() int { return int(it.Value.IntPart()) }

// Result carries successes and human-readable failures in input order. A
// token lands in exactly one of the two lists.
type Result struct {
	Items  []Item
	Failed []string
}

// ParseBulk parses "Name:Value, Name2:Value2" (or bare "Name, Name2" for
// ValueNone) against the catalog. In strict mode an unresolved name fails the
// token; otherwise the raw text is kept so new products can be created.
func ParseBulk(input string, products *storage.Products, kind ValueKind, strict bool) Result {
	var res Result
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		nameRaw := token
		value := decimal.Zero

		if kind != ValueNone {
			parts := strings.Split(token, ":")
			if len(parts) != 2 {
				res.Failed = append(res.Failed, fmt.Sprintf("%s (Invalid format)", token))
				continue
			}
			nameRaw = strings.TrimSpace(parts[0])
			valueRaw := strings.TrimSpace(parts[1])

			var ok bool
			if kind == ValueInteger {
				value, ok = parseIntegerPrefix(valueRaw)
			} else {
				value, ok = parseNumberPrefix(valueRaw)
			}
			if !ok {
				res.Failed = append(res.Failed, fmt.Sprintf("%s (Invalid value)", token))
				continue
			}
		}

		name, resolved := catalog.Resolve(products, nameRaw)
		if !resolved {
			if strict {
				res.Failed = append(res.Failed, fmt.Sprintf("%s (Product not found)", token))
				continue
			}
			name = nameRaw
		}
		if name == "" {
			res.Failed = append(res.Failed, fmt.Sprintf("%s (Invalid name)", token))
			continue
		}
		res.Items = append(res.Items, Item{Name: name, Value: value, Original: token})
	}
	return res
}

// Update is one parsed token of the combined rename/reprice form.
type Update struct {
	Name        string // resolved current name
	NewName     string
	HasNewName  bool
	NewPrice    decimal.Decimal
	HasNewPrice bool
	Original    string
}

// UpdateResult carries complex-parse successes and failures in input order.
type UpdateResult struct {
	Updates []Update
	Failed  []string
}

// ParseComplexBulk parses tokens of 1-3 colon-separated parts. The first part
// must resolve against the catalog. With two parts the second is a price when
// it reads as a number, otherwise a new name (numeric wins the ambiguity).
// With three parts the order is fixed: new name, then price. A lone name is
// an inert entry with nothing to change; the caller decides what that means.
func ParseComplexBulk(input string, products *storage.Products) UpdateResult {
	var res UpdateResult
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		parts := strings.Split(token, ":")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) > 3 {
			res.Failed = append(res.Failed, fmt.Sprintf("%s (Invalid format)", token))
			continue
		}

		name, ok := catalog.Resolve(products, parts[0])
		if !ok {
			res.Failed = append(res.Failed, fmt.Sprintf("%s (Product not found)", token))
			continue
		}

		upd := Update{Name: name, Original: token}
		switch len(parts) {
		case 1:
			// inert: nothing to change
		case 2:
			if price, isNum := parseNumberPrefix(parts[1]); isNum {
				upd.NewPrice, upd.HasNewPrice = price, true
			} else {
				upd.NewName, upd.HasNewName = parts[1], true
			}
		case 3:
			upd.NewName, upd.HasNewName = parts[1], true
			price, isNum := parseNumberPrefix(parts[2])
			if !isNum {
				res.Failed = append(res.Failed, fmt.Sprintf("%s (Invalid price)", token))
				continue
			}
			upd.NewPrice, upd.HasNewPrice = price, true
		}
		res.Updates = append(res.Updates, upd)
	}
	return res
}

// parseIntegerPrefix reads a base-10 integer from the front of s, ignoring
// whatever trails it, so "5.9kg" yields 5. Locale-independent by
// construction: only ASCII digits count.
func parseIntegerPrefix(s string) (decimal.Decimal, bool) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s[:i])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseNumberPrefix reads a decimal number from the front of s, accepting an
// optional fraction and exponent, again ignoring trailing garbage.
func parseNumberPrefix(s string) (decimal.Decimal, bool) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := func() int {
		n := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			n++
		}
		return n
	}
	whole := digits()
	frac := 0
	if i < len(s) && s[i] == '.' {
		dot := i
		i++
		if frac = digits(); frac == 0 {
			i = dot // "5." keeps the 5, the dot is trailing garbage
		}
	}
	if whole == 0 && frac == 0 {
		return decimal.Zero, false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		mark := i
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		if digits() == 0 {
			i = mark // dangling exponent is trailing garbage, not a failure
		}
	}
	d, err := decimal.NewFromString(s[:i])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
