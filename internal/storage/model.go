package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The persisted blob keeps prices as plain JSON numbers, same as the
	// data files written by earlier versions of the bot.
	decimal.MarshalJSONWithoutQuotes = true
}

// Status of a user's order. Any content mutation drops it back to StatusNew;
// admins move it forward explicitly.
type Status string

const (
	StatusNew        Status = "New"
	StatusProcessing Status = "Processing"
	StatusReady      Status = "Ready"
	StatusCompleted  Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusReady, StatusCompleted:
		return true
	}
	return false
}

// Batch is a quantity of a product tagged with the unit price that was
// current when the quantity was added. Price history survives repricing.
type Batch struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Line is the ordered batch list for one product within one user's order.
//
// Old data files stored a bare quantity instead of a batch list. Such a value
// is parked in legacyQty until normalization can price it against the catalog.
type Line struct {
	Batches []Batch

	legacyQty *int
}

func (l Line) MarshalJSON() ([]byte, error) {
	batches := l.Batches
	if batches == nil {
		batches = []Batch{}
	}
	return json.Marshal(batches)
}

func (l *Line) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &l.Batches)
	}
	var qty decimal.Decimal
	if err := json.Unmarshal(trimmed, &qty); err != nil {
		return fmt.Errorf("order line: expected batch list or quantity: %w", err)
	}
	n := int(qty.IntPart())
	l.legacyQty = &n
	return nil
}

// Quantity sums all batches.
func (l *Line) Quantity() int {
	total := 0
	for _, b := range l.Batches {
		total += b.Quantity
	}
	return total
}

// Cost sums price*quantity over all batches.
func (l *Line) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, b := range l.Batches {
		total = total.Add(b.Price.Mul(decimal.NewFromInt(int64(b.Quantity))))
	}
	return total
}

func (l *Line) clone() *Line {
	out := &Line{Batches: make([]Batch, len(l.Batches))}
	copy(out.Batches, l.Batches)
	return out
}

// Timestamp marshals as RFC 3339 but also accepts the epoch-millisecond
// numbers found in the oldest data files.
type Timestamp time.Time

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("lastChange: %w", err)
		}
		*t = Timestamp(parsed)
		return nil
	}
	var millis int64
	if err := json.Unmarshal(trimmed, &millis); err != nil {
		return fmt.Errorf("lastChange: expected RFC3339 string or epoch millis: %w", err)
	}
	*t = Timestamp(time.UnixMilli(millis).UTC())
	return nil
}

// UserOrder is one user's order record.
type UserOrder struct {
	Items      map[string]*Line `json:"items"`
	Status     Status           `json:"status"`
	LastChange Timestamp        `json:"lastChange"`
}

// UnmarshalJSON accepts two shapes: the current envelope with
// items/status/lastChange, and the legacy shape where the whole record is the
// items map. A legacy record is left with an empty status; normalization
// wraps it with StatusNew and a fresh timestamp.
func (o *UserOrder) UnmarshalJSON(b []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if _, ok := probe["items"]; ok {
		type envelope UserOrder // drop methods to avoid recursion
		var e envelope
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		*o = UserOrder(e)
		return nil
	}
	items := make(map[string]*Line, len(probe))
	for name, raw := range probe {
		line := &Line{}
		if err := json.Unmarshal(raw, line); err != nil {
			return fmt.Errorf("item %q: %w", name, err)
		}
		items[name] = line
	}
	o.Items = items
	o.Status = ""
	return nil
}

// Clone returns a deep copy that callers may mutate freely.
func (o *UserOrder) Clone() *UserOrder {
	out := &UserOrder{
		Items:      make(map[string]*Line, len(o.Items)),
		Status:     o.Status,
		LastChange: o.LastChange,
	}
	for name, line := range o.Items {
		out.Items[name] = line.clone()
	}
	return out
}

// UserPrefs holds per-user settings; message rendering for the chosen
// language happens in the chat gateway.
type UserPrefs struct {
	Language string `json:"language"`
}

// Data is the whole persisted state: the product catalog, every user's order
// record and per-user preferences. It is loaded and saved as one blob.
type Data struct {
	Products Products              `json:"products"`
	Orders   map[string]*UserOrder `json:"orders"`
	Users    map[string]UserPrefs  `json:"users"`
}

// NewData returns an empty, normalized state.
func NewData() *Data {
	return &Data{
		Products: NewProducts(),
		Orders:   map[string]*UserOrder{},
		Users:    map[string]UserPrefs{},
	}
}

// normalize upgrades legacy shapes in place: nil maps are allocated, null
// order records are dropped, records without the items envelope are wrapped
// with StatusNew and a fresh
// timestamp, and bare-quantity items become a single batch at the product's
// current catalog price (zero when the product is gone). The upgrade is lossy
// for pre-batch orders and one-way.
func (d *Data) normalize(now time.Time) {
	if d.Orders == nil {
		d.Orders = map[string]*UserOrder{}
	}
	if d.Users == nil {
		d.Users = map[string]UserPrefs{}
	}
	for userID, order := range d.Orders {
		// a JSON null record decodes to a nil pointer; same as no record
		if order == nil {
			delete(d.Orders, userID)
			continue
		}
		if order.Items == nil {
			order.Items = map[string]*Line{}
		}
		if order.Status == "" {
			order.Status = StatusNew
			order.LastChange = Timestamp(now)
		}
		for name, line := range order.Items {
			if line.legacyQty == nil {
				continue
			}
			price, ok := d.Products.Get(name)
			if !ok {
				price = decimal.Zero
			}
			line.Batches = []Batch{{Price: price, Quantity: *line.legacyQty}}
			line.legacyQty = nil
		}
	}
}
