package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Products is the catalog: product name -> current unit price, in insertion
// order. Order matters because users address products by 1-based index, so
// the map round-trips JSON object keys in the order they appear on disk.
type Products struct {
	names  []string
	prices map[string]decimal.Decimal
}

func NewProducts() Products {
	return Products{prices: map[string]decimal.Decimal{}}
}

func (p *Products) Len() int { return len(p.names) }

// Names returns the product names in insertion order.
func (p *Products) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

func (p *Products) Get(name string) (decimal.Decimal, bool) {
	price, ok := p.prices[name]
	return price, ok
}

// At returns the name at the 1-based position, or false when out of range.
func (p *Products) At(index int) (string, bool) {
	if index < 1 || index > len(p.names) {
		return "", false
	}
	return p.names[index-1], true
}

// Set updates the price of an existing product in place, or appends a new
// product at the end of the iteration order.
func (p *Products) Set(name string, price decimal.Decimal) {
	if p.prices == nil {
		p.prices = map[string]decimal.Decimal{}
	}
	if _, ok := p.prices[name]; !ok {
		p.names = append(p.names, name)
	}
	p.prices[name] = price
}

// Delete removes a product; later products shift down one position.
func (p *Products) Delete(name string) bool {
	if _, ok := p.prices[name]; !ok {
		return false
	}
	delete(p.prices, name)
	for i, n := range p.names {
		if n == name {
			p.names = append(p.names[:i], p.names[i+1:]...)
			break
		}
	}
	return true
}

// Rename moves the product to the end of the iteration order under its new
// name, keeping the price. Delete-then-append matches how the original data
// files evolved, so renames shift later indices just like removals do.
func (p *Products) Rename(oldName, newName string) bool {
	price, ok := p.prices[oldName]
	if !ok {
		return false
	}
	p.Delete(oldName)
	p.Set(newName, price)
	return true
}

// Clone returns an independent copy, used as a parse-time snapshot so bulk
// commands resolve every token against one consistent catalog.
func (p *Products) Clone() Products {
	out := NewProducts()
	for _, name := range p.names {
		out.Set(name, p.prices[name])
	}
	return out
}

func (p Products) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(p.prices[name].String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Products) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("products: expected object, got %v", tok)
	}
	*p = NewProducts()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name := keyTok.(string)
		var price decimal.Decimal
		if err := dec.Decode(&price); err != nil {
			return fmt.Errorf("products: price of %q: %w", name, err)
		}
		p.Set(name, price)
	}
	_, err = dec.Token() // closing brace
	return err
}
