// Package catalog manages the product -> price mapping. Products are
// addressed by exact name or by 1-based position in catalog order; positions
// shift when earlier products are removed or renamed, so bulk callers resolve
// every token to a name before mutating anything.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ordermat/go-order-bot/internal/storage"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrAlreadyExists = errors.New("product already exists")
	ErrNameTaken     = errors.New("product name already taken")
	ErrNoChanges     = errors.New("no updates provided")
)

// Resolve translates a name or 1-based index into a canonical product name.
// Exact name match wins; otherwise a positive integer is tried as an index
// into the current catalog order.
func Resolve(products *storage.Products, input string) (string, bool) {
	if _, ok := products.Get(input); ok {
		return input, true
	}
	index, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || index <= 0 {
		return "", false
	}
	return products.At(index)
}

// Entry is one catalog listing row.
type Entry struct {
	Name  string
	Price decimal.Decimal
}

// PriceChange reports a reprice.
type PriceChange struct {
	Name     string
	OldPrice decimal.Decimal
	NewPrice decimal.Decimal
}

// Changes carries the optional parts of an update.
type Changes struct {
	NewName     string
	HasNewName  bool
	NewPrice    decimal.Decimal
	HasNewPrice bool
}

// UpdateResult reports what an update actually did.
type UpdateResult struct {
	OldName  string
	Name     string
	OldPrice decimal.Decimal
	NewPrice decimal.Decimal
}

// Service mutates the catalog through the shared repository. Every mutation
// commits before returning.
type Service struct {
	Repo *storage.Repository
}

func NewService(repo *storage.Repository) *Service { return &Service{Repo: repo} }

// List returns the catalog in index order.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.Repo.View(ctx, func(d *storage.Data) error {
		for _, name := range d.Products.Names() {
			price, _ := d.Products.Get(name)
			entries = append(entries, Entry{Name: name, Price: price})
		}
		return nil
	})
	return entries, err
}

// Snapshot returns a copy of the current catalog for parse-time resolution.
func (s *Service) Snapshot(ctx context.Context) (storage.Products, error) {
	var snap storage.Products
	err := s.Repo.View(ctx, func(d *storage.Data) error {
		snap = d.Products.Clone()
		return nil
	})
	return snap, err
}

// Resolve looks up a name or index against the current catalog.
func (s *Service) Resolve(ctx context.Context, nameOrIndex string) (string, error) {
	var resolved string
	err := s.Repo.View(ctx, func(d *storage.Data) error {
		name, ok := Resolve(&d.Products, nameOrIndex)
		if !ok {
			return fmt.Errorf("%q: %w", nameOrIndex, ErrNotFound)
		}
		resolved = name
		return nil
	})
	return resolved, err
}

// Add creates a product. The name must not resolve to an existing product,
// by name or by index.
func (s *Service) Add(ctx context.Context, name string, price decimal.Decimal) error {
	return s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		if existing, ok := Resolve(&d.Products, name); ok {
			return false, fmt.Errorf("%q resolves to %q: %w", name, existing, ErrAlreadyExists)
		}
		d.Products.Set(name, price)
		return true, nil
	})
}

// Remove deletes a product and returns the resolved name.
func (s *Service) Remove(ctx context.Context, nameOrIndex string) (string, error) {
	var removed string
	err := s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		name, ok := Resolve(&d.Products, nameOrIndex)
		if !ok {
			return false, fmt.Errorf("%q: %w", nameOrIndex, ErrNotFound)
		}
		d.Products.Delete(name)
		removed = name
		return true, nil
	})
	return removed, err
}

// SetPrice changes the unit price, keeping the catalog position. Existing
// order batches keep their historical prices.
func (s *Service) SetPrice(ctx context.Context, nameOrIndex string, newPrice decimal.Decimal) (PriceChange, error) {
	res, err := s.Update(ctx, nameOrIndex, Changes{NewPrice: newPrice, HasNewPrice: true})
	if err != nil {
		return PriceChange{}, err
	}
	return PriceChange{Name: res.Name, OldPrice: res.OldPrice, NewPrice: res.NewPrice}, nil
}

// Rename changes the product name, keeping the price.
func (s *Service) Rename(ctx context.Context, nameOrIndex, newName string) (UpdateResult, error) {
	return s.Update(ctx, nameOrIndex, Changes{NewName: newName, HasNewName: true})
}

// Update applies a rename, a reprice, or both in one commit. A rename moves
// the product to the end of the catalog order and carries every matching
// order line in every user's order over to the new name, batches untouched.
func (s *Service) Update(ctx context.Context, nameOrIndex string, ch Changes) (UpdateResult, error) {
	var result UpdateResult
	err := s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		name, ok := Resolve(&d.Products, nameOrIndex)
		if !ok {
			return false, fmt.Errorf("%q: %w", nameOrIndex, ErrNotFound)
		}
		if !ch.HasNewName && !ch.HasNewPrice {
			return false, ErrNoChanges
		}
		oldPrice, _ := d.Products.Get(name)
		finalName := name
		if ch.HasNewName && ch.NewName != name {
			if taken, ok := Resolve(&d.Products, ch.NewName); ok {
				return false, fmt.Errorf("%q resolves to %q: %w", ch.NewName, taken, ErrNameTaken)
			}
			finalName = ch.NewName
		}

		if finalName != name {
			d.Products.Rename(name, finalName)
			for _, order := range d.Orders {
				if line, ok := order.Items[name]; ok {
					order.Items[finalName] = line
					delete(order.Items, name)
				}
			}
		}
		newPrice := oldPrice
		if ch.HasNewPrice {
			newPrice = ch.NewPrice
		}
		d.Products.Set(finalName, newPrice)

		result = UpdateResult{OldName: name, Name: finalName, OldPrice: oldPrice, NewPrice: newPrice}
		return true, nil
	})
	return result, err
}
