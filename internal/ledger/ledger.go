// Package ledger tracks what every user has ordered. Quantities are kept as
// price-tagged batches per product, so a catalog reprice never rewrites what
// a user already agreed to pay: new quantity lands in a batch at today's
// price, old batches keep theirs. Batches drain in insertion order when an
// order shrinks or completes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ordermat/go-order-bot/internal/catalog"
	"github.com/ordermat/go-order-bot/internal/storage"
)

var (
	ErrNoOrder              = errors.New("no active order")
	ErrInsufficientQuantity = errors.New("completion amount exceeds ordered quantity")
	ErrNoActiveOrders       = errors.New("no active orders to complete")
	ErrNegativeTotal        = errors.New("amount cannot be negative")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrBadIndex             = errors.New("no order at that index")
)

// EditAction says which way an edit moved the total.
type EditAction string

const (
	ActionUnchanged EditAction = "unchanged"
	ActionIncreased EditAction = "increased"
	ActionDecreased EditAction = "decreased"
)

// AddResult reports a successful AddOrder.
type AddResult struct {
	Name   string
	Amount int
	Price  decimal.Decimal
}

// EditResult reports a successful EditOrder.
type EditResult struct {
	Name     string
	Action   EditAction
	Quantity int // the new total
	Diff     int // signed change, zero when unchanged
}

// CompleteResult reports a successful partial or full completion. It carries
// the exact cost of what was consumed, batch by batch; the amount is the
// caller's own input and is not echoed back.
type CompleteResult struct {
	Name string
	Cost decimal.Decimal
}

// Service is the order ledger. All mutations run load-mutate-commit under the
// repository lock and stamp lastChange; AddOrder and EditOrder additionally
// force the status back to StatusNew, deliberately clobbering any
// admin-assigned status the moment the user touches the order again.
type Service struct {
	Repo *storage.Repository
}

func NewService(repo *storage.Repository) *Service { return &Service{Repo: repo} }

func resolve(d *storage.Data, nameOrIndex string) (string, error) {
	name, ok := catalog.Resolve(&d.Products, nameOrIndex)
	if !ok {
		return "", fmt.Errorf("%q: %w", nameOrIndex, catalog.ErrNotFound)
	}
	return name, nil
}

// addToBatches adds quantity at the given price, merging into the existing
// batch with the exact same price or appending a new one.
func addToBatches(line *storage.Line, price decimal.Decimal, amount int) {
	for i := range line.Batches {
		if line.Batches[i].Price.Equal(price) {
			line.Batches[i].Quantity += amount
			return
		}
	}
	line.Batches = append(line.Batches, storage.Batch{Price: price, Quantity: amount})
}

// drainBatches removes amount units in batch insertion order and returns the
// cost of what was consumed. Zero-quantity batches are pruned.
func drainBatches(line *storage.Line, amount int) decimal.Decimal {
	remaining := amount
	cost := decimal.Zero
	for i := range line.Batches {
		if remaining <= 0 {
			break
		}
		b := &line.Batches[i]
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		cost = cost.Add(b.Price.Mul(decimal.NewFromInt(int64(take))))
		b.Quantity -= take
		remaining -= take
	}
	pruned := line.Batches[:0]
	for _, b := range line.Batches {
		if b.Quantity > 0 {
			pruned = append(pruned, b)
		}
	}
	line.Batches = pruned
	return cost
}

// AddOrder adds amount units of a product to the user's order at the
// product's current catalog price. The order record is created on first use.
// Positivity of amount is the caller's contract; resolution failures are not.
func (s *Service) AddOrder(ctx context.Context, userID, nameOrIndex string, amount int) (AddResult, error) {
	var result AddResult
	err := s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		name, err := resolve(d, nameOrIndex)
		if err != nil {
			return false, err
		}
		price, _ := d.Products.Get(name)

		order := d.Orders[userID]
		if order == nil {
			order = &storage.UserOrder{Items: map[string]*storage.Line{}}
			d.Orders[userID] = order
		}
		line := order.Items[name]
		if line == nil {
			line = &storage.Line{}
			order.Items[name] = line
		}
		addToBatches(line, price, amount)

		order.Status = storage.StatusNew
		order.LastChange = storage.Timestamp(s.Repo.Now())

		result = AddResult{Name: name, Amount: amount, Price: price}
		return true, nil
	})
	return result, err
}

// EditOrder sets the user's total for a product. An increase is booked at the
// current catalog price; a decrease drains batches in insertion order; a
// no-op edit touches nothing, not even lastChange. Editing down to zero
// removes the product, and the whole record once no products remain.
func (s *Service) EditOrder(ctx context.Context, userID, nameOrIndex string, newTotal int) (EditResult, error) {
	var result EditResult
	err := s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		name, err := resolve(d, nameOrIndex)
		if err != nil {
			return false, err
		}
		if newTotal < 0 {
			return false, ErrNegativeTotal
		}
		price, _ := d.Products.Get(name)

		order := d.Orders[userID]
		if order == nil {
			order = &storage.UserOrder{Items: map[string]*storage.Line{}}
			d.Orders[userID] = order
		}
		line := order.Items[name]
		if line == nil {
			line = &storage.Line{}
			order.Items[name] = line
		}

		diff := newTotal - line.Quantity()
		if diff == 0 {
			result = EditResult{Name: name, Action: ActionUnchanged, Quantity: newTotal}
			return false, nil
		}

		action := ActionIncreased
		if diff > 0 {
			addToBatches(line, price, diff)
		} else {
			action = ActionDecreased
			drainBatches(line, -diff)
			if len(line.Batches) == 0 {
				delete(order.Items, name)
			}
			if len(order.Items) == 0 {
				delete(d.Orders, userID)
			}
		}
		if o := d.Orders[userID]; o != nil {
			o.Status = storage.StatusNew
			o.LastChange = storage.Timestamp(s.Repo.Now())
		}

		result = EditResult{Name: name, Action: action, Quantity: newTotal, Diff: diff}
		return true, nil
	})
	return result, err
}

// CompleteOrder consumes amount units of a product from the user's order,
// oldest batch first, and reports the exact cost of what was consumed.
// Asking for more than the user ordered fails without mutating anything.
func (s *Service) CompleteOrder(ctx context.Context, userID, nameOrIndex string, amount int) (CompleteResult, error) {
	var result CompleteResult
	err := s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		name, err := resolve(d, nameOrIndex)
		if err != nil {
			return false, err
		}
		order := d.Orders[userID]
		if order == nil || order.Items[name] == nil {
			return false, fmt.Errorf("no order for %q: %w", name, ErrNoOrder)
		}
		line := order.Items[name]
		if available := line.Quantity(); amount > available {
			return false, fmt.Errorf("requested %d, ordered %d: %w", amount, available, ErrInsufficientQuantity)
		}

		cost := drainBatches(line, amount)
		if len(line.Batches) == 0 {
			delete(order.Items, name)
		}
		if len(order.Items) == 0 {
			delete(d.Orders, userID)
		} else {
			order.LastChange = storage.Timestamp(s.Repo.Now())
		}

		result = CompleteResult{Name: name, Cost: cost}
		return true, nil
	})
	return result, err
}

// CompleteProductOrders drops the user's whole order line for one product,
// whatever its quantity. No cost is tracked for a wholesale drop.
func (s *Service) CompleteProductOrders(ctx context.Context, userID, nameOrIndex string) (string, error) {
	var resolved string
	err := s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		name, err := resolve(d, nameOrIndex)
		if err != nil {
			return false, err
		}
		order := d.Orders[userID]
		if order == nil || order.Items[name] == nil {
			return false, fmt.Errorf("no order for %q: %w", name, ErrNoOrder)
		}
		delete(order.Items, name)
		if len(order.Items) == 0 {
			delete(d.Orders, userID)
		} else {
			order.LastChange = storage.Timestamp(s.Repo.Now())
		}
		resolved = name
		return true, nil
	})
	return resolved, err
}

// CompleteUserOrders drops the user's entire order record.
func (s *Service) CompleteUserOrders(ctx context.Context, userID string) error {
	return s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		if d.Orders[userID] == nil {
			return false, ErrNoOrder
		}
		delete(d.Orders, userID)
		return true, nil
	})
}

// CompleteAllOrders clears the whole ledger and returns how many users were
// cleared.
func (s *Service) CompleteAllOrders(ctx context.Context) (int, error) {
	var count int
	err := s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		count = len(d.Orders)
		if count == 0 {
			return false, ErrNoActiveOrders
		}
		d.Orders = map[string]*storage.UserOrder{}
		return true, nil
	})
	return count, err
}

// UpdateStatus sets the order status without touching items.
func (s *Service) UpdateStatus(ctx context.Context, userID string, status storage.Status) error {
	return s.Repo.Update(ctx, func(d *storage.Data) (bool, error) {
		if !status.Valid() {
			return false, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
		}
		order := d.Orders[userID]
		if order == nil {
			return false, ErrNoOrder
		}
		order.Status = status
		order.LastChange = storage.Timestamp(s.Repo.Now())
		return true, nil
	})
}

// GetUserOrder returns a deep copy of the user's order record.
func (s *Service) GetUserOrder(ctx context.Context, userID string) (*storage.UserOrder, error) {
	var order *storage.UserOrder
	err := s.Repo.View(ctx, func(d *storage.Data) error {
		o := d.Orders[userID]
		if o == nil {
			return ErrNoOrder
		}
		order = o.Clone()
		return nil
	})
	return order, err
}

// GetAllOrders returns a deep copy of every order record.
func (s *Service) GetAllOrders(ctx context.Context) (map[string]*storage.UserOrder, error) {
	orders := map[string]*storage.UserOrder{}
	err := s.Repo.View(ctx, func(d *storage.Data) error {
		for userID, o := range d.Orders {
			orders[userID] = o.Clone()
		}
		return nil
	})
	return orders, err
}

// UserIndex returns the user IDs with active orders in listing order. The
// ordering is stable within one listing but shifts as orders come and go.
func (s *Service) UserIndex(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.Repo.View(ctx, func(d *storage.Data) error {
		for userID := range d.Orders {
			ids = append(ids, userID)
		}
		sort.Strings(ids)
		return nil
	})
	return ids, err
}

// UserByIndex maps a 1-based listing index back to a user ID.
func (s *Service) UserByIndex(ctx context.Context, index int) (string, error) {
	ids, err := s.UserIndex(ctx)
	if err != nil {
		return "", err
	}
	if index < 1 || index > len(ids) {
		return "", fmt.Errorf("index %d: %w", index, ErrBadIndex)
	}
	return ids[index-1], nil
}
