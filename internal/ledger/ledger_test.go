package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ordermat/go-order-bot/internal/catalog"
	"github.com/ordermat/go-order-bot/internal/ledger"
	"github.com/ordermat/go-order-bot/internal/storage"
)

type fixture struct {
	ledger  *ledger.Service
	catalog *catalog.Service
	repo    *storage.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := storage.NewRepository(storage.NewMemoryStore(), zap.NewNop())
	f := &fixture{
		ledger:  ledger.NewService(repo),
		catalog: catalog.NewService(repo),
		repo:    repo,
	}
	require.NoError(t, f.catalog.Add(context.Background(), "Apple", decimal.RequireFromString("1.50")))
	require.NoError(t, f.catalog.Add(context.Background(), "Banana", decimal.RequireFromString("0.80")))
	return f
}

func (f *fixture) batches(t *testing.T, userID, product string) []storage.Batch {
	t.Helper()
	var batches []storage.Batch
	err := f.repo.View(context.Background(), func(d *storage.Data) error {
		if o := d.Orders[userID]; o != nil && o.Items[product] != nil {
			batches = append(batches, o.Items[product].Batches...)
		}
		return nil
	})
	require.NoError(t, err)
	return batches
}

func TestAddMergesBatchesAtSamePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	require.Equal(t, "Apple", res.Name)
	require.True(t, res.Price.Equal(decimal.RequireFromString("1.50")))

	_, err = f.ledger.AddOrder(ctx, "u1", "Apple", 3)
	require.NoError(t, err)

	batches := f.batches(t, "u1", "Apple")
	require.Len(t, batches, 1)
	require.Equal(t, 5, batches[0].Quantity)
}

func TestRepriceOpensNewBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)

	_, err = f.catalog.SetPrice(ctx, "Apple", decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	_, err = f.ledger.AddOrder(ctx, "u1", "Apple", 1)
	require.NoError(t, err)

	batches := f.batches(t, "u1", "Apple")
	require.Len(t, batches, 2)
	require.True(t, batches[0].Price.Equal(decimal.RequireFromString("1.50")))
	require.Equal(t, 2, batches[0].Quantity)
	require.True(t, batches[1].Price.Equal(decimal.RequireFromString("2.00")))
	require.Equal(t, 1, batches[1].Quantity)
}

func TestAddByIndexAndUnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ledger.AddOrder(ctx, "u1", "2", 1)
	require.NoError(t, err)
	require.Equal(t, "Banana", res.Name)

	_, err = f.ledger.AddOrder(ctx, "u1", "Grape", 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEditIncreaseBooksAtCurrentPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	_, err = f.catalog.SetPrice(ctx, "Apple", decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	res, err := f.ledger.EditOrder(ctx, "u1", "Apple", 5)
	require.NoError(t, err)
	require.Equal(t, ledger.ActionIncreased, res.Action)
	require.Equal(t, 5, res.Quantity)
	require.Equal(t, 3, res.Diff)

	batches := f.batches(t, "u1", "Apple")
	require.Len(t, batches, 2)
	require.Equal(t, 3, batches[1].Quantity)
	require.True(t, batches[1].Price.Equal(decimal.RequireFromString("2.00")))
}

func TestEditDecreaseDrainsOldestBatchFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	_, err = f.catalog.SetPrice(ctx, "Apple", decimal.RequireFromString("2.00"))
	require.NoError(t, err)
	_, err = f.ledger.AddOrder(ctx, "u1", "Apple", 3)
	require.NoError(t, err)

	res, err := f.ledger.EditOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	require.Equal(t, ledger.ActionDecreased, res.Action)
	require.Equal(t, -3, res.Diff)

	// 2 drained from the 1.50 batch, 1 from the 2.00 batch
	batches := f.batches(t, "u1", "Apple")
	require.Len(t, batches, 1)
	require.True(t, batches[0].Price.Equal(decimal.RequireFromString("2.00")))
	require.Equal(t, 2, batches[0].Quantity)
}

func TestEditUnchangedLeavesRecordAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	require.NoError(t, f.ledger.UpdateStatus(ctx, "u1", storage.StatusReady))

	before, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)

	res, err := f.ledger.EditOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	require.Equal(t, ledger.ActionUnchanged, res.Action)
	require.Equal(t, 0, res.Diff)

	after, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, before.Status, after.Status)
	require.True(t, before.LastChange.Time().Equal(after.LastChange.Time()))
}

func TestMutationResetsStatusToNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	require.NoError(t, f.ledger.UpdateStatus(ctx, "u1", storage.StatusProcessing))

	_, err = f.ledger.AddOrder(ctx, "u1", "Banana", 1)
	require.NoError(t, err)

	order, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusNew, order.Status)

	require.NoError(t, f.ledger.UpdateStatus(ctx, "u1", storage.StatusReady))
	_, err = f.ledger.EditOrder(ctx, "u1", "Banana", 2)
	require.NoError(t, err)

	order, err = f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusNew, order.Status)
}

func TestEditToZeroRemovesProductAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	_, err = f.ledger.AddOrder(ctx, "u1", "Banana", 1)
	require.NoError(t, err)

	_, err = f.ledger.EditOrder(ctx, "u1", "Banana", 0)
	require.NoError(t, err)
	order, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, order.Items["Banana"])

	_, err = f.ledger.EditOrder(ctx, "u1", "Apple", 0)
	require.NoError(t, err)
	_, err = f.ledger.GetUserOrder(ctx, "u1")
	require.ErrorIs(t, err, ledger.ErrNoOrder)
}

func TestEditRejectsNegativeTotal(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.EditOrder(context.Background(), "u1", "Apple", -1)
	require.ErrorIs(t, err, ledger.ErrNegativeTotal)
}

func TestCompleteReportsExactBatchCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 2 at 1.50, then 2 more at 2.00
	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	_, err = f.catalog.SetPrice(ctx, "Apple", decimal.RequireFromString("2.00"))
	require.NoError(t, err)
	_, err = f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)

	// 2*1.50 + 1*2.00
	res, err := f.ledger.CompleteOrder(ctx, "u1", "Apple", 3)
	require.NoError(t, err)
	require.True(t, res.Cost.Equal(decimal.RequireFromString("5.00")), "got %s", res.Cost)

	batches := f.batches(t, "u1", "Apple")
	require.Len(t, batches, 1)
	require.Equal(t, 1, batches[0].Quantity)
}

func TestCompleteCascadesDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)

	_, err = f.ledger.CompleteOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	_, err = f.ledger.GetUserOrder(ctx, "u1")
	require.ErrorIs(t, err, ledger.ErrNoOrder)
}

func TestCompleteOverdrawMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)

	_, err = f.ledger.CompleteOrder(ctx, "u1", "Apple", 3)
	require.ErrorIs(t, err, ledger.ErrInsufficientQuantity)

	batches := f.batches(t, "u1", "Apple")
	require.Len(t, batches, 1)
	require.Equal(t, 2, batches[0].Quantity)
}

func TestCompleteWithoutOrderFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.CompleteOrder(context.Background(), "nobody", "Apple", 1)
	require.ErrorIs(t, err, ledger.ErrNoOrder)
}

func TestCompleteProductAndUserOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)
	_, err = f.ledger.AddOrder(ctx, "u1", "Banana", 1)
	require.NoError(t, err)

	name, err := f.ledger.CompleteProductOrders(ctx, "u1", "Apple")
	require.NoError(t, err)
	require.Equal(t, "Apple", name)

	order, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, order.Items["Apple"])
	require.NotNil(t, order.Items["Banana"])

	require.NoError(t, f.ledger.CompleteUserOrders(ctx, "u1"))
	_, err = f.ledger.GetUserOrder(ctx, "u1")
	require.ErrorIs(t, err, ledger.ErrNoOrder)

	require.ErrorIs(t, f.ledger.CompleteUserOrders(ctx, "u1"), ledger.ErrNoOrder)
}

func TestCompleteAllOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CompleteAllOrders(ctx)
	require.ErrorIs(t, err, ledger.ErrNoActiveOrders)

	_, err = f.ledger.AddOrder(ctx, "u1", "Apple", 1)
	require.NoError(t, err)
	_, err = f.ledger.AddOrder(ctx, "u2", "Banana", 2)
	require.NoError(t, err)

	count, err := f.ledger.CompleteAllOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	orders, err := f.ledger.GetAllOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 1)
	require.NoError(t, err)

	require.NoError(t, f.ledger.UpdateStatus(ctx, "u1", storage.StatusReady))
	order, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, storage.StatusReady, order.Status)

	require.ErrorIs(t, f.ledger.UpdateStatus(ctx, "u1", storage.Status("Shipped")), ledger.ErrInvalidStatus)
	require.ErrorIs(t, f.ledger.UpdateStatus(ctx, "nobody", storage.StatusReady), ledger.ErrNoOrder)
}

func TestGetUserOrderReturnsCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 2)
	require.NoError(t, err)

	order, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	order.Items["Apple"].Batches[0].Quantity = 99

	fresh, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, fresh.Items["Apple"].Batches[0].Quantity)
}

func TestNullOrderRecordReadsAsAbsent(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Seed([]byte(`{"products":{"Apple":1.5},"orders":{"u1":null}}`))
	repo := storage.NewRepository(store, zap.NewNop())
	svc := ledger.NewService(repo)

	_, err := svc.GetUserOrder(context.Background(), "u1")
	require.ErrorIs(t, err, ledger.ErrNoOrder)

	orders, err := svc.GetAllOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestUserIndexIsStableAndOneBased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AddOrder(ctx, "walter", "Apple", 1)
	require.NoError(t, err)
	_, err = f.ledger.AddOrder(ctx, "anna", "Banana", 1)
	require.NoError(t, err)

	ids, err := f.ledger.UserIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"anna", "walter"}, ids)

	id, err := f.ledger.UserByIndex(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "anna", id)

	_, err = f.ledger.UserByIndex(ctx, 3)
	require.ErrorIs(t, err, ledger.ErrBadIndex)
	_, err = f.ledger.UserByIndex(ctx, 0)
	require.ErrorIs(t, err, ledger.ErrBadIndex)
}

func TestAddStampsLastChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	_, err := f.ledger.AddOrder(ctx, "u1", "Apple", 1)
	require.NoError(t, err)

	order, err := f.ledger.GetUserOrder(ctx, "u1")
	require.NoError(t, err)
	require.True(t, order.LastChange.Time().After(before))
}
