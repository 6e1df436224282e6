package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ordermat/go-order-bot/internal/catalog"
	"github.com/ordermat/go-order-bot/internal/storage"
)

func newService(t *testing.T) (*catalog.Service, *storage.Repository) {
	t.Helper()
	repo := storage.NewRepository(storage.NewMemoryStore(), zap.NewNop())
	return catalog.NewService(repo), repo
}

func seed(t *testing.T, svc *catalog.Service, entries ...string) {
	t.Helper()
	for i, name := range entries {
		require.NoError(t, svc.Add(context.Background(), name, decimal.NewFromInt(int64(i+1))))
	}
}

func TestResolveNameAndIndex(t *testing.T) {
	svc, _ := newService(t)
	seed(t, svc, "Apple", "Banana", "Cherry")
	ctx := context.Background()

	name, err := svc.Resolve(ctx, "Banana")
	require.NoError(t, err)
	require.Equal(t, "Banana", name)

	// 1-based index into catalog order
	name, err = svc.Resolve(ctx, "3")
	require.NoError(t, err)
	require.Equal(t, "Cherry", name)

	_, err = svc.Resolve(ctx, "4")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = svc.Resolve(ctx, "0")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = svc.Resolve(ctx, "Grape")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestResolveIndexMatchesIterationOrder(t *testing.T) {
	svc, _ := newService(t)
	seed(t, svc, "Apple", "Banana", "Cherry")
	ctx := context.Background()

	entries, err := svc.List(ctx)
	require.NoError(t, err)
	for i, e := range entries {
		name, err := svc.Resolve(ctx, string(rune('1'+i)))
		require.NoError(t, err)
		require.Equal(t, e.Name, name)
	}

	// removing an earlier product shifts later indices down by one
	_, err = svc.Remove(ctx, "1")
	require.NoError(t, err)
	name, err := svc.Resolve(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "Banana", name)
}

func TestAddRejectsDuplicates(t *testing.T) {
	svc, _ := newService(t)
	seed(t, svc, "Apple")

	err := svc.Add(context.Background(), "Apple", decimal.NewFromInt(9))
	require.ErrorIs(t, err, catalog.ErrAlreadyExists)

	// an all-digit name that resolves as an index collides too
	err = svc.Add(context.Background(), "1", decimal.NewFromInt(9))
	require.ErrorIs(t, err, catalog.ErrAlreadyExists)
}

func TestSetPriceReportsOldAndNew(t *testing.T) {
	svc, _ := newService(t)
	seed(t, svc, "Apple")

	change, err := svc.SetPrice(context.Background(), "Apple", decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	require.Equal(t, "Apple", change.Name)
	require.True(t, change.OldPrice.Equal(decimal.NewFromInt(1)))
	require.True(t, change.NewPrice.Equal(decimal.RequireFromString("2.50")))

	_, err = svc.SetPrice(context.Background(), "Grape", decimal.NewFromInt(1))
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestRenameCarriesOrderLines(t *testing.T) {
	svc, repo := newService(t)
	seed(t, svc, "Apple", "Banana")
	ctx := context.Background()

	batches := []storage.Batch{{Price: decimal.NewFromInt(1), Quantity: 4}}
	require.NoError(t, repo.Update(ctx, func(d *storage.Data) (bool, error) {
		d.Orders["u1"] = &storage.UserOrder{
			Items:  map[string]*storage.Line{"Apple": {Batches: batches}},
			Status: storage.StatusNew,
		}
		return true, nil
	}))

	res, err := svc.Rename(ctx, "Apple", "Pear")
	require.NoError(t, err)
	require.Equal(t, "Apple", res.OldName)
	require.Equal(t, "Pear", res.Name)

	// rename moves the product to the end of the catalog order
	entries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "Banana", entries[0].Name)
	require.Equal(t, "Pear", entries[1].Name)

	// order lines follow the rename with batches untouched
	require.NoError(t, repo.View(ctx, func(d *storage.Data) error {
		order := d.Orders["u1"]
		require.Nil(t, order.Items["Apple"])
		require.Equal(t, batches, order.Items["Pear"].Batches)
		return nil
	}))
}

func TestRenameRejectsTakenNames(t *testing.T) {
	svc, _ := newService(t)
	seed(t, svc, "Apple", "Banana")

	_, err := svc.Rename(context.Background(), "Apple", "Banana")
	require.ErrorIs(t, err, catalog.ErrNameTaken)
}

func TestUpdateRequiresChanges(t *testing.T) {
	svc, _ := newService(t)
	seed(t, svc, "Apple")

	_, err := svc.Update(context.Background(), "Apple", catalog.Changes{})
	require.ErrorIs(t, err, catalog.ErrNoChanges)
}

func TestUpdateRenameAndRepriceTogether(t *testing.T) {
	svc, _ := newService(t)
	seed(t, svc, "Apple")

	res, err := svc.Update(context.Background(), "1", catalog.Changes{
		NewName: "Green Apple", HasNewName: true,
		NewPrice: decimal.RequireFromString("2.5"), HasNewPrice: true,
	})
	require.NoError(t, err)
	require.Equal(t, "Green Apple", res.Name)
	require.True(t, res.NewPrice.Equal(decimal.RequireFromString("2.5")))

	name, err := svc.Resolve(context.Background(), "Green Apple")
	require.NoError(t, err)
	require.Equal(t, "Green Apple", name)
}
