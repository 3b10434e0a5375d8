package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commonerrors "github.com/northwear/storefront/common/errors"
	"github.com/northwear/storefront/pkg/models"
)

type fakeProducts struct {
	products map[uint]*models.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, id uint) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, commonerrors.ErrProductNotFound
	}
	return p, nil
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	snapshots map[string][][]models.CartLine
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{snapshots: make(map[string][][]models.CartLine)}
}

func (b *recordingBroadcaster) BroadcastCart(sessionID string, lines []models.CartLine) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make([]models.CartLine, len(lines))
	copy(snapshot, lines)
	b.snapshots[sessionID] = append(b.snapshots[sessionID], snapshot)
}

func (b *recordingBroadcaster) last(sessionID string) []models.CartLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := b.snapshots[sessionID]
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (b *recordingBroadcaster) count(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshots[sessionID])
}

func newTestService() (*Service, *recordingBroadcaster) {
	products := &fakeProducts{products: map[uint]*models.Product{
		1: {
			ID:    1,
			Name:  "Oversized Hoodie",
			Price: decimal.NewFromInt(120),
			Stock: models.SizeStock{"S": 5, "M": 10, "L": 3},
		},
		2: {
			ID:    2,
			Name:  "Boxy Tee",
			Price: decimal.NewFromInt(45),
			Stock: models.SizeStock{"M": 2},
		},
	}}
	broadcaster := newRecordingBroadcaster()
	svc := NewService(NewMemoryStore(), products, broadcaster, zap.NewNop())
	return svc, broadcaster
}

func TestAddLineNewAndMerge(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	product, err := svc.AddLine(ctx, "sess", 1, "M", 2)
	require.NoError(t, err)
	assert.Equal(t, "Oversized Hoodie", product.Name)

	cart := svc.GetCart("sess")
	require.Len(t, cart, 1)
	assert.Equal(t, 2, cart[0].Quantity)

	// Same product and size merges; a different size appends.
	_, err = svc.AddLine(ctx, "sess", 1, "M", 3)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, "sess", 1, "L", 1)
	require.NoError(t, err)

	cart = svc.GetCart("sess")
	require.Len(t, cart, 2)
	assert.Equal(t, 5, cart[0].Quantity)
	assert.Equal(t, "L", cart[1].Size)
}

func TestAddLineUnknownProduct(t *testing.T) {
	svc, broadcaster := newTestService()

	_, err := svc.AddLine(context.Background(), "sess", 99, "M", 1)
	assert.ErrorIs(t, err, commonerrors.ErrProductNotFound)
	assert.Zero(t, broadcaster.count("sess"))
	assert.Empty(t, svc.GetCart("sess"))
}

func TestAddLineUnknownSize(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddLine(context.Background(), "sess", 2, "XL", 1)
	assert.ErrorIs(t, err, commonerrors.ErrSizeUnavailable)
}

func TestRemoveLineScenario(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, "sess", 1, "M", 2)
	require.NoError(t, err)

	// qty 2 -> 1
	require.NoError(t, svc.RemoveLine(ctx, "sess", 1, "M", 1))
	cart := svc.GetCart("sess")
	require.Len(t, cart, 1)
	assert.Equal(t, 1, cart[0].Quantity)

	// qty 1 -> line removed
	require.NoError(t, svc.RemoveLine(ctx, "sess", 1, "M", 1))
	assert.Empty(t, svc.GetCart("sess"))

	// removing again is a no-op success
	require.NoError(t, svc.RemoveLine(ctx, "sess", 1, "M", 1))
	assert.Empty(t, svc.GetCart("sess"))
}

func TestRemoveLineOvershootDeletesLine(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, "sess", 1, "M", 2)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveLine(ctx, "sess", 1, "M", 5))
	assert.Empty(t, svc.GetCart("sess"))
}

func TestClear(t *testing.T) {
	svc, broadcaster := newTestService()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, "sess", 1, "M", 2)
	require.NoError(t, err)
	svc.Clear(ctx, "sess")

	assert.Empty(t, svc.GetCart("sess"))
	assert.Empty(t, broadcaster.last("sess"))
}

func TestEveryMutationBroadcastsSnapshot(t *testing.T) {
	svc, broadcaster := newTestService()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, "sess", 1, "M", 2)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveLine(ctx, "sess", 1, "M", 1))
	svc.Clear(ctx, "sess")

	assert.Equal(t, 3, broadcaster.count("sess"))

	// The last broadcast matches the final cart state.
	assert.Equal(t, svc.GetCart("sess"), broadcaster.last("sess"))
}

func TestConcurrentMutationsSameSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const workers = 20
	const perWorker = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := svc.AddLine(ctx, "sess", 1, "M", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	cart := svc.GetCart("sess")
	require.Len(t, cart, 1)
	assert.Equal(t, workers*perWorker, cart[0].Quantity, "no add may be lost")
}

func TestConcurrentSessionsIndependent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	sessions := []string{"a", "b", "c", "d"}
	for _, session := range sessions {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := svc.AddLine(ctx, session, 1, "S", 1)
				assert.NoError(t, err)
			}
		}(session)
	}
	wg.Wait()

	for _, session := range sessions {
		cart := svc.GetCart(session)
		require.Len(t, cart, 1)
		assert.Equal(t, 25, cart[0].Quantity)
	}
}
