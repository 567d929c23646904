package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pterodactyl-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocationStore struct {
	locations map[int64]*models.Location
	firstFree *models.Location
	nodes     map[int64][]models.Node

	reserveTxCalls chan int64
	reserveTxErr   error
	releaseCalls   int
}

func newFakeLocationStore() *fakeLocationStore {
	return &fakeLocationStore{
		locations:      make(map[int64]*models.Location),
		nodes:          make(map[int64][]models.Node),
		reserveTxCalls: make(chan int64, 8),
	}
}

func (f *fakeLocationStore) GetLocationByID(ctx context.Context, id int64) (*models.Location, error) {
	loc, ok := f.locations[id]
	if !ok {
		return nil, errors.New("sql: no rows in result set")
	}
	return loc, nil
}

func (f *fakeLocationStore) GetLocationsByIDs(ctx context.Context, ids []int64) ([]models.Location, error) {
	out := make([]models.Location, 0, len(ids))
	for _, id := range ids {
		if loc, ok := f.locations[id]; ok {
			out = append(out, *loc)
		}
	}
	return out, nil
}

func (f *fakeLocationStore) FirstLocationInStock(ctx context.Context) (*models.Location, error) {
	if f.firstFree == nil {
		return nil, errors.New("sql: no rows in result set")
	}
	return f.firstFree, nil
}

func (f *fakeLocationStore) ReserveLocationStockTx(ctx context.Context, locationID int64) error {
	f.reserveTxCalls <- locationID
	return f.reserveTxErr
}

func (f *fakeLocationStore) ReleaseLocationStock(ctx context.Context, locationID int64) error {
	f.releaseCalls++
	return nil
}

func (f *fakeLocationStore) GetNodesByLocationID(ctx context.Context, locationID int64) ([]models.Node, error) {
	return f.nodes[locationID], nil
}

type fakeStockCache struct {
	reserveOK    bool
	reserveErr   error
	releaseCalls int
	seeded       map[int64]int
	liveStock    map[int64]int
}

func (f *fakeStockCache) ReserveStock(ctx context.Context, locationID int64) (bool, error) {
	return f.reserveOK, f.reserveErr
}

func (f *fakeStockCache) ReleaseStock(ctx context.Context, locationID int64) error {
	f.releaseCalls++
	return nil
}

func (f *fakeStockCache) InitStock(ctx context.Context, locationID int64, stock int) error {
	if f.seeded == nil {
		f.seeded = make(map[int64]int)
	}
	f.seeded[locationID] = stock
	return nil
}

func (f *fakeStockCache) GetStock(ctx context.Context, locationID int64) (int, error) {
	stock, ok := f.liveStock[locationID]
	if !ok {
		return 0, errors.New("location stock not loaded in redis")
	}
	return stock, nil
}

func orderWithLocation(locationID string) *models.Order {
	options := models.JSONMap{}
	if locationID != "" {
		options["location"] = locationID
	}
	return &models.Order{ID: 1, Options: options}
}

func TestResolveLocationExplicit(t *testing.T) {
	store := newFakeLocationStore()
	store.locations[2] = &models.Location{ID: 2, Name: "Dallas", Stock: 3}
	svc := NewInventoryService(store, nil)

	loc, err := svc.ResolveLocation(context.Background(), orderWithLocation("2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), loc.ID)
}

func TestResolveLocationExplicitUnknown(t *testing.T) {
	store := newFakeLocationStore()
	svc := NewInventoryService(store, nil)

	_, err := svc.ResolveLocation(context.Background(), orderWithLocation("9"))

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestResolveLocationExplicitOutOfStock(t *testing.T) {
	store := newFakeLocationStore()
	store.locations[2] = &models.Location{ID: 2, Name: "Dallas", Stock: 0}
	svc := NewInventoryService(store, nil)

	_, err := svc.ResolveLocation(context.Background(), orderWithLocation("2"))

	var conflictErr *StateConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Contains(t, conflictErr.Message, "Dallas")
}

func TestResolveLocationDrainedCounterWins(t *testing.T) {
	store := newFakeLocationStore()
	store.locations[2] = &models.Location{ID: 2, Name: "Dallas", Stock: 3}
	cache := &fakeStockCache{liveStock: map[int64]int{2: 0}}
	svc := NewInventoryService(store, cache)

	// The DB row still shows stock, but the live counter is drained.
	_, err := svc.ResolveLocation(context.Background(), orderWithLocation("2"))

	var conflictErr *StateConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestResolveLocationAutoPicksFirstInStock(t *testing.T) {
	store := newFakeLocationStore()
	store.firstFree = &models.Location{ID: 1, Name: "Frankfurt", Stock: -1}
	svc := NewInventoryService(store, nil)

	loc, err := svc.ResolveLocation(context.Background(), orderWithLocation(""))
	require.NoError(t, err)
	assert.Equal(t, int64(1), loc.ID)
}

func TestReserveUnlimitedStockIsNoop(t *testing.T) {
	store := newFakeLocationStore()
	cache := &fakeStockCache{}
	svc := NewInventoryService(store, cache)

	err := svc.Reserve(context.Background(), &models.Location{ID: 1, Stock: -1})
	require.NoError(t, err)

	select {
	case id := <-store.reserveTxCalls:
		t.Fatalf("unexpected DB reservation for location %d", id)
	default:
	}
}

func TestReserveCacheFastPath(t *testing.T) {
	store := newFakeLocationStore()
	cache := &fakeStockCache{reserveOK: true}
	svc := NewInventoryService(store, cache)

	err := svc.Reserve(context.Background(), &models.Location{ID: 1, Stock: 5})
	require.NoError(t, err)

	// The counter decrement is mirrored into the database asynchronously.
	select {
	case id := <-store.reserveTxCalls:
		assert.Equal(t, int64(1), id)
	case <-time.After(time.Second):
		t.Fatal("DB mirror of the reservation never happened")
	}
}

func TestReserveCacheOutOfStock(t *testing.T) {
	store := newFakeLocationStore()
	cache := &fakeStockCache{reserveOK: false}
	svc := NewInventoryService(store, cache)

	err := svc.Reserve(context.Background(), &models.Location{ID: 1, Name: "Frankfurt", Stock: 1})

	var conflictErr *StateConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestReserveFallsBackToDBOnCacheError(t *testing.T) {
	store := newFakeLocationStore()
	cache := &fakeStockCache{reserveErr: errors.New("connection refused")}
	svc := NewInventoryService(store, cache)

	err := svc.Reserve(context.Background(), &models.Location{ID: 1, Stock: 5})
	require.NoError(t, err)

	select {
	case id := <-store.reserveTxCalls:
		assert.Equal(t, int64(1), id)
	default:
		t.Fatal("expected a synchronous DB reservation")
	}
}

func TestReleaseReturnsStock(t *testing.T) {
	store := newFakeLocationStore()
	cache := &fakeStockCache{}
	svc := NewInventoryService(store, cache)

	err := svc.Release(context.Background(), &models.Location{ID: 1, Stock: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.releaseCalls)
	assert.Equal(t, 1, store.releaseCalls)
}

func TestReleaseUnlimitedStockIsNoop(t *testing.T) {
	store := newFakeLocationStore()
	cache := &fakeStockCache{}
	svc := NewInventoryService(store, cache)

	err := svc.Release(context.Background(), &models.Location{ID: 1, Stock: -1})
	require.NoError(t, err)

	assert.Zero(t, cache.releaseCalls)
	assert.Zero(t, store.releaseCalls)
}

func TestListAvailableFiltersStockAndCapacity(t *testing.T) {
	store := newFakeLocationStore()
	store.locations[1] = &models.Location{ID: 1, Name: "Frankfurt", Stock: -1}
	store.locations[2] = &models.Location{ID: 2, Name: "Dallas", Stock: 0}
	store.locations[3] = &models.Location{ID: 3, Name: "Singapore", Stock: 4}
	store.nodes[1] = []models.Node{
		{ID: 1, LocationID: 1, Memory: 8192, MemoryAllocated: 1024, Disk: 100000},
	}
	store.nodes[3] = []models.Node{
		{ID: 2, LocationID: 3, Memory: 4096, MemoryAllocated: 4000, Disk: 100000},
	}
	svc := NewInventoryService(store, nil)

	pkg := &models.Package{Data: models.PackageData{
		Locations:   []int64{1, 2, 3},
		MemoryLimit: 2048,
		DiskLimit:   10240,
	}}

	options, err := svc.ListAvailable(context.Background(), pkg)
	require.NoError(t, err)

	// Dallas has no stock and Singapore's only node is nearly full.
	require.Len(t, options, 1)
	assert.Equal(t, int64(1), options[0].ID)
	assert.Equal(t, "Frankfurt (Unlimited)", options[0].Label)
}

func TestListAvailableStockLabel(t *testing.T) {
	store := newFakeLocationStore()
	store.locations[3] = &models.Location{ID: 3, Name: "Singapore", Stock: 4}
	store.nodes[3] = []models.Node{{ID: 2, LocationID: 3}}
	svc := NewInventoryService(store, nil)

	pkg := &models.Package{Data: models.PackageData{Locations: []int64{3}}}

	options, err := svc.ListAvailable(context.Background(), pkg)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "Singapore (4 in stock)", options[0].Label)
}

func TestSyncStockToCache(t *testing.T) {
	store := newFakeLocationStore()
	cache := &fakeStockCache{}
	svc := NewInventoryService(store, cache)

	locations := []models.Location{
		{ID: 1, Stock: -1},
		{ID: 2, Stock: 7},
	}
	require.NoError(t, svc.SyncStockToCache(context.Background(), locations))

	assert.Equal(t, map[int64]int{1: -1, 2: 7}, cache.seeded)
}