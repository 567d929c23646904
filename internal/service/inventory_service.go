package service

import (
	"context"
	"fmt"
	"time"

	"pterodactyl-service/internal/checkout"
	"pterodactyl-service/internal/models"
	"pterodactyl-service/internal/util"

	"go.uber.org/zap"
)

// LocationStore is the slice of the store the inventory service needs
type LocationStore interface {
	GetLocationByID(ctx context.Context, id int64) (*models.Location, error)
	GetLocationsByIDs(ctx context.Context, ids []int64) ([]models.Location, error)
	FirstLocationInStock(ctx context.Context) (*models.Location, error)
	ReserveLocationStockTx(ctx context.Context, locationID int64) error
	ReleaseLocationStock(ctx context.Context, locationID int64) error
	GetNodesByLocationID(ctx context.Context, locationID int64) ([]models.Node, error)
}

// StockCache is the atomic stock counter fast path (Redis Lua scripts)
type StockCache interface {
	ReserveStock(ctx context.Context, locationID int64) (bool, error)
	ReleaseStock(ctx context.Context, locationID int64) error
	InitStock(ctx context.Context, locationID int64, stock int) error
	GetStock(ctx context.Context, locationID int64) (int, error)
}

// InventoryService resolves deployment targets and accounts for location
// stock. Reservation and release are the compensating pair around remote
// server creation.
type InventoryService struct {
	store  LocationStore
	cache  StockCache
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service. cache may be nil;
// reservations then go straight to the database.
func NewInventoryService(store LocationStore, cache StockCache) *InventoryService {
	return &InventoryService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// ResolveLocation picks the deployment location for an order: the
// checkout-selected one when set, otherwise the first location with
// remaining stock in ascending ID order. Never returns a location with
// stock 0.
func (is *InventoryService) ResolveLocation(ctx context.Context, order *models.Order) (*models.Location, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ResolveLocation")
	defer span.End()

	if id, ok := order.LocationID(); ok {
		loc, err := is.store.GetLocationByID(ctx, id)
		if err != nil {
			return nil, &NotFoundError{Resource: "location", ID: id}
		}
		if !loc.InStock() {
			return nil, &StateConflictError{Message: fmt.Sprintf("location %s is out of stock", loc.Name)}
		}
		// The Redis counter is fresher than the row we just read; a loaded
		// counter at zero means concurrent checkouts drained the location.
		if is.cache != nil && loc.Stock != -1 {
			if stock, err := is.cache.GetStock(ctx, id); err == nil && stock == 0 {
				return nil, &StateConflictError{Message: fmt.Sprintf("location %s is out of stock", loc.Name)}
			}
		}
		return loc, nil
	}

	loc, err := is.store.FirstLocationInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("no deployable location available: %w", err)
	}
	return loc, nil
}

// Reserve takes one unit of stock for a location. Unlimited stock (-1) is
// a no-op. The Redis counter is the fast path; when the counter is not
// loaded or Redis is down, the guarded database update takes over.
func (is *InventoryService) Reserve(ctx context.Context, loc *models.Location) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.StockReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if loc.Stock == -1 {
		return nil
	}

	if is.cache != nil {
		ok, err := is.cache.ReserveStock(ctx, loc.ID)
		if err == nil {
			if !ok {
				util.StockReservationsFailed.WithLabelValues("out_of_stock").Inc()
				return &StateConflictError{Message: fmt.Sprintf("location %s is out of stock", loc.Name)}
			}
			// Counter taken; mirror into the database off the hot path.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := is.store.ReserveLocationStockTx(ctx, loc.ID); err != nil {
					is.logger.Error("Failed to sync stock reservation to DB",
						zap.Int64("location_id", loc.ID),
						zap.Error(err))
				}
			}()
			return nil
		}

		is.logger.Warn("Redis stock reservation failed, falling back to DB",
			zap.Int64("location_id", loc.ID),
			zap.Error(err))
	}

	if err := is.store.ReserveLocationStockTx(ctx, loc.ID); err != nil {
		util.StockReservationsFailed.WithLabelValues("db_error").Inc()
		return err
	}
	return nil
}

// Release returns one unit of stock after a failed remote create
// (compensation). Unlimited stock is a no-op.
func (is *InventoryService) Release(ctx context.Context, loc *models.Location) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.Release")
	defer span.End()

	if loc.Stock == -1 {
		return nil
	}

	if is.cache != nil {
		if err := is.cache.ReleaseStock(ctx, loc.ID); err != nil {
			is.logger.Error("Failed to release stock in Redis",
				zap.Int64("location_id", loc.ID),
				zap.Error(err))
		}
	}

	return is.store.ReleaseLocationStock(ctx, loc.ID)
}

// ListAvailable returns the checkout location options for a package: each
// allowed location that has stock and at least one node with room for the
// package's memory and disk requirement.
func (is *InventoryService) ListAvailable(ctx context.Context, pkg *models.Package) ([]checkout.LocationOption, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ListAvailable")
	defer span.End()

	locations, err := is.store.GetLocationsByIDs(ctx, pkg.Data.Locations)
	if err != nil {
		return nil, fmt.Errorf("failed to load package locations: %w", err)
	}

	options := make([]checkout.LocationOption, 0, len(locations))
	for i := range locations {
		loc := &locations[i]
		if !loc.InStock() {
			continue
		}

		fits, err := is.locationFits(ctx, loc.ID, pkg)
		if err != nil {
			return nil, err
		}
		if !fits {
			continue
		}

		options = append(options, checkout.LocationOption{
			ID:    loc.ID,
			Label: fmt.Sprintf("%s (%s)", loc.Name, loc.StockLabel()),
		})
	}

	return options, nil
}

// locationFits reports whether any node in the location can host the
// package's resource envelope.
func (is *InventoryService) locationFits(ctx context.Context, locationID int64, pkg *models.Package) (bool, error) {
	nodes, err := is.store.GetNodesByLocationID(ctx, locationID)
	if err != nil {
		return false, fmt.Errorf("failed to load nodes for location %d: %w", locationID, err)
	}

	for i := range nodes {
		if nodes[i].CheckResource(pkg.Data.MemoryLimit, pkg.Data.DiskLimit) {
			return true, nil
		}
	}
	return false, nil
}

// SyncStockToCache seeds the Redis stock counters from the database at
// startup so the Lua fast path is authoritative afterwards.
func (is *InventoryService) SyncStockToCache(ctx context.Context, locations []models.Location) error {
	if is.cache == nil {
		return nil
	}

	for i := range locations {
		loc := &locations[i]
		if err := is.cache.InitStock(ctx, loc.ID, loc.Stock); err != nil {
			is.logger.Error("Failed to seed stock counter",
				zap.Int64("location_id", loc.ID),
				zap.Error(err))
			return err
		}
	}

	is.logger.Info("Stock counters synced to cache", zap.Int("count", len(locations)))
	return nil
}
