package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups when no matching record exists.
var ErrNotFound = errors.New("catalog record not found")

type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	GetByCode(ctx context.Context, code string) (*Item, error)
	Exists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, it *Item) error
	SetDisabled(ctx context.Context, code string, disabled bool) error
	// Rename moves the item identity to newCode, updating referencing
	// price rows. It is a no-op when the item already has newCode.
	Rename(ctx context.Context, oldCode, newCode string) error
	List(ctx context.Context, limit, offset int) ([]*Item, int, error)
}

type PriceRepository interface {
	Create(ctx context.Context, p *ItemPrice) error
	// LatestForItem returns the price with the newest valid-from date,
	// or ErrNotFound when the item has no prices.
	LatestForItem(ctx context.Context, itemCode string) (*ItemPrice, error)
	// UpsertTodaysRate updates the rate of a price row valid from today
	// on the given price list, creating it when absent.
	UpsertTodaysRate(ctx context.Context, itemCode, priceList string, rate float64) error
	ListForItem(ctx context.Context, itemCode string) ([]*ItemPrice, error)
}

type UOMRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*Settings, error)
}
