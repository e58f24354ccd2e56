package catalog

import (
	"context"
	"fmt"

	"github.com/RUPHAsoft/healthcare/internal/validation"
)

type Service struct {
	items    ItemRepository
	prices   PriceRepository
	uoms     UOMRepository
	settings SettingsRepository
}

func NewService(items ItemRepository, prices PriceRepository, uoms UOMRepository, settings SettingsRepository) *Service {
	return &Service{items: items, prices: prices, uoms: uoms, settings: settings}
}

func (s *Service) CreateItem(ctx context.Context, it *Item) error {
	if it.Code == "" {
		return &validation.ValidationError{Field: "code", Msg: "code is required"}
	}
	if it.Name == "" {
		return &validation.ValidationError{Field: "name", Msg: "name is required"}
	}
	if it.StockUOM == "" {
		uom, err := s.ResolveStockUOM(ctx)
		if err != nil {
			return err
		}
		it.StockUOM = uom
	}
	exists, err := s.items.Exists(ctx, it.Code)
	if err != nil {
		return err
	}
	if exists {
		return &validation.ConflictError{Resource: "item", ID: it.Code,
			Msg: "item already exists"}
	}
	return s.items.Create(ctx, it)
}

func (s *Service) GetItem(ctx context.Context, code string) (*Item, error) {
	return s.items.GetByCode(ctx, code)
}

func (s *Service) UpdateItem(ctx context.Context, it *Item) error {
	if it.Name == "" {
		return &validation.ValidationError{Field: "name", Msg: "name is required"}
	}
	return s.items.Update(ctx, it)
}

func (s *Service) ListItems(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	return s.items.List(ctx, limit, offset)
}

func (s *Service) CreatePrice(ctx context.Context, p *ItemPrice) error {
	if p.ItemCode == "" {
		return &validation.ValidationError{Field: "item_code", Msg: "item code is required"}
	}
	if p.Rate < 0 {
		return &validation.ValidationError{Field: "rate", Msg: "rate cannot be negative"}
	}
	if p.PriceList == "" {
		list, err := s.SellingPriceList(ctx)
		if err != nil {
			return err
		}
		p.PriceList = list
	}
	return s.prices.Create(ctx, p)
}

func (s *Service) ListPrices(ctx context.Context, itemCode string) ([]*ItemPrice, error) {
	return s.prices.ListForItem(ctx, itemCode)
}

// ResolveStockUOM prefers the standard "Unit" UOM when such a record
// exists and falls back to the configured default.
func (s *Service) ResolveStockUOM(ctx context.Context) (string, error) {
	ok, err := s.uoms.Exists(ctx, StandardUOM)
	if err != nil {
		return "", err
	}
	if ok {
		return StandardUOM, nil
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve stock uom: %w", err)
	}
	return cfg.DefaultStockUOM, nil
}

// SellingPriceList returns the configured default selling price list.
func (s *Service) SellingPriceList(ctx context.Context) (string, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve selling price list: %w", err)
	}
	return cfg.SellingPriceList, nil
}
