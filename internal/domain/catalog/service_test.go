package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/RUPHAsoft/healthcare/internal/validation"
)

// -- Mock Repositories --

type mockItemRepo struct {
	items map[string]*Item
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[string]*Item)}
}

func (m *mockItemRepo) Create(_ context.Context, it *Item) error {
	it.CreatedAt = time.Now()
	it.UpdatedAt = time.Now()
	cp := *it
	m.items[it.Code] = &cp
	return nil
}

func (m *mockItemRepo) GetByCode(_ context.Context, code string) (*Item, error) {
	it, ok := m.items[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockItemRepo) Exists(_ context.Context, code string) (bool, error) {
	_, ok := m.items[code]
	return ok, nil
}

func (m *mockItemRepo) Update(_ context.Context, it *Item) error {
	cp := *it
	m.items[it.Code] = &cp
	return nil
}

func (m *mockItemRepo) SetDisabled(_ context.Context, code string, disabled bool) error {
	if it, ok := m.items[code]; ok {
		it.Disabled = disabled
	}
	return nil
}

func (m *mockItemRepo) Rename(_ context.Context, oldCode, newCode string) error {
	if oldCode == newCode {
		return nil
	}
	it, ok := m.items[oldCode]
	if !ok {
		return ErrNotFound
	}
	delete(m.items, oldCode)
	it.Code = newCode
	m.items[newCode] = it
	return nil
}

func (m *mockItemRepo) List(_ context.Context, limit, offset int) ([]*Item, int, error) {
	var result []*Item
	for _, it := range m.items {
		result = append(result, it)
	}
	return result, len(result), nil
}

type mockPriceRepo struct {
	prices []*ItemPrice
}

func (m *mockPriceRepo) Create(_ context.Context, p *ItemPrice) error {
	if p.ValidFrom.IsZero() {
		p.ValidFrom = time.Now()
	}
	cp := *p
	m.prices = append(m.prices, &cp)
	return nil
}

func (m *mockPriceRepo) LatestForItem(_ context.Context, itemCode string) (*ItemPrice, error) {
	var latest *ItemPrice
	for _, p := range m.prices {
		if p.ItemCode != itemCode {
			continue
		}
		if latest == nil || p.ValidFrom.After(latest.ValidFrom) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockPriceRepo) UpsertTodaysRate(_ context.Context, itemCode, priceList string, rate float64) error {
	today := time.Now().Format("2006-01-02")
	for _, p := range m.prices {
		if p.ItemCode == itemCode && p.PriceList == priceList && p.ValidFrom.Format("2006-01-02") == today {
			p.Rate = rate
			return nil
		}
	}
	return m.Create(context.Background(), &ItemPrice{ItemCode: itemCode, PriceList: priceList, Rate: rate})
}

func (m *mockPriceRepo) ListForItem(_ context.Context, itemCode string) ([]*ItemPrice, error) {
	var result []*ItemPrice
	for _, p := range m.prices {
		if p.ItemCode == itemCode {
			result = append(result, p)
		}
	}
	return result, nil
}

type mockUOMRepo struct {
	names map[string]bool
}

func (m *mockUOMRepo) Exists(_ context.Context, name string) (bool, error) {
	return m.names[name], nil
}

type mockSettingsRepo struct {
	s Settings
}

func (m *mockSettingsRepo) Get(_ context.Context) (*Settings, error) {
	cp := m.s
	return &cp, nil
}

func newTestService() (*Service, *mockItemRepo, *mockPriceRepo) {
	items := newMockItemRepo()
	prices := &mockPriceRepo{}
	uoms := &mockUOMRepo{names: map[string]bool{StandardUOM: true}}
	settings := &mockSettingsRepo{s: Settings{DefaultStockUOM: "Nos", SellingPriceList: "Standard Selling"}}
	return NewService(items, prices, uoms, settings), items, prices
}

// -- Tests --

func TestCreateItemDefaultsStockUOM(t *testing.T) {
	svc, _, _ := newTestService()
	it := &Item{Code: "CBC", Name: "Complete Blood Count", Group: "Laboratory"}
	if err := svc.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.StockUOM != StandardUOM {
		t.Errorf("expected stock uom %q, got %q", StandardUOM, it.StockUOM)
	}
}

func TestCreateItemFallsBackToSettingsUOM(t *testing.T) {
	items := newMockItemRepo()
	svc := NewService(items, &mockPriceRepo{}, &mockUOMRepo{names: map[string]bool{}},
		&mockSettingsRepo{s: Settings{DefaultStockUOM: "Nos"}})
	it := &Item{Code: "CBC", Name: "Complete Blood Count"}
	if err := svc.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.StockUOM != "Nos" {
		t.Errorf("expected fallback uom Nos, got %q", it.StockUOM)
	}
}

func TestCreateItemRejectsDuplicate(t *testing.T) {
	svc, _, _ := newTestService()
	it := &Item{Code: "CBC", Name: "Complete Blood Count"}
	if err := svc.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := svc.CreateItem(context.Background(), &Item{Code: "CBC", Name: "Other"})
	if !validation.IsConflict(err) {
		t.Errorf("expected conflict error for duplicate code, got %v", err)
	}
}

func TestCreateItemCodeRequired(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.CreateItem(context.Background(), &Item{Name: "No Code"}); !validation.IsValidation(err) {
		t.Errorf("expected validation error for missing code, got %v", err)
	}
}

func TestCreatePriceDefaultsPriceList(t *testing.T) {
	svc, _, prices := newTestService()
	p := &ItemPrice{ItemCode: "CBC", Rate: 300}
	if err := svc.CreatePrice(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PriceList != "Standard Selling" {
		t.Errorf("expected default price list, got %q", p.PriceList)
	}
	if len(prices.prices) != 1 {
		t.Errorf("expected one price row, got %d", len(prices.prices))
	}
}

func TestCreatePriceRejectsNegativeRate(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.CreatePrice(context.Background(), &ItemPrice{ItemCode: "CBC", Rate: -1}); !validation.IsValidation(err) {
		t.Errorf("expected validation error for negative rate, got %v", err)
	}
}

func TestLatestForItemPicksNewestValidFrom(t *testing.T) {
	_, _, prices := newTestService()
	old := &ItemPrice{ItemCode: "CBC", Rate: 100, ValidFrom: time.Now().AddDate(0, -1, 0)}
	newer := &ItemPrice{ItemCode: "CBC", Rate: 250, ValidFrom: time.Now()}
	prices.Create(context.Background(), old)
	prices.Create(context.Background(), newer)

	latest, err := prices.LatestForItem(context.Background(), "CBC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Rate != 250 {
		t.Errorf("expected latest rate 250, got %v", latest.Rate)
	}
}
