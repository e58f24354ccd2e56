package template

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RUPHAsoft/healthcare/internal/domain/catalog"
	"github.com/RUPHAsoft/healthcare/internal/platform/auth"
	"github.com/RUPHAsoft/healthcare/internal/validation"
)

// ErrElevationRequired is returned when an operation needs elevated
// permissions that the caller's scope does not carry.
var ErrElevationRequired = errors.New("operation requires elevated permissions")

// Synchronizer keeps lab test templates and their billing catalog items
// consistent. Every billable template owns exactly one item whose code,
// name, rate and disabled flag mirror the template.
type Synchronizer struct {
	repo    Repository
	catalog *catalog.Service
	items   catalog.ItemRepository
	prices  catalog.PriceRepository
	logger  zerolog.Logger
}

func NewSynchronizer(repo Repository, cat *catalog.Service, items catalog.ItemRepository,
	prices catalog.PriceRepository, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{repo: repo, catalog: cat, items: items, prices: prices, logger: logger}
}

// Create validates and persists a new template, then provisions its
// catalog item. Templates linked to an existing item adopt that item's
// latest price instead of creating a new one.
func (s *Synchronizer) Create(ctx context.Context, tpl *LabTestTemplate) error {
	if tpl.Code == "" {
		return &validation.ValidationError{Field: "code", Msg: "code is required"}
	}
	if tpl.Name == "" {
		tpl.Name = tpl.Code
	}
	if err := s.Validate(tpl); err != nil {
		return err
	}
	exists, err := s.repo.Exists(ctx, tpl.Code)
	if err != nil {
		return err
	}
	if exists {
		return &validation.ConflictError{Resource: "lab_test_template", ID: tpl.Code,
			Msg: "template already exists"}
	}

	if err := s.adoptExistingItemPrice(ctx, tpl); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return err
	}
	if !tpl.LinkExistingItem {
		if err := s.createItemFromTemplate(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}

// Update validates and persists template changes, then pushes any dirty
// billing fields to the catalog item.
func (s *Synchronizer) Update(ctx context.Context, tpl *LabTestTemplate) error {
	if err := s.Validate(tpl); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, tpl); err != nil {
		return err
	}
	if tpl.ChangeInItem {
		if err := s.pushItemChanges(ctx, tpl); err != nil {
			return err
		}
		tpl.ChangeInItem = false
		return s.repo.Update(ctx, tpl)
	}
	return nil
}

// Validate checks template and line-level integrity. Row numbers in the
// returned errors are 1-based positions within the offending child table.
func (s *Synchronizer) Validate(tpl *LabTestTemplate) error {
	if tpl.IsBillable && !tpl.LinkExistingItem && tpl.Rate <= 0 {
		return &validation.ValidationError{Field: "rate",
			Msg: "a billable template needs a rate greater than zero"}
	}
	if tpl.Sample != nil && *tpl.Sample != "" && tpl.SampleQty <= 0 {
		return &validation.ValidationError{Field: "sample_qty",
			Msg: "sample quantity must be greater than zero"}
	}
	switch tpl.Kind {
	case KindSingle:
		if tpl.HasSecondaryUOM() && tpl.ConversionFactor == 0 {
			return &validation.ValidationError{Field: "conversion_factor",
				Msg: "conversion factor is required when a secondary UOM is set"}
		}
	case KindCompound:
		for i, st := range tpl.SubTests {
			row := i + 1
			if st.TestName == "" {
				return &validation.ValidationError{Field: "test_name", Row: row,
					Msg: "sub-test event name is required"}
			}
			if st.HasSecondaryUOM() && st.ConversionFactor == 0 {
				return &validation.ValidationError{Field: "conversion_factor", Row: row,
					Msg: "conversion factor is required when a secondary UOM is set"}
			}
		}
	case KindGrouped:
		for i, gl := range tpl.GroupLines {
			row := i + 1
			if gl.IsNewLine() {
				if gl.TestName == nil || *gl.TestName == "" {
					return &validation.ValidationError{Field: "test_name", Row: row,
						Msg: "test name is required for a new line"}
				}
				if gl.HasSecondaryUOM() && gl.ConversionFactor == 0 {
					return &validation.ValidationError{Field: "conversion_factor", Row: row,
						Msg: "conversion factor is required when a secondary UOM is set"}
				}
			} else {
				if gl.TemplateCode == nil || *gl.TemplateCode == "" {
					return &validation.ValidationError{Field: "template_code", Row: row,
						Msg: "a template reference is required"}
				}
			}
		}
	}
	return nil
}

// EnableDisable toggles the template and, for billable templates,
// mirrors the flag onto the catalog item. A non-billable template's
// item stays disabled no matter what the template does.
func (s *Synchronizer) EnableDisable(ctx context.Context, code string, disabled bool) error {
	tpl, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	tpl.Disabled = disabled
	if err := s.repo.Update(ctx, tpl); err != nil {
		return err
	}
	if tpl.IsBillable && tpl.ItemCode != nil && *tpl.ItemCode != "" {
		return s.items.SetDisabled(ctx, *tpl.ItemCode, disabled)
	}
	return nil
}

// Delete removes the template. Its catalog item is detached and disabled
// rather than deleted, since historical invoices may still reference it.
func (s *Synchronizer) Delete(ctx context.Context, code string) error {
	tpl, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if tpl.ItemCode != nil && *tpl.ItemCode != "" {
		if err := s.repo.DetachItem(ctx, code); err != nil {
			return err
		}
		if err := s.items.SetDisabled(ctx, *tpl.ItemCode, true); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, code)
}

// RenameCode changes a template's code and cascades the rename through
// the linked item. The cascade is not atomic: each step checks current
// state before acting, so a partially applied rename can be retried and
// the remaining steps complete without error.
func (s *Synchronizer) RenameCode(ctx context.Context, scope auth.Scope, code, newCode string) (string, error) {
	if !scope.Elevated {
		return "", ErrElevationRequired
	}
	if newCode == "" {
		return "", &validation.ValidationError{Field: "new_code", Msg: "new code is required"}
	}
	if newCode == code {
		return code, nil
	}

	tpl, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		// A finished cascade leaves the template under the new code.
		done, exErr := s.repo.Exists(ctx, newCode)
		if exErr != nil {
			return "", exErr
		}
		if done {
			return newCode, nil
		}
		return "", err
	}
	if err != nil {
		return "", err
	}

	linked := ""
	if tpl.ItemCode != nil {
		linked = *tpl.ItemCode
	}
	linkedExists := false
	if linked != "" && linked != newCode {
		linkedExists, err = s.items.Exists(ctx, linked)
		if err != nil {
			return "", err
		}
	}
	newItemExists, err := s.items.Exists(ctx, newCode)
	if err != nil {
		return "", err
	}
	// The item under the new code may be this template's own, moved by
	// an earlier cascade attempt that stopped before the write-back.
	// Anything else is a clash.
	ownsNewCode := linked == newCode || (linked != "" && !linkedExists)
	if newItemExists && !ownsNewCode {
		return "", &validation.ValidationError{Field: "new_code",
			Msg: fmt.Sprintf("an item with code %s already exists", newCode)}
	}

	// The linked item follows the template to the new code, whatever
	// code it carried before. Unlinked templates rename alone.
	if linkedExists {
		if err := s.items.Rename(ctx, linked, newCode); err != nil {
			return "", fmt.Errorf("rename item: %w", err)
		}
		s.logger.Info().Str("old_code", linked).Str("new_code", newCode).
			Msg("renamed catalog item")
	}
	itemRef := tpl.ItemCode
	if linkedExists || linked == newCode || (linked != "" && newItemExists) {
		ref := newCode
		itemRef = &ref
	}

	if err := s.repo.SetCodeFields(ctx, code, newCode, itemRef); err != nil {
		return "", fmt.Errorf("update template code fields: %w", err)
	}
	if err := s.repo.Rename(ctx, code, newCode); err != nil {
		return "", fmt.Errorf("rename template: %w", err)
	}
	s.logger.Info().Str("old_code", code).Str("new_code", newCode).
		Msg("renamed lab test template")
	return newCode, nil
}

func (s *Synchronizer) Get(ctx context.Context, code string) (*LabTestTemplate, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Synchronizer) List(ctx context.Context, limit, offset int) ([]*LabTestTemplate, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// adoptExistingItemPrice copies the linked item's most recent rate onto
// the template so ordering uses the current selling price.
func (s *Synchronizer) adoptExistingItemPrice(ctx context.Context, tpl *LabTestTemplate) error {
	if !tpl.LinkExistingItem || tpl.ItemCode == nil || *tpl.ItemCode == "" {
		return nil
	}
	exists, err := s.items.Exists(ctx, *tpl.ItemCode)
	if err != nil {
		return err
	}
	if !exists {
		return &validation.ValidationError{Field: "item_code",
			Msg: fmt.Sprintf("item %s does not exist", *tpl.ItemCode)}
	}
	price, err := s.prices.LatestForItem(ctx, *tpl.ItemCode)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tpl.Rate = price.Rate
	return nil
}

// createItemFromTemplate provisions the item that bills this template.
// Non-billable templates still get an item, but a disabled one with no
// price, so enabling billing later is a flag flip.
func (s *Synchronizer) createItemFromTemplate(ctx context.Context, tpl *LabTestTemplate) error {
	exists, err := s.items.Exists(ctx, tpl.Code)
	if err != nil {
		return err
	}
	if !exists {
		uom, err := s.catalog.ResolveStockUOM(ctx)
		if err != nil {
			return err
		}
		it := &catalog.Item{
			Code:          tpl.Code,
			Name:          tpl.Name,
			Group:         tpl.ItemGroup,
			Description:   tpl.Description,
			Disabled:      !tpl.IsBillable || tpl.Disabled,
			StockUOM:      uom,
			IsSalesItem:   true,
			IsServiceItem: true,
		}
		if err := s.items.Create(ctx, it); err != nil {
			return err
		}
		s.logger.Info().Str("item_code", it.Code).Msg("created catalog item for template")
	}
	if tpl.IsBillable {
		priceList, err := s.catalog.SellingPriceList(ctx)
		if err != nil {
			return err
		}
		if err := s.prices.Create(ctx, &catalog.ItemPrice{
			ItemCode: tpl.Code, PriceList: priceList, Rate: tpl.Rate,
		}); err != nil {
			return err
		}
	}
	code := tpl.Code
	tpl.ItemCode = &code
	return s.repo.SetItem(ctx, tpl.Code, code, tpl.Rate)
}

// pushItemChanges propagates billing-relevant template edits to the item
// and records today's rate on the selling price list.
func (s *Synchronizer) pushItemChanges(ctx context.Context, tpl *LabTestTemplate) error {
	if tpl.ItemCode == nil || *tpl.ItemCode == "" {
		return nil
	}
	it, err := s.items.GetByCode(ctx, *tpl.ItemCode)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	it.Name = tpl.Name
	it.Group = tpl.ItemGroup
	it.Description = tpl.Description
	it.Disabled = !tpl.IsBillable || tpl.Disabled
	if err := s.items.Update(ctx, it); err != nil {
		return err
	}
	if tpl.IsBillable {
		priceList, err := s.catalog.SellingPriceList(ctx)
		if err != nil {
			return err
		}
		if err := s.prices.UpsertTodaysRate(ctx, *tpl.ItemCode, priceList, tpl.Rate); err != nil {
			return err
		}
	}
	return nil
}
