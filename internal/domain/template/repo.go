package template

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a template does not exist.
var ErrNotFound = errors.New("lab test template not found")

// Repository persists lab test templates and their child lines.
type Repository interface {
	Create(ctx context.Context, tpl *LabTestTemplate) error
	GetByCode(ctx context.Context, code string) (*LabTestTemplate, error)
	Exists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, tpl *LabTestTemplate) error

	// SetItem records the catalog item linked to the template without
	// touching other fields.
	SetItem(ctx context.Context, code, itemCode string, rate float64) error

	// SetCodeFields updates the template's stored name and item
	// reference ahead of a rename. It does not change the template's
	// identity; Rename does that.
	SetCodeFields(ctx context.Context, code, newCode string, itemCode *string) error

	// Rename changes the template's identity. Renaming a code to itself
	// is a no-op.
	Rename(ctx context.Context, oldCode, newCode string) error

	// DetachItem clears the template's item linkage.
	DetachItem(ctx context.Context, code string) error

	Delete(ctx context.Context, code string) error
	List(ctx context.Context, limit, offset int) ([]*LabTestTemplate, int, error)
}
