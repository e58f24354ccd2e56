package template

import "time"

// Template kinds. Compound templates carry sub-tests, grouped templates
// carry group lines that either reference another template or declare an
// inline test.
const (
	KindSingle   = "Single"
	KindCompound = "Compound"
	KindGrouped  = "Grouped"
	KindNoResult = "No Result"
)

// AddNewLine marks a group line that declares an inline test rather than
// referencing an existing template.
const AddNewLine = "Add New Line"

// LabTestTemplate is the master definition of an orderable lab test. Its
// code doubles as the identity of the billing catalog item linked to it.
type LabTestTemplate struct {
	Code        string
	Name        string
	Kind        string
	Department  *string
	Description *string

	IsBillable       bool
	Rate             float64
	LinkExistingItem bool
	ItemCode         *string
	ItemGroup        string

	Sample    *string
	SampleQty float64

	// Single templates declare their units directly on the template;
	// compound and grouped templates declare them per line.
	SecondaryUOM     *string
	ConversionFactor float64

	SubTests   []SubTest
	GroupLines []GroupLine

	// ChangeInItem is set while billing-relevant fields are dirty and
	// cleared once they have been pushed to the catalog item.
	ChangeInItem bool
	Disabled     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSecondaryUOM reports whether the template declares a secondary unit.
func (t *LabTestTemplate) HasSecondaryUOM() bool {
	return t.SecondaryUOM != nil && *t.SecondaryUOM != ""
}

// SubTest is one component of a compound template.
type SubTest struct {
	Idx              int
	TestName         string
	TestUOM          *string
	SecondaryUOM     *string
	ConversionFactor float64
}

// GroupLine is one entry of a grouped template.
type GroupLine struct {
	Idx               int
	TemplateOrNewLine string
	TemplateCode      *string
	TestName          *string
	SecondaryUOM      *string
	ConversionFactor  float64
}

// HasSecondaryUOM reports whether the line declares a secondary unit.
func (s SubTest) HasSecondaryUOM() bool {
	return s.SecondaryUOM != nil && *s.SecondaryUOM != ""
}

// HasSecondaryUOM reports whether the line declares a secondary unit.
func (g GroupLine) HasSecondaryUOM() bool {
	return g.SecondaryUOM != nil && *g.SecondaryUOM != ""
}

// IsNewLine reports whether the group line declares an inline test.
func (g GroupLine) IsNewLine() bool {
	return g.TemplateOrNewLine == AddNewLine
}
