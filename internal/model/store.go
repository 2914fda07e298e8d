package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Region is the sales region a store belongs to.
type Region string

const (
	RegionNorth Region = "North"
	RegionSouth Region = "South"
	RegionEast  Region = "East"
	RegionWest  Region = "West"
)

// ExperienceCenterUnknown marks a row whose Experience Center cell is blank
// or not a number. Such rows belong to neither the COCO nor the non-COCO segment.
const ExperienceCenterUnknown = -1

// OriginalURLColumn is the output name of the store-locator column.
const OriginalURLColumn = "Original URL"

// NormalizeRegion trims and title-cases a region cell ("north " -> "North").
// Unknown regions are kept as-is after normalization so they still reach the output.
// A Caser is stateful, so each call builds its own.
func NormalizeRegion(s string) Region {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return Region(cases.Title(language.English).String(strings.ToLower(s)))
}

// StoreInput is one row of the input worksheet.
type StoreInput struct {
	URL              string `json:"url"`
	ExperienceCenter int    `json:"experience_center"`
	Region           Region `json:"region"`

	// Columns lists every input column in sheet order, with the store-locator
	// column renamed to OriginalURLColumn. Values is keyed by those names.
	Columns []string       `json:"-"`
	Values  map[string]any `json:"-"`
}

// IsCOCO reports whether the store is company-owned and company-operated.
func (s StoreInput) IsCOCO() bool {
	return s.ExperienceCenter == 1
}
