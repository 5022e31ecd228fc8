package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusActive is the lifecycle label that makes a management unit
// eligible for spray applications.
const StatusActive = "Active"

// Wine colour names are fixed reference data.
const (
	WineColourRed   = "Red"
	WineColourWhite = "White"
)

// Vineyard is a property containing one or more management units.
type Vineyard struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     string  `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Address  string  `gorm:"size:255" json:"address,omitempty"`
	Boundary Polygon `gorm:"type:text" json:"boundary,omitempty"`

	ManagementUnits []ManagementUnit `gorm:"constraint:OnDelete:CASCADE" json:"management_units,omitempty"`
}

// WineColour classifies varieties as red or white.
type WineColour struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`

	Varieties []Variety `json:"-"`
}

// TableName returns the table name for wine colours.
func (WineColour) TableName() string {
	return "wine_colours"
}

// IsRed reports whether this colour is "Red".
func (w *WineColour) IsRed() bool {
	return w.Name == WineColourRed
}

// IsWhite reports whether this colour is "White".
func (w *WineColour) IsWhite() bool {
	return w.Name == WineColourWhite
}

// Variety is a grape variety, e.g. "Cabernet Sauvignon".
type Variety struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	WineColourID uint   `gorm:"not null" json:"wine_colour_id"`

	WineColour      *WineColour      `json:"wine_colour,omitempty"`
	ManagementUnits []ManagementUnit `json:"-"`
}

// Status is a free-text lifecycle label for a management unit,
// e.g. "Active" or "Fallow".
type Status struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Status string `gorm:"size:100;not null;default:'Active'" json:"status"`

	ManagementUnits []ManagementUnit `json:"-"`
}

// TableName returns the table name for statuses.
func (Status) TableName() string {
	return "statuses"
}

// ManagementUnit is a sub-block of a vineyard with its own variety, area
// and spray-treatment history.
type ManagementUnit struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Name                string          `gorm:"size:255;not null;index" json:"name"`
	VarietyNameModifier string          `gorm:"size:255" json:"variety_name_modifier,omitempty"`
	Area                decimal.Decimal `gorm:"type:decimal(5,2)" json:"area"`
	RowWidth            decimal.Decimal `gorm:"type:decimal(3,2)" json:"row_width"`
	VineSpacing         decimal.Decimal `gorm:"type:decimal(3,2)" json:"vine_spacing"`
	RowsTotal           *int            `json:"rows_total,omitempty"`
	RowsStartNumber     *int            `json:"rows_start_number,omitempty"`
	RowsEndNumber       *int            `json:"rows_end_number,omitempty"`
	DatePlanted         *time.Time      `json:"date_planted,omitempty"`
	AreaPolygon         Polygon         `gorm:"type:text" json:"area_polygon,omitempty"`

	VineyardID uint  `gorm:"not null;index" json:"vineyard_id"`
	VarietyID  *uint `json:"variety_id,omitempty"`
	StatusID   *uint `json:"status_id,omitempty"`

	Vineyard *Vineyard `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Variety  *Variety  `json:"variety,omitempty"`
	Status   *Status   `json:"status,omitempty"`

	SprayRecords []SprayRecord `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for management units.
func (ManagementUnit) TableName() string {
	return "management_units"
}

// IsActive reports whether the unit's status is "Active".
// Units without a status are treated as inactive.
func (m *ManagementUnit) IsActive() bool {
	return m.Status != nil && m.Status.Status == StatusActive
}

// IsRedWine reports whether the unit's variety is a red-wine variety.
// Units without a variety are neither red nor white.
func (m *ManagementUnit) IsRedWine() bool {
	return m.Variety != nil && m.Variety.WineColour != nil && m.Variety.WineColour.IsRed()
}

// IsWhiteWine reports whether the unit's variety is a white-wine variety.
func (m *ManagementUnit) IsWhiteWine() bool {
	return m.Variety != nil && m.Variety.WineColour != nil && m.Variety.WineColour.IsWhite()
}

// DisplayName combines the variety name with the unit's modifier, matching
// how blocks are labelled on spray sheets, e.g. "Shiraz (Top)".
func (m *ManagementUnit) DisplayName() string {
	if m.Variety == nil {
		return m.Name
	}
	if m.VarietyNameModifier == "" {
		return m.Variety.Name
	}
	return m.Variety.Name + " (" + m.VarietyNameModifier + ")"
}
