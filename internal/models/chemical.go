package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MixRateUnit is the unit a chemical's base rate is expressed in.
type MixRateUnit string

const (
	MixRateMillilitres MixRateUnit = "mL"
	MixRateGrams       MixRateUnit = "g"
)

// ParseMixRateUnit validates a mix-rate unit string.
func ParseMixRateUnit(s string) (MixRateUnit, error) {
	switch MixRateUnit(s) {
	case MixRateMillilitres, MixRateGrams:
		return MixRateUnit(s), nil
	}
	return "", fmt.Errorf("unknown mix rate unit %q", s)
}

// ChemicalGroup is a mode-of-action classification, e.g. a FRAC or
// IRAC activity group.
type ChemicalGroup struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name string `gorm:"size:255" json:"name"`

	Chemicals []Chemical `gorm:"many2many:chemical_group_members" json:"-"`
}

// TableName returns the table name for chemical groups.
func (ChemicalGroup) TableName() string {
	return "chemical_groups"
}

// Chemical is a spray product with a base application rate.
type Chemical struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"size:255;uniqueIndex;not null" json:"name"`
	ActiveIngredient string          `gorm:"size:255" json:"active_ingredient"`
	RatePer100L      decimal.Decimal `gorm:"type:decimal(7,2)" json:"rate_per_100l"`
	RateUnit         MixRateUnit     `gorm:"size:10;not null;default:'mL'" json:"rate_unit"`

	ChemicalGroups []ChemicalGroup `gorm:"many2many:chemical_group_members" json:"chemical_groups,omitempty"`
}

// TableName returns the table name for chemicals.
func (Chemical) TableName() string {
	return "chemicals"
}
