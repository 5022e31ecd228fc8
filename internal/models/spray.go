package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GrowthStage is an EL-system (Eichhorn-Lorenz) phenological stage used
// to time vineyard operations.
type GrowthStage struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ELNumber    int    `gorm:"uniqueIndex;not null" json:"el_number"`
	Description string `gorm:"size:255" json:"description"`
	IsMajor     bool   `gorm:"not null;default:false" json:"is_major"`
}

// TableName returns the table name for growth stages.
func (GrowthStage) TableName() string {
	return "growth_stages"
}

// Target is the pest, disease or purpose a chemical is applied for.
type Target string

const (
	TargetPowderyMildew Target = "Powdery Mildew"
	TargetDownyMildew   Target = "Downy Mildew"
	TargetBotrytis      Target = "Botrytis"
	TargetInsects       Target = "Insects"
	TargetWeeds         Target = "Weeds"
	TargetNutrition     Target = "Nutrition"
)

// Targets lists every valid spray target.
func Targets() []Target {
	return []Target{
		TargetPowderyMildew,
		TargetDownyMildew,
		TargetBotrytis,
		TargetInsects,
		TargetWeeds,
		TargetNutrition,
	}
}

// ParseTarget validates a target string.
func ParseTarget(s string) (Target, error) {
	for _, t := range Targets() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown spray target %q", s)
}

// SprayProgram is a named collection of sprays spanning a season,
// e.g. "2025/26 Standard Program".
type SprayProgram struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	YearStart   int       `gorm:"not null" json:"year_start"`
	YearEnd     int       `gorm:"not null" json:"year_end"`
	DateCreated time.Time `gorm:"autoCreateTime" json:"date_created"`

	Sprays []Spray `gorm:"constraint:OnDelete:CASCADE" json:"sprays,omitempty"`
}

// TableName returns the table name for spray programs.
func (SprayProgram) TableName() string {
	return "spray_programs"
}

// Spray is a single planned chemical application within a program: a set
// of chemicals applied at a target growth stage and water rate.
type Spray struct {
	ID                       uint            `gorm:"primaryKey;" json:"id"`
	Name                     string          `gorm:"size:255;not null;uniqueIndex:idx_sprays_program_name" json:"name"`
	SprayProgramID           uint            `gorm:"not null;uniqueIndex:idx_sprays_program_name;index" json:"spray_program_id"`
	GrowthStageID            uint            `gorm:"not null" json:"growth_stage_id"`
	WaterSprayRatePerHectare decimal.Decimal `gorm:"type:decimal(7,2)" json:"water_spray_rate_per_hectare"`
	DateCreated              time.Time       `gorm:"autoCreateTime" json:"date_created"`

	SprayProgram   *SprayProgram   `json:"-"`
	GrowthStage    *GrowthStage    `json:"growth_stage,omitempty"`
	SprayChemicals []SprayChemical `gorm:"constraint:OnDelete:CASCADE" json:"spray_chemicals,omitempty"`
	SprayRecords   []SprayRecord   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for sprays.
func (Spray) TableName() string {
	return "sprays"
}

// SprayChemical joins a spray to one of its planned chemicals, recording
// the target and the concentration relative to the chemical's base rate.
type SprayChemical struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	SprayID             uint            `gorm:"not null;uniqueIndex:idx_spray_chemicals_pair" json:"spray_id"`
	ChemicalID          uint            `gorm:"not null;uniqueIndex:idx_spray_chemicals_pair" json:"chemical_id"`
	Target              Target          `gorm:"size:50;not null" json:"target"`
	ConcentrationFactor decimal.Decimal `gorm:"type:decimal(4,2);not null;default:1" json:"concentration_factor"`

	Spray    *Spray    `json:"-"`
	Chemical *Chemical `json:"chemical,omitempty"`
}

// TableName returns the table name for spray chemicals.
func (SprayChemical) TableName() string {
	return "spray_chemicals"
}

// MixRatePer100L derives the applied rate from the chemical's base rate
// and this spray's concentration factor. Returns zero if the chemical
// association is not loaded.
func (sc *SprayChemical) MixRatePer100L() decimal.Decimal {
	if sc.Chemical == nil {
		return decimal.Zero
	}
	return sc.Chemical.RatePer100L.Mul(sc.ConcentrationFactor)
}
