package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WindDirection is an 8-point compass direction recorded at spray time.
type WindDirection string

const (
	WindN  WindDirection = "N"
	WindNE WindDirection = "NE"
	WindE  WindDirection = "E"
	WindSE WindDirection = "SE"
	WindS  WindDirection = "S"
	WindSW WindDirection = "SW"
	WindW  WindDirection = "W"
	WindNW WindDirection = "NW"
)

// WindDirections lists every valid wind direction.
func WindDirections() []WindDirection {
	return []WindDirection{WindN, WindNE, WindE, WindSE, WindS, WindSW, WindW, WindNW}
}

// ParseWindDirection validates a wind-direction string.
func ParseWindDirection(s string) (WindDirection, error) {
	for _, d := range WindDirections() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid wind direction %q", s)
}

// RecordState is the lifecycle state of a spray for a management unit.
// NotStarted means no record row exists yet; it is never stored.
type RecordState string

const (
	RecordNotStarted RecordState = "not_started"
	RecordPending    RecordState = "pending"
	RecordCompleted  RecordState = "completed"
)

// SprayRecord is the execution record of one spray on one management unit:
// who applied it, when, and under what conditions. At most one record exists
// per (management unit, spray) pair.
type SprayRecord struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	SprayID uint `gorm:"not null;uniqueIndex:idx_spray_records_unit_spray" json:"spray_id"`
	// The unit FK cascades: deleting a unit deletes its records.
	ManagementUnitID uint `gorm:"not null;uniqueIndex:idx_spray_records_unit_spray;index" json:"management_unit_id"`

	OperatorID    *uint `json:"operator_id,omitempty"`
	GrowthStageID *uint `json:"growth_stage_id,omitempty"`

	Complete      bool       `gorm:"not null;default:false" json:"complete"`
	DateCreated   time.Time  `gorm:"autoCreateTime;index" json:"date_created"`
	DateUpdated   time.Time  `gorm:"autoUpdateTime" json:"date_updated"`
	DateCompleted *time.Time `json:"date_completed,omitempty"`
	TimeStarted   *time.Time `json:"time_started,omitempty"`
	TimeFinished  *time.Time `json:"time_finished,omitempty"`

	Temperature      *int             `json:"temperature,omitempty"`
	RelativeHumidity *int             `json:"relative_humidity,omitempty"`
	WindSpeed        *int             `json:"wind_speed,omitempty"`
	WindDirection    *WindDirection   `gorm:"size:3" json:"wind_direction,omitempty"`
	HoursTaken       *decimal.Decimal `gorm:"type:decimal(5,2)" json:"hours_taken,omitempty"`
	Notes            string           `gorm:"type:text" json:"notes,omitempty"`

	ManagementUnit *ManagementUnit       `gorm:"constraint:OnDelete:CASCADE" json:"management_unit,omitempty"`
	Spray          *Spray                `json:"-"`
	Operator       *User                 `gorm:"foreignKey:OperatorID" json:"operator,omitempty"`
	GrowthStage    *GrowthStage          `json:"growth_stage,omitempty"`
	Chemicals      []SprayRecordChemical `gorm:"constraint:OnDelete:CASCADE" json:"chemicals,omitempty"`
}

// TableName returns the table name for spray records.
func (SprayRecord) TableName() string {
	return "spray_records"
}

// State derives the record's lifecycle state from the complete flag.
func (r *SprayRecord) State() RecordState {
	if r.Complete {
		return RecordCompleted
	}
	return RecordPending
}

// SprayRecordChemical records the batch number of a chemical actually
// applied for a spray record. Unique per (record, chemical).
type SprayRecordChemical struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	SprayRecordID uint   `gorm:"not null;uniqueIndex:idx_record_chemicals_pair" json:"spray_record_id"`
	ChemicalID    uint   `gorm:"not null;uniqueIndex:idx_record_chemicals_pair" json:"chemical_id"`
	BatchNumber   string `gorm:"size:100;not null" json:"batch_number"`

	SprayRecord *SprayRecord `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Chemical    *Chemical    `json:"chemical,omitempty"`
}

// TableName returns the table name for spray record chemicals.
func (SprayRecordChemical) TableName() string {
	return "spray_record_chemicals"
}
