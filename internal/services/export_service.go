package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
)

// ExportService produces the spray diary workbook required for vineyard
// compliance audits: one row per completed application per chemical.
type ExportService interface {
	// SprayDiary renders a vineyard's completed spray records as an XLSX
	// workbook, oldest application first.
	SprayDiary(ctx context.Context, vineyardID uint) ([]byte, string, error)
}

// exportService is the concrete implementation of ExportService.
type exportService struct {
	records   repository.SprayRecordRepository
	vineyards repository.VineyardRepository
	log       *logger.Logger
}

// NewExportService creates a new ExportService.
func NewExportService(
	records repository.SprayRecordRepository,
	vineyards repository.VineyardRepository,
	log *logger.Logger,
) ExportService {
	return &exportService{records: records, vineyards: vineyards, log: log}
}

var diaryHeader = []string{
	"Date Completed",
	"Block",
	"Growth Stage (EL)",
	"Chemical",
	"Batch Number",
	"Operator",
	"Time Started",
	"Time Finished",
	"Hours Taken",
	"Temperature (C)",
	"Relative Humidity (%)",
	"Wind Speed (km/h)",
	"Wind Direction",
	"Notes",
}

func (s *exportService) SprayDiary(ctx context.Context, vineyardID uint) ([]byte, string, error) {
	vineyard, err := s.vineyards.GetVineyard(ctx, vineyardID)
	if err != nil {
		return nil, "", err
	}
	if vineyard == nil {
		return nil, "", ErrVineyardNotFound
	}

	records, err := s.records.ListCompletedByVineyard(ctx, vineyardID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Spray Diary"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range diaryHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, "", fmt.Errorf("failed to write diary header: %w", err)
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(diaryHeader), 1)
	_ = f.SetCellStyle(sheet, "A1", endCell, headerStyle)
	_ = f.SetColWidth(sheet, "A", "N", 18)

	row := 2
	for i := range records {
		record := &records[i]

		// Records with no chemicals still get one diary line so the
		// application itself is not lost from the export.
		if len(record.Chemicals) == 0 {
			s.writeDiaryRow(f, sheet, row, record, nil)
			row++
			continue
		}
		for j := range record.Chemicals {
			s.writeDiaryRow(f, sheet, row, record, &record.Chemicals[j])
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render spray diary: %w", err)
	}

	s.log.Info("Exported spray diary", map[string]interface{}{
		"vineyard_id":  vineyardID,
		"vineyard":     vineyard.Name,
		"record_count": len(records),
	})

	filename := fmt.Sprintf("%s-spray-diary.xlsx", slugify(vineyard.Name))
	return buf.Bytes(), filename, nil
}

// writeDiaryRow fills one worksheet row from a record and an optional
// chemical batch line.
func (s *exportService) writeDiaryRow(f *excelize.File, sheet string, row int, record *models.SprayRecord, chem *models.SprayRecordChemical) {
	values := make([]interface{}, len(diaryHeader))

	if record.DateCompleted != nil {
		values[0] = record.DateCompleted.Format("2006-01-02")
	}
	if record.ManagementUnit != nil {
		values[1] = record.ManagementUnit.DisplayName()
	}
	if record.GrowthStage != nil {
		values[2] = fmt.Sprintf("EL %d %s", record.GrowthStage.ELNumber, record.GrowthStage.Description)
	}
	if chem != nil {
		if chem.Chemical != nil {
			values[3] = chem.Chemical.Name
		}
		values[4] = chem.BatchNumber
	}
	if record.Operator != nil {
		values[5] = record.Operator.Name
	}
	if record.TimeStarted != nil {
		values[6] = record.TimeStarted.Format("15:04")
	}
	if record.TimeFinished != nil {
		values[7] = record.TimeFinished.Format("15:04")
	}
	if record.HoursTaken != nil {
		values[8], _ = record.HoursTaken.Float64()
	}
	if record.Temperature != nil {
		values[9] = *record.Temperature
	}
	if record.RelativeHumidity != nil {
		values[10] = *record.RelativeHumidity
	}
	if record.WindSpeed != nil {
		values[11] = *record.WindSpeed
	}
	if record.WindDirection != nil {
		values[12] = string(*record.WindDirection)
	}
	values[13] = record.Notes

	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

// slugify lowercases a name and replaces runs of non-alphanumerics with
// hyphens, for use in a download filename.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
