package reports

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/models"
	"github.com/xuri/excelize/v2"
)

const agingSheetName = "Aging Summary"

// BuildAgingWorkbook renders the aging summary as an xlsx workbook: one row
// per party with the four bucket columns, a totals row, and a footer marking
// when and from which source the numbers were produced.
func BuildAgingWorkbook(summary *models.AgingSummary, entityType string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(agingSheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Party Name", "Entity Type", "0-30 Days", "31-60 Days", "61-90 Days", "Over 90 Days", "Total Outstanding"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(agingSheetName, cell, h); err != nil {
			return nil, err
		}
	}

	rowNo := 2
	for _, row := range summary.Data {
		values := []interface{}{
			row.PartyName,
			string(row.EntityType),
			row.Current0To30.InexactFloat64(),
			row.Current31To60.InexactFloat64(),
			row.Current61To90.InexactFloat64(),
			row.CurrentOver90.InexactFloat64(),
			row.TotalOutstanding.InexactFloat64(),
		}
		if err := setRow(f, rowNo, values); err != nil {
			return nil, err
		}
		rowNo++
	}

	totals := []interface{}{
		"TOTAL",
		entityType,
		summary.Totals.Current0To30.InexactFloat64(),
		summary.Totals.Current31To60.InexactFloat64(),
		summary.Totals.Current61To90.InexactFloat64(),
		summary.Totals.CurrentOver90.InexactFloat64(),
		summary.Totals.TotalOutstanding.InexactFloat64(),
	}
	if err := setRow(f, rowNo, totals); err != nil {
		return nil, err
	}

	footer := fmt.Sprintf("Calculated at %s (source: %s)",
		summary.CalculatedAt.Format(time.RFC3339), summary.Source)
	cell, err := excelize.CoordinatesToCellName(1, rowNo+2)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(agingSheetName, cell, footer); err != nil {
		return nil, err
	}

	return f, nil
}

func setRow(f *excelize.File, rowNo int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(agingSheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}
