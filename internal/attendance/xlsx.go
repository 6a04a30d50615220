package attendance

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"classattend/internal/apperr"
)

const (
	matrixSheet = "Attendance"
	scoresSheet = "Scores"
)

// WriteWorkbook renders a report as an xlsx workbook at path. Cells are
// addressed through coordinate conversion, so the sheet is correct for
// any number of sessions.
func WriteWorkbook(report Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), matrixSheet); err != nil {
		return apperr.Unexpected(err)
	}
	if _, err := f.NewSheet(scoresSheet); err != nil {
		return apperr.Unexpected(err)
	}

	if err := writeMatrix(f, report); err != nil {
		return err
	}
	if err := writeScores(f, report); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return apperr.Unexpected(fmt.Errorf("save workbook: %w", err))
	}
	return nil
}

func writeMatrix(f *excelize.File, report Report) error {
	if err := setCell(f, matrixSheet, 1, 1, "Student Matric Number"); err != nil {
		return err
	}
	for i, col := range report.Columns {
		if err := setCell(f, matrixSheet, i+2, 1, col.Date); err != nil {
			return err
		}
	}
	for r, row := range report.Rows {
		if err := setCell(f, matrixSheet, 1, r+2, row.MatricNumber); err != nil {
			return err
		}
		for i, col := range report.Columns {
			if !row.Present[col.SessionID] {
				continue
			}
			if err := setCell(f, matrixSheet, i+2, r+2, "Present"); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeScores(f *excelize.File, report Report) error {
	headers := []string{"Matric Number", "Presents", "Absent", "Total", "Mark"}
	for i, h := range headers {
		if err := setCell(f, scoresSheet, i+1, 1, h); err != nil {
			return err
		}
	}
	for r, row := range report.Scores {
		values := []any{row.MatricNumber, row.Present, row.Absent, row.Total, row.Mark}
		for i, v := range values {
			if err := setCell(f, scoresSheet, i+1, r+2, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return apperr.Unexpected(err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return apperr.Unexpected(err)
	}
	return nil
}
