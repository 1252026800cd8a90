// Package input reads the source spreadsheet into model.InputRows:
// column mapping, TargetCountryCodes defaulting, row-range selection,
// and the smart-read stop-after-N-empty-rows rule.
package input

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tariktz/contactminer/internal/model"
)

var defaultTargetCountryCodes = []string{"DE", "AT", "CH"}

const (
	colCompanyName        = "Unternehmen"
	colGivenURL           = "Webseite"
	colGivenPhoneNumber   = "Telefonnummer"
	colDescription        = "Beschreibung"
	colTargetCountryCodes = "TargetCountryCodes"
)

// Read loads rows from the first sheet of path, honoring rowRange (an
// "N-M", "N-", "-M", "N", or empty/"0" expression selecting 1-based
// data rows below the header) and stopping early once
// consecutiveEmptyRowsToStop blank rows are seen in a row, unless an
// explicit upper bound was given in rowRange.
func Read(path, rowRange string, consecutiveEmptyRowsToStop int) ([]model.InputRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetList()
	if len(sheet) == 0 {
		return nil, fmt.Errorf("input: %s has no sheets", path)
	}

	rows, err := f.GetRows(sheet[0])
	if err != nil {
		return nil, fmt.Errorf("input: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	idx := columnIndex(header)

	lo, hi, bounded := parseRowRange(rowRange, len(rows)-1)

	var result []model.InputRow
	emptyStreak := 0
	for i := lo; i <= hi && i < len(rows); i++ {
		raw := rows[i]
		row := toInputRow(raw, idx, i)

		if row.CompanyName == "" && row.GivenURL == "" {
			emptyStreak++
			if !bounded && consecutiveEmptyRowsToStop > 0 && emptyStreak >= consecutiveEmptyRowsToStop {
				break
			}
			continue
		}
		emptyStreak = 0
		result = append(result, row)
	}

	return result, nil
}

type columnIndices struct {
	companyName, givenURL, givenPhone, description, targetCodes int
}

func columnIndex(header []string) columnIndices {
	idx := columnIndices{-1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case colCompanyName:
			idx.companyName = i
		case colGivenURL:
			idx.givenURL = i
		case colGivenPhoneNumber:
			idx.givenPhone = i
		case colDescription:
			idx.description = i
		case colTargetCountryCodes:
			idx.targetCodes = i
		}
	}
	return idx
}

func cell(raw []string, col int) string {
	if col < 0 || col >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[col])
}

func toInputRow(raw []string, idx columnIndices, sheetRow int) model.InputRow {
	codes := defaultTargetCountryCodes
	if v := cell(raw, idx.targetCodes); v != "" {
		codes = splitCodes(v)
	}
	return model.InputRow{
		RowID:              strconv.Itoa(sheetRow + 1),
		CompanyName:        cell(raw, idx.companyName),
		GivenURL:           cell(raw, idx.givenURL),
		GivenPhoneNumber:   cell(raw, idx.givenPhone),
		Description:        cell(raw, idx.description),
		TargetCountryCodes: codes,
	}
}

func splitCodes(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == ' ' })
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			codes = append(codes, p)
		}
	}
	if len(codes) == 0 {
		return defaultTargetCountryCodes
	}
	return codes
}

// parseRowRange parses spec's row-range expression against a sheet with
// lastDataRow 1-based data rows, returning 0-based [lo,hi] indices into
// the rows slice returned by GetRows (which includes the header at 0).
// bounded reports whether an explicit upper bound was given.
func parseRowRange(expr string, lastDataRow int) (lo, hi int, bounded bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "0" {
		return 1, lastDataRow, false
	}

	if n, err := strconv.Atoi(expr); err == nil {
		return n, n, true
	}

	parts := strings.SplitN(expr, "-", 2)
	if len(parts) != 2 {
		return 1, lastDataRow, false
	}
	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	start := 1
	if startStr != "" {
		if n, err := strconv.Atoi(startStr); err == nil {
			start = n
		}
	}
	if endStr == "" {
		return start, lastDataRow, false
	}
	if n, err := strconv.Atoi(endStr); err == nil {
		return start, n, true
	}
	return start, lastDataRow, false
}
