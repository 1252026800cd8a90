package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tariktz/contactminer/internal/model"
	"github.com/tariktz/contactminer/internal/pipeline"
	"github.com/tariktz/contactminer/internal/runctx"
)

func sampleSiteDetails() map[model.CanonicalSiteKey]model.SiteContactDetails {
	key := model.CanonicalSiteKey("https://acme.example")
	return map[model.CanonicalSiteKey]model.SiteContactDetails{
		key: {
			CanonicalKey: key,
			CompanyName:  "Acme GmbH",
			ConsolidatedNumbers: []model.ConsolidatedNumber{
				{Number: "+493012345", Classification: model.ClassificationPrimary, Type: "Main Line"},
				{Number: "+493099999", Classification: model.ClassificationNonBusiness, Type: "Fax"},
				{Number: "+493055555", Classification: model.ClassificationSupport, Type: "Support"},
			},
			OriginalInputURLs: []string{"https://acme.example"},
		},
	}
}

func sampleRows() []pipeline.ReportRow {
	key := model.CanonicalSiteKey("https://acme.example")
	details := sampleSiteDetails()[key]
	return []pipeline.ReportRow{
		{
			RunID: "run1", RowID: "1", CompanyName: "Acme GmbH", GivenURL: "https://acme.example",
			CanonicalKey: key, LandedURL: "https://acme.example",
			Outcome:     model.RowOutcome{RowID: "1", Reason: model.OutcomeContactSuccessfullyExtracted, FaultCategory: model.FaultNA},
			SiteDetails: &details,
		},
		{
			RunID: "run1", RowID: "2", CompanyName: "Acme Holdings", GivenURL: "https://www.acme.example",
			CanonicalKey: key, LandedURL: "https://acme.example",
			Outcome:     model.RowOutcome{RowID: "2", Reason: model.OutcomeContactSuccessfullyExtracted, FaultCategory: model.FaultNA},
			SiteDetails: &details,
		},
	}
}

func TestWriteSummary_OneRowPerInputRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	if err := WriteSummary(path, sampleRows()); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	if len(rows) != 3 { // header + 2 rows
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
}

func TestWriteDetailed_OneRowPerNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detailed.xlsx")
	if err := WriteDetailed(path, sampleSiteDetails()); err != nil {
		t.Fatalf("WriteDetailed: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	if len(rows) != 4 { // header + 3 numbers
		t.Fatalf("want 4 rows, got %d", len(rows))
	}
}

func TestWriteTopContacts_FiltersNonBusinessAndFax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top.xlsx")
	if err := WriteTopContacts(path, sampleRows(), sampleSiteDetails()); err != nil {
		t.Fatalf("WriteTopContacts: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	// header + 2 surviving numbers (Fax and Non-Business excluded)
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d: %v", len(rows), rows)
	}
	label := rows[1][1]
	if label != "acme.example - Acme GmbH - Acme Holdings" {
		t.Errorf("want aggregated label, got %q", label)
	}
}

func TestWriteFinalProcessedContacts_OneRowPerCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final.xlsx")
	if err := WriteFinalProcessedContacts(path, sampleRows(), sampleSiteDetails()); err != nil {
		t.Fatalf("WriteFinalProcessedContacts: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	if len(rows) != 2 { // header + 1 canonical
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
}

func TestWriteAttrition_OneRowPerInputRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrition.xlsx")
	if err := WriteAttrition(path, sampleRows(), time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("WriteAttrition: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
}

func TestWriteMetrics_RendersCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.md")
	rc := runctx.New("run1", nil, nil)
	rc.Metrics.RowsTotal = 2
	rc.Metrics.IncrScrapesAttempted()
	rc.Metrics.IncrContactsExtractedRows()
	rc.Metrics.RecordRowFailure("Scraping_TimeoutError")

	if err := WriteMetrics(path, "run1", rc.Metrics.Snapshot(), 2500*time.Millisecond); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(content)
	if !strings.Contains(got, "Rows total: 2") || !strings.Contains(got, "Scraping_TimeoutError: 1") {
		t.Errorf("missing expected counters, got %q", got)
	}
}
