// Package report renders the run's output workbooks: Summary, Detailed,
// Top-Contacts, Final-Processed-Contacts, and the row-attrition
// workbook, plus the human-readable run-metrics markdown. Every writer
// here is a pure function over already-computed pipeline results; none
// touch the filesystem except to save the finished file.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tariktz/contactminer/internal/model"
	"github.com/tariktz/contactminer/internal/pipeline"
	"github.com/tariktz/contactminer/internal/runctx"
)

// excludedTopContactsTypes are the number types dropped from the
// Top-Contacts / Final-Processed-Contacts views even when otherwise
// highest priority.
var excludedTopContactsTypes = map[string]bool{
	"unknown": true,
	"fax":     true,
	"mobile":  true,
	"date":    true,
	"id":      true,
}

const topContactsLimit = 3

// WriteSummary writes one row per input row: identity, given-phone
// verification status, outcome, and up to three non-excluded numbers
// for that row's canonical site.
func WriteSummary(path string, rows []pipeline.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []string{"RunID", "InputRowID", "CompanyName", "GivenURL", "GivenPhoneStatus",
		"LandedURL", "Outcome", "FaultCategory", "Top1", "Top2", "Top3"}
	writeHeader(f, sheet, header)

	r := 2
	for _, row := range rows {
		top := topNumbers(row.SiteDetails, topContactsLimit)
		cells := []interface{}{
			row.RunID, row.RowID, row.CompanyName, row.GivenURL, string(row.GivenPhoneStatus),
			row.LandedURL, string(row.Outcome.Reason), string(row.Outcome.FaultCategory),
			numOrEmpty(top, 0), numOrEmpty(top, 1), numOrEmpty(top, 2),
		}
		writeRow(f, sheet, r, cells)
		r++
	}
	return save(f, path)
}

// WriteDetailed writes one row per classified number per canonical
// site, independent of which input row(s) contributed.
func WriteDetailed(path string, siteDetails map[model.CanonicalSiteKey]model.SiteContactDetails) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []string{"CanonicalSiteKey", "CompanyName", "Number", "Classification", "Type", "ErrorTag", "Sources", "AdditionalInfo", "HomepageSummary"}
	writeHeader(f, sheet, header)

	keys := sortedKeys(siteDetails)
	r := 2
	for _, key := range keys {
		details := siteDetails[key]
		for _, n := range details.ConsolidatedNumbers {
			cells := []interface{}{
				string(key), details.CompanyName, n.Number, string(n.Classification), n.Type, n.ErrorTag,
				sourcesLabel(n.Sources), additionalInfoLabel(n.AdditionalInfo), details.HomepageSummary,
			}
			writeRow(f, sheet, r, cells)
			r++
		}
	}
	return save(f, path)
}

// additionalInfoLabel renders enrichment items as "type:value" pairs,
// empty when enrichment was not enabled for this run.
func additionalInfoLabel(items []model.AdditionalContactInfo) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.InfoType+":"+it.Value)
	}
	return strings.Join(parts, "; ")
}

// WriteTopContacts writes up to three filtered numbers per canonical
// site, aggregating every input row's company name that shared it into
// one "host - CompanyA - CompanyB" label.
func WriteTopContacts(path string, rows []pipeline.ReportRow, siteDetails map[model.CanonicalSiteKey]model.SiteContactDetails) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []string{"CanonicalSiteKey", "AggregatedCompanyLabel", "Number", "Classification", "Type"}
	writeHeader(f, sheet, header)

	labels := aggregatedCompanyLabels(rows)
	keys := sortedKeys(siteDetails)

	r := 2
	for _, key := range keys {
		details := siteDetails[key]
		top := topNumbers(&details, topContactsLimit)
		for _, n := range top {
			cells := []interface{}{string(key), labels[key], n.Number, string(n.Classification), n.Type}
			writeRow(f, sheet, r, cells)
			r++
		}
	}
	return save(f, path)
}

// WriteFinalProcessedContacts renders the post-processed view of
// Top-Contacts: one row per canonical site with its filtered numbers
// flattened into fixed columns, for downstream consumers that want a
// single row per site rather than one row per number.
func WriteFinalProcessedContacts(path string, rows []pipeline.ReportRow, siteDetails map[model.CanonicalSiteKey]model.SiteContactDetails) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []string{"CanonicalSiteKey", "AggregatedCompanyLabel", "Number1", "Type1", "Number2", "Type2", "Number3", "Type3"}
	writeHeader(f, sheet, header)

	labels := aggregatedCompanyLabels(rows)
	keys := sortedKeys(siteDetails)

	r := 2
	for _, key := range keys {
		details := siteDetails[key]
		top := topNumbers(&details, topContactsLimit)
		cells := []interface{}{string(key), labels[key]}
		for i := 0; i < topContactsLimit; i++ {
			if i < len(top) {
				cells = append(cells, top[i].Number, top[i].Type)
			} else {
				cells = append(cells, "", "")
			}
		}
		writeRow(f, sheet, r, cells)
		r++
	}
	return save(f, path)
}

// WriteAttrition writes one row per input row summarizing its final
// outcome for attrition analysis.
func WriteAttrition(path string, rows []pipeline.ReportRow, determinedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []string{"InputRowID", "CompanyName", "GivenURL", "Final_Row_Outcome_Reason",
		"Determined_Fault_Category", "Relevant_Canonical_URLs", "LLM_Error_Detail_Summary", "Timestamp_Of_Determination"}
	writeHeader(f, sheet, header)

	r := 2
	for _, row := range rows {
		llmErr := ""
		if strings.HasPrefix(string(row.Outcome.Reason), "LLM_") {
			llmErr = string(row.Outcome.Reason)
		}
		cells := []interface{}{
			row.RowID, row.CompanyName, row.GivenURL, string(row.Outcome.Reason),
			string(row.Outcome.FaultCategory), string(row.CanonicalKey), llmErr,
			determinedAt.UTC().Format(time.RFC3339),
		}
		writeRow(f, sheet, r, cells)
		r++
	}
	return save(f, path)
}

// WriteMetrics renders the human-readable run-metrics markdown: task
// counters, token totals, success rate, and per-stage failure counts.
func WriteMetrics(path, runID string, m runctx.Metrics, elapsed time.Duration) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run metrics — %s\n\n", runID)
	fmt.Fprintf(&b, "- Duration: %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Rows total: %d\n", m.RowsTotal)
	fmt.Fprintf(&b, "- Scrapes attempted: %d\n", m.ScrapesAttempted)
	fmt.Fprintf(&b, "- Scrapes succeeded: %d\n", m.ScrapesSucceeded)
	fmt.Fprintf(&b, "- Canonicals classified: %d\n", m.CanonicalsClassified)
	fmt.Fprintf(&b, "- Candidates extracted: %d\n", m.CandidatesExtracted)
	fmt.Fprintf(&b, "- Rows with contact extracted: %d\n", m.ContactsExtractedRows)
	fmt.Fprintf(&b, "- LLM input tokens: %d\n", m.LLMTokensInput)
	fmt.Fprintf(&b, "- LLM output tokens: %d\n", m.LLMTokensOutput)
	if m.RowsTotal > 0 {
		fmt.Fprintf(&b, "- Success rate: %.1f%%\n", 100*float64(m.ContactsExtractedRows)/float64(m.RowsTotal))
	}

	b.WriteString("\n## Row failures by stage\n\n")
	if len(m.RowFailuresByStage) == 0 {
		b.WriteString("none\n")
	} else {
		stages := make([]string, 0, len(m.RowFailuresByStage))
		for s := range m.RowFailuresByStage {
			stages = append(stages, s)
		}
		sort.Strings(stages)
		for _, s := range stages {
			fmt.Fprintf(&b, "- %s: %d\n", s, m.RowFailuresByStage[s])
		}
	}

	return writeFile(path, b.String())
}

func topNumbers(details *model.SiteContactDetails, limit int) []model.ConsolidatedNumber {
	if details == nil {
		return nil
	}
	var filtered []model.ConsolidatedNumber
	for _, n := range details.ConsolidatedNumbers {
		if n.ErrorTag != "" {
			continue
		}
		if n.Classification == model.ClassificationNonBusiness {
			continue
		}
		if excludedTopContactsTypes[strings.ToLower(strings.TrimSpace(n.Type))] {
			continue
		}
		filtered = append(filtered, n)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

func aggregatedCompanyLabels(rows []pipeline.ReportRow) map[model.CanonicalSiteKey]string {
	companiesByKey := make(map[model.CanonicalSiteKey][]string)
	seen := make(map[model.CanonicalSiteKey]map[string]bool)
	for _, row := range rows {
		if row.CanonicalKey == "" {
			continue
		}
		if seen[row.CanonicalKey] == nil {
			seen[row.CanonicalKey] = make(map[string]bool)
		}
		if row.CompanyName == "" || seen[row.CanonicalKey][row.CompanyName] {
			continue
		}
		seen[row.CanonicalKey][row.CompanyName] = true
		companiesByKey[row.CanonicalKey] = append(companiesByKey[row.CanonicalKey], row.CompanyName)
	}

	labels := make(map[model.CanonicalSiteKey]string, len(companiesByKey))
	for key, companies := range companiesByKey {
		labels[key] = hostOf(key) + " - " + strings.Join(companies, " - ")
	}
	return labels
}

func hostOf(key model.CanonicalSiteKey) string {
	s := string(key)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	return s
}

func sourcesLabel(sources []model.ConsolidatedSource) string {
	labels := make([]string, 0, len(sources))
	for _, s := range sources {
		labels = append(labels, fmt.Sprintf("%s(%s)", s.FullSourceURL, s.Type))
	}
	return strings.Join(labels, "; ")
}

func sortedKeys(m map[model.CanonicalSiteKey]model.SiteContactDetails) []model.CanonicalSiteKey {
	keys := make([]model.CanonicalSiteKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func numOrEmpty(nums []model.ConsolidatedNumber, i int) string {
	if i >= len(nums) {
		return ""
	}
	return nums[i].Number
}

func writeHeader(f *excelize.File, sheet string, header []string) {
	for i, h := range header {
		cellName, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cellName, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cellName, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cellName, v)
	}
}

func save(f *excelize.File, path string) error {
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
