package runctx

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tariktz/contactminer/internal/model"
)

func TestFailureWriter_WritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	fw, err := NewFailureWriter(&buf)
	if err != nil {
		t.Fatalf("NewFailureWriter: %v", err)
	}
	if err := fw.Append(model.FailureEvent{
		Timestamp:   time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
		RowID:       "3",
		CompanyName: "Acme",
		GivenURL:    "acme.test",
		Stage:       "Scraping_TimeoutError",
		Reason:      "TimeoutError",
		Details:     "context deadline exceeded",
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want header + 1 row, got %d lines: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "log_timestamp,") {
		t.Errorf("want header row first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "Acme") || !strings.Contains(lines[1], "TimeoutError") {
		t.Errorf("want appended row to carry fields, got %q", lines[1])
	}
}

func TestTryStartClassification_OnlyOneWinnerUnderConcurrency(t *testing.T) {
	rc := New("run1", nil, nil)
	key := model.CanonicalSiteKey("https://a.test")

	const n = 50
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if rc.TryStartClassification(key) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("want exactly 1 winner, got %d", wins)
	}
}

func TestCanonicalState_CreatedOnceRecordsFirstRow(t *testing.T) {
	rc := New("run1", nil, nil)
	key := model.CanonicalSiteKey("https://a.test")

	state1, created1 := rc.CanonicalState(key, "row-1")
	if !created1 {
		t.Fatalf("want first call to create the entry")
	}
	state2, created2 := rc.CanonicalState(key, "row-2")
	if created2 {
		t.Errorf("want second call to reuse the existing entry")
	}
	if state1 != state2 {
		t.Errorf("want the same state pointer returned")
	}
	if state1.FirstSeenByRowID != "row-1" {
		t.Errorf("want FirstSeenByRowID kept from first call, got %q", state1.FirstSeenByRowID)
	}
}

func TestMetrics_SnapshotIsIndependentCopy(t *testing.T) {
	m := newMetrics()
	m.IncrScrapesAttempted()
	m.RecordRowFailure("Scraping_TimeoutError")

	snap := m.Snapshot()
	m.IncrScrapesAttempted()
	m.RecordRowFailure("Scraping_TimeoutError")

	if snap.ScrapesAttempted != 1 {
		t.Errorf("want snapshot frozen at 1, got %d", snap.ScrapesAttempted)
	}
	if snap.RowFailuresByStage["Scraping_TimeoutError"] != 1 {
		t.Errorf("want snapshot map frozen at 1, got %d", snap.RowFailuresByStage["Scraping_TimeoutError"])
	}
}
