package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	now := time.Now().Truncate(time.Second)

	err := j.Record(Entry{
		Path:       "/certs/a.pem",
		Outcome:    OutcomeSuccess,
		ThisUpdate: now.Add(-time.Hour),
		NextUpdate: now.Add(24 * time.Hour),
		At:         now,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := j.Recent("/certs/a.pem", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.Outcome != OutcomeSuccess || e.Path != "/certs/a.pem" {
		t.Errorf("entry = %+v", e)
	}
	if !e.NextUpdate.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("NextUpdate = %v", e.NextUpdate)
	}
}

func TestRecentFiltersAndOrders(t *testing.T) {
	j := openTestJournal(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	for i := 0; i < 3; i++ {
		j.Record(Entry{Path: "/certs/a.pem", Outcome: OutcomeFailure, ErrorKind: "network", At: base.Add(time.Duration(i) * time.Minute)})
	}
	j.Record(Entry{Path: "/certs/b.pem", Outcome: OutcomeSuccess, At: base})

	entries, err := j.Recent("/certs/a.pem", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].At.Before(entries[1].At) {
		t.Error("entries not newest first")
	}
	for _, e := range entries {
		if e.Path != "/certs/a.pem" {
			t.Errorf("path filter leaked %q", e.Path)
		}
	}

	all, err := j.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent(all): %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d entries for all paths, want 4", len(all))
	}
}

func TestRecordFillsTimestamp(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Record(Entry{Path: "/certs/a.pem", Outcome: OutcomeFailure, ErrorKind: "persist"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entries, err := j.Recent("/certs/a.pem", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].At.IsZero() {
		t.Errorf("entries = %+v", entries)
	}
}
