package store

import (
	"path/filepath"
	"testing"

	"arbiter/internal/airlock"
	"arbiter/internal/domain"
	"arbiter/internal/engine"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleEvaluation(t *testing.T) (*domain.Evaluation, *engine.Report) {
	t.Helper()
	ev, err := airlock.Sanitize(map[string]any{
		"alternatives": []any{"A", map[string]any{"name": "B", "description": "fallback"}},
		"criteria":     map[string]any{"Cost": 0.4, "Quality": 0.6},
		"scores": map[string]any{
			"A": map[string]any{"Cost": 8, "Quality": 7},
			"B": map[string]any{"Cost": 6, "Quality": 9},
		},
	})
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	report, err := engine.Evaluate(ev)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return ev, report
}

func TestJournal_SaveLoadRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ev, report := sampleEvaluation(t)

	if err := j.Save("vendors", ev, report); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Load goes back through the airlock; the reconstructed Evaluation must
	// be field-for-field identical.
	loaded, err := j.Load("vendors")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	opts := cmpopts.IgnoreUnexported(domain.Evaluation{})
	if diff := cmp.Diff(ev, loaded, opts); diff != "" {
		t.Errorf("evaluation mismatch (-want +got):\n%s", diff)
	}
	for _, a := range ev.Alternatives {
		for _, c := range ev.Criteria {
			want, _ := ev.ScoreValue(a.Name, c.Name)
			got, ok := loaded.ScoreValue(a.Name, c.Name)
			if !ok || got != want {
				t.Errorf("score %s/%s = %v, %v; want %v", a.Name, c.Name, got, ok, want)
			}
		}
	}
}

func TestJournal_SaveOverwrites(t *testing.T) {
	j := openTestJournal(t)
	ev, report := sampleEvaluation(t)

	if err := j.Save("vendors", ev, report); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := j.Save("vendors", ev, report); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	entries, err := j.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Winner != "B" {
		t.Errorf("Winner = %q, want B", entries[0].Winner)
	}
}

func TestJournal_LoadUnknown(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Load("missing"); err == nil {
		t.Fatal("loading an unknown name succeeded")
	}
}

func TestJournal_ListEmpty(t *testing.T) {
	j := openTestJournal(t)
	entries, err := j.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
}
