package views

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"tramboard/internal/board"
	"tramboard/internal/domain"
)

func TestLoadTemplates_success(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if boardTmpl == nil {
		t.Fatal("LoadTemplates() left boardTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// Empty FS has no "templates" directory; ParseFS finds no files.
	err := loadTemplatesFromFS(fstest.MapFS{}, "templates")
	if err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS, \"templates\") = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/index.html":          {Data: []byte("{{ .")},
		"templates/partials/board.html": {Data: []byte("")},
	}
	if err := loadTemplatesFromFS(badFS, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(badFS, \"templates\") = nil; want error")
	}
}

func TestRender_notLoaded(t *testing.T) {
	prev := boardTmpl
	boardTmpl = nil
	t.Cleanup(func() { boardTmpl = prev })

	var buf bytes.Buffer
	if err := RenderPage(&buf, &PageData{}); err == nil || !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("RenderPage() = %v; want not loaded error", err)
	}
	if err := RenderBoardPartial(&buf, board.View{}); err == nil || !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("RenderBoardPartial() = %v; want not loaded error", err)
	}
}

func testBuilder() *board.Builder {
	return board.NewBuilder(board.NewClassifier(board.DefaultMarkers), board.Options{
		Title:            "Next Tram from Forckenbeckplatz",
		PrimaryLabel:     "Towards Lidl",
		SecondaryLabel:   "Towards Frankfurter Tor",
		LookaheadMinutes: 30,
	})
}

func TestRenderPage(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	state := domain.BoardState{
		Status: domain.StatusReady,
		Now:    now,
		Departures: []domain.Departure{
			{When: now.Add(-time.Minute), Line: domain.Line{Name: "21", Mode: "train"}, Direction: "S+U Lichtenberg/Gudrunstraße"},
			{When: now.Add(5 * time.Minute), Line: domain.Line{Name: "21", Mode: "train"}, Direction: "Virchow-Klinikum"},
			{When: now.Add(6 * time.Minute), Line: domain.Line{Name: "21", Mode: "train"}, Direction: "Frankfurter Tor"},
		},
	}

	var buf bytes.Buffer
	data := &PageData{View: testBuilder().Build(state, domain.DirectionPrimary), WSPath: "/v1/ws"}
	if err := RenderPage(&buf, data); err != nil {
		t.Fatalf("RenderPage() = %v; want nil", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Next Tram from Forckenbeckplatz",
		"Towards Lidl",
		"Towards Frankfurter Tor",
		"Tram 21",
		"S+U Lichtenberg/Gudrunstraße",
		"1m 0s ago (11:59)",
		"In 5m 0s (12:05)",
		`class="departure-item past"`,
		`class="departure-item upcoming"`,
		`href="/?tab=secondary"`,
		"Refresh",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "Frankfurter Tor</h3>") {
		t.Error("primary tab rendered a secondary departure")
	}
}

func TestRenderBoardPartial(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
	b := testBuilder()

	tests := []struct {
		name  string
		state domain.BoardState
		want  string
	}{
		{"loading", domain.BoardState{Status: domain.StatusLoading}, "Loading..."},
		{"error", domain.BoardState{Status: domain.StatusError, Error: domain.FetchFailedMessage}, "Failed to fetch departure times. Please try again later."},
		{"empty", domain.BoardState{Status: domain.StatusReady}, "No departures found in the next 30 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderBoardPartial(&buf, b.Build(tt.state, domain.DirectionSecondary)); err != nil {
				t.Fatalf("RenderBoardPartial() = %v; want nil", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q; got %q", tt.want, buf.String())
			}
			if strings.Contains(buf.String(), "<html") {
				t.Error("partial rendered the full page")
			}
		})
	}
}
