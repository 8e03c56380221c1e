package store

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mckinnonit/mckinnonville/internal/services"
	"github.com/mckinnonit/mckinnonville/internal/sheets"
)

// fakeSheets serves canned ranges and records writes, standing in for the
// spreadsheet API.
type fakeSheets struct {
	ranges  map[string][][]string
	updates map[string][][]string
	appends map[string][][]string
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{
		ranges:  map[string][][]string{},
		updates: map[string][][]string{},
		appends: map[string][][]string{},
	}
}

func (f *fakeSheets) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /{spreadsheetID}/values/{range}[:append]
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/values/", 2)
		if len(parts) != 2 {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		id, rng := parts[0], parts[1]
		key := id + "/" + strings.TrimSuffix(rng, ":append")

		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"values": f.ranges[key]})
		case http.MethodPut, http.MethodPost:
			var body struct {
				Values [][]string `json:"values"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if r.Method == http.MethodPut {
				f.updates[key] = body.Values
			} else {
				f.appends[key] = body.Values
			}
			_ = json.NewEncoder(w).Encode(map[string]any{})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func newSheetFixture(t *testing.T) (*fakeSheets, *SheetStore) {
	fake := newFakeSheets()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client := sheets.NewClient(sheets.StaticTokenSource("t")).WithBaseURL(srv.URL)
	return fake, NewSheetStore(client, "data-id", "map-id")
}

func TestSheetGetCitizen(t *testing.T) {
	fake, store := newSheetFixture(t)
	fake.ranges["data-id/Citizens!A3:N"] = [][]string{
		{"Ada Lovelace", "ada@example.com", "BB17", "users/1", "spaces/1", "Gilmore", "Teacher", "2", "36000", "", "", "", "3", "1"},
		{"Bob", "bob@example.com", "C4", "users/2", "spaces/2", "Monash", "Doctor", "1", "27000"},
	}

	c, err := store.GetCitizen("ADA@example.com")
	if err != nil {
		t.Fatalf("GetCitizen returned error: %v", err)
	}
	if c == nil {
		t.Fatalf("citizen not found")
	}
	if c.Name != "Ada Lovelace" || c.Plot != "BB17" || c.OccupationLevel != 2 || c.Gold != 36000 {
		t.Fatalf("unexpected citizen %+v", c)
	}

	missing, err := store.GetCitizen("ghost@example.com")
	if err != nil {
		t.Fatalf("GetCitizen returned error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown citizen, got %+v", missing)
	}
}

func TestSheetQuizAttempts(t *testing.T) {
	fake, store := newSheetFixture(t)
	fake.ranges["data-id/Citizens!A3:N"] = [][]string{
		{"Ada", "ada@example.com", "BB17", "users/1", "spaces/1", "Gilmore", "Teacher", "2", "36000", "", "", "", "3", "2"},
	}

	// matching week reads the stored count
	count, err := store.GetQuizAttempts("ada@example.com", 3)
	if err != nil {
		t.Fatalf("GetQuizAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("attempts = %d, want 2", count)
	}

	// a different week reads as zero
	count, err = store.GetQuizAttempts("ada@example.com", 4)
	if err != nil {
		t.Fatalf("GetQuizAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("attempts for new week = %d, want 0", count)
	}

	if err := store.SetQuizAttempts("ada@example.com", 4, 1); err != nil {
		t.Fatalf("SetQuizAttempts returned error: %v", err)
	}
	got, ok := fake.updates["data-id/Citizens!M3:N3"]
	if !ok || len(got) != 1 || got[0][0] != "4" || got[0][1] != "1" {
		t.Fatalf("unexpected attempt write %v", fake.updates)
	}
}

func TestSheetVoteColumn(t *testing.T) {
	fake, store := newSheetFixture(t)
	fake.ranges["data-id/Citizens!A3:N"] = [][]string{
		{"Ada", "ada@example.com", "BB17", "users/1", "spaces/1", "Gilmore", "Teacher", "1", "22500"},
	}

	if err := store.SetVote("ada@example.com", 2, "opt1"); err != nil {
		t.Fatalf("SetVote returned error: %v", err)
	}
	if _, ok := fake.updates["data-id/Citizens!P3"]; !ok {
		t.Fatalf("week 2 vote did not land in column P: %v", fake.updates)
	}

	if _, err := store.GetVote("ada@example.com", 10); !services.HasCode(err, services.ErrorInvalid) {
		t.Fatalf("expected invalid error past the last vote column, got %v", err)
	}
}

func TestSheetListPlotMarkers(t *testing.T) {
	fake, store := newSheetFixture(t)
	fake.ranges["map-id/Map"] = [][]string{
		{"grass/gilmore", "", "building/tent"},
		{},
		{"", "grass/monash"},
	}

	markers, err := store.ListPlotMarkers()
	if err != nil {
		t.Fatalf("ListPlotMarkers returned error: %v", err)
	}
	want := map[string]string{
		"A1": "grass/gilmore",
		"C1": "building/tent",
		"B3": "grass/monash",
	}
	if len(markers) != len(want) {
		t.Fatalf("markers = %v, want %v", markers, want)
	}
	for ref, marker := range want {
		if markers[ref] != marker {
			t.Fatalf("marker at %s = %q, want %q", ref, markers[ref], marker)
		}
	}
}

func TestSheetCompareAndSetPlotMarker(t *testing.T) {
	fake, store := newSheetFixture(t)
	fake.ranges["map-id/Map!A1"] = [][]string{{"grass/gilmore"}}

	ok, err := store.CompareAndSetPlotMarker("A1", "grass/gilmore", "building/tent")
	if err != nil {
		t.Fatalf("CompareAndSetPlotMarker returned error: %v", err)
	}
	if !ok {
		t.Fatalf("swap refused on matching marker")
	}
	if _, wrote := fake.updates["map-id/Map!A1"]; !wrote {
		t.Fatalf("swap did not write the cell")
	}

	fake.ranges["map-id/Map!A1"] = [][]string{{"building/tent"}}
	ok, err = store.CompareAndSetPlotMarker("A1", "grass/gilmore", "building/cottage")
	if err != nil {
		t.Fatalf("CompareAndSetPlotMarker returned error: %v", err)
	}
	if ok {
		t.Fatalf("swap succeeded against a stale marker")
	}
}

func TestSheetListWeekSchedule(t *testing.T) {
	fake, store := newSheetFixture(t)
	fake.ranges["data-id/Setup!A2:D"] = [][]string{
		{"1", "01/02/2024", "08:00", "Welcome!"},
		{"2", "08/02/2024"},
		{"", ""},
	}

	entries, err := store.ListWeekSchedule()
	if err != nil {
		t.Fatalf("ListWeekSchedule returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Week != 1 || entries[0].NotifyTime != "08:00" || entries[0].Message != "Welcome!" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if entries[1].StartDate != "08/02/2024" {
		t.Fatalf("unexpected entry %+v", entries[1])
	}
}
