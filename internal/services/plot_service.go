package services

import (
	"fmt"
	"math/rand"
	"strings"
)

// Plot markers are the cell values on the village map. A free plot carries
// its house's grass marker; a claimed plot carries a salary-tier building
// marker.
const grassMarkerPrefix = "grass/"

// GrassMarker returns the unclaimed-cell marker for a house.
func GrassMarker(house string) string {
	return grassMarkerPrefix + strings.ToLower(strings.TrimSpace(house))
}

// salaryTier pairs a building marker with the upper gold bound it covers.
type salaryTier struct {
	marker    string
	threshold int
}

// Ordered by threshold. A citizen's plot shows the first tier whose
// threshold is strictly greater than their gold; the top tier is open-ended.
var salaryTiers = []salaryTier{
	{marker: "building/tent", threshold: 30000},
	{marker: "building/cottage", threshold: 50000},
	{marker: "building/double-storey", threshold: 70000},
	{marker: "building/modern-house", threshold: 90000},
	{marker: "building/mansion", threshold: 0},
}

// MarkerForGold picks the building marker for a citizen's gold amount.
func MarkerForGold(gold int) string {
	for _, t := range salaryTiers[:len(salaryTiers)-1] {
		if t.threshold > gold {
			return t.marker
		}
	}
	return salaryTiers[len(salaryTiers)-1].marker
}

// IsClaimedMarker reports whether a cell value denotes a claimed plot.
func IsClaimedMarker(marker string) bool {
	return strings.HasPrefix(marker, "building/")
}

// PlotStore abstracts the village map grid for PlotService.
type PlotStore interface {
	// ListPlotMarkers returns every non-empty cell keyed by its grid
	// reference (column letter + 1-based row, e.g. "BB54").
	ListPlotMarkers() (map[string]string, error)
	GetPlotMarker(ref string) (string, error)
	SetPlotMarker(ref, marker string) error
	// CompareAndSetPlotMarker writes marker only if the cell still holds
	// old, reporting whether the swap happened.
	CompareAndSetPlotMarker(ref, old, marker string) (bool, error)
}

// PlotService tracks free and claimed map cells and assigns plots to new
// citizens.
type PlotService struct {
	store PlotStore
	intn  func(n int) int
}

func NewPlotService(store PlotStore) *PlotService {
	return &PlotService{
		store: store,
		intn:  rand.Intn,
	}
}

// FindAvailable returns every cell still carrying the house's grass marker.
func (s *PlotService) FindAvailable(house string) ([]string, error) {
	markers, err := s.store.ListPlotMarkers()
	if err != nil {
		return nil, err
	}
	grass := GrassMarker(house)
	refs := make([]string, 0, len(markers))
	for ref, marker := range markers {
		if marker == grass {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Claim converts a free cell into a claimed one. The write is conditional
// on the cell still holding the house's grass marker, so two sign-ups
// racing for the same cell cannot both win it.
func (s *PlotService) Claim(ref, house, marker string) error {
	ok, err := s.store.CompareAndSetPlotMarker(ref, GrassMarker(house), marker)
	if err != nil {
		return err
	}
	if !ok {
		return NewConflictError(fmt.Sprintf("plot %s is no longer available", ref))
	}
	return nil
}

// AllocateRandom picks a uniformly random free plot for the house and
// claims it with the given building marker. A lost claim race is retried
// once against a fresh free list before giving up.
func (s *PlotService) AllocateRandom(house, marker string) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		avail, err := s.FindAvailable(house)
		if err != nil {
			return "", err
		}
		if len(avail) == 0 {
			return "", NewExhaustedError("sorry, there are no available plots at the moment")
		}
		ref := avail[s.intn(len(avail))]
		err = s.Claim(ref, house, marker)
		if err == nil {
			return ref, nil
		}
		if !HasCode(err, ErrorConflict) {
			return "", err
		}
	}
	return "", NewExhaustedError("could not secure a plot, please try again")
}

// Recolor updates a claimed plot's building marker after a salary change.
func (s *PlotService) Recolor(ref string, gold int) error {
	return s.store.SetPlotMarker(ref, MarkerForGold(gold))
}
