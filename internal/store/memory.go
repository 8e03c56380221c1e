package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/mckinnonit/mckinnonville/internal/services"
)

type voteKey struct {
	email string
	week  int
}

type attemptRecord struct {
	week  int
	count int
}

// MemoryStore is an in-memory Store used by tests and offline mode.
type MemoryStore struct {
	mu          sync.RWMutex
	citizens    map[string]*services.Citizen
	plots       map[string]string
	houses      map[string]string
	villages    map[string]*services.Village
	occupations []*services.Occupation
	questions   []*services.Question
	voteOptions []*services.VoteOption
	schedule    []services.WeekEntry
	votes       map[voteKey]string
	attempts    map[string]attemptRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		citizens: map[string]*services.Citizen{},
		plots:    map[string]string{},
		houses:   map[string]string{},
		villages: map[string]*services.Village{},
		votes:    map[voteKey]string{},
		attempts: map[string]attemptRecord{},
	}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *MemoryStore) GetCitizen(email string) (*services.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.citizens[emailKey(email)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListCitizens() ([]*services.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.Citizen, 0, len(s.citizens))
	for _, c := range s.citizens {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) AppendCitizen(c *services.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.citizens[emailKey(c.Email)] = &cp
	return nil
}

func (s *MemoryStore) UpdateCitizenProgress(email string, level, gold int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.citizens[emailKey(email)]; ok {
		c.OccupationLevel = level
		c.Gold = gold
	}
	return nil
}

func (s *MemoryStore) GetQuizAttempts(email string, week int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attempts[emailKey(email)]
	if !ok || rec.week != week {
		return 0, nil
	}
	return rec.count, nil
}

func (s *MemoryStore) SetQuizAttempts(email string, week, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[emailKey(email)] = attemptRecord{week: week, count: count}
	return nil
}

func (s *MemoryStore) GetHouse(username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.houses[strings.ToLower(username)], nil
}

func (s *MemoryStore) GetVillage(name string) (*services.Village, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.villages[name]
	if !ok {
		return nil, nil
	}
	vp := *v
	return &vp, nil
}

func (s *MemoryStore) ListOccupations() ([]*services.Occupation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*services.Occupation(nil), s.occupations...), nil
}

func (s *MemoryStore) ListPlotMarkers() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.plots))
	for ref, marker := range s.plots {
		out[ref] = marker
	}
	return out, nil
}

func (s *MemoryStore) GetPlotMarker(ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plots[ref], nil
}

func (s *MemoryStore) SetPlotMarker(ref, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plots[ref] = marker
	return nil
}

func (s *MemoryStore) CompareAndSetPlotMarker(ref, old, marker string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plots[ref] != old {
		return false, nil
	}
	s.plots[ref] = marker
	return true, nil
}

func (s *MemoryStore) ListQuestions() ([]*services.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*services.Question(nil), s.questions...), nil
}

func (s *MemoryStore) ListVoteOptions() ([]*services.VoteOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*services.VoteOption(nil), s.voteOptions...), nil
}

func (s *MemoryStore) GetVote(email string, week int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.votes[voteKey{emailKey(email), week}], nil
}

func (s *MemoryStore) SetVote(email string, week int, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[voteKey{emailKey(email), week}] = option
	return nil
}

func (s *MemoryStore) ListWeekSchedule() ([]services.WeekEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]services.WeekEntry(nil), s.schedule...), nil
}

// Seed helpers populate reference data for tests and offline mode.

func (s *MemoryStore) SeedOccupations(occs ...*services.Occupation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occupations = append(s.occupations, occs...)
}

func (s *MemoryStore) SeedQuestions(qs ...*services.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, qs...)
}

func (s *MemoryStore) SeedVoteOptions(opts ...*services.VoteOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voteOptions = append(s.voteOptions, opts...)
}

func (s *MemoryStore) SeedSchedule(entries ...services.WeekEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = append(s.schedule, entries...)
}

func (s *MemoryStore) SeedHouse(username, house string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.houses[strings.ToLower(username)] = house
}

func (s *MemoryStore) SeedVillage(v *services.Village) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.villages[v.Name] = v
}

func (s *MemoryStore) SeedPlot(ref, marker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plots[ref] = marker
}
