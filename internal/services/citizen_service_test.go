package services

import (
	"strings"
	"testing"
)

type citizenStubStore struct {
	citizens map[string]*Citizen
	plots    map[string]string
	houses   map[string]string
	villages map[string]*Village
	occs     []*Occupation

	attemptWeek  map[string]int
	attemptCount map[string]int
}

func newCitizenStubStore() *citizenStubStore {
	return &citizenStubStore{
		citizens:     map[string]*Citizen{},
		plots:        map[string]string{},
		houses:       map[string]string{},
		villages:     map[string]*Village{},
		attemptWeek:  map[string]int{},
		attemptCount: map[string]int{},
	}
}

func (s *citizenStubStore) GetCitizen(email string) (*Citizen, error) {
	c, ok := s.citizens[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *citizenStubStore) ListCitizens() ([]*Citizen, error) {
	out := make([]*Citizen, 0, len(s.citizens))
	for _, c := range s.citizens {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *citizenStubStore) AppendCitizen(c *Citizen) error {
	cp := *c
	s.citizens[strings.ToLower(c.Email)] = &cp
	return nil
}

func (s *citizenStubStore) UpdateCitizenProgress(email string, level, gold int) error {
	if c, ok := s.citizens[strings.ToLower(email)]; ok {
		c.OccupationLevel = level
		c.Gold = gold
	}
	return nil
}

func (s *citizenStubStore) GetQuizAttempts(email string, week int) (int, error) {
	if s.attemptWeek[email] != week {
		return 0, nil
	}
	return s.attemptCount[email], nil
}

func (s *citizenStubStore) SetQuizAttempts(email string, week, count int) error {
	s.attemptWeek[email] = week
	s.attemptCount[email] = count
	return nil
}

func (s *citizenStubStore) GetHouse(username string) (string, error) {
	return s.houses[strings.ToLower(username)], nil
}

func (s *citizenStubStore) GetVillage(name string) (*Village, error) {
	v, ok := s.villages[name]
	if !ok {
		return nil, nil
	}
	vp := *v
	return &vp, nil
}

func (s *citizenStubStore) ListOccupations() ([]*Occupation, error) {
	return s.occs, nil
}

func (s *citizenStubStore) ListPlotMarkers() (map[string]string, error) {
	out := make(map[string]string, len(s.plots))
	for ref, marker := range s.plots {
		out[ref] = marker
	}
	return out, nil
}

func (s *citizenStubStore) GetPlotMarker(ref string) (string, error) {
	return s.plots[ref], nil
}

func (s *citizenStubStore) SetPlotMarker(ref, marker string) error {
	s.plots[ref] = marker
	return nil
}

func (s *citizenStubStore) CompareAndSetPlotMarker(ref, old, marker string) (bool, error) {
	if s.plots[ref] != old {
		return false, nil
	}
	s.plots[ref] = marker
	return true, nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(spaceID, userID, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

func newCitizenFixture() (*citizenStubStore, *recordingNotifier, *CitizenService) {
	store := newCitizenStubStore()
	store.plots["A1"] = "grass/gilmore"
	store.houses["newbie"] = "Gilmore"
	store.villages["Gilmore"] = &Village{Name: "Gilmore", TaxRate: 0.1}
	store.occs = []*Occupation{{
		Name:     "Teacher",
		Subjects: []string{"English", "Maths"},
		Salary:   Salary{Lower: 25000, Upper: 85000, Steps: []int{25000, 40000, 55000, 70000, 85000}},
	}}

	notifier := &recordingNotifier{}
	plots := NewPlotService(store)
	plots.intn = func(n int) int { return 0 }
	svc := NewCitizenService(store, plots, notifier, 5, []string{"tester@example.com"})
	return store, notifier, svc
}

func validSignUp() SignUpRequest {
	return SignUpRequest{
		Name:       "New Citizen",
		Email:      "newbie@example.com",
		UserID:     "users/123",
		SpaceID:    "spaces/abc",
		House:      "Gilmore",
		Occupation: "Teacher",
	}
}

func TestSignUp(t *testing.T) {
	store, _, svc := newCitizenFixture()

	c, err := svc.SignUp(validSignUp())
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if c.OccupationLevel != 1 {
		t.Fatalf("new citizen level = %d, want 1", c.OccupationLevel)
	}
	// 25000 salary less the 10% village tax
	if c.Gold != 22500 {
		t.Fatalf("new citizen gold = %d, want 22500", c.Gold)
	}
	if c.Plot != "A1" {
		t.Fatalf("new citizen plot = %s, want A1", c.Plot)
	}
	if store.plots["A1"] != "building/tent" {
		t.Fatalf("claimed plot marker = %q, want building/tent", store.plots["A1"])
	}
	if !svc.Registered(c.Email) {
		t.Fatalf("Registered(%s) = false after sign-up", c.Email)
	}
}

func TestSignUpValidation(t *testing.T) {
	_, _, svc := newCitizenFixture()

	req := validSignUp()
	req.Occupation = ""
	if _, err := svc.SignUp(req); !HasCode(err, ErrorInvalid) {
		t.Fatalf("expected invalid error for missing occupation, got %v", err)
	}

	req = validSignUp()
	req.Occupation = "Astronaut"
	if _, err := svc.SignUp(req); !HasCode(err, ErrorNotFound) {
		t.Fatalf("expected not-found error for unknown occupation, got %v", err)
	}
}

func TestSignUpDuplicate(t *testing.T) {
	store, _, svc := newCitizenFixture()

	if _, err := svc.SignUp(validSignUp()); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if _, err := svc.SignUp(validSignUp()); !HasCode(err, ErrorConflict) {
		t.Fatalf("expected conflict error on duplicate sign-up, got %v", err)
	}

	// allow-listed accounts can re-register for testing
	store.plots["B2"] = "grass/gilmore"
	store.plots["C3"] = "grass/gilmore"
	store.houses["tester"] = "Gilmore"
	req := validSignUp()
	req.Email = "tester@example.com"
	if _, err := svc.SignUp(req); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if _, err := svc.SignUp(req); HasCode(err, ErrorConflict) {
		t.Fatalf("allow-listed account hit the duplicate check")
	}
}

func TestLevelUp(t *testing.T) {
	store, notifier, svc := newCitizenFixture()
	if _, err := svc.SignUp(validSignUp()); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	res, err := svc.LevelUp("newbie@example.com")
	if err != nil {
		t.Fatalf("LevelUp returned error: %v", err)
	}
	if !res.Promoted || res.AtMax {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Citizen.OccupationLevel != 2 {
		t.Fatalf("level after promotion = %d, want 2", res.Citizen.OccupationLevel)
	}
	// 40000 salary less the 10% village tax
	if res.Citizen.Gold != 36000 {
		t.Fatalf("gold after promotion = %d, want 36000", res.Citizen.Gold)
	}
	if store.plots["A1"] != "building/cottage" {
		t.Fatalf("plot marker after promotion = %q, want building/cottage", store.plots["A1"])
	}
	if len(notifier.messages) == 0 || !strings.Contains(notifier.messages[len(notifier.messages)-1], "promoted") {
		t.Fatalf("expected a promotion message, got %v", notifier.messages)
	}
}

func TestLevelUpAtMax(t *testing.T) {
	store, notifier, svc := newCitizenFixture()
	if _, err := svc.SignUp(validSignUp()); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	store.citizens["newbie@example.com"].OccupationLevel = 5

	res, err := svc.LevelUp("newbie@example.com")
	if err != nil {
		t.Fatalf("LevelUp returned error: %v", err)
	}
	if !res.AtMax || res.Promoted {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Citizen.OccupationLevel != 5 {
		t.Fatalf("level past the cap: %d", res.Citizen.OccupationLevel)
	}
	if len(notifier.messages) == 0 || !strings.Contains(notifier.messages[len(notifier.messages)-1], "top of your field") {
		t.Fatalf("expected a max-level message, got %v", notifier.messages)
	}
}

func TestQuizAttemptsResetOnNewWeek(t *testing.T) {
	_, _, svc := newCitizenFixture()
	email := "newbie@example.com"

	for want := 1; want <= 3; want++ {
		got, err := svc.IncrementQuizAttempts(email, 2)
		if err != nil {
			t.Fatalf("IncrementQuizAttempts returned error: %v", err)
		}
		if got != want {
			t.Fatalf("attempt count = %d, want %d", got, want)
		}
	}

	got, err := svc.IncrementQuizAttempts(email, 3)
	if err != nil {
		t.Fatalf("IncrementQuizAttempts returned error: %v", err)
	}
	if got != 1 {
		t.Fatalf("attempt count after week change = %d, want 1", got)
	}
}

func TestResolveHouse(t *testing.T) {
	_, _, svc := newCitizenFixture()

	house, err := svc.ResolveHouse("Newbie@Example.com")
	if err != nil {
		t.Fatalf("ResolveHouse returned error: %v", err)
	}
	if house != "Gilmore" {
		t.Fatalf("ResolveHouse = %q, want Gilmore", house)
	}

	if _, err := svc.ResolveHouse("stranger@example.com"); !HasCode(err, ErrorNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
