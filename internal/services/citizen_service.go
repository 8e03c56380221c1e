package services

import (
	"fmt"
	"log"
	"math"
	"strings"
)

// CitizenRegistryStore abstracts persistence operations required by
// CitizenService.
type CitizenRegistryStore interface {
	GetCitizen(email string) (*Citizen, error)
	ListCitizens() ([]*Citizen, error)
	AppendCitizen(c *Citizen) error
	UpdateCitizenProgress(email string, level, gold int) error
	GetQuizAttempts(email string, week int) (int, error)
	SetQuizAttempts(email string, week, count int) error
	GetHouse(username string) (string, error)
	GetVillage(name string) (*Village, error)
	ListOccupations() ([]*Occupation, error)
}

// Notifier pushes a private message to a citizen's chat space.
type Notifier interface {
	Notify(spaceID, userID, text string) error
}

// SignUpRequest carries the attributes collected during registration.
type SignUpRequest struct {
	Name       string
	Email      string
	UserID     string
	SpaceID    string
	House      string
	Occupation string
}

// LevelUpResult reports the outcome of a promotion attempt.
type LevelUpResult struct {
	Citizen  *Citizen
	Promoted bool
	AtMax    bool
}

// CitizenService owns the citizen lifecycle: registration, occupation
// level progression and the per-week quiz attempt counter.
type CitizenService struct {
	store        CitizenRegistryStore
	plots        *PlotService
	notifier     Notifier
	maxLevel     int
	testAccounts map[string]bool
}

func NewCitizenService(store CitizenRegistryStore, plots *PlotService, notifier Notifier, maxLevel int, testAccounts []string) *CitizenService {
	allow := make(map[string]bool, len(testAccounts))
	for _, a := range testAccounts {
		allow[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return &CitizenService{
		store:        store,
		plots:        plots,
		notifier:     notifier,
		maxLevel:     maxLevel,
		testAccounts: allow,
	}
}

// Get fetches a citizen by email.
func (s *CitizenService) Get(email string) (*Citizen, error) {
	c, err := s.store.GetCitizen(email)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NewNotFoundError(fmt.Sprintf("no citizen registered for %s", email))
	}
	return c, nil
}

// Registered reports whether the email already has a citizen record.
func (s *CitizenService) Registered(email string) bool {
	c, err := s.store.GetCitizen(email)
	if err != nil {
		log.Printf("citizen registry: registration check for %s: %v", email, err)
		return false
	}
	return c != nil
}

// ResolveHouse maps an email to its house via the username part of the
// address. A missing mapping is a routine not-found outcome.
func (s *CitizenService) ResolveHouse(email string) (string, error) {
	username := strings.ToLower(email)
	if i := strings.Index(username, "@"); i >= 0 {
		username = username[:i]
	}
	house, err := s.store.GetHouse(username)
	if err != nil {
		return "", err
	}
	if house == "" {
		return "", NewNotFoundError(fmt.Sprintf("no house found for %s", email))
	}
	return house, nil
}

// SignUp registers a new citizen: validates the request, claims a random
// plot for their house and appends the citizen record at level 1. Duplicate
// registration is rejected unless the email is on the test-account
// allow-list.
func (s *CitizenService) SignUp(req SignUpRequest) (*Citizen, error) {
	if req.Name == "" || req.Email == "" || req.UserID == "" || req.SpaceID == "" || req.House == "" || req.Occupation == "" {
		return nil, NewInvalidError("information missing from sign-up request")
	}
	if s.Registered(req.Email) && !s.testAccounts[strings.ToLower(req.Email)] {
		return nil, NewConflictError(fmt.Sprintf("%s is already registered", req.Email))
	}

	occ, err := s.Occupation(req.Occupation)
	if err != nil {
		return nil, err
	}
	gold := s.postTaxSalary(req.House, occ.Salary.At(1))

	plot, err := s.plots.AllocateRandom(req.House, MarkerForGold(gold))
	if err != nil {
		return nil, err
	}

	c := &Citizen{
		Name:            req.Name,
		Email:           req.Email,
		Plot:            plot,
		UserID:          req.UserID,
		SpaceID:         req.SpaceID,
		House:           req.House,
		Occupation:      occ.Name,
		OccupationLevel: 1,
		Gold:            gold,
	}
	if err := s.store.AppendCitizen(c); err != nil {
		return nil, err
	}
	return c, nil
}

// LevelUp promotes a citizen by exactly one occupation level, clamped at
// the configured maximum. Promotion re-renders the citizen's plot marker
// for the new salary tier and sends a congratulatory message; at the cap it
// is a no-op with a max-level notice instead.
func (s *CitizenService) LevelUp(email string) (*LevelUpResult, error) {
	c, err := s.Get(email)
	if err != nil {
		return nil, err
	}
	if c.OccupationLevel >= s.maxLevel {
		s.notify(c, fmt.Sprintf("You are already at the top of your field, level %d. There is nowhere higher to climb!", s.maxLevel))
		return &LevelUpResult{Citizen: c, AtMax: true}, nil
	}

	occ, err := s.Occupation(c.Occupation)
	if err != nil {
		return nil, err
	}
	c.OccupationLevel++
	c.Gold = s.postTaxSalary(c.House, occ.Salary.At(c.OccupationLevel))

	if err := s.store.UpdateCitizenProgress(c.Email, c.OccupationLevel, c.Gold); err != nil {
		return nil, err
	}
	if err := s.plots.Recolor(c.Plot, c.Gold); err != nil {
		log.Printf("citizen registry: recolor plot %s for %s: %v", c.Plot, c.Email, err)
	}
	s.notify(c, fmt.Sprintf("Congratulations! You have been promoted to level %d %s. Your new salary is %d gold.", c.OccupationLevel, c.Occupation, c.Gold))
	return &LevelUpResult{Citizen: c, Promoted: true}, nil
}

// IncrementQuizAttempts bumps the citizen's attempt counter for the given
// week and returns the new count. The counter resets implicitly when the
// week number changes.
func (s *CitizenService) IncrementQuizAttempts(email string, week int) (int, error) {
	count, err := s.store.GetQuizAttempts(email, week)
	if err != nil {
		return 0, err
	}
	count++
	if err := s.store.SetQuizAttempts(email, week, count); err != nil {
		return 0, err
	}
	return count, nil
}

// QuizAttempts returns the citizen's attempt count for the given week.
func (s *CitizenService) QuizAttempts(email string, week int) (int, error) {
	return s.store.GetQuizAttempts(email, week)
}

// Occupation resolves an occupation by name, tolerant of case and spacing.
func (s *CitizenService) Occupation(name string) (*Occupation, error) {
	occs, err := s.store.ListOccupations()
	if err != nil {
		return nil, err
	}
	want := NormalizeOccupationName(name)
	for _, o := range occs {
		if NormalizeOccupationName(o.Name) == want {
			return o, nil
		}
	}
	return nil, NewNotFoundError(fmt.Sprintf("occupation %q not found", name))
}

// Occupations lists the full occupation catalogue.
func (s *CitizenService) Occupations() ([]*Occupation, error) {
	return s.store.ListOccupations()
}

// Village fetches the aggregate stats for a house's village.
func (s *CitizenService) Village(house string) (*Village, error) {
	v, err := s.store.GetVillage(house)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, NewNotFoundError(fmt.Sprintf("village %q not found", house))
	}
	return v, nil
}

// Citizens lists every registered citizen.
func (s *CitizenService) Citizens() ([]*Citizen, error) {
	return s.store.ListCitizens()
}

// postTaxSalary applies the village tax rate to a salary step. A missing
// village record means no tax, logged but not fatal.
func (s *CitizenService) postTaxSalary(house string, salary int) int {
	v, err := s.store.GetVillage(house)
	if err != nil || v == nil {
		if err != nil {
			log.Printf("citizen registry: village lookup for %s: %v", house, err)
		}
		return salary
	}
	return int(math.Round(float64(salary) * (1 - v.TaxRate)))
}

func (s *CitizenService) notify(c *Citizen, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(c.SpaceID, c.UserID, text); err != nil {
		log.Printf("citizen registry: notify %s: %v", c.Email, err)
	}
}
