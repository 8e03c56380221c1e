package services

import "fmt"

// Vote slots are pre-allocated one per week; the calendar cannot extend
// past the last slot without widening the citizen record.
const MaxVoteWeeks = 9

// maxWeeklyOptions caps how many ordinance choices are offered per week.
const maxWeeklyOptions = 3

// VoteStore abstracts persistence operations required by VoteService.
type VoteStore interface {
	ListVoteOptions() ([]*VoteOption, error)
	// GetVote returns the recorded option id for (email, week), or "" if
	// the citizen has not voted that week.
	GetVote(email string, week int) (string, error)
	SetVote(email string, week int, option string) error
}

// VoteService offers week-scoped ordinance options and records at most one
// vote per citizen per week.
type VoteService struct {
	store VoteStore
}

func NewVoteService(store VoteStore) *VoteService {
	return &VoteService{store: store}
}

// Options returns the week's ordinance choices, capped at three.
func (s *VoteService) Options(week int) ([]*VoteOption, error) {
	all, err := s.store.ListVoteOptions()
	if err != nil {
		return nil, err
	}
	out := make([]*VoteOption, 0, maxWeeklyOptions)
	for _, opt := range all {
		if opt.Week != week {
			continue
		}
		out = append(out, opt)
		if len(out) == maxWeeklyOptions {
			break
		}
	}
	return out, nil
}

// Get returns the citizen's recorded vote for the week, or "" if none.
func (s *VoteService) Get(email string, week int) (string, error) {
	if err := s.checkWeek(week); err != nil {
		return "", err
	}
	return s.store.GetVote(email, week)
}

// Record stores the citizen's vote for the week. A second submission for
// the same week is refused, never overwritten.
func (s *VoteService) Record(email string, week int, option string) error {
	if err := s.checkWeek(week); err != nil {
		return err
	}
	if option == "" {
		return NewInvalidError("no vote option selected")
	}
	existing, err := s.store.GetVote(email, week)
	if err != nil {
		return err
	}
	if existing != "" {
		return NewConflictError("you have already submitted a vote for this ordinance")
	}
	return s.store.SetVote(email, week, option)
}

func (s *VoteService) checkWeek(week int) error {
	if week < 1 || week > MaxVoteWeeks {
		return NewInvalidError(fmt.Sprintf("week %d has no vote slot", week))
	}
	return nil
}
