package services

import (
	"fmt"
	"math/rand"
	"sort"
)

// QuizStore abstracts persistence operations required by QuizService.
type QuizStore interface {
	ListQuestions() ([]*Question, error)
	ListOccupations() ([]*Occupation, error)
}

// ScoreResult summarises a marked answer set.
type ScoreResult struct {
	Total        int      `json:"total"`
	Correct      int      `json:"correct"`
	CorrectIDs   []string `json:"correct_ids"`
	IncorrectIDs []string `json:"incorrect_ids"`
}

// Perfect reports an all-correct, non-empty submission. Promotion is gated
// on a perfect score, not a threshold.
func (r ScoreResult) Perfect() bool {
	return r.Total > 0 && r.Correct == r.Total
}

// QuizService selects occupation-linked questions and marks submissions
// against the answer key.
type QuizService struct {
	store   QuizStore
	shuffle func(n int, swap func(i, j int))
}

func NewQuizService(store QuizStore) *QuizService {
	return &QuizService{
		store:   store,
		shuffle: rand.Shuffle,
	}
}

// SelectQuestions returns up to count random questions matching the
// occupation's subjects at the given level. Fewer matches than count is not
// an error; all matches are returned.
func (s *QuizService) SelectQuestions(occupation string, level, count int) ([]*Question, error) {
	subjects, err := s.occupationSubjects(occupation)
	if err != nil {
		return nil, err
	}
	bank, err := s.store.ListQuestions()
	if err != nil {
		return nil, err
	}

	matches := make([]*Question, 0, count)
	for _, q := range bank {
		if q.Level == level && subjects[NormalizeOccupationName(q.Subject)] {
			matches = append(matches, q)
		}
	}
	s.shuffle(len(matches), func(i, j int) { matches[i], matches[j] = matches[j], matches[i] })
	if len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}

// Score marks submitted answers (question id -> chosen option index)
// against the stored answer key. Question ids absent from the bank count
// as incorrect.
func (s *QuizService) Score(answers map[string]string) (ScoreResult, error) {
	bank, err := s.store.ListQuestions()
	if err != nil {
		return ScoreResult{}, err
	}
	byID := make(map[string]*Question, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}

	result := ScoreResult{Total: len(answers)}
	for id, chosen := range answers {
		if q, ok := byID[id]; ok && q.Answer == chosen {
			result.Correct++
			result.CorrectIDs = append(result.CorrectIDs, id)
		} else {
			result.IncorrectIDs = append(result.IncorrectIDs, id)
		}
	}
	sort.Strings(result.CorrectIDs)
	sort.Strings(result.IncorrectIDs)
	return result, nil
}

func (s *QuizService) occupationSubjects(occupation string) (map[string]bool, error) {
	occs, err := s.store.ListOccupations()
	if err != nil {
		return nil, err
	}
	want := NormalizeOccupationName(occupation)
	for _, o := range occs {
		if NormalizeOccupationName(o.Name) != want {
			continue
		}
		subjects := make(map[string]bool, len(o.Subjects))
		for _, sub := range o.Subjects {
			subjects[NormalizeOccupationName(sub)] = true
		}
		return subjects, nil
	}
	return nil, NewNotFoundError(fmt.Sprintf("occupation %q not found", occupation))
}
