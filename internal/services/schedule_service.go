package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TriggerKind names the two scheduled notification types.
type TriggerKind string

const (
	TriggerWeekTransition TriggerKind = "week_transition"
	TriggerQuizOpen       TriggerKind = "quiz_open"
)

const defaultNotifyTime = "09:00"

// Trigger is one planned notification firing.
type Trigger struct {
	ID      string      `json:"id"`
	Kind    TriggerKind `json:"kind"`
	Week    int         `json:"week"`
	At      time.Time   `json:"at"`
	Message string      `json:"message"`
}

// ScheduleStore abstracts persistence operations required by
// ScheduleService.
type ScheduleStore interface {
	ListWeekSchedule() ([]WeekEntry, error)
	ListCitizens() ([]*Citizen, error)
}

// ScheduleService plans and fires week-transition and quiz-opening
// notifications from the configured game calendar. Replanning replaces any
// previously planned firings of the same kind.
type ScheduleService struct {
	store        ScheduleStore
	notifier     Notifier
	loc          *time.Location
	quizOpenTime string
	now          func() time.Time
	newID        func() string

	mu     sync.Mutex
	timers map[string]*time.Timer
	plan   []Trigger
}

func NewScheduleService(store ScheduleStore, notifier Notifier, loc *time.Location, quizOpenTime string) *ScheduleService {
	if loc == nil {
		loc = time.UTC
	}
	if quizOpenTime == "" {
		quizOpenTime = defaultNotifyTime
	}
	return &ScheduleService{
		store:        store,
		notifier:     notifier,
		loc:          loc,
		quizOpenTime: quizOpenTime,
		now:          time.Now,
		newID:        uuid.NewString,
		timers:       map[string]*time.Timer{},
	}
}

// TriggerTimes expands the week calendar into the full set of notification
// firings: one week-transition and one quiz-opening per entry, ordered by
// firing time.
func (s *ScheduleService) TriggerTimes(entries []WeekEntry) ([]Trigger, error) {
	out := make([]Trigger, 0, len(entries)*2)
	for _, e := range entries {
		notifyAt, err := s.entryTime(e.StartDate, e.NotifyTime)
		if err != nil {
			return nil, err
		}
		quizAt, err := s.entryTime(e.StartDate, s.quizOpenTime)
		if err != nil {
			return nil, err
		}
		msg := e.Message
		if msg == "" {
			msg = fmt.Sprintf("Week %d of McKinnonVille has begun!", e.Week)
		}
		out = append(out,
			Trigger{ID: s.newID(), Kind: TriggerWeekTransition, Week: e.Week, At: notifyAt, Message: msg},
			Trigger{ID: s.newID(), Kind: TriggerQuizOpen, Week: e.Week, At: quizAt,
				Message: fmt.Sprintf("Week %d quizzes are now open! Type /quiz to try for a promotion.", e.Week)},
		)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// Replan refreshes the planned firings from the stored calendar: all prior
// triggers are dropped and every future firing is installed anew. The swap
// happens under the service mutex so two replanning runs cannot interleave.
func (s *ScheduleService) Replan() error {
	entries, err := s.store.ListWeekSchedule()
	if err != nil {
		return err
	}
	triggers, err := s.TriggerTimes(entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	now := s.now()
	s.plan = s.plan[:0]
	for _, t := range triggers {
		if !t.At.After(now) {
			continue
		}
		trigger := t
		s.plan = append(s.plan, trigger)
		s.timers[trigger.ID] = time.AfterFunc(trigger.At.Sub(now), func() { s.fire(trigger) })
	}
	return nil
}

// Run replans immediately and then on every tick of the interval until the
// context is cancelled.
func (s *ScheduleService) Run(ctx context.Context, interval time.Duration) {
	if err := s.Replan(); err != nil {
		log.Printf("scheduler: replan: %v", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			if err := s.Replan(); err != nil {
				log.Printf("scheduler: replan: %v", err)
			}
		}
	}
}

// Planned returns a snapshot of the currently installed firings.
func (s *ScheduleService) Planned() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trigger, len(s.plan))
	copy(out, s.plan)
	return out
}

// Stop cancels every installed timer.
func (s *ScheduleService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.plan = s.plan[:0]
}

// fire delivers one trigger's message privately to every citizen.
func (s *ScheduleService) fire(t Trigger) {
	s.mu.Lock()
	delete(s.timers, t.ID)
	for i, p := range s.plan {
		if p.ID == t.ID {
			s.plan = append(s.plan[:i], s.plan[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	citizens, err := s.store.ListCitizens()
	if err != nil {
		log.Printf("scheduler: list citizens for %s: %v", t.Kind, err)
		return
	}
	for _, c := range citizens {
		if err := s.notifier.Notify(c.SpaceID, c.UserID, t.Message); err != nil {
			log.Printf("scheduler: notify %s: %v", c.Email, err)
		}
	}
	log.Printf("scheduler: fired %s for week %d to %d citizens", t.Kind, t.Week, len(citizens))
}

func (s *ScheduleService) entryTime(date, clock string) (time.Time, error) {
	if clock == "" {
		clock = defaultNotifyTime
	}
	at, err := time.ParseInLocation(DateLayout+" 15:04", date+" "+clock, s.loc)
	if err != nil {
		return time.Time{}, NewInvalidError(fmt.Sprintf("invalid schedule entry %q %q", date, clock))
	}
	return at, nil
}
