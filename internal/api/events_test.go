package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mckinnonit/mckinnonville/internal/chat"
	"github.com/mckinnonit/mckinnonville/internal/services"
	"github.com/mckinnonit/mckinnonville/internal/store"
)

type stubNotifier struct {
	messages []string
}

func (n *stubNotifier) Notify(spaceID, userID, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

func newTestRouter(t *testing.T) (*store.MemoryStore, *Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	ms.SeedHouse("ada", "Gilmore")
	ms.SeedVillage(&services.Village{Name: "Gilmore", TaxRate: 0.1, Education: 0.6, Health: 0.4, Happiness: 0.5})
	ms.SeedOccupations(&services.Occupation{
		Name:     "Teacher",
		Subjects: []string{"English"},
		Salary:   services.Salary{Lower: 25000, Upper: 85000, Steps: []int{25000, 40000, 55000, 70000, 85000}},
	})
	ms.SeedPlot("A1", "grass/gilmore")
	ms.SeedPlot("B2", "grass/gilmore")
	ms.SeedQuestions(
		&services.Question{ID: "q1", Subject: "English", Level: 1, Text: "Spell cat.", Options: []string{"kat", "cat", "catt", "qat"}, Answer: "2"},
		&services.Question{ID: "q2", Subject: "English", Level: 1, Text: "Plural of mouse?", Options: []string{"mice", "mouses", "meese", "mouse"}, Answer: "1"},
	)
	ms.SeedVoteOptions(
		&services.VoteOption{Week: 1, ID: "opt1", Name: "Curfew", Description: "Lights out at nine."},
		&services.VoteOption{Week: 1, ID: "opt2", Name: "Market day", Description: "A weekly market."},
	)
	// the calendar covers today so week resolution lands on week 1
	ms.SeedSchedule(services.WeekEntry{Week: 1, StartDate: time.Now().AddDate(0, 0, -2).Format(services.DateLayout)})

	notifier := &stubNotifier{}
	plots := services.NewPlotService(ms)
	citizens := services.NewCitizenService(ms, plots, notifier, 5, nil)
	rt := NewRouter(RouterConfig{
		Citizens:          citizens,
		Quizzes:           services.NewQuizService(ms),
		Votes:             services.NewVoteService(ms),
		Weeks:             services.NewWeekService(ms, time.UTC),
		Scheduler:         services.NewScheduleService(ms, notifier, time.UTC, "09:00"),
		QuizQuestionCount: 5,
		QuizMaxAttempts:   3,
		SupportEmail:      "it@example.com",
	})
	return ms, rt
}

func adaEvent() *chat.Event {
	return &chat.Event{
		Type:  chat.EventMessage,
		User:  chat.User{Name: "users/1", Email: "ada@example.com", DisplayName: "Ada Lovelace"},
		Space: chat.Space{Name: "spaces/1", Type: chat.SpaceTypeDM},
	}
}

func command(id int) *chat.Event {
	ev := adaEvent()
	ev.Message = &chat.Message{SlashCommand: &chat.SlashCommand{CommandID: id}}
	return ev
}

func cardClick(function string, inputs map[string]string) *chat.Event {
	ev := adaEvent()
	ev.Type = chat.EventCardClicked
	ev.Common = &chat.Common{InvokedFunction: function, FormInputs: inputs}
	return ev
}

func isDialog(resp *chat.Response) bool {
	return resp.ActionResponse != nil && resp.ActionResponse.Type == "DIALOG"
}

func TestDMOnly(t *testing.T) {
	_, rt := newTestRouter(t)
	ev := command(chat.CommandPlay)
	ev.Space.Type = "ROOM"

	resp := rt.dispatch(ev)
	if !strings.Contains(resp.Text, "direct message") {
		t.Fatalf("expected a DM-only notice, got %q", resp.Text)
	}
}

func TestCommandsRequireRegistration(t *testing.T) {
	_, rt := newTestRouter(t)

	for _, id := range []int{chat.CommandStats, chat.CommandQuiz, chat.CommandVote} {
		resp := rt.dispatch(command(id))
		if !strings.Contains(resp.Text, "/play") {
			t.Fatalf("command %d: expected a sign-up prompt, got %q", id, resp.Text)
		}
	}
}

func TestSignUpFlow(t *testing.T) {
	ms, rt := newTestRouter(t)

	// /play offers the sign-up dialog
	if resp := rt.dispatch(command(chat.CommandPlay)); !isDialog(resp) {
		t.Fatalf("expected sign-up dialog, got %+v", resp)
	}

	// the sign-up button opens the occupation catalogue
	resp := rt.dispatch(cardClick(chat.FuncOccupationDialog, nil))
	if !isDialog(resp) {
		t.Fatalf("expected occupation dialog, got %+v", resp)
	}

	// submitting an occupation registers the citizen
	resp = rt.dispatch(cardClick(chat.FuncOccupationSelection, map[string]string{chat.InputOccupation: "Teacher"}))
	if !strings.Contains(resp.Text, "Welcome to McKinnonVille, Ada!") {
		t.Fatalf("unexpected sign-up reply %q", resp.Text)
	}

	c, err := ms.GetCitizen("ada@example.com")
	if err != nil || c == nil {
		t.Fatalf("citizen not stored: %v", err)
	}
	if c.House != "Gilmore" || c.Occupation != "Teacher" || c.OccupationLevel != 1 {
		t.Fatalf("unexpected citizen %+v", c)
	}
	if c.Gold != 22500 {
		t.Fatalf("gold = %d, want the post-tax 22500", c.Gold)
	}

	// stats now renders a card
	if resp := rt.dispatch(command(chat.CommandStats)); len(resp.Cards) == 0 {
		t.Fatalf("expected a stats card, got %+v", resp)
	}

	// a second /play points at /stats instead
	if resp := rt.dispatch(command(chat.CommandPlay)); !strings.Contains(resp.Text, "already a citizen") {
		t.Fatalf("unexpected repeat /play reply %q", resp.Text)
	}
}

func signUpAda(t *testing.T, rt *Router) {
	t.Helper()
	resp := rt.dispatch(cardClick(chat.FuncOccupationSelection, map[string]string{chat.InputOccupation: "Teacher"}))
	if !strings.Contains(resp.Text, "Welcome") {
		t.Fatalf("sign-up failed: %q", resp.Text)
	}
}

func TestQuizFlow(t *testing.T) {
	ms, rt := newTestRouter(t)
	signUpAda(t, rt)

	// /quiz renders the week's questions
	resp := rt.dispatch(command(chat.CommandQuiz))
	if !isDialog(resp) {
		t.Fatalf("expected quiz dialog, got %+v", resp)
	}

	// a perfect submission promotes
	resp = rt.dispatch(cardClick(chat.FuncQuizSubmission, map[string]string{"q1": "2", "q2": "1"}))
	if !strings.Contains(resp.Text, "promoted to level 2") {
		t.Fatalf("unexpected perfect-score reply %q", resp.Text)
	}
	c, _ := ms.GetCitizen("ada@example.com")
	if c.OccupationLevel != 2 || c.Gold != 36000 {
		t.Fatalf("citizen after promotion %+v", c)
	}
}

func TestQuizAttemptLimit(t *testing.T) {
	_, rt := newTestRouter(t)
	signUpAda(t, rt)

	wrong := map[string]string{"q1": "1", "q2": "2"}
	for i := 0; i < 2; i++ {
		resp := rt.dispatch(cardClick(chat.FuncQuizSubmission, wrong))
		if !strings.Contains(resp.Text, "scored 0 out of 2") {
			t.Fatalf("attempt %d: unexpected reply %q", i+1, resp.Text)
		}
	}

	// third miss names the next week
	resp := rt.dispatch(cardClick(chat.FuncQuizSubmission, wrong))
	if !strings.Contains(resp.Text, "last attempt") {
		t.Fatalf("unexpected final-attempt reply %q", resp.Text)
	}

	// the quiz stays closed for the rest of the week
	resp = rt.dispatch(command(chat.CommandQuiz))
	if !strings.Contains(resp.Text, "used all 3 quiz attempts") {
		t.Fatalf("unexpected exhausted reply %q", resp.Text)
	}
	resp = rt.dispatch(cardClick(chat.FuncQuizSubmission, map[string]string{"q1": "2", "q2": "1"}))
	if !strings.Contains(resp.Text, "used all 3 quiz attempts") {
		t.Fatalf("a submission past the cap was scored: %q", resp.Text)
	}
}

func TestVoteFlow(t *testing.T) {
	_, rt := newTestRouter(t)
	signUpAda(t, rt)

	resp := rt.dispatch(command(chat.CommandVote))
	if !isDialog(resp) {
		t.Fatalf("expected voting dialog, got %+v", resp)
	}

	resp = rt.dispatch(cardClick(chat.FuncVoteSubmission, map[string]string{chat.InputVoteOption: "opt1"}))
	if !strings.Contains(resp.Text, "has been recorded") {
		t.Fatalf("unexpected vote reply %q", resp.Text)
	}

	// one vote per week
	resp = rt.dispatch(command(chat.CommandVote))
	if !strings.Contains(resp.Text, "already voted") {
		t.Fatalf("unexpected repeat /vote reply %q", resp.Text)
	}
	resp = rt.dispatch(cardClick(chat.FuncVoteSubmission, map[string]string{chat.InputVoteOption: "opt2"}))
	if !strings.Contains(resp.Text, "already submitted a vote") {
		t.Fatalf("unexpected repeat submission reply %q", resp.Text)
	}
}

func TestChatEventEndpoint(t *testing.T) {
	_, rt := newTestRouter(t)
	mux := http.NewServeMux()
	rt.Register(mux)

	body, _ := json.Marshal(command(chat.CommandPlay))
	req := httptest.NewRequest(http.MethodPost, "/chat/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp chat.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !isDialog(&resp) {
		t.Fatalf("expected the sign-up dialog over HTTP, got %+v", resp)
	}

	// only POST is served
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/events", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}
}

func TestAdminEndpointsGuarded(t *testing.T) {
	_, rt := newTestRouter(t)
	mux := http.NewServeMux()
	rt.Register(mux)

	// no admin hash configured: endpoints are disabled outright
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/replan", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
