package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/mckinnonit/mckinnonville/internal/chat"
	"github.com/mckinnonit/mckinnonville/internal/services"
)

// POST /chat/events is the platform webhook. Every interaction arrives
// here: slash commands as MESSAGE events, dialog submissions as
// CARD_CLICKED.
func (rt *Router) handleChatEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ev, err := chat.ParseEvent(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, rt.dispatch(ev))
}

func (rt *Router) dispatch(ev *chat.Event) *chat.Response {
	if !ev.IsDM() {
		return chat.TextResponse("McKinnonVille is played one-on-one. Send me a direct message to get started!")
	}
	switch ev.Type {
	case chat.EventMessage:
		return rt.handleCommand(ev)
	case chat.EventCardClicked:
		return rt.handleCardClick(ev)
	}
	return rt.helpResponse()
}

func (rt *Router) handleCommand(ev *chat.Event) *chat.Response {
	switch ev.CommandID() {
	case chat.CommandPlay:
		if rt.citizens.Registered(ev.User.Email) {
			return chat.TextResponse("You are already a citizen of McKinnonVille! Type /stats to see how you are doing.")
		}
		return chat.SignUpDialog(rt.mapURL)
	case chat.CommandStats:
		c, resp := rt.requireCitizen(ev)
		if resp != nil {
			return resp
		}
		return chat.StatsCard(c)
	case chat.CommandQuiz:
		return rt.quizDialog(ev)
	case chat.CommandVote:
		return rt.voteDialog(ev)
	case chat.CommandTest:
		return rt.testResponse(ev)
	}
	return rt.helpResponse()
}

func (rt *Router) handleCardClick(ev *chat.Event) *chat.Response {
	switch ev.InvokedFunction() {
	case chat.FuncOccupationDialog:
		return rt.occupationDialog(ev)
	case chat.FuncOccupationSelection:
		return rt.occupationSelection(ev)
	case chat.FuncQuizSubmission:
		return rt.quizSubmission(ev)
	case chat.FuncVoteSubmission:
		return rt.voteSubmission(ev)
	}
	log.Printf("chat events: unknown card function %q from %s", ev.InvokedFunction(), ev.User.Email)
	return rt.helpResponse()
}

// occupationDialog follows the sign-up button: resolve the player's house
// and present the occupation catalogue with their village's balance.
func (rt *Router) occupationDialog(ev *chat.Event) *chat.Response {
	house, err := rt.citizens.ResolveHouse(ev.User.Email)
	if err != nil {
		if services.HasCode(err, services.ErrorNotFound) {
			return chat.TextResponse(rt.withSupport("I couldn't work out which house you belong to."))
		}
		return rt.errorResponse(ev, err)
	}
	village, err := rt.citizens.Village(house)
	if err != nil {
		// The dialog still works without the balance display.
		village = nil
	}
	occs, err := rt.citizens.Occupations()
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	return chat.OccupationDialog(occs, house, village)
}

// occupationSelection completes registration with the chosen occupation.
func (rt *Router) occupationSelection(ev *chat.Event) *chat.Response {
	house, err := rt.citizens.ResolveHouse(ev.User.Email)
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	c, err := rt.citizens.SignUp(services.SignUpRequest{
		Name:       ev.User.DisplayName,
		Email:      ev.User.Email,
		UserID:     ev.User.Name,
		SpaceID:    ev.Space.Name,
		House:      house,
		Occupation: ev.FormInput(chat.InputOccupation),
	})
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	return chat.TextResponse(fmt.Sprintf(
		"Welcome to McKinnonVille, %s! You are now a level 1 %s in %s's village, settled on plot %s with %d gold. Type /quiz each week to seek a promotion.",
		ev.FirstName(), c.Occupation, c.House, c.Plot, c.Gold))
}

func (rt *Router) quizDialog(ev *chat.Event) *chat.Response {
	c, resp := rt.requireCitizen(ev)
	if resp != nil {
		return resp
	}
	week, err := rt.weeks.Current()
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	attempts, err := rt.citizens.QuizAttempts(c.Email, week)
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	if attempts >= rt.quizMaxAttempts {
		return chat.TextResponse(fmt.Sprintf(
			"You have used all %d quiz attempts for week %d. A fresh quiz opens in week %d.",
			rt.quizMaxAttempts, week, week+1))
	}
	questions, err := rt.quizzes.SelectQuestions(c.Occupation, c.OccupationLevel, rt.quizQuestionCount)
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	if len(questions) == 0 {
		return chat.TextResponse("There are no quiz questions for your occupation this week. Check back soon!")
	}
	return chat.QuizCard(week, questions)
}

func (rt *Router) quizSubmission(ev *chat.Event) *chat.Response {
	c, resp := rt.requireCitizen(ev)
	if resp != nil {
		return resp
	}
	week, err := rt.weeks.Current()
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	attempts, err := rt.citizens.IncrementQuizAttempts(c.Email, week)
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	if attempts > rt.quizMaxAttempts {
		return chat.TextResponse(fmt.Sprintf(
			"You have used all %d quiz attempts for week %d. A fresh quiz opens in week %d.",
			rt.quizMaxAttempts, week, week+1))
	}

	var answers map[string]string
	if ev.Common != nil {
		answers = ev.Common.FormInputs
	}
	result, err := rt.quizzes.Score(answers)
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	if result.Total == 0 {
		return chat.TextResponse("Please answer every question before submitting.")
	}
	if result.Perfect() {
		promo, err := rt.citizens.LevelUp(c.Email)
		if err != nil {
			return rt.errorResponse(ev, err)
		}
		if promo.AtMax {
			return chat.TextResponse(fmt.Sprintf(
				"A perfect score! You are already at the top of your field, level %d. There is nowhere higher to climb.",
				promo.Citizen.OccupationLevel))
		}
		return chat.TextResponse(fmt.Sprintf(
			"A perfect score! You have been promoted to level %d %s. Your new salary is %d gold.",
			promo.Citizen.OccupationLevel, promo.Citizen.Occupation, promo.Citizen.Gold))
	}
	remaining := rt.quizMaxAttempts - attempts
	if remaining > 0 {
		return chat.TextResponse(fmt.Sprintf(
			"You scored %d out of %d. A promotion needs a perfect score; you have %d attempt(s) left this week.",
			result.Correct, result.Total, remaining))
	}
	return chat.TextResponse(fmt.Sprintf(
		"You scored %d out of %d. That was your last attempt for week %d; a fresh quiz opens next week.",
		result.Correct, result.Total, week))
}

func (rt *Router) voteDialog(ev *chat.Event) *chat.Response {
	c, resp := rt.requireCitizen(ev)
	if resp != nil {
		return resp
	}
	week, err := rt.weeks.Current()
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	existing, err := rt.votes.Get(c.Email, week)
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	if existing != "" {
		return chat.TextResponse("You have already voted on this week's ordinance. The results are announced at the end of the week!")
	}
	options, err := rt.votes.Options(week)
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	if len(options) == 0 {
		return chat.TextResponse("There is no ordinance on the ballot this week.")
	}
	return chat.VotingDialog(week, options)
}

func (rt *Router) voteSubmission(ev *chat.Event) *chat.Response {
	c, resp := rt.requireCitizen(ev)
	if resp != nil {
		return resp
	}
	week, err := rt.weeks.Current()
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	if err := rt.votes.Record(c.Email, week, ev.FormInput(chat.InputVoteOption)); err != nil {
		return rt.errorResponse(ev, err)
	}
	return chat.TextResponse("Thank you! Your vote on this week's ordinance has been recorded.")
}

// testResponse answers the hidden diagnostics command with the state the
// bot sees for this player.
func (rt *Router) testResponse(ev *chat.Event) *chat.Response {
	week, err := rt.weeks.Current()
	if err != nil {
		return rt.errorResponse(ev, err)
	}
	return chat.TextResponse(fmt.Sprintf(
		"McKinnonVille is alive. Week %d, registered: %t.", week, rt.citizens.Registered(ev.User.Email)))
}

// requireCitizen loads the caller's citizen record, or builds the reply
// telling them to sign up first.
func (rt *Router) requireCitizen(ev *chat.Event) (*services.Citizen, *chat.Response) {
	c, err := rt.citizens.Get(ev.User.Email)
	if err != nil {
		if services.HasCode(err, services.ErrorNotFound) {
			return nil, chat.TextResponse("You are not yet a citizen of McKinnonVille. Type /play to sign up!")
		}
		return nil, rt.errorResponse(ev, err)
	}
	return c, nil
}

// errorResponse turns a service error into reply copy. Domain errors carry
// messages written for players; anything else gets a generic apology.
func (rt *Router) errorResponse(ev *chat.Event, err error) *chat.Response {
	if se, ok := services.AsServiceError(err); ok && se.Code != services.ErrorUpstream {
		return chat.TextResponse(se.Message)
	}
	log.Printf("chat events: %s for %s: %v", ev.Type, ev.User.Email, err)
	return chat.TextResponse(rt.withSupport("Something went wrong on our end. Please try again in a moment."))
}

func (rt *Router) helpResponse() *chat.Response {
	return chat.TextResponse("Try one of my commands: /play to join McKinnonVille, /stats to see your citizen, /quiz for this week's quiz, or /vote for the ordinance ballot.")
}

func (rt *Router) withSupport(msg string) string {
	if rt.supportEmail == "" {
		return msg
	}
	return msg + " If this keeps happening, contact " + rt.supportEmail + "."
}
