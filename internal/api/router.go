// Package api exposes the HTTP surface: the chat event webhook that drives
// the whole game, and the key-guarded admin endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/mckinnonit/mckinnonville/internal/middleware"
	"github.com/mckinnonit/mckinnonville/internal/services"
)

// Router wires the game services onto the HTTP mux.
type Router struct {
	citizens  *services.CitizenService
	quizzes   *services.QuizService
	votes     *services.VoteService
	weeks     *services.WeekService
	scheduler *services.ScheduleService

	quizQuestionCount int
	quizMaxAttempts   int
	mapURL            string
	supportEmail      string
	adminKeyHash      string
}

type RouterConfig struct {
	Citizens  *services.CitizenService
	Quizzes   *services.QuizService
	Votes     *services.VoteService
	Weeks     *services.WeekService
	Scheduler *services.ScheduleService

	QuizQuestionCount int
	QuizMaxAttempts   int
	MapURL            string
	SupportEmail      string
	AdminKeyHash      string
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		citizens:          cfg.Citizens,
		quizzes:           cfg.Quizzes,
		votes:             cfg.Votes,
		weeks:             cfg.Weeks,
		scheduler:         cfg.Scheduler,
		quizQuestionCount: cfg.QuizQuestionCount,
		quizMaxAttempts:   cfg.QuizMaxAttempts,
		mapURL:            cfg.MapURL,
		supportEmail:      cfg.SupportEmail,
		adminKeyHash:      cfg.AdminKeyHash,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/chat/events", rt.handleChatEvent) // POST
	mux.Handle("/admin/replan",
		middleware.RequireAdminKey(rt.adminKeyHash, http.HandlerFunc(rt.handleReplan))) // POST
	mux.Handle("/admin/diagnostic",
		middleware.RequireAdminKey(rt.adminKeyHash, http.HandlerFunc(rt.handleDiagnostic))) // GET
}

// POST /admin/replan rebuilds the notification schedule from the calendar.
func (rt *Router) handleReplan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := rt.scheduler.Replan(); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "planned": len(rt.scheduler.Planned())})
}

// GET /admin/diagnostic reports population, current week and planned firings.
func (rt *Router) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := map[string]any{"ok": true, "triggers": rt.scheduler.Planned()}
	if citizens, err := rt.citizens.Citizens(); err == nil {
		out["citizens"] = len(citizens)
	} else {
		out["citizens_error"] = err.Error()
	}
	if week, err := rt.weeks.Current(); err == nil {
		out["week"] = week
	} else {
		out["week_error"] = err.Error()
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
