package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mckinnonit/mckinnonville/internal/api"
	"github.com/mckinnonit/mckinnonville/internal/chat"
	"github.com/mckinnonit/mckinnonville/internal/config"
	"github.com/mckinnonit/mckinnonville/internal/services"
	"github.com/mckinnonit/mckinnonville/internal/sheets"
	"github.com/mckinnonit/mckinnonville/internal/store"
)

// replanInterval bounds how stale the notification schedule can get when
// the calendar sheet is edited without hitting /admin/replan.
const replanInterval = time.Hour

func main() {
	configPath := flag.String("config", os.Getenv("MCKV_CONFIG"), "path to config YAML")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("load timezone %q: %v", cfg.Timezone, err)
	}

	backing, tokens, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Store, err)
	}

	var notifier services.Notifier
	if tokens != nil {
		notifier = chat.NewSender(tokens)
	}

	plots := services.NewPlotService(backing)
	citizens := services.NewCitizenService(backing, plots, notifier, cfg.MaxOccupationLevel, cfg.TestAccounts)
	quizzes := services.NewQuizService(backing)
	votes := services.NewVoteService(backing)
	weeks := services.NewWeekService(backing, loc)
	scheduler := services.NewScheduleService(backing, notifier, loc, cfg.QuizOpenTime)

	if notifier != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go scheduler.Run(ctx, replanInterval)
	} else {
		log.Printf("no chat credentials configured, notifications disabled")
	}

	commit := os.Getenv("MCKV_COMMIT")
	buildTime := os.Getenv("MCKV_BUILD_TIME")

	mux := http.NewServeMux()
	api.NewRouter(api.RouterConfig{
		Citizens:          citizens,
		Quizzes:           quizzes,
		Votes:             votes,
		Weeks:             weeks,
		Scheduler:         scheduler,
		QuizQuestionCount: cfg.QuizQuestionCount,
		QuizMaxAttempts:   cfg.QuizMaxAttempts,
		MapURL:            cfg.MapURL,
		SupportEmail:      cfg.SupportEmail,
		AdminKeyHash:      cfg.AdminKeyHash,
	}).Register(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "McKinnonVille",
			"store":      cfg.Store,
			"commit":     commit,
			"build_time": buildTime,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	log.Printf("McKinnonVille server listening on %s (store: %s)", cfg.Addr, cfg.Store)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore builds the configured backend. The token source comes back too:
// the sheets backend shares its service account with the chat sender, and
// the local backends run without one.
func openStore(cfg config.Config) (store.Store, sheets.TokenSource, error) {
	switch cfg.Store {
	case "sheets":
		pem, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, nil, err
		}
		tokens, err := sheets.NewServiceAccountTokenSource(cfg.ServiceAccountEmail, string(pem), cfg.TokenURI, cfg.Scopes)
		if err != nil {
			return nil, nil, err
		}
		client := sheets.NewClient(tokens)
		return store.NewSheetStore(client, cfg.SpreadsheetData, cfg.SpreadsheetMap), tokens, nil
	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s, err := store.NewSQLiteStore(db)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return store.NewMemoryStore(), nil, nil
	}
}
