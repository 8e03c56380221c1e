package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup. Values load from a
// YAML file, then MCKV_* environment variables override individual fields
// so deployments can keep secrets out of the file.
type Config struct {
	Addr string `yaml:"addr"`

	// Store selects the backing datastore: "sheets", "sqlite" or "memory".
	Store      string `yaml:"store"`
	SQLitePath string `yaml:"sqlite_path"`

	// Spreadsheet IDs for the sheets backend. Data holds citizens, quiz
	// questions and the game calendar; Map holds the village plot grid.
	SpreadsheetData string `yaml:"spreadsheet_data"`
	SpreadsheetMap  string `yaml:"spreadsheet_map"`

	// Service account credentials for the spreadsheet and chat APIs.
	ServiceAccountEmail string   `yaml:"service_account_email"`
	PrivateKeyPath      string   `yaml:"private_key_path"`
	TokenURI            string   `yaml:"token_uri"`
	Scopes              []string `yaml:"scopes"`

	Timezone string `yaml:"timezone"`

	MaxOccupationLevel int    `yaml:"max_occupation_level"`
	QuizQuestionCount  int    `yaml:"quiz_question_count"`
	QuizMaxAttempts    int    `yaml:"quiz_max_attempts"`
	QuizOpenTime       string `yaml:"quiz_open_time"`

	// TestAccounts may register repeatedly without tripping the
	// duplicate check.
	TestAccounts []string `yaml:"test_accounts"`

	SupportEmail string `yaml:"support_email"`
	MapURL       string `yaml:"map_url"`

	// AdminKeyHash is a bcrypt hash guarding the /admin endpoints.
	AdminKeyHash string `yaml:"admin_key_hash"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Addr:               ":8080",
		Store:              "memory",
		SQLitePath:         "mckinnonville.db",
		TokenURI:           "https://oauth2.googleapis.com/token",
		Scopes: []string{
			"https://www.googleapis.com/auth/spreadsheets",
			"https://www.googleapis.com/auth/chat.bot",
		},
		Timezone:           "Australia/Melbourne",
		MaxOccupationLevel: 5,
		QuizQuestionCount:  5,
		QuizMaxAttempts:    3,
		QuizOpenTime:       "09:00",
	}
}

func (c *Config) applyEnv() {
	c.Addr = safeEnv("MCKV_ADDR", c.Addr)
	c.Store = safeEnv("MCKV_STORE", c.Store)
	c.SQLitePath = safeEnv("MCKV_SQLITE_PATH", c.SQLitePath)
	c.SpreadsheetData = safeEnv("MCKV_SPREADSHEET_DATA", c.SpreadsheetData)
	c.SpreadsheetMap = safeEnv("MCKV_SPREADSHEET_MAP", c.SpreadsheetMap)
	c.ServiceAccountEmail = safeEnv("MCKV_SERVICE_ACCOUNT_EMAIL", c.ServiceAccountEmail)
	c.PrivateKeyPath = safeEnv("MCKV_PRIVATE_KEY_PATH", c.PrivateKeyPath)
	c.TokenURI = safeEnv("MCKV_TOKEN_URI", c.TokenURI)
	c.Timezone = safeEnv("MCKV_TIMEZONE", c.Timezone)
	c.QuizOpenTime = safeEnv("MCKV_QUIZ_OPEN_TIME", c.QuizOpenTime)
	c.SupportEmail = safeEnv("MCKV_SUPPORT_EMAIL", c.SupportEmail)
	c.MapURL = safeEnv("MCKV_MAP_URL", c.MapURL)
	c.AdminKeyHash = safeEnv("MCKV_ADMIN_KEY_HASH", c.AdminKeyHash)
	c.MaxOccupationLevel = safeEnvInt("MCKV_MAX_OCCUPATION_LEVEL", c.MaxOccupationLevel)
	c.QuizQuestionCount = safeEnvInt("MCKV_QUIZ_QUESTION_COUNT", c.QuizQuestionCount)
	c.QuizMaxAttempts = safeEnvInt("MCKV_QUIZ_MAX_ATTEMPTS", c.QuizMaxAttempts)
}

func (c *Config) Normalize() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.QuizOpenTime = strings.TrimSpace(c.QuizOpenTime)
	for i := range c.TestAccounts {
		c.TestAccounts[i] = strings.ToLower(strings.TrimSpace(c.TestAccounts[i]))
	}
}

func (c Config) Validate() error {
	switch c.Store {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("sqlite_path must not be empty for the sqlite store")
		}
	case "sheets":
		if strings.TrimSpace(c.SpreadsheetData) == "" {
			return fmt.Errorf("spreadsheet_data must not be empty for the sheets store")
		}
		if strings.TrimSpace(c.SpreadsheetMap) == "" {
			return fmt.Errorf("spreadsheet_map must not be empty for the sheets store")
		}
		if strings.TrimSpace(c.ServiceAccountEmail) == "" {
			return fmt.Errorf("service_account_email must not be empty for the sheets store")
		}
		if strings.TrimSpace(c.PrivateKeyPath) == "" {
			return fmt.Errorf("private_key_path must not be empty for the sheets store")
		}
	default:
		return fmt.Errorf("unknown store %q (want sheets, sqlite or memory)", c.Store)
	}
	if c.MaxOccupationLevel < 1 {
		return fmt.Errorf("max_occupation_level must be >= 1")
	}
	if c.QuizQuestionCount < 1 {
		return fmt.Errorf("quiz_question_count must be >= 1")
	}
	if c.QuizMaxAttempts < 1 {
		return fmt.Errorf("quiz_max_attempts must be >= 1")
	}
	if _, err := parseClock(c.QuizOpenTime); err != nil {
		return fmt.Errorf("quiz_open_time: %w", err)
	}
	return nil
}

// TestAccountSet returns the allow-listed accounts as a lookup map.
func (c Config) TestAccountSet() map[string]bool {
	out := make(map[string]bool, len(c.TestAccounts))
	for _, a := range c.TestAccounts {
		out[a] = true
	}
	return out
}

func parseClock(v string) (string, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("want HH:MM, got %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("want HH:MM, got %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("want HH:MM, got %q", v)
	}
	return v, nil
}

func safeEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func safeEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
