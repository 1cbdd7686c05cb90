package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Sync backends.
const (
	SyncNone   = "none"
	SyncLocal  = "local"
	SyncGitHub = "github"
	SyncGit    = "git"
)

type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   string
	LogFile    string

	AuthUsername     string
	AuthPasswordHash string
	SessionSecret    string
	SessionTTL       time.Duration
	CookieSecure     bool
	LoginRateLimit   int

	SyncBackend  string
	SyncPath     string
	SyncBranch   string
	SyncLocalDir string

	GitHubRepo   string
	GitHubToken  string
	GitHubAPIURL string

	GitURL      string
	GitUsername string
	GitToken    string
}

// LoadDotEnv adds variables from the given files (default ".env") to the
// environment. Variables already set win, and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		DBPath:           getEnv("DB_PATH", "/data/card_decks.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		AuthUsername:     getEnv("AUTH_USERNAME", "admin"),
		AuthPasswordHash: getEnv("AUTH_PASSWORD_HASH", ""),
		SessionSecret:    getEnv("SESSION_SECRET", ""),
		SyncBackend:      getEnv("SYNC_BACKEND", SyncNone),
		SyncPath:         getEnv("SYNC_PATH", "card_decks.db"),
		SyncBranch:       getEnv("SYNC_BRANCH", "main"),
		SyncLocalDir:     getEnv("SYNC_LOCAL_DIR", "/backup"),
		GitHubRepo:       getEnv("GITHUB_REPO", ""),
		GitHubToken:      getEnv("GITHUB_TOKEN", ""),
		GitHubAPIURL:     getEnv("GITHUB_API_URL", ""),
		GitURL:           getEnv("SYNC_GIT_URL", ""),
		GitUsername:      getEnv("SYNC_GIT_USERNAME", ""),
		GitToken:         getEnv("SYNC_GIT_TOKEN", ""),
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "12h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
	}
	if cfg.LoginRateLimit, err = strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10")); err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LoginRateLimit <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be positive")
	}
	switch c.SyncBackend {
	case SyncNone, SyncLocal:
	case SyncGitHub:
		if c.GitHubRepo == "" {
			return fmt.Errorf("GITHUB_REPO is required when SYNC_BACKEND=github")
		}
	case SyncGit:
		if c.GitURL == "" {
			return fmt.Errorf("SYNC_GIT_URL is required when SYNC_BACKEND=git")
		}
	default:
		return fmt.Errorf("unknown SYNC_BACKEND %q", c.SyncBackend)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
