package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultKeywordsURL is where the shared keyword mapping is published.
const DefaultKeywordsURL = "https://raw.githubusercontent.com/nkxrfxforum/OrphanSavior/refs/heads/main/keywords.json"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr  string
	CORSOrigins string // Comma-separated allowed origins
	RateLimit   int    // Requests per minute per IP, 0 disables

	// TLS (optional)
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string // Optional, enables mTLS client verification

	// Database (optional, enables the keyword_pairs source and hit metrics)
	DatabaseURL string

	// Redis (optional, shared keyword cache and rate-limit storage)
	RedisURL string

	// Keyword mapping
	KeywordsURL     string        // env: KEYWORDS_URL, "" disables the remote source
	KeywordsFile    string        // env: KEYWORDS_FILE, "" uses the bundled mapping
	KeywordsTTL     time.Duration // env: KEYWORDS_TTL, default 5m
	KeywordsRefresh time.Duration // env: KEYWORDS_REFRESH, 0 disables the background refresher

	// OAuth2 client credentials for a protected KEYWORDS_URL
	KeywordsOAuthClientID     string
	KeywordsOAuthClientSecret string
	KeywordsOAuthTokenURL     string
	KeywordsOAuthScopes       string // Comma-separated

	// Substitution timing
	InputDelay     time.Duration // env: INPUT_DELAY, default 3s
	ScrollDelay    time.Duration // env: SCROLL_DELAY, default 200ms
	RescanInterval time.Duration // env: RESCAN_INTERVAL, default 1s
	BatchSize      int           // env: BATCH_SIZE, default 50
	BatchIdle      time.Duration // env: BATCH_IDLE, default 1ms

	// Live sessions
	SessionTTL  time.Duration // env: SESSION_TTL, default 30m
	MaxSessions int           // env: MAX_SESSIONS, default 1000

	// OIDC (optional, protects the keyword admin endpoints)
	OIDCIssuer   string
	OIDCClientID string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		ServerAddr:  getEnv("SERVER_ADDR", ":3000"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		RateLimit:   getInt("RATE_LIMIT", 100),

		TLSEnabled:  getEnv("TLS_ENABLED", "false") == "true",
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
		TLSCAFile:   getEnv("TLS_CA_FILE", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		KeywordsURL:     getEnv("KEYWORDS_URL", DefaultKeywordsURL),
		KeywordsFile:    getEnv("KEYWORDS_FILE", ""),
		KeywordsTTL:     getDuration("KEYWORDS_TTL", 5*time.Minute),
		KeywordsRefresh: getDuration("KEYWORDS_REFRESH", 0),

		KeywordsOAuthClientID:     getEnv("KEYWORDS_OAUTH_CLIENT_ID", ""),
		KeywordsOAuthClientSecret: getEnv("KEYWORDS_OAUTH_CLIENT_SECRET", ""),
		KeywordsOAuthTokenURL:     getEnv("KEYWORDS_OAUTH_TOKEN_URL", ""),
		KeywordsOAuthScopes:       getEnv("KEYWORDS_OAUTH_SCOPES", ""),

		InputDelay:     getDuration("INPUT_DELAY", 3*time.Second),
		ScrollDelay:    getDuration("SCROLL_DELAY", 200*time.Millisecond),
		RescanInterval: getDuration("RESCAN_INTERVAL", time.Second),
		BatchSize:      getInt("BATCH_SIZE", 50),
		BatchIdle:      getDuration("BATCH_IDLE", time.Millisecond),

		SessionTTL:  getDuration("SESSION_TTL", 30*time.Minute),
		MaxSessions: getInt("MAX_SESSIONS", 1000),

		OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
		OIDCClientID: getEnv("OIDC_CLIENT_ID", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getInt parses an integer variable, falling back on absence or parse error.
func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// getDuration parses a time.Duration ("300ms", "5m"), falling back on
// absence or parse error.
func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// HasDatabase returns true if a database is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// OAuthScopes splits KeywordsOAuthScopes.
func (c *Config) OAuthScopes() []string {
	if c.KeywordsOAuthScopes == "" {
		return nil
	}
	var scopes []string
	for _, s := range strings.Split(c.KeywordsOAuthScopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
