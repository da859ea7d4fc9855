package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where civassist stores its own data
	DSN string
	// Driver is the database driver (sqlite or memory)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the public url of this civassist instance
	InstanceURL string

	// Primary conversational AI provider (OpenAI-compatible)
	AIPrimaryAPIKey  string // CIVASSIST_AI_PRIMARY_API_KEY
	AIPrimaryBaseURL string // CIVASSIST_AI_PRIMARY_BASE_URL (default: https://api.openai.com/v1)
	AIPrimaryModel   string // CIVASSIST_AI_PRIMARY_MODEL (default: gpt-4o-mini)
	// Secondary provider, used only when the primary call fails
	AISecondaryAPIKey  string // CIVASSIST_AI_SECONDARY_API_KEY
	AISecondaryBaseURL string // CIVASSIST_AI_SECONDARY_BASE_URL (default: https://api.deepseek.com)
	AISecondaryModel   string // CIVASSIST_AI_SECONDARY_MODEL (default: deepseek-chat)

	// Knowledge retrieval service (black-box search endpoint)
	KnowledgeURL string // CIVASSIST_KNOWLEDGE_URL

	// Redis durable tier for sessions/tokens. Empty disables the tier and
	// sessions live in process memory only.
	RedisAddr     string // CIVASSIST_REDIS_ADDR
	RedisPassword string // CIVASSIST_REDIS_PASSWORD

	// Channel secrets
	SocialVerifyToken string // CIVASSIST_SOCIAL_VERIFY_TOKEN (webhook subscription check)
	SocialAccessToken string // CIVASSIST_SOCIAL_ACCESS_TOKEN (graph API bearer token)

	// AcceptUnverifiedHandoff controls whether a well-formed handoff code is
	// accepted when its side record is gone (storage loss). Trades strict
	// single-use verification for availability; see the session package.
	AcceptUnverifiedHandoff bool // CIVASSIST_ACCEPT_UNVERIFIED_HANDOFF (default: true)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if at least the primary provider is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIPrimaryAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from CIVASSIST_* environment variables.
func (p *Profile) FromEnv() {
	p.AIPrimaryAPIKey = os.Getenv("CIVASSIST_AI_PRIMARY_API_KEY")
	p.AIPrimaryBaseURL = getEnvOrDefault("CIVASSIST_AI_PRIMARY_BASE_URL", "https://api.openai.com/v1")
	p.AIPrimaryModel = getEnvOrDefault("CIVASSIST_AI_PRIMARY_MODEL", "gpt-4o-mini")
	p.AISecondaryAPIKey = os.Getenv("CIVASSIST_AI_SECONDARY_API_KEY")
	p.AISecondaryBaseURL = getEnvOrDefault("CIVASSIST_AI_SECONDARY_BASE_URL", "https://api.deepseek.com")
	p.AISecondaryModel = getEnvOrDefault("CIVASSIST_AI_SECONDARY_MODEL", "deepseek-chat")

	p.KnowledgeURL = os.Getenv("CIVASSIST_KNOWLEDGE_URL")
	p.RedisAddr = os.Getenv("CIVASSIST_REDIS_ADDR")
	p.RedisPassword = os.Getenv("CIVASSIST_REDIS_PASSWORD")
	p.SocialVerifyToken = os.Getenv("CIVASSIST_SOCIAL_VERIFY_TOKEN")
	p.SocialAccessToken = os.Getenv("CIVASSIST_SOCIAL_ACCESS_TOKEN")

	p.AcceptUnverifiedHandoff = getEnvOrDefault("CIVASSIST_ACCEPT_UNVERIFIED_HANDOFF", "true") == "true"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "memory" {
		return nil
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/civassist"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("civassist_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
