package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tutorial-ranker/shared/dataset"
	"tutorial-ranker/shared/ranking"
)

const (
	DefaultConfigFile = "config.yaml"
	DefaultQuery      = "programming tutorial"
	DefaultMaxVideos  = 50
	MaxSearchResults  = 50
	DefaultComments   = 15
	DefaultSchedule   = "0 0 9 * * *" // daily at 9 AM, cron with seconds
	DefaultHealthPort = 8080
	DefaultAIModel    = "gemini-2.5-flash"
)

type Config struct {
	YouTube    YouTubeConfig    `yaml:"youtube"`
	AI         AIConfig         `yaml:"ai"`
	Email      EmailConfig      `yaml:"email"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Schedule   string           `yaml:"schedule"`
}

type YouTubeConfig struct {
	APIKey       string `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenFile    string `yaml:"token_file"`
}

// HasCredentials reports whether the YouTube API can be reached.
func (c YouTubeConfig) HasCredentials() bool {
	return c.APIKey != "" || (c.ClientID != "" && c.ClientSecret != "")
}

type AIConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
	// SummarizeTop is how many ranked results get a generated blurb. 0 disables it.
	SummarizeTop int `yaml:"summarize_top"`
}

func (c AIConfig) Enabled() bool {
	return c.GeminiAPIKey != "" && c.SummarizeTop > 0
}

type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

// Enabled reports whether a digest should be sent after scheduled runs.
func (c EmailConfig) Enabled() bool {
	return c.Username != ""
}

type RankingConfig struct {
	Query              string                `yaml:"query"`
	MaxVideos          int                   `yaml:"max_videos"`
	MaxComments        int                   `yaml:"max_comments"`
	MinDurationMinutes int                   `yaml:"min_duration_minutes"`
	FallbackSize       int                   `yaml:"fallback_size"`
	Trees              int                   `yaml:"trees"`
	MaxDepth           int                   `yaml:"max_depth"`
	Seed               int64                 `yaml:"seed"`
	Weights            ranking.TargetWeights `yaml:"weights"`
}

type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	RawVideosFile string `yaml:"raw_videos_file"`
	FeaturesFile  string `yaml:"features_file"`
	TrainingFile  string `yaml:"training_file"`
	RankedFile    string `yaml:"ranked_file"`
	ModelFile     string `yaml:"model_file"`
	DeliveryLog   string `yaml:"delivery_log"`
	DatabaseURL   string `yaml:"database_url" env:"DATABASE_URL"`
}

// Path resolves a storage file name against DataDir.
func (c StorageConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
	// AllowOrigins restricts CORS on the status API; empty allows any origin.
	AllowOrigins []string `yaml:"allow_origins"`
}

// Load reads configuration from path. An empty path falls back to CONFIG_FILE and
// then config.yaml; a missing default file yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigFile
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Run on defaults and environment only.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.YouTube.APIKey, "YOUTUBE_API_KEY")
	fill(&c.YouTube.ClientID, "GOOGLE_CLIENT_ID")
	fill(&c.YouTube.ClientSecret, "GOOGLE_CLIENT_SECRET")
	fill(&c.AI.GeminiAPIKey, "GEMINI_API_KEY")
	fill(&c.Email.Username, "EMAIL_USERNAME")
	fill(&c.Email.Password, "EMAIL_PASSWORD")
	fill(&c.Storage.DatabaseURL, "DATABASE_URL")
}

func (c *Config) applyDefaults() {
	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "youtube_token.json"
	}

	if c.AI.Model == "" {
		c.AI.Model = DefaultAIModel
	}

	if c.Email.SMTPServer == "" {
		c.Email.SMTPServer = "smtp.gmail.com"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.FromEmail == "" {
		c.Email.FromEmail = c.Email.Username
	}
	if c.Email.ToEmail == "" {
		c.Email.ToEmail = c.Email.Username
	}

	r := &c.Ranking
	if r.Query == "" {
		r.Query = DefaultQuery
	}
	if r.MaxVideos == 0 {
		r.MaxVideos = DefaultMaxVideos
	}
	if r.MaxComments == 0 {
		r.MaxComments = DefaultComments
	}
	if r.MinDurationMinutes == 0 {
		r.MinDurationMinutes = ranking.MinDurationSeconds / 60
	}
	if r.FallbackSize == 0 {
		r.FallbackSize = ranking.FallbackSize
	}
	if r.Trees == 0 {
		r.Trees = ranking.DefaultTrees
	}
	if r.Seed == 0 {
		r.Seed = ranking.DefaultSeed
	}
	if r.Weights.IsZero() {
		r.Weights = ranking.DefaultTargetWeights()
	}

	s := &c.Storage
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.RawVideosFile == "" {
		s.RawVideosFile = dataset.RawVideosFile
	}
	if s.FeaturesFile == "" {
		s.FeaturesFile = dataset.FeaturesFile
	}
	if s.TrainingFile == "" {
		s.TrainingFile = dataset.TrainingFile
	}
	if s.RankedFile == "" {
		s.RankedFile = dataset.RankedFile
	}
	if s.ModelFile == "" {
		s.ModelFile = dataset.ModelFile
	}
	if s.DeliveryLog == "" {
		s.DeliveryLog = "delivered_videos.json"
	}

	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = DefaultHealthPort
	}
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
}

func (c *Config) validate() error {
	r := c.Ranking
	if r.MaxVideos < 1 || r.MaxVideos > MaxSearchResults {
		return fmt.Errorf("ranking.max_videos must be between 1 and %d, got %d", MaxSearchResults, r.MaxVideos)
	}
	if r.MaxComments < 0 {
		return fmt.Errorf("ranking.max_comments must not be negative")
	}
	if r.MinDurationMinutes < 0 {
		return fmt.Errorf("ranking.min_duration_minutes must not be negative")
	}
	if r.FallbackSize < 1 {
		return fmt.Errorf("ranking.fallback_size must be at least 1")
	}
	if r.Trees < 1 {
		return fmt.Errorf("ranking.trees must be at least 1")
	}
	if r.Weights.LikeRatio < 0 || r.Weights.CommentRatio < 0 || r.Weights.CommentSentiment < 0 || r.Weights.DescSentiment < 0 {
		return fmt.Errorf("ranking.weights must not be negative")
	}

	if c.YouTube.ClientID != "" && c.YouTube.ClientSecret == "" {
		return fmt.Errorf("YouTube client secret is required with a client ID (set GOOGLE_CLIENT_SECRET or youtube.client_secret)")
	}

	if c.Email.Enabled() && c.Email.Password == "" {
		return fmt.Errorf("Email password is required (set EMAIL_PASSWORD or email.password)")
	}

	if c.AI.SummarizeTop < 0 {
		return fmt.Errorf("ai.summarize_top must not be negative")
	}

	if c.Monitoring.HealthPort < 0 || c.Monitoring.HealthPort > 65535 {
		return fmt.Errorf("monitoring.health_port out of range: %d", c.Monitoring.HealthPort)
	}
	return nil
}

type contextKey struct{}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves config from context, or nil when none was stored.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}
