package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	configPathEnv       = "REDDIT_MONITOR_CONFIG"
	logLevelEnv         = "LOG_LEVEL"
	logFormatEnv        = "LOG_FORMAT"
	llmProviderEnv      = "LLM_PROVIDER"
	llmModelEnv         = "LLM_MODEL"
	geminiAPIKeyEnv     = "GEMINI_API_KEY"
	openAIAPIKeyEnv     = "OPENAI_API_KEY"
	anthropicAPIKeyEnv  = "ANTHROPIC_API_KEY"
	notifierEnv         = "NOTIFIER"
	feishuWebhookEnv    = "FEISHU_WEBHOOK_URL"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	ledgerPathEnv       = "LEDGER_PATH"
	ledgerBackendEnv    = "LEDGER_BACKEND"
	ledgerDSNEnv        = "LEDGER_DSN"
	metricsAddrEnv      = "METRICS_ADDR"
	schedulerCronEnv    = "SCHEDULE_CRON"
	scheduleTimezoneEnv = "SCHEDULE_TIMEZONE"
)

// Supported LLM providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Supported notifiers.
const (
	NotifierFeishu   = "feishu"
	NotifierTelegram = "telegram"
)

// Supported ledger backends.
const (
	LedgerFile     = "file"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// ErrMissingCredential marks configuration that cannot start a run.
var ErrMissingCredential = errors.New("missing credential")

// Config holds every setting required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Reddit        RedditConfig       `yaml:"reddit"`
	Filter        FilterConfig       `yaml:"filter"`
	Product       ProductConfig      `yaml:"product"`
	LLM           LLMConfig          `yaml:"llm"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// LoggingConfig selects the slog level and output format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedditConfig describes which feeds are polled and how politely.
type RedditConfig struct {
	BaseURL                 string        `yaml:"baseUrl"`
	UserAgent               string        `yaml:"userAgent"`
	Subreddits              []string      `yaml:"subreddits"`
	PostsPerSubreddit       int           `yaml:"postsPerSubreddit"`
	MonitorComments         bool          `yaml:"monitorComments"`
	CommentsPerSubreddit    int           `yaml:"commentsPerSubreddit"`
	EnableKeywordSearch     bool          `yaml:"enableKeywordSearch"`
	SearchKeywords          []string      `yaml:"searchKeywords"`
	SearchResultsPerKeyword int           `yaml:"searchResultsPerKeyword"`
	RequestDelay            time.Duration `yaml:"requestDelay"`
	RequestTimeout          time.Duration `yaml:"requestTimeout"`
	MaxAttempts             int           `yaml:"maxAttempts"`
}

// FilterConfig holds the keyword lists of the pre-filter.
type FilterConfig struct {
	ExcludeKeywords   []string `yaml:"excludeKeywords"`
	RelevanceKeywords []string `yaml:"relevanceKeywords"`
}

// ProductConfig is rendered into the classification prompt.
type ProductConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Persona     string   `yaml:"persona"`
	Accept      []string `yaml:"accept"`
	Reject      []string `yaml:"reject"`
}

// LLMConfig selects and tunes the completion backend.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"apiKey"`
	Endpoint        string        `yaml:"endpoint"`
	Temperature     float64       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
	ThrottleWait    time.Duration `yaml:"throttleWait"`
	MaxContentChars int           `yaml:"maxContentChars"`
}

// PipelineConfig tunes the batch loop.
type PipelineConfig struct {
	BatchSize  int           `yaml:"batchSize"`
	BatchDelay time.Duration `yaml:"batchDelay"`
	DryRun     bool          `yaml:"dryRun"`
}

// LedgerConfig describes where processed ids are kept.
type LedgerConfig struct {
	Backend            string `yaml:"backend"`
	Path               string `yaml:"path"`
	DSN                string `yaml:"dsn"`
	MaxEntries         int    `yaml:"maxEntries"`
	RetryFailedBatches bool   `yaml:"retryFailedBatches"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Kind     string         `yaml:"kind"`
	Timeout  time.Duration  `yaml:"timeout"`
	Feishu   FeishuConfig   `yaml:"feishu"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// FeishuConfig points at a group bot webhook.
type FeishuConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIURL   string `yaml:"apiUrl"`
}

// SchedulerConfig defines when watch mode runs the pipeline.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// MetricsConfig exposes Prometheus metrics in watch mode when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env, the YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadPath("")
}

// LoadPath is Load with an explicit YAML path. An empty path falls back to
// the path named by REDDIT_MONITOR_CONFIG.
func LoadPath(path string) Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if fileCfg, err := LoadFile(path, cfg); err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Reddit.Subreddits) == 0 {
		cfg.Reddit.Subreddits = defaultConfig().Reddit.Subreddits
	}

	return cfg
}

// LoadFile decodes a YAML file on top of base. Keys absent from the file keep
// the value from base.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	cfg.bindTimezone()
	return cfg, nil
}

// Validate fails fast on settings without which no run can succeed.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: api key for llm provider %s", ErrMissingCredential, c.LLM.Provider)
	}

	if !c.Pipeline.DryRun {
		switch c.Notifications.Kind {
		case NotifierFeishu:
			if c.Notifications.Feishu.WebhookURL == "" {
				return fmt.Errorf("%w: %s", ErrMissingCredential, feishuWebhookEnv)
			}
		case NotifierTelegram:
			if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "" {
				return fmt.Errorf("%w: %s and %s", ErrMissingCredential, telegramTokenEnv, telegramChatIDEnv)
			}
		default:
			return fmt.Errorf("unknown notifier %q", c.Notifications.Kind)
		}
	}

	switch c.Ledger.Backend {
	case LedgerFile:
		if c.Ledger.Path == "" {
			return errors.New("ledger path is empty")
		}
	case LedgerSQLite, LedgerPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger backend %s requires a dsn", c.Ledger.Backend)
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Ledger.MaxEntries <= 0 {
		return fmt.Errorf("ledger max entries must be positive, got %d", c.Ledger.MaxEntries)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(apiKeyEnvFor(c.LLM.Provider)); v != "" {
		c.LLM.APIKey = v
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModelFor(c.LLM.Provider)
	}

	if v := os.Getenv(notifierEnv); v != "" {
		c.Notifications.Kind = strings.ToLower(v)
	}
	if v := os.Getenv(feishuWebhookEnv); v != "" {
		c.Notifications.Feishu.WebhookURL = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv(ledgerBackendEnv); v != "" {
		c.Ledger.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Ledger.DSN = v
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv(schedulerCronEnv); v != "" {
		c.Scheduler.CronExpression = v
	}
	if v := os.Getenv(scheduleTimezoneEnv); v != "" {
		c.Scheduler.Timezone = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func apiKeyEnvFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return openAIAPIKeyEnv
	case ProviderAnthropic:
		return anthropicAPIKeyEnv
	default:
		return geminiAPIKeyEnv
	}
}

func defaultModelFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	default:
		return "gemini-1.5-flash"
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Reddit: RedditConfig{
			BaseURL:   "https://www.reddit.com",
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			Subreddits: []string{
				"gamedev",
				"indiegaming",
				"IndieDev",
				"godot",
				"unity",
				"unrealengine",
				"SoloDevelopment",
				"gamedesign",
				"learnprogramming",
			},
			PostsPerSubreddit:       10,
			MonitorComments:         true,
			CommentsPerSubreddit:    25,
			EnableKeywordSearch:     true,
			SearchKeywords:          []string{"no code game", "make a game without coding", "ai game generator"},
			SearchResultsPerKeyword: 10,
			RequestDelay:            300 * time.Millisecond,
			RequestTimeout:          20 * time.Second,
			MaxAttempts:             3,
		},
		Filter: FilterConfig{
			ExcludeKeywords: []string{"[hiring]", "[for hire]", "[paid]", "job posting", "nsfw"},
			RelevanceKeywords: []string{
				"no code", "no-code", "without coding", "can't code", "prototype",
				"beginner", "ai tool", "game idea", "frustrated", "struggling",
			},
		},
		Product: ProductConfig{
			Name:        "wefun.ai",
			Description: "An AI generation tool and UGC platform for games and interactive content that handles game logic via prompts.",
			Persona:     "an experienced indie game developer and community member",
			Accept: []string{
				"Users frustrated with coding/programming for games",
				"Users asking for no-code or low-code game development tools",
				"Users showing simple game ideas but struggling to implement",
				"Users discussing AI tools for game development",
				"Users looking for ways to prototype games quickly",
				"Beginners wanting to make games without deep coding knowledge",
				"Users expressing interest in creating interactive content easily",
			},
			Reject: []string{
				"Spam, hate speech, or pure self-promotion",
				"Politics, finance, or completely unrelated topics",
				"Advanced technical discussions that wouldn't benefit from no-code tools",
				"Content just showing off completed games (not seeking help)",
				"Job postings or hiring threads",
				"Generic discussions without a clear need",
			},
		},
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Temperature:     0.3,
			Timeout:         60 * time.Second,
			ThrottleWait:    30 * time.Second,
			MaxContentChars: 500,
		},
		Pipeline: PipelineConfig{
			BatchSize:  10,
			BatchDelay: 4 * time.Second,
		},
		Ledger: LedgerConfig{
			Backend:    LedgerFile,
			Path:       "data/processed_posts.json",
			MaxEntries: 5000,
		},
		Notifications: NotificationConfig{
			Kind:    NotifierFeishu,
			Timeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{CronExpression: "*/30 * * * *", Timezone: defaultTimezone, location: tz},
	}
}
