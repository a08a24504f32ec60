package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"ArticlesPublisher/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	defaultTick       = "@every 30s"
	configPathEnv     = "ARTICLES_PUBLISHER_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	openAIKeyEnv      = "OPENAI_API_KEY"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	geminiKeyEnv      = "GEMINI_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	httpAddrEnv       = "HTTP_ADDR"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	HTTP          HTTPConfig         `yaml:"http"`
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Images        ImagesConfig       `yaml:"images"`
	LLM           LLMConfig          `yaml:"llm"`
	Notifications NotificationConfig `yaml:"notifications"`
	Campaigns     []CampaignConfig   `yaml:"campaigns"`
}

// DatabaseConfig selects the ledger backend: "sqlite" (default), "postgres" or "memory".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// HTTPConfig configures the control API listener. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines how often campaigns are evaluated and in which timezone.
type SchedulerConfig struct {
	Tick     string         `yaml:"tick"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// FetchConfig tunes the resilient fetch chain. Zero values keep the defaults.
type FetchConfig struct {
	Proxies       []string      `yaml:"proxies"`
	Retries       int           `yaml:"retries"`
	BaseDelay     time.Duration `yaml:"baseDelay"`
	DirectTimeout time.Duration `yaml:"directTimeout"`
	ProxyTimeout  time.Duration `yaml:"proxyTimeout"`
	MinBodyLength int           `yaml:"minBodyLength"`
	BlockMarkers  []string      `yaml:"blockMarkers"`
}

// ImagesConfig tunes the image download routes. Zero values keep the defaults.
type ImagesConfig struct {
	Sources  []ImageSourceConfig `yaml:"sources"`
	Direct   bool                `yaml:"direct"`
	MinBytes int                 `yaml:"minBytes"`
	Timeout  time.Duration       `yaml:"timeout"`
}

// ImageSourceConfig is a named proxy template for image downloads.
type ImageSourceConfig struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// LLMConfig defines how to contact the rewrite models.
type LLMConfig struct {
	DefaultModel string         `yaml:"defaultModel"`
	SystemPrompt string         `yaml:"systemPrompt"`
	MaxTokens    int            `yaml:"maxTokens"`
	Timeout      time.Duration  `yaml:"timeout"`
	OpenAI       ProviderConfig `yaml:"openai"`
	Anthropic    ProviderConfig `yaml:"anthropic"`
	Gemini       ProviderConfig `yaml:"gemini"`
}

// ProviderConfig holds the endpoint and key of one model vendor.
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit path; an empty path means defaults only.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate checks every campaign definition.
func (c Config) Validate() error {
	var errs []error
	seen := map[string]struct{}{}
	for i, cc := range c.Campaigns {
		if _, err := cc.ToDomain(); err != nil {
			errs = append(errs, fmt.Errorf("campaigns[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[cc.ID]; dup {
			errs = append(errs, fmt.Errorf("campaigns[%d]: duplicate id %q", i, cc.ID))
		}
		seen[cc.ID] = struct{}{}
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database: unsupported driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// DomainCampaigns converts the configured campaigns.
func (c Config) DomainCampaigns() ([]domain.Campaign, error) {
	out := make([]domain.Campaign, 0, len(c.Campaigns))
	for i, cc := range c.Campaigns {
		camp, err := cc.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("campaigns[%d]: %w", i, err)
		}
		out = append(out, camp)
	}
	return out, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.LLM.OpenAI.APIKey = v
	}

	if v := os.Getenv(anthropicKeyEnv); v != "" {
		c.LLM.Anthropic.APIKey = v
	}

	if v := os.Getenv(geminiKeyEnv); v != "" {
		c.LLM.Gemini.APIKey = v
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

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Scheduler.Tick != "" {
		base.Scheduler.Tick = override.Scheduler.Tick
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	base.Fetch = mergeFetch(base.Fetch, override.Fetch)
	base.Images = mergeImages(base.Images, override.Images)
	base.LLM = mergeLLM(base.LLM, override.LLM)

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Campaigns) > 0 {
		base.Campaigns = override.Campaigns
	}

	return base
}

func mergeFetch(base, override FetchConfig) FetchConfig {
	if len(override.Proxies) > 0 {
		base.Proxies = override.Proxies
	}
	if override.Retries > 0 {
		base.Retries = override.Retries
	}
	if override.BaseDelay > 0 {
		base.BaseDelay = override.BaseDelay
	}
	if override.DirectTimeout > 0 {
		base.DirectTimeout = override.DirectTimeout
	}
	if override.ProxyTimeout > 0 {
		base.ProxyTimeout = override.ProxyTimeout
	}
	if override.MinBodyLength > 0 {
		base.MinBodyLength = override.MinBodyLength
	}
	if len(override.BlockMarkers) > 0 {
		base.BlockMarkers = override.BlockMarkers
	}
	return base
}

func mergeImages(base, override ImagesConfig) ImagesConfig {
	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	if override.Direct {
		base.Direct = true
	}
	if override.MinBytes > 0 {
		base.MinBytes = override.MinBytes
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	return base
}

func mergeLLM(base, override LLMConfig) LLMConfig {
	if override.DefaultModel != "" {
		base.DefaultModel = override.DefaultModel
	}
	if override.SystemPrompt != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	for _, p := range []struct{ dst, src *ProviderConfig }{
		{&base.OpenAI, &override.OpenAI},
		{&base.Anthropic, &override.Anthropic},
		{&base.Gemini, &override.Gemini},
	} {
		if p.src.Endpoint != "" {
			p.dst.Endpoint = p.src.Endpoint
		}
		if p.src.APIKey != "" {
			p.dst.APIKey = p.src.APIKey
		}
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "articles_publisher.db"},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Tick: defaultTick, Timezone: defaultTimezone, location: tz},
		LLM: LLMConfig{
			DefaultModel: "gpt-4o-mini",
			MaxTokens:    4096,
			Timeout:      90 * time.Second,
		},
	}
}
