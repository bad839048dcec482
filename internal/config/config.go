package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	appName = "smartphoneranker"

	// ConfigPathEnv points at an optional YAML file.
	ConfigPathEnv = "SMARTPHONE_RANKER_CONFIG"

	logLevelEnv       = "LOG_LEVEL"
	httpAddrEnv       = "HTTP_ADDR"
	classifierURLEnv  = "CLASSIFIER_URL"
	classifierKeyEnv  = "CLASSIFIER_API_KEY"
	historyDriverEnv  = "HISTORY_DRIVER"
	historyDSNEnv     = "HISTORY_DSN"
	cacheDirEnv       = "CACHE_DIR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"

	// HistoryDisabled turns the history store off when used as the driver.
	HistoryDisabled = "none"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	HTTP          HTTPConfig         `yaml:"http"`
	Source        SourceConfig       `yaml:"source"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Cache         CacheConfig        `yaml:"cache"`
	History       HistoryConfig      `yaml:"history"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// SourceConfig describes the marketplace pages and scraping etiquette.
type SourceConfig struct {
	BestsellerURL      string        `yaml:"bestsellerUrl"`
	BaseURL            string        `yaml:"baseUrl"`
	ReviewsURLTemplate string        `yaml:"reviewsUrlTemplate"`
	UserAgent          string        `yaml:"userAgent"`
	Timeout            time.Duration `yaml:"timeout"`
	ListingLimit       int           `yaml:"listingLimit"`
	MaxReviews         int           `yaml:"maxReviews"`
	CourtesyDelay      time.Duration `yaml:"courtesyDelay"`
	Strategies         []string      `yaml:"strategies"`
}

// ClassifierConfig describes the hosted sentiment model.
type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CacheConfig sets the cache tiers.
type CacheConfig struct {
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memoryTtl"`
	DiskTTL   time.Duration `yaml:"diskTtl"`
}

// HistoryConfig selects the run history backend: sqlite, postgres or none.
type HistoryConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Enabled reports whether a history backend is configured.
func (h HistoryConfig) Enabled() bool {
	return h.Driver != "" && h.Driver != HistoryDisabled
}

// SchedulerConfig defines the periodic refresh.
type SchedulerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	RunOnStart bool          `yaml:"runOnStart"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// Load reads the YAML file named by SMARTPHONE_RANKER_CONFIG (if any) and
// applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(ConfigPathEnv))
}

// LoadFrom is Load with an explicit file path; an empty path skips the file.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			// Decoding onto the defaults keeps every field the file omits.
			fileCfg := cfg
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillGaps()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{logLevelEnv, &c.Logging.Level},
		{httpAddrEnv, &c.HTTP.Addr},
		{classifierURLEnv, &c.Classifier.Endpoint},
		{classifierKeyEnv, &c.Classifier.APIKey},
		{historyDriverEnv, &c.History.Driver},
		{historyDSNEnv, &c.History.DSN},
		{cacheDirEnv, &c.Cache.Dir},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// fillGaps restores defaults for values a file blanked out.
func (c *Config) fillGaps() {
	def := defaultConfig()

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = def.HTTP.ShutdownTimeout
	}
	if c.Source.BestsellerURL == "" {
		c.Source.BestsellerURL = def.Source.BestsellerURL
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = def.Source.BaseURL
	}
	if c.Source.ReviewsURLTemplate == "" {
		c.Source.ReviewsURLTemplate = def.Source.ReviewsURLTemplate
	}
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = def.Source.Timeout
	}
	if c.Source.ListingLimit <= 0 {
		c.Source.ListingLimit = def.Source.ListingLimit
	}
	if c.Source.MaxReviews <= 0 {
		c.Source.MaxReviews = def.Source.MaxReviews
	}
	if c.Source.CourtesyDelay < 0 {
		c.Source.CourtesyDelay = 0
	}
	if len(c.Source.Strategies) == 0 {
		c.Source.Strategies = def.Source.Strategies
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = def.Classifier.Timeout
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = def.Cache.Dir
	}
	if c.Cache.MemoryTTL <= 0 {
		c.Cache.MemoryTTL = def.Cache.MemoryTTL
	}
	if c.Cache.DiskTTL <= 0 {
		c.Cache.DiskTTL = def.Cache.DiskTTL
	}
	c.History.Driver = strings.ToLower(strings.TrimSpace(c.History.Driver))
	if c.History.Driver == "sqlite" && c.History.DSN == "" {
		c.History.DSN = def.History.DSN
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = def.Scheduler.Interval
	}
}

// DataDir is the default location for the snapshot and the SQLite history.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		HTTP: HTTPConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			BestsellerURL:      "https://www.amazon.in/gp/bestsellers/electronics/1805560031",
			BaseURL:            "https://www.amazon.in",
			ReviewsURLTemplate: "https://www.amazon.in/product-reviews/{id}?reviewerType=all_reviews&language=en_IN&sortBy=recent",
			Timeout:            15 * time.Second,
			ListingLimit:       20,
			MaxReviews:         50,
			CourtesyDelay:      time.Second,
			Strategies:         []string{"direct-link", "container"},
		},
		Classifier: ClassifierConfig{
			Endpoint: "https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english",
			Timeout:  15 * time.Second,
		},
		Cache: CacheConfig{
			Dir:       DataDir(),
			MemoryTTL: time.Hour,
			DiskTTL:   2 * time.Hour,
		},
		History: HistoryConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(DataDir(), "history.db"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: time.Hour,
		},
	}
}
