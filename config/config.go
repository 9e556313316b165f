// Package config loads xthread settings from defaults, an optional TOML file
// and XTHREAD_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Sections are separated by a
// double underscore: XTHREAD_BROWSER__HEADLESS=true.
const EnvPrefix = "XTHREAD_"

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "xthread.toml"

type Config struct {
	ThreadsDir string `koanf:"threads_dir"`
	LogLevel   string `koanf:"log_level"`
	LogFile    string `koanf:"log_file"`

	LLM        LLM        `koanf:"llm"`
	Generation Generation `koanf:"generation"`
	Browser    Browser    `koanf:"browser"`
	Images     Images     `koanf:"images"`
	Publish    Publish    `koanf:"publish"`
	Server     Server     `koanf:"server"`
}

type LLM struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	// APIKeyEnv names the environment variable holding the key. The key
	// itself never lives in the config file.
	APIKeyEnv string `koanf:"api_key_env"`
}

type Generation struct {
	TweetCount int `koanf:"tweet_count"`
}

type Browser struct {
	UserDataDir   string        `koanf:"user_data_dir"`
	Headless      bool          `koanf:"headless"`
	HomeURL       string        `koanf:"home_url"`
	ActionTimeout time.Duration `koanf:"action_timeout"`
}

type Images struct {
	AutoConfirm    bool          `koanf:"auto_confirm"`
	Timeout        time.Duration `koanf:"timeout"`
	SearchInterval time.Duration `koanf:"search_interval"`
	SearchAttempts int           `koanf:"search_attempts"`
	SearchDelay    time.Duration `koanf:"search_delay"`
	SearchSettle   time.Duration `koanf:"search_settle"`
}

type Publish struct {
	ElementAttempts int           `koanf:"element_attempts"`
	ElementDelay    time.Duration `koanf:"element_delay"`
	SlotDelay       time.Duration `koanf:"slot_delay"`
	UploadSettle    time.Duration `koanf:"upload_settle"`
	SubmitAttempts  int           `koanf:"submit_attempts"`
	SubmitDelay     time.Duration `koanf:"submit_delay"`
	SubmitSettle    time.Duration `koanf:"submit_settle"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

func defaults() map[string]any {
	return map[string]any{
		"threads_dir": "threads",
		"log_level":   "info",
		"log_file":    "",

		"llm.provider":    "perplexity",
		"llm.model":       "sonar-pro",
		"llm.base_url":    "https://api.perplexity.ai",
		"llm.api_key_env": "PPLX_API_KEY",

		"generation.tweet_count": 10,

		"browser.user_data_dir":  "./chrome-data",
		"browser.headless":       false,
		"browser.home_url":       "https://x.com/home",
		"browser.action_timeout": "30s",

		"images.auto_confirm":    false,
		"images.timeout":         "10s",
		"images.search_interval": "2s",
		"images.search_attempts": 10,
		"images.search_delay":    "1s",
		"images.search_settle":   "2s",

		"publish.element_attempts": 10,
		"publish.element_delay":    "1s",
		"publish.slot_delay":       "1s",
		"publish.upload_settle":    "3s",
		"publish.submit_attempts":  3,
		"publish.submit_delay":     "1s",
		"publish.submit_settle":    "3s",

		"server.addr": "127.0.0.1:8080",
	}
}

// Load builds the configuration. An explicit path must exist; with an empty
// path DefaultFile is read when present.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		if err := k.Load(file.Provider(DefaultFile), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", DefaultFile, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const sample = `# xthread configuration
threads_dir = "threads"

[llm]
provider = "perplexity"   # perplexity | openai | deepseek | mock
model = "sonar-pro"
base_url = "https://api.perplexity.ai"
api_key_env = "PPLX_API_KEY"

[generation]
tweet_count = 10

[browser]
user_data_dir = "./chrome-data"
headless = false
home_url = "https://x.com/home"

[images]
auto_confirm = false
timeout = "10s"
search_interval = "2s"

[publish]
element_attempts = 10
element_delay = "1s"
upload_settle = "3s"
submit_settle = "3s"

[server]
addr = "127.0.0.1:8080"
`

// ErrExists is returned by Init when the file is already there.
var ErrExists = errors.New("configuration file already exists")

// Init writes a commented sample configuration to path.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w at %s", ErrExists, path)
	}
	return os.WriteFile(path, []byte(sample), 0o644)
}
