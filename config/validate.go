package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"auto_x_thread_publisher/browser"
	"auto_x_thread_publisher/generator"
	"auto_x_thread_publisher/publisher"
)

var providers = []string{"perplexity", "openai", "deepseek", "mock"}

// Validate checks structural settings. It does not look at the environment;
// see LLMSettings for the API key.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if strings.TrimSpace(c.ThreadsDir) == "" {
		errs = errs.Append("threads_dir", fmt.Errorf("is required"))
	}
	if !slices.Contains(providers, c.LLM.Provider) {
		errs = errs.Append("llm.provider", fmt.Errorf("must be one of %s", strings.Join(providers, ", ")))
	}
	if c.LLM.Provider != "mock" {
		if c.LLM.Model == "" {
			errs = errs.Append("llm.model", fmt.Errorf("is required"))
		}
		if c.LLM.APIKeyEnv == "" {
			errs = errs.Append("llm.api_key_env", fmt.Errorf("is required"))
		}
	}
	if n := c.Generation.TweetCount; n < 1 || n > 25 {
		errs = errs.Append("generation.tweet_count", fmt.Errorf("must be between 1 and 25, got %d", n))
	}
	if c.Browser.UserDataDir == "" {
		errs = errs.Append("browser.user_data_dir", fmt.Errorf("is required"))
	}

	attempts := []struct {
		field string
		n     int
	}{
		{"images.search_attempts", c.Images.SearchAttempts},
		{"publish.element_attempts", c.Publish.ElementAttempts},
		{"publish.submit_attempts", c.Publish.SubmitAttempts},
	}
	for _, a := range attempts {
		if a.n < 1 {
			errs = errs.Append(a.field, fmt.Errorf("must be at least 1"))
		}
	}

	// A zero timeout means "wait forever" to net/http and playwright.
	timeouts := []struct {
		field string
		d     time.Duration
	}{
		{"browser.action_timeout", c.Browser.ActionTimeout},
		{"images.timeout", c.Images.Timeout},
		{"publish.element_delay", c.Publish.ElementDelay},
	}
	for _, d := range timeouts {
		if d.d <= 0 {
			errs = errs.Append(d.field, fmt.Errorf("must be greater than 0"))
		}
	}

	delays := []struct {
		field string
		d     time.Duration
	}{
		{"images.search_interval", c.Images.SearchInterval},
		{"publish.upload_settle", c.Publish.UploadSettle},
		{"publish.submit_settle", c.Publish.SubmitSettle},
	}
	for _, d := range delays {
		if d.d < 0 {
			errs = errs.Append(d.field, fmt.Errorf("must not be negative"))
		}
	}

	return errs.ToError()
}

// LLMSettings resolves the generator settings, reading the API key from the
// environment variable the config names. A missing key is an error for every
// provider except mock.
func (c *Config) LLMSettings() (generator.LLMSettings, error) {
	s := generator.LLMSettings{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
	}
	if c.LLM.Provider == "mock" {
		return s, nil
	}
	s.APIKey = strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
	if s.APIKey == "" {
		return s, criterio.NewFieldErrors("llm.api_key_env",
			fmt.Errorf("environment variable %s is not set", c.LLM.APIKeyEnv))
	}
	return s, nil
}

func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		UserDataDir:   c.Browser.UserDataDir,
		Headless:      c.Browser.Headless,
		HomeURL:       c.Browser.HomeURL,
		ActionTimeout: c.Browser.ActionTimeout,
	}
}

func (c *Config) PublishTimings() publisher.Timings {
	return publisher.Timings{
		ElementAttempts: c.Publish.ElementAttempts,
		ElementDelay:    c.Publish.ElementDelay,
		SlotDelay:       c.Publish.SlotDelay,
		UploadSettle:    c.Publish.UploadSettle,
		SubmitAttempts:  c.Publish.SubmitAttempts,
		SubmitDelay:     c.Publish.SubmitDelay,
		SubmitSettle:    c.Publish.SubmitSettle,
	}
}
