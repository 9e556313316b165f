// Package commands holds the xthread CLI subcommands.
package commands

import (
	"context"
	"net/http"
	"os"

	"auto_x_thread_publisher/browser"
	"auto_x_thread_publisher/config"
	"auto_x_thread_publisher/draft"
	"auto_x_thread_publisher/generator"
	"auto_x_thread_publisher/imagefind"
	"auto_x_thread_publisher/logutils"
	"auto_x_thread_publisher/operator"
	"auto_x_thread_publisher/publisher"
	"auto_x_thread_publisher/retry"
	"auto_x_thread_publisher/thread"
)

type Flags struct {
	LogLevel    string
	LogFile     string
	ConfigPath  string
	ThreadsDir  string
	AutoConfirm bool

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// Store opens the draft directory, honoring --threads-dir.
func (f *Flags) Store() *draft.Store {
	dir := f.Config.ThreadsDir
	if f.ThreadsDir != "" {
		dir = f.ThreadsDir
	}
	return draft.NewStore(dir)
}

// Agent builds the generator from config. It fails fast when the API key is
// missing.
func (f *Flags) Agent() (*generator.Agent, error) {
	settings, err := f.Config.LLMSettings()
	if err != nil {
		return nil, err
	}
	llm, err := generator.NewLLM(settings)
	if err != nil {
		return nil, err
	}
	return generator.NewAgent(llm)
}

// Manager wires the workflow to a real browser and terminal prompts. agent may
// be nil for publish-only use.
func (f *Flags) Manager(agent *generator.Agent) (*thread.Manager, error) {
	cfg := f.Config
	prompt := operator.Terminal{}
	httpClient := &http.Client{Timeout: cfg.Images.Timeout}

	launch := func(ctx context.Context) (*browser.Session, error) {
		return browser.Launch(ctx, cfg.BrowserOptions(), logutils.Component("browser"))
	}

	resolve := func(imagesDir string, page browser.Page) thread.Resolver {
		wait := retry.Policy{Attempts: cfg.Images.SearchAttempts, Delay: cfg.Images.SearchDelay}
		return imagefind.NewResolver(
			imagesDir,
			imagefind.NewDownloader(httpClient),
			imagefind.NewGoogleSearcher(page, wait, cfg.Images.SearchSettle),
			prompt,
			imagefind.WithSearchInterval(cfg.Images.SearchInterval),
			imagefind.WithOutput(os.Stdout),
			imagefind.WithLogger(logutils.Component("imagefind")),
		)
	}

	publish := func(page browser.Page) thread.Publisher {
		return publisher.New(page,
			publisher.WithTimings(cfg.PublishTimings()),
			publisher.WithOutput(os.Stdout),
			publisher.WithLogger(logutils.Component("publisher")),
		)
	}

	return thread.NewManager(
		thread.Deps{
			Store:     f.Store(),
			Agent:     agent,
			Prompter:  prompt,
			Launch:    launch,
			Resolver:  resolve,
			Publisher: publish,
		},
		thread.WithTweetCount(cfg.Generation.TweetCount),
		thread.WithAutoConfirm(f.AutoConfirm || cfg.Images.AutoConfirm),
		thread.WithHomeURL(cfg.Browser.HomeURL),
		thread.WithOutput(os.Stdout),
		thread.WithLogger(logutils.Component("thread")),
	)
}
