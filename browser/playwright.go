package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// Options configures the persistent browser profile.
type Options struct {
	// UserDataDir holds the logged-in profile between runs.
	UserDataDir string
	Headless    bool
	// HomeURL is opened right after launch.
	HomeURL string
	// ActionTimeout bounds each single page action.
	ActionTimeout time.Duration
}

// Install downloads the Chromium build playwright drives.
func Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

// Launch starts Chromium on the persistent profile, opens HomeURL and wraps
// the page in a Session.
func Launch(ctx context.Context, opts Options, logger zerolog.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(opts.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser profile %s: %w", opts.UserDataDir, err)
	}

	closeFn := func() error {
		return errors.Join(bctx.Close(), pw.Stop())
	}

	raw, err := bctx.NewPage()
	if err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if opts.ActionTimeout > 0 {
		raw.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))
	}

	page := &playwrightPage{page: raw}
	if opts.HomeURL != "" {
		if err := page.Goto(ctx, opts.HomeURL); err != nil {
			_ = closeFn()
			return nil, err
		}
	}

	logger.Info().Str("profile", opts.UserDataDir).Bool("headless", opts.Headless).Msg("browser launched")
	return NewSession(page, closeFn), nil
}

// playwrightPage adapts a playwright page to Page. Playwright calls are
// synchronous, so the context is only checked before each call.
type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) locator(selector string) playwright.Locator {
	return p.page.Locator(selector).First()
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.page.Locator(selector).Count()
}

func (p *playwrightPage) Visible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.locator(selector).IsVisible()
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locator(selector).Fill(value)
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locator(selector).Click()
}

func (p *playwrightPage) ClickAt(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse().Click(x, y)
}

func (p *playwrightPage) SetInputFiles(ctx context.Context, selector, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.locator(selector).SetInputFiles(path)
}

func (p *playwrightPage) Attribute(ctx context.Context, selector, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.locator(selector).GetAttribute(name)
}
