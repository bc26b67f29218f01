// Package headless drives a single persistent Chrome tab through chromedp.
// The tab plays the role of the user's browser window: every navigation or
// click replaces its document and starts a new page lifetime.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// documentMarker is set on the current window before a click; its absence
// identifies the document the click loaded.
const documentMarker = "__catalogCrawlerDocument"

// Config controls the headless browser.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	Headers           http.Header
	// ShowWindow runs Chrome with a visible window, for debugging selectors.
	ShowWindow bool
}

// Browser implements crawler.Browser over one chromedp tab.
type Browser struct {
	cfg         Config
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc

	mu        sync.Mutex
	tab       context.Context
	tabCancel context.CancelFunc
	meta      *responseMeta
}

// New creates a browser. Chrome is launched on first use.
func New(cfg Config, logger *zap.Logger) *Browser {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	headless := any("new")
	if cfg.ShowWindow {
		headless = false
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{
		cfg:         cfg,
		logger:      logger.Named("headless"),
		allocator:   allocCtx,
		allocCancel: allocCancel,
		meta:        newResponseMeta(),
	}
}

// ensureTab allocates the tab on the long-lived tab context, so that
// per-call timeouts derived from it never close the tab.
func (b *Browser) ensureTab() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tab != nil {
		return b.tab, nil
	}
	tab, cancel := chromedp.NewContext(b.allocator)
	chromedp.ListenTarget(tab, b.meta.captureEvent)
	if err := chromedp.Run(tab, b.setupAction()); err != nil {
		cancel()
		return nil, fmt.Errorf("start chrome tab: %w", err)
	}
	b.tab, b.tabCancel = tab, cancel
	return tab, nil
}

// run executes actions on the tab, bounded by the navigation timeout and by ctx.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	tab, err := b.ensureTab()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(tab, b.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads rawURL and waits for its body.
func (b *Browser) Navigate(ctx context.Context, rawURL string) error {
	b.meta.reset()
	err := b.run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if status, _ := b.meta.snapshot(); status >= http.StatusBadRequest {
		return fmt.Errorf("navigate %s: status %d", rawURL, status)
	}
	b.logger.Debug("navigated", zap.String("url", rawURL))
	return nil
}

// Click clicks the first element matching selector and waits until the
// document it loads is ready.
func (b *Browser) Click(ctx context.Context, selector string) error {
	b.meta.reset()
	var loaded bool
	err := b.run(ctx,
		chromedp.Evaluate(fmt.Sprintf("window.%s = true", documentMarker), nil),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Poll(
			fmt.Sprintf("document.readyState === 'complete' && window.%s === undefined", documentMarker),
			&loaded,
			chromedp.WithPollingInterval(100*time.Millisecond),
		),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Snapshot returns the current location and serialized document.
func (b *Browser) Snapshot(ctx context.Context) (string, []byte, error) {
	var (
		html     string
		location string
	)
	err := b.run(ctx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot: %w", err)
	}
	return location, []byte(html), nil
}

// Close shuts the tab and the Chrome process down.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.tabCancel != nil {
		b.tabCancel()
		b.tab, b.tabCancel = nil, nil
	}
	b.mu.Unlock()
	b.allocCancel()
	return nil
}

func (b *Browser) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(b.cfg.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(b.cfg.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// responseMeta tracks the main document response of the current page.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) reset() {
	m.mu.Lock()
	m.status, m.url = 0, ""
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
