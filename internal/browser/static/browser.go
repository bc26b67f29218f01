// Package static implements crawler.Browser over plain HTTP using gocolly.
// It suits catalogs whose listing pagination and product markup are
// server-rendered: a click is emulated by following the href of the
// selected element.
package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// ErrNoPage is returned when Click or Snapshot run before any navigation.
var ErrNoPage = errors.New("no page loaded")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
}

// Browser keeps the last loaded document as its "window".
type Browser struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector

	mu   sync.Mutex
	url  string
	body []byte
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	url  string
	body []byte
	err  error
}

var _ crawler.Browser = (*Browser)(nil)

// New builds a Browser.
func New(cfg Config, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	return &Browser{
		cfg:           cfg,
		logger:        logger.Named("static"),
		baseCollector: c,
	}
}

// Navigate fetches rawURL and makes it the current page.
func (b *Browser) Navigate(ctx context.Context, rawURL string) error {
	result := &fetchResult{}
	collector := b.buildCollector(result)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("navigate %s canceled: %w", rawURL, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("navigate %s: %w", rawURL, err)
		}
		if result.err != nil {
			return fmt.Errorf("navigate %s: %w", rawURL, result.err)
		}
	}

	b.mu.Lock()
	b.url, b.body = result.url, result.body
	b.mu.Unlock()
	b.logger.Debug("navigated", zap.String("url", result.url))
	return nil
}

// Click follows the href of the first element matching selector.
func (b *Browser) Click(ctx context.Context, selector string) error {
	current, body, err := b.Snapshot(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("click %s: parse current page: %w", selector, err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("click %s: no matching element", selector)
	}
	href, ok := sel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		if inner, found := sel.Find("a[href]").First().Attr("href"); found {
			href = inner
		}
	}
	if strings.TrimSpace(href) == "" {
		return fmt.Errorf("click %s: element has no href", selector)
	}
	page := &crawler.Page{URL: current}
	return b.Navigate(ctx, page.Resolve(href))
}

// Snapshot returns the current page.
func (b *Browser) Snapshot(context.Context) (string, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.url == "" {
		return "", nil, ErrNoPage
	}
	return b.url, append([]byte(nil), b.body...), nil
}

// Close is a no-op; the transport's idle connections are left to expire.
func (b *Browser) Close() error {
	return nil
}

func (b *Browser) buildCollector(result *fetchResult) *colly.Collector {
	collector := b.baseCollector.Clone()
	if b.cfg.UserAgent != "" {
		collector.UserAgent = b.cfg.UserAgent
	}
	timeout := b.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	b.configureCollectorHooks(collector, result)
	return collector
}

func (b *Browser) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnRequest(func(r *colly.Request) {
		b.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.url = r.Request.URL.String()
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		result.err = err
	})
}

func (b *Browser) copyHeaders(r *colly.Request) {
	for key, values := range b.cfg.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
