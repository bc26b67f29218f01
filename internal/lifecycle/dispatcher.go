// Package lifecycle decides, at the start of every page lifetime, which phase
// controller (if any) owns the freshly loaded page.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

// Crawler runs one crawl step on a listing page.
type Crawler interface {
	Step(ctx context.Context, page *crawler.Page) (crawler.Action, error)
}

// Navigator visits one product page.
type Navigator interface {
	Visit(ctx context.Context, page *crawler.Page) (crawler.Action, error)
}

// Dispatcher routes a loaded page to the active phase.
type Dispatcher struct {
	store  *store.ProcessStore
	crawl  Crawler
	nav    Navigator
	clock  crawler.Clock
	settle time.Duration
	logger *zap.Logger
}

// New builds a dispatcher.
func New(
	st *store.ProcessStore,
	crawl Crawler,
	nav Navigator,
	clock crawler.Clock,
	settle time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:  st,
		crawl:  crawl,
		nav:    nav,
		clock:  clock,
		settle: settle,
		logger: logger.Named("lifecycle"),
	}
}

// OnLoad waits for the page to settle, then hands it to the navigation
// controller, the crawl controller or nobody, in that order of precedence.
// Both flags set is a corrupted store: navigation keeps the page and the
// crawl flag is cleared.
func (d *Dispatcher) OnLoad(ctx context.Context, page *crawler.Page) (crawler.Action, error) {
	if err := d.clock.Sleep(ctx, d.settle); err != nil {
		return crawler.Action{}, err
	}
	state, err := d.store.State(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	switch {
	case state.NavigationInProgress:
		if state.CrawlInProgress {
			d.logger.Warn("both phases active, clearing crawl flag", zap.String("url", page.URL))
			if err := d.store.SetCrawlInProgress(ctx, false); err != nil {
				return crawler.Action{}, err
			}
		}
		return d.nav.Visit(ctx, page)
	case state.CrawlInProgress:
		return d.crawl.Step(ctx, page)
	default:
		return crawler.None(), nil
	}
}
