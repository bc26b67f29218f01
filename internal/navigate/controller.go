// Package navigate implements the product phase: it walks the navigation
// queue one product page at a time, extracting records from each.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

// ErrQueueIntegrity reports an unusable entry in the navigation queue.
var ErrQueueIntegrity = errors.New("navigation queue entry is invalid")

// Resolver turns a product page into records.
type Resolver interface {
	Resolve(page *crawler.Page) []crawler.ProductRecord
}

// Controller runs the navigation phase.
type Controller struct {
	store    *store.ProcessStore
	resolver Resolver
	profile  crawler.SiteProfile
	timing   crawler.Timing
	logger   *zap.Logger
}

// New builds a navigation controller over st.
func New(
	st *store.ProcessStore,
	resolver Resolver,
	profile crawler.SiteProfile,
	timing crawler.Timing,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:    st,
		resolver: resolver,
		profile:  profile,
		timing:   timing,
		logger:   logger.Named("navigate"),
	}
}

// Visit extracts the records of the current product page, once per cursor
// position, and asks the runner to dwell before advancing. Pages that are
// not product pages are passed over without extraction.
func (c *Controller) Visit(ctx context.Context, page *crawler.Page) (crawler.Action, error) {
	wait := crawler.Action{Kind: crawler.ActionExtractAndWait, Delay: c.timing.Dwell}
	if !c.profile.IsProduct(page.URL) {
		c.logger.Warn("not a product page, skipping extraction", zap.String("url", page.URL))
		return wait, nil
	}

	cursor, err := c.store.Cursor(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	extracted, err := c.store.ExtractedCursor(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	if extracted == cursor {
		c.logger.Debug("page already extracted", zap.String("url", page.URL), zap.Int("cursor", cursor))
		return wait, nil
	}

	records := c.resolver.Resolve(page)
	all, err := c.store.Records(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	all = append(all, records...)
	if err := c.store.CommitExtraction(ctx, all, cursor); err != nil {
		return crawler.Action{}, err
	}
	total := len(all)
	for _, rec := range records {
		metrics.ObserveRecord(rec.Bundle)
	}
	c.logger.Info("extracted product page",
		zap.String("url", page.URL),
		zap.Int("cursor", cursor),
		zap.Int("records", len(records)),
		zap.Int("total_records", total),
	)
	return wait, nil
}

// Advance moves the cursor to the next queue entry after the dwell delay.
// It re-reads the phase flag first so a stop issued during the dwell wins.
func (c *Controller) Advance(ctx context.Context) (crawler.Action, error) {
	active, err := c.store.NavigationInProgress(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	if !active {
		c.logger.Info("navigation canceled")
		metrics.ObservePhaseEvent("navigation", "canceled")
		return crawler.Stop(crawler.ReasonCanceled, crawler.SignalNone), nil
	}

	queue, err := c.store.NavigationQueue(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	cursor, err := c.store.Cursor(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	next := cursor + 1
	if next >= len(queue) {
		if err := c.store.SetNavigationInProgress(ctx, false); err != nil {
			return crawler.Action{}, err
		}
		c.logger.Info("navigation complete", zap.Int("visited", len(queue)))
		metrics.ObservePhaseEvent("navigation", "completed")
		return crawler.Stop(crawler.ReasonQueueExhausted, crawler.SignalNavigationComplete), nil
	}

	if err := c.store.SetCursor(ctx, next); err != nil {
		return crawler.Action{}, err
	}
	target := strings.TrimSpace(queue[next])
	if target == "" {
		if err := c.store.SetNavigationInProgress(ctx, false); err != nil {
			return crawler.Action{}, err
		}
		c.logger.Error("empty navigation queue entry", zap.Int("cursor", next))
		metrics.ObservePhaseEvent("navigation", "aborted")
		return crawler.Stop(crawler.ReasonInvalidQueueEntry, crawler.SignalNone),
			fmt.Errorf("cursor %d: %w", next, ErrQueueIntegrity)
	}
	c.logger.Debug("advancing", zap.Int("cursor", next), zap.String("url", target))
	return crawler.Action{Kind: crawler.ActionAdvance, URL: target}, nil
}
