// Package crawl implements the listing phase: one step per listing page that
// collects product links and moves to the next page.
package crawl

import (
	"context"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

// Controller runs the crawl phase.
type Controller struct {
	store   *store.ProcessStore
	profile crawler.SiteProfile
	timing  crawler.Timing
	logger  *zap.Logger
}

// New builds a crawl controller over st.
func New(st *store.ProcessStore, profile crawler.SiteProfile, timing crawler.Timing, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:   st,
		profile: profile,
		timing:  timing,
		logger:  logger.Named("crawl"),
	}
}

// Step scans the listing page once and decides whether to click through to
// the next page. Repeating Step on an already visited page collects nothing.
func (c *Controller) Step(ctx context.Context, page *crawler.Page) (crawler.Action, error) {
	if !c.profile.IsListing(page.URL) {
		c.logger.Warn("not a listing page, stopping crawl", zap.String("url", page.URL))
		if err := c.store.SetCrawlInProgress(ctx, false); err != nil {
			return crawler.Action{}, err
		}
		metrics.ObserveListingPage("not_listing")
		metrics.ObservePhaseEvent("crawl", "aborted")
		return crawler.Stop(crawler.ReasonNotListing, crawler.SignalNone), nil
	}

	visited, err := c.store.VisitedPages(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	if slices.Contains(visited, page.URL) {
		c.logger.Debug("listing page already scanned", zap.String("url", page.URL))
		metrics.ObserveListingPage("revisited")
	} else {
		if err := c.collect(ctx, page, visited); err != nil {
			return crawler.Action{}, err
		}
	}

	if c.hasNextPage(page) {
		return crawler.Action{
			Kind:     crawler.ActionClick,
			Selector: c.profile.NextPage,
			Delay:    c.timing.Click,
		}, nil
	}

	c.logger.Info("no next page, crawl complete", zap.String("url", page.URL))
	if err := c.store.SetCrawlInProgress(ctx, false); err != nil {
		return crawler.Action{}, err
	}
	metrics.ObservePhaseEvent("crawl", "completed")
	return crawler.Stop(crawler.ReasonNoNextPage, crawler.SignalCrawlComplete), nil
}

func (c *Controller) collect(ctx context.Context, page *crawler.Page, visited []string) error {
	found := DiscoverLinks(page, c.profile)
	links, err := c.store.CollectedLinks(ctx)
	if err != nil {
		return err
	}
	if err := c.store.RecordListingPage(ctx, append(links, found...), append(visited, page.URL)); err != nil {
		return err
	}
	c.logger.Info("scanned listing page",
		zap.String("url", page.URL),
		zap.Int("links", len(found)),
		zap.Int("total_links", len(links)+len(found)),
	)
	metrics.ObserveListingPage("scanned")
	metrics.ObserveLinksDiscovered(len(found))
	return nil
}

// DiscoverLinks returns one absolute product URL per listing card, in
// document order. Cards without a link are skipped.
func DiscoverLinks(page *crawler.Page, profile crawler.SiteProfile) []string {
	var out []string
	page.Doc.Find(profile.CardSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(profile.CardLink).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		out = append(out, page.Resolve(href))
	})
	return out
}

func (c *Controller) hasNextPage(page *crawler.Page) bool {
	next := page.Doc.Find(c.profile.NextPage).First()
	if next.Length() == 0 {
		return false
	}
	if v, ok := next.Attr("aria-disabled"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		return false
	}
	if _, ok := next.Attr("disabled"); ok {
		return false
	}
	return true
}
