// Package control implements the external commands that start, stop and
// inspect the two crawl phases.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/navigate"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

// ErrEmptyQueue is returned by StartNavigation when no links were collected.
var ErrEmptyQueue = errors.New("no collected links to navigate")

// Stepper runs the first crawl step on the current page.
type Stepper interface {
	Step(ctx context.Context, page *crawler.Page) (crawler.Action, error)
}

// Commands mutates the process store on behalf of the control surface.
type Commands struct {
	store  *store.ProcessStore
	crawl  Stepper
	ids    crawler.IDGenerator
	logger *zap.Logger
}

// New builds the command set.
func New(st *store.ProcessStore, crawl Stepper, ids crawler.IDGenerator, logger *zap.Logger) *Commands {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commands{store: st, crawl: crawl, ids: ids, logger: logger.Named("control")}
}

// StartCrawl resets every crawl artifact, opens a new run and runs the first
// crawl step on page. Any navigation in progress is abandoned.
func (c *Commands) StartCrawl(ctx context.Context, page *crawler.Page) (crawler.Action, string, error) {
	runID, err := c.ids.NewID()
	if err != nil {
		return crawler.Action{}, "", fmt.Errorf("new run id: %w", err)
	}
	steps := []func() error{
		func() error { return c.store.SetNavigationInProgress(ctx, false) },
		func() error { return c.store.SetCollectedLinks(ctx, nil) },
		func() error { return c.store.SetVisitedPages(ctx, nil) },
		func() error { return c.store.SetRecords(ctx, nil) },
		func() error { return c.store.SetRunID(ctx, runID) },
		func() error { return c.store.SetCrawlInProgress(ctx, true) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return crawler.Action{}, "", fmt.Errorf("start crawl: %w", err)
		}
	}
	c.logger.Info("crawl started", zap.String("run_id", runID), zap.String("url", page.URL))
	metrics.ObservePhaseEvent("crawl", "started")

	action, err := c.crawl.Step(ctx, page)
	if err != nil {
		return crawler.Action{}, runID, err
	}
	return action, runID, nil
}

// StartNavigation snapshots the collected links into the navigation queue
// and returns the action that loads its first entry.
func (c *Commands) StartNavigation(ctx context.Context) (crawler.Action, error) {
	links, err := c.store.CollectedLinks(ctx)
	if err != nil {
		return crawler.Action{}, err
	}
	if len(links) == 0 {
		return crawler.Action{}, ErrEmptyQueue
	}
	steps := []func() error{
		func() error { return c.store.SetCrawlInProgress(ctx, false) },
		func() error { return c.store.SetRecords(ctx, nil) },
		func() error { return c.store.SetNavigationQueue(ctx, links) },
		func() error { return c.store.SetCursor(ctx, 0) },
		func() error { return c.store.SetExtractedCursor(ctx, -1) },
		func() error { return c.store.SetNavigationInProgress(ctx, true) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return crawler.Action{}, fmt.Errorf("start navigation: %w", err)
		}
	}

	first := strings.TrimSpace(links[0])
	if first == "" {
		if err := c.store.SetNavigationInProgress(ctx, false); err != nil {
			return crawler.Action{}, err
		}
		return crawler.Stop(crawler.ReasonInvalidQueueEntry, crawler.SignalNone),
			fmt.Errorf("cursor 0: %w", navigate.ErrQueueIntegrity)
	}
	c.logger.Info("navigation started", zap.Int("queue", len(links)))
	metrics.ObservePhaseEvent("navigation", "started")
	return crawler.Action{Kind: crawler.ActionAdvance, URL: first}, nil
}

// Stop clears both phase flags. The active controller observes the change
// at its next poll and ends the phase.
func (c *Commands) Stop(ctx context.Context) error {
	if err := c.store.SetCrawlInProgress(ctx, false); err != nil {
		return err
	}
	if err := c.store.SetNavigationInProgress(ctx, false); err != nil {
		return err
	}
	c.logger.Info("stop requested")
	metrics.ObservePhaseEvent("session", "stopped")
	return nil
}

// Links returns the collected product links.
func (c *Commands) Links(ctx context.Context) ([]string, error) {
	return c.store.CollectedLinks(ctx)
}

// Records returns the accumulated result set.
func (c *Commands) Records(ctx context.Context) ([]crawler.ProductRecord, error) {
	return c.store.Records(ctx)
}

// Status summarizes the session.
func (c *Commands) Status(ctx context.Context) (store.Status, error) {
	return c.store.Status(ctx)
}
