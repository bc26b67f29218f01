// Package session drives the browser through the crawl and navigation phases.
//
// The Runner models one page lifetime per loop iteration: it snapshots the
// loaded page, asks the lifecycle dispatcher for the single action that
// lifetime produces and performs it. Nothing but the process store carries
// over between iterations, so the runner can be restarted at any point and
// resumes from the persisted phase state.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/control"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/export"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

// ErrExportDisabled is returned by Export when no blob store is configured.
var ErrExportDisabled = errors.New("export is not configured")

// Dispatcher routes a freshly loaded page to the active phase.
type Dispatcher interface {
	OnLoad(ctx context.Context, page *crawler.Page) (crawler.Action, error)
}

// Advancer moves the navigation phase to its next queue entry.
type Advancer interface {
	Advance(ctx context.Context) (crawler.Action, error)
}

// Exporter writes the result set somewhere durable.
type Exporter interface {
	Export(ctx context.Context, runID string, records []crawler.ProductRecord) (export.Result, error)
}

// Options tunes the runner.
type Options struct {
	// StartURL is loaded by StartCrawl when the caller names no page.
	StartURL string
	// AutoNavigate starts the navigation phase when the crawl completes.
	AutoNavigate bool
	// AutoExport exports the result set when navigation completes.
	AutoExport bool
	// Topic receives the phase completion signals.
	Topic string
}

// Event is published for every completion signal.
type Event struct {
	Signal  crawler.Signal `json:"signal"`
	Session string         `json:"session"`
	crawler.RunInfo
	Export *export.Result `json:"export,omitempty"`
}

type requestKind int

const (
	requestStartCrawl requestKind = iota
	requestStartNavigation
)

type request struct {
	kind  requestKind
	url   string
	reply chan reply
}

type reply struct {
	runID string
	err   error
}

// outcome is what a command left in the browser.
type outcome int

const (
	// untouched: the command failed before replacing the loaded page.
	untouched outcome = iota
	idle
	loaded
)

// pending reports whether a page awaits its lifetime after the command,
// given whether one did before it.
func (o outcome) pending(before bool) bool {
	if o == untouched {
		return before
	}
	return o == loaded
}

func outcomeOf(newPage bool) outcome {
	if newPage {
		return loaded
	}
	return idle
}

// Runner owns the browser and serializes every browser-driving command
// between page lifetimes.
type Runner struct {
	browser    crawler.Browser
	store      *store.ProcessStore
	dispatcher Dispatcher
	nav        Advancer
	commands   *control.Commands
	exporter   Exporter
	publisher  crawler.Publisher
	clock      crawler.Clock
	opts       Options
	logger     *zap.Logger

	reqs    chan request
	running atomic.Bool
}

// Deps bundles the collaborators of a Runner. Exporter and Publisher are optional.
type Deps struct {
	Browser    crawler.Browser
	Store      *store.ProcessStore
	Dispatcher Dispatcher
	Navigator  Advancer
	Commands   *control.Commands
	Exporter   Exporter
	Publisher  crawler.Publisher
	Clock      crawler.Clock
	Logger     *zap.Logger
}

// NewRunner wires a runner.
func NewRunner(deps Deps, opts Options) (*Runner, error) {
	switch {
	case deps.Browser == nil:
		return nil, fmt.Errorf("browser is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("store is required")
	case deps.Dispatcher == nil || deps.Navigator == nil:
		return nil, fmt.Errorf("dispatcher and navigator are required")
	case deps.Commands == nil:
		return nil, fmt.Errorf("commands are required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		browser:    deps.Browser,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		nav:        deps.Navigator,
		commands:   deps.Commands,
		exporter:   deps.Exporter,
		publisher:  deps.Publisher,
		clock:      deps.Clock,
		opts:       opts,
		logger:     logger.Named("session"),
		reqs:       make(chan request),
	}, nil
}

// Running reports whether Run is executing.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run drives page lifetimes until ctx is canceled. Any phase left active by a
// previous process is resumed first.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("runner is already running")
	}
	defer r.running.Store(false)

	pending := r.resume(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if pending {
			select {
			case req := <-r.reqs:
				pending = r.handle(ctx, req).pending(pending)
			default:
				pending = r.lifetime(ctx)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case req := <-r.reqs:
			pending = r.handle(ctx, req).pending(pending)
		}
	}
}

// resume reloads the page an interrupted phase was working on. It reports
// whether a page is now waiting for its lifetime.
func (r *Runner) resume(ctx context.Context) bool {
	state, err := r.store.State(ctx)
	if err != nil {
		r.logger.Error("read phase state", zap.Error(err))
		return false
	}
	target := ""
	switch {
	case state.NavigationInProgress:
		queue, err := r.store.NavigationQueue(ctx)
		if err != nil {
			r.logger.Error("read navigation queue", zap.Error(err))
			return false
		}
		cursor, err := r.store.Cursor(ctx)
		if err != nil {
			r.logger.Error("read navigation cursor", zap.Error(err))
			return false
		}
		if cursor < len(queue) {
			target = queue[cursor]
		}
	case state.CrawlInProgress:
		visited, err := r.store.VisitedPages(ctx)
		if err != nil {
			r.logger.Error("read visited pages", zap.Error(err))
			return false
		}
		target = r.opts.StartURL
		if len(visited) > 0 {
			target = visited[len(visited)-1]
		}
	default:
		return false
	}
	if strings.TrimSpace(target) == "" {
		r.logger.Warn("active phase has no page to resume from", zap.Any("state", state))
		return false
	}
	r.logger.Info("resuming interrupted phase", zap.String("url", target), zap.Any("state", state))
	return r.load(ctx, target)
}

// lifetime runs one page lifetime on the currently loaded page.
func (r *Runner) lifetime(ctx context.Context) bool {
	page, err := r.snapshot(ctx)
	if err != nil {
		r.logger.Error("snapshot page", zap.Error(err))
		return false
	}
	action, err := r.dispatcher.OnLoad(ctx, page)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("page lifetime failed", zap.String("url", page.URL), zap.Error(err))
		}
		return false
	}
	return r.perform(ctx, action)
}

func (r *Runner) snapshot(ctx context.Context) (*crawler.Page, error) {
	rawURL, html, err := r.browser.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return crawler.NewPage(rawURL, html)
}

// load navigates on behalf of the active phase. A failed load ends it.
func (r *Runner) load(ctx context.Context, rawURL string) bool {
	if err := r.browser.Navigate(ctx, rawURL); err != nil {
		r.abandon(ctx, err, zap.String("url", rawURL))
		return false
	}
	return true
}

// abandon clears the phase flags after a browser step of the active phase
// failed, since no page is left to carry the phase forward. Flags survive
// when ctx is done so the next process resumes.
func (r *Runner) abandon(ctx context.Context, cause error, fields ...zap.Field) {
	fields = append(fields, zap.String("reason", crawler.ReasonLoadFailed), zap.Error(cause))
	if ctx.Err() != nil {
		r.logger.Warn("browser step interrupted", fields...)
		return
	}
	state, err := r.store.State(ctx)
	if err != nil {
		r.logger.Error("read phase state", zap.Error(err))
		return
	}
	if state.CrawlInProgress {
		if err := r.store.SetCrawlInProgress(ctx, false); err != nil {
			r.logger.Error("clear crawl flag", zap.Error(err))
			return
		}
		metrics.ObservePhaseEvent("crawl", "aborted")
	}
	if state.NavigationInProgress {
		if err := r.store.SetNavigationInProgress(ctx, false); err != nil {
			r.logger.Error("clear navigation flag", zap.Error(err))
			return
		}
		metrics.ObservePhaseEvent("navigation", "aborted")
	}
	r.logger.Error("phase stopped", fields...)
}

// perform executes action and reports whether it loaded a new page.
func (r *Runner) perform(ctx context.Context, action crawler.Action) bool {
	switch action.Kind {
	case crawler.ActionClick:
		if err := r.clock.Sleep(ctx, action.Delay); err != nil {
			return false
		}
		if err := r.browser.Click(ctx, action.Selector); err != nil {
			r.abandon(ctx, err, zap.String("selector", action.Selector))
			return false
		}
		return true
	case crawler.ActionExtractAndWait:
		if err := r.clock.Sleep(ctx, action.Delay); err != nil {
			return false
		}
		next, err := r.nav.Advance(ctx)
		if err != nil {
			r.logger.Error("advance navigation", zap.Error(err))
		}
		return r.perform(ctx, next)
	case crawler.ActionAdvance:
		return r.load(ctx, action.URL)
	case crawler.ActionStop:
		r.logger.Info("phase stopped",
			zap.String("reason", action.Reason),
			zap.String("signal", string(action.Signal)),
		)
		return r.signal(ctx, action.Signal)
	default:
		return false
	}
}

func (r *Runner) signal(ctx context.Context, signal crawler.Signal) bool {
	switch signal {
	case crawler.SignalCrawlComplete:
		r.publish(ctx, signal, nil)
		if !r.opts.AutoNavigate {
			return false
		}
		action, err := r.commands.StartNavigation(ctx)
		if err != nil {
			r.logger.Warn("auto-navigation not started", zap.Error(err))
			return false
		}
		return r.perform(ctx, action)
	case crawler.SignalNavigationComplete:
		var exported *export.Result
		if r.opts.AutoExport && r.exporter != nil {
			res, err := r.Export(ctx)
			if err != nil {
				r.logger.Error("auto-export", zap.Error(err))
			} else {
				exported = &res
			}
		}
		r.publish(ctx, signal, exported)
	}
	return false
}

func (r *Runner) publish(ctx context.Context, signal crawler.Signal, exported *export.Result) {
	if r.publisher == nil {
		return
	}
	info, err := r.runInfo(ctx)
	if err != nil {
		r.logger.Error("collect run info", zap.Error(err))
		return
	}
	event := Event{Signal: signal, Session: r.store.Session(), RunInfo: info, Export: exported}
	id, err := r.publisher.Publish(ctx, r.opts.Topic, event)
	if err != nil {
		r.logger.Error("publish signal", zap.String("signal", string(signal)), zap.Error(err))
		return
	}
	r.logger.Info("published signal", zap.String("signal", string(signal)), zap.String("message_id", id))
}

func (r *Runner) runInfo(ctx context.Context) (crawler.RunInfo, error) {
	status, err := r.store.Status(ctx)
	if err != nil {
		return crawler.RunInfo{}, err
	}
	return crawler.RunInfo{
		RunID:      status.RunID,
		Links:      status.CollectedLinks,
		Pages:      status.VisitedPages,
		Records:    status.Records,
		FinishedAt: r.clock.Now(),
	}, nil
}

// handle serves one browser-driving command. A command rejected before it
// replaced the loaded page leaves that page pending.
func (r *Runner) handle(ctx context.Context, req request) outcome {
	switch req.kind {
	case requestStartCrawl:
		target := strings.TrimSpace(req.url)
		if target == "" {
			target = r.opts.StartURL
		}
		onError := untouched
		if target != "" {
			if err := r.browser.Navigate(ctx, target); err != nil {
				req.reply <- reply{err: fmt.Errorf("load %s: %w", target, err)}
				return untouched
			}
			onError = loaded
		}
		page, err := r.snapshot(ctx)
		if err != nil {
			req.reply <- reply{err: err}
			return onError
		}
		action, runID, err := r.commands.StartCrawl(ctx, page)
		req.reply <- reply{runID: runID, err: err}
		if err != nil {
			return onError
		}
		return outcomeOf(r.perform(ctx, action))
	case requestStartNavigation:
		action, err := r.commands.StartNavigation(ctx)
		req.reply <- reply{err: err}
		if err != nil {
			return untouched
		}
		return outcomeOf(r.perform(ctx, action))
	default:
		req.reply <- reply{err: fmt.Errorf("unknown command %d", req.kind)}
		return untouched
	}
}

func (r *Runner) submit(ctx context.Context, req request) reply {
	req.reply = make(chan reply, 1)
	select {
	case r.reqs <- req:
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
	select {
	case rep := <-req.reply:
		return rep
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
}

// StartCrawl loads rawURL (or the configured start page) and starts a new
// crawl run on it. It returns the run id.
func (r *Runner) StartCrawl(ctx context.Context, rawURL string) (string, error) {
	rep := r.submit(ctx, request{kind: requestStartCrawl, url: rawURL})
	return rep.runID, rep.err
}

// StartNavigation starts visiting the collected links.
func (r *Runner) StartNavigation(ctx context.Context) error {
	return r.submit(ctx, request{kind: requestStartNavigation}).err
}

// Stop clears both phase flags.
func (r *Runner) Stop(ctx context.Context) error {
	return r.commands.Stop(ctx)
}

// Status summarizes the session.
func (r *Runner) Status(ctx context.Context) (store.Status, error) {
	return r.commands.Status(ctx)
}

// Links returns the collected product links.
func (r *Runner) Links(ctx context.Context) ([]string, error) {
	return r.commands.Links(ctx)
}

// Records returns the accumulated result set.
func (r *Runner) Records(ctx context.Context) ([]crawler.ProductRecord, error) {
	return r.commands.Records(ctx)
}

// Export writes the current result set through the configured exporter.
func (r *Runner) Export(ctx context.Context) (export.Result, error) {
	if r.exporter == nil {
		return export.Result{}, ErrExportDisabled
	}
	runID, err := r.store.RunID(ctx)
	if err != nil {
		return export.Result{}, err
	}
	records, err := r.store.Records(ctx)
	if err != nil {
		return export.Result{}, err
	}
	return r.exporter.Export(ctx, runID, records)
}
