package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// ProcessStore exposes the crawl and navigation state of one site session.
type ProcessStore struct {
	kv      KV
	session string
	logger  *zap.Logger
}

// New wraps kv, namespacing every key under session.
func New(kv KV, session string, logger *zap.Logger) *ProcessStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	session = strings.TrimSpace(session)
	if session == "" {
		session = defaultSessionPrefix
	}
	return &ProcessStore{kv: kv, session: session, logger: logger}
}

// Session returns the namespace of this store.
func (s *ProcessStore) Session() string {
	return s.session
}

func (s *ProcessStore) key(name string) string {
	return s.session + "." + name
}

// load decodes key into dst. Missing or corrupt values leave dst untouched
// and report false; only backend failures are returned as errors.
func (s *ProcessStore) load(ctx context.Context, name string, dst any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		return false, fmt.Errorf("get %s: %w", name, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("discarding unreadable stored value",
			zap.String("key", s.key(name)),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

func (s *ProcessStore) save(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := s.kv.Set(ctx, s.key(name), raw); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// saveAll writes every named value in one batch.
func (s *ProcessStore) saveAll(ctx context.Context, values map[string]any) error {
	batch := make(map[string][]byte, len(values))
	for name, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		batch[s.key(name)] = raw
	}
	if err := s.kv.SetMany(ctx, batch); err != nil {
		return fmt.Errorf("set batch: %w", err)
	}
	return nil
}

func (s *ProcessStore) loadBool(ctx context.Context, name string) (bool, error) {
	var v bool
	if ok, err := s.load(ctx, name, &v); err != nil || !ok {
		return false, err
	}
	return v, nil
}

func (s *ProcessStore) loadStrings(ctx context.Context, name string) ([]string, error) {
	var v []string
	if ok, err := s.load(ctx, name, &v); err != nil || !ok {
		return []string{}, err
	}
	if v == nil {
		v = []string{}
	}
	return v, nil
}

func (s *ProcessStore) loadInt(ctx context.Context, name string, def int) (int, error) {
	var v int
	if ok, err := s.load(ctx, name, &v); err != nil || !ok {
		return def, err
	}
	return v, nil
}

// State reads both phase flags.
func (s *ProcessStore) State(ctx context.Context) (crawler.ProcessState, error) {
	crawl, err := s.CrawlInProgress(ctx)
	if err != nil {
		return crawler.ProcessState{}, err
	}
	nav, err := s.NavigationInProgress(ctx)
	if err != nil {
		return crawler.ProcessState{}, err
	}
	return crawler.ProcessState{CrawlInProgress: crawl, NavigationInProgress: nav}, nil
}

// CrawlInProgress reports the crawl phase flag.
func (s *ProcessStore) CrawlInProgress(ctx context.Context) (bool, error) {
	return s.loadBool(ctx, keyCrawlInProgress)
}

// SetCrawlInProgress sets the crawl phase flag.
func (s *ProcessStore) SetCrawlInProgress(ctx context.Context, v bool) error {
	return s.save(ctx, keyCrawlInProgress, v)
}

// NavigationInProgress reports the navigation phase flag.
func (s *ProcessStore) NavigationInProgress(ctx context.Context) (bool, error) {
	return s.loadBool(ctx, keyNavInProgress)
}

// SetNavigationInProgress sets the navigation phase flag.
func (s *ProcessStore) SetNavigationInProgress(ctx context.Context, v bool) error {
	return s.save(ctx, keyNavInProgress, v)
}

// CollectedLinks returns the product links gathered by the crawl phase.
func (s *ProcessStore) CollectedLinks(ctx context.Context) ([]string, error) {
	return s.loadStrings(ctx, keyCollectedLinks)
}

// SetCollectedLinks replaces the collected product links.
func (s *ProcessStore) SetCollectedLinks(ctx context.Context, links []string) error {
	return s.save(ctx, keyCollectedLinks, nonNil(links))
}

// VisitedPages returns the listing pages already scanned.
func (s *ProcessStore) VisitedPages(ctx context.Context) ([]string, error) {
	return s.loadStrings(ctx, keyVisitedPages)
}

// SetVisitedPages replaces the visited listing pages.
func (s *ProcessStore) SetVisitedPages(ctx context.Context, pages []string) error {
	return s.save(ctx, keyVisitedPages, nonNil(pages))
}

// RecordListingPage stores the collected links together with the visited
// pages that produced them, so a page is never marked visited without its
// links nor scanned twice.
func (s *ProcessStore) RecordListingPage(ctx context.Context, links, visited []string) error {
	return s.saveAll(ctx, map[string]any{
		keyCollectedLinks: nonNil(links),
		keyVisitedPages:   nonNil(visited),
	})
}

// NavigationQueue returns the work queue of the navigation phase.
func (s *ProcessStore) NavigationQueue(ctx context.Context) ([]string, error) {
	return s.loadStrings(ctx, keyNavQueue)
}

// SetNavigationQueue replaces the navigation work queue.
func (s *ProcessStore) SetNavigationQueue(ctx context.Context, urls []string) error {
	return s.save(ctx, keyNavQueue, nonNil(urls))
}

// Cursor returns the navigation cursor (0 when unset or unreadable).
func (s *ProcessStore) Cursor(ctx context.Context) (int, error) {
	v, err := s.loadInt(ctx, keyNavCursor, 0)
	if v < 0 {
		v = 0
	}
	return v, err
}

// SetCursor persists the navigation cursor.
func (s *ProcessStore) SetCursor(ctx context.Context, cursor int) error {
	return s.save(ctx, keyNavCursor, cursor)
}

// ExtractedCursor returns the cursor whose page has already been extracted,
// or -1 when none has.
func (s *ProcessStore) ExtractedCursor(ctx context.Context) (int, error) {
	return s.loadInt(ctx, keyNavExtracted, -1)
}

// SetExtractedCursor records the cursor whose page has been extracted.
func (s *ProcessStore) SetExtractedCursor(ctx context.Context, cursor int) error {
	return s.save(ctx, keyNavExtracted, cursor)
}

// Records returns the accumulated result set.
func (s *ProcessStore) Records(ctx context.Context) ([]crawler.ProductRecord, error) {
	var v []crawler.ProductRecord
	if ok, err := s.load(ctx, keyRecords, &v); err != nil || !ok {
		return []crawler.ProductRecord{}, err
	}
	if v == nil {
		v = []crawler.ProductRecord{}
	}
	return v, nil
}

// SetRecords replaces the result set.
func (s *ProcessStore) SetRecords(ctx context.Context, records []crawler.ProductRecord) error {
	if records == nil {
		records = []crawler.ProductRecord{}
	}
	return s.save(ctx, keyRecords, records)
}

// AppendRecords appends records to the result set and returns its new length.
func (s *ProcessStore) AppendRecords(ctx context.Context, records ...crawler.ProductRecord) (int, error) {
	all, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}
	all = append(all, records...)
	if err := s.SetRecords(ctx, all); err != nil {
		return 0, err
	}
	return len(all), nil
}

// CommitExtraction stores the result set together with the cursor whose
// page produced its latest records.
func (s *ProcessStore) CommitExtraction(ctx context.Context, records []crawler.ProductRecord, cursor int) error {
	if records == nil {
		records = []crawler.ProductRecord{}
	}
	return s.saveAll(ctx, map[string]any{
		keyRecords:      records,
		keyNavExtracted: cursor,
	})
}

// RunID returns the identifier of the current crawl run ("" when unset).
func (s *ProcessStore) RunID(ctx context.Context) (string, error) {
	var v string
	if _, err := s.load(ctx, keyRunID, &v); err != nil {
		return "", err
	}
	return v, nil
}

// SetRunID records the identifier of the current crawl run.
func (s *ProcessStore) SetRunID(ctx context.Context, id string) error {
	return s.save(ctx, keyRunID, id)
}

// Status summarizes the session for the control surface.
type Status struct {
	Session              string `json:"session"`
	RunID                string `json:"run_id"`
	CrawlInProgress      bool   `json:"crawl_in_progress"`
	NavigationInProgress bool   `json:"navigation_in_progress"`
	VisitedPages         int    `json:"visited_pages"`
	CollectedLinks       int    `json:"collected_links"`
	QueueLength          int    `json:"queue_length"`
	Cursor               int    `json:"cursor"`
	Records              int    `json:"records"`
}

// Status reads a summary of every persisted entity.
func (s *ProcessStore) Status(ctx context.Context) (Status, error) {
	state, err := s.State(ctx)
	if err != nil {
		return Status{}, err
	}
	runID, err := s.RunID(ctx)
	if err != nil {
		return Status{}, err
	}
	visited, err := s.VisitedPages(ctx)
	if err != nil {
		return Status{}, err
	}
	links, err := s.CollectedLinks(ctx)
	if err != nil {
		return Status{}, err
	}
	queue, err := s.NavigationQueue(ctx)
	if err != nil {
		return Status{}, err
	}
	cursor, err := s.Cursor(ctx)
	if err != nil {
		return Status{}, err
	}
	records, err := s.Records(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Session:              s.session,
		RunID:                runID,
		CrawlInProgress:      state.CrawlInProgress,
		NavigationInProgress: state.NavigationInProgress,
		VisitedPages:         len(visited),
		CollectedLinks:       len(links),
		QueueLength:          len(queue),
		Cursor:               cursor,
		Records:              len(records),
	}, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
