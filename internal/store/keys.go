package store

// Persisted keys, relative to the session namespace.
const (
	keyCrawlInProgress   = "crawl.in_progress"
	keyCollectedLinks    = "crawl.links"
	keyVisitedPages      = "crawl.visited"
	keyNavInProgress     = "navigation.in_progress"
	keyNavQueue          = "navigation.queue"
	keyNavCursor         = "navigation.cursor"
	keyNavExtracted      = "navigation.extracted_cursor"
	keyRecords           = "results.records"
	keyRunID             = "run.id"
	defaultSessionPrefix = "catalog"
)
