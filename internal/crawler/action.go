package crawler

import "time"

// ActionKind tells the session runner what to do at the end of a page lifetime.
type ActionKind string

// Action kinds.
const (
	// ActionNone leaves the page alone; no phase is active.
	ActionNone ActionKind = "none"
	// ActionClick waits Delay and clicks Selector, which loads the next listing page.
	ActionClick ActionKind = "click"
	// ActionExtractAndWait dwells for Delay, then asks the navigation controller to advance.
	ActionExtractAndWait ActionKind = "extract_and_wait"
	// ActionAdvance navigates to URL.
	ActionAdvance ActionKind = "advance"
	// ActionStop ends the active phase.
	ActionStop ActionKind = "stop"
)

// Signal is an outward notification carried by a Stop action.
type Signal string

// Signals emitted to the control surface.
const (
	SignalNone               Signal = ""
	SignalCrawlComplete      Signal = "crawl_complete"
	SignalNavigationComplete Signal = "navigation_complete"
)

// Stop reasons.
const (
	ReasonNotListing        = "not_listing"
	ReasonNoNextPage        = "no_next_page"
	ReasonCanceled          = "canceled"
	ReasonQueueExhausted    = "queue_exhausted"
	ReasonInvalidQueueEntry = "invalid_queue_entry"
	ReasonLoadFailed        = "load_failed"
)

// Action is the single transition a page lifetime hands back.
type Action struct {
	Kind     ActionKind
	Selector string
	URL      string
	Delay    time.Duration
	Signal   Signal
	Reason   string
}

// None is the idle action.
func None() Action { return Action{Kind: ActionNone} }

// Stop builds a stop action.
func Stop(reason string, signal Signal) Action {
	return Action{Kind: ActionStop, Reason: reason, Signal: signal}
}
