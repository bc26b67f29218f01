// Package crawler defines the domain types shared by the catalog crawl
// subsystems: the persisted process state, product records, loaded pages,
// the actions a page lifetime hands back to the session runner, and the site
// profile describing the catalog's markup conventions.
package crawler
