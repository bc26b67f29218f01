// Command catalogcrawler runs a resumable product-catalog crawl session behind
// an HTTP control API.
//
// Usage:
//
//	catalogcrawler -config config.yaml
//
// Every setting can be overridden with a CATALOG_-prefixed environment
// variable, e.g. CATALOG_STORE_BACKEND=postgres.
package main
