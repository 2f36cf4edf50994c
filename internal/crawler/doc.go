// Package crawler implements the single-page harvesting pipeline: the pattern
// table, the locator resolver, the reference extractor and the retriever that
// persists one resource per locator.
package crawler
