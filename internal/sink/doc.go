// Package sink persists crawled page text to the corpus file that the
// matcher later scans.
package sink
