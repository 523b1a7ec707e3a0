// Package config provides configuration structures and utilities for onionleak.
// It defines the options for reaching Tor, pacing and rotating a crawl,
// per-site request overrides, and where corpus, reports, and history live.
package config
