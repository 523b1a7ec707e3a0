package deanon

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// socialPattern matches profile URLs of one platform. The first
// submatch is the handle.
type socialPattern struct {
	platform string
	regex    *regexp.Regexp
}

// SocialDetector finds social media profile links. A profile is a strong
// identity vector: it often carries a real name or photo.
type SocialDetector struct {
	patterns []socialPattern
}

// NewSocialDetector creates a new SocialDetector.
func NewSocialDetector() *SocialDetector {
	return &SocialDetector{
		patterns: []socialPattern{
			{"twitter", regexp.MustCompile(`(?i)https?://(?:www\.)?(?:twitter\.com|x\.com)/([A-Za-z0-9_]{1,15})\b`)},
			{"facebook", regexp.MustCompile(`(?i)https?://(?:www\.)?(?:facebook|fb)\.com/([A-Za-z0-9.]+)`)},
			{"instagram", regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/([A-Za-z0-9_.]+)`)},
			{"linkedin", regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/in/([A-Za-z0-9_-]+)`)},
			{"github", regexp.MustCompile(`(?i)https?://(?:www\.)?github\.com/([A-Za-z0-9_-]+)`)},
			{"telegram", regexp.MustCompile(`(?i)https?://(?:www\.)?(?:t|telegram)\.me/([A-Za-z0-9_]+)`)},
			{"reddit", regexp.MustCompile(`(?i)https?://(?:www\.)?reddit\.com/u(?:ser)?/([A-Za-z0-9_-]+)`)},
		},
	}
}

// Name implements Detector.
func (d *SocialDetector) Name() string {
	return "social"
}

// Detect implements Detector. The value is the lowercased handle, which
// is what tends to reappear in other leaks.
func (d *SocialDetector) Detect(line string) []Identifier {
	var ids []Identifier
	for _, p := range d.patterns {
		for _, m := range p.regex.FindAllStringSubmatch(line, -1) {
			ids = append(ids, Identifier{Kind: p.platform, Value: strings.ToLower(m[1])})
		}
	}
	return ids
}

// KindLabel returns the display name of an identifier kind, e.g.
// "Bitcoin Cash" for "bitcoin_cash".
func KindLabel(kind string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(kind, "_", " "))
}
