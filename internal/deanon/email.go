package deanon

import (
	"regexp"
	"strings"
)

// KindEmail is the Identifier kind of e-mail addresses.
const KindEmail = "email"

// EmailDetector finds e-mail addresses. E-mail addresses often contain
// real names and are the most common value in leaked user data.
type EmailDetector struct {
	emailRegex *regexp.Regexp
}

// NewEmailDetector creates a new EmailDetector.
func NewEmailDetector() *EmailDetector {
	return &EmailDetector{
		// Standard email regex that catches most valid addresses
		emailRegex: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	}
}

// Name implements Detector.
func (d *EmailDetector) Name() string {
	return "email"
}

// Detect implements Detector. Addresses are lowercased, since matching
// ignores case anyway.
func (d *EmailDetector) Detect(line string) []Identifier {
	matches := d.emailRegex.FindAllString(line, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]Identifier, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, Identifier{Kind: KindEmail, Value: strings.ToLower(m)})
	}
	return ids
}

// FreeProvider reports whether an address belongs to a large free mail
// service. Such addresses identify a person less directly than an address
// on a personal or corporate domain.
func FreeProvider(email string) bool {
	_, domain, ok := strings.Cut(strings.ToLower(email), "@")
	if !ok {
		return false
	}
	switch domain {
	case "gmail.com", "yahoo.com", "hotmail.com", "outlook.com",
		"protonmail.com", "proton.me", "tutanota.com", "tutamail.com",
		"aol.com", "icloud.com", "mail.com", "yandex.com":
		return true
	}
	return false
}
