// Package matcher searches a crawled corpus for operator-supplied reference
// values (email addresses, phone numbers, usernames) and builds a
// MatchReport.
//
// A line matches a reference when the lowercased reference is a substring
// of the lowercased line. Lines are trimmed and empty lines are ignored.
// Every reference gets a report entry, matched or not.
//
// Design decision: All references are compiled into one Aho-Corasick
// automaton over their lowercased forms, so each corpus line is scanned
// once regardless of how many references there are. The result is the same
// as testing every reference against every line.
package matcher
