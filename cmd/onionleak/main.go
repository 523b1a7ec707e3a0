// Package main provides the entry point for the onionleak CLI.
//
// onionleak fetches pages through Tor into a text corpus and searches that
// corpus for a list of reference values, such as e-mail addresses or phone
// numbers, to find out whether they leaked.
//
// Usage:
//
//	onionleak crawl --list urls.txt
//	onionleak match --references user_data.txt
//
// See --help for all available options.
package main

func main() {
	Execute()
}
