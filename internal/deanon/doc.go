// Package deanon finds identifying values in a text corpus.
//
// # Purpose
//
// A match run only finds values the operator already knows. This package
// helps build that reference list: it scans the corpus for values that
// identify a person or link identities together, such as e-mail
// addresses, cryptocurrency addresses, and social media profiles.
//
// # Design Philosophy
//
// Each kind of value is found by a separate Detector. This design was
// chosen because:
//  1. Each kind has its own patterns and normalization rules
//  2. Detectors can be tested in isolation
//  3. New kinds can be added without touching the Scanner
//
// # Usage
//
//	scanner := deanon.NewScanner()
//	ids, err := scanner.ScanFile(ctx, "text.txt")
//	for _, id := range ids {
//		fmt.Println(id.Kind, id.Value, id.Count)
//	}
package deanon
