// Package log provides secure logging on top of the standard slog package.
//
// The SecureHandler masks sensitive information before it reaches any
// output:
//   - HTTP headers and credentials (Authorization, Cookie, control passwords)
//   - Secret values detected by pattern matching (bearer tokens, JWTs, keys)
//   - Registered reference values, the personal data a match run searches
//     for, wherever they appear inside a string attribute or message
//
// Even in verbose mode, sensitive values are masked so logs can be shared
// without leaking the data the operator is trying to protect.
//
// # Usage
//
//	logger, closer, err := log.New(log.Options{
//	    Verbose: true,
//	    File:    "/var/log/onionleak/onionleak.log",
//	})
//	defer closer.Close()
//
//	logger.Info("request sent",
//	    "cookie", "session=abc123", // masked
//	    "url", "http://example.onion",
//	)
//
// The returned *slog.Logger can be handed to tornago and to every
// onionleak component that accepts one.
package log
