// SPDX-License-Identifier: Apache-2.0

// Package redact implements the single redactor every log site that could
// receive a connection descriptor must route through.
package redact

import "regexp"

// secretKey matches a key=value or key: value pair whose key is password or
// pwd, case-insensitive, inside a connection descriptor (DSN or key=value
// connection string).
var secretKey = regexp.MustCompile(`(?i)(password|pwd)\s*[:=]\s*([^;&\s]*)`)

// ConnectionDescriptor replaces any password/pwd-keyed value in s with ***.
// s is treated as opaque text, so this is safe to call on DSNs, URLs, or
// error strings that may have echoed one.
func ConnectionDescriptor(s string) string {
	return secretKey.ReplaceAllString(s, "${1}=***")
}
