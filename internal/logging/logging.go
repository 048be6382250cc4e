// Package logging provides the plain, prefix-based logging style used
// throughout this repository, matching stlalpha-vision3's
// INFO:/WARN:/ERROR:/DEBUG: convention over the standard log package
// rather than a structured logging library.
package logging

import (
	"log"
	"strings"
)

// DebugEnabled gates Debug output; set from the -debug flag or a
// DEBUG=1 environment variable at startup.
var DebugEnabled bool

func Info(format string, args ...any)  { log.Printf("INFO: "+format, args...) }
func Warn(format string, args ...any)  { log.Printf("WARN: "+format, args...) }
func Error(format string, args ...any) { log.Printf("ERROR: "+format, args...) }

func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// MaskHost masks the final octet of a dotted-quad or the final segment
// of a hostname before it is logged (spec §4.A/§7), so raw logs do not
// retain a full peer address.
func MaskHost(host string) string {
	idx := strings.LastIndexAny(host, ".:")
	if idx < 0 {
		return host
	}
	return host[:idx+1] + "xxx"
}
