// Package privacy scrubs identifying details from messages before they leave the machine.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
)

// Pre-compiled patterns, applied in order by ScrubMessage.
var (
	urlPattern = regexp.MustCompile(`\b(?:https?|mysql|file)://\S+`)

	// absolute paths leak user names and observing project layout
	homePathPattern = regexp.MustCompile(`(/home|/Users)/[^/\s]+`)

	// go-sql-driver DSNs carry credentials before the @
	dsnPattern = regexp.MustCompile(`[^\s:/@]+:[^\s@]+@tcp\(`)

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// ScrubMessage removes URLs, home directories, database credentials and
// e-mail addresses from message.
func ScrubMessage(message string) string {
	scrubbed := urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	scrubbed = homePathPattern.ReplaceAllString(scrubbed, "$1/[USER]")
	scrubbed = dsnPattern.ReplaceAllString(scrubbed, "[CREDENTIALS]@tcp(")
	return emailPattern.ReplaceAllString(scrubbed, "[EMAIL]")
}

// AnonymizeURL keeps the scheme of rawURL and replaces everything else with
// a short stable hash, so repeated reports of one endpoint still group together.
func AnonymizeURL(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return fmt.Sprintf("url-%x", hash[:6])
	}
	return fmt.Sprintf("%s://url-%x", parsed.Scheme, hash[:6])
}
