package utils

import "regexp"

var (
	dsnPasswordRegex     = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
	keywordPasswordRegex = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)
)

// MaskDSN hides the password of a URL or keyword/value connection string.
func MaskDSN(dsn string) string {
	dsn = dsnPasswordRegex.ReplaceAllString(dsn, "${1}***${3}")
	return keywordPasswordRegex.ReplaceAllString(dsn, "${1}***")
}
