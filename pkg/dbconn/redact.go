package dbconn

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

const maskedValue = "****"

var (
	keywordSecretRe = regexp.MustCompile(`(?i)(password|pwd|passwd)(\s*=\s*)([^;&\s]*)`)

	// go-sql-driver style: user:secret@tcp(host:port)/db
	userinfoSecretRe = regexp.MustCompile(`^([^:@/]+):([^@]*)@`)
)

// MaskDSN returns a connection string with every secret portion replaced
// by a fixed mask. It handles URL-form DSNs (user:secret@host), ADO-style
// keyword strings (Password=secret;), and libpq keyword strings
// (password=secret). The masked form is the only form that may appear in
// logs, events, or error messages.
func MaskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}

	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), maskedValue)
			// url.UserPassword escapes; the mask contains nothing to
			// escape so the output stays readable.
			return strings.ReplaceAll(u.String(), url.QueryEscape(maskedValue), maskedValue)
		}
	}

	if keywordSecretRe.MatchString(dsn) {
		return keywordSecretRe.ReplaceAllString(dsn, "${1}${2}"+maskedValue)
	}
	return userinfoSecretRe.ReplaceAllString(dsn, "${1}:"+maskedValue+"@")
}

// Fingerprint returns a short, stable, non-reversible identifier for a
// connection string, suitable for persisted artifacts. Two installs
// against the same endpoint produce the same fingerprint.
func Fingerprint(dsn string) string {
	sum := sha256.Sum256([]byte(dsn))
	return "sha256:" + hex.EncodeToString(sum[:])[:16]
}
