package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// StepFingerprint derives the configuration fingerprint for one step.
// Every field that should invalidate a previously verified step
// participates: source, destination, format, cap, schedule, and the step
// number itself. Changing any of them yields a different fingerprint and
// forces the step to re-run.
func StepFingerprint(p Policy, step int) string {
	parts := []string{
		p.Source,
		p.Destination,
		string(p.Format),
		strconv.FormatInt(p.CapBytes, 10),
		p.Schedule,
		strconv.Itoa(step),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}
