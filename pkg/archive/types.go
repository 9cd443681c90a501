package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Format identifies the archive container format.
type Format string

const (
	// FormatZip produces .zip archives.
	FormatZip Format = "zip"

	// FormatTarGz produces .tar.gz archives.
	FormatTarGz Format = "tar.gz"
)

// Validate checks the format selection.
func (f Format) Validate() error {
	switch f {
	case FormatZip, FormatTarGz:
		return nil
	default:
		return fmt.Errorf("unsupported archive format: %q", f)
	}
}

// Policy is the archive configuration the verifier enforces.
type Policy struct {
	// Source is the directory whose contents get archived.
	Source string `json:"source" yaml:"source"`

	// Destination is where archives are written.
	Destination string `json:"destination" yaml:"destination"`

	// Format selects the container format.
	Format Format `json:"format" yaml:"format"`

	// CapBytes is the maximum total archive footprint allowed at the
	// destination; free space below the cap fails verification.
	CapBytes int64 `json:"cap_bytes" yaml:"cap_bytes"`

	// Schedule is a systemd OnCalendar-style expression recorded into
	// the schedule placeholder artifacts.
	Schedule string `json:"schedule" yaml:"schedule"`
}

// StepStatus is the recorded outcome of one verification step.
type StepStatus string

const (
	// StatusVerified: the step ran and its checks or actions succeeded.
	StatusVerified StepStatus = "verified"

	// StatusSkipped: an identical fingerprint was already verified, so
	// the step did not re-run.
	StatusSkipped StepStatus = "skipped"

	// StatusFailed: the step ran and failed; later steps did not run.
	StatusFailed StepStatus = "failed"
)

// StepCount is the fixed number of verification steps.
const StepCount = 6

// StepRecord is one entry of the persisted ledger.
type StepRecord struct {
	// StepNumber is 1-based and strictly ordered.
	StepNumber int `json:"step_number"`

	// Name is the step's stable name.
	Name string `json:"name"`

	// Status is the recorded outcome.
	Status StepStatus `json:"status"`

	// Fingerprint identifies the configuration the outcome applies to.
	Fingerprint string `json:"fingerprint"`

	// Timestamp is when the outcome was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Ledger is the persisted record of which steps have been satisfied for
// which configuration fingerprints. A verified record with an unchanged
// fingerprint is never touched again; re-runs report the step as skipped
// and leave the record exactly as written.
type Ledger struct {
	Version int          `json:"version"`
	Records []StepRecord `json:"records"`
}

// ledgerVersion is bumped when the record schema changes.
const ledgerVersion = 1

// record returns the ledger entry for a step number, or nil.
func (l *Ledger) record(step int) *StepRecord {
	for i := range l.Records {
		if l.Records[i].StepNumber == step {
			return &l.Records[i]
		}
	}
	return nil
}

// upsert replaces or appends the record for rec.StepNumber, keeping the
// slice ordered by step number.
func (l *Ledger) upsert(rec StepRecord) {
	for i := range l.Records {
		if l.Records[i].StepNumber == rec.StepNumber {
			l.Records[i] = rec
			return
		}
		if l.Records[i].StepNumber > rec.StepNumber {
			l.Records = append(l.Records[:i], append([]StepRecord{rec}, l.Records[i:]...)...)
			return
		}
	}
	l.Records = append(l.Records, rec)
}

// LoadLedger reads a ledger file, treating a missing file as an empty
// ledger with no prior verified steps.
func LoadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Ledger{Version: ledgerVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	return &l, nil
}
