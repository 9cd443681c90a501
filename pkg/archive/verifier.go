package archive

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldline/fieldline/pkg/artifacts"
)

// Mode selects between a dry-run archive pass and a real one.
type Mode string

const (
	// ModeDryRun computes what would be archived without writing one.
	ModeDryRun Mode = "dry-run"

	// ModeApply writes a real archive at the destination.
	ModeApply Mode = "apply"
)

// SpaceProber reports free bytes at a filesystem path. The verifier
// consumes the interface; tests substitute fixed values.
type SpaceProber interface {
	FreeBytes(path string) (int64, error)
}

// StepOutcome is one step's result as reported for a single invocation.
// Unlike the ledger, outcomes do carry skipped markers for steps that were
// satisfied on an earlier run.
type StepOutcome struct {
	StepNumber  int        `json:"step_number"`
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Fingerprint string     `json:"fingerprint"`
	Message     string     `json:"message,omitempty"`
}

// Report is the full outcome of one verifier invocation.
type Report struct {
	Mode     Mode          `json:"mode"`
	Outcomes []StepOutcome `json:"outcomes"`
}

// Verifier runs the ordered archive verification pipeline and maintains
// the persisted ledger.
type Verifier struct {
	policy     Policy
	ledgerPath string
	prober     SpaceProber
	goos       string
	log        zerolog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithProber substitutes the free-space prober.
func WithProber(p SpaceProber) VerifierOption {
	return func(v *Verifier) { v.prober = p }
}

// WithPlatform overrides the platform used for schedule artifacts.
func WithPlatform(goos string) VerifierOption {
	return func(v *Verifier) { v.goos = goos }
}

// NewVerifier creates a verifier for the given policy. The ledger lives at
// ledgerPath and is created on first use.
func NewVerifier(policy Policy, ledgerPath string, log zerolog.Logger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		policy:     policy,
		ledgerPath: ledgerPath,
		prober:     NewProber(),
		goos:       runtime.GOOS,
		log:        log.With().Str("component", "archive").Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type stepFunc func(ctx context.Context, mode Mode) (string, error)

// Run executes the six verification steps in strict ascending order.
// A step whose fingerprint is already recorded as verified is reported
// skipped and its ledger record is left untouched, so re-running with
// unchanged configuration repeats no side effect and rewrites an
// identical ledger. The first failure stops the pipeline; later steps do
// not run.
func (v *Verifier) Run(ctx context.Context, mode Mode) (*Report, error) {
	ledger, err := LoadLedger(v.ledgerPath)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		name string
		fn   stepFunc
	}{
		{"destination", v.stepDestination},
		{"format", v.stepFormat},
		{"schedule", v.stepSchedule},
		{"ledger-init", v.stepLedgerInit},
		{"archive-pass", v.stepArchivePass},
		{"finalize", v.stepFinalize},
	}

	report := &Report{Mode: mode}
	for i, step := range steps {
		num := i + 1
		fp := StepFingerprint(v.policy, num)

		if prior := ledger.record(num); prior != nil &&
			prior.Status == StatusVerified && prior.Fingerprint == fp {
			v.log.Debug().Int("step", num).Str("name", step.name).Msg("step already verified, skipping")
			report.Outcomes = append(report.Outcomes, StepOutcome{
				StepNumber:  num,
				Name:        step.name,
				Status:      StatusSkipped,
				Fingerprint: fp,
			})
			continue
		}

		msg, err := step.fn(ctx, mode)
		if err != nil {
			ledger.upsert(StepRecord{
				StepNumber:  num,
				Name:        step.name,
				Status:      StatusFailed,
				Fingerprint: fp,
				Timestamp:   time.Now().UTC(),
			})
			if werr := v.persist(ledger); werr != nil {
				v.log.Error().Err(werr).Msg("persisting ledger after step failure")
			}
			report.Outcomes = append(report.Outcomes, StepOutcome{
				StepNumber:  num,
				Name:        step.name,
				Status:      StatusFailed,
				Fingerprint: fp,
				Message:     err.Error(),
			})
			return report, fmt.Errorf("archive verification step %d (%s): %w", num, step.name, err)
		}

		ledger.upsert(StepRecord{
			StepNumber:  num,
			Name:        step.name,
			Status:      StatusVerified,
			Fingerprint: fp,
			Timestamp:   time.Now().UTC(),
		})
		report.Outcomes = append(report.Outcomes, StepOutcome{
			StepNumber:  num,
			Name:        step.name,
			Status:      StatusVerified,
			Fingerprint: fp,
			Message:     msg,
		})
		v.log.Info().Int("step", num).Str("name", step.name).Msg("step verified")
	}

	if err := v.persist(ledger); err != nil {
		return report, err
	}
	return report, nil
}

func (v *Verifier) persist(l *Ledger) error {
	if l.Version == 0 {
		l.Version = ledgerVersion
	}
	return artifacts.WriteJSONAtomic(v.ledgerPath, l)
}

// Step 1: destination reachability and free space against the cap.
func (v *Verifier) stepDestination(_ context.Context, _ Mode) (string, error) {
	if v.policy.Destination == "" {
		return "", fmt.Errorf("archive destination is not configured")
	}
	if err := ensureDir(v.policy.Destination); err != nil {
		return "", fmt.Errorf("destination unreachable: %w", err)
	}

	free, err := v.prober.FreeBytes(v.policy.Destination)
	if err != nil {
		return "", fmt.Errorf("probing free space: %w", err)
	}
	if v.policy.CapBytes > 0 && free < v.policy.CapBytes {
		return "", fmt.Errorf("free space %d bytes is below the configured cap of %d bytes", free, v.policy.CapBytes)
	}
	return fmt.Sprintf("%d bytes free", free), nil
}

// Step 2: format selection.
func (v *Verifier) stepFormat(_ context.Context, _ Mode) (string, error) {
	if err := v.policy.Format.Validate(); err != nil {
		return "", err
	}
	return string(v.policy.Format), nil
}

// Step 3: platform schedule placeholder artifacts.
func (v *Verifier) stepSchedule(_ context.Context, _ Mode) (string, error) {
	dir := filepath.Join(v.policy.Destination, "schedule")
	files := ScheduleArtifacts(v.policy, v.goos)
	for _, f := range files {
		if err := artifacts.WriteFileAtomic(filepath.Join(dir, f.Name), []byte(f.Contents), 0o644); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%d schedule artifacts in %s", len(files), dir), nil
}

// Step 4: ledger initialization for the current fingerprint context.
func (v *Verifier) stepLedgerInit(_ context.Context, _ Mode) (string, error) {
	ledger, err := LoadLedger(v.ledgerPath)
	if err != nil {
		return "", err
	}
	if ledger.Version != 0 && ledger.Version != ledgerVersion {
		return "", fmt.Errorf("ledger version %d is not supported", ledger.Version)
	}
	if err := ensureDir(filepath.Dir(v.ledgerPath)); err != nil {
		return "", fmt.Errorf("ledger location unreachable: %w", err)
	}
	return v.ledgerPath, nil
}

// Step 5: archive pass, dry or real depending on mode.
func (v *Verifier) stepArchivePass(ctx context.Context, mode Mode) (string, error) {
	files, total, err := v.scanSource(ctx)
	if err != nil {
		return "", err
	}
	if v.policy.CapBytes > 0 && total > v.policy.CapBytes {
		return "", fmt.Errorf("source holds %d bytes, above the %d byte cap", total, v.policy.CapBytes)
	}

	if mode == ModeDryRun {
		return fmt.Sprintf("dry run: %d files, %d bytes", files, total), nil
	}

	out, err := v.writeArchive(ctx)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Step 6: finalize. The updated ledger is persisted by Run after this
// step records as verified; finalize only seals the report.
func (v *Verifier) stepFinalize(_ context.Context, _ Mode) (string, error) {
	return "ledger at " + v.ledgerPath, nil
}

// scanSource walks the archive source and totals regular files.
func (v *Verifier) scanSource(ctx context.Context) (int, int64, error) {
	if v.policy.Source == "" {
		return 0, 0, fmt.Errorf("archive source is not configured")
	}
	var files int
	var total int64
	err := filepath.WalkDir(v.policy.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("scanning archive source %s: %w", v.policy.Source, err)
	}
	return files, total, nil
}
