package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// fixedProber reports a constant amount of free space.
type fixedProber struct {
	free int64
	err  error
}

func (p fixedProber) FreeBytes(string) (int64, error) {
	return p.free, p.err
}

func testPolicy(t *testing.T) Policy {
	t.Helper()
	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "data.db"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Policy{
		Source:      source,
		Destination: t.TempDir(),
		Format:      FormatTarGz,
		CapBytes:    1 << 20,
		Schedule:    "*-*-* 02:00:00",
	}
}

func newTestVerifier(t *testing.T, p Policy, ledgerPath string) *Verifier {
	t.Helper()
	return NewVerifier(p, ledgerPath, zerolog.Nop(),
		WithProber(fixedProber{free: 10 << 20}),
		WithPlatform("linux"),
	)
}

func TestVerifierFirstRunVerifiesAllSteps(t *testing.T) {
	p := testPolicy(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")
	v := newTestVerifier(t, p, ledgerPath)

	report, err := v.Run(context.Background(), ModeDryRun)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Outcomes) != StepCount {
		t.Fatalf("outcomes = %d, want %d", len(report.Outcomes), StepCount)
	}
	for _, o := range report.Outcomes {
		if o.Status != StatusVerified {
			t.Errorf("step %d (%s) = %s, want verified", o.StepNumber, o.Name, o.Status)
		}
	}

	// Schedule placeholders were materialized for linux.
	for _, name := range []string{"fieldline-archive.service", "fieldline-archive.timer"} {
		if _, err := os.Stat(filepath.Join(p.Destination, "schedule", name)); err != nil {
			t.Errorf("missing schedule artifact %s: %v", name, err)
		}
	}

	ledger, err := LoadLedger(ledgerPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(ledger.Records) != StepCount {
		t.Errorf("ledger records = %d, want %d", len(ledger.Records), StepCount)
	}
}

func TestVerifierSecondRunSkipsAndPreservesLedger(t *testing.T) {
	p := testPolicy(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")
	v := newTestVerifier(t, p, ledgerPath)

	if _, err := v.Run(context.Background(), ModeDryRun); err != nil {
		t.Fatal(err)
	}
	firstBytes, err := os.ReadFile(ledgerPath)
	if err != nil {
		t.Fatal(err)
	}

	report, err := v.Run(context.Background(), ModeDryRun)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range report.Outcomes {
		if o.Status != StatusSkipped {
			t.Errorf("step %d (%s) = %s, want skipped", o.StepNumber, o.Name, o.Status)
		}
	}

	secondBytes, err := os.ReadFile(ledgerPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(firstBytes) != string(secondBytes) {
		t.Error("ledger content changed across an identical re-run")
	}
}

func TestVerifierConfigChangeInvalidatesSteps(t *testing.T) {
	p := testPolicy(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")

	if _, err := newTestVerifier(t, p, ledgerPath).Run(context.Background(), ModeDryRun); err != nil {
		t.Fatal(err)
	}

	// Change a fingerprinted field: every step re-runs.
	p.Schedule = "*-*-* 03:00:00"
	report, err := newTestVerifier(t, p, ledgerPath).Run(context.Background(), ModeDryRun)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range report.Outcomes {
		if o.Status != StatusVerified {
			t.Errorf("step %d = %s after config change, want verified", o.StepNumber, o.Status)
		}
	}
}

func TestVerifierStopsAtFirstFailure(t *testing.T) {
	p := testPolicy(t)
	p.Format = Format("rar")
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")
	v := newTestVerifier(t, p, ledgerPath)

	report, err := v.Run(context.Background(), ModeDryRun)
	if err == nil {
		t.Fatal("expected failure for unsupported format")
	}
	// Step 1 verified, step 2 failed, steps 3..6 never attempted.
	if len(report.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(report.Outcomes))
	}
	if report.Outcomes[1].Status != StatusFailed {
		t.Errorf("step 2 = %s, want failed", report.Outcomes[1].Status)
	}

	// The failure is recorded for the next run to retry.
	ledger, err := LoadLedger(ledgerPath)
	if err != nil {
		t.Fatal(err)
	}
	if rec := ledger.record(2); rec == nil || rec.Status != StatusFailed {
		t.Errorf("ledger record for step 2 = %+v, want failed", rec)
	}
}

func TestVerifierFailedStepRetriesNextRun(t *testing.T) {
	p := testPolicy(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")

	bad := p
	bad.Format = Format("rar")
	if _, err := newTestVerifier(t, bad, ledgerPath).Run(context.Background(), ModeDryRun); err == nil {
		t.Fatal("expected first run to fail")
	}

	// Fixing the format changes every fingerprint, so the repaired
	// pipeline re-runs end to end.
	fixed := bad
	fixed.Format = FormatZip
	report, err := newTestVerifier(t, fixed, ledgerPath).Run(context.Background(), ModeDryRun)
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[1].Status != StatusVerified {
		t.Errorf("format step = %s after fix, want verified", report.Outcomes[1].Status)
	}
}

func TestVerifierInsufficientSpace(t *testing.T) {
	p := testPolicy(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")
	v := NewVerifier(p, ledgerPath, zerolog.Nop(),
		WithProber(fixedProber{free: 10}),
		WithPlatform("linux"),
	)

	if _, err := v.Run(context.Background(), ModeDryRun); err == nil {
		t.Fatal("expected failure when free space is below the cap")
	}
}

func TestVerifierProberError(t *testing.T) {
	p := testPolicy(t)
	v := NewVerifier(p, filepath.Join(t.TempDir(), "ledger.json"), zerolog.Nop(),
		WithProber(fixedProber{err: errors.New("statfs failed")}),
		WithPlatform("linux"),
	)
	if _, err := v.Run(context.Background(), ModeDryRun); err == nil {
		t.Fatal("expected prober failure to surface")
	}
}

func TestVerifierApplyWritesArchive(t *testing.T) {
	p := testPolicy(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")
	v := newTestVerifier(t, p, ledgerPath)

	if _, err := v.Run(context.Background(), ModeApply); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(p.Destination)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".gz" {
			found = true
		}
	}
	if !found {
		t.Error("apply mode produced no archive file")
	}
}

func TestLoadLedgerMissingFile(t *testing.T) {
	l, err := LoadLedger(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Records) != 0 {
		t.Errorf("expected empty ledger, got %d records", len(l.Records))
	}
}

func TestStepFingerprintSensitivity(t *testing.T) {
	p := testPolicy(t)

	base := StepFingerprint(p, 1)
	if StepFingerprint(p, 2) == base {
		t.Error("fingerprint must vary by step number")
	}

	q := p
	q.CapBytes++
	if StepFingerprint(q, 1) == base {
		t.Error("fingerprint must vary when the cap changes")
	}

	r := p
	r.Destination = r.Destination + "-other"
	if StepFingerprint(r, 1) == base {
		t.Error("fingerprint must vary when the destination changes")
	}

	if StepFingerprint(p, 1) != base {
		t.Error("fingerprint must be stable for identical input")
	}
}
