package installer

import (
	"time"

	"github.com/fieldline/fieldline/pkg/archive"
	"github.com/fieldline/fieldline/pkg/dbconn"
	"github.com/fieldline/fieldline/pkg/mapping"
)

// TargetMode selects how the application is activated on the host.
type TargetMode string

const (
	// ModeService activates the application as a host service unit.
	ModeService TargetMode = "service"

	// ModeContainer activates the application as a managed container.
	ModeContainer TargetMode = "container"
)

// Validate checks that the mode is a known value.
func (m TargetMode) Validate() error {
	switch m {
	case ModeService, ModeContainer:
		return nil
	default:
		return NewValidationError("target mode must be service or container")
	}
}

// DatabaseMode selects whether the installer provisions a fresh database
// or attaches to one that already exists.
type DatabaseMode string

const (
	// DatabaseCreate provisions a new database using admin credentials.
	DatabaseCreate DatabaseMode = "create"

	// DatabaseExisting connects to a pre-provisioned database.
	DatabaseExisting DatabaseMode = "existing"
)

// Validate checks that the mode is a known value.
func (m DatabaseMode) Validate() error {
	switch m {
	case DatabaseCreate, DatabaseExisting:
		return nil
	default:
		return NewValidationError("database mode must be create or existing")
	}
}

// DatabaseSetup describes the database side of an install request.
type DatabaseSetup struct {
	// Mode selects create-new versus attach-existing.
	Mode DatabaseMode `json:"mode" validate:"required"`

	// Engine is the target database engine.
	Engine dbconn.Engine `json:"engine" validate:"required"`

	// AdminDSN authenticates the provisioning connection. Required in
	// create mode. Never logged or persisted raw.
	AdminDSN string `json:"-"`

	// AppDSN is the application's runtime connection string. Required in
	// existing mode. Never logged or persisted raw.
	AppDSN string `json:"-"`

	// DatabaseName is the database to create or attach to.
	DatabaseName string `json:"database_name" validate:"required"`

	// Sizing holds optional initial sizing hints for create mode.
	Sizing dbconn.Sizing `json:"sizing"`

	// PortHint helps engine inference when the DSN is ambiguous.
	PortHint int `json:"port_hint,omitempty"`
}

// StoragePolicy describes where the installed application keeps its data.
type StoragePolicy struct {
	// DataDir is the application data directory.
	DataDir string `json:"data_dir" validate:"required"`

	// RetentionDays bounds how long run artifacts are kept. Zero means
	// keep forever.
	RetentionDays int `json:"retention_days" validate:"gte=0"`
}

// InstallRequest is the full configuration snapshot an install runs from.
// The orchestrator treats it as immutable once accepted.
type InstallRequest struct {
	// Mode selects service or container activation.
	Mode TargetMode `json:"mode" validate:"required"`

	// Destination is the install root on the host filesystem.
	Destination string `json:"destination" validate:"required"`

	// Database configures provisioning or attachment.
	Database DatabaseSetup `json:"database" validate:"required"`

	// Storage configures the data directory and retention.
	Storage StoragePolicy `json:"storage" validate:"required"`

	// Archive configures the archive verification pipeline.
	Archive archive.Policy `json:"archive" validate:"required"`

	// Mapping is the resolved schema mapping state. Must be complete:
	// every required target field mapped.
	Mapping *mapping.State `json:"-" validate:"required"`

	// ConsentGiven records that the operator accepted the terms. The
	// install refuses to start without it.
	ConsentGiven bool `json:"consent_given"`
}

// EventKind discriminates the progress stream's event types.
type EventKind string

const (
	// EventProgress is a step progress update.
	EventProgress EventKind = "progress"

	// EventComplete is the success terminal event.
	EventComplete EventKind = "install-complete"

	// EventError is the failure terminal event.
	EventError EventKind = "install-error"
)

// IsTerminal reports whether the kind ends the run's event stream.
func (k EventKind) IsTerminal() bool {
	return k == EventComplete || k == EventError
}

// Severity grades a progress event.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ProgressEvent is one entry in a run's event stream.
type ProgressEvent struct {
	// Kind discriminates progress from terminal events.
	Kind EventKind `json:"kind"`

	// CorrelationID ties the event to its run.
	CorrelationID string `json:"correlation_id"`

	// Step is the current step name, empty on terminal events.
	Step string `json:"step,omitempty"`

	// Phase is "started" or "finished" for step boundary events.
	Phase string `json:"phase,omitempty"`

	// Severity grades the event.
	Severity Severity `json:"severity"`

	// Percent is cumulative progress in [0,100].
	Percent int `json:"percent"`

	// Message is a user-safe description. Masked DSNs only.
	Message string `json:"message"`

	// ElapsedMs is time since the run started.
	ElapsedMs int64 `json:"elapsed_ms"`

	// EtaMs is the weighted remaining-time estimate, -1 when unknown.
	EtaMs int64 `json:"eta_ms"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// ResultDetails points at the artifacts a finished run produced.
type ResultDetails struct {
	// LogFolder is where the run's log files live.
	LogFolder string `json:"log_folder,omitempty"`

	// ArtifactsDir is the run's artifact directory.
	ArtifactsDir string `json:"artifacts_dir,omitempty"`

	// ManifestPath is the artifact manifest file.
	ManifestPath string `json:"manifest_path,omitempty"`

	// MappingPath is the persisted canonical mapping document.
	MappingPath string `json:"mapping_path,omitempty"`

	// ConfigPath is the rendered application configuration file.
	ConfigPath string `json:"config_path,omitempty"`
}

// InstallResult summarizes a finished run.
type InstallResult struct {
	// CorrelationID identifies the run.
	CorrelationID string `json:"correlation_id"`

	// OK reports whether the run completed successfully.
	OK bool `json:"ok"`

	// Message is the user-facing summary. On failure it carries the
	// classified error text with secrets masked.
	Message string `json:"message"`

	// ErrorKind is the failure classification, empty on success.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Details locates the artifacts the run produced.
	Details ResultDetails `json:"details"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
