package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldline/fieldline/pkg/archive"
	"github.com/fieldline/fieldline/pkg/artifacts"
	"github.com/fieldline/fieldline/pkg/dbconn"
	"github.com/fieldline/fieldline/pkg/telemetry"
)

// Version is the installer release stamped into manifests. Overridden
// at build time with -ldflags.
var Version = "dev"

// connectTimeout bounds each database connection test during an install.
const connectTimeout = 15 * time.Second

// DatabaseProvisioner is the slice of dbconn.Connector the install
// steps use. Tests substitute fakes.
type DatabaseProvisioner interface {
	TestConnection(ctx context.Context, engine dbconn.Engine, dsn string, timeout time.Duration) error
	CanCreateDatabase(ctx context.Context, engine dbconn.Engine, adminDSN string) (bool, string, error)
	Exists(ctx context.Context, engine dbconn.Engine, adminDSN, dbName string) (bool, error)
	CreateDatabase(ctx context.Context, engine dbconn.Engine, adminDSN, dbName string, sizing dbconn.Sizing) error
}

// runPaths locates everything a run writes under its destination.
type runPaths struct {
	ArtifactsDir string
	LogFolder    string
	MappingPath  string
	ConfigPath   string
	ManifestPath string
	LedgerPath   string
	SecretsPath  string
	UnitPath     string
	ComposePath  string
}

func newRunPaths(destination string) runPaths {
	artifactsDir := filepath.Join(destination, "artifacts")
	return runPaths{
		ArtifactsDir: artifactsDir,
		LogFolder:    filepath.Join(destination, "logs"),
		MappingPath:  filepath.Join(artifactsDir, "mapping.json"),
		ConfigPath:   filepath.Join(artifactsDir, "install-config.json"),
		ManifestPath: filepath.Join(destination, "install-manifest.json"),
		LedgerPath:   filepath.Join(destination, "archive", "ledger.json"),
		SecretsPath:  filepath.Join(destination, "secrets.env"),
		UnitPath:     filepath.Join(destination, "fieldline.service"),
		ComposePath:  filepath.Join(destination, "compose.yaml"),
	}
}

// runEnv carries one run's state through the step sequence.
type runEnv struct {
	req           *InstallRequest
	correlationID string
	paths         runPaths
	db            DatabaseProvisioner
	services      ServiceManager
	containers    ContainerRuntime
	log           zerolog.Logger
	metrics       *telemetry.Metrics

	// appDSN is the runtime connection string resolved by the provision
	// step. Never logged raw.
	appDSN string

	// archiveReport holds the storage step's verification outcome.
	archiveReport *archive.Report
}

// step is one unit of install work. Steps run in order; the executor
// checks for cancellation between them.
type step interface {
	Name() string
	Weight() int
	Run(ctx context.Context, env *runEnv) error
}

// installSteps returns the standard step sequence. Weights sum to 100
// and drive the progress percentage.
func installSteps() []step {
	return []step{
		preflightStep{},
		provisionStep{},
		mappingStep{},
		storageStep{},
		activationStep{},
		finalizeStep{},
	}
}

type preflightStep struct{}

func (preflightStep) Name() string { return "preflight" }
func (preflightStep) Weight() int  { return 10 }

// Run checks that the destination and data directories are writable and
// that the database endpoint answers before any mutation happens.
func (s preflightStep) Run(ctx context.Context, env *runEnv) error {
	for _, dir := range []string{env.req.Destination, env.req.Storage.DataDir, env.paths.ArtifactsDir, env.paths.LogFolder} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return NewStepError(s.Name(), fmt.Sprintf("cannot create directory %s", dir), err)
		}
	}

	db := &env.req.Database
	dsn := db.AdminDSN
	if db.Mode == DatabaseExisting {
		dsn = db.AppDSN
	}
	if err := env.db.TestConnection(ctx, db.Engine, dsn, connectTimeout); err != nil {
		return NewConnectionError(
			fmt.Sprintf("database endpoint %s is unreachable", dbconn.MaskDSN(dsn)), err,
		).WithStep(s.Name())
	}
	return nil
}

type provisionStep struct{}

func (provisionStep) Name() string { return "provision" }
func (provisionStep) Weight() int  { return 25 }

// Run creates or attaches the application database and resolves the
// runtime connection string.
func (s provisionStep) Run(ctx context.Context, env *runEnv) error {
	db := &env.req.Database

	switch db.Mode {
	case DatabaseCreate:
		can, reason, err := env.db.CanCreateDatabase(ctx, db.Engine, db.AdminDSN)
		if err != nil {
			if errors.Is(err, dbconn.ErrPrivilege) {
				return NewPrivilegeError(reason).WithStep(s.Name())
			}
			return NewStepError(s.Name(), "privilege check failed", err)
		}
		if !can {
			return NewPrivilegeError(
				fmt.Sprintf("cannot create database %s: %s", db.DatabaseName, reason),
			).WithStep(s.Name())
		}

		exists, err := env.db.Exists(ctx, db.Engine, db.AdminDSN, db.DatabaseName)
		if err != nil {
			return NewStepError(s.Name(), "database existence check failed", err)
		}
		if exists {
			env.log.Warn().Str("database", db.DatabaseName).Msg("database already exists, reusing")
		} else if err := env.db.CreateDatabase(ctx, db.Engine, db.AdminDSN, db.DatabaseName, db.Sizing); err != nil {
			return NewStepError(s.Name(), fmt.Sprintf("creating database %s", db.DatabaseName), err)
		}

		env.appDSN = db.AppDSN
		if env.appDSN == "" {
			env.appDSN = db.AdminDSN
		}

	case DatabaseExisting:
		exists, err := env.db.Exists(ctx, db.Engine, db.AppDSN, db.DatabaseName)
		if err != nil {
			return NewStepError(s.Name(), "database existence check failed", err)
		}
		if !exists {
			return NewStepError(s.Name(),
				fmt.Sprintf("database %s does not exist on the target server", db.DatabaseName), nil)
		}
		env.appDSN = db.AppDSN
	}

	return nil
}

type mappingStep struct{}

func (mappingStep) Name() string { return "schema-mapping" }
func (mappingStep) Weight() int  { return 15 }

// Run validates the mapping invariants and persists the canonical
// mapping document.
func (s mappingStep) Run(_ context.Context, env *runEnv) error {
	if err := env.req.Mapping.Verify(); err != nil {
		return NewStepError(s.Name(), "mapping state is inconsistent", err)
	}
	doc := env.req.Mapping.CanonicalDocument()
	if err := artifacts.WriteJSONAtomic(env.paths.MappingPath, doc); err != nil {
		return NewPersistenceError("writing mapping document", err).WithStep(s.Name())
	}
	env.log.Info().
		Int("mapped_targets", len(doc)).
		Str("path", env.paths.MappingPath).
		Msg("mapping document persisted")
	return nil
}

type storageStep struct{}

func (storageStep) Name() string { return "storage-archive" }
func (storageStep) Weight() int  { return 20 }

// Run prepares the data directory and drives the archive verification
// pipeline in dry-run mode. Actual archive passes happen on schedule
// after activation.
func (s storageStep) Run(ctx context.Context, env *runEnv) error {
	if err := os.MkdirAll(env.req.Storage.DataDir, 0o755); err != nil {
		return NewStepError(s.Name(), "creating data directory", err)
	}

	verifier := archive.NewVerifier(env.req.Archive, env.paths.LedgerPath, env.log)
	report, err := verifier.Run(ctx, archive.ModeDryRun)
	if err != nil {
		return NewStepError(s.Name(), "archive verification failed", err)
	}
	env.archiveReport = report

	for _, o := range report.Outcomes {
		if env.metrics != nil {
			env.metrics.RecordArchiveStep(string(o.Status))
		}
		if o.Status == archive.StatusFailed {
			return NewStepError(s.Name(),
				fmt.Sprintf("archive verification step %d (%s) failed: %s", o.StepNumber, o.Name, o.Message), nil)
		}
	}
	return nil
}

type activationStep struct{}

func (activationStep) Name() string { return "activation" }
func (activationStep) Weight() int  { return 20 }

// Run renders the activation artifact for the requested mode and brings
// the application up.
func (s activationStep) Run(ctx context.Context, env *runEnv) error {
	switch env.req.Mode {
	case ModeService:
		unit := renderServiceUnit(env.req)
		if err := artifacts.WriteFileAtomic(env.paths.UnitPath, []byte(unit), 0o644); err != nil {
			return NewPersistenceError("writing service unit", err).WithStep(s.Name())
		}
		if err := env.services.Install(ctx, serviceName, env.paths.UnitPath); err != nil {
			return NewStepError(s.Name(), "registering service unit", err)
		}
		if err := env.services.Start(ctx, serviceName); err != nil {
			return NewStepError(s.Name(), "starting service", err)
		}
		status, err := env.services.Status(ctx, serviceName)
		if err != nil {
			return NewStepError(s.Name(), "querying service status", err)
		}
		if status != "active" {
			return NewStepError(s.Name(), fmt.Sprintf("service is %s after start", status), nil)
		}

	case ModeContainer:
		compose := renderComposeFile(env.req)
		if err := artifacts.WriteFileAtomic(env.paths.ComposePath, []byte(compose), 0o644); err != nil {
			return NewPersistenceError("writing compose file", err).WithStep(s.Name())
		}
		if err := env.containers.Up(ctx, env.paths.ComposePath); err != nil {
			return NewStepError(s.Name(), "starting container stack", err)
		}
		running, err := env.containers.Running(ctx, containerName)
		if err != nil {
			return NewStepError(s.Name(), "inspecting container", err)
		}
		if !running {
			return NewStepError(s.Name(), "container is not running after start", nil)
		}
	}
	return nil
}

type finalizeStep struct{}

func (finalizeStep) Name() string { return "finalize" }
func (finalizeStep) Weight() int  { return 10 }

// appConfig is the rendered application configuration. It carries the
// connection fingerprint, never the raw string; the runtime reads the
// secret from the 0600 env file.
type appConfig struct {
	Database struct {
		Engine         string `json:"engine"`
		Name           string `json:"name"`
		DSNFingerprint string `json:"dsn_fingerprint"`
		SecretsFile    string `json:"secrets_file"`
	} `json:"database"`
	Storage struct {
		DataDir       string `json:"data_dir"`
		RetentionDays int    `json:"retention_days"`
	} `json:"storage"`
	Archive struct {
		Destination string `json:"destination"`
		Format      string `json:"format"`
		Schedule    string `json:"schedule"`
	} `json:"archive"`
}

// Run writes the runtime configuration, the credentials file, and the
// artifact manifest.
func (s finalizeStep) Run(_ context.Context, env *runEnv) error {
	secret := fmt.Sprintf("FIELDLINE_DB_DSN=%s\n", env.appDSN)
	if err := artifacts.WriteFileAtomic(env.paths.SecretsPath, []byte(secret), 0o600); err != nil {
		return NewPersistenceError("writing credentials file", err).WithStep(s.Name())
	}

	var cfg appConfig
	cfg.Database.Engine = string(env.req.Database.Engine)
	cfg.Database.Name = env.req.Database.DatabaseName
	cfg.Database.DSNFingerprint = dbconn.Fingerprint(env.appDSN)
	cfg.Database.SecretsFile = env.paths.SecretsPath
	cfg.Storage.DataDir = env.req.Storage.DataDir
	cfg.Storage.RetentionDays = env.req.Storage.RetentionDays
	cfg.Archive.Destination = env.req.Archive.Destination
	cfg.Archive.Format = string(env.req.Archive.Format)
	cfg.Archive.Schedule = env.req.Archive.Schedule

	if err := artifacts.WriteJSONAtomic(env.paths.ConfigPath, &cfg); err != nil {
		return NewPersistenceError("writing configuration", err).WithStep(s.Name())
	}

	manifest, err := artifacts.BuildManifest(env.correlationID, Version, env.paths.ArtifactsDir)
	if err != nil {
		return NewPersistenceError("building artifact manifest", err).WithStep(s.Name())
	}
	if err := manifest.Write(env.paths.ManifestPath); err != nil {
		return NewPersistenceError("writing artifact manifest", err).WithStep(s.Name())
	}
	return nil
}

const (
	serviceName   = "fieldline"
	containerName = "fieldline"
)

func renderServiceUnit(req *InstallRequest) string {
	return fmt.Sprintf(`[Unit]
Description=Fieldline application
After=network-online.target

[Service]
Type=simple
ExecStart=%s/bin/fieldline-app --config %s/artifacts/install-config.json
EnvironmentFile=%s/secrets.env
WorkingDirectory=%s
Restart=on-failure

[Install]
WantedBy=multi-user.target
`, req.Destination, req.Destination, req.Destination, req.Destination)
}

func renderComposeFile(req *InstallRequest) string {
	return fmt.Sprintf(`services:
  fieldline:
    container_name: fieldline
    image: fieldline/app:latest
    restart: unless-stopped
    env_file:
      - %s/secrets.env
    volumes:
      - %s:/var/lib/fieldline
      - %s/artifacts/install-config.json:/etc/fieldline/install-config.json:ro
`, req.Destination, req.Storage.DataDir, req.Destination)
}
