package config

import (
	"strings"
	"testing"

	"github.com/fieldline/fieldline/pkg/dbconn"
	"github.com/fieldline/fieldline/pkg/installer"
)

const requestYAML = `
mode: service
destination: /opt/fieldline
database:
  mode: create
  admin_dsn: ${FIELDLINE_TEST_ADMIN_DSN}
  name: fieldline_app
  initial_mb: 256
storage:
  data_dir: /var/lib/fieldline
  retention_days: 30
archive:
  source: /var/lib/fieldline
  destination: /var/backups/fieldline
  format: tar.gz
  cap_bytes: 1073741824
  schedule: daily
mapping:
  source_fields:
    - email
    - full name
  target_fields:
    - id: t_email
      name: Email
      required: true
    - id: t_name
      name: Name
  links:
    t_email: email__0
    t_name: full_name__0
consent: true
`

func TestLoadRequest(t *testing.T) {
	t.Setenv("FIELDLINE_TEST_ADMIN_DSN", "postgresql://admin:pw@db:5432/postgres")
	path := writeFile(t, "request.yaml", requestYAML)

	req, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("load request: %v", err)
	}

	if req.Mode != installer.ModeService {
		t.Errorf("unexpected mode %q", req.Mode)
	}
	if req.Database.AdminDSN != "postgresql://admin:pw@db:5432/postgres" {
		t.Error("expected admin DSN expanded from environment")
	}
	if req.Database.Sizing.InitialMB != 256 {
		t.Errorf("unexpected sizing %+v", req.Database.Sizing)
	}
	if !req.Mapping.Complete() {
		t.Error("expected all required targets mapped")
	}
	if got := req.Mapping.TargetToSource["t_email"]; got != "email__0" {
		t.Errorf("unexpected email link %q", got)
	}

	// The engine was omitted, so it is inferred from the DSN.
	if req.Database.Engine != dbconn.EnginePostgres {
		t.Errorf("expected postgres inferred, got %q", req.Database.Engine)
	}

	// The loaded request passes the orchestrator's gate.
	if err := installer.ValidateRequest(req); err != nil {
		t.Errorf("expected loaded request to validate: %v", err)
	}
}

func TestLoadRequestPortHintBreaksAmbiguousDSN(t *testing.T) {
	// No scheme, no keyword pairs, no embedded port: the DSN alone
	// cannot identify the engine, so the declared port decides.
	ambiguous := strings.Replace(requestYAML,
		"admin_dsn: ${FIELDLINE_TEST_ADMIN_DSN}",
		"admin_dsn: db.internal\n  port_hint: 1433", 1)
	path := writeFile(t, "request.yaml", ambiguous)

	req, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("load request: %v", err)
	}
	if req.Database.Engine != dbconn.EngineSQLServer {
		t.Errorf("expected sqlserver from port hint, got %q", req.Database.Engine)
	}
	if req.Database.PortHint != 1433 {
		t.Errorf("PortHint = %d, want 1433", req.Database.PortHint)
	}

	// An explicit scheme in the DSN still wins over the hint.
	schemed := strings.Replace(requestYAML,
		"admin_dsn: ${FIELDLINE_TEST_ADMIN_DSN}",
		"admin_dsn: postgresql://admin:pw@db:5432/postgres\n  port_hint: 1433", 1)
	path = writeFile(t, "request.yaml", schemed)

	req, err = LoadRequest(path)
	if err != nil {
		t.Fatalf("load request: %v", err)
	}
	if req.Database.Engine != dbconn.EnginePostgres {
		t.Errorf("expected postgres from DSN scheme, got %q", req.Database.Engine)
	}
}

func TestLoadRequestRejectsConflictingLinks(t *testing.T) {
	yaml := `
mapping:
  source_fields: [a, b]
  target_fields:
    - id: t_one
      name: One
  links:
    t_one: a__0
`
	path := writeFile(t, "request.yaml", yaml)
	req, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if req.Mapping.TargetToSource["t_one"] != "a__0" {
		t.Error("expected link applied")
	}

	// Two sources feeding the same target cannot be expressed in the
	// links map, but an unknown source ID is a hard error.
	bad := `
mapping:
  source_fields: [a]
  target_fields:
    - id: t_one
      name: One
  links:
    t_one: missing__0
`
	path = writeFile(t, "bad.yaml", bad)
	if _, err := LoadRequest(path); err == nil {
		t.Error("expected unknown source ID to be rejected")
	}
}
