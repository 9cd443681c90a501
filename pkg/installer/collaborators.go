package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ServiceManager manages the application's host service unit. The
// activation step drives it in service mode.
type ServiceManager interface {
	// Install registers the unit file at unitPath with the host's
	// service manager.
	Install(ctx context.Context, name, unitPath string) error

	// Start enables and starts the named unit.
	Start(ctx context.Context, name string) error

	// Status returns the unit's active state, e.g. "active" or
	// "inactive".
	Status(ctx context.Context, name string) (string, error)
}

// ContainerRuntime manages the application container. The activation
// step drives it in container mode.
type ContainerRuntime interface {
	// Up starts the stack described by the compose file at composePath.
	Up(ctx context.Context, composePath string) error

	// Running reports whether the named container is up.
	Running(ctx context.Context, name string) (bool, error)
}

// systemdManager drives systemctl on the host.
type systemdManager struct{}

// NewSystemdManager returns the systemctl-backed service manager.
func NewSystemdManager() ServiceManager {
	return &systemdManager{}
}

func (m *systemdManager) Install(ctx context.Context, name, unitPath string) error {
	cmd := exec.CommandContext(ctx, "systemctl", "link", unitPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to link unit %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	cmd = exec.CommandContext(ctx, "systemctl", "daemon-reload")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to reload unit files: %w", err)
	}
	return nil
}

func (m *systemdManager) Start(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, "systemctl", "enable", "--now", name)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to start service %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (m *systemdManager) Status(ctx context.Context, name string) (string, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "is-active", name)
	out, _ := cmd.Output()
	status := strings.TrimSpace(string(out))
	if status == "" {
		return "", fmt.Errorf("no status reported for service %s", name)
	}
	return status, nil
}

// composeRuntime drives docker compose on the host.
type composeRuntime struct{}

// NewComposeRuntime returns the docker-compose-backed container runtime.
func NewComposeRuntime() ContainerRuntime {
	return &composeRuntime{}
}

func (r *composeRuntime) Up(ctx context.Context, composePath string) error {
	cmd := exec.CommandContext(ctx, "docker", "compose", "-f", composePath, "up", "-d")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to start container stack: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (r *composeRuntime) Running(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Running}}", name)
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	return strings.TrimSpace(string(out)) == "true", nil
}
