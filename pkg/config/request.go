package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/fieldline/fieldline/pkg/archive"
	"github.com/fieldline/fieldline/pkg/dbconn"
	"github.com/fieldline/fieldline/pkg/installer"
	"github.com/fieldline/fieldline/pkg/mapping"
)

// requestFile is the on-disk install request. DSN fields support ${VAR}
// expansion so credentials can live in the environment.
type requestFile struct {
	Mode        string `yaml:"mode"`
	Destination string `yaml:"destination"`

	Database struct {
		Mode         string `yaml:"mode"`
		Engine       string `yaml:"engine"`
		AdminDSN     string `yaml:"admin_dsn"`
		AppDSN       string `yaml:"app_dsn"`
		Name         string `yaml:"name"`
		PortHint     int    `yaml:"port_hint"`
		InitialMB    int    `yaml:"initial_mb"`
		MaxMB        int    `yaml:"max_mb"`
		GrowthMB     int    `yaml:"growth_mb"`
	} `yaml:"database"`

	Storage struct {
		DataDir       string `yaml:"data_dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"storage"`

	Archive struct {
		Source      string `yaml:"source"`
		Destination string `yaml:"destination"`
		Format      string `yaml:"format"`
		CapBytes    int64  `yaml:"cap_bytes"`
		Schedule    string `yaml:"schedule"`
	} `yaml:"archive"`

	Mapping struct {
		Override     bool                  `yaml:"override"`
		SourceFields []string              `yaml:"source_fields"`
		TargetFields []mappingTargetField  `yaml:"target_fields"`
		Links        map[string]string     `yaml:"links"`
	} `yaml:"mapping"`

	Consent bool `yaml:"consent"`
}

type mappingTargetField struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
}

// LoadRequest reads an install request file and builds the request the
// orchestrator accepts. Mapping links are applied through the resolver,
// so a request file that encodes a conflict is rejected here rather than
// mid-install.
func LoadRequest(path string) (*installer.InstallRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request %s: %w", path, err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})

	var file requestFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("parsing request %s: %w", path, err)
	}

	state, err := buildMapping(&file)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}

	engine := dbconn.Engine(file.Database.Engine)
	if file.Database.Engine == "" {
		hint := file.Database.AdminDSN
		if hint == "" {
			hint = file.Database.AppDSN
		}
		// A declared port breaks ties when the DSN itself is ambiguous.
		fallback := dbconn.EnginePostgres
		if file.Database.PortHint > 0 {
			fallback = dbconn.GuessEngine(strconv.Itoa(file.Database.PortHint), fallback)
		}
		engine = dbconn.GuessEngine(hint, fallback)
	}

	req := &installer.InstallRequest{
		Mode:        installer.TargetMode(file.Mode),
		Destination: file.Destination,
		Database: installer.DatabaseSetup{
			Mode:         installer.DatabaseMode(file.Database.Mode),
			Engine:       engine,
			AdminDSN:     file.Database.AdminDSN,
			AppDSN:       file.Database.AppDSN,
			DatabaseName: file.Database.Name,
			PortHint:     file.Database.PortHint,
			Sizing: dbconn.Sizing{
				InitialMB: file.Database.InitialMB,
				MaxMB:     file.Database.MaxMB,
				GrowthMB:  file.Database.GrowthMB,
			},
		},
		Storage: installer.StoragePolicy{
			DataDir:       file.Storage.DataDir,
			RetentionDays: file.Storage.RetentionDays,
		},
		Archive: archive.Policy{
			Source:      file.Archive.Source,
			Destination: file.Archive.Destination,
			Format:      archive.Format(file.Archive.Format),
			CapBytes:    file.Archive.CapBytes,
			Schedule:    file.Archive.Schedule,
		},
		Mapping:      state,
		ConsentGiven: file.Consent,
	}
	return req, nil
}

// buildMapping scans the declared source fields and applies every link
// through the resolver.
func buildMapping(file *requestFile) (*mapping.State, error) {
	sources := mapping.ScanFields(file.Mapping.SourceFields)
	targets := make([]mapping.TargetField, 0, len(file.Mapping.TargetFields))
	for _, t := range file.Mapping.TargetFields {
		targets = append(targets, mapping.TargetField{ID: t.ID, Name: t.Name, Required: t.Required})
	}

	state := mapping.NewState(sources, targets, file.Mapping.Override)
	for targetID, sourceID := range file.Mapping.Links {
		conflict, err := state.AttemptMap(sourceID, targetID)
		if err != nil {
			return nil, fmt.Errorf("mapping %s to %s: %w", sourceID, targetID, err)
		}
		if conflict != nil {
			return nil, fmt.Errorf("mapping %s to %s conflicts with an existing link", sourceID, targetID)
		}
	}
	return state, nil
}
