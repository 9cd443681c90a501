package installer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fieldline/fieldline/pkg/dbconn"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest gates an install request before any step runs. It is
// synchronous: a rejected request never acquires the run guard and never
// produces events.
func ValidateRequest(req *InstallRequest) error {
	if req == nil {
		return NewValidationError("install request is nil")
	}
	if !req.ConsentGiven {
		return NewValidationError("consent is required before installing")
	}
	if err := req.Mode.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return NewValidationError(fmt.Sprintf("field %s failed %s validation", f.Namespace(), f.Tag()))
		}
		return NewValidationError(err.Error())
	}
	if err := validateDatabase(&req.Database); err != nil {
		return err
	}
	if err := req.Archive.Format.Validate(); err != nil {
		return NewValidationError(fmt.Sprintf("archive format %q is not supported", req.Archive.Format))
	}
	if req.Archive.CapBytes <= 0 {
		return NewValidationError("archive cap must be positive")
	}
	return validateMapping(req)
}

func validateDatabase(db *DatabaseSetup) error {
	if err := db.Mode.Validate(); err != nil {
		return err
	}
	if err := db.Engine.Validate(); err != nil {
		return NewValidationError(fmt.Sprintf("database engine %q is not supported", db.Engine))
	}
	if err := dbconn.ValidateDatabaseName(db.DatabaseName); err != nil {
		return NewValidationError(fmt.Sprintf("database name %q is not a safe identifier", db.DatabaseName))
	}
	switch db.Mode {
	case DatabaseCreate:
		if strings.TrimSpace(db.AdminDSN) == "" {
			return NewValidationError("create mode requires an admin connection string")
		}
	case DatabaseExisting:
		if strings.TrimSpace(db.AppDSN) == "" {
			return NewValidationError("existing mode requires an application connection string")
		}
	}
	return nil
}

func validateMapping(req *InstallRequest) error {
	missing := req.Mapping.UnmappedRequired()
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, t := range missing {
		names = append(names, t.Name)
	}
	return NewValidationError(
		fmt.Sprintf("required target fields are unmapped: %s", strings.Join(names, ", ")),
	).WithDetail("unmapped_targets", names)
}
