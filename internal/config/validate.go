package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for the given run mode. All
// problems are reported in a single error so the operator can fix
// them in one pass.
func (c *Config) Validate(mode string) error {
	var problems []string

	needDB := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.UploadMaxMB <= 0 {
			problems = append(problems, "server.upload_max_mb must be > 0")
		}
		needDB()
	case "ingest", "reconcile", "score", "migrate":
		needDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 32 {
		problems = append(problems, "ingest.concurrency must be between 1 and 32")
	}
	if c.Reconcile.ToleranceDays < 0 || c.Reconcile.ToleranceDays > 30 {
		problems = append(problems, "reconcile.tolerance_days must be between 0 and 30")
	}

	if len(problems) > 0 {
		return eris.New(fmt.Sprintf("config: invalid for mode %s: %s", mode, strings.Join(problems, "; ")))
	}
	return nil
}
