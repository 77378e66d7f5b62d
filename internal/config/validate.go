package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/natal-cli/internal/aspect"
	"github.com/sells-group/natal-cli/internal/model"
)

// Validate checks the settings a command mode depends on. Modes are
// "chart", "batch", "serve", "cache" and "ephemeris".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "chart", "batch", "serve":
		errs = append(errs, c.validateChart()...)
		if mode == "batch" && (c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64) {
			errs = append(errs, "batch.concurrency must be between 1 and 64")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
			if c.Monitoring.DegradedRateThreshold < 0 || c.Monitoring.DegradedRateThreshold > 1 {
				errs = append(errs, "monitoring.degraded_rate_threshold must be between 0 and 1")
			}
		}
	case "cache":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "ephemeris":
		if c.Ephemeris.DataDir == "" {
			errs = append(errs, "ephemeris.data_dir is required")
		}
		if c.Ephemeris.SourceURL == "" {
			errs = append(errs, "ephemeris.source_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Geocode.CacheEnabled && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required when geocode.cache_enabled is set")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateChart() []string {
	var errs []string
	if _, err := model.ParseHouseSystem(c.Chart.HouseSystem); err != nil {
		errs = append(errs, fmt.Sprintf("chart.house_system %q is not supported", c.Chart.HouseSystem))
	}
	if _, err := aspect.Table(c.Chart.AspectSet); err != nil {
		errs = append(errs, fmt.Sprintf("chart.aspect_set %q is not supported", c.Chart.AspectSet))
	}
	if _, err := model.ParseBodies(c.Chart.Bodies); err != nil {
		errs = append(errs, "chart.bodies: "+err.Error())
	}
	return errs
}
