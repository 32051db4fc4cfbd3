package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/eventrouter/internal/condition"
)

// Validate checks the config for:
//   - Positive worker, queue and timeout settings
//   - A known router source with its location set
//   - Unique backend names with a known family and a parsable filter
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if cfg.Server.MaxBatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("server.max_batch_size must be positive, got %d", cfg.Server.MaxBatchSize))
	}
	if cfg.Engine.EventWorkers <= 0 {
		errs = append(errs, fmt.Sprintf("engine.event_workers must be positive, got %d", cfg.Engine.EventWorkers))
	}
	if cfg.Engine.QueueDepth <= 0 {
		errs = append(errs, fmt.Sprintf("engine.queue_depth must be positive, got %d", cfg.Engine.QueueDepth))
	}
	if cfg.Engine.EventTimeoutMs <= 0 {
		errs = append(errs, fmt.Sprintf("engine.event_timeout_ms must be positive, got %d", cfg.Engine.EventTimeoutMs))
	}
	if cfg.Engine.SendTimeoutMs <= 0 {
		errs = append(errs, fmt.Sprintf("engine.send_timeout_ms must be positive, got %d", cfg.Engine.SendTimeoutMs))
	}

	switch cfg.Routers.Source {
	case "file":
		if cfg.Routers.File == "" {
			errs = append(errs, "routers.file is required when routers.source is file")
		}
	case "sql":
		if cfg.Routers.DatabaseURL == "" {
			errs = append(errs, "routers.database_url is required when routers.source is sql")
		}
	default:
		errs = append(errs, fmt.Sprintf("routers.source must be file or sql, got %q", cfg.Routers.Source))
	}

	if cfg.Cache.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("cache.ttl must be positive, got %v", cfg.Cache.TTL))
	}
	if cfg.Cache.NegativeTTL < 0 {
		errs = append(errs, fmt.Sprintf("cache.negative_ttl must not be negative, got %v", cfg.Cache.NegativeTTL))
	}

	names := make(map[string]int)
	for i, b := range cfg.Backends {
		loc := fmt.Sprintf("backends[%d]", i)
		if b.Name == "" {
			errs = append(errs, loc+": name is required")
		} else if prev, ok := names[b.Name]; ok {
			errs = append(errs, fmt.Sprintf("duplicate backend %q (first seen at backends[%d], again at %s)", b.Name, prev, loc))
		} else {
			names[b.Name] = i
		}
		if b.Family != "caliper" && b.Family != "xapi" {
			errs = append(errs, fmt.Sprintf("%s: family must be caliper or xapi, got %q", loc, b.Family))
		}
		if b.Filter != "" {
			if _, err := condition.Compile(b.Filter); err != nil {
				errs = append(errs, fmt.Sprintf("%s: filter: %v", loc, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
