package router

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/eventrouter/internal/condition"
	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
)

// Delivery strategy names accepted in HostConfig.RouterType.
const (
	StrategyHTTP        = "HTTP"
	StrategyAuthHeaders = "AUTH_HEADERS"
	StrategyLRS         = "XAPI_LRS"
	StrategyKafka       = "KAFKA"
)

// Config is the routing configuration of one backend, optionally scoped to a
// tenant (enterprise). An empty Tenant is the backend default.
type Config struct {
	ID         int64        `yaml:"id,omitempty" json:"id,omitempty"`
	Backend    string       `yaml:"backend" json:"backend"`
	Tenant     string       `yaml:"tenant,omitempty" json:"tenant,omitempty"`
	Enabled    bool         `yaml:"enabled" json:"enabled"`
	ModifiedAt time.Time    `yaml:"modified,omitempty" json:"modified_at,omitempty"`
	Hosts      []HostConfig `yaml:"hosts" json:"hosts"`
}

// HostConfig is one destination and the events it accepts.
type HostConfig struct {
	MatchParams  map[string]interface{} `yaml:"match_params,omitempty" json:"match_params,omitempty"`
	Connection   Connection             `yaml:"host_configurations" json:"host_configurations"`
	OverrideArgs map[string]interface{} `yaml:"override_args,omitempty" json:"override_args,omitempty"`
	RouterType   string                 `yaml:"router_type,omitempty" json:"router_type,omitempty"`
}

// Connection holds the parameters a Sender needs to reach a destination.
type Connection struct {
	URL        string            `yaml:"url" json:"url"`
	Headers    map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	AuthScheme string            `yaml:"auth_scheme,omitempty" json:"auth_scheme,omitempty"`
	APIKey     string            `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Username   string            `yaml:"username,omitempty" json:"username,omitempty"`
	Password   string            `yaml:"password,omitempty" json:"password,omitempty"`
	Topic      string            `yaml:"topic,omitempty" json:"topic,omitempty"`
}

// Strategy returns the normalized router type, defaulting to HTTP.
func (h HostConfig) Strategy() string {
	if h.RouterType == "" {
		return StrategyHTTP
	}
	return strings.ToUpper(h.RouterType)
}

// Matches reports whether every match param resolves in original and equals
// the configured value. An empty param set matches everything.
func (h HostConfig) Matches(original map[string]interface{}) bool {
	for path, want := range h.MatchParams {
		got, ok := event.Resolve(original, path)
		if !ok || !condition.Equal(got, want) {
			return false
		}
	}
	return true
}

// AllowedHosts returns the hosts that accept original, in declared order.
// The result is never nil.
func (c *Config) AllowedHosts(original map[string]interface{}) []HostConfig {
	allowed := make([]HostConfig, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		if h.Matches(original) {
			allowed = append(allowed, h)
		}
	}
	return allowed
}

// Key identifies a config by backend and tenant.
type Key struct {
	Backend string
	Tenant  string
}

func (k Key) String() string {
	if k.Tenant == "" {
		return k.Backend
	}
	return k.Backend + "/" + k.Tenant
}

// Key returns the lookup key of c.
func (c *Config) Key() Key { return Key{Backend: c.Backend, Tenant: c.Tenant} }

// Validate collects every structural problem in c.
func (c *Config) Validate(known map[string]bool) error {
	var errs []error
	if strings.TrimSpace(c.Backend) == "" {
		errs = append(errs, errors.New("backend is required"))
	}
	for i, h := range c.Hosts {
		prefix := fmt.Sprintf("hosts[%d]", i)
		strategy := h.Strategy()
		if known != nil && !known[strategy] {
			errs = append(errs, fmt.Errorf("%s: unknown router_type %q", prefix, h.RouterType))
		}
		switch strategy {
		case StrategyKafka:
			if h.Connection.Topic == "" {
				errs = append(errs, fmt.Errorf("%s: topic is required for %s", prefix, StrategyKafka))
			}
		default:
			if h.Connection.URL == "" {
				errs = append(errs, fmt.Errorf("%s: url is required", prefix))
			}
		}
		if strategy == StrategyAuthHeaders && h.Connection.AuthScheme != "" && h.Connection.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s: api_key is required when auth_scheme is set", prefix))
		}
		for path := range h.MatchParams {
			if strings.TrimSpace(path) == "" {
				errs = append(errs, fmt.Errorf("%s: empty match_params key", prefix))
			}
		}
	}
	return errors.Join(errs...)
}

// Merge returns a shallow copy of ev with overrides applied on top.
func Merge(ev, overrides map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(ev)+len(overrides))
	for k, v := range ev {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
