package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// populate fills every field tagged `env` in the section structs of v.
//
// Tags:
//
//	env      primary variable name
//	envAlt   fallback variable name
//	default  value used when neither variable is set
//	required "true" fails the load when neither variable is set
func populate(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if sf.Type.Kind() == reflect.Struct {
			if err := populate(fv, lookup); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}

		raw, found := firstSet(lookup, name, sf.Tag.Get("envAlt"))
		if !found {
			if sf.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		if err := assign(fv.Addr().Interface(), raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// firstSet returns the trimmed value of the first non-blank variable.
func firstSet(lookup LookupFunc, names ...string) (string, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v, ok := lookup(name); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// assign parses raw into the value dst points to.
func assign(dst any, raw string) error {
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		*p = d
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		*p = n
	case *int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		*p = b
	case *[]string:
		*p = splitList(raw)
	default:
		return fmt.Errorf("unsupported field type %T", dst)
	}
	return nil
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// problems collects every validation failure so they are reported together.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

// Validate checks every section and reports all failures in one error.
func (c *Config) Validate() error {
	var p problems
	c.Server.validate(&p)
	c.Database.validate(&p)
	c.Import.validate(&p)
	c.Security.validate(&p)
	c.Logging.validate(&p)
	c.Metrics.validate(&p)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func (s *ServerConfig) validate(p *problems) {
	p.check(s.Port > 0 && s.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", s.Port)
	p.check(s.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(s.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
}

func (d *DatabaseConfig) validate(p *problems) {
	p.check(d.URL != "", "DATABASE_URL is required")
	p.check(d.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	p.check(d.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(d.MaxConns >= d.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns)
}

func (i *ImportConfig) validate(p *problems) {
	p.check(i.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(i.MaxRows > 0, "IMPORT_MAX_ROWS must be positive")
	p.check(i.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive")
	p.check(i.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive")
	p.check(i.ReconcileTimeout > 0, "IMPORT_RECONCILE_TIMEOUT must be positive")
	p.check(i.CommitTimeout > 0, "IMPORT_COMMIT_TIMEOUT must be positive")
}

func (s *SecurityConfig) validate(p *problems) {
	p.check(!s.RequireAuth || s.JWTSecret != "",
		"AUTH_REQUIRED is true but AUTH_JWT_SECRET is empty; configure a signing key or disable auth")
	p.check(len(s.AllowedRoles) > 0, "AUTH_ALLOWED_ROLES must list at least one role")
	p.check(s.RoleClaim != "", "AUTH_ROLE_CLAIM must not be empty")
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

func (l *LoggingConfig) validate(p *problems) {
	p.check(slices.Contains(logLevels, strings.ToLower(l.Level)),
		"LOG_LEVEL (%q) must be one of: %s", l.Level, strings.Join(logLevels, ", "))
	p.check(slices.Contains(logFormats, strings.ToLower(l.Format)),
		"LOG_FORMAT (%q) must be one of: %s", l.Format, strings.Join(logFormats, ", "))
}

func (m *MetricsConfig) validate(p *problems) {
	p.check(!m.Enabled || m.Namespace != "", "METRICS_NAMESPACE must not be empty when metrics are enabled")
}

// String renders the config for startup logs. The database URL and the JWT
// signing key are masked.
func (c *Config) String() string {
	const masked = "[MASKED]"
	return fmt.Sprintf("Config{Server: {Addr: %q, RequestTimeout: %s}, "+
		"Database: {URL: %s, MaxConns: %d, MinConns: %d, AutoMigrate: %t}, "+
		"Import: {MaxFileSize: %d, MaxRows: %d, MaxConcurrent: %d, AcceptBibNum: %t}, "+
		"Security: {RequireAuth: %t, JWTSecret: %s, RoleClaim: %q, AllowedRoles: %v}, "+
		"Logging: {Level: %q, Format: %q}, Metrics: {Enabled: %t, Namespace: %q}}",
		c.Server.Addr(), c.Server.RequestTimeout,
		masked, c.Database.MaxConns, c.Database.MinConns, c.Database.AutoMigrate,
		c.Import.MaxFileSize, c.Import.MaxRows, c.Import.MaxConcurrent, c.Import.AcceptBibNum,
		c.Security.RequireAuth, masked, c.Security.RoleClaim, c.Security.AllowedRoles,
		c.Logging.Level, c.Logging.Format, c.Metrics.Enabled, c.Metrics.Namespace,
	)
}
