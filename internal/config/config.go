// Package config reads process configuration from the environment. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePG     = "pg"
	StoreMemory = "memory"
	StoreREST   = "rest"
	StoreFile   = "file"
)

type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	DatabaseURL string

	MenuStore      string
	MenuBackendURL string
	MenuPageLimit  int
	MenuMaxPages   int
	// MenuSeedPath is a fixture loaded into the memory store at startup.
	MenuSeedPath   string

	UIStateStore string
	UIStateDir   string

	AllowlistPath   string
	AuthzModelPath  string
	AuthzPolicyPath string
	AuthzMode       string
	AuthzUnsafe     bool

	// TenantDomains maps a lower-case hostname to a tenant id. When empty the
	// tenants file at TenantsPath is used, and without one the tenant is
	// resolved through iam.tenant_domains.
	TenantDomains map[string]string
	TenantsPath   string
	TrustProxy    bool

	MetricsNamespace string
	ShutdownTimeout  time.Duration
}

var loadDotenv = func(files ...string) error { return godotenv.Load(files...) }

// Load reads .env (if any) and then the environment.
func Load(files ...string) (Config, error) {
	if err := loadDotenv(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Config{
		Env:              getenvDefault("APP_ENV", "development"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		DatabaseURL:      DSNFromEnv(),
		MenuStore:        strings.ToLower(getenvDefault("MENU_STORE", StorePG)),
		MenuBackendURL:   strings.TrimSpace(os.Getenv("MENU_BACKEND_URL")),
		MenuSeedPath:     strings.TrimSpace(os.Getenv("MENU_SEED_PATH")),
		UIStateStore:     strings.ToLower(getenvDefault("UI_STATE_STORE", StorePG)),
		UIStateDir:       getenvDefault("UI_STATE_DIR", "var/ui-state"),
		AllowlistPath:    os.Getenv("ALLOWLIST_PATH"),
		AuthzModelPath:   os.Getenv("AUTHZ_MODEL_PATH"),
		AuthzPolicyPath:  os.Getenv("AUTHZ_POLICY_PATH"),
		AuthzMode:        os.Getenv("AUTHZ_MODE"),
		AuthzUnsafe:      os.Getenv("AUTHZ_UNSAFE_ALLOW_DISABLED") == "1",
		TenantsPath:      strings.TrimSpace(os.Getenv("TENANTS_PATH")),
		TrustProxy:       os.Getenv("TRUST_PROXY") == "1",
		MetricsNamespace: getenvDefault("METRICS_NAMESPACE", "navtree"),
	}

	var err error
	if c.MenuPageLimit, err = getenvInt("MENU_PAGE_LIMIT", 100); err != nil {
		return Config{}, err
	}
	if c.MenuMaxPages, err = getenvInt("MENU_MAX_PAGES", 1000); err != nil {
		return Config{}, err
	}
	if c.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if c.TenantDomains, err = parseTenantDomains(os.Getenv("TENANT_DOMAINS")); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c Config) Validate() error {
	switch c.MenuStore {
	case StorePG, StoreMemory:
	case StoreREST:
		if c.MenuBackendURL == "" {
			return errors.New("config: MENU_STORE=rest requires MENU_BACKEND_URL")
		}
	default:
		return fmt.Errorf("config: invalid MENU_STORE %q (expected pg|memory|rest)", c.MenuStore)
	}
	switch c.UIStateStore {
	case StorePG, StoreFile:
	default:
		return fmt.Errorf("config: invalid UI_STATE_STORE %q (expected pg|file)", c.UIStateStore)
	}
	if c.MenuPageLimit <= 0 || c.MenuMaxPages <= 0 {
		return errors.New("config: MENU_PAGE_LIMIT and MENU_MAX_PAGES must be positive")
	}
	return nil
}

// NeedsDatabase reports whether any configured component talks to postgres.
func (c Config) NeedsDatabase() bool {
	return c.MenuStore == StorePG || c.UIStateStore == StorePG || (len(c.TenantDomains) == 0 && c.TenantsPath == "")
}

func DSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getenvDefault("DB_HOST", "127.0.0.1")
	port := getenvDefault("DB_PORT", "5432")
	user := getenvDefault("DB_USER", "app")
	pass := getenvDefault("DB_PASSWORD", "app")
	name := getenvDefault("DB_NAME", "navtree")
	sslmode := getenvDefault("DB_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// parseTenantDomains reads "host=tenant,host2=tenant2".
func parseTenantDomains(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		host, tenant, ok := strings.Cut(part, "=")
		host = strings.ToLower(strings.TrimSpace(host))
		tenant = strings.TrimSpace(tenant)
		if !ok || host == "" || tenant == "" {
			return nil, fmt.Errorf("config: invalid TENANT_DOMAINS entry %q", part)
		}
		out[host] = tenant
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}
