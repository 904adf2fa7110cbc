package config

import (
	"encoding/base64"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexaerp/authd/internal/autherr"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ShutdownTimeout    string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// postgres | memory (memory sólo dev/test)
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis. El índice de revocación y los contadores de
		// rate limiting viven acá: en multi-nodo tiene que ser redis.
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// base64(>=32 bytes). Normalmente llega por env, no por YAML.
		SigningKey   string `yaml:"signing_key"`
		Algorithm    string `yaml:"algorithm"`
		AccessTTL    string `yaml:"access_ttl"`
		RefreshTTL   string `yaml:"refresh_ttl"`
		TwoFactorTTL string `yaml:"two_factor_ttl"`
		Leeway       string `yaml:"leeway"`
	} `yaml:"jwt"`

	Guard struct {
		// token | session
		Driver     string `yaml:"driver"`
		SessionTTL string `yaml:"session_ttl"`
	} `yaml:"guard"`

	Rate struct {
		Login struct {
			Limit          int    `yaml:"limit"`
			Window         string `yaml:"window"`
			AlertThreshold int    `yaml:"alert_threshold"`
		} `yaml:"login"`
		LoginIP struct {
			Limit          int    `yaml:"limit"`
			Window         string `yaml:"window"`
			AlertThreshold int    `yaml:"alert_threshold"`
		} `yaml:"login_ip"`
		TwoFactor struct {
			Limit          int    `yaml:"limit"`
			Window         string `yaml:"window"`
			AlertThreshold int    `yaml:"alert_threshold"`
		} `yaml:"two_factor"`
	} `yaml:"rate"`

	TwoFactor struct {
		// Etiqueta del emisor en el otpauth:// URL.
		Issuer string `yaml:"issuer"`
	} `yaml:"two_factor"`

	Security struct {
		// base64(32 bytes); cifra los secrets TOTP en reposo.
		SecretBoxMasterKey string `yaml:"secretbox_master_key"`
	} `yaml:"security"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "authd"
	}
	if c.JWT.Algorithm == "" {
		c.JWT.Algorithm = "HS256"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "168h" // 7d
	}
	if c.JWT.TwoFactorTTL == "" {
		c.JWT.TwoFactorTTL = "5m"
	}
	if c.JWT.Leeway == "" {
		c.JWT.Leeway = "30s"
	}
	if c.Guard.Driver == "" {
		c.Guard.Driver = "token"
	}
	if c.Guard.SessionTTL == "" {
		c.Guard.SessionTTL = "12h"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 5
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "15m"
	}
	if c.Rate.Login.AlertThreshold == 0 {
		c.Rate.Login.AlertThreshold = 20
	}
	if c.Rate.LoginIP.Limit == 0 {
		c.Rate.LoginIP.Limit = 30
	}
	if c.Rate.LoginIP.Window == "" {
		c.Rate.LoginIP.Window = "15m"
	}
	if c.Rate.LoginIP.AlertThreshold == 0 {
		c.Rate.LoginIP.AlertThreshold = 100
	}
	if c.Rate.TwoFactor.Limit == 0 {
		c.Rate.TwoFactor.Limit = 5
	}
	if c.Rate.TwoFactor.Window == "" {
		c.Rate.TwoFactor.Window = "5m"
	}
	if c.Rate.TwoFactor.AlertThreshold == 0 {
		c.Rate.TwoFactor.AlertThreshold = 15
	}
	if c.TwoFactor.Issuer == "" {
		c.TwoFactor.Issuer = "NexaERP"
	}

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_KEY"); ok {
		c.JWT.SigningKey = v
	}
	if v, ok := getEnvStr("JWT_ALGORITHM"); ok {
		c.JWT.Algorithm = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvStr("JWT_TWO_FACTOR_TTL"); ok {
		c.JWT.TwoFactorTTL = v
	}

	// GUARD
	if v, ok := getEnvStr("GUARD_DRIVER"); ok {
		c.Guard.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("GUARD_SESSION_TTL"); ok {
		c.Guard.SessionTTL = v
	}

	// RATE
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_ALERT_THRESHOLD"); ok {
		c.Rate.Login.AlertThreshold = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_IP_LIMIT"); ok {
		c.Rate.LoginIP.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_IP_WINDOW"); ok {
		c.Rate.LoginIP.Window = v
	}
	if v, ok := getEnvInt("RATE_2FA_LIMIT"); ok {
		c.Rate.TwoFactor.Limit = v
	}
	if v, ok := getEnvStr("RATE_2FA_WINDOW"); ok {
		c.Rate.TwoFactor.Window = v
	}

	// TWO_FACTOR
	if v, ok := getEnvStr("TWO_FACTOR_ISSUER"); ok {
		c.TwoFactor.Issuer = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}

	// FLAGS
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}

// Validate corta el arranque temprano: una config rota se detecta acá y
// no a mitad de un login.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return &autherr.ConfigError{Field: "storage.driver", Reason: "unknown driver " + c.Storage.Driver}
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return &autherr.ConfigError{Field: "storage.dsn", Reason: "required for postgres driver"}
	}

	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return &autherr.ConfigError{Field: "cache.kind", Reason: "unknown kind " + c.Cache.Kind}
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return &autherr.ConfigError{Field: "cache.redis.addr", Reason: "required for redis cache"}
	}

	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return &autherr.ConfigError{Field: "jwt.issuer", Reason: "required"}
	}
	key, err := c.SigningKey()
	if err != nil {
		return err
	}
	if len(key) < 32 {
		return &autherr.ConfigError{Field: "jwt.signing_key", Reason: "must decode to at least 32 bytes"}
	}

	switch c.Guard.Driver {
	case "token", "session":
	default:
		return &autherr.ConfigError{Field: "guard.driver", Reason: "unknown driver " + c.Guard.Driver}
	}

	// string durations
	for field, s := range map[string]string{
		"server.shutdown_timeout":   c.Server.ShutdownTimeout,
		"storage.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"jwt.access_ttl":            c.JWT.AccessTTL,
		"jwt.refresh_ttl":           c.JWT.RefreshTTL,
		"jwt.two_factor_ttl":        c.JWT.TwoFactorTTL,
		"jwt.leeway":                c.JWT.Leeway,
		"guard.session_ttl":         c.Guard.SessionTTL,
		"rate.login.window":         c.Rate.Login.Window,
		"rate.login_ip.window":      c.Rate.LoginIP.Window,
		"rate.two_factor.window":    c.Rate.TwoFactor.Window,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return &autherr.ConfigError{Field: field, Reason: "invalid duration " + s}
		}
	}
	return nil
}

// SigningKey decodifica la clave HMAC. Acepta base64 estándar o URL-safe;
// si no parsea como base64 se usan los bytes crudos (setups legacy).
func (c *Config) SigningKey() ([]byte, error) {
	s := strings.TrimSpace(c.JWT.SigningKey)
	if s == "" {
		return nil, &autherr.ConfigError{Field: "jwt.signing_key", Reason: "required"}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return []byte(s), nil
}

// Dur parsea una duración ya validada; el fallback cubre campos vacíos.
func Dur(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
