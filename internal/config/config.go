// Package config loads the gateway's configuration from the environment
// into a typed struct, reporting precise errors on startup when a required
// field is missing or malformed.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host  string
	Port  int
	Debug bool

	UploadCapBytes    int64
	AllowedExtensions []string
	NormalizerSlots   int
	NormalizerWorkers int
	FFmpegPath        string

	AuthEnabled      bool
	CacheEnabled     bool
	CacheTTL         time.Duration
	RedisURL         string
	CredentialDBPath string

	DefaultTargetLanguages []string
	DefaultUserPrompt      string

	SelectionStrategy   string
	HealthCheckInterval time.Duration
	MaxRetries          int
	FailureThreshold    int

	MaxTokens   int
	Temperature float64

	// Single-backend fallback fields. If Backends is non-empty it wins.
	BackendURL        string
	BackendModel      string
	BackendCredential string

	Backends     []BackendConfig
	BootstrapFile string

	TempDir string
}

// BackendConfig mirrors the wire shape of one entry in the LINGUALINK_BACKENDS
// JSON list or the optional bootstrap YAML file.
type BackendConfig struct {
	Name           string   `json:"name" yaml:"name"`
	URL            string   `json:"url" yaml:"url"`
	Model          string   `json:"model_name" yaml:"model_name"`
	Credential     string   `json:"api_key" yaml:"api_key"`
	Weight         int      `json:"weight" yaml:"weight"`
	MaxConnections int      `json:"max_connections" yaml:"max_connections"`
	TimeoutSeconds float64  `json:"timeout" yaml:"timeout"`
	Priority       int      `json:"priority" yaml:"priority"`
	Tags           []string `json:"tags" yaml:"tags"`
}

func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.TimeoutSeconds * float64(time.Second))
}

var defaultAllowedExtensions = []string{"wav", "opus", "ogg", "mp3", "flac", "m4a", "aac"}

func Load() (Config, error) {
	cfg := Config{
		Host:              env("LINGUALINK_HOST", "0.0.0.0"),
		Debug:             boolEnv("LINGUALINK_DEBUG", false),
		UploadCapBytes:    intEnv64("LINGUALINK_MAX_UPLOAD_SIZE", 16*1024*1024),
		NormalizerSlots:   intEnv("LINGUALINK_MAX_CONCURRENT_AUDIO_CONVERSIONS", 10),
		NormalizerWorkers: intEnv("LINGUALINK_AUDIO_CONVERTER_WORKERS", 5),
		FFmpegPath:        env("LINGUALINK_FFMPEG_PATH", "ffmpeg"),
		AuthEnabled:       boolEnv("LINGUALINK_AUTH_ENABLED", true),
		CacheEnabled:      boolEnv("LINGUALINK_CACHE_ENABLED", false),
		RedisURL:          env("LINGUALINK_REDIS_URL", "redis://localhost:6379/0"),
		CredentialDBPath:  env("LINGUALINK_DB_PATH", "data/lingualink.sqlite"),
		DefaultUserPrompt: env("LINGUALINK_DEFAULT_USER_QUERY", "Please process the following audio."),
		SelectionStrategy: env("LINGUALINK_STRATEGY", "round_robin"),
		MaxRetries:        intEnv("LINGUALINK_MAX_RETRIES", 2),
		FailureThreshold:  intEnv("LINGUALINK_FAILURE_THRESHOLD", 3),
		MaxTokens:         intEnv("LINGUALINK_MAX_TOKENS", 200),
		Temperature:       floatEnv("LINGUALINK_TEMPERATURE", 0),
		BackendURL:        env("LINGUALINK_BACKEND_URL", ""),
		BackendModel:      env("LINGUALINK_MODEL_NAME", ""),
		BackendCredential: env("LINGUALINK_BACKEND_API_KEY", ""),
		BootstrapFile:     env("LINGUALINK_BOOTSTRAP_FILE", ""),
		TempDir:           env("LINGUALINK_TEMP_DIR", os.TempDir()),
	}

	port, err := intEnvErr("LINGUALINK_PORT", 5000)
	if err != nil {
		return Config{}, fmt.Errorf("config: LINGUALINK_PORT: %w", err)
	}
	cfg.Port = port

	ttlSeconds, err := intEnvErr("LINGUALINK_CACHE_TTL_SECONDS", 300)
	if err != nil {
		return Config{}, fmt.Errorf("config: LINGUALINK_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.CacheTTL = time.Duration(ttlSeconds) * time.Second

	healthSeconds, err := intEnvErr("LINGUALINK_HEALTH_CHECK_INTERVAL", 30)
	if err != nil {
		return Config{}, fmt.Errorf("config: LINGUALINK_HEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.HealthCheckInterval = time.Duration(healthSeconds) * time.Second

	if v := strings.TrimSpace(env("LINGUALINK_ALLOWED_EXTENSIONS", "")); v != "" {
		cfg.AllowedExtensions = splitAndTrim(v)
	} else {
		cfg.AllowedExtensions = defaultAllowedExtensions
	}

	if v := strings.TrimSpace(env("LINGUALINK_DEFAULT_TARGET_LANGUAGES", "")); v != "" {
		cfg.DefaultTargetLanguages = splitAndTrim(v)
	} else {
		cfg.DefaultTargetLanguages = []string{"English", "Japanese"}
	}

	if v := strings.TrimSpace(env("LINGUALINK_BACKENDS", "")); v != "" {
		var backends []BackendConfig
		if err := json.Unmarshal([]byte(v), &backends); err != nil {
			return Config{}, fmt.Errorf("config: LINGUALINK_BACKENDS: invalid JSON: %w", err)
		}
		for i, b := range backends {
			if err := validateBackend(b); err != nil {
				return Config{}, fmt.Errorf("config: LINGUALINK_BACKENDS[%d] (%s): %w", i, b.Name, err)
			}
		}
		cfg.Backends = backends
	}

	if len(cfg.Backends) == 0 && cfg.BackendURL == "" && cfg.BootstrapFile == "" {
		return Config{}, errors.New("config: no backends configured: set LINGUALINK_BACKENDS, LINGUALINK_BACKEND_URL, or LINGUALINK_BOOTSTRAP_FILE")
	}

	return cfg, nil
}

func validateBackend(b BackendConfig) error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("missing name")
	}
	if strings.TrimSpace(b.URL) == "" {
		return errors.New("missing url")
	}
	if strings.TrimSpace(b.Model) == "" {
		return errors.New("missing model_name")
	}
	return nil
}

// EffectiveBackends returns the configured multi-backend list, or a single
// synthesized backend built from the legacy single-backend fields if no list
// was provided.
func (c Config) EffectiveBackends() []BackendConfig {
	if len(c.Backends) > 0 {
		return c.Backends
	}
	return []BackendConfig{{
		Name:           "default",
		URL:            c.BackendURL,
		Model:          c.BackendModel,
		Credential:     c.BackendCredential,
		Weight:         1,
		MaxConnections: 50,
		TimeoutSeconds: 30,
		Priority:       0,
	}}
}

// SingleBackendMode reports whether the dispatcher should bypass the
// selector entirely, since there is nothing to select among.
func (c Config) SingleBackendMode() bool {
	return len(c.Backends) <= 1
}

func env(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intEnv(key string, def int) int {
	v, err := intEnvErr(key, def)
	if err != nil {
		return def
	}
	return v
}

func intEnvErr(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func floatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func intEnv64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
