package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Host      string
	Port      int
	AuthToken string
	DataDir   string
	ParentPID int
	LogLevel  string
	DevMode   bool

	Runner   RunnerConfig
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
	Defaults Defaults
}

// RunnerConfig points at the local ML inference runner.
type RunnerConfig struct {
	URL     string // defaults to http://localhost:48200
	Timeout int    // request timeout in seconds
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

// Defaults carries the embedded compile-time defaults: media extension
// sets and the initial settings map written to a fresh catalog.
type Defaults struct {
	Extensions struct {
		Video []string `yaml:"video"`
		Photo []string `yaml:"photo"`
	} `yaml:"extensions"`
	Settings map[string]any `yaml:"settings"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool treats "1", "true", "yes" (case-insensitive) as true.
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func defaultDataDir() string {
	if dir := os.Getenv("GAZE_DATA_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "Gaze")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gaze-data"
	}
	return filepath.Join(home, ".local", "share", "Gaze")
}

func Load() *Config {
	var defaults Defaults
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	logLevel := strings.ToUpper(envOr("GAZE_LOG_LEVEL", "INFO"))

	return &Config{
		Host:      envOr("GAZE_HOST", "127.0.0.1"),
		Port:      envInt("GAZE_PORT", 48100),
		AuthToken: os.Getenv("GAZE_AUTH_TOKEN"),
		DataDir:   defaultDataDir(),
		ParentPID: envInt("GAZE_PARENT_PID", 0),
		LogLevel:  logLevel,
		DevMode:   logLevel == "DEBUG" || envBool("GAZE_DEV_MODE"),
		Runner: RunnerConfig{
			URL:     envOr("GAZE_RUNNER_URL", "http://localhost:48200"),
			Timeout: envInt("GAZE_RUNNER_TIMEOUT", 300),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Defaults: defaults,
	}
}

// Paths under the data root. Directories are created on demand.

func (c *Config) DatabasePath() string  { return filepath.Join(c.DataDir, "gaze.db") }
func (c *Config) LockfilePath() string  { return filepath.Join(c.DataDir, "engine.lock") }
func (c *Config) LogPath() string       { return filepath.Join(c.DataDir, "gaze.log") }
func (c *Config) ModelsDir() string     { return c.ensureDir("models") }
func (c *Config) ThumbnailsDir() string { return c.ensureDir("thumbnails") }
func (c *Config) FacesDir() string      { return c.ensureDir("faces") }
func (c *Config) ShardsDir() string     { return c.ensureDir("faiss") }
func (c *Config) TempDir() string       { return c.ensureDir("temp") }

func (c *Config) ensureDir(name string) string {
	dir := filepath.Join(c.DataDir, name)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// IsVideoExt reports whether ext (with leading dot, any case) is a
// recognized video extension.
func (c *Config) IsVideoExt(ext string) bool {
	return containsFold(c.Defaults.Extensions.Video, ext)
}

// IsPhotoExt reports whether ext is a recognized photo extension.
func (c *Config) IsPhotoExt(ext string) bool {
	return containsFold(c.Defaults.Extensions.Photo, ext)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
