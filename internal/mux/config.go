package mux

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultGithubAPI = "https://api.github.com"
	defaultRef       = "main"
	defaultElevate   = "sudo"
)

// Config is the decoded ~/.config/mux/mux.toml.
type Config struct {
	General  GeneralConfig   `toml:"general"`
	Colors   ColorConfig     `toml:"colors"`
	Language LanguageConfig  `toml:"language"`
	Backends []BackendConfig `toml:"backends"`
}

// GeneralConfig holds the [general] section. Every field can be overridden
// from the environment with a MUX_ prefix (MUX_SHOW_WARNING, MUX_CACHE_DIR).
type GeneralConfig struct {
	Editor      string `toml:"editor,omitempty" split_words:"true"`
	ShowWarning bool   `toml:"show_warning" split_words:"true"`
	Elevate     string `toml:"elevate,omitempty" split_words:"true"`
	GithubToken string `toml:"github_token,omitempty" split_words:"true"`
	GithubAPI   string `toml:"github_api,omitempty" split_words:"true"`
	Ref         string `toml:"ref,omitempty" split_words:"true"`
	CacheDir    string `toml:"cache_dir,omitempty" split_words:"true"`
	Debug       bool   `toml:"debug,omitempty" split_words:"true"`
}

// ColorConfig overrides the output palette with #RRGGBB values.
type ColorConfig struct {
	Info      string `toml:"info,omitempty"`
	Warn      string `toml:"warn,omitempty"`
	Error     string `toml:"error,omitempty"`
	Success   string `toml:"success,omitempty"`
	Arrow     string `toml:"arrow,omitempty"`
	Note      string `toml:"note,omitempty"`
	Highlight string `toml:"highlight,omitempty"`
}

// LanguageConfig names the interpreter and installer used for pip entries.
type LanguageConfig struct {
	Python string   `toml:"python,omitempty"`
	Pip    []string `toml:"pip,omitempty"`
}

// BackendConfig is one [[backends]] table. Argument lists are appended to
// the backend command; the package name, when any, goes last.
type BackendConfig struct {
	Name       string   `toml:"name"`
	Command    string   `toml:"command,omitempty"`
	Sudo       bool     `toml:"sudo,omitempty"`
	QueryStyle string   `toml:"query_style"`
	Install    []string `toml:"install,omitempty"`
	Remove     []string `toml:"remove,omitempty"`
	Update     []string `toml:"update,omitempty"`
	UpgradeAll []string `toml:"upgrade_all,omitempty"`
	Query      []string `toml:"query,omitempty"`
	List       []string `toml:"list,omitempty"`
	Info       []string `toml:"info,omitempty"`
	SyncInfo   []string `toml:"sync_info,omitempty"`
	Search     []string `toml:"search,omitempty"`
}

// defaultConfigPath returns ~/.config/mux/mux.toml.
func defaultConfigPath() (string, error) {
	if p := os.Getenv("MUX_CONFIG"); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("failed to locate config directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mux", "mux.toml"), nil
}

// loadConfig reads path. A missing file is not an error: the result is an
// empty configuration with environment overrides applied.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		debugf("config %s not found, using empty defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			debugf("config %s: ignoring unknown key %s", path, key.String())
		}
	}

	if err := mergeEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeEnvOverrides applies MUX_* variables on top of the file values.
func mergeEnvOverrides(cfg *Config) error {
	if err := envconfig.Process("MUX", &cfg.General); err != nil {
		return fmt.Errorf("invalid MUX_* environment override: %w", err)
	}
	if cfg.General.GithubToken == "" {
		cfg.General.GithubToken = os.Getenv("GITHUB_TOKEN")
	}
	return nil
}

// withDefaults fills the knobs that have a sensible fallback. Backends and
// colors are left as configured.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.General.Elevate == "" {
		out.General.Elevate = defaultElevate
	}
	if out.General.GithubAPI == "" {
		out.General.GithubAPI = defaultGithubAPI
	}
	if out.General.Ref == "" {
		out.General.Ref = defaultRef
	}
	if out.General.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			out.General.CacheDir = filepath.Join(dir, "mux")
		} else {
			out.General.CacheDir = filepath.Join(os.TempDir(), "mux-cache")
		}
	}
	if out.Language.Python == "" {
		out.Language.Python = "python3"
	}
	if len(out.Language.Pip) == 0 {
		out.Language.Pip = []string{"pip"}
	}
	return &out
}

// defaultTemplate is written by `mux config` when no file exists yet.
func defaultTemplate() *Config {
	return &Config{
		General: GeneralConfig{
			Editor:      "",
			ShowWarning: true,
			Elevate:     defaultElevate,
			Ref:         defaultRef,
		},
		Language: LanguageConfig{Python: "python3", Pip: []string{"pip"}},
		Backends: []BackendConfig{
			{
				Name: "pacman", Sudo: true, QueryStyle: "native",
				Install: []string{"-S"}, Remove: []string{"-R"},
				Update: []string{"-S"}, UpgradeAll: []string{"-Syu"},
				Query: []string{"-Q"}, Info: []string{"-Qi"}, SyncInfo: []string{"-Si"},
				Search: []string{"-Ss"},
			},
			{
				Name: "yay", QueryStyle: "exit",
				Install: []string{"-S"}, Remove: []string{"-R"},
				Update: []string{"-S"}, UpgradeAll: []string{"-Syu"},
				Query: []string{"-Qi"}, Search: []string{"-Ss"},
			},
			{
				Name: "paru", QueryStyle: "exit",
				Install: []string{"-S"}, Remove: []string{"-R"},
				Update: []string{"-S"}, UpgradeAll: []string{"-Syu"},
				Query: []string{"-Qi"}, Search: []string{"-Ss"},
			},
			{
				Name: "flatpak", QueryStyle: "list",
				Install: []string{"install", "-y", "flathub"}, Remove: []string{"uninstall", "-y"},
				UpgradeAll: []string{"update", "-y"},
				List: []string{"list"}, Search: []string{"search"},
			},
		},
	}
}

const templateHeader = `# mux configuration
#
# [[backends]] are tried in the order listed here.
# query_style: "native" (dedicated query flag plus -Qi/-Si version checks),
#              "exit"   (installed when the query command exits 0),
#              "list"   (installed when the list output mentions the name).
# Every MUX_* environment variable overrides the [general] key of the same name.

`

// saveConfig writes cfg to path, creating parent directories.
func saveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
