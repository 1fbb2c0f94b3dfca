package mux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearMuxEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MUX_EDITOR", "MUX_SHOW_WARNING", "MUX_ELEVATE", "MUX_GITHUB_TOKEN",
		"MUX_GITHUB_API", "MUX_REF", "MUX_CACHE_DIR", "MUX_DEBUG", "GITHUB_TOKEN",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigMissingFileIsEmpty(t *testing.T) {
	clearMuxEnv(t)
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "mux.toml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Backends)
	assert.False(t, cfg.General.ShowWarning)
	assert.Empty(t, cfg.General.Editor)
}

func TestLoadConfigParsesTOML(t *testing.T) {
	clearMuxEnv(t)
	path := filepath.Join(t.TempDir(), "mux.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[general]
editor = "nvim"
show_warning = true

[colors]
error = "#FF0000"

[[backends]]
name = "pacman"
sudo = true
query_style = "native"
install = ["-S"]
query = ["-Q"]
info = ["-Qi"]
sync_info = ["-Si"]

[[backends]]
name = "flatpak"
query_style = "list"
list = ["list"]
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "nvim", cfg.General.Editor)
	assert.True(t, cfg.General.ShowWarning)
	assert.Equal(t, "#FF0000", cfg.Colors.Error)
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "pacman", cfg.Backends[0].Name)
	assert.Equal(t, []string{"-Si"}, cfg.Backends[0].SyncInfo)

	table, err := NewBackendTable(cfg.Backends)
	require.NoError(t, err)
	assert.Equal(t, "flatpak", table.AppStore().Name)
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	clearMuxEnv(t)
	path := filepath.Join(t.TempDir(), "mux.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general\neditor ="), 0o644))
	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearMuxEnv(t)
	path := filepath.Join(t.TempDir(), "mux.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general]\neditor = \"nano\"\n"), 0o644))
	t.Setenv("MUX_EDITOR", "vim")
	t.Setenv("MUX_SHOW_WARNING", "true")
	t.Setenv("GITHUB_TOKEN", "ghp_fallback")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "vim", cfg.General.Editor)
	assert.True(t, cfg.General.ShowWarning)
	assert.Equal(t, "ghp_fallback", cfg.General.GithubToken)

	t.Setenv("MUX_GITHUB_TOKEN", "ghp_explicit")
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ghp_explicit", cfg.General.GithubToken)

	t.Setenv("MUX_SHOW_WARNING", "maybe")
	_, err = loadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverridesIgnoreUnprefixedVariables(t *testing.T) {
	clearMuxEnv(t)
	path := filepath.Join(t.TempDir(), "mux.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general]\neditor = \"vim\"\nref = \"main\"\n"), 0o644))
	t.Setenv("DEBUG", "*")
	t.Setenv("EDITOR", "nano")
	t.Setenv("REF", "dev")
	t.Setenv("SHOW_WARNING", "sometimes")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "vim", cfg.General.Editor)
	assert.Equal(t, "main", cfg.General.Ref)
	assert.False(t, cfg.General.Debug)
	assert.False(t, cfg.General.ShowWarning)

	t.Setenv("MUX_GITHUB_API", "https://ghe.example.com/api/v3")
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.General.GithubAPI)
}

func TestWithDefaults(t *testing.T) {
	cfg := (&Config{}).withDefaults()
	assert.Equal(t, "sudo", cfg.General.Elevate)
	assert.Equal(t, defaultGithubAPI, cfg.General.GithubAPI)
	assert.Equal(t, "main", cfg.General.Ref)
	assert.NotEmpty(t, cfg.General.CacheDir)
	assert.Equal(t, "python3", cfg.Language.Python)
	assert.Equal(t, []string{"pip"}, cfg.Language.Pip)

	custom := (&Config{General: GeneralConfig{Elevate: "doas", Ref: "master"}}).withDefaults()
	assert.Equal(t, "doas", custom.General.Elevate)
	assert.Equal(t, "master", custom.General.Ref)
}

func TestEnsureConfigFileWritesTemplateOnce(t *testing.T) {
	clearMuxEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "mux.toml")

	created, err := ensureConfigFile(path)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	table, err := NewBackendTable(cfg.Backends)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Len())
	assert.True(t, cfg.General.ShowWarning)

	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o644))
	created, err = ensureConfigFile(path)
	require.NoError(t, err)
	assert.False(t, created)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "# mine\n", string(data))
}

func TestResolveEditor(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "")
	_, err := resolveEditor(&Config{})
	assert.Error(t, err)

	t.Setenv("EDITOR", "vi")
	ed, err := resolveEditor(&Config{})
	require.NoError(t, err)
	assert.Equal(t, "vi", ed)

	ed, _ = resolveEditor(&Config{General: GeneralConfig{Editor: "micro"}})
	assert.Equal(t, "micro", ed)
}
