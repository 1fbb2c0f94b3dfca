package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendTableKeepsOrder(t *testing.T) {
	table, err := NewBackendTable(defaultTemplate().Backends)
	require.NoError(t, err)

	var names []string
	for _, b := range table.All() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"pacman", "yay", "paru", "flatpak"}, names)
	assert.Equal(t, "pacman", table.Native().Name)
	assert.Equal(t, "flatpak", table.AppStore().Name)

	pacman, ok := table.Lookup("pacman")
	require.True(t, ok)
	assert.Equal(t, "pacman", pacman.Command)
	assert.True(t, pacman.Sudo)
	assert.Equal(t, QueryNative, pacman.Style)

	flatpak, _ := table.Lookup("flatpak")
	assert.False(t, flatpak.Sudo)
	assert.False(t, flatpak.TracksVersions())
}

func TestNewBackendTableRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfgs []BackendConfig
		want string
	}{
		{"missing name", []BackendConfig{{Install: []string{"-S"}}}, "name is required"},
		{"duplicate", []BackendConfig{{Name: "yay"}, {Name: "yay"}}, "duplicate backend"},
		{"bad style", []BackendConfig{{Name: "zypper", QueryStyle: "rpm"}}, "unknown query_style"},
		{"list without list", []BackendConfig{{Name: "flatpak", QueryStyle: "list"}}, "needs a list command"},
		{"native without info", []BackendConfig{{Name: "pacman", QueryStyle: "native", Query: []string{"-Q"}}}, "needs info and sync_info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBackendTable(tt.cfgs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBackendArgvUsesCommand(t *testing.T) {
	table := newTestTable(t, BackendConfig{Name: "aur", Command: "paru", Install: []string{"-S", "--needed"}})
	b, _ := table.Lookup("aur")

	assert.Equal(t, []string{"paru", "-S", "--needed", "htop"}, b.argv(b.Install, "htop"))
	assert.Equal(t, []string{"paru", "-S", "--needed"}, b.argv(b.Install, ""))
}

func TestEmptyTable(t *testing.T) {
	table := newTestTable(t)
	assert.Zero(t, table.Len())
	assert.Nil(t, table.Native())
	assert.Nil(t, table.AppStore())
}
