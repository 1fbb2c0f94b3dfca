package mux

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanImports(t *testing.T) {
	src := `#!/usr/bin/env python3
import os, sys
import numpy as np
from requests.adapters import HTTPAdapter
from . import local
import xml.etree.ElementTree as ET  # stdlib
    import rich
# import commented
x = "import nothing"
import os
`
	mods, err := scanImports(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"os", "sys", "numpy", "requests", "xml", "rich"}, mods)
}

func TestEnsureModules(t *testing.T) {
	lang := &fakeLang{
		builtin:   map[string]bool{"os": true},
		installed: map[string]bool{"requests": true},
	}
	out, err := ensureModules(context.Background(), lang, []string{"os", "requests", "rich"})
	require.NoError(t, err)
	assert.Equal(t, map[string]ModuleOutcome{
		"os": ModuleBuiltin, "requests": ModulePresent, "rich": ModuleInstalled,
	}, out)
	assert.Equal(t, []string{"rich"}, lang.installs)
}

type failingLang struct{ fakeLang }

func (failingLang) Install(context.Context, string) error { return errors.New("no network") }

func TestEnsureModulesReportsFailures(t *testing.T) {
	lang := &failingLang{fakeLang{builtin: map[string]bool{}, installed: map[string]bool{}}}
	out, err := ensureModules(context.Background(), lang, []string{"rich", "numpy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rich, numpy")
	assert.Equal(t, ModuleFailed, out["numpy"])
}

func TestPipInstallerCommands(t *testing.T) {
	r := newFakeRunner()
	r.succeed("Name: requests\n", "pip", "show", "requests")
	p := &PipInstaller{Runner: r, Python: "python3", Pip: []string{"pip"}}
	ctx := context.Background()

	assert.True(t, p.IsInstalled(ctx, "requests"))
	assert.False(t, p.IsInstalled(ctx, "rich"))
	assert.False(t, p.IsBuiltin(ctx, "rich"))

	require.NoError(t, p.Install(ctx, "rich"))
	require.Len(t, r.runs, 1)
	assert.Equal(t, []string{"pip", "install", "rich"}, r.runs[0].argv)
	assert.False(t, r.runs[0].elevate)

	last := r.queries[len(r.queries)-1]
	assert.Equal(t, []string{"python3", "-c", builtinProbe, "rich"}, last)
	assert.Equal(t, []string{"pip"}, p.Pip, "argv building must not grow the configured slice")
}
