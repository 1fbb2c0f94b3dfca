package mux

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type runCall struct {
	argv    []string
	elevate bool
}

// fakeRunner records every invocation. Queries fail unless outputs has an
// entry for the joined argv.
type fakeRunner struct {
	mu      sync.Mutex
	runs    []runCall
	queries [][]string
	outputs map[string]string
	failRun map[string]bool // keyed by argv[0] or the joined argv
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, failRun: map[string]bool{}}
}

func (f *fakeRunner) Run(_ context.Context, argv []string, elevate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, runCall{argv: slices.Clone(argv), elevate: elevate})
	if f.failRun[argv[0]] || f.failRun[strings.Join(argv, " ")] {
		return &CommandError{Argv: argv, Err: errors.New("exit status 1")}
	}
	return nil
}

func (f *fakeRunner) Output(_ context.Context, argv []string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, slices.Clone(argv))
	if out, ok := f.outputs[strings.Join(argv, " ")]; ok {
		return []byte(out), nil
	}
	return nil, &CommandError{Argv: argv, Err: errors.New("exit status 1")}
}

// succeed makes the query argv exit 0 with out.
func (f *fakeRunner) succeed(out string, argv ...string) {
	f.outputs[strings.Join(argv, " ")] = out
}

func (f *fakeRunner) runsOf(command string) int {
	n := 0
	for _, c := range f.runs {
		if c.argv[0] == command {
			n++
		}
	}
	return n
}

func (f *fakeRunner) total() int {
	return len(f.runs) + len(f.queries)
}

func lookPathOf(present ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		if slices.Contains(present, name) {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func templateBackend(t *testing.T, name string) BackendConfig {
	t.Helper()
	for _, b := range defaultTemplate().Backends {
		if b.Name == name {
			return b
		}
	}
	t.Fatalf("no template backend %q", name)
	return BackendConfig{}
}

func newTestTable(t *testing.T, cfgs ...BackendConfig) *BackendTable {
	t.Helper()
	table, err := NewBackendTable(cfgs)
	require.NoError(t, err)
	return table
}

func newTestProber(table *BackendTable, r Runner, present ...string) *Prober {
	return &Prober{Table: table, Runner: r, LookPath: lookPathOf(present...)}
}
