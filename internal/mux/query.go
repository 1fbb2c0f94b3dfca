package mux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os/exec"
	"regexp"
	"strings"
)

// Freshness is the outcome of comparing installed and repository versions.
type Freshness int

const (
	// FreshUnknown: could not be determined. Never treated as current.
	FreshUnknown Freshness = iota
	FreshCurrent
	FreshStale
)

func (f Freshness) String() string {
	switch f {
	case FreshCurrent:
		return "current"
	case FreshStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Prober answers read-only questions about the configured backends.
type Prober struct {
	Table    *BackendTable
	Runner   Runner
	LookPath func(string) (string, error)
}

// NewProber uses exec.LookPath to detect backends.
func NewProber(t *BackendTable, r Runner) *Prober {
	return &Prober{Table: t, Runner: r, LookPath: exec.LookPath}
}

// Exists reports whether the backend executable is on PATH.
func (p *Prober) Exists(b *Backend) bool {
	if b == nil {
		return false
	}
	look := p.LookPath
	if look == nil {
		look = exec.LookPath
	}
	_, err := look(b.Command)
	return err == nil
}

// IsInstalled asks a single backend whether pkg is installed.
func (p *Prober) IsInstalled(ctx context.Context, b *Backend, pkg string) bool {
	switch b.Style {
	case QueryList:
		out, err := p.Runner.Output(ctx, b.argv(b.List))
		if err != nil {
			debugf("%s list failed: %v", b.Name, err)
			return false
		}
		return bytes.Contains(bytes.ToLower(out), []byte(strings.ToLower(pkg)))
	default:
		if len(b.Query) == 0 {
			return false
		}
		_, err := p.Runner.Output(ctx, b.argv(b.Query, pkg))
		return err == nil
	}
}

// IsInstalledAny is true when any present backend reports pkg installed.
func (p *Prober) IsInstalledAny(ctx context.Context, pkg string) bool {
	for _, b := range p.Table.All() {
		if !p.Exists(b) {
			continue
		}
		if p.IsInstalled(ctx, b, pkg) {
			debugf("%s: installed according to %s", pkg, b.Name)
			return true
		}
	}
	return false
}

// IsUpToDate compares the native backend's installed and repository version
// of pkg. Anything short of two equal, non-empty versions is not current.
func (p *Prober) IsUpToDate(ctx context.Context, pkg string) (Freshness, error) {
	n := p.Table.Native()
	if n == nil || !p.Exists(n) {
		return FreshUnknown, ErrNoNativeBackend
	}

	local, err := p.Runner.Output(ctx, n.argv(n.Info, pkg))
	if err != nil {
		return FreshUnknown, fmt.Errorf("%s is not installed: %w", pkg, err)
	}
	installed := versionField(local)
	if installed == "" {
		return FreshUnknown, fmt.Errorf("could not read installed version of %s", pkg)
	}

	remote, err := p.Runner.Output(ctx, n.argv(n.SyncInfo, pkg))
	if err != nil {
		return FreshUnknown, fmt.Errorf("%s not found in repositories: %w", pkg, err)
	}
	available := versionField(remote)
	if available == "" {
		return FreshUnknown, fmt.Errorf("could not read repository version of %s", pkg)
	}

	debugf("%s: installed %s, available %s", pkg, installed, available)
	if installed == available {
		return FreshCurrent, nil
	}
	return FreshStale, nil
}

// versionField returns the value of the first "Version" line, taken after
// the first colon.
func versionField(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "Version") {
			continue
		}
		_, val, ok := strings.Cut(line, ":")
		if !ok {
			return ""
		}
		return strings.TrimSpace(val)
	}
	return ""
}

// SearchLine is one line of backend search output.
type SearchLine struct {
	Text  string
	Match bool // names a repo/package pair, e.g. "extra/htop 3.3.0-1"
}

var repoToken = regexp.MustCompile(`^[A-Za-z0-9._+-]+/[A-Za-z0-9._+@-]+$`)

func isRepoQualified(line string) bool {
	for _, tok := range strings.Fields(line) {
		if repoToken.MatchString(tok) {
			return true
		}
	}
	return false
}

// Searcher returns the first present backend that can search.
func (p *Prober) Searcher() (*Backend, error) {
	for _, b := range p.Table.All() {
		if len(b.Search) > 0 && p.Exists(b) {
			return b, nil
		}
	}
	return nil, errors.New("no installed backend supports search")
}

// Search runs the backend search when iteration starts and yields its lines.
// A failing search yields a single error.
func (p *Prober) Search(ctx context.Context, b *Backend, pkg string) iter.Seq2[SearchLine, error] {
	return func(yield func(SearchLine, error) bool) {
		out, err := p.Runner.Output(ctx, b.argv(b.Search, pkg))
		if err != nil && len(out) == 0 {
			yield(SearchLine{}, fmt.Errorf("%s search %s: %w", b.Name, pkg, err))
			return
		}
		sc := bufio.NewScanner(bytes.NewReader(out))
		for sc.Scan() {
			line := sc.Text()
			if !yield(SearchLine{Text: line, Match: isRepoQualified(line)}, nil) {
				return
			}
		}
	}
}
