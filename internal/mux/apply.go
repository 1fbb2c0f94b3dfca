package mux

import (
	"context"
	"fmt"
	"strings"
)

// Outcome is the result for one manifest target.
type Outcome int

const (
	OutcomeInstalled Outcome = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInstalled:
		return "installed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown type"
	}
}

// EntryResult reports one target of a manifest entry. An AppBundle with three
// apps yields three results sharing Index.
type EntryResult struct {
	Index   int
	Kind    string
	Target  string
	Outcome Outcome
	Detail  string
}

// Report is returned by Apply.
type Report struct {
	Aborted bool // the user declined at the trust gate
	Entries []EntryResult
}

// Count returns how many results have outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Interpreter applies muxFiles. Every external effect goes through one of
// its fields so each can be replaced in tests.
type Interpreter struct {
	Table   *BackendTable
	Probe   *Prober
	Runner  Runner
	Lang    LanguageInstaller
	Fetch   FetchFunc
	Scripts ScriptRunner
	Confirm func(docs string) (bool, error)
	Token   string
	Ref     string
}

// Apply validates the muxFile at path, asks for confirmation and processes
// the entries in order. A failing entry does not stop the ones after it,
// except a remote script that fails: that error ends Apply.
func (in *Interpreter) Apply(ctx context.Context, path string) (*Report, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return in.ApplyManifest(ctx, m)
}

// ApplyManifest is Apply for an already parsed manifest.
func (in *Interpreter) ApplyManifest(ctx context.Context, m *Manifest) (*Report, error) {
	report := &Report{}

	ok, err := in.Confirm(m.Docs)
	if err != nil {
		return report, err
	}
	if !ok {
		colError.Println("User aborted installation")
		report.Aborted = true
		return report, nil
	}

	for i, entry := range m.Packages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch e := entry.(type) {
		case NativePackage:
			report.Entries = append(report.Entries, in.applyNative(ctx, i, e))
		case AppBundle:
			report.Entries = append(report.Entries, in.applyApps(ctx, i, e)...)
		case LanguagePackage:
			report.Entries = append(report.Entries, in.applyModules(ctx, i, e)...)
		case RemoteScript:
			res, err := in.applyRemote(ctx, i, e)
			report.Entries = append(report.Entries, res)
			if err != nil {
				return report, err
			}
		default:
			colWarn.Printf("[skip] unknown package type '%s'\n", entry.Kind())
			report.Entries = append(report.Entries, EntryResult{
				Index: i, Kind: entry.Kind(), Outcome: OutcomeUnknown,
				Detail: fmt.Sprintf("unknown package type %q", entry.Kind()),
			})
		}
	}

	colSuccess.Printf("Done: %d installed, %d skipped, %d failed\n",
		report.Count(OutcomeInstalled), report.Count(OutcomeSkipped), report.Count(OutcomeFailed))
	return report, nil
}

func (in *Interpreter) applyNative(ctx context.Context, i int, e NativePackage) EntryResult {
	res := EntryResult{Index: i, Kind: KindNative, Target: e.Name}
	n := in.Table.Native()
	if n == nil || !in.Probe.Exists(n) {
		colError.Printf("Cannot install %s: %v\n", e.Name, ErrNoNativeBackend)
		res.Outcome, res.Detail = OutcomeFailed, ErrNoNativeBackend.Error()
		return res
	}
	if in.Probe.IsInstalled(ctx, n, e.Name) {
		colNote.Printf("[skip] %s is already installed\n", e.Name)
		res.Outcome = OutcomeSkipped
		return res
	}
	announce(colInfo, "Installing %s with %s", e.Name, n.Name)
	if err := in.Runner.Run(ctx, n.argv(n.Install, e.Name), n.Sudo); err != nil {
		colError.Printf("Failed to install %s: %v\n", e.Name, err)
		res.Outcome, res.Detail = OutcomeFailed, err.Error()
		return res
	}
	res.Outcome = OutcomeInstalled
	return res
}

func (in *Interpreter) applyApps(ctx context.Context, i int, e AppBundle) []EntryResult {
	results := make([]EntryResult, 0, len(e.Apps))
	store := in.Table.AppStore()
	for _, app := range e.Apps {
		res := EntryResult{Index: i, Kind: KindApp, Target: app}
		switch {
		case ctx.Err() != nil:
			res.Outcome, res.Detail = OutcomeFailed, ctx.Err().Error()
		case in.Probe.IsInstalledAny(ctx, app):
			colNote.Printf("[skip] %s is already installed\n", app)
			res.Outcome = OutcomeSkipped
		case store == nil || !in.Probe.Exists(store):
			colError.Printf("Cannot install %s: %v\n", app, ErrNoAppBackend)
			res.Outcome, res.Detail = OutcomeFailed, ErrNoAppBackend.Error()
		default:
			announce(colInfo, "Installing %s with %s", app, store.Name)
			if err := in.Runner.Run(ctx, store.argv(store.Install, app), store.Sudo); err != nil {
				colError.Printf("Failed to install %s: %v\n", app, err)
				res.Outcome, res.Detail = OutcomeFailed, err.Error()
			} else {
				res.Outcome = OutcomeInstalled
			}
		}
		results = append(results, res)
	}
	return results
}

func (in *Interpreter) applyModules(ctx context.Context, i int, e LanguagePackage) []EntryResult {
	outcomes, err := ensureModules(ctx, in.Lang, e.Modules)
	if err != nil {
		debugf("pip entry %d: %v", i, err)
	}
	results := make([]EntryResult, 0, len(e.Modules))
	for _, mod := range e.Modules {
		res := EntryResult{Index: i, Kind: KindLanguage, Target: mod}
		o, seen := outcomes[mod]
		switch {
		case !seen:
			res.Outcome = OutcomeFailed
			if err != nil {
				res.Detail = err.Error()
			}
		case o == ModuleInstalled:
			res.Outcome = OutcomeInstalled
		case o == ModuleFailed:
			res.Outcome, res.Detail = OutcomeFailed, "install failed"
		case o == ModuleBuiltin:
			res.Outcome, res.Detail = OutcomeSkipped, "standard library"
		default:
			res.Outcome, res.Detail = OutcomeSkipped, "already installed"
		}
		results = append(results, res)
	}
	return results
}

// applyRemote fetches and runs one installer. Fetch problems are reported on
// the entry; a failing script is returned as an error.
func (in *Interpreter) applyRemote(ctx context.Context, i int, e RemoteScript) (EntryResult, error) {
	res := EntryResult{Index: i, Kind: KindRemote, Target: e.Repo + ":" + e.File}

	repo, err := ParseRepoURL(e.Repo)
	if err == nil && repo.Host != "github.com" {
		err = fmt.Errorf("%w: host %s", ErrUnsupportedRepo, repo.Host)
	}
	if err != nil {
		colError.Printf("[Error] %v\n", err)
		res.Outcome, res.Detail = OutcomeFailed, err.Error()
		return res, nil
	}

	ref := e.Ref
	if ref == "" {
		ref = in.Ref
	}
	announce(colInfo, "Fetching %s from %s/%s", e.File, repo.Owner, repo.Name)
	content, status, err := in.Fetch(ctx, FileRef{
		Owner: repo.Owner, Repo: repo.Name, Path: e.File, Ref: ref, Token: in.Token,
	})
	if err != nil {
		colError.Printf("[Error] %s: %v\n", e.File, err)
		res.Outcome, res.Detail = OutcomeFailed, err.Error()
		return res, nil
	}
	if status != 200 {
		detail := fmt.Sprintf("status_code: %d", status)
		colError.Printf("[Error] %s not found or failed to fetch. %s\n", e.File, detail)
		res.Outcome, res.Detail = OutcomeFailed, detail
		return res, nil
	}

	name := strings.Join([]string{repo.Owner, repo.Name, e.File}, "/")
	if err := in.Scripts.RunScript(ctx, name, content); err != nil {
		res.Outcome, res.Detail = OutcomeFailed, err.Error()
		return res, fmt.Errorf("remote script %s: %w", name, err)
	}
	res.Outcome = OutcomeInstalled
	return res, nil
}
