package mux

import (
	"context"
	"errors"
	"fmt"
)

// Action is a package operation routed through the backend table.
type Action string

const (
	ActionInstall Action = "install"
	ActionRemove  Action = "remove"
	ActionUpdate  Action = "update"
)

// InstallState describes pkg after an install request.
type InstallState int

const (
	StateNotInstalled InstallState = iota
	StateCurrent                   // installed, matches the repository version
	StateStale                     // installed, a newer version is available
	StateUnknown                   // installed, freshness could not be determined
)

func (s InstallState) String() string {
	switch s {
	case StateCurrent:
		return "installed, up to date"
	case StateStale:
		return "installed, update available"
	case StateUnknown:
		return "installed"
	default:
		return "not installed"
	}
}

// ActionResult is what Perform reports back to the caller.
type ActionResult struct {
	Succeeded bool
	Backend   *Backend // backend that completed the action, nil when none did
	State     InstallState
	NoOp      bool // nothing had to be run
}

// Dispatcher tries each backend in order until one completes the action.
type Dispatcher struct {
	Table  *BackendTable
	Probe  *Prober
	Runner Runner
}

// Perform runs action for pkg on the first present backend that succeeds.
// pkg may be empty only for ActionUpdate.
func (d *Dispatcher) Perform(ctx context.Context, action Action, pkg string) (ActionResult, error) {
	if pkg == "" && action != ActionUpdate {
		return ActionResult{}, &Error{Op: string(action), Err: errors.New("package name required")}
	}

	for _, b := range d.Table.All() {
		if err := ctx.Err(); err != nil {
			return ActionResult{}, &Error{Op: string(action), Package: pkg, Err: err}
		}
		if !d.Probe.Exists(b) {
			debugf("%s: not found on PATH, skipping", b.Name)
			continue
		}

		var (
			res ActionResult
			err error
		)
		switch action {
		case ActionInstall:
			res, err = d.install(ctx, b, pkg)
		case ActionRemove:
			res, err = d.remove(ctx, b, pkg)
		case ActionUpdate:
			res, err = d.update(ctx, b, pkg)
		default:
			return ActionResult{}, &Error{Op: string(action), Package: pkg, Err: fmt.Errorf("unknown action")}
		}
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return ActionResult{}, &Error{Op: string(action), Package: pkg, Err: ctx.Err()}
		}
		colWarn.Printf("%s: %v\n", b.Name, err)
	}

	colError.Printf("Failed to %s %s with any package manager\n", action, displayName(pkg))
	return ActionResult{}, &Error{Op: string(action), Package: pkg, Err: ErrBackendsExhausted}
}

func displayName(pkg string) string {
	if pkg == "" {
		return "the system"
	}
	return pkg
}

func (d *Dispatcher) install(ctx context.Context, b *Backend, pkg string) (ActionResult, error) {
	announce(colInfo, "Trying %s", b.Name)

	if d.Probe.IsInstalledAny(ctx, pkg) {
		res := ActionResult{Succeeded: true, Backend: b, State: StateUnknown, NoOp: true}
		colNote.Printf("%s is already installed\n", pkg)
		if b.TracksVersions() {
			fresh, err := d.Probe.IsUpToDate(ctx, pkg)
			switch fresh {
			case FreshCurrent:
				res.State = StateCurrent
				colNote.Printf("%s is already up to date\n", pkg)
			case FreshStale:
				res.State = StateStale
				colWarn.Printf("%s has an update available, run 'mux update %s'\n", pkg, pkg)
			default:
				debugf("%s: freshness unknown: %v", pkg, err)
			}
		}
		return res, nil
	}

	if len(b.Install) == 0 {
		return ActionResult{}, errors.New("no install command configured")
	}
	if err := d.Runner.Run(ctx, b.argv(b.Install, pkg), b.Sudo); err != nil {
		return ActionResult{}, err
	}
	colSuccess.Printf("Installed %s with %s\n", pkg, b.Name)
	return ActionResult{Succeeded: true, Backend: b, State: StateUnknown}, nil
}

func (d *Dispatcher) remove(ctx context.Context, b *Backend, pkg string) (ActionResult, error) {
	announce(colInfo, "Trying %s", b.Name)
	if len(b.Remove) == 0 {
		return ActionResult{}, errors.New("no remove command configured")
	}
	if err := d.Runner.Run(ctx, b.argv(b.Remove, pkg), b.Sudo); err != nil {
		return ActionResult{}, err
	}
	colSuccess.Printf("Removed %s with %s\n", pkg, b.Name)
	return ActionResult{Succeeded: true, Backend: b, State: StateNotInstalled}, nil
}

// update: listing backends always upgrade everything they manage, even when
// a single package was named.
func (d *Dispatcher) update(ctx context.Context, b *Backend, pkg string) (ActionResult, error) {
	announce(colInfo, "Trying %s", b.Name)

	var argv []string
	switch {
	case b.Style == QueryList:
		if pkg != "" {
			colWarn.Printf("%s upgrades every installed application, not only %s\n", b.Name, pkg)
		}
		argv = b.argv(b.UpgradeAll)
	case pkg == "":
		argv = b.argv(b.UpgradeAll)
	default:
		fresh, err := d.Probe.IsUpToDate(ctx, pkg)
		if fresh == FreshCurrent {
			colNote.Printf("%s is already up to date\n", pkg)
			return ActionResult{Succeeded: true, Backend: b, State: StateCurrent, NoOp: true}, nil
		}
		if err != nil {
			colWarn.Printf("Could not tell whether %s is up to date (%v), updating anyway\n", pkg, err)
		}
		if len(b.Update) == 0 {
			return ActionResult{}, errors.New("no update command configured")
		}
		argv = b.argv(b.Update, pkg)
	}
	if len(argv) == 1 {
		return ActionResult{}, errors.New("no upgrade command configured")
	}

	if err := d.Runner.Run(ctx, argv, b.Sudo); err != nil {
		return ActionResult{}, err
	}
	colSuccess.Printf("Updated %s with %s\n", displayName(pkg), b.Name)
	state := StateUnknown
	if pkg != "" && b.Style != QueryList {
		state = StateCurrent
	}
	return ActionResult{Succeeded: true, Backend: b, State: state}, nil
}
