package mux

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// LanguageInstaller manages modules of the scripting language runtime.
type LanguageInstaller interface {
	IsBuiltin(ctx context.Context, module string) bool
	IsInstalled(ctx context.Context, module string) bool
	Install(ctx context.Context, module string) error
}

// builtinProbe exits 0 when the module ships with the interpreter itself.
const builtinProbe = `import importlib.util, sys, sysconfig
name = sys.argv[1]
if name in sys.builtin_module_names:
    sys.exit(0)
try:
    spec = importlib.util.find_spec(name)
except Exception:
    sys.exit(1)
origin = spec and spec.origin
if not origin:
    sys.exit(1)
if origin in ("built-in", "frozen"):
    sys.exit(0)
paths = sysconfig.get_paths()
std = (paths["stdlib"], paths["platstdlib"])
sys.exit(0 if origin.startswith(std) and "site-packages" not in origin else 1)
`

// PipInstaller drives pip through the Runner.
type PipInstaller struct {
	Runner Runner
	Python string
	Pip    []string
}

func (p *PipInstaller) IsBuiltin(ctx context.Context, module string) bool {
	_, err := p.Runner.Output(ctx, []string{p.Python, "-c", builtinProbe, module})
	return err == nil
}

func (p *PipInstaller) IsInstalled(ctx context.Context, module string) bool {
	_, err := p.Runner.Output(ctx, append(clone(p.Pip), "show", module))
	return err == nil
}

func (p *PipInstaller) Install(ctx context.Context, module string) error {
	return p.Runner.Run(ctx, append(clone(p.Pip), "install", module), false)
}

// ModuleOutcome is what happened to one module in ensureModules.
type ModuleOutcome int

const (
	ModuleBuiltin ModuleOutcome = iota
	ModulePresent
	ModuleInstalled
	ModuleFailed
)

// ensureModules installs every module that is neither built in nor present.
func ensureModules(ctx context.Context, li LanguageInstaller, modules []string) (map[string]ModuleOutcome, error) {
	out := make(map[string]ModuleOutcome, len(modules))
	var failed []string
	for _, mod := range modules {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		switch {
		case li.IsBuiltin(ctx, mod):
			colNote.Printf("[skip] %s is part of the standard library\n", mod)
			out[mod] = ModuleBuiltin
		case li.IsInstalled(ctx, mod):
			colNote.Printf("[skip] %s is already installed\n", mod)
			out[mod] = ModulePresent
		default:
			announce(colInfo, "Installing module %s", mod)
			if err := li.Install(ctx, mod); err != nil {
				colError.Printf("Failed to install %s: %v\n", mod, err)
				out[mod] = ModuleFailed
				failed = append(failed, mod)
				continue
			}
			out[mod] = ModuleInstalled
		}
	}
	if len(failed) > 0 {
		return out, fmt.Errorf("failed to install %s", strings.Join(failed, ", "))
	}
	return out, nil
}

var (
	importStmt = regexp.MustCompile(`^\s*import\s+(.+)$`)
	fromStmt   = regexp.MustCompile(`^\s*from\s+([A-Za-z_][\w.]*)\s+import\s`)
)

// scanImports lists the top-level modules a Python source imports, in first
// seen order. Relative imports are ignored.
func scanImports(r io.Reader) ([]string, error) {
	var mods []string
	seen := map[string]bool{}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		mods = append(mods, name)
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if m := fromStmt.FindStringSubmatch(line); m != nil {
			add(m[1])
			continue
		}
		if m := importStmt.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				fields := strings.Fields(part) // "numpy as np"
				if len(fields) > 0 {
					add(fields[0])
				}
			}
		}
	}
	return mods, sc.Err()
}
