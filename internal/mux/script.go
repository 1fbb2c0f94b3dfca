package mux

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/klauspost/compress/zstd"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"github.com/traefik/yaegi/stdlib/syscall"
	"github.com/traefik/yaegi/stdlib/unrestricted"
	"lukechampine.com/blake3"
)

// ScriptRunner executes a fetched installer script.
type ScriptRunner interface {
	RunScript(ctx context.Context, name, source string) error
}

// InterpRunner runs Go source in-process with the whole standard library
// available, os/exec and syscall included. It grants the script everything
// mux itself can do.
type InterpRunner struct {
	AuditDir string // zstd copies of every executed script; empty disables
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

// NewInterpRunner archives scripts under <cacheDir>/scripts.
func NewInterpRunner(cacheDir string) *InterpRunner {
	r := &InterpRunner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	if cacheDir != "" {
		r.AuditDir = filepath.Join(cacheDir, "scripts")
	}
	return r
}

func hashString(s string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// archiveScript stores a zstd-compressed copy of source and returns its path.
func (r *InterpRunner) archiveScript(name, digest, source string) (string, error) {
	if err := os.MkdirAll(r.AuditDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audit dir: %w", err)
	}
	file := fmt.Sprintf("%s-%s.go.zst", unsafeName.ReplaceAllString(name, "-"), digest[:16])
	path := filepath.Join(r.AuditDir, file)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return "", fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := io.WriteString(zw, source); err != nil {
		zw.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return path, f.Sync()
}

// RunScript interprets source as a Go main package. Errors from the script
// are returned as-is.
func (r *InterpRunner) RunScript(ctx context.Context, name, source string) error {
	digest := hashString(source)
	announce(colSuccess, "Executing %s (blake3 %s)", name, digest[:16])
	if r.AuditDir != "" {
		if path, err := r.archiveScript(name, digest, source); err != nil {
			colWarn.Printf("Could not archive %s: %v\n", name, err)
		} else {
			debugf("archived %s to %s", name, path)
		}
	}

	i := interp.New(interp.Options{
		Stdin:        r.Stdin,
		Stdout:       r.Stdout,
		Stderr:       r.Stderr,
		Args:         []string{name},
		Env:          os.Environ(),
		Unrestricted: true,
	})
	for _, exports := range []interp.Exports{stdlib.Symbols, unrestricted.Symbols, syscall.Symbols} {
		if err := i.Use(exports); err != nil {
			return fmt.Errorf("failed to load interpreter symbols: %w", err)
		}
	}

	if _, err := i.EvalWithContext(ctx, source); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
