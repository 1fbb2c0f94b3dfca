package mux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
)

// resolveEditor picks the configured editor, then $VISUAL, then $EDITOR.
func resolveEditor(cfg *Config) (string, error) {
	for _, candidate := range []string{cfg.General.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", errors.New("no editor configured: set editor in [general] or $EDITOR")
}

// ensureConfigFile writes the default template when path does not exist.
// It reports whether a new file was created.
func ensureConfigFile(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := saveConfig(path, defaultTemplate()); err != nil {
		return false, err
	}
	return true, nil
}

func runEditor(editor string, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	cmd := exec.Command(editor, files...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// editConfig opens the config file in the user's editor, creating it first.
func editConfig(path string, cfg *Config) error {
	created, err := ensureConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to prepare %s: %w", path, err)
	}
	if created {
		announce(colSuccess, "Wrote default configuration to %s", path)
	}
	editor, err := resolveEditor(cfg)
	if err != nil {
		return err
	}
	announce(colInfo, "Opening %s with %s", path, editor)
	if err := runEditor(editor, path); err != nil {
		return fmt.Errorf("editor %s failed: %w", editor, err)
	}
	return nil
}
