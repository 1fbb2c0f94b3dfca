package mux

import (
	"github.com/gookit/color"
)

// Global variables
var (
	Debug     bool
	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
)

// color helpers, replaced per role by [colors] in the config file
var (
	colInfo    colorPrinter = color.Info
	colWarn    colorPrinter = color.Warn
	colError   colorPrinter = color.Error
	colSuccess colorPrinter = color.HEX("#1976D2")
	colArrow   colorPrinter = color.HEX("#FFEB3B")
	colNote    colorPrinter = color.Tag("notice")
)

// highlight marks search results that name a repo/package pair.
var highlight interface{ Sprint(a ...any) string } = color.New(color.FgBlue, color.OpBold)

// applyColors swaps the default palette for the hex values set in cfg.
func applyColors(cfg ColorConfig) {
	set := func(dst *colorPrinter, hex string) {
		if hex != "" {
			*dst = color.HEX(hex)
		}
	}
	set(&colInfo, cfg.Info)
	set(&colWarn, cfg.Warn)
	set(&colError, cfg.Error)
	set(&colSuccess, cfg.Success)
	set(&colArrow, cfg.Arrow)
	set(&colNote, cfg.Note)
	if cfg.Highlight != "" {
		highlight = color.HEX(cfg.Highlight)
	}
}
