package mux

import (
	"fmt"
	"strings"
)

// color-compatible printer interface (works with *color.Theme, color.RGBColor and color.Tag)
type colorPrinter interface {
	Print(a ...any)
	Printf(format string, a ...any)
	Println(a ...any)
}

// cPrintf prints with a colored style or falls back to fmt.Printf when nil
func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

// announce prints an arrow-prefixed action line.
func announce(p colorPrinter, format string, a ...any) {
	colArrow.Print("-> ")
	cPrintf(p, format+"\n", a...)
}

// debugf logs through the zap logger; a no-op unless --debug was given.
func debugf(format string, args ...any) {
	logger.Sugar().Debugf(strings.TrimRight(format, "\n"), args...)
}

// quoteArgv renders argv the way a user would type it.
func quoteArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			parts[i] = fmt.Sprintf("%q", a)
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}
