package mux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// interactiveMu ensures only one prompt reads stdin at a time.
var interactiveMu sync.Mutex

// rawGuard remembers the terminal state while a menu holds raw mode, so the
// signal handler can put the terminal back before a forced exit.
var rawGuard struct {
	sync.Mutex
	fd    int
	state *term.State
}

func enterRaw(fd int) (func(), error) {
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}
	rawGuard.Lock()
	rawGuard.fd, rawGuard.state = fd, state
	rawGuard.Unlock()
	return restoreTerminal, nil
}

// restoreTerminal leaves raw mode if a menu is active. Safe to call twice.
func restoreTerminal() {
	rawGuard.Lock()
	defer rawGuard.Unlock()
	if rawGuard.state == nil {
		return
	}
	_ = term.Restore(rawGuard.fd, rawGuard.state)
	rawGuard.state = nil
}

type key int

const (
	keyOther key = iota
	keyUp
	keyDown
	keyEnter
	keyInterrupt
)

// Menu is a single-choice list driven by arrow keys.
type Menu struct {
	in  io.Reader
	out io.Writer
	fd  int // terminal to switch into raw mode, -1 when in is not a terminal
}

// NewTerminalMenu reads keys from stdin and draws on stdout.
func NewTerminalMenu() *Menu {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fd = -1
	}
	return &Menu{in: os.Stdin, out: os.Stdout, fd: fd}
}

// NewMenu builds a menu over arbitrary streams without touching terminal modes.
func NewMenu(in io.Reader, out io.Writer) *Menu {
	return &Menu{in: in, out: out, fd: -1}
}

// Choose shows items with the first one selected and returns the label the
// user confirmed with Enter. Ctrl-C and Ctrl-D return ErrInterrupted.
func (m *Menu) Choose(items []string) (string, error) {
	if len(items) == 0 {
		return "", errors.New("menu has no items")
	}
	interactiveMu.Lock()
	defer interactiveMu.Unlock()

	if m.fd >= 0 {
		restore, err := enterRaw(m.fd)
		if err != nil {
			return "", err
		}
		defer restore()
	}

	r := bufio.NewReader(m.in)
	selected := 0
	m.draw(items, selected, false)
	for {
		k, err := readKey(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrInterrupted
			}
			return "", err
		}
		switch k {
		case keyUp:
			selected = (selected - 1 + len(items)) % len(items)
		case keyDown:
			selected = (selected + 1) % len(items)
		case keyEnter:
			return items[selected], nil
		case keyInterrupt:
			return "", ErrInterrupted
		default:
			continue
		}
		m.draw(items, selected, true)
	}
}

func (m *Menu) draw(items []string, selected int, redraw bool) {
	if redraw {
		fmt.Fprintf(m.out, "\x1b[%dA", len(items))
	}
	for i, it := range items {
		fmt.Fprint(m.out, "\r\x1b[2K")
		if i == selected {
			fmt.Fprint(m.out, color.OpReverse.Sprint("[*] "+it))
		} else {
			fmt.Fprint(m.out, "[ ] "+it)
		}
		fmt.Fprint(m.out, "\r\n")
	}
}

// readKey decodes one keypress. Arrow keys arrive as ESC [ A/B, Shift-Tab as
// ESC [ Z.
func readKey(r *bufio.Reader) (key, error) {
	b, err := r.ReadByte()
	if err != nil {
		return keyOther, err
	}
	switch b {
	case '\r', '\n':
		return keyEnter, nil
	case 0x03, 0x04:
		return keyInterrupt, nil
	case '\t', 'j':
		return keyDown, nil
	case 'k':
		return keyUp, nil
	case 0x1b:
		if next, err := r.ReadByte(); err != nil || (next != '[' && next != 'O') {
			return keyOther, nil
		}
		code, err := r.ReadByte()
		if err != nil {
			return keyOther, nil
		}
		switch code {
		case 'A', 'Z':
			return keyUp, nil
		case 'B':
			return keyDown, nil
		}
	}
	return keyOther, nil
}

// TrustGate prints the confirmation banner for a manifest and asks whether to
// proceed. Only "Yes" proceeds.
type TrustGate struct {
	Menu        *Menu
	ShowWarning bool
}

var gateChoices = []string{"Yes", "No"}

// Confirm shows docs (and the warning when enabled) and blocks on the menu.
func (g *TrustGate) Confirm(docs string) (bool, error) {
	if g.ShowWarning {
		colWarn.Println("WARNING: muxFile entries can run arbitrary code with your privileges.")
		colWarn.Println("Only proceed if you trust the source of this file.")
	}
	if docs != "" {
		colInfo.Printf("Docs: %s\n", docs)
	}
	colArrow.Print(":: ")
	colSuccess.Println("Proceed with installation?")

	choice, err := g.Menu.Choose(gateChoices)
	if err != nil {
		return false, err
	}
	return choice == "Yes", nil
}
