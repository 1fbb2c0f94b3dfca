package mux

import (
	"fmt"
	"strings"
)

// QueryStyle selects how a backend answers "is this package installed".
type QueryStyle int

const (
	// QueryExit: the query command exits 0 when the package is installed.
	QueryExit QueryStyle = iota
	// QueryNative: like QueryExit, and the backend also exposes local and
	// repository detail queries carrying a Version field.
	QueryNative
	// QueryList: the list command output mentions the package identifier.
	QueryList
)

func (s QueryStyle) String() string {
	switch s {
	case QueryNative:
		return "native"
	case QueryList:
		return "list"
	default:
		return "exit"
	}
}

func parseQueryStyle(s string) (QueryStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exit":
		return QueryExit, nil
	case "native":
		return QueryNative, nil
	case "list":
		return QueryList, nil
	}
	return QueryExit, fmt.Errorf("unknown query_style %q (want exit, native or list)", s)
}

// Backend is the capability record of one package manager. Values are never
// mutated after the table is built.
type Backend struct {
	Name       string
	Command    string
	Sudo       bool
	Style      QueryStyle
	Install    []string
	Remove     []string
	Update     []string
	UpgradeAll []string
	Query      []string
	List       []string
	Info       []string
	SyncInfo   []string
	Search     []string
}

// argv builds [command args... extra...].
func (b *Backend) argv(args []string, extra ...string) []string {
	out := make([]string, 0, 1+len(args)+len(extra))
	out = append(out, b.Command)
	out = append(out, args...)
	for _, e := range extra {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// TracksVersions reports whether an installed package on this backend can
// have its freshness checked.
func (b *Backend) TracksVersions() bool {
	return b.Style != QueryList
}

// BackendTable is the ordered list of configured backends.
type BackendTable struct {
	backends []*Backend
}

// NewBackendTable validates cfgs and keeps their order.
func NewBackendTable(cfgs []BackendConfig) (*BackendTable, error) {
	t := &BackendTable{}
	for i, c := range cfgs {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("backends[%d]: name is required", i)
		}
		if _, dup := t.Lookup(name); dup {
			return nil, fmt.Errorf("backends[%d]: duplicate backend %q", i, name)
		}

		style, err := parseQueryStyle(c.QueryStyle)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", name, err)
		}
		command := c.Command
		if command == "" {
			command = name
		}
		b := &Backend{
			Name:       name,
			Command:    command,
			Sudo:       c.Sudo,
			Style:      style,
			Install:    clone(c.Install),
			Remove:     clone(c.Remove),
			Update:     clone(c.Update),
			UpgradeAll: clone(c.UpgradeAll),
			Query:      clone(c.Query),
			List:       clone(c.List),
			Info:       clone(c.Info),
			SyncInfo:   clone(c.SyncInfo),
			Search:     clone(c.Search),
		}
		if style == QueryList && len(b.List) == 0 {
			return nil, fmt.Errorf("backend %s: query_style \"list\" needs a list command", name)
		}
		if style == QueryNative && (len(b.Info) == 0 || len(b.SyncInfo) == 0) {
			return nil, fmt.Errorf("backend %s: query_style \"native\" needs info and sync_info", name)
		}
		t.backends = append(t.backends, b)
	}
	return t, nil
}

func clone(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}

// All returns the backends in configured order.
func (t *BackendTable) All() []*Backend {
	return t.backends
}

// Len returns the number of configured backends.
func (t *BackendTable) Len() int { return len(t.backends) }

// Lookup returns the backend with the given name.
func (t *BackendTable) Lookup(name string) (*Backend, bool) {
	for _, b := range t.backends {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Native is the first backend with dedicated version queries.
func (t *BackendTable) Native() *Backend {
	return t.firstOf(QueryNative)
}

// AppStore is the first backend answering queries from a listing.
func (t *BackendTable) AppStore() *Backend {
	return t.firstOf(QueryList)
}

func (t *BackendTable) firstOf(s QueryStyle) *Backend {
	for _, b := range t.backends {
		if b.Style == s {
			return b
		}
	}
	return nil
}
