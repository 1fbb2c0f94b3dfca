package mux

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry kinds as written in the "type" field of a muxFile entry.
const (
	KindNative   = "pacman"
	KindApp      = "flatpak"
	KindLanguage = "pip"
	KindRemote   = "git"
)

// Entry is one element of a muxFile "packages" list.
type Entry interface {
	Kind() string
}

// NativePackage installs Name through the native backend.
type NativePackage struct {
	Name string `yaml:"name"`
}

// AppBundle installs Apps through the app-store backend.
type AppBundle struct {
	Apps []string `yaml:"apps"`
}

// LanguagePackage installs Modules through the language package installer.
type LanguagePackage struct {
	Modules []string `yaml:"modules"`
}

// RemoteScript fetches File from Repo and runs it in-process.
type RemoteScript struct {
	Repo string `yaml:"repo"`
	File string `yaml:"file"`
	Ref  string `yaml:"ref"`
}

// UnknownEntry is kept so it can be reported and skipped at apply time.
type UnknownEntry struct {
	Type string
}

func (NativePackage) Kind() string   { return KindNative }
func (AppBundle) Kind() string       { return KindApp }
func (LanguagePackage) Kind() string { return KindLanguage }
func (RemoteScript) Kind() string    { return KindRemote }
func (u UnknownEntry) Kind() string  { return u.Type }

// Manifest is a parsed and validated muxFile.
type Manifest struct {
	Path     string
	Docs     string
	Packages []Entry
}

var requiredKeys = []string{"packages", "docs"}

type entryNode struct {
	Entry
}

func (e *entryNode) UnmarshalYAML(n *yaml.Node) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := n.Decode(&head); err != nil {
		return err
	}
	switch head.Type {
	case "":
		return errors.New(`missing "type"`)
	case KindNative:
		var v NativePackage
		if err := n.Decode(&v); err != nil {
			return err
		}
		e.Entry = v
	case KindApp:
		var v AppBundle
		if err := n.Decode(&v); err != nil {
			return err
		}
		e.Entry = v
	case KindLanguage:
		var v LanguagePackage
		if err := n.Decode(&v); err != nil {
			return err
		}
		e.Entry = v
	case KindRemote:
		var v RemoteScript
		if err := n.Decode(&v); err != nil {
			return err
		}
		e.Entry = v
	default:
		e.Entry = UnknownEntry{Type: head.Type}
	}
	return nil
}

// LoadManifest reads a muxFile written as JSON or YAML.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseManifest(path, data)
}

// ParseManifest validates data completely; nothing is executed here.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	data, err := normalizeJSON(data)
	if err != nil {
		return nil, &ManifestError{Path: path, Index: -1, Err: err}
	}

	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, &ManifestError{Path: path, Index: -1, Err: fmt.Errorf("not a JSON or YAML object: %w", err)}
	}
	for _, key := range requiredKeys {
		if _, ok := top[key]; !ok {
			return nil, &ManifestError{Path: path, Key: key, Index: -1}
		}
	}

	m := &Manifest{Path: path}
	docs := top["docs"]
	if err := docs.Decode(&m.Docs); err != nil {
		return nil, &ManifestError{Path: path, Key: "docs", Index: -1, Err: err}
	}

	pkgs := top["packages"]
	if pkgs.Kind != yaml.SequenceNode {
		return nil, &ManifestError{Path: path, Key: "packages", Index: -1, Err: errors.New("must be a list")}
	}
	for i, item := range pkgs.Content {
		var en entryNode
		if err := item.Decode(&en); err != nil {
			return nil, &ManifestError{Path: path, Index: i, Err: err}
		}
		if key := missingField(en.Entry); key != "" {
			return nil, &ManifestError{Path: path, Key: key, Index: i}
		}
		m.Packages = append(m.Packages, en.Entry)
	}
	return m, nil
}

// normalizeJSON re-encodes JSON documents as YAML. JSON indented with tabs is
// not valid YAML.
func normalizeJSON(data []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") || !json.Valid(data) {
		return data, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return yaml.Marshal(v)
}

func missingField(e Entry) string {
	switch v := e.(type) {
	case NativePackage:
		if strings.TrimSpace(v.Name) == "" {
			return "name"
		}
	case AppBundle:
		if len(v.Apps) == 0 || hasBlank(v.Apps) {
			return "apps"
		}
	case LanguagePackage:
		if len(v.Modules) == 0 || hasBlank(v.Modules) {
			return "modules"
		}
	case RemoteScript:
		if strings.TrimSpace(v.Repo) == "" {
			return "repo"
		}
		if strings.TrimSpace(v.File) == "" {
			return "file"
		}
	}
	return ""
}

func hasBlank(list []string) bool {
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			return true
		}
	}
	return false
}
