// Package manifest reads declarative show manifests: YAML files that name
// the screens a session should carry, the variables under each screen scope,
// and the host targets bound to them. A manifest seeds a session; the
// document codec in the root package remains the persistence format.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	multiscreen "github.com/georgeantonopoulos/Nuke"
)

const supportedVersion = 1

// Manifest is the root of a show manifest file.
type Manifest struct {
	Version int    `yaml:"version"`
	Project string `yaml:"project,omitempty"`
	// Active names the screen activated after apply. It must be declared
	// under screens.
	Active string `yaml:"active,omitempty"`
	// Defaults are root-scope variables, keyed by dot path.
	Defaults map[string]string `yaml:"defaults,omitempty"`
	Screens  []Screen          `yaml:"screens"`
}

// Screen declares one screen scope.
type Screen struct {
	ID string `yaml:"id"`
	// Vars are keyed relative to the screen scope, so nested paths such as
	// "Overrides.Write1.filepath" land in child scopes.
	Vars     map[string]string `yaml:"vars,omitempty"`
	Bindings []Binding         `yaml:"bindings,omitempty"`
}

// Binding declares one host target bound to a screen variable.
type Binding struct {
	Target string `yaml:"target"`
	Key    string `yaml:"key"`
	// Mode is "pull" or "push"; empty defaults to pull.
	Mode string `yaml:"mode,omitempty"`
}

// Parse decodes and validates a manifest. Unknown YAML fields are rejected
// so typos surface at load time instead of silently dropping state.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: empty document")
		}
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks the manifest for problems that would make Apply fail or
// silently misbehave. All findings are reported at once.
func (m *Manifest) Validate() error {
	var errs []error

	if m.Version != 0 && m.Version != supportedVersion {
		errs = append(errs, fmt.Errorf("manifest: unsupported version %d", m.Version))
	}
	if len(m.Screens) == 0 {
		errs = append(errs, fmt.Errorf("manifest: no screens declared"))
	}
	if _, ok := m.Defaults[multiscreen.ActiveScreenKey]; ok {
		errs = append(errs, fmt.Errorf("manifest: defaults may not set %q, use active instead", multiscreen.ActiveScreenKey))
	}

	seen := make(map[string]struct{}, len(m.Screens))
	for i, screen := range m.Screens {
		if screen.ID == "" {
			errs = append(errs, fmt.Errorf("manifest: screens[%d]: missing id", i))
			continue
		}
		if _, dup := seen[screen.ID]; dup {
			errs = append(errs, fmt.Errorf("manifest: screens[%d]: duplicate id %q", i, screen.ID))
		}
		seen[screen.ID] = struct{}{}

		targets := make(map[string]struct{}, len(screen.Bindings))
		for j, binding := range screen.Bindings {
			if binding.Target == "" {
				errs = append(errs, fmt.Errorf("manifest: screens[%d].bindings[%d]: missing target", i, j))
			}
			if binding.Key == "" {
				errs = append(errs, fmt.Errorf("manifest: screens[%d].bindings[%d]: missing key", i, j))
			}
			if binding.Mode != "" {
				if _, err := multiscreen.ParseBindingMode(binding.Mode); err != nil {
					errs = append(errs, fmt.Errorf("manifest: screens[%d].bindings[%d]: %w", i, j, err))
				}
			}
			if binding.Target != "" {
				if _, dup := targets[binding.Target]; dup {
					errs = append(errs, fmt.Errorf("manifest: screens[%d].bindings[%d]: target %q bound twice", i, j, binding.Target))
				}
				targets[binding.Target] = struct{}{}
			}
		}
	}

	if m.Active != "" {
		if _, ok := seen[m.Active]; !ok {
			errs = append(errs, fmt.Errorf("manifest: active screen %q is not declared", m.Active))
		}
	}

	return errors.Join(errs...)
}

// Encode writes the manifest as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	return enc.Close()
}
