package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	multiscreen "github.com/georgeantonopoulos/Nuke"
)

// Report summarizes what Apply changed.
type Report struct {
	ScreensAdded int
	VarsSet      int
	BindingsMade int
	// Warnings carries non-fatal bind failures: targets missing from the
	// host graph or targets already bound elsewhere.
	Warnings []error
}

// Apply seeds the session from the manifest. It is idempotent: screens that
// already exist are kept, variables are overwritten with manifest values,
// and bindings that already exist with the same shape are left alone.
// Bind failures against the live host degrade to warnings so one missing
// target does not abandon the rest of the manifest.
func (m *Manifest) Apply(s *multiscreen.Session) (Report, error) {
	var report Report
	if s == nil {
		return report, fmt.Errorf("manifest: session is required")
	}
	if err := m.Validate(); err != nil {
		return report, err
	}

	registry := s.Registry()
	for _, screen := range m.Screens {
		if registry.Has(screen.ID) {
			continue
		}
		if err := registry.Add(screen.ID); err != nil {
			return report, fmt.Errorf("manifest: add screen %q: %w", screen.ID, err)
		}
		report.ScreensAdded++
	}

	for _, key := range sortedKeys(m.Defaults) {
		if err := s.SetVariable(multiscreen.RootScopeName, key, m.Defaults[key]); err != nil {
			return report, fmt.Errorf("manifest: set default %q: %w", key, err)
		}
		report.VarsSet++
	}
	for _, screen := range m.Screens {
		for _, key := range sortedKeys(screen.Vars) {
			if err := s.SetVariable(screen.ID, key, screen.Vars[key]); err != nil {
				return report, fmt.Errorf("manifest: set %s.%s: %w", screen.ID, key, err)
			}
			report.VarsSet++
		}
	}

	for _, screen := range m.Screens {
		for _, binding := range screen.Bindings {
			mode := multiscreen.ModePull
			if binding.Mode != "" {
				parsed, err := multiscreen.ParseBindingMode(binding.Mode)
				if err != nil {
					return report, fmt.Errorf("manifest: bind %q: %w", binding.Target, err)
				}
				mode = parsed
			}
			_, err := registry.Bind(binding.Target, screen.ID, binding.Key, mode)
			switch {
			case err == nil:
				report.BindingsMade++
			case errors.Is(err, multiscreen.ErrNotFound) || errors.Is(err, multiscreen.ErrConflict):
				report.Warnings = append(report.Warnings,
					fmt.Errorf("manifest: bind %q to %s.%s: %w", binding.Target, screen.ID, binding.Key, err))
			default:
				return report, fmt.Errorf("manifest: bind %q to %s.%s: %w", binding.Target, screen.ID, binding.Key, err)
			}
		}
	}

	if m.Active != "" {
		if err := s.Controller().Activate(m.Active); err != nil {
			return report, fmt.Errorf("manifest: activate %q: %w", m.Active, err)
		}
	}
	return report, nil
}

// Export captures the session's current screens, variables, and bindings as
// a manifest. Root variables that belong to unregistered scopes keep their
// full dot path under defaults.
func Export(s *multiscreen.Session, project string) (*Manifest, error) {
	if s == nil {
		return nil, fmt.Errorf("manifest: session is required")
	}

	m := &Manifest{Version: supportedVersion, Project: project}
	if active, ok := s.Controller().ActiveScreen(); ok {
		m.Active = active
	}

	registry := s.Registry()
	index := map[string]int{}
	for _, id := range registry.Screens() {
		index[id] = len(m.Screens)
		m.Screens = append(m.Screens, Screen{ID: id})
	}

	store := s.Store()
	for _, scopePath := range store.ScopePaths() {
		vars, err := store.Variables(scopePath)
		if err != nil {
			return nil, fmt.Errorf("manifest: export scope %q: %w", scopePath, err)
		}
		for key, value := range vars {
			if scopePath == multiscreen.RootScopeName {
				if key == multiscreen.ActiveScreenKey {
					continue
				}
				m.setDefault(key, value)
				continue
			}
			head, rest, _ := strings.Cut(scopePath, ".")
			at, registered := index[head]
			if !registered {
				m.setDefault(scopePath+"."+key, value)
				continue
			}
			relative := key
			if rest != "" {
				relative = rest + "." + key
			}
			if m.Screens[at].Vars == nil {
				m.Screens[at].Vars = map[string]string{}
			}
			m.Screens[at].Vars[relative] = value
		}
	}

	for at, screen := range m.Screens {
		for _, binding := range registry.Bindings(screen.ID) {
			m.Screens[at].Bindings = append(m.Screens[at].Bindings, Binding{
				Target: binding.TargetRef,
				Key:    binding.Key,
				Mode:   binding.Mode.String(),
			})
		}
	}
	return m, nil
}

func (m *Manifest) setDefault(key, value string) {
	if m.Defaults == nil {
		m.Defaults = map[string]string{}
	}
	m.Defaults[key] = value
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
