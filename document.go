package multiscreen

import (
	"fmt"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/georgeantonopoulos/Nuke/internal/docenc"
)

// documentHeader opens every embedded block; documentFooter closes it so a
// block inside a larger host document has a definite end.
const (
	documentHeader  = "multiscreen"
	documentVersion = "1"
	documentFooter  = "end"
)

// Document is the wire form of a session's screen state: screens in
// insertion order, the active pointer, every scope's variables, and the
// binding table with dangling records intact.
type Document struct {
	Screens  []string      `json:"screens"`
	Active   string        `json:"active,omitempty"`
	Scopes   []string      `json:"scopes,omitempty"`
	Vars     []DocumentVar `json:"vars"`
	Bindings []Binding     `json:"bindings,omitempty"`
}

// DocumentVar is one persisted variable, addressed by its full path.
type DocumentVar struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// LoadReport summarizes a document replay: what was reinstated and which
// bindings arrived or became dangling.
type LoadReport struct {
	Screens  int
	Vars     int
	Bindings int
	Dangling []uuid.UUID
	Warnings []error
}

// SnapshotDocument collects the session's current state into a Document.
// Output ordering is deterministic so repeated snapshots of identical state
// encode identically.
func SnapshotDocument(s *Session) Document {
	doc := Document{Screens: s.registry.Screens()}
	doc.Active, _ = s.store.activeScreen()

	screens := make(map[string]struct{}, len(doc.Screens))
	for _, id := range doc.Screens {
		screens[id] = struct{}{}
	}

	paths := s.store.ScopePaths()
	for _, path := range paths {
		vars, err := s.store.Variables(path)
		if err != nil {
			continue
		}
		if emptyLeafScope(path, vars, paths, screens) {
			doc.Scopes = append(doc.Scopes, path)
		}
		keys := make([]string, 0, len(vars))
		for key := range vars {
			if path == RootScopeName && key == ActiveScreenKey {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			doc.Vars = append(doc.Vars, DocumentVar{Path: joinPath(path, key), Value: vars[key]})
		}
	}

	doc.Bindings = s.registry.Bindings("")
	return doc
}

// emptyLeafScope reports whether path must be persisted explicitly: it is
// not the root, not a screen, stores nothing, and no deeper path implies it.
func emptyLeafScope(path string, vars map[string]string, paths []string, screens map[string]struct{}) bool {
	if path == RootScopeName || len(vars) > 0 {
		return false
	}
	if _, isScreen := screens[path]; isScreen {
		return false
	}
	prefix := path + pathSeparator
	for _, other := range paths {
		if strings.HasPrefix(other, prefix) {
			return false
		}
	}
	return true
}

// Encode writes the document as an embedded text block.
func (d Document) Encode(w io.Writer) error {
	lines := make([]string, 0, 2+len(d.Screens)+len(d.Scopes)+len(d.Vars)+len(d.Bindings))
	lines = append(lines, docenc.EncodeLine(documentHeader, documentVersion))
	for _, id := range d.Screens {
		lines = append(lines, docenc.EncodeLine("screen", id))
	}
	if d.Active != "" {
		lines = append(lines, docenc.EncodeLine("active", d.Active))
	}
	for _, path := range d.Scopes {
		lines = append(lines, docenc.EncodeLine("scope", path))
	}
	for _, v := range d.Vars {
		lines = append(lines, docenc.EncodeLine("var", v.Path, v.Value))
	}
	for _, b := range d.Bindings {
		state := "live"
		if b.Dangling {
			state = "dangling"
		}
		lines = append(lines, docenc.EncodeLine("bind", b.ID.String(), b.TargetRef, b.ScreenID, b.Key, b.Mode.String(), state))
	}
	lines = append(lines, documentFooter)

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("multiscreen: encode document: %w", err)
		}
	}
	return nil
}

// EncodeDocument snapshots s and writes the block to w.
func EncodeDocument(s *Session, w io.Writer) error {
	return SnapshotDocument(s).Encode(w)
}

// DecodeDocument parses an embedded text block. It validates structure only;
// ApplyDocument replays the result onto a session.
func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	scanner := docenc.NewScanner(r)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("multiscreen: document is empty")
	}
	header := scanner.Fields()
	if len(header) != 2 || header[0] != documentHeader || header[1] != documentVersion {
		return Document{}, fmt.Errorf("multiscreen: line %d: unsupported document header %q", scanner.Line(), strings.Join(header, " "))
	}

	terminated := false
	for scanner.Scan() {
		fields := scanner.Fields()
		line := scanner.Line()
		switch fields[0] {
		case documentFooter:
			if len(fields) != 1 {
				return Document{}, fmt.Errorf("multiscreen: line %d: malformed end record", line)
			}
			terminated = true
		case "screen":
			if len(fields) != 2 {
				return Document{}, fmt.Errorf("multiscreen: line %d: screen record wants 1 field, got %d", line, len(fields)-1)
			}
			if err := validateScreenID(fields[1]); err != nil {
				return Document{}, fmt.Errorf("multiscreen: line %d: %w", line, err)
			}
			doc.Screens = append(doc.Screens, fields[1])
		case "active":
			if len(fields) != 2 {
				return Document{}, fmt.Errorf("multiscreen: line %d: active record wants 1 field, got %d", line, len(fields)-1)
			}
			doc.Active = fields[1]
		case "scope":
			if len(fields) != 2 {
				return Document{}, fmt.Errorf("multiscreen: line %d: scope record wants 1 field, got %d", line, len(fields)-1)
			}
			if _, err := splitScopePath(fields[1]); err != nil {
				return Document{}, fmt.Errorf("multiscreen: line %d: %w", line, err)
			}
			doc.Scopes = append(doc.Scopes, fields[1])
		case "var":
			if len(fields) != 3 {
				return Document{}, fmt.Errorf("multiscreen: line %d: var record wants 2 fields, got %d", line, len(fields)-1)
			}
			if _, _, err := SplitPath(fields[1]); err != nil {
				return Document{}, fmt.Errorf("multiscreen: line %d: %w", line, err)
			}
			doc.Vars = append(doc.Vars, DocumentVar{Path: fields[1], Value: fields[2]})
		case "bind":
			binding, err := decodeBindRecord(fields)
			if err != nil {
				return Document{}, fmt.Errorf("multiscreen: line %d: %w", line, err)
			}
			doc.Bindings = append(doc.Bindings, binding)
		default:
			return Document{}, fmt.Errorf("multiscreen: line %d: unknown record %q", line, fields[0])
		}
		if terminated {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Document{}, err
	}
	if !terminated {
		return Document{}, fmt.Errorf("multiscreen: document truncated: missing %s record", documentFooter)
	}
	return doc, nil
}

func decodeBindRecord(fields []string) (Binding, error) {
	if len(fields) != 7 {
		return Binding{}, fmt.Errorf("bind record wants 6 fields, got %d", len(fields)-1)
	}
	id, err := uuid.Parse(fields[1])
	if err != nil {
		return Binding{}, fmt.Errorf("bad binding id %q: %w", fields[1], err)
	}
	mode, err := ParseBindingMode(fields[5])
	if err != nil {
		return Binding{}, err
	}
	var dangling bool
	switch fields[6] {
	case "live":
	case "dangling":
		dangling = true
	default:
		return Binding{}, fmt.Errorf("bad binding state %q", fields[6])
	}
	if _, err := splitKey(fields[4]); err != nil {
		return Binding{}, err
	}
	return Binding{
		ID:        id,
		TargetRef: fields[2],
		ScreenID:  fields[3],
		Key:       fields[4],
		Mode:      mode,
		Dangling:  dangling,
	}, nil
}

// ApplyDocument replays doc onto s, which must be freshly constructed.
// Live bindings revalidate against the registry and host: a missing screen
// or target degrades the record to dangling and lands in the report rather
// than failing the load. Dangling records come back exactly as persisted.
func ApplyDocument(s *Session, doc Document) (LoadReport, error) {
	report := LoadReport{}
	for _, id := range doc.Screens {
		if err := s.registry.Add(id); err != nil {
			return report, err
		}
		report.Screens++
	}
	for _, path := range doc.Scopes {
		if err := s.store.EnsureScope(path); err != nil {
			return report, err
		}
	}
	for _, v := range doc.Vars {
		scopePath, key, err := SplitPath(v.Path)
		if err != nil {
			return report, err
		}
		if err := s.store.Set(scopePath, key, v.Value); err != nil {
			return report, err
		}
		report.Vars++
	}
	if doc.Active != "" {
		if s.registry.Has(doc.Active) {
			s.store.writeActive(doc.Active)
		} else {
			report.Warnings = append(report.Warnings, notFoundScreen(doc.Active, s.registry.Nearest(doc.Active)))
		}
	}
	for _, b := range doc.Bindings {
		restored := b
		if !restored.Dangling {
			switch {
			case !s.registry.Has(restored.ScreenID):
				restored.Dangling = true
				report.Warnings = append(report.Warnings,
					fmt.Errorf("%w: screen %q for binding %s", ErrDanglingReference, restored.ScreenID, restored.ID))
			case !s.host.HasTarget(restored.TargetRef):
				restored.Dangling = true
				report.Warnings = append(report.Warnings,
					fmt.Errorf("%w: target %q for binding %s", ErrDanglingReference, restored.TargetRef, restored.ID))
			case restored.Mode == ModePull:
				if err := s.host.AssignExpression(restored.TargetRef, s.registry.pullExpr(restored.ScreenID, restored.Key)); err != nil {
					restored.Dangling = true
					report.Warnings = append(report.Warnings,
						fmt.Errorf("%w: expression for binding %s: %v", ErrDanglingReference, restored.ID, err))
				}
			}
		}
		if restored.Dangling {
			report.Dangling = append(report.Dangling, restored.ID)
		}
		s.registry.restoreBinding(restored)
		report.Bindings++
	}
	s.registry.deliver()
	return report, nil
}

// LoadDocument decodes a block from r and replays it onto s.
func LoadDocument(s *Session, r io.Reader) (LoadReport, error) {
	doc, err := DecodeDocument(r)
	if err != nil {
		return LoadReport{}, err
	}
	return ApplyDocument(s, doc)
}

// ToJSON renders the document for interchange with external tooling.
func (d Document) ToJSON() ([]byte, error) {
	type alias Document
	return json.Marshal(alias(d))
}

// DocumentFromJSON deserialises a payload previously generated via ToJSON.
func DocumentFromJSON(payload []byte) (Document, error) {
	type alias Document
	var doc alias
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Document{}, fmt.Errorf("multiscreen: decode document: %w", err)
	}
	return Document(doc), nil
}
