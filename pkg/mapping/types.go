package mapping

// SourceField represents one occurrence of a scanned column name.
// Duplicate raw names yield distinct SourceFields with distinct IDs.
type SourceField struct {
	// ID is the stable disambiguated identifier for this occurrence.
	ID string `json:"id"`

	// RawName is the column name exactly as scanned.
	RawName string `json:"raw_name"`

	// DisplayName is the name shown to an operator; duplicates carry
	// a 1-based " (n)" suffix.
	DisplayName string `json:"display_name"`
}

// TargetField represents one field of the fixed application schema.
type TargetField struct {
	// ID is the schema identifier of the field.
	ID string `json:"id"`

	// Name is the human-readable field name.
	Name string `json:"name"`

	// Required marks fields that must be mapped before install proceeds.
	Required bool `json:"required"`
}

// State holds the full mapping session: the scanned source fields, the
// schema target fields, and the two link maps. The maps are mutual duals:
// TargetToSource[t] == s exactly when t is in SourceToTargets[s].
type State struct {
	// Override permits one source to feed multiple targets. Each target
	// still accepts at most one source regardless of mode.
	Override bool `json:"override"`

	// SourceFields lists the disambiguated scanned fields in scan order.
	SourceFields []SourceField `json:"source_fields"`

	// TargetFields lists the fixed schema fields.
	TargetFields []TargetField `json:"target_fields"`

	// SourceToTargets maps a source ID to the target IDs it feeds.
	SourceToTargets map[string][]string `json:"source_to_targets"`

	// TargetToSource maps a target ID to the single source ID feeding it.
	TargetToSource map[string]string `json:"target_to_source"`
}

// NewState builds a mapping session with no links.
func NewState(sources []SourceField, targets []TargetField, override bool) *State {
	return &State{
		Override:        override,
		SourceFields:    sources,
		TargetFields:    targets,
		SourceToTargets: make(map[string][]string),
		TargetToSource:  make(map[string]string),
	}
}

// UnmappedRequired returns the required target fields that have no source
// mapped, in schema order. The caller decides whether that blocks
// progression; the resolver only reports.
func (s *State) UnmappedRequired() []TargetField {
	var missing []TargetField
	for _, t := range s.TargetFields {
		if t.Required {
			if _, ok := s.TargetToSource[t.ID]; !ok {
				missing = append(missing, t)
			}
		}
	}
	return missing
}

// Complete reports whether every required target field is mapped.
func (s *State) Complete() bool {
	return len(s.UnmappedRequired()) == 0
}

// CanonicalDocument returns the persisted mapping view: target field name
// to source raw name, for every mapped target. No secrets, no IDs.
func (s *State) CanonicalDocument() map[string]string {
	rawByID := make(map[string]string, len(s.SourceFields))
	for _, f := range s.SourceFields {
		rawByID[f.ID] = f.RawName
	}
	doc := make(map[string]string, len(s.TargetToSource))
	for _, t := range s.TargetFields {
		if src, ok := s.TargetToSource[t.ID]; ok {
			doc[t.Name] = rawByID[src]
		}
	}
	return doc
}
