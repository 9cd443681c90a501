package mapping

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "City", "City"},
		{"spaces", "First Name", "First_Name"},
		{"punctuation", "Zip/Postal Code", "Zip_Postal_Code"},
		{"collapse runs", "a--__--b", "a_b"},
		{"trim edges", "__edge__", "edge"},
		{"digits kept", "Col42", "Col42"},
		{"unicode replaced", "prix€", "prix"},
		{"empty falls back", "", "field"},
		{"all symbols fall back", "***", "field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScanFieldsDuplicates(t *testing.T) {
	fields := ScanFields([]string{"City", "City", "Zip"})

	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}

	want := []struct {
		id      string
		raw     string
		display string
	}{
		{"City__0", "City", "City (1)"},
		{"City__1", "City", "City (2)"},
		{"Zip__0", "Zip", "Zip"},
	}

	for i, w := range want {
		got := fields[i]
		if got.ID != w.id {
			t.Errorf("field %d: ID = %q, want %q", i, got.ID, w.id)
		}
		if got.RawName != w.raw {
			t.Errorf("field %d: RawName = %q, want %q", i, got.RawName, w.raw)
		}
		if got.DisplayName != w.display {
			t.Errorf("field %d: DisplayName = %q, want %q", i, got.DisplayName, w.display)
		}
	}
}

func TestScanFieldsStableAcrossScans(t *testing.T) {
	names := []string{"a b", "a_b", "a b", "c"}

	first := ScanFields(names)
	second := ScanFields(names)

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("field %d: ID changed between scans: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestScanFieldsOrdinalPerSanitizedToken(t *testing.T) {
	// Distinct raw names that sanitize to the same token must still get
	// unique IDs; the ordinal counts per token.
	fields := ScanFields([]string{"a b", "a_b", "a b"})

	want := []struct {
		id      string
		display string
	}{
		{"a_b__0", "a b (1)"},
		{"a_b__1", "a_b"},
		{"a_b__2", "a b (2)"},
	}

	for i, w := range want {
		if fields[i].ID != w.id {
			t.Errorf("fields[%d].ID = %q, want %q", i, fields[i].ID, w.id)
		}
		if fields[i].DisplayName != w.display {
			t.Errorf("fields[%d].DisplayName = %q, want %q", i, fields[i].DisplayName, w.display)
		}
	}
}

func TestScanFieldsCollidingTokensKeepIdentity(t *testing.T) {
	sources := ScanFields([]string{"a b", "a_b"})

	if sources[0].ID == sources[1].ID {
		t.Fatalf("colliding tokens share ID %q", sources[0].ID)
	}

	targets := []TargetField{{ID: "t1", Name: "T1", Required: true}}
	state := NewState(sources, targets, false)

	if _, err := state.AttemptMap(sources[0].ID, "t1"); err != nil {
		t.Fatalf("AttemptMap: %v", err)
	}

	doc := state.CanonicalDocument()
	if doc["T1"] != "a b" {
		t.Errorf("canonical document attributes T1 to %q, want %q", doc["T1"], "a b")
	}
}
