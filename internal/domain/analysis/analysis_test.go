package analysis

import (
	"encoding/json"
	"testing"
)

func TestNewClonePair_Canonical(t *testing.T) {
	if p := NewClonePair(3, 1); p.A != 1 || p.B != 3 {
		t.Errorf("expected (1, 3), got %v", p)
	}
}

func TestClonePair_JSON(t *testing.T) {
	data, err := json.Marshal([]ClonePair{{A: 0, B: 1}, {A: 2, B: 5}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[[0,1],[2,5]]" {
		t.Errorf("unexpected encoding %s", data)
	}

	var p ClonePair
	if err := json.Unmarshal([]byte("[4,7]"), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.A != 4 || p.B != 7 {
		t.Errorf("unexpected pair %v", p)
	}
}

func TestClonePair_UnmarshalRejectsNonCanonical(t *testing.T) {
	var p ClonePair
	if err := json.Unmarshal([]byte("[7,4]"), &p); err == nil {
		t.Fatal("expected error for a > b")
	}
	if err := json.Unmarshal([]byte("[2,2]"), &p); err == nil {
		t.Fatal("expected error for a == b")
	}
}

func TestNewMatrix(t *testing.T) {
	m := NewMatrix(3)
	if m.Size() != 3 {
		t.Fatalf("expected 3 rows, got %d", m.Size())
	}
	for i, row := range m {
		if len(row) != 3 {
			t.Errorf("row %d has %d columns", i, len(row))
		}
	}
}
