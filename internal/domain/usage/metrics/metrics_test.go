package metrics

import "testing"

func TestNew(t *testing.T) {
	m := New(100, 50000)
	if m.Texts() != 100 {
		t.Errorf("Texts() = %d", m.Texts())
	}
	if m.Tokens() != 50000 {
		t.Errorf("Tokens() = %d", m.Tokens())
	}
}

func TestNew_Zero(t *testing.T) {
	m := New(0, 0)
	if m.Texts() != 0 || m.Tokens() != 0 {
		t.Error("zero metrics should have zero values")
	}
}
