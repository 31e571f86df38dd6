package id

import (
	"path/filepath"
	"regexp"
	"testing"
)

var renderIDPattern = regexp.MustCompile(`^render-\d{8}-[0-9a-f]{32}$`)

func TestGenerate(t *testing.T) {
	id := Generate()

	if !renderIDPattern.MatchString(id) {
		t.Errorf("unexpected ID format: %s", id)
	}
	if filepath.Base(id) != id {
		t.Errorf("ID must be usable as a single path element: %s", id)
	}

	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
