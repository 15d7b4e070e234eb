package utils

import "testing"

func TestTempIDs(t *testing.T) {
	id := NewTempID()
	if !IsTempID(id) {
		t.Errorf("IsTempID(%q) = false", id)
	}
	if IsUUID(id) {
		t.Errorf("temp id %q must not parse as a row id", id)
	}
	if !IsTempID("") {
		t.Error("empty id is treated as unsaved")
	}

	real := NewUUID()
	if IsTempID(real) || !IsUUID(real) {
		t.Errorf("row id %q misclassified", real)
	}
}
