package protocol

import (
	"testing"

	"github.com/google/uuid"
)

func TestOfflineUUID(t *testing.T) {
	id := OfflineUUID("steve")

	if id == uuid.Nil {
		t.Fatal("OfflineUUID() returned the nil UUID")
	}
	if id.Version() != 3 {
		t.Errorf("OfflineUUID() version = %d, want 3", id.Version())
	}
	if id.Variant() != uuid.RFC4122 {
		t.Errorf("OfflineUUID() variant = %v, want RFC4122", id.Variant())
	}

	if id != OfflineUUID("steve") {
		t.Error("OfflineUUID() is not deterministic")
	}
	if id == OfflineUUID("Steve") {
		t.Error("OfflineUUID() is not case sensitive")
	}
}
