package state

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

func emptyDoc() *docstore.Document {
	return docstore.NewDocument(map[string]any{})
}

// =============================================================================
// NewBase Tests
// =============================================================================

func TestNewBase(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "canonical", id: id.String()},
		{name: "upper case", id: "0F8FAD5B-D9CB-469F-A165-70867728950E"},
		{name: "urn prefixed", id: "urn:uuid:" + id.String()},
		{name: "braced", id: "{" + id.String() + "}"},
		{name: "empty", id: "", wantErr: true},
		{name: "garbage", id: "not-a-uuid", wantErr: true},
		{name: "bare hex", id: "0f8fad5bd9cb469fa16570867728950e", wantErr: true},
		{name: "truncated", id: id.String()[:35], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBase(tt.id, emptyDoc())
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("NewBase(%q) error = %v, want ErrInvalidArgument", tt.id, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBase(%q) error = %v", tt.id, err)
			}
			if b.ID() == uuid.Nil {
				t.Error("ID() is nil UUID")
			}
		})
	}
}

func TestNewBase_IDRoundTrip(t *testing.T) {
	id := uuid.New()
	doc := emptyDoc()

	b, err := NewBase(id.String(), doc)
	if err != nil {
		t.Fatalf("NewBase() error = %v", err)
	}
	if b.ID() != id {
		t.Errorf("ID() = %v, want %v", b.ID(), id)
	}
	if b.Document() != doc {
		t.Error("Document() did not return the backing document")
	}

	m := b.ToMap()
	if len(m) != 1 || m["id"] != id.String() {
		t.Errorf("ToMap() = %v", m)
	}
}

func TestNewBase_NilDocument(t *testing.T) {
	if _, err := NewBase(uuid.NewString(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewBase(nil document) error = %v, want ErrInvalidArgument", err)
	}
}
