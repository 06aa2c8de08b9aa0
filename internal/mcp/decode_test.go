package mcp

import (
	"testing"

	"github.com/hpungsan/wishaday/internal/errors"
)

func TestDecode_TrimsIdentifiers(t *testing.T) {
	got, err := decode[DetachImageRequest](makeRequest(map[string]any{
		"slug":     "  abcd2345\n",
		"image_id": " 01IMG ",
	}))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if got.Slug != "abcd2345" || got.ImageID != "01IMG" {
		t.Errorf("decode() = %+v, want trimmed fields", got)
	}
}

func TestDecode_TypeErrorNamesField(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"string field", map[string]any{"message": 42}, "message must be a string"},
		{"number field", map[string]any{"message": "hi", "max_views": "three"}, "max_views must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode[CreateRequest](makeRequest(tt.args))
			wErr, ok := errors.As(err)
			if !ok || wErr.Code != errors.ErrInvalidRequest {
				t.Fatalf("decode() error = %v, want INVALID_REQUEST", err)
			}
			if wErr.Message != tt.want {
				t.Errorf("message = %q, want %q", wErr.Message, tt.want)
			}
		})
	}
}
