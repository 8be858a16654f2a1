package attendance

import (
	"context"
	"errors"
	"testing"
)

func TestRepositoryRejectsMalformedIDs(t *testing.T) {
	// A nil handle proves the database is never reached.
	repo := NewRepository(nil, nil)
	ctx := context.Background()
	valid := "6f1c2a3e-8d4b-4c1a-9e2f-0a1b2c3d4e5f"

	tests := []struct {
		name string
		del  func() error
	}{
		{"record id", func() error { return repo.DeleteRecord(ctx, "rec-1") }},
		{"person record id", func() error { return repo.DeletePersonRecord(ctx, valid, "rec-1") }},
		{"person id", func() error { return repo.DeletePersonRecord(ctx, "p1", valid) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.del(); !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}
