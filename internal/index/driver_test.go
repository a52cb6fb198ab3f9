package index

import (
	"context"
	"testing"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
)

func TestOpen_MemoryDriver(t *testing.T) {
	cfg := config.IndexConfig{Driver: "memory", Dimensions: 4, M: 16, EfConstruction: 200, EfSearch: 100}

	idx, err := Open(context.Background(), nil, "smart_search", cfg, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	mem, ok := idx.(*MemoryIndex)
	if !ok {
		t.Fatalf("expected an in-process index, got %T", idx)
	}
	if mem.Dimensions() != 4 {
		t.Errorf("expected configured dimensions, got %d", mem.Dimensions())
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := config.IndexConfig{Driver: "redis", Dimensions: 4}

	_, err := Open(context.Background(), nil, "smart_search", cfg, false)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for unknown driver, got %v", err)
	}
}
