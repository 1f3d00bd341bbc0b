package services_test

import (
	"context"
	"testing"

	"lightbox/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPhotoID(ctx, 42)
	ctx = services.WithUnit(ctx, "face")
	ctx = services.WithRunID(ctx, "run-123")

	if id, ok := services.PhotoIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected photo id: %v %v", id, ok)
	}
	if unit, ok := services.UnitFromContext(ctx); !ok || unit != "face" {
		t.Fatalf("unexpected unit: %v %v", unit, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestUnitBlankPreservesContext(t *testing.T) {
	ctx := services.WithUnit(context.Background(), "")
	if _, ok := services.UnitFromContext(ctx); ok {
		t.Fatal("expected no unit value")
	}
}
