package services_test

import (
	"context"
	"testing"

	"bookclub/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithReaderID(ctx, "reader-1")
	ctx = services.WithGroupID(ctx, "group-1")
	ctx = services.WithBookID(ctx, "book-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ReaderIDFromContext(ctx); !ok || id != "reader-1" {
		t.Fatalf("unexpected reader id: %v %v", id, ok)
	}
	if id, ok := services.GroupIDFromContext(ctx); !ok || id != "group-1" {
		t.Fatalf("unexpected group id: %v %v", id, ok)
	}
	if id, ok := services.BookIDFromContext(ctx); !ok || id != "book-1" {
		t.Fatalf("unexpected book id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithReaderID(ctx, "")
	ctx = services.WithGroupID(ctx, "")
	if _, ok := services.ReaderIDFromContext(ctx); ok {
		t.Fatal("expected no reader value")
	}
	if _, ok := services.GroupIDFromContext(ctx); ok {
		t.Fatal("expected no group value")
	}
}
