package requestctx

import (
	"context"
	"testing"
)

func TestSubjectRoundTrip(t *testing.T) {
	ctx := WithSubject(context.Background(), "auditor@example.gov")
	if got := SubjectFromContext(ctx); got != "auditor@example.gov" {
		t.Fatalf("subject = %q, want auditor@example.gov", got)
	}
}

func TestSubjectFromContextDefaults(t *testing.T) {
	if got := SubjectFromContext(context.Background()); got != "" {
		t.Fatalf("subject = %q, want empty", got)
	}
	if got := SubjectFromContext(nil); got != "" {
		t.Fatalf("subject from nil ctx = %q, want empty", got)
	}
}

func TestWithSubjectNilContext(t *testing.T) {
	ctx := WithSubject(nil, "auditor")
	if got := SubjectFromContext(ctx); got != "auditor" {
		t.Fatalf("subject = %q, want auditor", got)
	}
}
