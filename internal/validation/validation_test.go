package validation

import (
	"context"
	"testing"

	"github.com/kailas-cloud/resdomain/internal/domain/resource"
)

type book struct {
	ID    string  `json:"id,omitempty"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

func (b *book) EntityType() string    { return "book" }
func (b *book) EntityID() string      { return b.ID }
func (b *book) SetEntityID(id string) { b.ID = id }

func TestExpr_Validate(t *testing.T) {
	v, err := NewExpr([]Rule{
		{Path: "title", Expr: `title != ""`, Message: "title is required"},
		{Path: "price", Expr: `self.price >= 0`},
	})
	if err != nil {
		t.Fatalf("NewExpr: %v", err)
	}

	b := &book{Title: "", Price: -1}
	got := v.Validate(context.Background(), b)
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(got), got)
	}
	if got[0].Message != "title is required" || got[0].Path != "title" || got[0].Code != CodeRule {
		t.Errorf("violation[0] = %+v", got[0])
	}
	if got[1].Message != "price is invalid" {
		t.Errorf("violation[1].Message = %q", got[1].Message)
	}
	if got[0].Root != b {
		t.Error("violation root must be the entity")
	}

	if got := v.Validate(context.Background(), &book{Title: "Go", Price: 10}); len(got) != 0 {
		t.Errorf("expected no violations, got %v", got)
	}
}

func TestCEL_Validate(t *testing.T) {
	v, err := NewCEL([]Rule{
		{Path: "title", Expr: `size(self.title) > 0`, Message: "title is required"},
		{Path: "price", Expr: `self.price < 1000.0`, Message: "too expensive"},
	})
	if err != nil {
		t.Fatalf("NewCEL: %v", err)
	}

	got := v.Validate(context.Background(), &book{Title: "", Price: 5000})
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(got), got)
	}
	if got[1].Message != "too expensive" {
		t.Errorf("violation[1].Message = %q", got[1].Message)
	}

	if got := v.Validate(context.Background(), &book{Title: "Go", Price: 10}); len(got) != 0 {
		t.Errorf("expected no violations, got %v", got)
	}
}

func TestNew_MixedLanguages(t *testing.T) {
	v, err := New([]Rule{
		{Path: "title", Expr: `title != ""`},
		{Path: "title", Expr: `size(self.title) < 10`, Lang: LangCEL},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.Len() != 2 {
		t.Errorf("Len() = %d", v.Len())
	}
	got := v.Validate(context.Background(), &book{Title: "a very long title"})
	if len(got) != 1 || got[0].Message != "title is invalid" {
		t.Errorf("violations = %v", got)
	}
}

func TestNew_CompileErrors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"empty expr", Rule{Expr: ""}},
		{"bad expr syntax", Rule{Expr: "title =="}},
		{"bad cel syntax", Rule{Expr: "self.title ==", Lang: LangCEL}},
		{"unknown language", Rule{Expr: "true", Lang: "lua"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New([]Rule{tt.rule}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate_NonBoolResult(t *testing.T) {
	v, err := NewExpr([]Rule{{Path: "title", Expr: `title`}})
	if err != nil {
		t.Fatalf("NewExpr: %v", err)
	}
	got := v.Validate(context.Background(), &book{Title: "x"})
	if len(got) != 1 || got[0].Code != CodeEvalError {
		t.Errorf("violations = %v", got)
	}
}

func TestValidate_CELEvaluationError(t *testing.T) {
	v, err := NewCEL([]Rule{{Path: "isbn", Expr: `self.isbn != ""`}})
	if err != nil {
		t.Fatalf("NewCEL: %v", err)
	}
	got := v.Validate(context.Background(), &book{Title: "x"})
	if len(got) != 1 || got[0].Code != CodeEvalError {
		t.Errorf("violations = %v", got)
	}
}

func TestChain(t *testing.T) {
	always := Func(func(_ context.Context, e resource.Entity) []resource.Violation {
		return []resource.Violation{resource.NewViolation("always", e)}
	})
	rules, err := NewExpr([]Rule{{Expr: `title != ""`}})
	if err != nil {
		t.Fatalf("NewExpr: %v", err)
	}

	got := Chain(always, nil, rules).Validate(context.Background(), &book{})
	if len(got) != 2 {
		t.Fatalf("expected 2 violations, got %v", got)
	}
	if got[0].Message != "always" || got[1].Message != "The resource is invalid" {
		t.Errorf("violations = %v", got)
	}
}

func TestFields(t *testing.T) {
	fields, err := Fields(&book{ID: "1", Title: "Go", Price: 2})
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if fields["title"] != "Go" || fields["price"] != float64(2) {
		t.Errorf("fields = %v", fields)
	}
}
