package aggregate

import (
	"errors"
	"reflect"
	"testing"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/domain/accumulate"
)

func TestSimple_EmptyInputYieldsNil(t *testing.T) {
	got, err := NewSimple(nil).Fold(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("fold of nothing = %v, want nil", got)
	}
}

func TestSimple_DefaultSetFold(t *testing.T) {
	docs := []map[string]any{
		{"name": "Foo"},
		{"name": "Bar"},
		{"name": "Foo"},
	}
	got, err := NewSimple(nil).Fold(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"name": []any{"Bar", "Foo"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fold = %v, want %v", got, want)
	}
}

func TestSimple_ListValuedFieldFlattens(t *testing.T) {
	docs := []map[string]any{
		{"species": []any{"human", "mouse"}},
		{"species": []any{"mouse", "zebrafish"}},
	}
	got, err := NewSimple(nil).Fold(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"species": []any{"human", "mouse", "zebrafish"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fold = %v, want %v", got, want)
	}
}

func TestSimple_DateFieldsUseMinMax(t *testing.T) {
	docs := []map[string]any{
		{"submission_date": "2020-01-02", "update_date": "2020-01-02"},
		{"submission_date": "2020-01-01", "update_date": "2020-01-03"},
	}
	got, err := NewSimple(nil).Fold(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["submission_date"] != "2020-01-01" {
		t.Errorf("submission_date = %v, want earliest", got["submission_date"])
	}
	if got["update_date"] != "2020-01-03" {
		t.Errorf("update_date = %v, want latest", got["update_date"])
	}
}

func TestSimple_NilFactoryDropsField(t *testing.T) {
	policy := accumulate.OverridePolicy(accumulate.DefaultPolicy,
		map[string]accumulate.Factory{"internal_id": nil})
	got, err := NewSimple(policy).Fold([]map[string]any{
		{"internal_id": "x", "name": "Foo"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["internal_id"]; ok {
		t.Fatal("dropped field leaked into aggregate")
	}
	if _, ok := got["name"]; !ok {
		t.Fatal("kept field missing from aggregate")
	}
}

func TestSimple_Determinism(t *testing.T) {
	docs := []map[string]any{
		{"name": "Foo", "size": 1, "labels": []any{"a", "b"}},
		{"name": "Bar", "size": 2, "labels": []any{"b"}},
	}
	first, err := NewSimple(nil).Fold(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := NewSimple(nil).Fold(docs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("fold %d = %v, differs from first %v", i, again, first)
		}
	}
}

func TestSimple_InvariantViolationAbortsFold(t *testing.T) {
	policy := accumulate.OverridePolicy(accumulate.DefaultPolicy,
		map[string]accumulate.Factory{
			"species": func() accumulate.Accumulator { return accumulate.NewSingleValue() },
		})
	_, err := NewSimple(policy).Fold([]map[string]any{
		{"species": "human"},
		{"species": "mouse"},
	})
	if !errors.Is(err, domain.ErrAccumulator) {
		t.Fatalf("err = %v, want ErrAccumulator", err)
	}
}

func TestSimple_Transform(t *testing.T) {
	s := NewSimple(nil).WithTransform(func(doc map[string]any) map[string]any {
		return map[string]any{"name": doc["project_name"]}
	})
	got, err := s.Fold([]map[string]any{{"project_name": "Foo"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"name": []any{"Foo"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fold = %v, want %v", got, want)
	}
}

func TestGrouping_FoldsPerGroup(t *testing.T) {
	g := NewGrouping(nil, func(doc map[string]any) string {
		return doc["organ"].(string)
	})
	got, err := g.Fold([]map[string]any{
		{"organ": "blood", "name": "a"},
		{"organ": "brain", "name": "b"},
		{"organ": "blood", "name": "c"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("groups = %d, want 2", len(got))
	}
	blood := got["blood"]["name"].([]any)
	if !reflect.DeepEqual(blood, []any{"a", "c"}) {
		t.Fatalf("blood group names = %v", blood)
	}
}
