package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	doc "github.com/DataBiosphere/azul-indexer/internal/domain/document"
	"github.com/DataBiosphere/azul-indexer/internal/es"
)

var testEntity = domain.EntityReference{Type: "project", ID: "p1"}

func testContribution() *doc.Contribution {
	return &doc.Contribution{
		Entity:        testEntity,
		BundleUUID:    "u1",
		BundleVersion: "v1",
		Contents:      map[string]any{"name": "Foo"},
	}
}

func TestCreateContribution_TargetsContributionIndex(t *testing.T) {
	var gotIndex, gotID string
	store := &mockStore{
		createFn: func(_ context.Context, index, id string, _ []byte) error {
			gotIndex, gotID = index, id
			return nil
		},
	}
	repo := New(store, "azul_", nil)
	if err := repo.CreateContribution(context.Background(), testContribution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotIndex != "azul_contributions" || gotID != "p1_u1_v1_exists" {
		t.Fatalf("wrote to %s/%s", gotIndex, gotID)
	}
}

func TestCreateContribution_ConflictMapsToDomain(t *testing.T) {
	store := &mockStore{
		createFn: func(context.Context, string, string, []byte) error {
			return es.ErrConflict
		},
	}
	err := New(store, "", nil).CreateContribution(context.Background(), testContribution())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want domain.ErrConflict", err)
	}
}

func TestContributionsFor_QueriesByEntity(t *testing.T) {
	var gotQuery []byte
	c := testContribution()
	body, _ := c.MarshalWire(nil)
	store := &mockStore{
		searchFn: func(_ context.Context, _ string, query []byte) ([]es.Hit, error) {
			gotQuery = query
			return []es.Hit{{ID: c.DocumentID(), Source: body}}, nil
		},
	}
	got, err := New(store, "", nil).ContributionsFor(context.Background(), testEntity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].BundleUUID != "u1" {
		t.Fatalf("contributions = %+v", got)
	}
	var q map[string]any
	if err := json.Unmarshal(gotQuery, &q); err != nil {
		t.Fatalf("query is not JSON: %v", err)
	}
	if _, ok := q["query"]; !ok {
		t.Fatalf("query missing query clause: %s", gotQuery)
	}
}

func TestGetAggregate_NotFound(t *testing.T) {
	repo := New(&mockStore{}, "", nil)
	_, err := repo.GetAggregate(context.Background(), testEntity)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want domain.ErrNotFound", err)
	}
}

func TestGetAggregate_AttachesVersion(t *testing.T) {
	agg := &doc.Aggregate{Entity: testEntity, Contents: map[string]any{"name": []any{"Foo"}}}
	body, _ := agg.MarshalWire(nil)
	store := &mockStore{
		getFn: func(_ context.Context, _, _ string) (*es.Document, error) {
			return &es.Document{
				ID:      "p1",
				Version: es.Version{SeqNo: 9, PrimaryTerm: 2},
				Source:  body,
			}, nil
		},
	}
	got, err := New(store, "", nil).GetAggregate(context.Background(), testEntity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version == nil || got.Version.SeqNo != 9 {
		t.Fatalf("version = %+v", got.Version)
	}
}

func TestWriteAggregate_CreateWhenVersionless(t *testing.T) {
	var created bool
	store := &mockStore{
		createFn: func(_ context.Context, index, id string, _ []byte) error {
			created = true
			if index != "aggregates" || id != "p1" {
				t.Fatalf("created %s/%s", index, id)
			}
			return nil
		},
		indexFn: func(context.Context, string, string, []byte, *es.Version) error {
			t.Fatal("versionless write must use create, not index")
			return nil
		},
	}
	agg := &doc.Aggregate{Entity: testEntity, Contents: map[string]any{"name": []any{"Foo"}}}
	if err := New(store, "", nil).WriteAggregate(context.Background(), agg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("create never called")
	}
}

func TestWriteAggregate_VersionedOverwrite(t *testing.T) {
	var gotExpected *es.Version
	store := &mockStore{
		indexFn: func(_ context.Context, _, _ string, _ []byte, expected *es.Version) error {
			gotExpected = expected
			return nil
		},
	}
	agg := &doc.Aggregate{
		Entity:   testEntity,
		Version:  &es.Version{SeqNo: 3, PrimaryTerm: 1},
		Contents: map[string]any{"name": []any{"Foo"}},
	}
	if err := New(store, "", nil).WriteAggregate(context.Background(), agg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotExpected == nil || gotExpected.SeqNo != 3 {
		t.Fatalf("expected version not forwarded: %+v", gotExpected)
	}
}

func TestWriteAggregate_StaleVersion(t *testing.T) {
	store := &mockStore{
		indexFn: func(context.Context, string, string, []byte, *es.Version) error {
			return es.ErrVersionConflict
		},
	}
	agg := &doc.Aggregate{
		Entity:   testEntity,
		Version:  &es.Version{SeqNo: 3, PrimaryTerm: 1},
		Contents: map[string]any{"name": []any{"Foo"}},
	}
	err := New(store, "", nil).WriteAggregate(context.Background(), agg)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want domain.ErrVersionConflict", err)
	}
}

func TestWriteAggregate_CreateRace(t *testing.T) {
	store := &mockStore{
		createFn: func(context.Context, string, string, []byte) error {
			return es.ErrConflict
		},
	}
	agg := &doc.Aggregate{Entity: testEntity, Contents: map[string]any{"name": []any{"Foo"}}}
	err := New(store, "", nil).WriteAggregate(context.Background(), agg)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want domain.ErrVersionConflict", err)
	}
}

func TestWriteAggregate_EmptyContentsDeletes(t *testing.T) {
	var gotExpected *es.Version
	var deleted bool
	store := &mockStore{
		deleteFn: func(_ context.Context, index, id string, expected *es.Version) error {
			deleted = true
			gotExpected = expected
			if index != "aggregates" || id != "p1" {
				t.Fatalf("deleted %s/%s", index, id)
			}
			return nil
		},
		createFn: func(context.Context, string, string, []byte) error {
			t.Fatal("deleted aggregate must not be written")
			return nil
		},
	}
	agg := &doc.Aggregate{Entity: testEntity, Version: &es.Version{SeqNo: 3, PrimaryTerm: 1}}
	if err := New(store, "", nil).WriteAggregate(context.Background(), agg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatal("delete never called")
	}
	if gotExpected == nil || gotExpected.SeqNo != 3 || gotExpected.PrimaryTerm != 1 {
		t.Fatalf("read version not forwarded to delete: %+v", gotExpected)
	}
}

func TestWriteAggregate_StaleDelete(t *testing.T) {
	store := &mockStore{
		deleteFn: func(context.Context, string, string, *es.Version) error {
			return es.ErrVersionConflict
		},
	}
	agg := &doc.Aggregate{Entity: testEntity, Version: &es.Version{SeqNo: 3, PrimaryTerm: 1}}
	err := New(store, "", nil).WriteAggregate(context.Background(), agg)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want domain.ErrVersionConflict", err)
	}
}

func TestWriteAggregate_FirstWriterDeleteIsUnversioned(t *testing.T) {
	store := &mockStore{
		deleteFn: func(_ context.Context, _, _ string, expected *es.Version) error {
			if expected != nil {
				t.Fatalf("delete without a prior read must be unversioned, got %+v", expected)
			}
			return nil
		},
	}
	agg := &doc.Aggregate{Entity: testEntity}
	if err := New(store, "", nil).WriteAggregate(context.Background(), agg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndices_SkipsExisting(t *testing.T) {
	var created []string
	store := &mockStore{
		existsFn: func(_ context.Context, name string) (bool, error) {
			return name == "contributions", nil
		},
		createIndexFn: func(_ context.Context, name string, _ []byte) error {
			created = append(created, name)
			return nil
		},
	}
	if err := New(store, "", nil).EnsureIndices(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0] != "aggregates" {
		t.Fatalf("created = %v", created)
	}
}
