package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ziadkadry99/diagrag/internal/db"
	"github.com/ziadkadry99/diagrag/internal/factblock"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestUpsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	in := Disease{
		Name:          "肺炎",
		Cause:         "细菌、病毒等病原体感染",
		Departments:   []string{"内科", "呼吸内科", "内科"},
		Complications: []string{"胸膜炎", "脓胸"},
	}
	if err := store.Upsert(ctx, in); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Get(ctx, "肺炎")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := &Disease{
		Name:          "肺炎",
		Cause:         "细菌、病毒等病原体感染",
		Departments:   []string{"内科", "呼吸内科"},
		Complications: []string{"胸膜炎", "脓胸"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertReplacesRelations(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, Disease{Name: "X", Cause: "old", Departments: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, Disease{Name: "X", Cause: "new", Departments: []string{"c"}}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "X")
	if err != nil {
		t.Fatal(err)
	}
	if got.Cause != "new" || len(got.Departments) != 1 || got.Departments[0] != "c" {
		t.Errorf("relations not replaced: %+v", got)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestUpsertRequiresName(t *testing.T) {
	if err := setupStore(t).Upsert(context.Background(), Disease{Name: "  "}); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := setupStore(t).Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupFormatsBlock(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	if err := store.Upsert(ctx, Disease{
		Name:          "胃炎",
		Cause:         "幽门螺杆菌感染",
		Departments:   []string{"内科", "消化内科"},
		Complications: []string{"胃溃疡"},
	}); err != nil {
		t.Fatal(err)
	}

	text, err := store.Lookup(ctx, "胃炎")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	want := "疾病名称：胃炎\n\n疾病病因：幽门螺杆菌感染\n\n治疗科室：内科 消化内科\n\n并发症：胃溃疡"
	if text != want {
		t.Errorf("Lookup =\n%q\nwant\n%q", text, want)
	}

	rec := factblock.Parse(text)
	if rec.Department != "内科 消化内科" {
		t.Errorf("parsed department = %q", rec.Department)
	}
}

func TestLookupWithoutCause(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	if err := store.Upsert(ctx, Disease{Name: "未知病", Departments: []string{"内科"}}); err != nil {
		t.Fatal(err)
	}
	text, err := store.Lookup(ctx, "未知病")
	if err != nil {
		t.Fatal(err)
	}
	if factblock.Parse(text).Enrichable() {
		t.Errorf("block without cause should not be enrichable: %q", text)
	}
}

func TestLookupUnknownIsEmpty(t *testing.T) {
	text, err := setupStore(t).Lookup(context.Background(), "missing")
	if err != nil || text != "" {
		t.Errorf("Lookup(missing) = %q, %v; want empty, nil", text, err)
	}
}
