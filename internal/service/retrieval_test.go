package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
)

// --- Mocks ---

// mockResourceRepo — мок ResourceRepository.
type mockResourceRepo struct {
	searchFn func(ctx context.Context, term string, limit int) ([]*model.ResourceRecord, error)
}

func (m *mockResourceRepo) SearchContains(ctx context.Context, term string, limit int) ([]*model.ResourceRecord, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, term, limit)
	}
	return nil, nil
}

// mockLinks — мок LinkResolver.
type mockLinks struct {
	resolveFn func(ctx context.Context, storagePath string) string
	calls     []string
}

func (m *mockLinks) Resolve(ctx context.Context, storagePath string) string {
	m.calls = append(m.calls, storagePath)
	if m.resolveFn != nil {
		return m.resolveFn(ctx, storagePath)
	}
	return "https://storage.test/" + storagePath
}

func strPtr(s string) *string { return &s }

// --- Тесты RetrievalService ---

func TestRetrievalService_Match(t *testing.T) {
	repo := &mockResourceRepo{
		searchFn: func(_ context.Context, term string, limit int) ([]*model.ResourceRecord, error) {
			if term != "gravity" {
				t.Errorf("term = %q, ожидался gravity", term)
			}
			if limit != 5 {
				t.Errorf("limit = %d, ожидался 5", limit)
			}
			return []*model.ResourceRecord{
				{ID: "r1", Title: "Gravity Basics", Description: strPtr("Intro"), Type: model.ResourceTypeSlides, StoragePath: strPtr("physics/gravity.pptx")},
				{ID: "r2", Title: "Gravity Video", Type: model.ResourceTypeVideo},
				{ID: "r3", Title: "Gravity Quiz", Description: strPtr(""), Type: model.ResourceTypeSlides},
			}, nil
		},
	}
	links := &mockLinks{}

	svc := NewRetrievalService(repo, links, 5, testLogger())

	got, err := svc.Match(context.Background(), "What is gravity?", 5)
	if err != nil {
		t.Fatalf("Match ошибка: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("получено %d материалов, ожидалось 3", len(got))
	}

	if got[0].URL != "https://storage.test/physics/gravity.pptx" {
		t.Errorf("URL[0] = %q", got[0].URL)
	}
	if got[0].Description == nil || *got[0].Description != "Intro" {
		t.Errorf("Description[0] = %v", got[0].Description)
	}
	if got[0].Type != model.ResourceTypeSlides {
		t.Errorf("Type[0] = %q", got[0].Type)
	}

	if got[1].URL != "" {
		t.Errorf("URL[1] = %q, ожидалась пустая строка без storage_path", got[1].URL)
	}
	if got[1].Description != nil {
		t.Errorf("Description[1] = %v, ожидался nil", *got[1].Description)
	}
	// Пустое описание в каталоге — как отсутствующее
	if got[2].Description != nil {
		t.Errorf("Description[2] = %q, ожидался nil", *got[2].Description)
	}
	if len(links.calls) != 1 {
		t.Errorf("Resolve вызван %d раз, ожидался 1", len(links.calls))
	}
}

func TestRetrievalService_Match_DefaultLimit(t *testing.T) {
	for _, limit := range []int{0, -3} {
		var gotLimit int
		repo := &mockResourceRepo{
			searchFn: func(_ context.Context, _ string, l int) ([]*model.ResourceRecord, error) {
				gotLimit = l
				return nil, nil
			},
		}

		svc := NewRetrievalService(repo, &mockLinks{}, 7, testLogger())
		if _, err := svc.Match(context.Background(), "gravity", limit); err != nil {
			t.Fatalf("Match ошибка: %v", err)
		}
		if gotLimit != 7 {
			t.Errorf("limit %d → %d, ожидался 7", limit, gotLimit)
		}
	}
}

func TestRetrievalService_Match_CapsToLimit(t *testing.T) {
	repo := &mockResourceRepo{
		searchFn: func(context.Context, string, int) ([]*model.ResourceRecord, error) {
			records := make([]*model.ResourceRecord, 0, 10)
			for i := range 10 {
				records = append(records, &model.ResourceRecord{ID: fmt.Sprintf("r%d", i), Title: "Gravity"})
			}
			return records, nil
		},
	}

	svc := NewRetrievalService(repo, &mockLinks{}, 5, testLogger())

	got, err := svc.Match(context.Background(), "gravity", 3)
	if err != nil {
		t.Fatalf("Match ошибка: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("получено %d материалов, ожидалось не больше 3", len(got))
	}
}

func TestRetrievalService_Match_NoResultsIsEmptySlice(t *testing.T) {
	svc := NewRetrievalService(&mockResourceRepo{}, &mockLinks{}, 5, testLogger())

	got, err := svc.Match(context.Background(), "volcanoes", 5)
	if err != nil {
		t.Fatalf("Match ошибка: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Match = %#v, ожидался пустой срез", got)
	}
}

func TestRetrievalService_Match_CatalogError(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := &mockResourceRepo{
		searchFn: func(context.Context, string, int) ([]*model.ResourceRecord, error) {
			return nil, dbErr
		},
	}

	svc := NewRetrievalService(repo, &mockLinks{}, 5, testLogger())

	_, err := svc.Match(context.Background(), "gravity", 5)
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("ошибка = %v, ожидалась ErrRetrieval", err)
	}
	if !errors.Is(err, dbErr) {
		t.Error("исходная ошибка каталога должна сохраняться в цепочке")
	}
}

func TestRetrievalService_Match_BrokenLinkKeepsResource(t *testing.T) {
	repo := &mockResourceRepo{
		searchFn: func(context.Context, string, int) ([]*model.ResourceRecord, error) {
			return []*model.ResourceRecord{
				{ID: "r1", Title: "Gravity", StoragePath: strPtr("missing.pptx")},
				{ID: "r2", Title: "Gravity 2", StoragePath: strPtr("ok.mp4")},
			}, nil
		},
	}
	links := &mockLinks{resolveFn: func(_ context.Context, p string) string {
		if p == "missing.pptx" {
			return BrokenLinkPlaceholder
		}
		return "https://storage.test/" + p
	}}

	svc := NewRetrievalService(repo, links, 5, testLogger())

	got, err := svc.Match(context.Background(), "gravity", 5)
	if err != nil {
		t.Fatalf("Match ошибка: %v", err)
	}
	if len(got) != 2 || got[0].URL != "#" || got[1].URL != "https://storage.test/ok.mp4" {
		t.Errorf("Match = %+v", got)
	}
}
