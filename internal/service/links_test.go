package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/learnjiji/jiji-api/internal/objectstore"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockStore — мок objectstore.Store.
type mockStore struct {
	signedURLFn func(ctx context.Context, bucket, path string, expiry time.Duration) (string, error)
	listFn      func(ctx context.Context, bucket, folder string) ([]objectstore.Entry, error)

	signCalls int
	listCalls int
}

func (m *mockStore) SignedURL(ctx context.Context, bucket, path string, expiry time.Duration) (string, error) {
	m.signCalls++
	if m.signedURLFn != nil {
		return m.signedURLFn(ctx, bucket, path, expiry)
	}
	return "https://storage.test/" + path, nil
}

func (m *mockStore) List(ctx context.Context, bucket, folder string) ([]objectstore.Entry, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, bucket, folder)
	}
	return nil, nil
}

func TestLinkService_Resolve_Signed(t *testing.T) {
	store := &mockStore{
		signedURLFn: func(_ context.Context, bucket, path string, expiry time.Duration) (string, error) {
			if bucket != "learning-content" {
				t.Errorf("bucket = %q, ожидался learning-content", bucket)
			}
			if path != "physics/gravity.pptx" {
				t.Errorf("path = %q", path)
			}
			if expiry != time.Hour {
				t.Errorf("expiry = %v, ожидался 1h", expiry)
			}
			return "https://storage.test/signed?token=1", nil
		},
	}

	svc := NewLinkService(store, "learning-content", time.Hour, testLogger())

	got := svc.Resolve(context.Background(), "  physics/gravity.pptx ")
	if got != "https://storage.test/signed?token=1" {
		t.Errorf("Resolve = %q", got)
	}
	if store.listCalls != 0 {
		t.Errorf("List вызван %d раз, ожидалось 0", store.listCalls)
	}
}

func TestLinkService_Resolve_EmptyPath(t *testing.T) {
	store := &mockStore{}
	svc := NewLinkService(store, "learning-content", time.Hour, testLogger())

	for _, p := range []string{"", "   "} {
		if got := svc.Resolve(context.Background(), p); got != "" {
			t.Errorf("Resolve(%q) = %q, ожидалась пустая строка", p, got)
		}
	}
	if store.signCalls != 0 {
		t.Errorf("SignedURL вызван %d раз, ожидалось 0", store.signCalls)
	}
}

func TestLinkService_Resolve_FailureReturnsPlaceholder(t *testing.T) {
	var listedFolder string
	store := &mockStore{
		signedURLFn: func(context.Context, string, string, time.Duration) (string, error) {
			return "", objectstore.ErrObjectNotFound
		},
		listFn: func(_ context.Context, _, folder string) ([]objectstore.Entry, error) {
			listedFolder = folder
			return []objectstore.Entry{{Name: "gravity-v2.pptx"}}, nil
		},
	}

	svc := NewLinkService(store, "learning-content", time.Hour, testLogger())

	if got := svc.Resolve(context.Background(), "physics/slides/gravity.pptx"); got != BrokenLinkPlaceholder {
		t.Errorf("Resolve = %q, ожидался %q", got, BrokenLinkPlaceholder)
	}
	if listedFolder != "physics/slides" {
		t.Errorf("листинг папки %q, ожидалась physics/slides", listedFolder)
	}
}

func TestLinkService_Resolve_ListFailureSwallowed(t *testing.T) {
	store := &mockStore{
		signedURLFn: func(context.Context, string, string, time.Duration) (string, error) {
			return "", errors.New("permission denied")
		},
		listFn: func(_ context.Context, _, folder string) ([]objectstore.Entry, error) {
			if folder != "" {
				t.Errorf("folder = %q, ожидался корень bucket", folder)
			}
			return nil, errors.New("storage down")
		},
	}

	svc := NewLinkService(store, "learning-content", time.Hour, testLogger())

	if got := svc.Resolve(context.Background(), "root.mp4"); got != BrokenLinkPlaceholder {
		t.Errorf("Resolve = %q, ожидался %q", got, BrokenLinkPlaceholder)
	}
	if store.listCalls != 1 {
		t.Errorf("List вызван %d раз, ожидался 1", store.listCalls)
	}
}
