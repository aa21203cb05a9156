package offsite

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBucketPutFileSignsPathStyleRequest(t *testing.T) {
	var (
		mu   sync.Mutex
		got  *http.Request
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got, body = r, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBucket(BucketConfig{Endpoint: srv.URL, Bucket: "saves", AccessKey: "AK", SecretKey: "SK"})
	if err != nil {
		t.Fatalf("NewBucket: %v", err)
	}
	b.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	p := filepath.Join(t.TempDir(), "10.snap.zst")
	if err := os.WriteFile(p, []byte("snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := b.PutFile(context.Background(), "/sessions/s1/snapshots/10.snap.zst", p); err != nil {
		t.Fatalf("PutFile: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Method != http.MethodPut || got.URL.Path != "/saves/sessions/s1/snapshots/10.snap.zst" {
		t.Fatalf("request %s %s", got.Method, got.URL.Path)
	}
	if body != "snapshot" {
		t.Fatalf("body %q", body)
	}
	auth := got.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AK/20260102/auto/s3/aws4_request") {
		t.Fatalf("authorization %q", auth)
	}
	if got.Header.Get("x-amz-date") != "20260102T030405Z" {
		t.Fatalf("x-amz-date %q", got.Header.Get("x-amz-date"))
	}
}

func TestBucketReportsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	b, err := NewBucket(BucketConfig{Endpoint: srv.URL, Bucket: "saves", AccessKey: "AK", SecretKey: "SK"})
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "f")
	_ = os.WriteFile(p, []byte("x"), 0o644)
	if err := b.PutFile(context.Background(), "f", p); err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNewBucketRequiresCredentials(t *testing.T) {
	if _, err := NewBucket(BucketConfig{Endpoint: "example.com", Bucket: "b"}); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakeUploader) PutFile(ctx context.Context, key, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("transient")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirrorUploadsRelativeKeysWithRetry(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "sessions", "s1", "snapshots", "5.snap.zst")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(p, []byte("x"), 0o644)

	up := &fakeUploader{fails: 1}
	m := NewMirror(up, MirrorConfig{Root: root, Prefix: "/prod/", Backoff: time.Millisecond}, nil)
	m.Enqueue(p)
	m.Enqueue(filepath.Join(t.TempDir(), "outside"))
	m.Close()

	if len(up.keys) != 1 || up.keys[0] != "prod/sessions/s1/snapshots/5.snap.zst" {
		t.Fatalf("keys %v", up.keys)
	}
	st := m.Stats()
	if st.EnqueuedTotal != 2 || st.UploadedTotal != 1 || st.FailedTotal != 1 {
		t.Fatalf("stats %+v", st)
	}
}

func TestNilMirrorIsNoop(t *testing.T) {
	var m *Mirror
	m.Enqueue("x")
	m.Close()
	if m.Stats() != (Stats{}) {
		t.Fatalf("expected zero stats")
	}
}

func TestEnqueueAfterCloseIsDropped(t *testing.T) {
	m := NewMirror(&fakeUploader{}, MirrorConfig{Root: t.TempDir()}, nil)
	m.Close()
	m.Close()
	m.Enqueue("late")
	if st := m.Stats(); st.DroppedTotal != 1 || st.EnqueuedTotal != 0 {
		t.Fatalf("stats %+v", st)
	}
}
