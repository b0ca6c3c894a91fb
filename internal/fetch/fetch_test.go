package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestFetchDownloadsAndVerifiesChecksum(t *testing.T) {
	payload := []byte("artifact contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f := New(t.TempDir(), srv.Client())
	path, err := f.Fetch(context.Background(), srv.URL, sha256Hex(payload))
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Fetch() content = %q, want %q", got, payload)
	}
}

func TestFetchChecksumMismatchDiscardsFile(t *testing.T) {
	payload := []byte("artifact contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	f := New(cacheDir, srv.Client())
	_, err := f.Fetch(context.Background(), srv.URL, "0000000000000000000000000000000000000000000000000000000000000000")
	if err == nil {
		t.Fatal("Fetch() expected checksum mismatch error")
	}
	if _, ok := err.(*zerobrewerr.ErrChecksumMismatch); !ok {
		t.Errorf("error type = %T, want *ErrChecksumMismatch", err)
	}

	entries, _ := os.ReadDir(cacheDir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".data" {
			t.Errorf("expected no .data file to persist after checksum mismatch, found %s", e.Name())
		}
	}
}

func TestFetchReusesCache(t *testing.T) {
	var calls int32
	payload := []byte("artifact contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write(payload)
	}))
	defer srv.Close()

	f := New(t.TempDir(), srv.Client())
	if _, err := f.Fetch(context.Background(), srv.URL, sha256Hex(payload)); err != nil {
		t.Fatalf("first Fetch() error: %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL, sha256Hex(payload)); err != nil {
		t.Fatalf("second Fetch() error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server called %d times, want 1 (cache hit on second call)", got)
	}
}

func TestFetchCoalescesConcurrentRequests(t *testing.T) {
	var calls int32
	payload := []byte("artifact contents")
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-block
		w.Write(payload)
	}))
	defer srv.Close()

	f := New(t.TempDir(), srv.Client())

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.Fetch(context.Background(), srv.URL, sha256Hex(payload))
		}(i)
	}
	close(block)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Fetch() call %d error: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server called %d times, want 1 (single-flight coalescing)", got)
	}
}

func TestFetchNoChecksumStillDownloads(t *testing.T) {
	payload := []byte("unchecked contents")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f := New(t.TempDir(), srv.Client())
	path, err := f.Fetch(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != string(payload) {
		t.Errorf("Fetch() content = %q, want %q", got, payload)
	}
}

func TestFetchNetworkErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(t.TempDir(), srv.Client())
	_, err := f.Fetch(context.Background(), srv.URL, "")
	if _, ok := err.(*zerobrewerr.ErrNetworkError); !ok {
		t.Errorf("error type = %T, want *ErrNetworkError", err)
	}
}
