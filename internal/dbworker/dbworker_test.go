package dbworker

import (
	"testing"
	"time"
)

func openTestWorker(t *testing.T) *Worker {
	t.Helper()
	w, err := Open("file::memory:?cache=shared", "arena", 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func waitForRating(t *testing.T, w *Worker, name string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := w.Rating(name)
		if err != nil {
			t.Fatalf("Rating: %v", err)
		}
		if got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("rating for %q never reached %d", name, want)
}

func TestNewPlayerDefaultsTo1000(t *testing.T) {
	w := openTestWorker(t)
	got, err := w.Rating("nobody")
	if err != nil {
		t.Fatalf("Rating: %v", err)
	}
	if got != 1000 {
		t.Errorf("Rating = %d, want 1000", got)
	}
}

func TestAddPointsAccumulates(t *testing.T) {
	w := openTestWorker(t)
	w.AddPoints("gnasty_pickaxe", 10)
	w.AddPoints("gnasty_pickaxe", 5)
	waitForRating(t, w, "gnasty_pickaxe", 1015)
}

func TestAddPointsCanGoNegative(t *testing.T) {
	w := openTestWorker(t)
	w.AddPoints("unlucky", -50)
	waitForRating(t, w, "unlucky", 950)
}

func TestCloseDrainsPendingRequests(t *testing.T) {
	path := "file:" + t.TempDir() + "/ratings.db"
	w, err := Open(path, "arena", 16)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.AddPoints("last_write", 42)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, "arena", 16)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Rating("last_write")
	if err != nil {
		t.Fatalf("Rating after reopen: %v", err)
	}
	if got != 1042 {
		t.Errorf("Rating = %d, want 1042", got)
	}
}
