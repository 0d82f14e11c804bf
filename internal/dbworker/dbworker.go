// Package dbworker runs fire-and-forget rating upserts (AddPoints);
// nothing in the engine itself calls AddPoints. It owns a single SQLite connection on
// its own goroutine so the tick loop never blocks on disk IO, with an
// async-writer-plus-stop-once discipline around the request channel.
package dbworker

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// request is one queued rating adjustment.
type request struct {
	name  string
	delta int
}

// Worker serializes all writes through one connection and one
// goroutine. Requests that arrive while the queue is full are dropped
// rather than blocking the caller, per §5/§7's Transient classification
// for storage-layer failures.
type Worker struct {
	db     *sql.DB
	prefix string
	queue  chan request
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// Open connects to the SQLite file at path (an in-memory DSN like
// "file::memory:?cache=shared" works for tests), ensures the ratings
// table exists, and starts the background drain goroutine.
func Open(path, tablePrefix string, queueSize int) (*Worker, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	w := &Worker{
		db:     db,
		prefix: tablePrefix,
		queue:  make(chan request, queueSize),
		stopCh: make(chan struct{}),
	}

	if _, err := db.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s_ratings (
			Name TEXT PRIMARY KEY,
			Rating INTEGER NOT NULL DEFAULT 1000
		)`, w.prefix)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ratings table: %w", err)
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// AddPoints enqueues a rating adjustment for name. It never blocks the
// tick loop: if the queue is full the request is dropped and logged.
func (w *Worker) AddPoints(name string, delta int) {
	select {
	case w.queue <- request{name: name, delta: delta}:
	default:
		log.Printf("⚠️ rating upsert queue full, dropping update for %q", name)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.queue:
			w.apply(req)
		case <-w.stopCh:
			// drain whatever is left before exiting
			for {
				select {
				case req := <-w.queue:
					w.apply(req)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) apply(req request) {
	query := fmt.Sprintf(
		`INSERT INTO %s_ratings (Name, Rating) VALUES (?, 1000 + ?)
		 ON CONFLICT(Name) DO UPDATE SET Rating = Rating + ?`,
		w.prefix)
	if _, err := w.db.Exec(query, req.name, req.delta, req.delta); err != nil {
		log.Printf("⚠️ rating upsert failed: %v", err)
	}
}

// Rating returns a player's current rating, or the 1000 default if
// they have never been recorded.
func (w *Worker) Rating(name string) (int, error) {
	var rating int
	query := fmt.Sprintf(`SELECT Rating FROM %s_ratings WHERE Name = ?`, w.prefix)
	err := w.db.QueryRow(query, name).Scan(&rating)
	if err == sql.ErrNoRows {
		return 1000, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query rating: %w", err)
	}
	return rating, nil
}

// Close stops the drain goroutine after flushing the queue and closes
// the connection.
func (w *Worker) Close() error {
	close(w.stopCh)
	w.wg.Wait()
	return w.db.Close()
}
