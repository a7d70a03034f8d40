package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/JohnDeved/myrient-filter/internal/client"
)

// Remote is the live listing source a crawl reads from.
type Remote interface {
	ListDirectories(ctx context.Context, subPath string) ([]string, error)
	ListFiles(ctx context.Context, subPath, system string) ([]client.Entry, error)
}

// CrawlProgress reports crawl progress.
type CrawlProgress struct {
	CurrentSystem string
	Systems       int64
	Skipped       int64
	FilesFound    int64
	Errors        int64
}

// Crawler copies the listings of a collection into the index.
type Crawler struct {
	remote     Remote
	db         *DB
	staleDays  int
	force      bool
	workers    int
	log        logrus.FieldLogger
	onProgress func(CrawlProgress)

	mu         sync.Mutex
	systems    atomic.Int64
	skipped    atomic.Int64
	filesFound atomic.Int64
	errCount   atomic.Int64
}

// NewCrawler creates a new crawler.
func NewCrawler(remote Remote, db *DB, staleDays int, log logrus.FieldLogger) *Crawler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Crawler{
		remote:    remote,
		db:        db,
		staleDays: staleDays,
		workers:   4,
		log:       log,
	}
}

// SetForce controls whether stale checks are skipped.
func (cr *Crawler) SetForce(force bool) {
	cr.force = force
}

// SetWorkers controls how many systems are crawled in parallel.
func (cr *Crawler) SetWorkers(workers int) {
	if workers < 1 {
		workers = 1
	}
	cr.workers = workers
}

// SetProgressCallback sets a function called on progress updates.
func (cr *Crawler) SetProgressCallback(fn func(CrawlProgress)) {
	cr.onProgress = fn
}

// Progress returns the current counters.
func (cr *Crawler) Progress() CrawlProgress {
	return CrawlProgress{
		Systems:    cr.systems.Load(),
		Skipped:    cr.skipped.Load(),
		FilesFound: cr.filesFound.Load(),
		Errors:     cr.errCount.Load(),
	}
}

func (cr *Crawler) reportProgress(system string) {
	if cr.onProgress == nil {
		return
	}
	p := cr.Progress()
	p.CurrentSystem = system
	// Serialize callbacks; they usually write to a terminal.
	cr.mu.Lock()
	cr.onProgress(p)
	cr.mu.Unlock()
}

// CrawlCollection indexes the given systems of a collection, or every system
// when none are named. A failing system is logged and counted, not fatal.
func (cr *Crawler) CrawlCollection(ctx context.Context, collection string, systems []string) error {
	if len(systems) == 0 {
		dirs, err := cr.remote.ListDirectories(ctx, collection)
		if err != nil {
			return fmt.Errorf("listing %s: %w", collection, err)
		}
		systems = dirs
	}
	if len(systems) == 0 {
		return nil
	}

	workers := cr.workers
	if workers > len(systems) {
		workers = len(systems)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for system := range jobs {
				if err := cr.crawlSystem(ctx, collection, system); err != nil {
					if ctx.Err() != nil {
						return
					}
					cr.log.WithField("system", system).WithError(err).Error("Crawl failed")
					cr.errCount.Add(1)
				}
				cr.reportProgress(system)
			}
		}()
	}

	for _, name := range systems {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- name:
		}
	}
	close(jobs)
	wg.Wait()

	return ctx.Err()
}

func (cr *Crawler) crawlSystem(ctx context.Context, collection, system string) error {
	if !cr.force {
		stale, err := cr.db.IsSystemStale(ctx, collection, system, cr.staleDays)
		if err != nil {
			return err
		}
		if !stale {
			cr.skipped.Add(1)
			return nil
		}
	}

	entries, err := cr.remote.ListFiles(ctx, collection, system)
	if err != nil {
		return err
	}

	id, err := cr.db.UpsertSystem(ctx, collection, system)
	if err != nil {
		return err
	}
	if err := cr.db.ReplaceSystemFiles(ctx, id, entries); err != nil {
		return fmt.Errorf("storing %s: %w", system, err)
	}

	cr.systems.Add(1)
	cr.filesFound.Add(int64(len(entries)))
	return nil
}
