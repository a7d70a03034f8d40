package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JohnDeved/myrient-filter/internal/client"
	"github.com/JohnDeved/myrient-filter/internal/filter"
	"github.com/JohnDeved/myrient-filter/internal/util"
)

// Status represents a download's state.
type Status int

const (
	StatusQueued Status = iota
	StatusActive
	StatusCompleted
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusActive:
		return "Downloading"
	case StatusCompleted:
		return "Completed"
	case StatusSkipped:
		return "Skipped"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Done reports whether the status is final.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

var errCancelled = errors.New("cancelled")

// Fetcher opens a file URL for reading.
type Fetcher interface {
	DownloadFile(ctx context.Context, fileURL string) (io.ReadCloser, int64, error)
}

// Item represents a single download.
type Item struct {
	ID         int
	Name       string
	URL        string
	DestPath   string
	TotalBytes atomic.Int64
	DoneBytes  atomic.Int64

	Mu        sync.Mutex
	Status    Status
	Err       error
	Extracted []string // Entries moved into the download dir after extraction
	started   time.Time
	finished  time.Time
}

// Snapshot is a consistent copy of an item's state.
type Snapshot struct {
	ID      int
	Name    string
	Status  Status
	Err     error
	Done    int64
	Total   int64
	Elapsed time.Duration
}

// Snapshot returns the item's current state.
func (it *Item) Snapshot() Snapshot {
	it.Mu.Lock()
	defer it.Mu.Unlock()
	return Snapshot{
		ID:      it.ID,
		Name:    it.Name,
		Status:  it.Status,
		Err:     it.Err,
		Done:    it.DoneBytes.Load(),
		Total:   it.TotalBytes.Load(),
		Elapsed: it.elapsedLocked(),
	}
}

func (it *Item) elapsedLocked() time.Duration {
	switch {
	case it.started.IsZero():
		return 0
	case it.finished.IsZero():
		return time.Since(it.started)
	default:
		return it.finished.Sub(it.started)
	}
}

func (it *Item) setStatus(s Status, err error) {
	it.Mu.Lock()
	it.Status = s
	it.Err = err
	switch {
	case s == StatusActive:
		it.started = time.Now()
	case s.Done() && !it.started.IsZero():
		it.finished = time.Now()
	}
	it.Mu.Unlock()
}

// Progress returns the fraction downloaded, 0 when the size is unknown.
func (s Snapshot) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

// Speed returns the average transfer rate in bytes per second.
func (s Snapshot) Speed() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Done) / s.Elapsed.Seconds()
}

// Summary counts items by final outcome.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
}

// Manager downloads releases one at a time.
type Manager struct {
	client      Fetcher
	downloadDir string
	extract     bool
	log         logrus.FieldLogger

	mu         sync.Mutex
	items      []*Item
	nextID     int
	onChange   func()
	lastNotify time.Time
}

// NewManager creates a download manager writing into downloadDir. With
// extract set, zip archives are unpacked and removed after download.
func NewManager(c Fetcher, downloadDir string, extract bool, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		client:      c,
		downloadDir: downloadDir,
		extract:     extract,
		log:         log,
	}
}

// SetOnChange sets a callback invoked when any download's state changes.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Manager) notify(force bool) {
	m.mu.Lock()
	fn := m.onChange
	now := time.Now()
	if !force && now.Sub(m.lastNotify) < 100*time.Millisecond {
		m.mu.Unlock()
		return
	}
	m.lastNotify = now
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Enqueue adds releases to the queue. Releases whose destination is already
// queued are not added twice.
func (m *Manager) Enqueue(releases []filter.Release) []*Item {
	m.mu.Lock()
	var added []*Item
	for _, r := range releases {
		destPath := filepath.Join(m.downloadDir, filepath.Base(r.Filename))
		if m.findLocked(destPath) != nil {
			continue
		}
		m.nextID++
		item := &Item{
			ID:       m.nextID,
			Name:     r.Filename,
			URL:      r.URL,
			DestPath: destPath,
			Status:   StatusQueued,
		}
		m.items = append(m.items, item)
		added = append(added, item)
	}
	m.mu.Unlock()

	m.notify(true)
	return added
}

func (m *Manager) findLocked(destPath string) *Item {
	for _, it := range m.items {
		if it.DestPath == destPath {
			return it
		}
	}
	return nil
}

// Items returns a snapshot of all download items.
func (m *Manager) Items() []*Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*Item, len(m.items))
	copy(result, m.items)
	return result
}

// Summary counts finished items.
func (m *Manager) Summary() Summary {
	var s Summary
	for _, it := range m.Items() {
		switch it.Snapshot().Status {
		case StatusCompleted:
			s.Completed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Failed returns the items that failed.
func (m *Manager) Failed() []*Item {
	var failed []*Item
	for _, it := range m.Items() {
		if it.Snapshot().Status == StatusFailed {
			failed = append(failed, it)
		}
	}
	return failed
}

// Run processes queued items in order. A failing item is recorded and the
// run moves on. When ctx is cancelled the remaining items are marked failed
// and ctx's error is returned.
func (m *Manager) Run(ctx context.Context) error {
	for _, item := range m.Items() {
		if item.Snapshot().Status != StatusQueued {
			continue
		}
		if ctx.Err() != nil {
			item.setStatus(StatusFailed, errCancelled)
			continue
		}
		m.processItem(ctx, item)
	}
	m.notify(true)
	return ctx.Err()
}

func (m *Manager) processItem(ctx context.Context, item *Item) {
	item.setStatus(StatusActive, nil)
	m.notify(true)
	log := m.log.WithField("file", item.Name)

	err := m.downloadFile(ctx, item)
	switch {
	case errors.Is(err, client.ErrTextResponse):
		log.Warn("Skipping: server returned a text response")
		item.setStatus(StatusSkipped, err)
	case errors.Is(err, context.Canceled):
		item.setStatus(StatusFailed, errCancelled)
	case err != nil:
		log.WithError(err).Error("Download failed")
		item.setStatus(StatusFailed, err)
	default:
		log.WithField("size", util.FormatBytes(item.DoneBytes.Load())).Info("Downloaded")
		item.setStatus(StatusCompleted, nil)
	}
	m.notify(true)
}

func (m *Manager) downloadFile(ctx context.Context, item *Item) error {
	if err := os.MkdirAll(m.downloadDir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	body, contentLength, err := m.client.DownloadFile(ctx, item.URL)
	if err != nil {
		return err
	}
	defer body.Close()

	if contentLength > 0 {
		item.TotalBytes.Store(contentLength)
	}
	item.DoneBytes.Store(0)

	partPath := item.DestPath + ".part"
	f, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}

	_, err = io.Copy(f, &progressReader{ctx: ctx, r: body, item: item, notify: m.notify})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partPath)
		return err
	}

	if err := os.Rename(partPath, item.DestPath); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}

	if m.extract && isZip(item.DestPath) {
		extracted, err := extractZip(item.DestPath, m.downloadDir)
		if err != nil {
			return fmt.Errorf("extracting %s: %w", filepath.Base(item.DestPath), err)
		}
		item.Mu.Lock()
		item.Extracted = extracted
		item.Mu.Unlock()
	}
	return nil
}

// progressReader counts bytes and stops reading once ctx is done.
type progressReader struct {
	ctx    context.Context
	r      io.Reader
	item   *Item
	notify func(bool)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(buf)
	if n > 0 {
		p.item.DoneBytes.Add(int64(n))
		p.notify(false)
	}
	return n, err
}
