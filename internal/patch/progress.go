package patch

import (
	"io"
	"sync"

	"github.com/hollowgate/launcherd/internal/domain"
)

// Tracker records per-file download progress behind its own lock so the
// UI can poll it while downloads run. The lock is never held across I/O;
// reads copy the snapshot out.
type Tracker struct {
	mu    sync.Mutex
	files map[string]*domain.DownloadProgress
}

// NewTracker creates an empty progress tracker.
func NewTracker() *Tracker {
	return &Tracker{files: make(map[string]*domain.DownloadProgress)}
}

// Begin registers a download. total may be -1 when the server does not
// send a Content-Length.
func (t *Tracker) Begin(location string, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[location] = &domain.DownloadProgress{
		Location:   location,
		TotalBytes: total,
	}
}

// End removes a finished (or failed) download.
func (t *Tracker) End(location string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, location)
}

// Snapshot returns a copy of all in-flight downloads.
func (t *Tracker) Snapshot() []domain.DownloadProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]domain.DownloadProgress, 0, len(t.files))
	for _, p := range t.files {
		result = append(result, *p)
	}
	return result
}

func (t *Tracker) add(location string, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.files[location]; ok {
		p.DoneBytes += n
	}
}

// Reader wraps r so that every read advances the tracked byte count.
func (t *Tracker) Reader(location string, r io.Reader) io.Reader {
	return &countingReader{tracker: t, location: location, r: r}
}

type countingReader struct {
	tracker  *Tracker
	location string
	r        io.Reader
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.tracker.add(c.location, int64(n))
	}
	return n, err
}
