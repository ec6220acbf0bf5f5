// Package sink writes point-cloud files on a dedicated goroutine.
package sink

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"firestige.xyz/lidarpcd/internal/metrics"
)

// Request is one file to write: header text followed by body bytes.
type Request struct {
	Path   string
	Header string
	Body   []byte
}

// Writer drains requests in submission order and writes each through an
// afero.Fs. The first write error stops it; nothing is retried.
type Writer struct {
	fs    afero.Fs
	queue *queue

	done      chan struct{}
	err       error
	closeOnce sync.Once

	files atomic.Uint64
	bytes atomic.Uint64
}

// NewWriter starts a writer on fs.
func NewWriter(fs afero.Fs) *Writer {
	w := &Writer{
		fs:    fs,
		queue: newQueue(),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit enqueues r without blocking. It fails once the writer is closed or
// has stopped on an error.
func (w *Writer) Submit(r Request) error {
	select {
	case <-w.done:
		if w.err != nil {
			return w.err
		}
	default:
	}
	return w.queue.push(r)
}

// Close stops accepting requests, waits for the queued ones to be written
// and returns the first write error, if any.
func (w *Writer) Close() error {
	w.closeOnce.Do(w.queue.close)
	return w.Wait()
}

// Wait blocks until the writer goroutine exits and returns its error.
func (w *Writer) Wait() error {
	<-w.done
	return w.err
}

// Done is closed when the writer goroutine exits.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

// Err returns the write error that stopped the writer, or nil while it runs.
func (w *Writer) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Pending returns the number of queued requests.
func (w *Writer) Pending() int {
	return w.queue.len()
}

// Written returns the number of files and bytes written so far.
func (w *Writer) Written() (files, bytes uint64) {
	return w.files.Load(), w.bytes.Load()
}

func (w *Writer) run() {
	defer close(w.done)

	for {
		r, ok := w.queue.pop()
		if !ok {
			return
		}

		if err := w.write(r); err != nil {
			w.err = err
			w.closeOnce.Do(w.queue.close)
			dropped := w.queue.discard()
			slog.Error("point cloud writer stopped", "path", r.Path, "error", err, "discarded", dropped)
			return
		}
	}
}

func (w *Writer) write(r Request) error {
	start := time.Now()

	f, err := w.fs.Create(r.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", r.Path, err)
	}

	n, err := io.WriteString(f, r.Header)
	if err == nil {
		var m int
		m, err = f.Write(r.Body)
		n += m
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", r.Path, err)
	}

	w.files.Add(1)
	w.bytes.Add(uint64(n))
	metrics.SinkFilesWrittenTotal.Inc()
	metrics.SinkBytesWrittenTotal.Add(float64(n))
	metrics.SinkWriteLatencySeconds.Observe(time.Since(start).Seconds())
	slog.Debug("point cloud written", "path", r.Path, "bytes", n)
	return nil
}
