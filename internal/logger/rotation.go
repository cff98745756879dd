package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rolledSuffix keeps names unique when a busy session rolls more than once a second
const rolledSuffix = "20060102-150405.000000000"

// RotatingWriter appends to a log file and rolls it over once a write would
// take it past maxBytes. Rolled files are named <path>.<timestamp>, gzipped
// when compress is set, and removed once older than maxAge.
type RotatingWriter struct {
	path     string
	maxBytes int64
	maxAge   time.Duration
	compress bool

	mu   sync.Mutex
	file *os.File
	size int64

	compressing sync.WaitGroup
}

// NewRotatingWriter opens path for appending. maxSizeMB <= 0 disables rolling
// and maxAgeDays <= 0 keeps rolled files forever.
func NewRotatingWriter(path string, maxSizeMB int, maxAgeDays int, compress bool) (*RotatingWriter, error) {
	file, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	w := &RotatingWriter{
		path:     path,
		maxBytes: int64(maxSizeMB) << 20,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		compress: compress,
		file:     file,
		size:     size,
	}
	go w.cleanup()

	return w, nil
}

func openAppend(path string) (*os.File, int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, 0, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat log file: %w", err)
	}
	return file, info.Size(), nil
}

// Write appends p, rolling the file first when p would not fit
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.full(len(p)) {
		if err := w.roll(); err != nil {
			return 0, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// full never reports an empty file, so one oversized write cannot roll forever
func (w *RotatingWriter) full(next int) bool {
	return w.maxBytes > 0 && w.size > 0 && w.size+int64(next) > w.maxBytes
}

// Close closes the file and waits for pending compression
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	file := w.file
	w.file = nil
	w.mu.Unlock()

	w.compressing.Wait()

	if file == nil {
		return nil
	}
	return file.Close()
}

// roll moves the current file aside and starts a new one. Caller holds w.mu.
func (w *RotatingWriter) roll() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	rolled := w.path + "." + time.Now().Format(rolledSuffix)
	renameErr := os.Rename(w.path, rolled)

	file, size, err := openAppend(w.path)
	if err != nil {
		w.file = nil
		return err
	}
	w.file = file
	w.size = size

	if renameErr != nil {
		return renameErr
	}

	if w.compress {
		w.compressing.Add(1)
		go func() {
			defer w.compressing.Done()
			_ = gzipFile(rolled)
		}()
	}
	return nil
}

// gzipFile replaces path with path.gz
func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		dst.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// cleanup removes rolled files, compressed or not, older than maxAge
func (w *RotatingWriter) cleanup() {
	if w.maxAge <= 0 {
		return
	}

	rolled, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-w.maxAge)
	for _, path := range rolled {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		_ = os.Remove(path)
	}
}
