package netutil

import (
	"errors"
	"fmt"
	"io"
)

// LimitedReader fails with *SizeLimitExceededError once more than Limit
// bytes are available from R.
type LimitedReader struct {
	R     io.Reader
	Limit int64
	read  int64
}

// NewLimitedReader wraps r.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{R: r, Limit: limit}
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	remaining := l.Limit - l.read
	if remaining < 0 {
		return 0, &SizeLimitExceededError{Limit: l.Limit}
	}
	// Allow one byte past the limit so overflow is observed rather than
	// looking like a clean EOF.
	if int64(len(p)) > remaining+1 {
		p = p[:remaining+1]
	}
	n, err := l.R.Read(p)
	l.read += int64(n)
	if l.read > l.Limit {
		return n - int(l.read-l.Limit), &SizeLimitExceededError{Limit: l.Limit}
	}
	return n, err
}

// BytesRead returns the number of bytes accepted so far.
func (l *LimitedReader) BytesRead() int64 {
	return min(l.read, l.Limit)
}

// ReadAll reads r to EOF, failing when it holds more than limit bytes.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(NewLimitedReader(r, limit))
}

// SizeLimitExceededError reports a payload larger than Limit.
type SizeLimitExceededError struct {
	Limit int64
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("size limit exceeded: payload is larger than %s", FormatSize(e.Limit))
}

// IsSizeLimitExceededError reports whether err wraps a SizeLimitExceededError.
func IsSizeLimitExceededError(err error) bool {
	var target *SizeLimitExceededError
	return errors.As(err, &target)
}

// FormatSize renders a byte count for humans.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
