// Package progress reports byte counts while a stream is consumed.
package progress

import "io"

// Func receives the cumulative bytes read and the expected total. Total is
// zero when the size is unknown.
type Func func(read, total int64)

// Reader wraps an io.Reader and calls OnProgress at most once per interval
// bytes, and always once when the stream ends.
type Reader struct {
	Reader     io.Reader
	Total      int64
	OnProgress Func

	read     int64
	pending  int64
	interval int64
	done     bool
}

func NewReader(r io.Reader, total, interval int64, cb Func) *Reader {
	return &Reader{
		Reader:     r,
		Total:      total,
		OnProgress: cb,
		interval:   interval,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.pending += int64(n)

		if pr.pending >= pr.interval {
			pr.report()
		}
	}

	if err == io.EOF && !pr.done {
		pr.done = true
		if pr.pending > 0 || pr.read == 0 {
			pr.report()
		}
	}

	return n, err
}

// BytesRead returns how many bytes have passed through so far.
func (pr *Reader) BytesRead() int64 {
	return pr.read
}

func (pr *Reader) report() {
	pr.pending = 0

	if pr.OnProgress != nil {
		pr.OnProgress(pr.read, pr.Total)
	}
}
