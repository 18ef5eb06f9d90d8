// Package progress renders single-line byte progress for interactive
// transfers. A nil *Reporter is a safe no-op so non-interactive callers
// can simply pass nil through.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// renderInterval throttles redraws; the final state is always drawn.
const renderInterval = 200 * time.Millisecond

// Reporter tracks and displays one transfer's progress.
type Reporter struct {
	w     io.Writer
	label string

	start      time.Time
	lastRender time.Time
}

// New returns a reporter writing to w, or nil when w is nil.
func New(w io.Writer, label string) *Reporter {
	if w == nil {
		return nil
	}
	return &Reporter{w: w, label: label, start: time.Now()}
}

// Update redraws the progress line. It matches the transfer callback shape:
// cumulative written bytes and the declared total (-1 when unknown).
func (r *Reporter) Update(written, total int64) {
	if r == nil {
		return
	}
	now := time.Now()
	done := total >= 0 && written >= total
	if !done && now.Sub(r.lastRender) < renderInterval {
		return
	}
	r.lastRender = now

	rate := rateSince(r.start, written)
	if total > 0 {
		pct := float64(written) / float64(total) * 100
		fmt.Fprintf(r.w, "\r%s  %s / %s (%.1f%%)  %s/s    ",
			r.label, humanize.IBytes(uint64(written)), humanize.IBytes(uint64(total)), pct, humanize.IBytes(uint64(rate)))
	} else {
		fmt.Fprintf(r.w, "\r%s  %s  %s/s    ",
			r.label, humanize.IBytes(uint64(written)), humanize.IBytes(uint64(rate)))
	}
}

// Finish draws the closing line with total bytes and average rate.
func (r *Reporter) Finish(written int64) {
	if r == nil {
		return
	}
	elapsed := time.Since(r.start)
	fmt.Fprintf(r.w, "\r%s  %s in %s (%s/s)        \n",
		r.label,
		humanize.IBytes(uint64(written)),
		elapsed.Round(time.Second),
		humanize.IBytes(uint64(rateSince(r.start, written))))
}

func rateSince(start time.Time, written int64) float64 {
	secs := time.Since(start).Seconds()
	if secs < 0.001 {
		secs = 0.001
	}
	return float64(written) / secs
}
