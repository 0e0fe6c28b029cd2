// Package progress reports the advance of long running steps.
package progress

import (
	"io"

	"github.com/cheggaaa/pb"
)

// Emit calls cb with clamped processed/total values.
// It is a no-op when cb is nil or total is non-positive.
func Emit(cb func(processed, total int), processed, total int) {
	if cb == nil || total <= 0 {
		return
	}

	if processed < 0 {
		processed = 0
	}
	if processed > total {
		processed = total
	}

	cb(processed, total)
}

// Bar draws progress on a terminal. It starts on the first update and
// must be finished by the caller.
type Bar struct {
	label string
	out   io.Writer
	bar   *pb.ProgressBar
}

// NewBar creates a Bar writing to out, prefixed with label.
func NewBar(label string, out io.Writer) *Bar {
	return &Bar{label: label, out: out}
}

func (b *Bar) start(total int) {
	if b.bar != nil {
		return
	}

	bar := pb.New(total)
	bar.Output = b.out
	bar.ShowSpeed = false
	bar.Prefix(b.label + " ")
	bar.Start()
	b.bar = bar
}

// Update sets the bar to processed of total. It matches the callbacks
// passed to Emit.
func (b *Bar) Update(processed, total int) {
	b.start(total)
	b.bar.Set(processed)
}

// Increment advances a bar without a known total by one.
func (b *Bar) Increment() {
	b.start(0)
	b.bar.Increment()
}

// Finish stops redrawing and prints the final state, if the bar was started.
func (b *Bar) Finish() {
	if b.bar != nil {
		b.bar.Finish()
	}
}
