// Package progress renders a terminal progress bar for asset emission.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Bar is a progress bar that can be disabled. A nil *Bar ignores all calls.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar of max steps rendered to w.
func New(w io.Writer, max int, description string) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(max,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Describe(description string) {
	if b == nil {
		return
	}
	b.bar.Describe(description)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
