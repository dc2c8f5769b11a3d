package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// barProgress renders backup progress as a terminal progress bar.
type barProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newBarProgress(out io.Writer) *barProgress {
	return &barProgress{out: out}
}

func (p *barProgress) Start(title string, total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(title),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Entry(string, bool) {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
