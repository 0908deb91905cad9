// Package telemetry abstracts progress and notification reporting so the
// core engine never depends on a specific rendering surface. Components
// post typed events to a Sink; the enclosing program supplies the sink.
package telemetry

import (
	"fmt"
	"io"
	"sync"
)

// Downloading is posted once a download begins.
type Downloading struct {
	URL   string
	Total int64 // 0 when unknown
}

// Progress is posted as bytes arrive during a download.
type Progress struct {
	Done, Total int64 // Total is 0 when unknown
}

// Installing is posted when extraction/staging begins.
type Installing struct {
	Identity string
}

// Installed is posted once a toolchain has been committed to the store.
type Installed struct {
	Identity string
}

// Using is posted when the override engine resolves a toolchain for use,
// along with the reason (rule that fired and the path/setting involved).
type Using struct {
	Identity string
	Reason   string
}

// Warn is a non-fatal warning message.
type Warn struct {
	Msg string
}

// Info is an informational message, e.g. "already up-to-date".
type Info struct {
	Msg string
}

// Sink receives typed telemetry events. Implementations must be safe for
// concurrent use; download/extract notifications may arrive from a
// background goroutine while the caller is still running.
type Sink interface {
	Downloading(Downloading)
	Progress(Progress)
	Installing(Installing)
	Installed(Installed)
	Using(Using)
	Warn(Warn)
	Info(Info)
}

// WriterSink renders events as single lines to an io.Writer, the same style
// the CLI layer already uses for its own direct Fprintf output.
type WriterSink struct {
	mu  sync.Mutex
	out io.Writer
	// lastPct tracks the last printed progress percentage so repeated
	// Progress events don't spam a line per chunk.
	lastPct int
	// verbose reports every percentage point of download progress instead
	// of only every 10%, the --verbose global flag's one concrete effect.
	verbose bool
}

// NewWriterSink returns a Sink that writes human-readable lines to w,
// reporting download progress every 10%. Use NewVerboseWriterSink for
// finer-grained progress.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{out: w, lastPct: -1}
}

// NewVerboseWriterSink is like NewWriterSink but reports every percentage
// point of download progress rather than every 10%.
func NewVerboseWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{out: w, lastPct: -1, verbose: true}
}

func (s *WriterSink) Downloading(e Downloading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPct = -1
	if e.Total > 0 {
		fmt.Fprintf(s.out, "Downloading %s (%d bytes)...\n", e.URL, e.Total)
		return
	}
	fmt.Fprintf(s.out, "Downloading %s...\n", e.URL)
}

func (s *WriterSink) Progress(e Progress) {
	if e.Total <= 0 {
		return
	}
	pct := int(float64(e.Done) / float64(e.Total) * 100)
	s.mu.Lock()
	defer s.mu.Unlock()
	if pct == s.lastPct || (!s.verbose && pct%10 != 0) {
		return
	}
	s.lastPct = pct
	fmt.Fprintf(s.out, "  %d%%\n", pct)
}

func (s *WriterSink) Installing(e Installing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "Installing %s...\n", e.Identity)
}

func (s *WriterSink) Installed(e Installed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "Installed %s\n", e.Identity)
}

func (s *WriterSink) Using(e Using) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "using %s (%s)\n", e.Identity, e.Reason)
}

func (s *WriterSink) Warn(e Warn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "warning: %s\n", e.Msg)
}

func (s *WriterSink) Info(e Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, e.Msg)
}

// NopSink discards every event. Useful for tests, and used in place of a
// nil sink by registry.New and Downloader.Fetch.
type NopSink struct{}

func (NopSink) Downloading(Downloading) {}
func (NopSink) Progress(Progress)       {}
func (NopSink) Installing(Installing)   {}
func (NopSink) Installed(Installed)     {}
func (NopSink) Using(Using)             {}
func (NopSink) Warn(Warn)               {}
func (NopSink) Info(Info)               {}

// FilterSink wraps another Sink and drops Progress/Downloading/Installing/Info
// events when Quiet is set, used for the --quiet global flag.
type FilterSink struct {
	Inner Sink
	Quiet bool
}

func (f FilterSink) Downloading(e Downloading) {
	if !f.Quiet {
		f.Inner.Downloading(e)
	}
}
func (f FilterSink) Progress(e Progress) {
	if !f.Quiet {
		f.Inner.Progress(e)
	}
}
func (f FilterSink) Installing(e Installing) {
	if !f.Quiet {
		f.Inner.Installing(e)
	}
}
func (f FilterSink) Installed(e Installed) { f.Inner.Installed(e) }
func (f FilterSink) Using(e Using)         { f.Inner.Using(e) }
func (f FilterSink) Warn(e Warn)           { f.Inner.Warn(e) }
func (f FilterSink) Info(e Info) {
	if !f.Quiet {
		f.Inner.Info(e)
	}
}
