// Package monitoring carries the pipeline's diagnostic logging.
package monitoring

import (
	"log"
	"sync"
	"time"

	"github.com/banshee-data/qwop.data/internal/timeutil"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Progress logs completion of a fixed number of work items, such as the
// files of one pipeline pass. It is safe for concurrent use.
type Progress struct {
	mu    sync.Mutex
	name  string
	total int
	done  int
	clock timeutil.Clock
	start time.Time
}

// NewProgress starts tracking total items under name.
func NewProgress(clock timeutil.Clock, name string, total int) *Progress {
	return &Progress{name: name, total: total, clock: clock, start: clock.Now()}
}

// Done records one finished item and logs it with its detail line.
func (p *Progress) Done(item, detail string) {
	p.mu.Lock()
	p.done++
	done := p.done
	p.mu.Unlock()
	Logf("[%s] %d/%d %s %s", p.name, done, p.total, item, detail)
}

// Finish logs the item count and elapsed time, and returns the elapsed time.
func (p *Progress) Finish() time.Duration {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	elapsed := p.clock.Since(p.start)
	Logf("[%s] finished %d/%d in %v", p.name, done, p.total, elapsed)
	return elapsed
}
