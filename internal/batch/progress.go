package batch

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Progress receives updates as images complete. Calls come from a single
// goroutine.
type Progress interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnError(done int, image string, err error)
	OnComplete()
}

type noProgress struct{}

func (noProgress) OnStart(int)                {}
func (noProgress) OnProgress(int, int)        {}
func (noProgress) OnError(int, string, error) {}
func (noProgress) OnComplete()                {}

// ConsoleProgress draws a single-line progress bar, typically on stderr.
type ConsoleProgress struct {
	w        io.Writer
	width    int
	interval time.Duration

	mu    sync.Mutex
	start time.Time
	last  time.Time
}

// NewConsoleProgress reports to w with a bar of 40 cells redrawn at most
// every 100ms.
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{w: w, width: 40, interval: 100 * time.Millisecond}
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.last = time.Time{}
	_, _ = fmt.Fprintf(c.w, "extracting %d images\n", total)
}

func (c *ConsoleProgress) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if done < total && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	_, _ = fmt.Fprint(c.w, c.line(done, total, now.Sub(c.start)))
}

func (c *ConsoleProgress) line(done, total int, elapsed time.Duration) string {
	if total <= 0 {
		return ""
	}
	filled := c.width * done / total
	s := fmt.Sprintf("\r[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat(".", c.width-filled), done, total)
	if done > 0 && elapsed > 0 {
		rate := float64(done) / elapsed.Seconds()
		s += fmt.Sprintf(" %.1f img/s", rate)
		if done < total {
			eta := time.Duration(float64(total-done) / rate * float64(time.Second))
			s += fmt.Sprintf(" ETA %v", eta.Round(time.Second))
		}
	}
	return s
}

func (c *ConsoleProgress) OnError(done int, image string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%s: %v\n", image, err)
}

func (c *ConsoleProgress) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\ndone in %v\n", time.Since(c.start).Round(time.Millisecond))
}

// LogProgress logs every Every completed images through slog.
type LogProgress struct {
	Logger *slog.Logger
	Every  int

	start time.Time
	last  int
}

func (l *LogProgress) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l *LogProgress) OnStart(total int) {
	l.start, l.last = time.Now(), 0
	l.logger().Info("extraction started", "images", total)
}

func (l *LogProgress) OnProgress(done, total int) {
	if done-l.last < max(l.Every, 1) && done < total {
		return
	}
	l.last = done
	l.logger().Info("extraction progress", "done", done, "total", total,
		"elapsed", time.Since(l.start).Round(time.Millisecond))
}

func (l *LogProgress) OnError(done int, image string, err error) {
	l.logger().Warn("image failed", "done", done, "image", image, "error", err)
}

func (l *LogProgress) OnComplete() {
	l.logger().Info("extraction completed", "elapsed", time.Since(l.start).Round(time.Millisecond))
}
