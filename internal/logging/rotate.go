package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ingen-audio/ingen/internal/conf"
)

// rotatingWriter is a minimal io.Writer that rotates a log file either by
// size or by calendar day, mirroring main.log.rotation/main.log.maxsize.
// It is intentionally simple: one backup file (filePath + ".1"), no
// compression, no count-limited backlog. Services that need more than that
// should ship logs off-box instead of growing this further.
type rotatingWriter struct {
	mu       sync.Mutex
	path     string
	rotation conf.RotationType
	maxSize  int64

	file       *os.File
	size       int64
	openedDay  int
	openedYear int
}

func newRotatingWriter(path string, cfg conf.LogConfig) (*rotatingWriter, error) {
	rw := &rotatingWriter{
		path:     path,
		rotation: cfg.Rotation,
		maxSize:  cfg.MaxSize,
	}
	if rw.maxSize <= 0 {
		rw.maxSize = 100 * 1024 * 1024
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *rotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666) //nolint:gosec // accept 0o666 for now
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	now := time.Now()
	rw.file = f
	rw.size = info.Size()
	rw.openedDay, rw.openedYear = now.YearDay(), now.Year()
	return nil
}

func (rw *rotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.shouldRotateLocked() {
		if err := rw.rotateLocked(); err != nil {
			slog.Warn("log rotation failed, continuing to write to existing file", "error", err)
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *rotatingWriter) shouldRotateLocked() bool {
	switch rw.rotation {
	case conf.RotationDaily:
		now := time.Now()
		return now.YearDay() != rw.openedDay || now.Year() != rw.openedYear
	case conf.RotationWeekly:
		nowYear, nowWeek := weekOf(time.Now())
		openYear, openWeek := weekOf(dayOf(rw.openedYear, rw.openedDay))
		return nowYear != openYear || nowWeek != openWeek
	case conf.RotationSize:
		return rw.size >= rw.maxSize
	default:
		return rw.size >= rw.maxSize
	}
}

func dayOf(year, yday int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, yday-1)
}

func weekOf(t time.Time) (int, int) {
	y, w := t.ISOWeek()
	return y, w
}

func (rw *rotatingWriter) rotateLocked() error {
	if err := rw.file.Close(); err != nil {
		return err
	}
	backup := fmt.Sprintf("%s.1", rw.path)
	_ = os.Remove(backup)
	if err := os.Rename(rw.path, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	return rw.open()
}

func (rw *rotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	return rw.file.Close()
}
