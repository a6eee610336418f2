package journal

import (
	"context"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the journal.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Journal appends entries on behalf of the engine packages.
type Journal struct {
	repo   Repository
	logger Logger
	now    func() time.Time
}

// New creates a journal writing to repo.
func New(repo Repository) *Journal {
	return &Journal{repo: repo, logger: noopLogger{}, now: time.Now}
}

// SetLogger sets the logger used to report failed writes.
func (j *Journal) SetLogger(logger Logger) {
	j.logger = logger
}

// Record appends one entry. Write failures are logged, not returned.
func (j *Journal) Record(ctx context.Context, origin Origin, name, message string) {
	e := &Entry{RecordedAt: j.now().UTC(), Origin: origin, Name: name, Message: message}
	if err := j.repo.Append(ctx, e); err != nil {
		j.logger.Warn("journal write failed",
			"origin", origin,
			"name", name,
			"error", err,
		)
	}
}

// Recordf is Record with a formatted message.
func (j *Journal) Recordf(ctx context.Context, origin Origin, name, format string, args ...any) {
	j.Record(ctx, origin, name, fmt.Sprintf(format, args...))
}
