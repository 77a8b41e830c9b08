// Package runlog persists the append-only execution log: one
// newline-delimited JSON record per task state transition, keyed by graph
// and task id.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger appends execution events to disk. Safe for concurrent writers;
// a single mutex guards the file handle and the in-memory tail.
type Logger struct {
	graphID string
	logDir  string
	logFile *os.File

	mu sync.Mutex

	maxFileSize int64
	maxFiles    int
	enabled     bool

	// events keeps an in-memory tail for inspection and tests
	events []*Event
}

// Config contains logger configuration
type Config struct {
	// GraphID identifies the graph execution this log belongs to
	GraphID string

	// LogDir is the directory for log files
	LogDir string

	// MaxFileSize is the max size before rotation (default: 10MB)
	MaxFileSize int64

	// MaxFiles is the max number of rotated files (default: 5)
	MaxFiles int

	// Enabled controls whether events are persisted; when false, events
	// are still tracked in memory
	Enabled bool
}

// NewLogger creates an execution logger for one graph run.
func NewLogger(config Config) (*Logger, error) {
	if config.GraphID == "" {
		return nil, fmt.Errorf("graph id is required")
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 10 * 1024 * 1024
	}
	if config.MaxFiles == 0 {
		config.MaxFiles = 5
	}

	if !config.Enabled {
		return &Logger{graphID: config.GraphID, enabled: false}, nil
	}

	if err := os.MkdirAll(config.LogDir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logFile, err := os.OpenFile(logPath(config.LogDir, config.GraphID),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		graphID:     config.GraphID,
		logDir:      config.LogDir,
		logFile:     logFile,
		maxFileSize: config.MaxFileSize,
		maxFiles:    config.MaxFiles,
		enabled:     true,
	}, nil
}

// Log appends an event to the execution log.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)

	if !l.enabled {
		return nil
	}

	if err := l.checkRotation(); err != nil {
		return fmt.Errorf("log rotation failed: %w", err)
	}

	line, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	if _, err := fmt.Fprintf(l.logFile, "%s\n", line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// GraphStart records the start of graph execution.
func (l *Logger) GraphStart(taskCount, maxParallelism int) error {
	return l.Log(NewEvent(EventTypeGraphStart, l.graphID, "graph execution started").
		WithData("task_count", taskCount).
		WithData("max_parallelism", maxParallelism))
}

// GraphComplete records the end of graph execution.
func (l *Logger) GraphComplete(status string, duration time.Duration) error {
	return l.Log(NewEvent(EventTypeGraphComplete, l.graphID, "graph execution finished").
		WithData("status", status).
		WithDuration(duration))
}

// TaskDispatch records a task being handed to the executor.
func (l *Logger) TaskDispatch(taskID, tool string, attempt int) error {
	return l.Log(NewEvent(EventTypeTaskDispatch, l.graphID, fmt.Sprintf("dispatching task %s", taskID)).
		WithTaskID(taskID).
		WithData("tool", tool).
		WithData("attempt", attempt))
}

// TaskSuccess records a task completing successfully.
func (l *Logger) TaskSuccess(taskID string, duration time.Duration) error {
	return l.Log(NewEvent(EventTypeTaskSuccess, l.graphID, fmt.Sprintf("task %s succeeded", taskID)).
		WithTaskID(taskID).
		WithDuration(duration))
}

// TaskFailure records a terminal task failure.
func (l *Logger) TaskFailure(taskID string, attempt int, err error) error {
	return l.Log(NewEvent(EventTypeTaskFailure, l.graphID, fmt.Sprintf("task %s failed", taskID)).
		WithTaskID(taskID).
		WithData("attempt", attempt).
		WithError(err))
}

// TaskRetry records a failed attempt that will be retried.
func (l *Logger) TaskRetry(taskID string, attempt int, delay time.Duration, err error) error {
	return l.Log(NewEvent(EventTypeTaskRetry, l.graphID, fmt.Sprintf("task %s will be retried", taskID)).
		WithTaskID(taskID).
		WithData("attempt", attempt).
		WithData("delay_ms", delay.Milliseconds()).
		WithError(err))
}

// TaskSkip records a task skipped because a required dependency did not
// succeed.
func (l *Logger) TaskSkip(taskID, reason string) error {
	return l.Log(NewEvent(EventTypeTaskSkip, l.graphID, fmt.Sprintf("task %s skipped", taskID)).
		WithTaskID(taskID).
		WithData("reason", reason))
}

// TaskCancel records a task cancelled by graph-level cancellation.
func (l *Logger) TaskCancel(taskID string) error {
	return l.Log(NewEvent(EventTypeTaskCancel, l.graphID, fmt.Sprintf("task %s cancelled", taskID)).
		WithTaskID(taskID))
}

// Security records a sandbox policy violation at security severity.
func (l *Logger) Security(taskID, violation string) error {
	return l.Log(NewEvent(EventTypeSecurity, l.graphID, fmt.Sprintf("sandbox policy violation in task %s", taskID)).
		WithTaskID(taskID).
		WithData("violation", violation))
}

// Events returns a copy of the in-memory event tail.
func (l *Logger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*Event, len(l.events))
	copy(events, l.events)
	return events
}

// Path returns the current log file path, empty when persistence is off.
func (l *Logger) Path() string {
	if !l.enabled {
		return ""
	}
	return logPath(l.logDir, l.graphID)
}

// Close syncs and closes the underlying file.
func (l *Logger) Close() error {
	if !l.enabled || l.logFile == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.logFile.Sync(); err != nil {
		return err
	}
	return l.logFile.Close()
}

func logPath(dir, graphID string) string {
	return filepath.Join(dir, fmt.Sprintf("run_%s.ndjson", graphID))
}

func (l *Logger) checkRotation() error {
	info, err := l.logFile.Stat()
	if err != nil {
		return err
	}
	if info.Size() < l.maxFileSize {
		return nil
	}
	return l.rotate()
}

func (l *Logger) rotate() error {
	if err := l.logFile.Close(); err != nil {
		return err
	}

	currentPath := logPath(l.logDir, l.graphID)
	timestamp := time.Now().UTC().Format("20060102_150405")
	rotatedPath := filepath.Join(l.logDir, fmt.Sprintf("run_%s_%s.ndjson", l.graphID, timestamp))

	if err := os.Rename(currentPath, rotatedPath); err != nil {
		return err
	}

	if err := l.cleanupOldFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to cleanup old log files: %v\n", err)
	}

	logFile, err := os.OpenFile(currentPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	l.logFile = logFile
	return nil
}

func (l *Logger) cleanupOldFiles() error {
	pattern := filepath.Join(l.logDir, fmt.Sprintf("run_%s_*.ndjson", l.graphID))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	if len(files) <= l.maxFiles {
		return nil
	}

	for i := 0; i < len(files)-l.maxFiles; i++ {
		if err := os.Remove(files[i]); err != nil {
			return err
		}
	}
	return nil
}
