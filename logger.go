package aichef

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TurnLogger is the interface for per-turn session logging.
type TurnLogger interface {
	LogTurn(turn TurnLog) error
}

// NewTurnLogFilePath returns a file path under dir named after the session start time and the model,
// so logs produced with different models are easy to tell apart.
func NewTurnLogFilePath(dir, model string) string {
	if dir == "" {
		dir = "./logs"
	}
	name := strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model))
	return filepath.Join(dir, fmt.Sprintf("%d.%s.json", time.Now().Unix(), name))
}

// TurnLog represents a single user turn through the pipeline.
type TurnLog struct {
	SessionID   string    `json:"session_id"`
	Turn        int       `json:"turn"`
	Timestamp   time.Time `json:"timestamp"`
	Input       string    `json:"input"`
	Phases      []string  `json:"phases"`
	Extraction  string    `json:"extraction"`
	Sufficient  bool      `json:"sufficient"`
	Calls       []CallLog `json:"calls,omitempty"`
	UsageBefore int       `json:"usage_before"`
	UsageAfter  int       `json:"usage_after"`
	Error       string    `json:"error,omitempty"`
}

// CallLog represents one completion call made during a turn.
type CallLog struct {
	Agent      string        `json:"agent"`
	Usage      Usage         `json:"usage"`
	Duration   time.Duration `json:"duration_ns"`
	OutputSize int           `json:"output_size"`
	Error      string        `json:"error,omitempty"`
}

// FileTurnLogger accumulates turns and writes them to the writer on Flush.
type FileTurnLogger struct {
	turns  []TurnLog
	writer io.Writer
}

// NewFileTurnLogger creates a new file-based turn logger
func NewFileTurnLogger(writer io.Writer) *FileTurnLogger {
	return &FileTurnLogger{
		turns:  make([]TurnLog, 0),
		writer: writer,
	}
}

// LogTurn buffers the turn (does not flush immediately)
func (l *FileTurnLogger) LogTurn(turn TurnLog) error {
	l.turns = append(l.turns, turn)
	return nil
}

// Flush writes all accumulated turns to the writer
func (l *FileTurnLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"chef_session": map[string]any{
			"timestamp": time.Now(),
			"turns":     l.turns,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal turn log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write turn log: %w", err)
	}

	l.turns = l.turns[:0]
	return nil
}

// NoOpTurnLogger discards all log entries
type NoOpTurnLogger struct{}

func NewNoOpTurnLogger() *NoOpTurnLogger {
	return &NoOpTurnLogger{}
}

func (nop *NoOpTurnLogger) LogTurn(turn TurnLog) error {
	return nil
}

// StdoutTurnLogger logs each turn as a JSON line to stdout (for Lambda/CloudWatch)
type StdoutTurnLogger struct {
	out io.Writer
}

func NewStdoutTurnLogger() *StdoutTurnLogger {
	return &StdoutTurnLogger{out: os.Stdout}
}

// LogTurn writes the turn as a single JSON line
func (l *StdoutTurnLogger) LogTurn(turn TurnLog) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
