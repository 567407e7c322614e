package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shadowdev/shadowbot/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sessionDirFormat names each session directory after its start time.
const sessionDirFormat = "2006-01-02_15-04-05"

// Manager handles the creation and management of log files and directories.
// Every process run writes into its own timestamped session directory and
// into a "latest" directory that is recreated on startup.
type Manager struct {
	currentSessionDir string // Path to the current session's log directory
	logDir            string // Base directory for all logs
	level             string // Logging level (debug, info, warn, error)
	maxLogsToKeep     int    // Maximum number of log sessions to retain
	console           bool   // Also write to stdout
}

// NewManager creates a new Manager instance.
func NewManager(logDir string, cfg *config.Debug) *Manager {
	return &Manager{
		logDir:        logDir,
		level:         cfg.LogLevel,
		maxLogsToKeep: cfg.MaxLogsToKeep,
		console:       true,
	}
}

// SessionDir returns the directory of the current session.
func (lm *Manager) SessionDir() string {
	return lm.currentSessionDir
}

// GetLoggers initializes the main and database loggers.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger([]string{
		filepath.Join(lm.currentSessionDir, "main.log"),
		filepath.Join(lm.logDir, "latest", "main.log"),
	}, lm.console)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	// Query logs stay out of the console
	dbLogger, err := lm.initLogger([]string{
		filepath.Join(lm.currentSessionDir, "database.log"),
		filepath.Join(lm.logDir, "latest", "database.log"),
	}, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	return mainLogger, dbLogger, nil
}

// setupLogDirectories creates and manages the log directory structure.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	lm.currentSessionDir = filepath.Join(lm.logDir, time.Now().Format(sessionDirFormat))
	if err := os.MkdirAll(lm.currentSessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// Ignore errors when removing the old latest directory
	// since it may be written to by another process
	latestDir := filepath.Join(lm.logDir, "latest")
	_ = os.RemoveAll(latestDir)

	if err := os.MkdirAll(latestDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create latest directory: %w", err)
	}

	return nil
}

// initLogger creates a new zap logger instance with the specified paths and level.
func (lm *Manager) initLogger(logPaths []string, console bool) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cores := make([]zapcore.Core, 0, len(logPaths)+1)
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	for _, path := range logPaths {
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(file),
			zapLevel,
		))
	}

	if console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(os.Stdout),
			zapLevel,
		))
	}

	cores = append(cores, NewSpanCore(zapLevel))

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// rotateLogSessions removes the oldest session directories so that at most
// maxLogsToKeep remain, not counting the "latest" directory.
func (lm *Manager) rotateLogSessions() error {
	entries, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	sessions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if filepath.Base(entry) != "latest" {
			sessions = append(sessions, entry)
		}
	}

	// Make room for the session about to be created
	keep := lm.maxLogsToKeep - 1
	if keep < 0 {
		keep = 0
	}

	if len(sessions) <= keep {
		return nil
	}

	// Session names sort chronologically
	sort.Strings(sessions)

	for i := range len(sessions) - keep {
		if err := os.RemoveAll(sessions[i]); err != nil {
			return err
		}
	}

	return nil
}
