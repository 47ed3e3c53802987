// Package logging provides config-driven categorized file-based logging for muse.
// Logs are written to .muse/logs/ with separate files per category.
// Logging is controlled by the logging section of .muse/config.yaml - when
// debug_mode is false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Boot/initialization
	CategoryConfig    Category = "config"    // Config load and hot reload
	CategoryGateway   Category = "gateway"   // Outbound LLM calls and retries
	CategoryCognition Category = "cognition" // Narrative growth, hypothesis extraction
	CategoryPrompt    Category = "prompt"    // Prompt synthesis
	CategoryArchive   Category = "archive"   // Record persistence
	CategoryUsage     Category = "usage"     // Token usage and cost ledger
	CategoryEmbedding Category = "embedding" // Embedding faculty
)

// loggingConfig mirrors config.LoggingConfig to avoid a circular import:
// the config package logs through this package.
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// configFile reads just the logging section of .muse/config.yaml.
type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// StructuredLogEntry represents a JSON log entry
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"` // Unix milliseconds
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	workspace string
	config    loggingConfig
	configMu  sync.RWMutex
	logLevel  int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".muse", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	// Only create logs directory if debug mode is enabled
	if !config.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	bootLogger := Get(CategoryBoot)
	bootLogger.Info("=== muse logging initialized ===")
	bootLogger.Info("Workspace: %s", workspace)
	bootLogger.Info("Logs directory: %s", logsDir)
	bootLogger.Info("Log level: %s", config.Level)

	return nil
}

// loadConfig reads the logging section of .muse/config.yaml
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, ".muse", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging)
			config.DebugMode = false
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	config = cf.Logging

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// ReloadConfig reloads the config from disk. The config watcher calls this
// when .muse/config.yaml changes at runtime.
func ReloadConfig() error {
	if err := loadConfig(); err != nil {
		return err
	}
	// A reload may turn debug mode on after a production-mode Initialize.
	if IsDebugMode() && logsDir != "" {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	return nil
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}

	if config.Categories == nil {
		return true // All enabled by default in debug mode
	}

	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	if logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix for easy rotation
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l

	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg) // Fallback to text
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

// Config logs to the config category
func Config(format string, args ...interface{}) {
	Get(CategoryConfig).Info(format, args...)
}

// ConfigWarn logs warning to the config category
func ConfigWarn(format string, args ...interface{}) {
	Get(CategoryConfig).Warn(format, args...)
}

// Gateway logs to the gateway category
func Gateway(format string, args ...interface{}) {
	Get(CategoryGateway).Info(format, args...)
}

// GatewayDebug logs debug to the gateway category
func GatewayDebug(format string, args ...interface{}) {
	Get(CategoryGateway).Debug(format, args...)
}

// GatewayWarn logs warning to the gateway category
func GatewayWarn(format string, args ...interface{}) {
	Get(CategoryGateway).Warn(format, args...)
}

// GatewayError logs error to the gateway category
func GatewayError(format string, args ...interface{}) {
	Get(CategoryGateway).Error(format, args...)
}

// Cognition logs to the cognition category
func Cognition(format string, args ...interface{}) {
	Get(CategoryCognition).Info(format, args...)
}

// CognitionDebug logs debug to the cognition category
func CognitionDebug(format string, args ...interface{}) {
	Get(CategoryCognition).Debug(format, args...)
}

// CognitionWarn logs warning to the cognition category
func CognitionWarn(format string, args ...interface{}) {
	Get(CategoryCognition).Warn(format, args...)
}

// Archive logs to the archive category
func Archive(format string, args ...interface{}) {
	Get(CategoryArchive).Info(format, args...)
}

// ArchiveError logs error to the archive category
func ArchiveError(format string, args ...interface{}) {
	Get(CategoryArchive).Error(format, args...)
}

// Usage logs to the usage category
func Usage(format string, args ...interface{}) {
	Get(CategoryUsage).Info(format, args...)
}

// Embedding logs to the embedding category
func Embedding(format string, args ...interface{}) {
	Get(CategoryEmbedding).Info(format, args...)
}

// EmbeddingError logs error to the embedding category
func EmbeddingError(format string, args ...interface{}) {
	Get(CategoryEmbedding).Error(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
