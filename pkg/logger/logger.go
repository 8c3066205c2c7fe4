package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus with additional functionality
type Logger struct {
	*logrus.Logger
	fields logrus.Fields
}

// NewLogger creates a new logger instance
func NewLogger(level, logFile string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     false,
	})

	if logFile != "" {
		logDir := filepath.Dir(logFile)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Printf("Failed to create log directory: %v\n", err)
		} else {
			// Use lumberjack for log rotation
			fileLogger := &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    100, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}

			multiWriter := io.MultiWriter(os.Stdout, fileLogger)
			log.SetOutput(multiWriter)
		}
	}

	return &Logger{
		Logger: log,
		fields: make(logrus.Fields),
	}
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	newFields := make(logrus.Fields)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value

	return &Logger{
		Logger: l.Logger,
		fields: newFields,
	}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(logrus.Fields)
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		Logger: l.Logger,
		fields: newFields,
	}
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	entry := l.Logger.WithFields(l.fields)
	if len(args) > 0 {
		entry.Debugf(msg, args...)
	} else {
		entry.Debug(msg)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	entry := l.Logger.WithFields(l.fields)
	if len(args) > 0 {
		entry.Infof(msg, args...)
	} else {
		entry.Info(msg)
	}
}

// Warning logs a warning message
func (l *Logger) Warning(msg string, args ...interface{}) {
	entry := l.Logger.WithFields(l.fields)
	if len(args) > 0 {
		entry.Warningf(msg, args...)
	} else {
		entry.Warning(msg)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	entry := l.Logger.WithFields(l.fields)
	if len(args) > 0 {
		entry.Errorf(msg, args...)
	} else {
		entry.Error(msg)
	}
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	entry := l.Logger.WithFields(l.fields)
	if len(args) > 0 {
		entry.Fatalf(msg, args...)
	} else {
		entry.Fatal(msg)
	}
}

// Writer returns an io.Writer for the logger
func (l *Logger) Writer() io.Writer {
	return l.Logger.Writer()
}

// GinLogger returns a Gin middleware for logging HTTP requests
func (l *Logger) GinLogger() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ClientIP,
			)
		},
		Output:    l.Writer(),
		SkipPaths: []string{"/health", "/ping"},
	})
}

// RequestLogger creates a middleware that logs request details with context
func (l *Logger) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := generateRequestID()
		c.Set("request_id", requestID)
		c.Set("logger", l.WithField("request_id", requestID))

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		entry := l.WithFields(map[string]interface{}{
			"request_id":  requestID,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
		})

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("HTTP request completed with server error")
		} else if status >= 400 {
			entry.Warning("HTTP request completed with client error")
		} else {
			entry.Info("HTTP request completed")
		}
	}
}

// DeploymentLogger logs election deployment events
func (l *Logger) DeploymentLogger(event, electionID, txHash, details string) {
	l.WithFields(map[string]interface{}{
		"event_type":  "deployment",
		"event":       event,
		"election_id": electionID,
		"tx_hash":     txHash,
		"details":     details,
		"timestamp":   time.Now().Unix(),
	}).Info("Deployment event logged")
}

// VotingLogger logs voting-specific events
func (l *Logger) VotingLogger(event, electionID, voterID, details string) {
	l.WithFields(map[string]interface{}{
		"event_type":  "voting",
		"event":       event,
		"election_id": electionID,
		"voter_id":    voterID,
		"details":     details,
		"timestamp":   time.Now().Unix(),
	}).Info("Voting event logged")
}

// LedgerLogger logs external ledger events
func (l *Logger) LedgerLogger(event, txHash, details string) {
	l.WithFields(map[string]interface{}{
		"event_type": "ledger",
		"event":      event,
		"tx_hash":    txHash,
		"details":    details,
		"timestamp":  time.Now().Unix(),
	}).Info("Ledger event logged")
}

// GetLoggerFromContext retrieves the logger from Gin context
func GetLoggerFromContext(c *gin.Context) *Logger {
	if logger, exists := c.Get("logger"); exists {
		if l, ok := logger.(*Logger); ok {
			return l
		}
	}
	return NewLogger("info", "")
}

// SetFormatter sets the log formatter
func (l *Logger) SetFormatter(format string) {
	switch format {
	case "json":
		l.Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		l.Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}

// SetLogLevel dynamically sets the log level
func (l *Logger) SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.Logger.SetLevel(logLevel)
	return nil
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())
}
