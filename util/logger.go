package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ContextLogger is a wrapper for logrus that defines which package and
// function a log is written
type ContextLogger struct {
	*logrus.Entry
}

// NewContextLogger returns a new ContextLogger for the given package
func NewContextLogger(pkg string) ContextLogger {
	contextLogger := ContextLogger{logrus.WithField("package", pkg)}
	return contextLogger
}

// InFunc is a helper method to set the func field for the logger
func (c ContextLogger) InFunc(function string) ContextLogger {
	c.Entry = c.WithField("func", function)
	return c
}

// ForApp sets the app field for the logger
func (c ContextLogger) ForApp(app string) ContextLogger {
	c.Entry = c.WithField("app", app)
	return c
}

// SetupLogging configures the global logrus logger. Debug enables debug
// level output, short drops timestamps and the package/func fields.
func SetupLogging(debug, short bool) {
	setupLogging(os.Stderr, debug, short)
}

func setupLogging(out io.Writer, debug, short bool) {
	logrus.SetOutput(out)
	logrus.SetLevel(logrus.InfoLevel)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if short {
		logrus.SetFormatter(&shortFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// shortFormatter prints "LEVEL message" without timestamps or context fields.
type shortFormatter struct{}

func (f *shortFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	line := entry.Level.String() + " " + entry.Message
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		line += ": " + errString(err)
	}
	return []byte(line + "\n"), nil
}

func errString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
