package logging

import "github.com/sirupsen/logrus"

// Logger instances provide custom logging.
type Logger interface {

	// Log with level ERROR
	Error(...any)

	// Log formatted messages with level ERROR
	Errorf(string, ...any)

	// Log with level WARN
	Warn(...any)

	// Log formatted messages with level WARN
	Warnf(string, ...any)

	// Log with level INFO
	Info(...any)

	// Log formatted messages with level INFO
	Infof(string, ...any)

	// Log with level DEBUG
	Debug(...any)

	// Log formatted messages with level DEBUG
	Debugf(string, ...any)
}

// DefaultLog provides a default implementation of the Logger interface,
// writing to the application log with a fixed set of fields.
type DefaultLog struct {
	entry *logrus.Entry
}

// New returns a logger writing to the logrus standard logger.
func New() *DefaultLog {
	return NewWithLogger(logrus.StandardLogger())
}

func NewWithLogger(l *logrus.Logger) *DefaultLog {
	return &DefaultLog{entry: logrus.NewEntry(l)}
}

// WithFields returns a logger that adds the fields to every entry.
func (dl *DefaultLog) WithFields(fields map[string]any) *DefaultLog {
	return &DefaultLog{entry: dl.entry.WithFields(fields)}
}

func (dl *DefaultLog) Error(a ...any)            { dl.entry.Error(a...) }
func (dl *DefaultLog) Errorf(f string, a ...any) { dl.entry.Errorf(f, a...) }
func (dl *DefaultLog) Warn(a ...any)             { dl.entry.Warn(a...) }
func (dl *DefaultLog) Warnf(f string, a ...any)  { dl.entry.Warnf(f, a...) }
func (dl *DefaultLog) Info(a ...any)             { dl.entry.Info(a...) }
func (dl *DefaultLog) Infof(f string, a ...any)  { dl.entry.Infof(f, a...) }
func (dl *DefaultLog) Debug(a ...any)            { dl.entry.Debug(a...) }
func (dl *DefaultLog) Debugf(f string, a ...any) { dl.entry.Debugf(f, a...) }
