package logger

import (
	"log"
	"os"
)

// FileLogger appends to a log file. Close releases the file handle.
type FileLogger struct {
	*StandardLogger
	file *os.File
}

// NewFileLogger opens (or creates) the file at path for appending and
// returns a logger writing to it. Combine with NewMultiLogger to log to
// console and file at once.
func NewFileLogger(path string, verbose bool) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		StandardLogger: NewStandardLogger(log.New(f, "", log.LstdFlags), verbose),
		file:           f,
	}, nil
}

// Close closes the underlying file.
func (f *FileLogger) Close() error {
	return f.file.Close()
}

var _ Logger = (*FileLogger)(nil)
