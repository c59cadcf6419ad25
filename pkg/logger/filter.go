package logger

// QuietLogger forwards only errors to the wrapped logger.
type QuietLogger struct {
	next Logger
}

// NewQuietLogger wraps a logger so that everything below error level is
// dropped.
func NewQuietLogger(next Logger) *QuietLogger {
	return &QuietLogger{next: next}
}

func (q *QuietLogger) Debug(format string, args ...interface{}) {}

func (q *QuietLogger) Info(format string, args ...interface{}) {}

func (q *QuietLogger) Warning(format string, args ...interface{}) {}

func (q *QuietLogger) Error(format string, args ...interface{}) {
	q.next.Error(format, args...)
}

func (q *QuietLogger) Close() error {
	return q.next.Close()
}

var _ Logger = (*QuietLogger)(nil)
