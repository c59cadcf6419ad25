package logger

import (
	"log"
	"strings"
)

// debugWriter funnels writes from a stdlib logger into Logger.Debug.
type debugWriter struct {
	log Logger
}

func (w debugWriter) Write(p []byte) (int, error) {
	w.log.Debug("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// ToStdLogger adapts a Logger to a stdlib *log.Logger for libraries that
// only accept the standard interface. All messages arrive at debug
// level, so library chatter stays out of non-verbose logs.
func ToStdLogger(l Logger) *log.Logger {
	return log.New(debugWriter{log: l}, "", 0)
}
