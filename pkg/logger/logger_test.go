package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStandardLoggerPrefixes(t *testing.T) {
	var buf bytes.Buffer
	l := NewStandardLogger(log.New(&buf, "", 0), true)

	l.Debug("dbg %d", 1)
	l.Info("inf %s", "a")
	l.Warning("warn")
	l.Error("err")

	out := buf.String()
	for _, want := range []string{"[DEBUG] dbg 1", "[INFO] inf a", "[WARNING] warn", "[ERROR] err"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q, got:\n%s", want, out)
		}
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestStandardLoggerDebugGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewStandardLogger(log.New(&buf, "", 0), false)

	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("debug message leaked: %q", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warning("x")
	l.Error("x")
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMockLoggerRecords(t *testing.T) {
	m := NewMockLogger()
	m.Info("a %d", 1)
	m.Warning("b")
	m.Error("c")
	m.Debug("d")

	if len(m.InfoCalls) != 1 || m.InfoCalls[0] != "a 1" {
		t.Errorf("InfoCalls = %v", m.InfoCalls)
	}
	if len(m.WarningCalls) != 1 || len(m.ErrorCalls) != 1 || len(m.DebugCalls) != 1 {
		t.Errorf("unexpected call counts: %v %v %v", m.WarningCalls, m.ErrorCalls, m.DebugCalls)
	}
	_ = m.Close()
	if !m.CloseCalled {
		t.Error("CloseCalled not set")
	}
}

func TestMultiLoggerBroadcast(t *testing.T) {
	a, b := NewMockLogger(), NewMockLogger()
	m := NewMultiLogger(a, b)

	m.Info("hello")
	if len(a.InfoCalls) != 1 || len(b.InfoCalls) != 1 {
		t.Errorf("broadcast failed: %v %v", a.InfoCalls, b.InfoCalls)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !a.CloseCalled || !b.CloseCalled {
		t.Error("not all backends closed")
	}
}

func TestFileLoggerWritesAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stapled.log")
	l, err := NewFileLogger(path, false)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	l.Info("to the file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "[INFO] to the file") {
		t.Errorf("log file missing entry, got: %q", data)
	}
}

func TestFileLoggerBadPath(t *testing.T) {
	if _, err := NewFileLogger(filepath.Join(t.TempDir(), "no", "such", "dir.log"), false); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestToStdLogger(t *testing.T) {
	m := NewMockLogger()
	std := ToStdLogger(m)
	std.Println("from stdlib")

	if len(m.DebugCalls) != 1 || m.DebugCalls[0] != "from stdlib" {
		t.Errorf("DebugCalls = %v", m.DebugCalls)
	}
}
