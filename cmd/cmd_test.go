package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSplitExtensions(t *testing.T) {
	got := splitExtensions("crt, pem ,cer,,")
	want := []string{"crt", "pem", "cer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitExtensions = %v, want %v", got, want)
	}
}

func TestSocketTargets(t *testing.T) {
	if m := socketTargets([]string{"/certs"}, nil); m != nil {
		t.Errorf("targets without sockets = %v, want nil", m)
	}

	m := socketTargets([]string{"/a", "/b"}, []string{"/run/haproxy.sock"})
	if len(m) != 2 {
		t.Fatalf("targets = %v", m)
	}
	for _, root := range []string{"/a", "/b"} {
		if socks := m[root]; len(socks) != 1 || socks[0] != "/run/haproxy.sock" {
			t.Errorf("targets[%s] = %v", root, socks)
		}
	}
}

func TestBuildLoggerWithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stapled.log")
	logFile = path
	defer func() { logFile = "" }()

	lg, err := buildLogger()
	if err != nil {
		t.Fatalf("buildLogger: %v", err)
	}
	lg.Info("console and file")
	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "console and file") {
		t.Errorf("log file missing entry, got: %q", data)
	}
}

func TestExecuteRequiresPaths(t *testing.T) {
	err := Execute([]string{"stapled"}, BuildArgs{Version: "test", BuildType: "dev"})
	if err == nil {
		t.Fatal("daemon started without certificate paths")
	}
}
