package staplelib

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestFileFingerprint(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/certs/site.pem", []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	fp, err := FileFingerprint(fs, "/certs/site.pem")
	if err != nil {
		t.Fatalf("FileFingerprint: %v", err)
	}
	if fp.Size != 10 {
		t.Errorf("Size = %d", fp.Size)
	}
	if fp.IsZero() {
		t.Error("fingerprint of existing file is zero")
	}

	if _, err := FileFingerprint(fs, "/certs/absent.pem"); err == nil {
		t.Error("missing file did not error")
	}
}

func TestFingerprintEqual(t *testing.T) {
	now := time.Now()
	a := Fingerprint{ModTime: now, Size: 10}

	if !a.Equal(Fingerprint{ModTime: now, Size: 10}) {
		t.Error("identical fingerprints not equal")
	}
	if a.Equal(Fingerprint{ModTime: now, Size: 11}) {
		t.Error("size change not detected")
	}
	if a.Equal(Fingerprint{ModTime: now.Add(time.Second), Size: 10}) {
		t.Error("mtime change not detected")
	}
}

func TestFingerprintIsZero(t *testing.T) {
	if !(Fingerprint{}).IsZero() {
		t.Error("zero value not IsZero")
	}
	if (Fingerprint{Size: 1}).IsZero() {
		t.Error("non-empty fingerprint IsZero")
	}
}
