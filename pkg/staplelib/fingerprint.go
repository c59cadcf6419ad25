package staplelib

import (
	"time"

	"github.com/spf13/afero"
)

// Fingerprint is a cheap change-detection signature for a file:
// modification time plus size. It decides whether a certificate file
// needs re-parsing, and guards stages against acting on stale tasks.
type Fingerprint struct {
	ModTime time.Time
	Size    int64
}

// FileFingerprint stats path on fs and returns its fingerprint.
func FileFingerprint(fs afero.Fs, path string) (Fingerprint, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{ModTime: fi.ModTime(), Size: fi.Size()}, nil
}

// Equal reports whether two fingerprints describe the same file state.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.Size == o.Size && f.ModTime.Equal(o.ModTime)
}

// IsZero reports whether the fingerprint was never taken.
func (f Fingerprint) IsZero() bool {
	return f.Size == 0 && f.ModTime.IsZero()
}
