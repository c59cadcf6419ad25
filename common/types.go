package common

import "time"

// StapleInfo describes one tracked certificate as reported by the
// staple.list control method.
type StapleInfo struct {
	Path        string    `json:"path"`
	Status      string    `json:"status"`
	OCSPURLs    []string  `json:"ocsp_urls,omitempty"`
	ThisUpdate  time.Time `json:"this_update,omitempty"`
	NextUpdate  time.Time `json:"next_update,omitempty"`
	NextAction  time.Time `json:"next_action,omitempty"`
	Failures    int       `json:"failures,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	SocketPaths []string  `json:"socket_paths,omitempty"`
}

// ListResult is the response for staple.list.
type ListResult struct {
	Staples []StapleInfo `json:"staples"`
}

// RenewParams is the input for staple.renew. An empty Path forces a
// renewal of every tracked certificate.
type RenewParams struct {
	Path string `json:"path,omitempty"`
}

// RenewResult is the response for staple.renew.
type RenewResult struct {
	Scheduled int `json:"scheduled"`
}

// HistoryParams is the input for staple.history.
type HistoryParams struct {
	Path  string `json:"path,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// HistoryEntry is one journal row.
type HistoryEntry struct {
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	ThisUpdate time.Time `json:"this_update,omitempty"`
	NextUpdate time.Time `json:"next_update,omitempty"`
	At         time.Time `json:"at"`
}

// HistoryResult is the response for staple.history.
type HistoryResult struct {
	Entries []HistoryEntry `json:"entries"`
}

// VersionResult is the response for daemon.version.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}
