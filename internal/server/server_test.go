package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/journal"
	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/pkg/logger"
	"github.com/greenhost/stapled/pkg/staplecli"
	"github.com/greenhost/stapled/pkg/staplelib"
)

type serverFixture struct {
	mgr   *staplelib.Manager
	sched *scheduler.Scheduler
	cli   *staplecli.Client
}

func startServer(t *testing.T, history Historian) *serverFixture {
	t.Helper()
	t.Setenv(common.SocketPathEnv, filepath.Join(t.TempDir(), "stapled.sock"))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mgr := staplelib.NewManager()
	sched := scheduler.New(ctx, []string{common.QueueRenew})
	srv := New(logger.NewNopLogger(), mgr, sched, history, common.VersionResult{Version: "1.2.3"})
	go srv.Start(ctx)

	var cli *staplecli.Client
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for {
		cli, err = staplecli.NewClient()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("connecting to control socket: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(func() { cli.Close() })

	return &serverFixture{mgr: mgr, sched: sched, cli: cli}
}

// stapledRecord returns a record in the stapled state.
func stapledRecord(path string) *staplelib.Record {
	rec := staplelib.NewRecord(path, "/certs", staplelib.Fingerprint{Size: 1}, []string{"/run/haproxy.sock"})
	rec.SetChain(&staplelib.Chain{OCSPURLs: []string{"http://ocsp.example.org"}})
	rec.SetStaple(&staplelib.Staple{
		Status:     ocsp.Good,
		ThisUpdate: time.Now().Add(-time.Hour),
		NextUpdate: time.Now().Add(24 * time.Hour),
	})
	return rec
}

func TestStapleList(t *testing.T) {
	f := startServer(t, nil)
	f.mgr.Add(stapledRecord("/certs/b.pem"))
	f.mgr.Add(stapledRecord("/certs/a.pem"))

	res, err := f.cli.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Staples) != 2 {
		t.Fatalf("got %d staples", len(res.Staples))
	}
	// Sorted by path.
	if res.Staples[0].Path != "/certs/a.pem" || res.Staples[1].Path != "/certs/b.pem" {
		t.Errorf("order = %s, %s", res.Staples[0].Path, res.Staples[1].Path)
	}
	if res.Staples[0].Status != "stapled" {
		t.Errorf("status = %q", res.Staples[0].Status)
	}
	if len(res.Staples[0].SocketPaths) != 1 {
		t.Errorf("sockets = %v", res.Staples[0].SocketPaths)
	}
}

func TestStapleRenewSingle(t *testing.T) {
	f := startServer(t, nil)
	rec := stapledRecord("/certs/a.pem")
	f.mgr.Add(rec)

	res, err := f.cli.Renew(context.Background(), "/certs/a.pem")
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if res.Scheduled != 1 {
		t.Errorf("Scheduled = %d", res.Scheduled)
	}
	task, ok := f.sched.NextReady(common.QueueRenew, time.Second)
	if !ok || task.Path != "/certs/a.pem" {
		t.Errorf("renew task = %+v %v", task, ok)
	}
}

func TestStapleRenewAll(t *testing.T) {
	f := startServer(t, nil)
	f.mgr.Add(stapledRecord("/certs/a.pem"))
	f.mgr.Add(stapledRecord("/certs/b.pem"))
	// Unparsed record is skipped.
	f.mgr.Add(staplelib.NewRecord("/certs/new.pem", "/certs", staplelib.Fingerprint{}, nil))

	res, err := f.cli.Renew(context.Background(), "")
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if res.Scheduled != 2 {
		t.Errorf("Scheduled = %d, want 2", res.Scheduled)
	}
}

func TestStapleRenewErrors(t *testing.T) {
	f := startServer(t, nil)
	if _, err := f.cli.Renew(context.Background(), "/certs/unknown.pem"); err == nil {
		t.Error("renew of unknown path succeeded")
	}

	parked := stapledRecord("/certs/parked.pem")
	parked.RecordFailure(staplelib.KindTerminal, staplelib.ErrNoOCSPURLs)
	f.mgr.Add(parked)
	if _, err := f.cli.Renew(context.Background(), "/certs/parked.pem"); err == nil {
		t.Error("renew of parked record succeeded")
	}
}

func TestStapleHistory(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	j.Record(journal.Entry{Path: "/certs/a.pem", Outcome: journal.OutcomeSuccess})

	f := startServer(t, j)
	res, err := f.cli.History(context.Background(), "/certs/a.pem", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Outcome != journal.OutcomeSuccess {
		t.Errorf("entries = %+v", res.Entries)
	}
}

func TestStapleHistoryDisabled(t *testing.T) {
	f := startServer(t, nil)
	if _, err := f.cli.History(context.Background(), "", 0); err == nil {
		t.Error("history without a journal succeeded")
	}
}

func TestDaemonVersion(t *testing.T) {
	f := startServer(t, nil)
	res, err := f.cli.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if res.Version != "1.2.3" {
		t.Errorf("Version = %q", res.Version)
	}
}
