package server

import (
	"context"
	"sort"

	"github.com/creachadair/jrpc2"

	"github.com/greenhost/stapled/common"
	"github.com/greenhost/stapled/internal/scheduler"
	"github.com/greenhost/stapled/pkg/staplelib"
)

// Control-surface error codes.
const (
	codeStapleNotFound  = jrpc2.Code(-32001)
	codeNotRenewable    = jrpc2.Code(-32002)
	codeJournalDisabled = jrpc2.Code(-32003)
)

func (s *Server) stapleList(_ context.Context) (*common.ListResult, error) {
	records := s.mgr.Records()
	infos := make([]common.StapleInfo, 0, len(records))
	for _, rec := range records {
		st := rec.Snapshot()
		infos = append(infos, common.StapleInfo{
			Path:        st.Path,
			Status:      st.State,
			OCSPURLs:    st.OCSPURLs,
			ThisUpdate:  st.ThisUpdate,
			NextUpdate:  st.NextUpdate,
			NextAction:  st.NextAction,
			Failures:    st.Failures,
			LastError:   st.LastError,
			SocketPaths: st.Sockets,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return &common.ListResult{Staples: infos}, nil
}

func (s *Server) stapleRenew(_ context.Context, p *common.RenewParams) (*common.RenewResult, error) {
	if p.Path != "" {
		rec, ok := s.mgr.Get(p.Path)
		if !ok {
			return nil, &jrpc2.Error{Code: codeStapleNotFound, Message: "no such certificate: " + p.Path}
		}
		if !s.forceRenew(rec) {
			return nil, &jrpc2.Error{Code: codeNotRenewable, Message: "certificate is not renewable until the file changes"}
		}
		return &common.RenewResult{Scheduled: 1}, nil
	}

	scheduled := 0
	for _, rec := range s.mgr.Records() {
		if s.forceRenew(rec) {
			scheduled++
		}
	}
	return &common.RenewResult{Scheduled: scheduled}, nil
}

// forceRenew schedules an immediate renewal for a record that has a
// parsed chain and is not parked.
func (s *Server) forceRenew(rec *staplelib.Record) bool {
	if rec.Chain() == nil || rec.Terminal() {
		return false
	}
	err := s.sched.Schedule(scheduler.Task{
		Queue:      common.QueueRenew,
		Path:       rec.Path(),
		Generation: rec.Generation(),
	})
	if err != nil {
		s.log.Error("scheduling forced renewal of %s: %v", rec.Path(), err)
		return false
	}
	s.log.Info("forced renewal of %s", rec.Path())
	return true
}

func (s *Server) stapleHistory(_ context.Context, p *common.HistoryParams) (*common.HistoryResult, error) {
	if s.history == nil {
		return nil, &jrpc2.Error{Code: codeJournalDisabled, Message: "journal is not enabled"}
	}
	entries, err := s.history.Recent(p.Path, p.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]common.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, common.HistoryEntry{
			Path:       e.Path,
			Outcome:    e.Outcome,
			ErrorKind:  e.ErrorKind,
			Message:    e.Message,
			ThisUpdate: e.ThisUpdate,
			NextUpdate: e.NextUpdate,
			At:         e.At,
		})
	}
	return &common.HistoryResult{Entries: out}, nil
}

func (s *Server) daemonVersion(_ context.Context) (*common.VersionResult, error) {
	v := s.version
	return &v, nil
}
