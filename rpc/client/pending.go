package client

import (
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/taskfire/taskfire-go/rpc/common"
	"sort"
	"time"
)

// pendingRequest is a request that was issued and awaits its reply
type pendingRequest struct {
	id       uint64
	request  common.Request // the tagged request, kept for diagnostics
	issuedAt time.Time
	outcome  *Outcome
	stop     func() bool // detaches the context cancellation, may be nil
}

// pendingTable maps request ids to pending requests. Entries are only ever
// removed with take, so a request is settled at most once.
type pendingTable struct {
	entries *xsync.MapOf[uint64, *pendingRequest]
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		entries: xsync.NewMapOf[uint64, *pendingRequest](),
	}
}

// add registers a pending request (must happen before the request is written)
func (t *pendingTable) add(p *pendingRequest) {
	t.entries.Store(p.id, p)
}

// take removes and returns the entry for the id
func (t *pendingTable) take(id uint64) (*pendingRequest, bool) {
	return t.entries.LoadAndDelete(id)
}

// len returns the number of pending requests
func (t *pendingTable) len() int {
	return t.entries.Size()
}

// drain removes every entry and returns them ordered by id
func (t *pendingTable) drain() []*pendingRequest {
	var ids []uint64
	t.entries.Range(func(id uint64, _ *pendingRequest) bool {
		ids = append(ids, id)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	drained := make([]*pendingRequest, 0, len(ids))
	for _, id := range ids {
		if p, ok := t.entries.LoadAndDelete(id); ok {
			drained = append(drained, p)
		}
	}
	return drained
}
