package desk

import (
	"checkbook-calc/internal/session"
	"checkbook-calc/internal/store"
)

// SessionResponse is returned by every /sessions endpoint.
type SessionResponse struct {
	ID   string `json:"id"`
	View View   `json:"view"`
	// Recorded lists the calculations completed by a /keys request, in order.
	Recorded []*session.Record `json:"recorded,omitempty"`
}

// KeysRequest is the body of POST /sessions/{id}/keys. Keys are applied
// before Sequence.
type KeysRequest struct {
	Keys     []string `json:"keys"`
	Sequence string   `json:"sequence"`
}

func (r KeysRequest) parse() ([]Key, error) {
	keys, err := ParseKeys(r.Keys)
	if err != nil {
		return nil, err
	}
	seq, err := ParseSequence(r.Sequence)
	if err != nil {
		return nil, err
	}
	return append(keys, seq...), nil
}

// SelectRequest is the body of POST /sessions/{id}/select.
type SelectRequest struct {
	EntryID string `json:"entry_id"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Entries []store.HistoryEntry `json:"entries"`
}

// PurgeRequest is the body of POST /history/purge.
type PurgeRequest struct {
	RetentionDays int `json:"retention_days"`
}

type PurgeResponse struct {
	RetentionDays int `json:"retention_days"`
	Removed       int `json:"removed"`
}
