package domain

import "time"

// Exchange is one user/bot turn of a conversation.
type Exchange struct {
	UserText  string            `json:"user"`
	BotText   string            `json:"bot"`
	Timestamp time.Time         `json:"timestamp"`
	Meta      map[string]string `json:"metadata,omitempty"`
}

// History is a bounded FIFO log of the most recent exchanges of one session.
// Appending beyond capacity evicts the oldest entry.
type History struct {
	entries []Exchange
	limit   int
}

// NewHistory creates an empty history bounded to limit entries.
// A non-positive limit falls back to 5.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 5
	}
	return &History{limit: limit}
}

// HistoryFrom builds a bounded history from stored exchanges, oldest first.
// Overflow drops the oldest entries.
func HistoryFrom(entries []Exchange, limit int) *History {
	h := NewHistory(limit)
	for _, e := range entries {
		h.Append(e)
	}
	return h
}

// Append adds an exchange, evicting the oldest entry when full.
func (h *History) Append(e Exchange) {
	h.entries = append(h.entries, e)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Entries returns the exchanges, oldest first.
func (h *History) Entries() []Exchange {
	return h.entries
}

// Recent returns up to n most recent exchanges, oldest first.
func (h *History) Recent(n int) []Exchange {
	if n <= 0 || len(h.entries) == 0 {
		return nil
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	return h.entries[len(h.entries)-n:]
}

// Len returns the number of stored exchanges.
func (h *History) Len() int { return len(h.entries) }

// Limit returns the maximum number of exchanges kept.
func (h *History) Limit() int { return h.limit }
