package intent

import (
	"regexp"
	"strconv"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/domain/criteria"
	"github.com/timtro-cloud/trobot/internal/vntext"
)

// Context is what earlier exchanges contribute to the current turn: a
// province or price range the user already stated, and the last listing the
// bot showed.
type Context struct {
	Province   string
	Price      *criteria.Bound
	LastPostID int64
}

var postIDPattern = regexp.MustCompile(`/post/(\d+)/|ID:\s*(\d+)`)

// ExtractContext walks the history newest-first and keeps the most recent
// value of each slot.
func ExtractContext(h *domain.History) Context {
	var c Context
	if h == nil {
		return c
	}

	entries := h.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		ex := entries[i]

		if c.Province == "" {
			if p := vntext.FindProvince(ex.UserText); p != "" {
				c.Province = p
			}
		}
		if c.Price == nil {
			if crit := criteria.Parse(ex.UserText); crit.Price != nil {
				c.Price = crit.Price
			}
		}
		if c.LastPostID == 0 {
			if m := postIDPattern.FindStringSubmatch(ex.BotText); m != nil {
				raw := m[1]
				if raw == "" {
					raw = m[2]
				}
				if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
					c.LastPostID = id
				}
			}
		}

		if c.Province != "" && c.Price != nil && c.LastPostID != 0 {
			break
		}
	}
	return c
}
