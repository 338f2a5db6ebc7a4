package sync

import (
	"strconv"
	"time"
)

// MaxOffset is the search offset at which the cursor rolls over. The CRM
// refuses offsets of 10000 and above.
const MaxOffset = 9900

// PaginationCursor tracks the position within one entity phase.
type PaginationCursor struct {
	After            int
	LastModifiedDate *time.Time
}

// Window returns the modification window for the next page. A rolled over
// cursor takes precedence over the account watermark.
func (c PaginationCursor) Window(watermark *time.Time, to time.Time) ModificationWindow {
	if c.LastModifiedDate != nil {
		from := *c.LastModifiedDate
		return ModificationWindow{From: &from, To: to}
	}
	if watermark != nil {
		from := *watermark
		return ModificationWindow{From: &from, To: to}
	}
	return ModificationWindow{To: to}
}

// Advance moves the cursor past page and reports whether another page should be fetched.
//
// When the next offset would reach MaxOffset the offset resets to zero and the
// lower bound moves to the updatedAt of the last record on the page. Records
// sharing that timestamp are fetched again on the next page. An empty page at
// the limit ends the phase.
func (c *PaginationCursor) Advance(page SearchPage) bool {
	if page.NextAfter == "" {
		return false
	}
	after, err := strconv.Atoi(page.NextAfter)
	if err != nil || after <= 0 {
		return false
	}
	if after >= MaxOffset {
		last, ok := page.LastUpdatedAt()
		if !ok {
			return false
		}
		c.After = 0
		c.LastModifiedDate = &last
		return true
	}
	c.After = after
	return true
}
