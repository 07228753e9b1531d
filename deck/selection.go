// ABOUTME: Candidate ranking and quota-aware selection for the daily deck
// ABOUTME: Guarantees fresh contacts a slot, picks a channel and explains each pick
package deck

import (
	"fmt"
	"sort"

	"github.com/harperreed/kith/models"
)

// MaxFreshCards caps the guaranteed fresh slots.
const MaxFreshCards = 2

const (
	veryOverdueDays     = 60
	moderateOverdueDays = 30
)

// Candidate is a scored contact eligible for the deck.
type Candidate struct {
	Contact models.Contact
	Score   float64
	Fresh   bool
	RHS     models.RHSScore
}

// sortCandidates orders by score descending, then name, then id.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Contact.Name != b.Contact.Name {
			return a.Contact.Name < b.Contact.Name
		}
		return a.Contact.ID < b.Contact.ID
	})
}

// Select picks up to slots candidates. Fresh contacts get between one and
// MaxFreshCards guaranteed slots, less those already on the deck; regular
// contacts fill the rest by score, and leftover fresh contacts backfill when
// regulars run out.
func Select(candidates []Candidate, slots, freshAlready int) []Candidate {
	if slots <= 0 {
		return nil
	}

	var fresh, regular []Candidate
	for _, c := range candidates {
		if c.Fresh {
			fresh = append(fresh, c)
		} else {
			regular = append(regular, c)
		}
	}
	sortCandidates(fresh)
	sortCandidates(regular)

	freshQuota := 0
	if len(fresh) > 0 {
		freshQuota = min(max(1, len(fresh)), MaxFreshCards) - freshAlready
		freshQuota = max(0, min(freshQuota, slots))
	}

	picked := make([]Candidate, 0, slots)
	picked = append(picked, fresh[:freshQuota]...)
	for _, c := range regular {
		if len(picked) == slots {
			break
		}
		picked = append(picked, c)
	}
	for _, c := range fresh[freshQuota:] {
		if len(picked) == slots {
			break
		}
		picked = append(picked, c)
	}
	return picked
}

// SuggestChannel prefers a text, then email, then a call.
func SuggestChannel(c *models.Contact) models.Channel {
	switch {
	case c.PrimaryPhone() != "":
		return models.ChannelSMS
	case c.PrimaryEmail() != "":
		return models.ChannelEmail
	}
	return models.ChannelCall
}

// Reason explains why a candidate is on the deck, from the strongest signal.
func Reason(c Candidate) string {
	rhs := c.RHS
	switch {
	case c.Fresh:
		return fmt.Sprintf("New connection: you met %s recently, say hello while it's fresh", c.Contact.Name)
	case rhs.NeverTouched():
		return "You haven't reached out yet"
	case *rhs.DaysSinceTouch >= veryOverdueDays ||
		(rhs.IsOverdueByCadence && rhs.DaysOverdue >= c.Contact.Cadence()):
		return fmt.Sprintf("It's been %d days, long overdue for a catch-up", *rhs.DaysSinceTouch)
	case *rhs.DaysSinceTouch >= moderateOverdueDays || rhs.IsOverdueByCadence:
		return fmt.Sprintf("A little overdue: %d days since you last connected", *rhs.DaysSinceTouch)
	}
	return "Good moment to check in"
}
