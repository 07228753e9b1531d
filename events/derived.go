// ABOUTME: Detection of system-derived action events from a contact's recent history
// ABOUTME: Pure rules with once-only or cooldown guards and natural dedupe keys
package events

import (
	"fmt"
	"sort"
	"time"

	"github.com/harperreed/kith/models"
)

// DerivedWindowDays is how far back detection looks.
const DerivedWindowDays = 90

const (
	day = 24 * time.Hour

	fastFirstTouchWindow = 48 * time.Hour
	missedCadenceFactor  = 2
	deferWindow          = 14 * day
	deferThreshold       = 3
	multiChannelWindow   = 30 * day
	multiChannelMinimum  = 3
	impressionWindow     = 7 * day
	impressionThreshold  = 3
)

// DerivedRule describes how often a derived action may be emitted.
// A zero Cooldown means once per contact, ever.
type DerivedRule struct {
	Action   models.ActionID
	Cooldown time.Duration
}

// DerivedRules lists every derived action in evaluation order.
var DerivedRules = []DerivedRule{
	{Action: models.ActionFreshFirstTouch},
	{Action: models.ActionFastFirstTouch},
	{Action: models.ActionMissedCadence, Cooldown: 7 * day},
	{Action: models.ActionDeferRepeats, Cooldown: 7 * day},
	{Action: models.ActionMultiChannelNoReply, Cooldown: 14 * day},
	{Action: models.ActionImpressionsNoAction, Cooldown: 7 * day},
}

// DerivedInput is what detection looks at.
type DerivedInput struct {
	Contact models.Contact
	Events  []models.ActionEvent // last DerivedWindowDays, any order
	// LastEmitted holds the most recent time each derived action was recorded,
	// including occurrences older than the window.
	LastEmitted map[models.ActionID]time.Time
	Now         time.Time
}

// Candidate is a derived event ready to persist.
type Candidate struct {
	ActionID  models.ActionID
	DedupeKey string
	Reason    string
}

// DetectDerived returns the derived events that should be emitted now.
func DetectDerived(in DerivedInput) []Candidate {
	events := append([]models.ActionEvent(nil), in.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	var out []Candidate
	for _, rule := range DerivedRules {
		if !rule.allowed(in) {
			continue
		}
		reason, ok := rule.check(in.Contact, events, in.Now)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			ActionID:  rule.Action,
			DedupeKey: rule.dedupeKey(in.Contact, in.Now),
			Reason:    reason,
		})
	}
	return out
}

// allowed applies the once-only and cooldown guards.
func (r DerivedRule) allowed(in DerivedInput) bool {
	last, seen := in.LastEmitted[r.Action]
	if !seen {
		for _, e := range in.Events {
			if e.ActionID == r.Action && e.Timestamp.After(last) {
				last, seen = e.Timestamp, true
			}
		}
	}
	if !seen {
		return true
	}
	if r.Cooldown == 0 {
		return false
	}
	return in.Now.Sub(last) >= r.Cooldown
}

// dedupeKey is stable within one cooldown bucket so concurrent workers converge.
func (r DerivedRule) dedupeKey(c models.Contact, now time.Time) string {
	key := fmt.Sprintf("%s:%s:%s", c.UserID, c.ID, r.Action)
	if r.Cooldown == 0 {
		return key
	}
	bucket := now.Unix() / int64(r.Cooldown/time.Second)
	return fmt.Sprintf("%s:%d", key, bucket)
}

func (r DerivedRule) check(c models.Contact, events []models.ActionEvent, now time.Time) (string, bool) {
	switch r.Action {
	case models.ActionFreshFirstTouch:
		return freshFirstTouch(c, events)
	case models.ActionFastFirstTouch:
		return fastFirstTouch(c, events)
	case models.ActionMissedCadence:
		return missedCadence(c, events, now)
	case models.ActionDeferRepeats:
		return deferRepeats(events, now)
	case models.ActionMultiChannelNoReply:
		return multiChannelNoReply(events, now)
	case models.ActionImpressionsNoAction:
		return impressionsNoAction(events, now)
	}
	return "", false
}

func firstMeaningful(events []models.ActionEvent) (models.ActionEvent, bool) {
	for _, e := range events {
		if e.Def().Meaningful {
			return e, true
		}
	}
	return models.ActionEvent{}, false
}

func lastMeaningful(events []models.ActionEvent) (models.ActionEvent, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Def().Meaningful {
			return events[i], true
		}
	}
	return models.ActionEvent{}, false
}

// freshFirstTouch fires when the first meaningful action landed while the
// contact was still fresh.
func freshFirstTouch(c models.Contact, events []models.ActionEvent) (string, bool) {
	first, ok := firstMeaningful(events)
	if !ok {
		return "", false
	}
	if c.FirstEngagementAt != nil && c.FirstEngagementAt.Before(first.Timestamp) {
		return "", false
	}
	if models.DaysBetween(c.FirstSeenAt, first.Timestamp) > models.FreshWindowDays {
		return "", false
	}
	return "first touch while fresh", true
}

func fastFirstTouch(c models.Contact, events []models.ActionEvent) (string, bool) {
	first, ok := firstMeaningful(events)
	if !ok {
		return "", false
	}
	if c.FirstEngagementAt != nil && c.FirstEngagementAt.Before(first.Timestamp) {
		return "", false
	}
	if first.Timestamp.Sub(c.FirstSeenAt) > fastFirstTouchWindow {
		return "", false
	}
	return "first touch within 48 hours of discovery", true
}

// missedCadence measures from the last meaningful action in the window. With
// none, it falls back to discovery for never-engaged contacts and the window
// start otherwise.
func missedCadence(c models.Contact, events []models.ActionEvent, now time.Time) (string, bool) {
	cadence := c.Cadence()
	if cadence == 0 {
		return "", false
	}

	var ref time.Time
	if last, ok := lastMeaningful(events); ok {
		ref = last.Timestamp
	} else if c.FirstEngagementAt == nil {
		ref = c.FirstSeenAt
	} else {
		ref = now.AddDate(0, 0, -DerivedWindowDays)
	}

	days := models.DaysBetween(ref, now)
	if days <= missedCadenceFactor*cadence {
		return "", false
	}
	return fmt.Sprintf("%d days since last touch, cadence is %d", days, cadence), true
}

func deferRepeats(events []models.ActionEvent, now time.Time) (string, bool) {
	since := now.Add(-deferWindow)
	n := 0
	for _, e := range events {
		if e.Def().Defer && !e.Timestamp.Before(since) {
			n++
		}
	}
	if n < deferThreshold {
		return "", false
	}
	return fmt.Sprintf("deferred %d times in 14 days", n), true
}

func multiChannelNoReply(events []models.ActionEvent, now time.Time) (string, bool) {
	since := now.Add(-multiChannelWindow)
	channels := map[models.Channel]bool{}
	for _, e := range events {
		if e.Timestamp.Before(since) {
			continue
		}
		def := e.Def()
		if def.Reply {
			return "", false
		}
		if def.Meaningful && e.Channel != "" {
			channels[e.Channel] = true
		}
	}
	if len(channels) < multiChannelMinimum {
		return "", false
	}
	return fmt.Sprintf("%d channels tried without a reply", len(channels)), true
}

func impressionsNoAction(events []models.ActionEvent, now time.Time) (string, bool) {
	since := now.Add(-impressionWindow)
	var firstImpression *time.Time
	n := 0
	for i := range events {
		e := events[i]
		if e.Timestamp.Before(since) || !e.Def().Impression {
			continue
		}
		if firstImpression == nil {
			firstImpression = &events[i].Timestamp
		}
		n++
	}
	if n < impressionThreshold {
		return "", false
	}
	for _, e := range events {
		if e.Def().Meaningful && !e.Timestamp.Before(*firstImpression) {
			return "", false
		}
	}
	return fmt.Sprintf("shown %d times in 7 days without action", n), true
}
