// ABOUTME: Levenshtein-based classifier for how much a draft was edited
// ABOUTME: Labels a sent message untouched, light or heavy relative to its draft
package scoring

import (
	"strings"

	"github.com/harperreed/kith/models"
)

const (
	untouchedMaxPercent = 2.0
	lightMaxPercent     = 20.0
)

// EditClassification is the result of comparing a draft with what was sent.
type EditClassification struct {
	Distance       int                       `json:"distance"`
	PercentChanged float64                   `json:"percent_changed"`
	Level          models.CustomizationLevel `json:"level"`
}

// ClassifyEdit compares the suggested draft with the sent text. Callers pass
// CustomizationCustom themselves when there was no draft.
func ClassifyEdit(original, modified string) EditClassification {
	a := []rune(normalizeText(original))
	b := []rune(normalizeText(modified))

	distance := levenshtein(a, b)

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}

	var percent float64
	if longest > 0 {
		percent = float64(distance) / float64(longest) * 100
	}

	level := models.CustomizationHeavy
	switch {
	case percent <= untouchedMaxPercent:
		level = models.CustomizationUntouched
	case percent <= lightMaxPercent:
		level = models.CustomizationLight
	}

	return EditClassification{
		Distance:       distance,
		PercentChanged: percent,
		Level:          level,
	}
}

// normalizeText lowercases, trims and collapses runs of whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	m, n := len(a), len(b)
	d := make([][]int, m+1)
	for i := range d {
		d[i] = make([]int, n+1)
		d[i][0] = i
	}
	for j := 0; j <= n; j++ {
		d[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d[i][j] = min(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)
		}
	}

	return d[m][n]
}
