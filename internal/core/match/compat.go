package match

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/schemamesh/ontolink/internal/core/model"
)

// relEpsilon is the relative tolerance for numeric comparison.
const relEpsilon = 1e-9

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// Compatible reports whether two property values should be treated as the
// same under the given kind. Identifiers compare exactly, free text after
// normalization, numbers within relative tolerance, dates at day granularity.
func Compatible(kind model.PropertyKind, a, b string) bool {
	switch kind {
	case model.KindReference:
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	case model.KindNumber:
		return numbersCompatible(a, b)
	case model.KindDate:
		return datesCompatible(a, b)
	default:
		return normalize(a) == normalize(b) && normalize(a) != ""
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func numbersCompatible(a, b string) bool {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA != nil || errB != nil {
		return false
	}
	if fa == fb {
		return true
	}
	scale := math.Max(math.Abs(fa), math.Abs(fb))
	return math.Abs(fa-fb) <= relEpsilon*scale
}

func datesCompatible(a, b string) bool {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	if !okA || !okB {
		return false
	}
	ya, ma, da := ta.UTC().Date()
	yb, mb, db := tb.UTC().Date()
	return ya == yb && ma == mb && da == db
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
