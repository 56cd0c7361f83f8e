package events

import (
	"strings"
	"time"

	"github.com/Roald87/GraceDB/internal/skymap"
)

// createdLayout is the timestamp format of the GraceDB "created" field,
// e.g. "2019-05-21 07:43:59 UTC".
const createdLayout = "2006-01-02 15:04:05 MST"

// vetoLabel marks an event a human reviewer judged not astrophysical. Such
// events are never cached.
const vetoLabel = "ADVNO"

// instrumentNames maps instrument codes to readable detector names. Unknown
// codes map to an empty string.
var instrumentNames = map[string]string{
	"H1": "LIGO Hanford",
	"L1": "LIGO Livingston",
	"V1": "Virgo",
	"K1": "KAGRA",
	"G1": "GEO600",
}

// Event is one enriched superevent record. Records are built in full and
// swapped into the store wholesale; they are never mutated after insertion,
// so readers always see a consistent record.
type Event struct {
	ID      string
	Created time.Time
	Labels  []string

	// Classification, populated once the alert document resolves. The
	// probabilities are independent and need not sum to 1.
	EventTypes map[string]float64
	MostLikely string

	// Distance stays nil until sky-map enrichment succeeds.
	Distance *skymap.Distance

	InstrumentsShort []string
	InstrumentsLong  []string
}

// NormalizeID canonicalizes a superevent id: first character upper case,
// remainder lower, e.g. "s190521R" becomes "S190521r".
func NormalizeID(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + strings.ToLower(id[1:])
}

// longInstrumentNames maps codes like "H1" to detector names; unknown codes
// yield an empty string so both slices stay index-aligned.
func longInstrumentNames(codes []string) []string {
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = instrumentNames[code]
	}
	return names
}
