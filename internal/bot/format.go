package bot

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Roald87/GraceDB/internal/detector"
	"github.com/Roald87/GraceDB/internal/events"
)

// eventTypeNames spells out the classification classes for users.
var eventTypeNames = map[string]string{
	// Both objects heavier than 5 solar masses.
	"BBH": "binary black hole merger",
	// Both objects lighter than 3 solar masses.
	"BNS": "binary neutron star merger",
	// Primary heavier than 5, secondary lighter than 3 solar masses.
	"NSBH": "neutron star black hole merger",
	// At least one object between 3 and 5 solar masses.
	"MassGap": "mass gap",
	// Background noise fluctuation or glitch.
	"Terrestrial": "terrestrial",
}

// formatEventInfo renders the enriched record of one event. Fields that
// were never enriched are simply left out.
func formatEventInfo(ev *events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", strings.ToUpper(ev.ID))
	if !ev.Created.IsZero() {
		fmt.Fprintf(&b, "%s\n", humanize.Time(ev.Created))
	}

	if ev.MostLikely != "" {
		confidence := ev.EventTypes[ev.MostLikely]
		fmt.Fprintf(&b, "\nUnconfirmed %s (%.2f%%) event", eventTypeNames[ev.MostLikely], confidence*100)
		if ev.Distance != nil {
			fmt.Fprintf(&b, " at %.2f ± %.2f billion light years",
				ev.Distance.MeanMly/1000, ev.Distance.StdMly/1000)
		}
		b.WriteString(".")
	}

	if names := displayInstruments(ev); names != "" {
		fmt.Fprintf(&b, "\nMeasured by %s.", names)
	}

	return b.String()
}

// displayInstruments joins the observing detectors, preferring the long
// names and falling back to the raw code where no name is known.
func displayInstruments(ev *events.Event) string {
	var names []string
	for i, code := range ev.InstrumentsShort {
		name := ""
		if i < len(ev.InstrumentsLong) {
			name = ev.InstrumentsLong[i]
		}
		if name == "" {
			name = code
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// formatStats renders the observation run overview sent for /stats.
func formatStats(all []*events.Event) string {
	counts := make(map[string]int)
	for _, ev := range all {
		if ev.MostLikely != "" {
			counts[ev.MostLikely]++
		}
	}

	return fmt.Sprintf(
		"Observational run 3 has detected *%d* events since April 1st 2019.\n\n"+
			"Event types\n"+
			"Binary black hole mergers: %d.\n"+
			"Binary neutron star mergers: %d.\n"+
			"Neutron star black hole mergers: %d.\n"+
			"At least one object between 3 and 5 solar masses: %d.\n"+
			"Likely terrestrial: %d.\n",
		len(all),
		counts["BBH"],
		counts["BNS"],
		counts["NSBH"],
		counts["MassGap"],
		counts["Terrestrial"],
	)
}

// formatDetectorStatus renders the /status overview.
func formatDetectorStatus(statuses []detector.Status) string {
	if len(statuses) == 0 {
		return "Detector status is currently unavailable."
	}

	var b strings.Builder
	b.WriteString("Current detector status:\n")
	for _, s := range statuses {
		fmt.Fprintf(&b, "\n%s: %s (%s)", s.Name, s.State, s.Duration)
	}
	return b.String()
}
