package voevent

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Classes are the source classification classes carried by an alert
// document, in the order ties are broken when picking the most likely one.
var Classes = []string{"BNS", "NSBH", "BBH", "MassGap", "Terrestrial"}

// ErrSkyMapMissing signals that the alert document carries no sky-map
// reference. Distance enrichment is impossible then, but the rest of the
// document is still usable.
var ErrSkyMapMissing = errors.New("no sky-map reference in VOEvent")

// Document is one parsed alert document. All named parameters of the
// document are flattened into a single lookup table regardless of grouping.
type Document struct {
	params map[string]string
	log    zerolog.Logger
}

// Parse parses raw VOEvent XML into a Document.
func Parse(data []byte, log zerolog.Logger) (*Document, error) {
	params := make(map[string]string)

	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing VOEvent xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Param" {
			continue
		}

		var name, value string
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "name":
				name = attr.Value
			case "value":
				value = attr.Value
			}
		}
		if name != "" {
			params[name] = value
		}
	}

	if len(params) == 0 {
		return nil, errors.New("no parameters found in VOEvent xml")
	}

	return &Document{params: params, log: log}, nil
}

// ID returns the event id as carried by the document. The id is not
// case-normalized here; that is the event store's job.
func (d *Document) ID() string {
	return d.params["GraceID"]
}

// Probabilities returns the probability of each known classification class.
// Classes absent from the document default to 0.0 with a warning; this never
// fails.
func (d *Document) Probabilities() map[string]float64 {
	probs := make(map[string]float64, len(Classes))
	for _, class := range Classes {
		probs[class] = 0.0

		raw, ok := d.params[class]
		if !ok {
			d.log.Warn().Str("class", class).Msg("couldn't find classification in VOEvent xml")
			continue
		}
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			d.log.Warn().Str("class", class).Str("value", raw).Msg("unparseable classification in VOEvent xml")
			continue
		}
		probs[class] = p
	}

	return probs
}

// MostLikely returns the class with the highest probability. Ties go to the
// class listed first in Classes.
func MostLikely(probs map[string]float64) string {
	var best string
	bestP := -1.0
	for _, class := range Classes {
		if p := probs[class]; p > bestP {
			best = class
			bestP = p
		}
	}
	return best
}

// Instruments returns the observing instrument codes, e.g. ["H1", "L1"].
// An absent Instruments parameter yields an empty slice.
func (d *Document) Instruments() []string {
	raw, ok := d.params["Instruments"]
	if !ok || raw == "" {
		return []string{}
	}

	codes := strings.Split(raw, ",")
	for i, code := range codes {
		codes[i] = strings.TrimSpace(code)
	}
	return codes
}

// SkyMapURL returns the URL of the sky-map resource attached to the
// document, or ErrSkyMapMissing if there is none.
func (d *Document) SkyMapURL() (string, error) {
	url, ok := d.params["skymap_fits"]
	if !ok || url == "" {
		return "", ErrSkyMapMissing
	}
	return url, nil
}
