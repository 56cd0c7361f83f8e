// Package skymap extracts the luminosity distance estimate from a sky-map
// FITS file attached to a superevent.
package skymap

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
	"github.com/rs/zerolog"

	"github.com/Roald87/GraceDB/internal/units"
)

// ErrNoDistance signals that the sky-map header carries no distance fields.
// Callers must treat this as "distance unknown", not as a failed event
// update.
var ErrNoDistance = errors.New("sky-map header carries no distance estimate")

// Distance is a luminosity distance estimate in million light years.
type Distance struct {
	MeanMly float64
	StdMly  float64
}

// Fetcher fetches the raw bytes behind a sky-map URL. *gracedb.Client
// satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Enricher reads distance estimates out of remote sky-map files.
type Enricher struct {
	fetcher Fetcher
	log     zerolog.Logger
}

// NewEnricher creates an enricher fetching sky-maps through fetcher.
func NewEnricher(fetcher Fetcher, log zerolog.Logger) *Enricher {
	return &Enricher{
		fetcher: fetcher,
		log:     log.With().Str("component", "skymap").Logger(),
	}
}

// Enrich fetches the sky-map at url and returns the DISTMEAN/DISTSTD header
// fields of its first extension, converted from megaparsec to million light
// years.
func (e *Enricher) Enrich(ctx context.Context, url string) (Distance, error) {
	data, err := e.fetcher.Get(ctx, url)
	if err != nil {
		return Distance{}, fmt.Errorf("fetching sky-map %s: %w", url, err)
	}
	return ParseDistance(data)
}

// ParseDistance reads the distance estimate from raw sky-map bytes. Gzipped
// files are decompressed transparently, matching how GraceDB serves them.
func ParseDistance(data []byte) (Distance, error) {
	data, err := gunzip(data)
	if err != nil {
		return Distance{}, fmt.Errorf("decompressing sky-map: %w", err)
	}

	f, err := fitsio.Open(bytes.NewReader(data))
	if err != nil {
		return Distance{}, fmt.Errorf("opening sky-map fits: %w", err)
	}
	defer f.Close()

	if len(f.HDUs()) < 2 {
		return Distance{}, ErrNoDistance
	}

	hdr := f.HDU(1).Header()
	mean, ok := headerFloat(hdr, "DISTMEAN")
	if !ok {
		return Distance{}, ErrNoDistance
	}
	std, ok := headerFloat(hdr, "DISTSTD")
	if !ok {
		return Distance{}, ErrNoDistance
	}

	return Distance{
		MeanMly: units.MpcToMly(mean),
		StdMly:  units.MpcToMly(std),
	}, nil
}

func headerFloat(hdr *fitsio.Header, key string) (float64, bool) {
	card := hdr.Get(key)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// gunzip decompresses data when it carries a gzip magic number and returns
// it untouched otherwise.
func gunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	return io.ReadAll(zr)
}
