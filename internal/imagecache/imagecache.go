package imagecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

const (
	imageExtension = ".png"
	// trimBorder is the whitespace kept around the trimmed image, in pixels
	// on every side.
	trimBorder = 5
)

// prefixPriority are the sky-map image filename prefixes in preference
// order. Once a prefix yields a match, lower-priority prefixes are not
// considered.
var prefixPriority = []string{"LALInference", "skymap", "bayestar"}

// ErrNoImage signals that no qualifying sky-map image is attached to the
// event.
var ErrNoImage = errors.New("no sky-map image attached to event")

// Remote lists event files and fetches their content. *gracedb.Client
// satisfies it.
type Remote interface {
	Files(ctx context.Context, eventID string) (map[string]string, error)
	Get(ctx context.Context, url string) ([]byte, error)
}

// Cache materializes sky-map images on local disk, fetching and trimming
// each distinct remote file exactly once.
type Cache struct {
	root   string
	remote Remote
	log    zerolog.Logger
}

// New creates an image cache rooted at root, creating the directory if
// needed.
func New(root string, remote Remote, log zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating image cache directory: %w", err)
	}
	return &Cache{
		root:   root,
		remote: remote,
		log:    log.With().Str("component", "imagecache").Logger(),
	}, nil
}

// Picture returns the local path of the event's sky-map image. A previously
// cached file is returned without any network access; otherwise the remote
// image is fetched, trimmed and persisted first.
func (c *Cache) Picture(ctx context.Context, eventID string) (string, error) {
	files, err := c.remote.Files(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("listing files of %s: %w", eventID, err)
	}

	fname, url, err := selectImage(files)
	if err != nil {
		return "", fmt.Errorf("picture of %s: %w", eventID, err)
	}

	path := filepath.Join(c.root, eventID, NormalizeFilename(fname))
	if _, err := os.Stat(path); err == nil {
		c.log.Debug().Str("path", path).Msg("serving cached image")
		return path, nil
	}

	c.log.Info().Str("event_id", eventID).Str("url", url).Msg("fetching event image")
	data, err := c.remote.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetching image of %s: %w", eventID, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image of %s: %w", eventID, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}
	if err := imaging.Save(trimBackground(img, trimBorder), path); err != nil {
		return "", fmt.Errorf("saving image of %s: %w", eventID, err)
	}

	return path, nil
}

// selectImage picks the preferred sky-map image from an event's file
// listing. Within the first prefix that matches anything, the
// lexicographically greatest filename wins; the remote names versioned
// uploads so that this is the most recent one.
func selectImage(files map[string]string) (fname, url string, err error) {
	for _, prefix := range prefixPriority {
		var candidates []string
		for name := range files {
			if strings.HasPrefix(name, prefix) &&
				strings.Contains(name, imageExtension) &&
				!strings.Contains(name, "volume") {
				candidates = append(candidates, name)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		sort.Strings(candidates)
		newest := candidates[len(candidates)-1]
		return newest, files[newest], nil
	}

	return "", "", ErrNoImage
}

// NormalizeFilename turns a remote filename with a comma-suffixed
// disambiguator into a legal local one: "name.png,0" becomes "name0.png".
func NormalizeFilename(fname string) string {
	name, index, found := strings.Cut(fname, ",")
	if !found {
		return fname
	}

	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return name + index
	}
	return parts[0] + index + "." + parts[len(parts)-1]
}

// trimBackground crops the image to the tight bounding box of its
// non-white pixels, re-expanded by border pixels and clipped to the image
// bounds. Fully white images are returned untouched.
func trimBackground(img image.Image, border int) image.Image {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r == 0xffff && g == 0xffff && b == 0xffff {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX {
		return img
	}

	box := image.Rect(minX-border, minY-border, maxX+border+1, maxY+border+1)
	return imaging.Crop(img, box.Intersect(bounds))
}
