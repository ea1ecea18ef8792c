// Package photo extracts GPS positions from uploaded check-in photos.
package photo

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"

	"careconnect-visits-svc/src/internal/geo"
	"careconnect-visits-svc/src/internal/models"
)

// Extractor reads embedded EXIF metadata from image bytes. It is stateless
// and pure over the buffer.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Coordinates returns the GPS position embedded in the photo. A photo
// without usable GPS tags yields models.ErrMissingLocationData; callers are
// expected to branch on it rather than treat it as exceptional.
func (e *Extractor) Coordinates(data []byte) (geo.Coordinates, error) {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return geo.Coordinates{}, models.ErrMissingLocationData
	}

	lat, lon, err := meta.LatLong()
	if err != nil {
		return geo.Coordinates{}, models.ErrMissingLocationData
	}

	coords := geo.Coordinates{Latitude: lat, Longitude: lon}
	if !coords.Valid() {
		return geo.Coordinates{}, models.ErrMissingLocationData
	}

	return coords, nil
}
