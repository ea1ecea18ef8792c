package photo

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careconnect-visits-svc/src/internal/models"
)

func TestExtractor_Coordinates_NotAnImage(t *testing.T) {
	e := NewExtractor()

	_, err := e.Coordinates([]byte("definitely not a jpeg"))
	assert.ErrorIs(t, err, models.ErrMissingLocationData)
}

func TestExtractor_Coordinates_EmptyBuffer(t *testing.T) {
	e := NewExtractor()

	_, err := e.Coordinates(nil)
	assert.ErrorIs(t, err, models.ErrMissingLocationData)
}

func TestExtractor_Coordinates_JPEGWithoutExif(t *testing.T) {
	// A freshly encoded JPEG carries no EXIF segment at all.
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	e := NewExtractor()
	_, err := e.Coordinates(buf.Bytes())
	assert.ErrorIs(t, err, models.ErrMissingLocationData)
}
