package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Default(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sonoran-echoes", m.Album.Slug)
	assert.Equal(t, 2500, m.Album.PriceCents)
	assert.Equal(t, 99, m.TrackPriceCents)
	assert.Len(t, m.Tracks, 18)

	tr, err := m.Track(7)
	require.NoError(t, err)
	assert.Equal(t, "Starlight Meditation", tr.Title)

	_, err = m.Track(19)
	assert.ErrorIs(t, err, ErrUnknownTrack)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "music.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
album: {slug: demo, name: Demo Album, price_cents: 1000}
track_price_cents: 150
tracks:
  - {id: 1, title: One}
`), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 150, m.TrackPriceCents)
	tr, err := m.Track(1)
	require.NoError(t, err)
	assert.Equal(t, "One", tr.Title)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing album", "track_price_cents: 99"},
		{"zero price", "album: {slug: a, name: A, price_cents: 0}\ntrack_price_cents: 99"},
		{"duplicate track", "album: {slug: a, name: A, price_cents: 1}\ntrack_price_cents: 1\ntracks: [{id: 1, title: x}, {id: 1, title: y}]"},
		{"bad yaml", "album: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
