// Package catalog holds the fixed music catalog sold outside the product table.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed music.yaml
var defaultMusic []byte

type Album struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	PriceCents  int    `yaml:"price_cents"`
	ObjectKey   string `yaml:"object_key"`
}

type Track struct {
	ID        int    `yaml:"id"`
	Title     string `yaml:"title"`
	ObjectKey string `yaml:"object_key"`
}

type Music struct {
	Album           Album   `yaml:"album"`
	TrackPriceCents int     `yaml:"track_price_cents"`
	Tracks          []Track `yaml:"tracks"`

	byID map[int]Track
}

var ErrUnknownTrack = errors.New("unknown track")

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Music, error) {
	raw := defaultMusic
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read music catalog: %w", err)
		}
		raw = b
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Music, error) {
	var m Music
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode music catalog: %w", err)
	}
	if err := m.index(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Music) index() error {
	if m.Album.Slug == "" || m.Album.Name == "" {
		return errors.New("music catalog: album slug and name required")
	}
	if m.Album.PriceCents <= 0 || m.TrackPriceCents <= 0 {
		return errors.New("music catalog: prices must be positive")
	}
	m.byID = make(map[int]Track, len(m.Tracks))
	for _, t := range m.Tracks {
		if t.ID <= 0 || t.Title == "" {
			return fmt.Errorf("music catalog: invalid track %+v", t)
		}
		if _, dup := m.byID[t.ID]; dup {
			return fmt.Errorf("music catalog: duplicate track id %d", t.ID)
		}
		m.byID[t.ID] = t
	}
	return nil
}

func (m *Music) Track(id int) (Track, error) {
	t, ok := m.byID[id]
	if !ok {
		return Track{}, fmt.Errorf("track %d: %w", id, ErrUnknownTrack)
	}
	return t, nil
}
