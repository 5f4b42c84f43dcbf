package illustration

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/webp"
	"github.com/segmentio/ksuid"

	"storyteller/pkg/flight"
)

// ErrNotFound is returned by Load for unknown or malformed image IDs.
var ErrNotFound = errors.New("image not found")

// Store keeps chapter illustrations as WebP files named by ksuid.
type Store struct {
	dir   string
	cache flight.Cache[string, []byte]
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}
	s := &Store{dir: dir}
	s.cache = flight.NewCache(s.read)
	return s, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".webp")
}

func (s *Store) read(id string) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Save encodes img as WebP and writes it under a fresh ID.
func (s *Store) Save(img image.Image) (string, []byte, error) {
	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 90}); err != nil {
		return "", nil, fmt.Errorf("failed to encode webp: %w", err)
	}

	id := ksuid.New().String()
	if err := os.WriteFile(s.path(id), buf.Bytes(), 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write file %s: %w", s.path(id), err)
	}
	s.cache.Set(id, buf.Bytes())
	return id, buf.Bytes(), nil
}

// Load returns the WebP bytes for id.
func (s *Store) Load(id string) ([]byte, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.cache.Get(id)
}

// decode accepts the PNG or JPEG rasters the backends return.
func decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	img, _, err2 := image.Decode(bytes.NewReader(data))
	if err2 != nil {
		return nil, fmt.Errorf("failed to decode image (png: %v, generic: %v)", err, err2)
	}
	return img, nil
}
