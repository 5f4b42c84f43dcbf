package illustration

import (
	"context"
	"fmt"
	"image"

	"storyteller/pkg/errs"
)

// Image is a decoded chapter illustration.
type Image struct {
	ID        string      `json:"id"`
	Directive string      `json:"directive"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Raster    image.Image `json:"-"`
	WebP      []byte      `json:"-"`
}

// URL is the path the server serves this image from.
func (i *Image) URL() string {
	if i == nil {
		return ""
	}
	return "/images/" + i.ID
}

// Service generates, decodes and stores illustrations.
type Service struct {
	queue   *Queue
	store   *Store
	enabled bool
}

// NewService wires a started queue to a store. The caller owns Stop.
func NewService(backend Backend, store *Store) *Service {
	_, disabled := backend.(Disabled)
	q := NewQueue(backend, 0)
	q.Start()
	return &Service{queue: q, store: store, enabled: !disabled}
}

func (s *Service) Enabled() bool { return s != nil && s.enabled }

func (s *Service) Stop() {
	if s != nil {
		s.queue.Stop()
	}
}

// Illustrate blocks until the backend answers or ctx ends.
func (s *Service) Illustrate(ctx context.Context, directive string) (*Image, error) {
	if !s.Enabled() {
		return nil, errs.NotConfigured("illustration")
	}

	respCh, errCh, err := s.queue.Add(ctx, directive)
	if err != nil {
		return nil, errs.Rejected(0, "", fmt.Errorf("queue add failed: %w", err))
	}

	var data []byte
	select {
	case <-ctx.Done():
		return nil, errs.Rejected(0, "", ctx.Err())
	case err := <-errCh:
		if _, ok := errs.AsGeneration(err); ok {
			return nil, err
		}
		return nil, errs.Rejected(0, "", err)
	case data = <-respCh:
	}

	raster, err := decode(data)
	if err != nil {
		return nil, errs.Malformed("", err)
	}
	id, webpData, err := s.store.Save(raster)
	if err != nil {
		return nil, fmt.Errorf("failed to save webp: %w", err)
	}

	b := raster.Bounds()
	return &Image{
		ID:        id,
		Directive: directive,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Raster:    raster,
		WebP:      webpData,
	}, nil
}

// Load returns the stored WebP bytes for id.
func (s *Service) Load(id string) ([]byte, error) {
	return s.store.Load(id)
}
