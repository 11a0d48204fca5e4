// Package qrimage renders QR artifacts for signed bundle URLs and hands
// the bytes to an object store. Rendering is a pure function of the URL
// string; the store decides where the image lives.
package qrimage

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 512 // px, square

// Renderer encodes a string into PNG bytes.
type Renderer func(content string) ([]byte, error)

// ObjectStore persists a blob under a key and returns a retrievable URL.
type ObjectStore interface {
	Put(key string, data []byte) (string, error)
}

// Store couples a renderer with an object store.
type Store struct {
	render Renderer
	blobs  ObjectStore
}

func New(blobs ObjectStore) *Store {
	return &Store{
		render: func(content string) ([]byte, error) {
			return qrcode.Encode(content, qrcode.Medium, imageSize)
		},
		blobs: blobs,
	}
}

// SetRenderer replaces the default encoder; used by tests.
func (s *Store) SetRenderer(r Renderer) {
	s.render = r
}

// StoreQR renders the signed URL and persists the PNG keyed by public id.
func (s *Store) StoreQR(publicId, signedURL string) (string, error) {
	png, err := s.render(signedURL)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	url, err := s.blobs.Put(publicId+".png", png)
	if err != nil {
		return "", fmt.Errorf("store qr: %w", err)
	}
	return url, nil
}
