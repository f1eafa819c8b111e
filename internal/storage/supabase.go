package storage

import (
	"bytes"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Config holds Supabase storage settings for recording archival.
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Supabase archives interview audio payloads in a storage bucket.
type Supabase struct {
	client *supabase.Client
	bucket string
}

// New constructs the archive client, or an error when the project is not
// configured (archival is optional).
func New(cfg Config) (*Supabase, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("supabase: URL, service role key and bucket required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: create client: %w", err)
	}
	return &Supabase{client: client, bucket: cfg.Bucket}, nil
}

// Archive uploads one payload under the given object key.
func (s *Supabase) Archive(key, contentType string, data []byte) error {
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("supabase: upload %s: %w", key, err)
	}
	return nil
}
