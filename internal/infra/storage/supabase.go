// Package storage uploads finished interview records to Supabase Storage.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/VanBaNguyen/SurveyCode/internal/interview"
)

// Config names the Supabase project and bucket.
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Store holds the Supabase client for record uploads.
type Store struct {
	client *supabase.Client
	bucket string
}

// New builds a Store. Returns an error when the project configuration is
// missing or rejected by the SDK.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("storage: SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// SaveRecord uploads the record as a JSON object named name.
func (s *Store) SaveRecord(ctx context.Context, name string, rec interview.Record) error {
	data, err := rec.MarshalIndent()
	if err != nil {
		return fmt.Errorf("storage: marshal record: %w", err)
	}
	if _, err := s.client.Storage.UploadFile(s.bucket, name, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("storage: upload %s: %w", name, err)
	}
	return nil
}
