package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

type Supabase struct {
	client *storage.Client
	bucket string
}

func NewSupabase(url, key, bucket string) (*Supabase, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase blob backend needs SUPABASE_URL and SUPABASE_KEY")
	}
	if bucket == "" {
		bucket = "uploads"
	}
	return &Supabase{
		client: storage.NewClient(strings.TrimRight(url, "/")+"/storage/v1", key, nil),
		bucket: bucket,
	}, nil
}

func (s *Supabase) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_ = ctx
	upsert := true
	opts := storage.FileOptions{ContentType: &contentType, Upsert: &upsert}
	if _, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("supabase upload %s: %w", key, err)
	}
	return nil
}

func (s *Supabase) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	b, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("supabase download %s: %w", key, err)
	}
	return b, nil
}
