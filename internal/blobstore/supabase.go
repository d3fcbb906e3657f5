package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps original PDFs and extracted images in two Supabase
// storage buckets.
type SupabaseStore struct {
	client        *storage.Client
	uploadsBucket string
	imagesBucket  string
}

func NewSupabaseStore(supabaseURL, serviceKey, uploadsBucket, imagesBucket string) (*SupabaseStore, error) {
	baseURL := strings.TrimRight(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &SupabaseStore{
		client:        client,
		uploadsBucket: uploadsBucket,
		imagesBucket:  imagesBucket,
	}, nil
}

func (s *SupabaseStore) UploadPDF(_ context.Context, key string, data []byte) (string, error) {
	contentType := "application/pdf"
	upsert := true
	_, err := s.client.UploadFile(s.uploadsBucket, key, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload pdf: %w", err)
	}
	return key, nil
}

func (s *SupabaseStore) UploadImage(_ context.Context, key string, data []byte, contentType string) (string, error) {
	upsert := true
	_, err := s.client.UploadFile(s.imagesBucket, key, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return key, nil
}

func (s *SupabaseStore) DownloadPDF(_ context.Context, ref string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.uploadsBucket, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to download pdf: %w", err)
	}
	return data, nil
}

func (s *SupabaseStore) SignedImageURL(ref string, ttl time.Duration) (string, error) {
	resp, err := s.client.CreateSignedUrl(s.imagesBucket, ref, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to sign url: %w", err)
	}
	return resp.SignedURL, nil
}

func (s *SupabaseStore) DeleteDocumentFiles(_ context.Context, ownerID, documentID string) error {
	prefix := fmt.Sprintf("%s/%s", ownerID, documentID)

	for _, bucket := range []string{s.uploadsBucket, s.imagesBucket} {
		files, err := s.client.ListFiles(bucket, prefix, storage.FileSearchOptions{
			Limit: 1000,
		})
		if err != nil {
			return fmt.Errorf("failed to list files in %s: %w", bucket, err)
		}
		if len(files) == 0 {
			continue
		}

		paths := make([]string, len(files))
		for i, file := range files {
			paths[i] = prefix + "/" + file.Name
		}
		if _, err := s.client.RemoveFile(bucket, paths); err != nil {
			return fmt.Errorf("failed to delete files in %s: %w", bucket, err)
		}
	}

	return nil
}
