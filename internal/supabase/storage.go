package supabase

import (
	"fmt"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient wraps the raw-capture bucket. Clients upload photos
// straight to the bucket and hand the object key to the analyze endpoint;
// the backend only ever downloads a capture once and deletes it as soon as
// the vision service has consumed it.
type StorageClient struct {
	client *storage.Client
	bucket string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	// Ensure URL doesn't have trailing slash
	baseURL := supabaseURL
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *StorageClient) DownloadFile(objectKey string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.bucket, objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	return data, nil
}

// DeleteFile removes a consumed capture. Deletion is best-effort and
// idempotent; a bucket lifecycle rule is the fallback for anything missed
// here.
func (s *StorageClient) DeleteFile(objectKey string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{objectKey})
	return err
}
