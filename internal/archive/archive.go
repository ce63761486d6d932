// Package archive stores exported dead letters in a blob bucket, optionally sealed with a KMS key.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/secrets"

	queueDomain "github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/queue/http/dto"

	// Register bucket drivers
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// Keeper seals archive contents. *secrets.Keeper implements it.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Document is the archived form of a set of dead letters.
type Document struct {
	ExportedAt time.Time               `json:"exported_at"`
	Count      int                     `json:"count"`
	Operations []dto.OperationResponse `json:"operations"`
}

// Archiver writes and reads dead-letter documents. A nil keeper stores plain JSON.
type Archiver struct {
	bucket *blob.Bucket
	keeper Keeper
}

// NewArchiver creates an Archiver over bucket.
func NewArchiver(bucket *blob.Bucket, keeper Keeper) *Archiver {
	return &Archiver{bucket: bucket, keeper: keeper}
}

// OpenBucket opens a bucket by URL. Supports file:// and mem://.
func OpenBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return bucket, nil
}

// OpenKeeper opens a secrets.Keeper for keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func OpenKeeper(ctx context.Context, keyURI string) (*secrets.Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// DefaultKey names an export by its timestamp.
func DefaultKey(now time.Time) string {
	return "dead-letters/" + now.UTC().Format("20060102T150405Z") + ".json"
}

// Write stores ops under key and returns the stored document.
func (a *Archiver) Write(
	ctx context.Context,
	key string,
	ops []*queueDomain.Operation,
	now time.Time,
) (*Document, error) {
	doc := &Document{
		ExportedAt: now.UTC(),
		Count:      len(ops),
		Operations: make([]dto.OperationResponse, 0, len(ops)),
	}
	for _, op := range ops {
		doc.Operations = append(doc.Operations, dto.MapOperationToResponse(op))
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal archive: %w", err)
	}

	contentType := "application/json"
	if a.keeper != nil {
		if data, err = a.keeper.Encrypt(ctx, data); err != nil {
			return nil, fmt.Errorf("failed to seal archive: %w", err)
		}
		contentType = "application/octet-stream"
	}

	if err := a.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	return doc, nil
}

// Read loads the document stored under key.
func (a *Archiver) Read(ctx context.Context, key string) (*Document, error) {
	data, err := a.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	if a.keeper != nil {
		if data, err = a.keeper.Decrypt(ctx, data); err != nil {
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archive: %w", err)
	}
	return &doc, nil
}
