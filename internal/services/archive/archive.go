// Package archive keeps a copy of every accepted upload in object storage.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"creator-coach/config"
	"creator-coach/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectStore is the part of the S3 client the archiver uses.
type ObjectStore interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores uploads under documents/<sha256><ext>. Identical files share a key.
type S3Archiver struct {
	client ObjectStore
	bucket string

	mu          sync.Mutex
	bucketReady bool
}

func NewS3Archiver(client ObjectStore, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// Key is the object key of data uploaded as fileName.
func Key(data []byte, fileName string) string {
	sum := sha256.Sum256(data)
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("documents/%s%s", hex.EncodeToString(sum[:]), ext)
}

// Archive uploads data and returns its s3:// location.
func (a *S3Archiver) Archive(ctx context.Context, data []byte, fileName, mediaType string) (string, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	key := Key(data, fileName)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mediaType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	logger.Module(config.ModuleS3).WithFields(map[string]interface{}{
		"location": location,
		"bytes":    len(data),
	}).Debug("upload archived")
	return location, nil
}

func (a *S3Archiver) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bucketReady {
		return nil
	}
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		_, crtErr := a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
		if crtErr != nil {
			var owned *s3types.BucketAlreadyOwnedByYou
			if !errors.As(crtErr, &owned) {
				return fmt.Errorf("create bucket: %w", crtErr)
			}
		}
	}
	a.bucketReady = true
	return nil
}
