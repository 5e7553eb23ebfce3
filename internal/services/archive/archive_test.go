package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	bucketExists bool
	heads        int
	creates      int
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeObjectStore) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.heads++
	if !f.bucketExists {
		return nil, errors.New("not found")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeObjectStore) CreateBucket(context.Context, *s3.CreateBucketInput, ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.creates++
	f.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = body
	f.contentTypes[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	// sha256("abc")
	const sum = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	assert.Equal(t, "documents/"+sum+".pdf", Key([]byte("abc"), "Guide.PDF"))
	assert.Equal(t, "documents/"+sum+".bin", Key([]byte("abc"), "noext"))
}

func TestArchive_CreatesBucketOnce(t *testing.T) {
	store := newFakeObjectStore()
	a := NewS3Archiver(store, "uploads")
	ctx := context.Background()

	loc, err := a.Archive(ctx, []byte("abc"), "notes.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "s3://uploads/"+Key([]byte("abc"), "notes.txt"), loc)

	_, err = a.Archive(ctx, []byte("def"), "more.txt", "")
	require.NoError(t, err)

	assert.Equal(t, 1, store.heads)
	assert.Equal(t, 1, store.creates)
	assert.Len(t, store.objects, 2)
	assert.Equal(t, "application/octet-stream", store.contentTypes[Key([]byte("def"), "more.txt")])
}

func TestArchive_PutFailure(t *testing.T) {
	store := newFakeObjectStore()
	store.bucketExists = true
	store.putErr = errors.New("denied")

	_, err := NewS3Archiver(store, "uploads").Archive(context.Background(), []byte("x"), "a.pdf", "application/pdf")
	assert.ErrorContains(t, err, "denied")
	assert.Zero(t, store.creates)
}
