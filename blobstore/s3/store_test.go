package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flow/commons/blobstore"
)

// fakeClient is an in-memory S3 implementing the Client interface,
// including enough of the multipart API to satisfy the upload manager.
type fakeClient struct {
	mu       sync.Mutex
	objects  map[string][]byte
	uploads  map[string]map[int32][]byte
	nextID   int
	pageSize int

	lastChecksum string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string][]byte),
		uploads: make(map[string]map[int32][]byte),
	}
}

func (f *fakeClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	body := data
	if r := aws.ToString(params.Range); r != "" {
		var start, end int64
		if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil {
			return nil, fmt.Errorf("bad range %q: %w", r, err)
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		if start > end {
			return nil, fmt.Errorf("unsatisfiable range %q", r)
		}
		body = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.Key)
	if aws.ToString(params.IfNoneMatch) == "*" {
		if _, exists := f.objects[key]; exists {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
		}
	}
	f.lastChecksum = aws.ToString(params.ChecksumCRC32C)
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	prefix := aws.ToString(params.Prefix)
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(params.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := len(keys)
	truncated := false
	if f.pageSize > 0 && start+f.pageSize < len(keys) {
		end = start + f.pageSize
		truncated = true
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(f.objects[k]))),
		})
	}
	if truncated {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeClient) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeClient) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	parts, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	parts[aws.ToInt32(params.PartNumber)] = data
	return &s3.UploadPartOutput{
		ETag: aws.String(fmt.Sprintf("etag-%d", aws.ToInt32(params.PartNumber))),
	}, nil
}

func (f *fakeClient) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	parts, ok := f.uploads[id]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}

	nums := make([]int32, 0, len(parts))
	for n := range parts {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	var data []byte
	for _, n := range nums {
		data = append(data, parts[n]...)
	}
	f.objects[aws.ToString(params.Key)] = data
	delete(f.uploads, id)
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeClient) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestStore_PutOpenReadAt(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "worlds/alpha")

	data := []byte("snapshot words go here")
	require.NoError(t, store.Put(ctx, "chunks/c0.fba", data))
	assert.NotEmpty(t, client.lastChecksum, "checksummed put attaches CRC32C")
	assert.Contains(t, client.objects, "worlds/alpha/chunks/c0.fba")

	b, err := store.Open(ctx, "chunks/c0.fba")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, int64(len(data)), b.Size())

	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 9)
	require.NoError(t, err)
	assert.Equal(t, []byte("words"), buf[:n])

	// Tail read past the end is short with io.EOF.
	n, err = b.ReadAt(ctx, buf, int64(len(data))-2)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStore_PutWithoutChecksum(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()

	cfg := DefaultUploadConfig()
	cfg.EnableChecksum = false
	store := NewStore(client, "bucket", "", WithUploadConfig(cfg))

	require.NoError(t, store.Put(ctx, "plain", []byte("x")))
	assert.Empty(t, client.lastChecksum)
}

func TestStore_OpenMissing(t *testing.T) {
	store := NewStore(newFakeClient(), "bucket", "p")
	_, err := store.Open(context.Background(), "absent")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_ReadRange(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "")

	require.NoError(t, store.Put(ctx, "blob", []byte("0123456789")))

	b, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer b.Close()

	rc, err := b.ReadRange(ctx, 3, 4)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("3456"), got)

	// Clipped at the end.
	rc, err = b.ReadRange(ctx, 8, 10)
	require.NoError(t, err)
	got, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("89"), got)
}

func TestStore_CreateStreaming(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "worlds/alpha")

	w, err := store.Create(ctx, "regions/r0.bin")
	require.NoError(t, err)

	_, err = w.Write([]byte("part one|"))
	require.NoError(t, err)
	_, err = w.Write([]byte("part two"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close reports the same result")

	got, err := blobstore.ReadAll(ctx, store, "regions/r0.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("part one|part two"), got)

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.pageSize = 2
	store := NewStore(client, "bucket", "worlds/alpha")

	for _, name := range []string{"chunks/b", "chunks/a", "chunks/c", "manifests/1", "manifests/2"} {
		require.NoError(t, store.Put(ctx, name, []byte("v")))
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunks/a", "chunks/b", "chunks/c", "manifests/1", "manifests/2"}, all,
		"listing paginates and strips the root prefix")

	chunks, err := store.List(ctx, "chunks/")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunks/a", "chunks/b", "chunks/c"}, chunks)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "")

	require.NoError(t, store.Put(ctx, "gone", []byte("v")))
	require.NoError(t, store.Delete(ctx, "gone"))
	_, err := store.Open(ctx, "gone")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "gone"))
}

func TestExpressStore_PutIfNotExists(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewExpressStore(client, "bucket--usw2-az1--x-s3", "worlds/alpha")

	require.NoError(t, store.PutIfNotExists(ctx, "manifests/GEN-1", []byte("first writer")))

	err := store.PutIfNotExists(ctx, "manifests/GEN-1", []byte("second writer"))
	assert.ErrorIs(t, err, ErrConflict)

	got, err := blobstore.ReadAll(ctx, store, "manifests/GEN-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("first writer"), got, "loser must not clobber the winner")
}

// TestStore_Integration runs against real S3 when credentials and a
// bucket are provided.
func TestStore_Integration(t *testing.T) {
	bucket := os.Getenv("S3_TEST_BUCKET")
	if bucket == "" {
		t.Skip("S3_TEST_BUCKET not set")
	}

	ctx := context.Background()
	store, err := NewFromConfig(ctx, bucket, "commons-it")
	require.NoError(t, err)

	data := []byte("integration payload")
	require.NoError(t, store.Put(ctx, "probe.bin", data))
	defer func() { _ = store.Delete(ctx, "probe.bin") }()

	got, err := blobstore.ReadAll(ctx, store, "probe.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "probe.bin")
}
