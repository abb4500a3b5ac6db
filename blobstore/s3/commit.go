package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/flow/commons/blobstore"
)

// CurrentPointer is the reserved blob name that resolves to the latest
// committed generation manifest.
const CurrentPointer = "CURRENT"

// ErrConcurrentModification is returned when another writer committed a
// generation between this writer's read and its commit.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API the commit store calls.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// CommitRecord is one committed generation pointer.
type CommitRecord struct {
	Version      uint64
	ManifestPath string
}

// CommitStore layers DynamoDB commit semantics over a blob store.
//
// S3 has no compare-and-swap, so two savers racing to rewrite CURRENT
// would silently lose one commit. The commit store instead keeps the
// pointer as a monotonically versioned DynamoDB item and publishes with
// a conditional write: the loser of a race gets
// ErrConcurrentModification and must re-read before retrying.
//
// Table schema: partition key base_uri (S), sort key version (N).
//
//	aws dynamodb create-table \
//	  --table-name world-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
//
// Every other blob name passes straight through to the wrapped store.
type CommitStore struct {
	blobs blobstore.BlobStore
	ddb   DDBClient
	table string
	// base is the partition key, conventionally "s3://bucket/prefix".
	base string
}

var _ blobstore.BlobStore = (*CommitStore)(nil)

// NewCommitStore wraps blobs with a DynamoDB-backed CURRENT pointer.
func NewCommitStore(blobs blobstore.BlobStore, ddb DDBClient, table, baseURI string) *CommitStore {
	return &CommitStore{
		blobs: blobs,
		ddb:   ddb,
		table: table,
		base:  baseURI,
	}
}

// Open opens a blob. Opening CurrentPointer yields a virtual blob whose
// content is the manifest path of the latest committed generation.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == CurrentPointer {
		version, manifestPath, err := s.latest(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(manifestPath)}, nil
	}
	return s.blobs.Open(ctx, name)
}

// Put writes a blob. Writing CurrentPointer commits data as the next
// generation's manifest path.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == CurrentPointer {
		return s.commit(ctx, string(data))
	}
	return s.blobs.Put(ctx, name, data)
}

func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == CurrentPointer {
		return nil, fmt.Errorf("%s must be written with Put", CurrentPointer)
	}
	return s.blobs.Create(ctx, name)
}

func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, name)
}

func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.List(ctx, prefix)
}

// History returns up to limit committed generations, newest first.
func (s *CommitStore) History(ctx context.Context, limit int32) ([]CommitRecord, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.base},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("query commit history: %w", err)
	}

	records := make([]CommitRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		rec, err := decodeCommitItem(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// latest returns the newest committed version, or 0 when nothing has
// been committed yet.
func (s *CommitStore) latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.base},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query latest commit: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	rec, err := decodeCommitItem(resp.Items[0])
	if err != nil {
		return 0, "", err
	}
	return rec.Version, rec.ManifestPath, nil
}

// commit publishes manifestPath as the next generation. The conditional
// write fails if another writer claimed the same version first.
func (s *CommitStore) commit(ctx context.Context, manifestPath string) error {
	current, _, err := s.latest(ctx)
	if err != nil {
		return err
	}
	next := current + 1

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.base},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"manifest_path": &types.AttributeValueMemberS{Value: manifestPath},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version %d: %w", next, err)
	}
	return nil
}

func decodeCommitItem(item map[string]types.AttributeValue) (CommitRecord, error) {
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return CommitRecord{}, errors.New("commit item missing version attribute")
	}
	pathAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return CommitRecord{}, errors.New("commit item missing manifest_path attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return CommitRecord{}, fmt.Errorf("parse commit version: %w", err)
	}
	return CommitRecord{Version: version, ManifestPath: pathAttr.Value}, nil
}

// pointerBlob carries the resolved CURRENT content.
type pointerBlob struct {
	content []byte
}

var _ blobstore.Blob = (*pointerBlob)(nil)

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= int64(len(b.content)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := off + length
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}
	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}
