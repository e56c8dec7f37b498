package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/bloomfilter/blobstore"
)

// CurrentName is the blob base name routed through DynamoDB.
const CurrentName = "CURRENT"

// DDBCommitStore implements blobstore.BlobStore backed by S3 with DynamoDB
// for atomic CURRENT pointer commits.
//
// Every blob whose base name is CURRENT is stored as a versioned item:
//   - a commit reads the latest version v and writes v+1 with
//     attribute_not_exists(version), so two writers racing on the same
//     version cannot both succeed
//   - reads return the value of the highest version
//   - the committed value is mirrored to S3 so List sees it
//
// All other blobs go straight to S3.
//
// Table schema:
//   - Partition key: base_uri (string)
//   - Sort key: version (number)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name bloomfilter-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentModification is returned when a concurrent commit won the race.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// NewDDBCommitStore creates a new S3+DynamoDB commit store.
// baseURI (for example "s3://bucket/prefix") namespaces the partition keys.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

func isCurrent(name string) bool {
	return path.Base(name) == CurrentName
}

func (s *DDBCommitStore) partitionKey(name string) string {
	return s.baseURI + "#" + name
}

// Open opens a blob for reading. CURRENT blobs are read from DynamoDB.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if !isCurrent(name) {
		return s.s3Store.Open(ctx, name)
	}

	version, value, err := s.latest(ctx, s.partitionKey(name))
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}

	return &committedBlob{content: value}, nil
}

// Put writes a blob. CURRENT blobs are committed with a conditional write.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if !isCurrent(name) {
		return s.s3Store.Put(ctx, name, data)
	}

	if err := s.commit(ctx, s.partitionKey(name), data); err != nil {
		return err
	}

	if err := s.s3Store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("s3: mirror %s: %w", name, err)
	}
	return nil
}

// Create creates a writable blob. CURRENT blobs are buffered and committed on Close.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if !isCurrent(name) {
		return s.s3Store.Create(ctx, name)
	}
	return &commitWriter{ctx: ctx, store: s, name: name}, nil
}

// Delete deletes a blob. Deleting CURRENT drops its whole version history.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	if isCurrent(name) {
		if err := s.dropVersions(ctx, s.partitionKey(name)); err != nil {
			return err
		}
	}
	return s.s3Store.Delete(ctx, name)
}

// List lists blobs with prefix.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// Version returns the latest committed version of a CURRENT blob, or 0.
func (s *DDBCommitStore) Version(ctx context.Context, name string) (uint64, error) {
	version, _, err := s.latest(ctx, s.partitionKey(name))
	return version, err
}

// latest queries DynamoDB for the highest committed version.
func (s *DDBCommitStore) latest(ctx context.Context, pk string) (uint64, []byte, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("s3: query commits: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, nil, nil
	}

	item := resp.Items[0]

	version, err := parseVersion(item)
	if err != nil {
		return 0, nil, err
	}

	valueAttr, ok := item["value"].(*types.AttributeValueMemberB)
	if !ok {
		return 0, nil, errors.New("s3: invalid value attribute in commit item")
	}

	return version, valueAttr.Value, nil
}

// commit writes version latest+1 unless another writer got there first.
func (s *DDBCommitStore) commit(ctx context.Context, pk string, value []byte) error {
	current, _, err := s.latest(ctx, pk)
	if err != nil {
		return err
	}

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: pk},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"value":    &types.AttributeValueMemberB{Value: bytes.Clone(value)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: commit version %d: %w", current+1, err)
	}

	return nil
}

// dropVersions deletes every committed version of pk.
func (s *DDBCommitStore) dropVersions(ctx context.Context, pk string) error {
	var startKey map[string]types.AttributeValue

	for {
		resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("base_uri = :uri"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uri": &types.AttributeValueMemberS{Value: pk},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return fmt.Errorf("s3: query commits: %w", err)
		}

		for _, item := range resp.Items {
			_, err := s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"base_uri": item["base_uri"],
					"version":  item["version"],
				},
			})
			if err != nil {
				return fmt.Errorf("s3: delete commit: %w", err)
			}
		}

		if len(resp.LastEvaluatedKey) == 0 {
			return nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

func parseVersion(item map[string]types.AttributeValue) (uint64, error) {
	attr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("s3: invalid version attribute in commit item")
	}

	version, err := strconv.ParseUint(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("s3: parse version: %w", err)
	}
	return version, nil
}

// committedBlob is an in-memory blob holding a committed CURRENT value.
type committedBlob struct {
	content []byte
}

func (b *committedBlob) Close() error {
	return nil
}

func (b *committedBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *committedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off < 0 || off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *committedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, end := blobstore.Clip(off, length, int64(len(b.content)))
	return io.NopCloser(bytes.NewReader(b.content[start:end])), nil
}

// commitWriter buffers a CURRENT value and commits it on Close.
type commitWriter struct {
	ctx    context.Context
	store  *DDBCommitStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *commitWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *commitWriter) Sync() error {
	return nil
}

func (w *commitWriter) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}

func (w *commitWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.store.Put(w.ctx, w.name, w.buf.Bytes())
}
