package vault

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrijs2005/redactvault/internal/common"
	"github.com/dmitrijs2005/redactvault/internal/cryptox"
	"github.com/dmitrijs2005/redactvault/internal/server/models"
)

// OwnerIndexName is the global secondary index on owner_id / created_at.
const OwnerIndexName = "owner_id-index"

// maxAttemptRetries bounds optimistic retries when two unlocks of the same
// doc_id race on the version attribute.
const maxAttemptRetries = 8

// DynamoAPI is the subset of *dynamodb.Client the repository uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoItem is the table layout. expires_at is epoch seconds so the table's
// TTL can be pointed at it; retired items keep only doc_id and the flag.
type dynamoItem struct {
	DocID          string            `dynamodbav:"doc_id"`
	OwnerID        string            `dynamodbav:"owner_id,omitempty"`
	Filename       string            `dynamodbav:"filename,omitempty"`
	Ciphertext     []byte            `dynamodbav:"ciphertext,omitempty"`
	Cipher         string            `dynamodbav:"cipher,omitempty"`
	Salt           []byte            `dynamodbav:"salt,omitempty"`
	Nonce          []byte            `dynamodbav:"nonce,omitempty"`
	KdfParams      cryptox.KdfParams `dynamodbav:"kdf_params"`
	ArtifactKey    string            `dynamodbav:"artifact_key,omitempty"`
	CreatedAt      time.Time         `dynamodbav:"created_at"`
	ExpiresAt      int64             `dynamodbav:"expires_at,omitempty"`
	FailedAttempts int               `dynamodbav:"failed_attempts"`
	LockedUntil    int64             `dynamodbav:"locked_until,omitempty"`
	Version        int64             `dynamodbav:"version"`
	Retired        bool              `dynamodbav:"retired,omitempty"`
}

func itemFromEntry(e *models.VaultEntry) dynamoItem {
	it := dynamoItem{
		DocID:          e.DocID,
		Filename:       e.Filename,
		Ciphertext:     e.Ciphertext,
		Cipher:         e.Cipher,
		Salt:           e.Salt,
		Nonce:          e.Nonce,
		KdfParams:      e.KdfParams,
		ArtifactKey:    e.ArtifactKey,
		CreatedAt:      e.CreatedAt.UTC(),
		FailedAttempts: e.FailedAttempts,
		LockedUntil:    unixMilli(e.LockedUntil),
	}
	if e.OwnerID != nil {
		it.OwnerID = *e.OwnerID
	}
	if e.ExpiresAt != nil {
		it.ExpiresAt = e.ExpiresAt.Unix()
	}
	return it
}

func (it *dynamoItem) entry() *models.VaultEntry {
	e := &models.VaultEntry{
		DocID:          it.DocID,
		Filename:       it.Filename,
		Ciphertext:     it.Ciphertext,
		Cipher:         it.Cipher,
		Salt:           it.Salt,
		Nonce:          it.Nonce,
		KdfParams:      it.KdfParams,
		ArtifactKey:    it.ArtifactKey,
		CreatedAt:      it.CreatedAt,
		FailedAttempts: it.FailedAttempts,
		LockedUntil:    fromUnixMilli(it.LockedUntil),
	}
	if it.OwnerID != "" {
		owner := it.OwnerID
		e.OwnerID = &owner
	}
	if it.ExpiresAt != 0 {
		t := time.Unix(it.ExpiresAt, 0).UTC()
		e.ExpiresAt = &t
	}
	return e
}

func unixMilli(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// DynamoRepository stores one item per doc_id.
type DynamoRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoRepository(client DynamoAPI, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table}
}

func (r *DynamoRepository) key(docID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"doc_id": &types.AttributeValueMemberS{Value: docID},
	}
}

// Put is a single conditional PutItem; an existing or retired doc_id fails
// the condition.
func (r *DynamoRepository) Put(ctx context.Context, e *models.VaultEntry) error {
	av, err := attributevalue.MarshalMap(itemFromEntry(e))
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(doc_id)"),
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (r *DynamoRepository) getItem(ctx context.Context, docID string) (*dynamoItem, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.key(docID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if out.Item == nil {
		return nil, common.ErrorNotFound
	}

	var it dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	if it.Retired {
		return nil, common.ErrorNotFound
	}
	return &it, nil
}

func (r *DynamoRepository) Get(ctx context.Context, docID string) (*models.VaultEntry, error) {
	it, err := r.getItem(ctx, docID)
	if err != nil {
		return nil, err
	}
	return it.entry(), nil
}

func (r *DynamoRepository) Attempts(ctx context.Context, docID string) (*models.AttemptState, error) {
	it, err := r.getItem(ctx, docID)
	if err != nil {
		return nil, err
	}
	return it.entry().Attempts(), nil
}

// UpdateAttempts is an optimistic read-modify-write guarded by the version
// attribute. A lost race re-reads and reapplies fn.
func (r *DynamoRepository) UpdateAttempts(ctx context.Context, docID string, fn AttemptsFunc) (*models.AttemptState, error) {
	for i := 0; i < maxAttemptRetries; i++ {
		it, err := r.getItem(ctx, docID)
		if err != nil {
			return nil, err
		}
		s := it.entry().Attempts()
		if err := fn(s); err != nil {
			return nil, err
		}

		values := map[string]types.AttributeValue{
			":failed":   &types.AttributeValueMemberN{Value: strconv.Itoa(s.FailedAttempts)},
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(it.Version, 10)},
			":next":     &types.AttributeValueMemberN{Value: strconv.FormatInt(it.Version+1, 10)},
		}
		update := "SET failed_attempts = :failed, version = :next"
		if s.LockedUntil != nil {
			update += ", locked_until = :locked"
			values[":locked"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.LockedUntil.UnixMilli(), 10)}
		} else {
			update += " REMOVE locked_until"
		}

		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.table),
			Key:                       r.key(docID),
			UpdateExpression:          aws.String(update),
			ConditionExpression:       aws.String("version = :expected AND attribute_not_exists(retired)"),
			ExpressionAttributeValues: values,
		})
		if err == nil {
			return s, nil
		}
		var condCheckErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condCheckErr) {
			return nil, fmt.Errorf("failed to update attempts: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to update attempts for %s: too much contention", docID)
}

func (r *DynamoRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.DocumentInfo, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(OwnerIndexName),
		KeyConditionExpression: aws.String("owner_id = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: ownerID},
		},
		ScanIndexForward: aws.Bool(false),
	}

	var result []*models.DocumentInfo
	for {
		out, err := r.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to query owner index: %w", err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items: %w", err)
		}
		for i := range items {
			if items[i].Retired {
				continue
			}
			e := items[i].entry()
			result = append(result, &models.DocumentInfo{
				DocID:     e.DocID,
				Filename:  e.Filename,
				CreatedAt: e.CreatedAt,
				ExpiresAt: e.ExpiresAt,
			})
		}
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// DeleteExpired scans for expired items and overwrites each with a retired
// tombstone so the doc_id can never be issued again.
func (r *DynamoRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	cutoff := &types.AttributeValueMemberN{Value: strconv.FormatInt(before.Unix(), 10)}
	in := &dynamodb.ScanInput{
		TableName:            aws.String(r.table),
		FilterExpression:     aws.String("expires_at <= :cutoff AND attribute_not_exists(retired)"),
		ProjectionExpression: aws.String("doc_id, artifact_key"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": cutoff,
		},
	}

	var keys []string
	for len(keys) < limit {
		out, err := r.client.Scan(ctx, in)
		if err != nil {
			return keys, fmt.Errorf("failed to scan expired items: %w", err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return keys, fmt.Errorf("failed to unmarshal items: %w", err)
		}
		for _, it := range items {
			if len(keys) >= limit {
				break
			}
			retired, err := r.retire(ctx, it.DocID, cutoff)
			if err != nil {
				return keys, err
			}
			if retired {
				keys = append(keys, it.ArtifactKey)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return keys, nil
}

func (r *DynamoRepository) retire(ctx context.Context, docID string, cutoff types.AttributeValue) (bool, error) {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item: map[string]types.AttributeValue{
			"doc_id":  &types.AttributeValueMemberS{Value: docID},
			"retired": &types.AttributeValueMemberBOOL{Value: true},
		},
		ConditionExpression: aws.String("expires_at <= :cutoff AND attribute_not_exists(retired)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": cutoff,
		},
	})
	if err != nil {
		var condCheckErr *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to retire %s: %w", docID, err)
	}
	return true, nil
}
