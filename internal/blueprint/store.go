package blueprint

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
)

const batchWriteLimit = 25

// DynamoAPI is the subset of the DynamoDB client used by the blueprint store.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Store persists blueprints in a DynamoDB table keyed by project ID with the
// machine ID as range key.
type Store struct {
	client DynamoAPI
	table  string
}

// NewStore creates a blueprint store over the given table.
func NewStore(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// Find loads the blueprint of one machine.
func (s *Store) Find(ctx context.Context, projectID, machineID string) (*Blueprint, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"id":        &types.AttributeValueMemberS{Value: projectID},
			"machineId": &types.AttributeValueMemberS{Value: machineID},
		},
	})
	if err != nil {
		return nil, errdefs.Transport("find blueprint", err)
	}
	if out.Item == nil {
		return nil, errdefs.NotFound("blueprint", machineID)
	}
	var b Blueprint
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blueprint %s: %w", machineID, err)
	}
	return &b, nil
}

// FindAll loads every blueprint of the project.
func (s *Store) FindAll(ctx context.Context, projectID string) ([]Blueprint, error) {
	var blueprints []Blueprint
	key := "id = :id"
	input := &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: &key,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: projectID},
		},
	}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, errdefs.Transport("query blueprints", err)
		}
		for i := range out.Items {
			var b Blueprint
			if err := attributevalue.UnmarshalMap(out.Items[i], &b); err != nil {
				return nil, fmt.Errorf("failed to unmarshal blueprint: %w", err)
			}
			blueprints = append(blueprints, b)
		}
		if out.LastEvaluatedKey == nil {
			return blueprints, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Save writes one blueprint.
func (s *Store) Save(ctx context.Context, b *Blueprint) error {
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint %s: %w", b.MachineID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	}); err != nil {
		return errdefs.Transport("save blueprint", err)
	}
	return nil
}

// BatchSave writes blueprints in batches of the DynamoDB write limit.
func (s *Store) BatchSave(ctx context.Context, blueprints []Blueprint) error {
	for start := 0; start < len(blueprints); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(blueprints) {
			end = len(blueprints)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for i := start; i < end; i++ {
			item, err := attributevalue.MarshalMap(&blueprints[i])
			if err != nil {
				return fmt.Errorf("failed to marshal blueprint %s: %w", blueprints[i].MachineID, err)
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if _, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: requests},
		}); err != nil {
			return errdefs.Transport("batch save blueprints", err)
		}
	}
	return nil
}
