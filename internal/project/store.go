package project

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
)

// DynamoAPI is the subset of the DynamoDB client used by the project store.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store persists projects in a DynamoDB table keyed by project ID.
type Store struct {
	client DynamoAPI
	table  string
}

// NewStore creates a project store over the given table.
func NewStore(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// Save writes the project record.
func (s *Store) Save(ctx context.Context, p *Project) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project %s: %w", p.ID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	}); err != nil {
		return errdefs.Transport("save project", err)
	}
	return nil
}

// Find loads the project with the given ID.
func (s *Store) Find(ctx context.Context, id string) (*Project, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, errdefs.Transport("find project", err)
	}
	if out.Item == nil {
		return nil, errdefs.NotFound("project", id)
	}
	var p Project
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project %s: %w", id, err)
	}
	return &p, nil
}

// Delete removes the project record.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	}); err != nil {
		return errdefs.Transport("delete project", err)
	}
	return nil
}
