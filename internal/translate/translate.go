// Package translate implements the region/ID translation store, a persistent
// bidirectional mapping between source-side and target-side resource
// identifiers scoped by region pair.
package translate

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
)

const (
	keyID           = "id"
	keyTargetID     = "targetId"
	keySourceRegion = "sourceRegion"
	keyTargetRegion = "targetRegion"
)

// Record maps a source-region resource ID to a target-region resource ID for
// a specific region pair. Records are written by the out-of-band peering
// process and are read-only here.
type Record struct {
	ID           string `dynamodbav:"id"`
	TargetID     string `dynamodbav:"targetId"`
	SourceRegion string `dynamodbav:"sourceRegion"`
	TargetRegion string `dynamodbav:"targetRegion"`
}

// DynamoAPI is the subset of the DynamoDB client used by the store.
type DynamoAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store reads translation records from a DynamoDB table.
type Store struct {
	client DynamoAPI
	table  string
}

// NewStore creates a translation store over the given table.
func NewStore(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// FindTargetID returns the target-side ID mapped from the given source-side
// ID. When multiple records share the source ID the last one scanned wins.
func (s *Store) FindTargetID(ctx context.Context, id string) (string, error) {
	records, err := s.queryByID(ctx, id)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", errdefs.NotFound("target ID for", id)
	}
	return records[len(records)-1].TargetID, nil
}

// FindSourceID returns the source-side ID mapped to the given target-side ID.
// When multiple records share the target ID the last one scanned wins.
func (s *Store) FindSourceID(ctx context.Context, id string) (string, error) {
	var last *Record
	input := &dynamodb.ScanInput{
		TableName:        &s.table,
		FilterExpression: strPtr(keyTargetID + " = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
	}
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return "", errdefs.Transport("scan translation table", err)
		}
		for i := range out.Items {
			var r Record
			if err := attributevalue.UnmarshalMap(out.Items[i], &r); err != nil {
				return "", fmt.Errorf("failed to unmarshal translation record: %w", err)
			}
			last = &r
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if last == nil {
		return "", errdefs.NotFound("source ID for", id)
	}
	return last.ID, nil
}

// FindTargetVpcID returns the target VPC ID mapped from the source VPC for an
// exact region-pair match. This is a planning lookup used before the target
// infrastructure exists, so an absent mapping returns an empty string rather
// than an error.
func (s *Store) FindTargetVpcID(ctx context.Context, sourceVpcID, sourceRegion, targetRegion string) (string, error) {
	records, err := s.queryByID(ctx, sourceVpcID)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.SourceRegion == sourceRegion && r.TargetRegion == targetRegion {
			return r.TargetID, nil
		}
	}
	return "", nil
}

// VpcPair is a replicated source VPC together with its peer in the target region.
type VpcPair struct {
	SourceVpcID string
	TargetVpcID string
}

// MatchVpcs returns the source VPCs whose translation record points at a VPC
// that actually exists in the target region for the given region pair.
func (s *Store) MatchVpcs(ctx context.Context, sourceVpcIDs, targetVpcIDs []string, sourceRegion, targetRegion string) ([]VpcPair, error) {
	targetSet := make(map[string]struct{}, len(targetVpcIDs))
	for _, id := range targetVpcIDs {
		targetSet[id] = struct{}{}
	}

	var pairs []VpcPair
	for _, sourceVpcID := range sourceVpcIDs {
		records, err := s.queryByID(ctx, sourceVpcID)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if _, ok := targetSet[r.TargetID]; !ok {
				continue
			}
			if r.SourceRegion == sourceRegion && r.TargetRegion == targetRegion {
				pairs = append(pairs, VpcPair{SourceVpcID: sourceVpcID, TargetVpcID: r.TargetID})
			}
		}
	}
	return pairs, nil
}

func (s *Store) queryByID(ctx context.Context, id string) ([]Record, error) {
	var records []Record
	input := &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: strPtr(keyID + " = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
	}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, errdefs.Transport("query translation table", err)
		}
		for i := range out.Items {
			var r Record
			if err := attributevalue.UnmarshalMap(out.Items[i], &r); err != nil {
				return nil, fmt.Errorf("failed to unmarshal translation record: %w", err)
			}
			records = append(records, r)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return records, nil
}

func strPtr(s string) *string { return &s }
