package compute

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
)

// InstanceTypesAPI is the subset of the EC2 client used to list the instance
// types offered in a region.
type InstanceTypesAPI interface {
	DescribeInstanceTypes(ctx context.Context, in *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
}

// TypeCache memoizes the set of instance types offered per region. Concurrent
// populates for the same region may race; the last writer wins, which is
// acceptable since every populate computes the same set.
type TypeCache struct {
	mu      sync.RWMutex
	regions map[string]map[string]struct{}
}

// NewTypeCache creates an empty cache.
func NewTypeCache() *TypeCache {
	return &TypeCache{regions: make(map[string]map[string]struct{})}
}

// MapType returns requested unchanged when the target region offers it,
// otherwise fallback. The region's offering is listed once and memoized.
func (c *TypeCache) MapType(ctx context.Context, client InstanceTypesAPI, region, requested, fallback string) (string, error) {
	c.mu.RLock()
	types, ok := c.regions[region]
	c.mu.RUnlock()

	if !ok {
		var err error
		types, err = fetchInstanceTypes(ctx, client)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.regions[region] = types
		c.mu.Unlock()
	}

	if _, offered := types[requested]; offered {
		return requested, nil
	}
	return fallback, nil
}

func fetchInstanceTypes(ctx context.Context, client InstanceTypesAPI) (map[string]struct{}, error) {
	types := make(map[string]struct{})
	input := &ec2.DescribeInstanceTypesInput{
		MaxResults: aws.Int32(100),
	}
	for {
		out, err := client.DescribeInstanceTypes(ctx, input)
		if err != nil {
			return nil, errdefs.Transport("describe instance types", err)
		}
		for _, info := range out.InstanceTypes {
			types[string(info.InstanceType)] = struct{}{}
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return types, nil
}
