package network

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
)

// TagMachine is the security group tag listing the machine names the group
// applies to, comma separated. It is written by the out-of-band provisioning
// process.
const TagMachine = "dr:machines"

// SecurityGroup is a target-side security group reference.
type SecurityGroup struct {
	ID   string `dynamodbav:"id" json:"id"`
	Name string `dynamodbav:"name" json:"name"`
}

// FindSecurityGroups drains all security groups of the VPC and returns a map
// from machine name to the security groups tagged for that machine.
func FindSecurityGroups(ctx context.Context, client EC2API, vpcID string) (map[string][]SecurityGroup, error) {
	groups := make(map[string][]SecurityGroup)
	input := &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{filter("vpc-id", vpcID)},
	}
	for {
		out, err := client.DescribeSecurityGroups(ctx, input)
		if err != nil {
			return nil, errdefs.Transport("describe security groups", err)
		}
		for _, group := range out.SecurityGroups {
			for _, tag := range group.Tags {
				if tag.Key == nil || *tag.Key != TagMachine || tag.Value == nil {
					continue
				}
				for _, machine := range strings.Split(*tag.Value, ",") {
					groups[machine] = append(groups[machine], SecurityGroup{
						ID:   str(group.GroupId),
						Name: str(group.GroupName),
					})
				}
			}
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return groups, nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
