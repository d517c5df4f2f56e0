package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
)

// EC2API is the subset of the EC2 client used for network discovery.
type EC2API interface {
	DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeRouteTables(ctx context.Context, in *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error)
	DescribeNetworkInterfaces(ctx context.Context, in *ec2.DescribeNetworkInterfacesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error)
	DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

// NoMatchingSubnetError reports that the VPC has no subnet with the requested
// visibility after all listing pages were examined.
type NoMatchingSubnetError struct {
	VpcID  string
	Public bool
}

func (e *NoMatchingSubnetError) Error() string {
	return fmt.Sprintf("no subnet found in VPC %s [public = %t]", e.VpcID, e.Public)
}

func filter(name string, values ...string) types.Filter {
	return types.Filter{Name: &name, Values: values}
}

// FindSubnet returns the first subnet in the VPC with the requested
// visibility. A subnet with no associated route table, or with no route to an
// internet gateway, is private; a subnet with a route to an internet gateway
// is public.
func FindSubnet(ctx context.Context, client EC2API, vpcID string, public bool) (*types.Subnet, error) {
	input := &ec2.DescribeSubnetsInput{
		Filters: []types.Filter{filter("vpc-id", vpcID)},
	}
	for {
		out, err := client.DescribeSubnets(ctx, input)
		if err != nil {
			return nil, errdefs.Transport("describe subnets", err)
		}

		for i := range out.Subnets {
			subnet := out.Subnets[i]
			match, err := classify(ctx, client, &subnet, public)
			if err != nil {
				return nil, err
			}
			if match {
				return &subnet, nil
			}
		}

		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return nil, &NoMatchingSubnetError{VpcID: vpcID, Public: public}
}

func classify(ctx context.Context, client EC2API, subnet *types.Subnet, public bool) (bool, error) {
	out, err := client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{filter("association.subnet-id", *subnet.SubnetId)},
	})
	if err != nil {
		return false, errdefs.Transport("describe route tables", err)
	}

	if len(out.RouteTables) == 0 {
		// No route table association, private subnet.
		return !public, nil
	}

	for _, table := range out.RouteTables {
		for _, route := range table.Routes {
			if route.GatewayId != nil && strings.HasPrefix(*route.GatewayId, "igw-") {
				return public, nil
			}
		}
	}
	// Route tables exist but none routes to an internet gateway.
	return !public, nil
}

// FindIPAddresses drains the private IP addresses of every network interface
// in the VPC, then returns unused addresses within the subnet CIDR, up to
// count+1 of them.
func FindIPAddresses(ctx context.Context, client EC2API, vpcID string, subnet *types.Subnet, count int) ([]string, error) {
	var used []string
	input := &ec2.DescribeNetworkInterfacesInput{
		Filters: []types.Filter{filter("vpc-id", vpcID)},
	}
	for {
		out, err := client.DescribeNetworkInterfaces(ctx, input)
		if err != nil {
			return nil, errdefs.Transport("describe network interfaces", err)
		}
		for _, eni := range out.NetworkInterfaces {
			if eni.PrivateIpAddress != nil {
				used = append(used, *eni.PrivateIpAddress)
			}
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	cidr, err := ParseCidr(*subnet.CidrBlock)
	if err != nil {
		return nil, err
	}
	return FindUnusedAddresses(cidr, used, count), nil
}
