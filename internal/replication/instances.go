package replication

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
)

// managedPolicy must be attached to an instance's profile role before the
// replication agent can be installed through the systems manager.
const managedPolicy = "AmazonSSMManagedInstanceCore"

// InstancesAPI is the subset of the EC2 client used for instance discovery.
type InstancesAPI interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// IAMAPI is the subset of the IAM client used to inspect instance profiles.
type IAMAPI interface {
	GetInstanceProfile(ctx context.Context, in *iam.GetInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error)
	ListAttachedRolePolicies(ctx context.Context, in *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
}

// Instance is a source instance that qualifies for agent installation.
type Instance struct {
	InstanceID string `json:"instanceId"`
	Region     string `json:"region"`
	VpcID      string `json:"vpcId"`
	SubnetID   string `json:"subnetId"`
	PrivateIP  string `json:"privateIp"`
}

// FindQualifiedInstances returns the instances that carry an instance profile
// whose role has the managed-instance policy attached and that reside in the
// designated VPC. An empty vpcID disables the VPC check.
func FindQualifiedInstances(ctx context.Context, ec2Client InstancesAPI, iamClient IAMAPI, region, vpcID string, log *logger.Logger) ([]Instance, error) {
	var instances []Instance
	input := &ec2.DescribeInstancesInput{}
	for {
		out, err := ec2Client.DescribeInstances(ctx, input)
		if err != nil {
			return nil, errdefs.Transport("describe instances", err)
		}
		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				ok, err := isQualified(ctx, iamClient, instance, vpcID, log)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				instances = append(instances, Instance{
					InstanceID: deref(instance.InstanceId),
					Region:     region,
					VpcID:      deref(instance.VpcId),
					SubnetID:   deref(instance.SubnetId),
					PrivateIP:  deref(instance.PrivateIpAddress),
				})
			}
		}
		if out.NextToken == nil {
			return instances, nil
		}
		input.NextToken = out.NextToken
	}
}

func isQualified(ctx context.Context, iamClient IAMAPI, instance ec2types.Instance, vpcID string, log *logger.Logger) (bool, error) {
	if instance.IamInstanceProfile == nil || instance.IamInstanceProfile.Arn == nil {
		log.Infof("Instance [%s] has no instance profile", deref(instance.InstanceId))
		return false, nil
	}

	arn := *instance.IamInstanceProfile.Arn
	slash := strings.LastIndex(arn, "/")
	if slash == -1 {
		log.Infof("Instance [%s]: invalid instance profile arn %s", deref(instance.InstanceId), arn)
		return false, nil
	}
	profileName := arn[slash+1:]

	profile, err := iamClient.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: &profileName,
	})
	if err != nil {
		return false, errdefs.Transport("get instance profile", err)
	}
	if len(profile.InstanceProfile.Roles) == 0 {
		return false, nil
	}
	// An instance profile has exactly one role.
	role := profile.InstanceProfile.Roles[0]

	policies, err := iamClient.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: role.RoleName,
	})
	if err != nil {
		return false, errdefs.Transport("list attached role policies", err)
	}

	attached := false
	for _, policy := range policies.AttachedPolicies {
		if policy.PolicyName != nil && *policy.PolicyName == managedPolicy {
			attached = true
			break
		}
	}
	if !attached {
		log.Infof("Instance [%s] profile has no %s policy attached", deref(instance.InstanceId), managedPolicy)
		return false, nil
	}

	if vpcID != "" && deref(instance.VpcId) != vpcID {
		log.Infof("Instance [%s] is not running inside the source VPC [%s]", deref(instance.InstanceId), vpcID)
		return false, nil
	}
	return true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
