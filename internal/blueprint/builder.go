package blueprint

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/codebypatrickleung/sailover/internal/compute"
	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
	"github.com/codebypatrickleung/sailover/internal/project"
)

// EC2API is the subset of the EC2 client used by the builder.
type EC2API interface {
	compute.InstanceTypesAPI
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// Translator resolves resource IDs across the migration pairing. The caller
// selects the query direction; the store never infers it.
type Translator interface {
	FindTargetID(ctx context.Context, id string) (string, error)
	FindSourceID(ctx context.Context, id string) (string, error)
}

// FunctionInvoker submits a payload to a named external function and decodes
// its reply.
type FunctionInvoker interface {
	Invoke(ctx context.Context, functionName string, payload, result interface{}) error
}

// Builder assembles the complete launch specification for one machine and
// submits it to the external provisioning function.
type Builder struct {
	translator  Translator
	typeCache   *compute.TypeCache
	invoker     FunctionInvoker
	fnConfigure string
	logger      *logger.Logger
}

// NewBuilder creates a launch-spec builder.
func NewBuilder(translator Translator, typeCache *compute.TypeCache, invoker FunctionInvoker, fnConfigure string, log *logger.Logger) *Builder {
	return &Builder{
		translator:  translator,
		typeCache:   typeCache,
		invoker:     invoker,
		fnConfigure: fnConfigure,
		logger:      log,
	}
}

// Configure builds the launch specification for the instance backing one
// machine and submits it. Every step is a hard dependency: a failure aborts
// the whole operation and no partial blueprint is persisted.
func (b *Builder) Configure(ctx context.Context, client EC2API, p *project.Project, side project.Side, machineID, instanceID string) (*Blueprint, error) {
	b.logger.Debugf("Configure blueprint for [%s] machine [%s, %s]", side, machineID, instanceID)

	out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil || len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return nil, errdefs.NotFound("instance", instanceID)
	}
	instance := out.Reservations[0].Instances[0]

	// Translation direction depends on which side originated the artifacts:
	// migrating the source out translates source to target, migrating the
	// target back translates target to source.
	translate := b.translator.FindTargetID
	if side == project.Target {
		translate = b.translator.FindSourceID
	}

	subnetID, err := translate(ctx, deref(instance.SubnetId))
	if err != nil {
		return nil, err
	}

	securityGroupIDs := make([]string, len(instance.SecurityGroups))
	for i, group := range instance.SecurityGroups {
		if securityGroupIDs[i], err = translate(ctx, deref(group.GroupId)); err != nil {
			return nil, err
		}
	}

	tags := make([]Tag, 0, len(instance.Tags)+1)
	for _, tag := range instance.Tags {
		tags = append(tags, Tag{Key: deref(tag.Key), Value: deref(tag.Value)})
	}
	tags = append(tags, ConfiguredTag())

	instanceType, err := b.typeCache.MapType(ctx, client, p.Region(side),
		string(instance.InstanceType), p.TargetInstanceType)
	if err != nil {
		return nil, err
	}

	disks := make([]string, len(instance.BlockDeviceMappings))
	for i, mapping := range instance.BlockDeviceMappings {
		disks[i] = TranslateDeviceName(deref(mapping.DeviceName))
	}

	// An instance profile has exactly one role; its name is the trailing ARN
	// path segment.
	iamRole := ""
	if instance.IamInstanceProfile != nil && instance.IamInstanceProfile.Arn != nil {
		arn := *instance.IamInstanceProfile.Arn
		if slash := strings.LastIndex(arn, "/"); slash != -1 {
			iamRole = arn[slash+1:]
		}
	}

	item := p.Item(side)
	if item == nil {
		return nil, errdefs.NotFound("replication item for side", string(side))
	}

	spec := LaunchSpec{
		ProjectID:        item.ID,
		MachineID:        machineID,
		SubnetID:         subnetID,
		SecurityGroupIDs: securityGroupIDs,
		PrivateIP:        deref(instance.PrivateIpAddress),
		InstanceType:     instanceType,
		Tags:             tags,
		Disks:            disks,
		IamRole:          iamRole,
	}

	var configured Blueprint
	if err := b.invoker.Invoke(ctx, b.fnConfigure, spec, &configured); err != nil {
		return nil, err
	}
	return &configured, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
