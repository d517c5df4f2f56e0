package blueprint

import (
	"context"
	"fmt"

	"github.com/codebypatrickleung/sailover/internal/compute"
	"github.com/codebypatrickleung/sailover/internal/logger"
	"github.com/codebypatrickleung/sailover/internal/network"
	"github.com/codebypatrickleung/sailover/internal/project"
	"github.com/codebypatrickleung/sailover/internal/replication"
)

const (
	gib             = int64(1024 * 1024 * 1024)
	defaultDiskIops = 3000
)

// Service implements the batch blueprint operations of a project: initial
// loading, tier updates, security group selection and provisioning.
type Service struct {
	store        *Store
	machines     replication.MachineLister
	typeCache    *compute.TypeCache
	invoker      FunctionInvoker
	fnConfigure  string
	fallbackType string
	logger       *logger.Logger
}

// NewService creates the blueprint batch service.
func NewService(store *Store, machines replication.MachineLister, typeCache *compute.TypeCache,
	invoker FunctionInvoker, fnConfigure, fallbackType string, log *logger.Logger) *Service {
	return &Service{
		store:        store,
		machines:     machines,
		typeCache:    typeCache,
		invoker:      invoker,
		fnConfigure:  fnConfigure,
		fallbackType: fallbackType,
		logger:       log,
	}
}

// LoadBlueprints creates one blueprint per replicated machine, idempotently:
// existing blueprints keep their settings and only the security groups are
// refreshed. New blueprints default to a private subnet, the economy tier and
// a free address within the chosen subnet.
func (s *Service) LoadBlueprints(ctx context.Context, client network.EC2API, p *project.Project) error {
	item := p.Managed()
	if item == nil {
		return fmt.Errorf("project %s has no replication item", p.ID)
	}

	machines, err := s.machines.FindMachines(ctx, item.ID)
	if err != nil {
		return err
	}

	subnet, err := network.FindSubnet(ctx, client, item.VpcID, false)
	if err != nil {
		return err
	}
	groups, err := network.FindSecurityGroups(ctx, client, item.VpcID)
	if err != nil {
		return err
	}
	addresses, err := network.FindIPAddresses(ctx, client, item.VpcID, subnet, len(machines))
	if err != nil {
		return err
	}
	if len(addresses) < len(machines) {
		return fmt.Errorf("subnet %s has only %d free addresses for %d machines",
			*subnet.SubnetId, len(addresses), len(machines))
	}

	existing, err := s.store.FindAll(ctx, p.ID)
	if err != nil {
		return err
	}
	byMachine := make(map[string]*Blueprint, len(existing))
	for i := range existing {
		byMachine[existing[i].MachineID] = &existing[i]
	}

	blueprints := make([]Blueprint, 0, len(machines))
	for i, machine := range machines {
		if b := byMachine[machine.ID]; b != nil {
			// The one documented partial tolerance: a machine without a
			// security group mapping keeps an empty list.
			b.SecurityGroups = groups[b.Name]
			blueprints = append(blueprints, *b)
			continue
		}

		props := machine.SourceProperties
		cpus := props.Cores()
		blueprints = append(blueprints, Blueprint{
			ID:             p.ID,
			MachineID:      machine.ID,
			Name:           props.Name,
			OSName:         props.OS,
			Cpus:           cpus,
			MemoryBytes:    props.MemoryBytes,
			PublicSubnet:   false,
			InstanceType:   compute.FindInstanceType(true, cpus, props.MemoryBytes/gib),
			SubnetID:       *subnet.SubnetId,
			IPAddress:      addresses[i],
			Disks:          diskNames(props.Disks),
			DiskIops:       defaultDiskIops,
			DiskType:       compute.DiskStandard,
			SecurityGroups: groups[props.Name],
		})
	}
	return s.store.BatchSave(ctx, blueprints)
}

// SetBlueprintRequest selects which blueprint aspects to update across a set
// of machines. Aspects marked intact are left untouched.
type SetBlueprintRequest struct {
	MachineIDs []string

	SubnetIntact bool
	PublicSubnet bool

	DiskIntact bool
	DiskTier   compute.Tier

	InstanceIntact bool
	InstanceTier   compute.Tier
	// InstanceType is the caller-supplied type name for the customized tier.
	InstanceType string
}

// SetBlueprint updates the subnet, disk tier and instance tier of the
// selected machines' blueprints.
func (s *Service) SetBlueprint(ctx context.Context, client network.EC2API, p *project.Project, req SetBlueprintRequest) error {
	item := p.Managed()
	if item == nil {
		return fmt.Errorf("project %s has no replication item", p.ID)
	}

	var subnetID string
	var addresses []string
	if !req.SubnetIntact {
		subnet, err := network.FindSubnet(ctx, client, item.VpcID, req.PublicSubnet)
		if err != nil {
			return err
		}
		subnetID = *subnet.SubnetId
		if addresses, err = network.FindIPAddresses(ctx, client, item.VpcID, subnet, len(req.MachineIDs)); err != nil {
			return err
		}
		if len(addresses) < len(req.MachineIDs) {
			return fmt.Errorf("subnet %s has only %d free addresses for %d machines",
				subnetID, len(addresses), len(req.MachineIDs))
		}
	}

	for i, machineID := range req.MachineIDs {
		b, err := s.store.Find(ctx, p.ID, machineID)
		if err != nil {
			return err
		}

		if !req.SubnetIntact {
			b.PublicSubnet = req.PublicSubnet
			b.SubnetID = subnetID
			b.IPAddress = addresses[i]
		}

		if !req.DiskIntact {
			b.DiskType = compute.DiskTypeFor(req.DiskTier)
		}

		if !req.InstanceIntact {
			switch req.InstanceTier {
			case compute.Customized:
				b.InstanceType = req.InstanceType
			default:
				b.InstanceType = compute.FindInstanceType(
					req.InstanceTier == compute.Economy, b.Cpus, b.MemoryBytes/gib)
			}
		}

		if err := s.store.Save(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// SelectSecurityGroup replaces the security group list of the selected
// machines' blueprints.
func (s *Service) SelectSecurityGroup(ctx context.Context, p *project.Project, machineIDs []string, groups []network.SecurityGroup) error {
	for _, machineID := range machineIDs {
		b, err := s.store.Find(ctx, p.ID, machineID)
		if err != nil {
			return err
		}
		b.SecurityGroups = groups
		if err := s.store.Save(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// ConfigureAll submits every given blueprint to the provisioning function.
// The instance type is validated against the target region's offering with
// the configured fallback. The reply of each call is parsed as the new
// blueprint state; a structured error aborts the batch.
func (s *Service) ConfigureAll(ctx context.Context, client compute.InstanceTypesAPI, p *project.Project, blueprints []Blueprint) error {
	item := p.Managed()
	if item == nil {
		return fmt.Errorf("project %s has no replication item", p.ID)
	}
	s.logger.Infof("Configure blueprints for project [%s]", p.Name)

	tags := []Tag{ConfiguredTag()}
	for _, b := range blueprints {
		instanceType, err := s.typeCache.MapType(ctx, client, p.TargetRegion, b.InstanceType, s.fallbackType)
		if err != nil {
			return err
		}

		spec := LaunchSpec{
			ProjectID:        item.ID,
			MachineID:        b.MachineID,
			SubnetID:         b.SubnetID,
			SecurityGroupIDs: b.SecurityGroupIDs(),
			PrivateIP:        b.IPAddress,
			InstanceType:     instanceType,
			Tags:             tags,
			Disks:            b.Disks,
			DiskIops:         b.DiskIops,
			DiskType:         b.DiskType,
			IamRole:          b.IamRole,
		}

		var configured Blueprint
		if err := s.invoker.Invoke(ctx, s.fnConfigure, spec, &configured); err != nil {
			return err
		}
	}
	return nil
}

func diskNames(disks []replication.Disk) []string {
	names := make([]string, len(disks))
	for i, d := range disks {
		names[i] = d.Name
	}
	return names
}
