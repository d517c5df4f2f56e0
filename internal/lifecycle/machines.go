package lifecycle

import (
	"context"

	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/project"
	"github.com/codebypatrickleung/sailover/internal/replication"
)

// ManageMachinesRequest selects instances or machines of one side for agent
// installation or launch.
type ManageMachinesRequest struct {
	Side        project.Side `json:"side"`
	InstanceIDs []string     `json:"instanceIds"`
	MachineIDs  []string     `json:"machineIds"`
	LaunchType  string       `json:"launchType"`
}

type peerRoutePayload struct {
	ProjectID    string   `json:"projectId"`
	SourceVpcID  string   `json:"sourceVpcId"`
	SourceRegion string   `json:"sourceRegion"`
	TargetRegion string   `json:"targetRegion"`
	InstanceIDs  []string `json:"instanceIds"`
}

type installAgentPayload struct {
	ProjectID   string       `json:"projectId"`
	Side        project.Side `json:"side"`
	InstanceIDs []string     `json:"instanceIds"`
}

// InstallAgent installs the replication agent on the given instances. With
// private networking the peering routes are injected first; a structured
// error from either function fails the operation.
func (o *Orchestrator) InstallAgent(ctx context.Context, p *project.Project, req ManageMachinesRequest) error {
	if !p.PublicNetwork {
		o.logger.Info("Using private network, need to add routes to VPC peering")
		if err := o.invoker.Invoke(ctx, o.cfg.FnAddPeerRoute, peerRoutePayload{
			ProjectID:    p.ID,
			SourceVpcID:  p.SourceVpcID,
			SourceRegion: p.SourceRegion,
			TargetRegion: p.TargetRegion,
			InstanceIDs:  req.InstanceIDs,
		}, nil); err != nil {
			return err
		}
	}

	var installed bool
	if err := o.invoker.Invoke(ctx, o.cfg.FnInstallAgent, installAgentPayload{
		ProjectID:   p.ID,
		Side:        req.Side,
		InstanceIDs: req.InstanceIDs,
	}, &installed); err != nil {
		return err
	}
	if !installed {
		return errdefs.ExternalCall(o.cfg.FnInstallAgent, "agent installation failed")
	}
	return nil
}

type launchPayload struct {
	ProjectID  string   `json:"projectId"`
	LaunchType string   `json:"launchType"`
	MachineIDs []string `json:"machineIds"`
}

// LaunchResult is the reply of the launch-machines function.
type LaunchResult struct {
	Items []struct {
		MachineID string `json:"machineId"`
		Result    string `json:"result"`
	} `json:"items"`
}

// LaunchMachines launches the selected machines on the given side through
// the external launch function.
func (o *Orchestrator) LaunchMachines(ctx context.Context, p *project.Project, req ManageMachinesRequest) (*LaunchResult, error) {
	item := p.Item(req.Side)
	if item == nil {
		return nil, errdefs.NotFound("replication item for side", string(req.Side))
	}

	var result LaunchResult
	if err := o.invoker.Invoke(ctx, o.cfg.FnLaunchMachines, launchPayload{
		ProjectID:  item.ID,
		LaunchType: req.LaunchType,
		MachineIDs: req.MachineIDs,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MachineStatus is a replicated machine joined with its blueprint state.
type MachineStatus struct {
	replication.Machine
	Region              string `json:"region"`
	BlueprintConfigured bool   `json:"blueprintConfigured"`
}

// Machines lists the machines of one side together with whether their
// blueprint has been configured.
func (o *Orchestrator) Machines(ctx context.Context, p *project.Project, side project.Side) ([]MachineStatus, error) {
	item := p.Item(side)
	if item == nil {
		return nil, errdefs.NotFound("replication item for side", string(side))
	}

	machines, err := o.machines.FindMachines(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	blueprints, err := o.blueprints.FindAll(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	configured := make(map[string]bool, len(blueprints))
	for i := range blueprints {
		configured[blueprints[i].MachineID] = blueprints[i].Configured()
	}

	statuses := make([]MachineStatus, len(machines))
	for i, machine := range machines {
		statuses[i] = MachineStatus{
			Machine:             machine,
			Region:              p.Region(side),
			BlueprintConfigured: configured[machine.ID],
		}
	}
	return statuses, nil
}
