// Package lifecycle sequences the migration lifecycle of a project: create,
// wizard, cutback and delete. The orchestrator owns precondition checks and
// payload assembly; the multi-step state machines themselves run in the
// external workflow executor.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/codebypatrickleung/sailover/internal/blueprint"
	awscloud "github.com/codebypatrickleung/sailover/internal/cloud/aws"
	"github.com/codebypatrickleung/sailover/internal/config"
	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
	"github.com/codebypatrickleung/sailover/internal/project"
	"github.com/codebypatrickleung/sailover/internal/replication"
	"github.com/codebypatrickleung/sailover/internal/workflow"
)

// SecretManager persists and releases migration credentials.
type SecretManager interface {
	SaveSecret(ctx context.Context, cred awscloud.Credential) (string, error)
	DeleteSecret(ctx context.Context, secretID string) error
	DeleteTempSecrets(ctx context.Context) error
}

// VpcResolver resolves the target VPC peered with a source VPC, returning an
// empty string when the pairing has not been peered yet.
type VpcResolver interface {
	FindTargetVpcID(ctx context.Context, sourceVpcID, sourceRegion, targetRegion string) (string, error)
}

// BlueprintFinder loads the blueprints of a project.
type BlueprintFinder interface {
	FindAll(ctx context.Context, projectID string) ([]blueprint.Blueprint, error)
}

// ProjectStore persists project records.
type ProjectStore interface {
	Save(ctx context.Context, p *project.Project) error
	Delete(ctx context.Context, id string) error
}

// Orchestrator drives lifecycle transitions of a migration project.
type Orchestrator struct {
	projects   ProjectStore
	secrets    SecretManager
	resolver   VpcResolver
	blueprints BlueprintFinder
	machines   replication.MachineLister
	executor   workflow.Executor
	invoker    blueprint.FunctionInvoker
	cfg        *config.Config
	logger     *logger.Logger
}

// NewOrchestrator wires the lifecycle orchestrator.
func NewOrchestrator(projects ProjectStore, secrets SecretManager, resolver VpcResolver,
	blueprints BlueprintFinder, machines replication.MachineLister,
	executor workflow.Executor, invoker blueprint.FunctionInvoker,
	cfg *config.Config, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		projects:   projects,
		secrets:    secrets,
		resolver:   resolver,
		blueprints: blueprints,
		machines:   machines,
		executor:   executor,
		invoker:    invoker,
		cfg:        cfg,
		logger:     log,
	}
}

// CreateRequest initiates a migration project.
type CreateRequest struct {
	Name             string              `json:"name"`
	SourceRegion     string              `json:"sourceRegion"`
	TargetRegion     string              `json:"targetRegion"`
	SourceVpcID      string              `json:"sourceVpcId"`
	PublicNetwork    bool                `json:"publicNetwork"`
	SourceCredential awscloud.Credential `json:"-"`
}

type createPayload struct {
	ProjectID          string `json:"projectId"`
	Name               string `json:"name"`
	SourceRegion       string `json:"sourceRegion"`
	TargetRegion       string `json:"targetRegion"`
	SourceVpcID        string `json:"sourceVpcId"`
	PublicNetwork      bool   `json:"publicNetwork"`
	SourceCredentialID string `json:"sourceCredentialId"`
	StagingSubnetID    string `json:"stagingSubnetId,omitempty"`
}

// Create persists a provisional credential, sets up VPC peering when the
// target networking is private, resolves the staging subnet and hands the
// project off to the external create workflow. Peering is not rolled back
// when a later step fails; the error says so.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*project.Project, error) {
	secretID, err := o.secrets.SaveSecret(ctx, req.SourceCredential)
	if err != nil {
		return nil, err
	}

	p := project.New(req.Name)
	p.SourceRegion = req.SourceRegion
	p.TargetRegion = req.TargetRegion
	p.SourceVpcID = req.SourceVpcID
	p.PublicNetwork = req.PublicNetwork
	p.State = project.Creating
	p.TargetInstanceType = o.cfg.TargetInstanceType

	payload := createPayload{
		ProjectID:          p.ID,
		Name:               req.Name,
		SourceRegion:       req.SourceRegion,
		TargetRegion:       req.TargetRegion,
		SourceVpcID:        req.SourceVpcID,
		PublicNetwork:      req.PublicNetwork,
		SourceCredentialID: secretID,
	}

	peered := false
	if !req.PublicNetwork {
		o.logger.Info("Using private network, setting up VPC peering")
		if err := o.invoker.Invoke(ctx, o.cfg.FnPeerVpc, payload, nil); err != nil {
			return nil, err
		}
		peered = true
	}

	if err := o.invoker.Invoke(ctx, o.cfg.FnFindStagingSubnet, payload, &payload.StagingSubnetID); err != nil {
		return nil, afterPeering(peered, err)
	}
	p.StagingSubnetID = payload.StagingSubnetID

	if err := o.projects.Save(ctx, p); err != nil {
		return nil, afterPeering(peered, err)
	}

	if _, err := o.executor.Submit(ctx, o.cfg.WfCreateProject, payload); err != nil {
		return nil, afterPeering(peered, err)
	}
	return p, nil
}

// afterPeering annotates a create failure that happened after VPC peering was
// already applied, since peering is not rolled back.
func afterPeering(peered bool, err error) error {
	if !peered {
		return err
	}
	return fmt.Errorf("create failed after VPC peering was applied (peering is not rolled back): %w", err)
}

// WizardRequest runs the replication setup wizard for a project.
type WizardRequest struct {
	CreateRequest
	Cidr        string   `json:"cidr"`
	Continuous  bool     `json:"continuous"`
	InstanceIDs []string `json:"instanceIds"`
}

type wizardPayload struct {
	createPayload
	Cidr        string   `json:"cidr"`
	Continuous  bool     `json:"continuous"`
	InstanceIDs []string `json:"instanceIds"`
	TargetVpcID string   `json:"targetVpcId,omitempty"`
}

// RunWizard persists the source credential, resolves the target VPC when the
// pairing is already peered, and hands off to the run-wizard workflow. An
// unresolved target VPC is passed through empty; the downstream workflow
// tolerates it at this stage.
func (o *Orchestrator) RunWizard(ctx context.Context, req WizardRequest) error {
	secretID, err := o.secrets.SaveSecret(ctx, req.SourceCredential)
	if err != nil {
		return err
	}

	targetVpcID, err := o.resolver.FindTargetVpcID(ctx, req.SourceVpcID, req.SourceRegion, req.TargetRegion)
	if err != nil {
		return err
	}

	payload := wizardPayload{
		createPayload: createPayload{
			Name:               req.Name,
			SourceRegion:       req.SourceRegion,
			TargetRegion:       req.TargetRegion,
			SourceVpcID:        req.SourceVpcID,
			PublicNetwork:      req.PublicNetwork,
			SourceCredentialID: secretID,
		},
		Cidr:        req.Cidr,
		Continuous:  req.Continuous,
		InstanceIDs: req.InstanceIDs,
		TargetVpcID: targetVpcID,
	}
	_, err = o.executor.Submit(ctx, o.cfg.WfRunWizard, payload)
	return err
}

type cutbackPayload struct {
	ProjectID string       `json:"projectId"`
	Terminate bool         `json:"terminate"`
	Side      project.Side `json:"side"`
}

// Cutback verifies the cutback precondition across every machine of the
// cutover item, then hands off to the prepare-cutback workflow naming the
// side whose instances are to be terminated. A single failing machine fails
// the whole operation; nothing is partially cut back.
func (o *Orchestrator) Cutback(ctx context.Context, p *project.Project, terminate bool) error {
	if err := o.checkCutbackPrecondition(ctx, p); err != nil {
		return err
	}

	if _, err := o.executor.Submit(ctx, o.cfg.WfPrepareCutback, cutbackPayload{
		ProjectID: p.ID,
		Terminate: terminate,
		// Instances of this side are terminated.
		Side: project.Source,
	}); err != nil {
		return err
	}

	p.State = project.CutoverPending
	return o.projects.Save(ctx, p)
}

func (o *Orchestrator) checkCutbackPrecondition(ctx context.Context, p *project.Project) error {
	item := p.Cutover()
	if item == nil {
		return errdefs.NotFound("cutover item of project", p.ID)
	}

	machines, err := o.machines.FindMachines(ctx, item.ID)
	if err != nil {
		return err
	}
	blueprints, err := o.blueprints.FindAll(ctx, p.ID)
	if err != nil {
		return err
	}
	byMachine := make(map[string]*blueprint.Blueprint, len(blueprints))
	for i := range blueprints {
		byMachine[blueprints[i].MachineID] = &blueprints[i]
	}

	for _, machine := range machines {
		b := byMachine[machine.ID]
		if b == nil || !b.Configured() {
			return &errdefs.PreconditionFailedError{
				MachineID: machine.ID,
				Reason:    errdefs.ReasonBlueprintNotConfigured,
			}
		}
		if machine.ReplicationInfo.Progress() < 0.9 {
			return &errdefs.PreconditionFailedError{
				MachineID: machine.ID,
				Reason:    errdefs.ReasonReplicationIncomplete,
			}
		}
		if machine.ReplicationInfo.LastConsistencyTime == nil {
			return &errdefs.PreconditionFailedError{
				MachineID: machine.ID,
				Reason:    errdefs.ReasonNoConsistencyTimestamp,
			}
		}
	}
	return nil
}

type deletePayload struct {
	ID string `json:"id"`
}

// Delete hands the project off to the delete workflow, then releases the
// source credential and every temporary credential. Credential cleanup runs
// as soon as the handoff is accepted; it is not synchronized with workflow
// completion. With purge the project record is removed immediately instead of
// waiting for the workflow to finish.
func (o *Orchestrator) Delete(ctx context.Context, p *project.Project, purge bool) error {
	if _, err := o.executor.Submit(ctx, o.cfg.WfDeleteProject, deletePayload{ID: p.ID}); err != nil {
		return err
	}

	if err := o.secrets.DeleteSecret(ctx, p.SecretID(project.Source)); err != nil {
		return err
	}
	if err := o.secrets.DeleteTempSecrets(ctx); err != nil {
		return err
	}

	if purge {
		return o.projects.Delete(ctx, p.ID)
	}
	p.State = project.Deleting
	return o.projects.Save(ctx, p)
}
