package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codebypatrickleung/sailover/internal/blueprint"
	awscloud "github.com/codebypatrickleung/sailover/internal/cloud/aws"
	"github.com/codebypatrickleung/sailover/internal/config"
	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
	"github.com/codebypatrickleung/sailover/internal/project"
	"github.com/codebypatrickleung/sailover/internal/replication"
)

type mockProjects struct {
	saved   []*project.Project
	deleted []string
}

func (m *mockProjects) Save(ctx context.Context, p *project.Project) error {
	m.saved = append(m.saved, p)
	return nil
}

func (m *mockProjects) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSecrets struct {
	saved     []awscloud.Credential
	deleted   []string
	tempSwept bool
}

func (m *mockSecrets) SaveSecret(ctx context.Context, cred awscloud.Credential) (string, error) {
	m.saved = append(m.saved, cred)
	return "dr/temp/cred-1", nil
}

func (m *mockSecrets) DeleteSecret(ctx context.Context, secretID string) error {
	m.deleted = append(m.deleted, secretID)
	return nil
}

func (m *mockSecrets) DeleteTempSecrets(ctx context.Context) error {
	m.tempSwept = true
	return nil
}

type mockResolver struct {
	targetVpcID string
}

func (m *mockResolver) FindTargetVpcID(ctx context.Context, sourceVpcID, sourceRegion, targetRegion string) (string, error) {
	return m.targetVpcID, nil
}

type mockBlueprints struct {
	blueprints []blueprint.Blueprint
}

func (m *mockBlueprints) FindAll(ctx context.Context, projectID string) ([]blueprint.Blueprint, error) {
	return m.blueprints, nil
}

type mockLister struct {
	machines []replication.Machine
}

func (m *mockLister) FindMachines(ctx context.Context, itemID string) ([]replication.Machine, error) {
	return m.machines, nil
}

type submission struct {
	workflow string
	payload  interface{}
}

type mockExecutor struct {
	submissions []submission
}

func (m *mockExecutor) Submit(ctx context.Context, workflow string, payload interface{}) (string, error) {
	m.submissions = append(m.submissions, submission{workflow: workflow, payload: payload})
	return "arn:execution/" + workflow, nil
}

type invocation struct {
	function string
	payload  interface{}
}

type mockInvoker struct {
	invocations []invocation
	replies     map[string]string
	errs        map[string]error
}

func (m *mockInvoker) Invoke(ctx context.Context, functionName string, payload, result interface{}) error {
	m.invocations = append(m.invocations, invocation{function: functionName, payload: payload})
	if err := m.errs[functionName]; err != nil {
		return err
	}
	if reply, ok := m.replies[functionName]; ok && result != nil {
		return json.Unmarshal([]byte(reply), result)
	}
	return nil
}

type fixture struct {
	projects   *mockProjects
	secrets    *mockSecrets
	resolver   *mockResolver
	blueprints *mockBlueprints
	machines   *mockLister
	executor   *mockExecutor
	invoker    *mockInvoker
	o          *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		projects:   &mockProjects{},
		secrets:    &mockSecrets{},
		resolver:   &mockResolver{},
		blueprints: &mockBlueprints{},
		machines:   &mockLister{},
		executor:   &mockExecutor{},
		invoker: &mockInvoker{
			replies: map[string]string{},
			errs:    map[string]error{},
		},
	}
	cfg := &config.Config{
		SourceRegion:        "us-east-1",
		TargetRegion:        "us-west-2",
		TargetInstanceType:  "t2.large",
		FnPeerVpc:           "dr-peer-vpc",
		FnFindStagingSubnet: "dr-find-staging-subnet",
		FnAddPeerRoute:      "dr-add-peer-route",
		FnInstallAgent:      "dr-install-agent",
		FnLaunchMachines:    "dr-launch-machines",
		WfCreateProject:     "wf-create",
		WfDeleteProject:     "wf-delete",
		WfPrepareCutback:    "wf-cutback",
		WfRunWizard:         "wf-wizard",
	}
	f.o = NewOrchestrator(f.projects, f.secrets, f.resolver, f.blueprints,
		f.machines, f.executor, f.invoker, cfg, logger.New(false))
	return f
}

func cutbackProject() *project.Project {
	return &project.Project{
		ID:    "p-1",
		Name:  "finance-dr",
		State: project.Active,
		Items: []project.Item{
			{ID: "item-s", Side: project.Source},
			{ID: "item-t", Side: project.Target},
		},
	}
}

func replicatedMachine(id string, progress float64, consistent bool) replication.Machine {
	m := replication.Machine{
		ID: id,
		ReplicationInfo: replication.ReplicationInfo{
			ReplicatedStorageBytes: int64(progress * 1000),
			TotalStorageBytes:      1000,
		},
	}
	if consistent {
		now := time.Now()
		m.ReplicationInfo.LastConsistencyTime = &now
	}
	return m
}

func configuredBlueprint(machineID string) blueprint.Blueprint {
	return blueprint.Blueprint{
		ID:        "p-1",
		MachineID: machineID,
		Tags:      []blueprint.Tag{blueprint.ConfiguredTag()},
	}
}

func TestCreatePrivateNetwork(t *testing.T) {
	f := newFixture()
	f.invoker.replies["dr-find-staging-subnet"] = `"subnet-staging"`

	p, err := f.o.Create(context.Background(), CreateRequest{
		Name:         "finance-dr",
		SourceRegion: "us-east-1",
		TargetRegion: "us-west-2",
		SourceVpcID:  "vpc-src",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(f.invoker.invocations) != 2 {
		t.Fatalf("Expected peering then staging-subnet calls, got %+v", f.invoker.invocations)
	}
	if f.invoker.invocations[0].function != "dr-peer-vpc" {
		t.Errorf("Expected peering first, got %s", f.invoker.invocations[0].function)
	}
	if p.StagingSubnetID != "subnet-staging" {
		t.Errorf("Expected resolved staging subnet, got %s", p.StagingSubnetID)
	}
	if p.State != project.Creating {
		t.Errorf("Expected creating state, got %s", p.State)
	}
	if len(f.projects.saved) != 1 {
		t.Fatalf("Expected the project to be persisted, got %d saves", len(f.projects.saved))
	}
	if len(f.executor.submissions) != 1 || f.executor.submissions[0].workflow != "wf-create" {
		t.Fatalf("Expected one create-workflow submission, got %+v", f.executor.submissions)
	}
	if len(f.secrets.saved) != 1 {
		t.Errorf("Expected the source credential to be persisted, got %d", len(f.secrets.saved))
	}
}

func TestCreatePublicNetworkSkipsPeering(t *testing.T) {
	f := newFixture()
	f.invoker.replies["dr-find-staging-subnet"] = `"subnet-staging"`

	if _, err := f.o.Create(context.Background(), CreateRequest{
		Name:          "finance-dr",
		PublicNetwork: true,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, call := range f.invoker.invocations {
		if call.function == "dr-peer-vpc" {
			t.Error("Expected no peering call for public networking")
		}
	}
}

func TestCreateFailureAfterPeering(t *testing.T) {
	f := newFixture()
	f.invoker.errs["dr-find-staging-subnet"] = errdefs.ExternalCall("dr-find-staging-subnet", "no subnet")

	_, err := f.o.Create(context.Background(), CreateRequest{Name: "finance-dr"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "peering is not rolled back") {
		t.Errorf("Expected the error to note that peering stays applied, got %v", err)
	}
	if len(f.executor.submissions) != 0 {
		t.Error("Expected no workflow submission after a failed create")
	}
}

func TestRunWizardUnpeeredVpcPassesThrough(t *testing.T) {
	f := newFixture()
	f.resolver.targetVpcID = ""

	err := f.o.RunWizard(context.Background(), WizardRequest{
		CreateRequest: CreateRequest{
			Name:         "finance-dr",
			SourceRegion: "us-east-1",
			TargetRegion: "us-west-2",
			SourceVpcID:  "vpc-unpeered",
		},
		Cidr:        "10.0.0.0/24",
		InstanceIDs: []string{"i-1"},
	})
	if err != nil {
		t.Fatalf("Expected an unresolved target VPC to be tolerated, got %v", err)
	}
	if len(f.executor.submissions) != 1 || f.executor.submissions[0].workflow != "wf-wizard" {
		t.Fatalf("Expected one wizard submission, got %+v", f.executor.submissions)
	}

	payload := f.executor.submissions[0].payload.(wizardPayload)
	if payload.TargetVpcID != "" {
		t.Errorf("Expected empty target VPC in the payload, got %s", payload.TargetVpcID)
	}
}

func TestCutback(t *testing.T) {
	f := newFixture()
	f.machines.machines = []replication.Machine{
		replicatedMachine("m-1", 0.95, true),
		replicatedMachine("m-2", 1.0, true),
	}
	f.blueprints.blueprints = []blueprint.Blueprint{
		configuredBlueprint("m-1"),
		configuredBlueprint("m-2"),
	}

	p := cutbackProject()
	if err := f.o.Cutback(context.Background(), p, true); err != nil {
		t.Fatalf("Cutback failed: %v", err)
	}

	if len(f.executor.submissions) != 1 || f.executor.submissions[0].workflow != "wf-cutback" {
		t.Fatalf("Expected exactly one cutback submission, got %+v", f.executor.submissions)
	}
	payload := f.executor.submissions[0].payload.(cutbackPayload)
	if payload.Side != project.Source || !payload.Terminate {
		t.Errorf("Unexpected payload: %+v", payload)
	}
	if p.State != project.CutoverPending {
		t.Errorf("Expected cutover-pending state, got %s", p.State)
	}
	if len(f.projects.saved) != 1 {
		t.Errorf("Expected the state transition to be persisted, got %d saves", len(f.projects.saved))
	}
}

func TestCutbackPreconditions(t *testing.T) {
	tests := []struct {
		name       string
		machine    replication.Machine
		blueprints []blueprint.Blueprint
		reason     errdefs.PreconditionReason
	}{
		{
			name:       "missing blueprint",
			machine:    replicatedMachine("m-1", 1.0, true),
			blueprints: nil,
			reason:     errdefs.ReasonBlueprintNotConfigured,
		},
		{
			name:       "unconfigured blueprint",
			machine:    replicatedMachine("m-1", 1.0, true),
			blueprints: []blueprint.Blueprint{{ID: "p-1", MachineID: "m-1"}},
			reason:     errdefs.ReasonBlueprintNotConfigured,
		},
		{
			name:       "replication incomplete",
			machine:    replicatedMachine("m-1", 0.5, true),
			blueprints: []blueprint.Blueprint{configuredBlueprint("m-1")},
			reason:     errdefs.ReasonReplicationIncomplete,
		},
		{
			name:       "no consistency timestamp",
			machine:    replicatedMachine("m-1", 1.0, false),
			blueprints: []blueprint.Blueprint{configuredBlueprint("m-1")},
			reason:     errdefs.ReasonNoConsistencyTimestamp,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.machines.machines = []replication.Machine{tt.machine}
			f.blueprints.blueprints = tt.blueprints

			err := f.o.Cutback(context.Background(), cutbackProject(), false)
			var failed *errdefs.PreconditionFailedError
			if !errors.As(err, &failed) {
				t.Fatalf("Expected PreconditionFailedError, got %v", err)
			}
			if failed.MachineID != "m-1" || failed.Reason != tt.reason {
				t.Errorf("Unexpected failure: %+v", failed)
			}
			if len(f.executor.submissions) != 0 {
				t.Error("Expected no submission when the precondition fails")
			}
		})
	}
}

func TestCutbackBoundaryRatio(t *testing.T) {
	f := newFixture()
	f.machines.machines = []replication.Machine{replicatedMachine("m-1", 0.9, true)}
	f.blueprints.blueprints = []blueprint.Blueprint{configuredBlueprint("m-1")}

	if err := f.o.Cutback(context.Background(), cutbackProject(), false); err != nil {
		t.Fatalf("Expected a ratio of exactly 0.9 to pass, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture()
	p := cutbackProject()

	if err := f.o.Delete(context.Background(), p, false); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(f.executor.submissions) != 1 || f.executor.submissions[0].workflow != "wf-delete" {
		t.Fatalf("Expected one delete submission, got %+v", f.executor.submissions)
	}
	if len(f.secrets.deleted) != 1 || f.secrets.deleted[0] != "dr/p-1/source" {
		t.Errorf("Expected the source credential to be released, got %v", f.secrets.deleted)
	}
	if !f.secrets.tempSwept {
		t.Error("Expected the provisional secrets to be swept")
	}
	if p.State != project.Deleting {
		t.Errorf("Expected deleting state, got %s", p.State)
	}
	if len(f.projects.deleted) != 0 {
		t.Error("Expected the record to survive without purge")
	}
}

func TestDeletePurge(t *testing.T) {
	f := newFixture()
	p := cutbackProject()

	if err := f.o.Delete(context.Background(), p, true); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(f.projects.deleted) != 1 || f.projects.deleted[0] != "p-1" {
		t.Errorf("Expected the record to be purged, got %v", f.projects.deleted)
	}
	if len(f.projects.saved) != 0 {
		t.Error("Expected no save when purging")
	}
}
