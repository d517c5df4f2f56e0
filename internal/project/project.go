// Package project defines the durable migration project model and its store.
package project

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side identifies the source or target role of one half of a migration pairing.
type Side string

const (
	// Source is the side being migrated out.
	Source Side = "source"
	// Target is the side being migrated back.
	Target Side = "target"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Source {
		return Target
	}
	return Source
}

// State is a lifecycle state of a Project. Transitions run strictly forward;
// the external workflow executor owns the work between them.
type State string

const (
	Uninitialized   State = "uninitialized"
	Creating        State = "creating"
	Active          State = "active"
	CutoverPending  State = "cutoverPending"
	CutoverComplete State = "cutoverComplete"
	Deleting        State = "deleting"
	Deleted         State = "deleted"
)

// Item is the replication-service project handle for one side of a Project.
// Immutable once created. Items with an empty side are combined handles used
// in managed-execution scenarios.
type Item struct {
	ID    string `dynamodbav:"id" json:"id"`
	Side  Side   `dynamodbav:"side" json:"side"`
	VpcID string `dynamodbav:"vpcId" json:"vpcId"`
}

// Project pairs a source environment and a target environment, each identified
// by a region and a set of credentials, and references the replication-service
// project handles.
type Project struct {
	ID                 string    `dynamodbav:"id" json:"id"`
	Name               string    `dynamodbav:"name" json:"name"`
	Type               string    `dynamodbav:"type" json:"type"`
	SourceRegion       string    `dynamodbav:"sourceRegion" json:"sourceRegion"`
	TargetRegion       string    `dynamodbav:"targetRegion" json:"targetRegion"`
	SourceVpcID        string    `dynamodbav:"sourceVpcId" json:"sourceVpcId"`
	StagingSubnetID    string    `dynamodbav:"stagingSubnetId" json:"stagingSubnetId"`
	PublicNetwork      bool      `dynamodbav:"publicNetwork" json:"publicNetwork"`
	TargetInstanceType string    `dynamodbav:"targetInstanceType" json:"targetInstanceType"`
	Items              []Item    `dynamodbav:"items" json:"items"`
	State              State     `dynamodbav:"state" json:"state"`
	CreatedDate        time.Time `dynamodbav:"createdDate" json:"createdDate"`
}

// New creates a project with a fresh identifier.
func New(name string) *Project {
	return &Project{
		ID:          uuid.NewString(),
		Name:        name,
		State:       Uninitialized,
		CreatedDate: time.Now(),
	}
}

// Region returns the region of the given side.
func (p *Project) Region(side Side) string {
	if side == Source {
		return p.SourceRegion
	}
	return p.TargetRegion
}

// Item returns the replication item of the given side, or nil.
func (p *Project) Item(side Side) *Item {
	for i := range p.Items {
		if p.Items[i].Side == side {
			return &p.Items[i]
		}
	}
	return nil
}

// Managed returns the combined replication item used in managed-execution
// scenarios, or the first item when no combined handle exists.
func (p *Project) Managed() *Item {
	for i := range p.Items {
		if p.Items[i].Side == "" {
			return &p.Items[i]
		}
	}
	if len(p.Items) == 0 {
		return nil
	}
	return &p.Items[0]
}

// Cutover returns the replication item whose machines are evaluated for
// cutback, which is the target-side handle.
func (p *Project) Cutover() *Item {
	return p.Item(Target)
}

// SecretID returns the secret reference under which the credential of the
// given side is persisted.
func (p *Project) SecretID(side Side) string {
	return fmt.Sprintf("dr/%s/%s", p.ID, side)
}
