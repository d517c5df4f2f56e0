// Package blueprint assembles and persists the per-machine target launch
// specification and submits it to the external provisioning function.
package blueprint

import (
	"strings"
	"time"

	"github.com/codebypatrickleung/sailover/internal/compute"
	"github.com/codebypatrickleung/sailover/internal/network"
)

// TagBlueprint marks a blueprint as configured. Its value is the ISO-8601
// timestamp of the provisioning call, and its presence is the cutback
// precondition evidence.
const TagBlueprint = "dr:blueprint"

// Tag is a key/value resource tag.
type Tag struct {
	Key   string `dynamodbav:"key" json:"key"`
	Value string `dynamodbav:"value" json:"value"`
}

// ConfiguredTag returns the configured marker stamped with the current time.
func ConfiguredTag() Tag {
	return Tag{Key: TagBlueprint, Value: time.Now().Format(time.RFC3339)}
}

// Blueprint is the target-side launch specification for one machine, keyed by
// (project ID, machine ID).
type Blueprint struct {
	ID              string                  `dynamodbav:"id" json:"id"`
	MachineID       string                  `dynamodbav:"machineId" json:"machineId"`
	Name            string                  `dynamodbav:"name" json:"name"`
	OSName          string                  `dynamodbav:"osName" json:"osName"`
	Cpus            int                     `dynamodbav:"cpus" json:"cpus"`
	MemoryBytes     int64                   `dynamodbav:"memory" json:"memory"`
	PublicSubnet    bool                    `dynamodbav:"publicSubnet" json:"publicSubnet"`
	IamRole         string                  `dynamodbav:"iamRole" json:"iamRole"`
	InstanceType    string                  `dynamodbav:"instanceType" json:"instanceType"`
	SubnetID        string                  `dynamodbav:"subnetId" json:"subnetId"`
	IPAddress       string                  `dynamodbav:"ipAddress" json:"ipAddress"`
	Disks           []string                `dynamodbav:"disks" json:"disks"`
	DiskIops        int                     `dynamodbav:"diskIops" json:"diskIops"`
	DiskType        compute.DiskType        `dynamodbav:"diskType" json:"diskType"`
	SecurityGroups  []network.SecurityGroup `dynamodbav:"securityGroups" json:"securityGroups"`
	Tags            []Tag                   `dynamodbav:"tags" json:"tags"`
	CreatedDate     time.Time               `dynamodbav:"createdDate" json:"createdDate"`
	LastUpdatedDate time.Time               `dynamodbav:"lastUpdatedDate" json:"lastUpdatedDate"`
}

// Configured reports whether the blueprint carries the configured marker.
func (b *Blueprint) Configured() bool {
	for _, tag := range b.Tags {
		if tag.Key == TagBlueprint {
			return true
		}
	}
	return false
}

// SecurityGroupIDs returns the IDs of the blueprint's security groups.
func (b *Blueprint) SecurityGroupIDs() []string {
	ids := make([]string, len(b.SecurityGroups))
	for i, g := range b.SecurityGroups {
		ids[i] = g.ID
	}
	return ids
}

// LaunchSpec is the payload submitted to the provisioning function.
type LaunchSpec struct {
	ProjectID        string           `json:"projectId"`
	MachineID        string           `json:"machineId"`
	SubnetID         string           `json:"subnetId"`
	SecurityGroupIDs []string         `json:"securityGroupIds"`
	PrivateIP        string           `json:"privateIp"`
	InstanceType     string           `json:"instanceType"`
	Tags             []Tag            `json:"tags"`
	Disks            []string         `json:"disks"`
	DiskIops         int              `json:"diskIops,omitempty"`
	DiskType         compute.DiskType `json:"diskType,omitempty"`
	IamRole          string           `json:"iamRole"`
}

// TranslateDeviceName rewrites a source block-device name to the target
// naming convention: /dev/sdX becomes /dev/xvdX. The substitution is a fixed
// one-to-one prefix rename, case sensitive, with no other character changes.
func TranslateDeviceName(name string) string {
	return strings.Replace(name, "/dev/sd", "/dev/xvd", 1)
}
