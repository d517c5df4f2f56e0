// Package replication talks to the external replication service: the machines
// it replicates, the session it requires, and the source instances that
// qualify for agent installation.
package replication

import "time"

// ReplicationInfo is the replication progress of one machine. It is mutated
// continuously by the replication service and read-only here.
type ReplicationInfo struct {
	ReplicatedStorageBytes int64      `json:"replicatedStorageBytes"`
	TotalStorageBytes      int64      `json:"totalStorageBytes"`
	LastConsistencyTime    *time.Time `json:"lastConsistencyDateTime"`
}

// Progress returns the replicated fraction of total storage.
func (r ReplicationInfo) Progress() float64 {
	if r.TotalStorageBytes == 0 {
		return 0
	}
	return float64(r.ReplicatedStorageBytes) / float64(r.TotalStorageBytes)
}

// CPU is one processor package of the source machine.
type CPU struct {
	Cores int `json:"cores"`
}

// Disk is one block device of the source machine.
type Disk struct {
	Name string `json:"name"`
}

// SourceProperties describes the source machine's resource footprint.
type SourceProperties struct {
	Name        string `json:"name"`
	OS          string `json:"os"`
	MemoryBytes int64  `json:"memory"`
	CPU         []CPU  `json:"cpu"`
	Disks       []Disk `json:"disks"`
}

// Cores returns the core count of the first processor package, defaulting to
// one when the inventory carries no CPU entries.
func (p SourceProperties) Cores() int {
	if len(p.CPU) == 0 {
		return 1
	}
	return p.CPU[0].Cores
}

// Machine is one replicated virtual machine owned by a replication item.
type Machine struct {
	ID               string           `json:"id"`
	SourceProperties SourceProperties `json:"sourceProperties"`
	ReplicationInfo  ReplicationInfo  `json:"replicationInfo"`
}
