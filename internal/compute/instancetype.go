// Package compute maps a machine's resource footprint to target compute and
// storage tiers, constrained by what the target region actually offers.
package compute

// Tier is a coarse cost/performance category used to pick compute and disk types.
type Tier string

const (
	// Economy selects the smallest fitting type, capped at a mid-tier ceiling.
	Economy Tier = "economy"
	// Business selects the smallest fitting type without a ceiling.
	Business Tier = "business"
	// Customized uses a caller-supplied type name verbatim, validated against
	// the target region's offering.
	Customized Tier = "customized"
)

type instanceType struct {
	name      string
	cpus      int
	memoryGiB int64
}

// Ranked from smallest to largest capacity. Selection returns the smallest
// type whose CPU and memory both meet or exceed the request.
var rankedTypes = []instanceType{
	{"t2.micro", 1, 1},
	{"t2.small", 1, 2},
	{"t2.medium", 2, 4},
	{"t2.large", 2, 8},
	{"m5.large", 2, 8},
	{"m5.xlarge", 4, 16},
	{"m5.2xlarge", 8, 32},
	{"m5.4xlarge", 16, 64},
	{"m5.8xlarge", 32, 128},
	{"m5.12xlarge", 48, 192},
	{"m5.16xlarge", 64, 256},
	{"m5.24xlarge", 96, 384},
}

// EconomyCeiling is the largest type the economy tier ever recommends.
const EconomyCeiling = "t2.large"

// FindInstanceType returns the smallest ranked type satisfying the requested
// CPU count and memory, in GiB. The economy tier never recommends a type
// ranked above the ceiling regardless of the requested size. When no ranked
// type qualifies, the largest known type is returned.
func FindInstanceType(economy bool, cpus int, memoryGiB int64) string {
	for _, t := range rankedTypes {
		if economy && t.name == "m5.large" {
			// Everything ranked above the ceiling is out of reach for economy.
			return EconomyCeiling
		}
		if t.cpus >= cpus && t.memoryGiB >= memoryGiB {
			return t.name
		}
	}
	return rankedTypes[len(rankedTypes)-1].name
}
