package compute

// DiskType is a target-side volume type.
type DiskType string

const (
	DiskStandard       DiskType = "STANDARD"
	DiskSSD            DiskType = "SSD"
	DiskGP3            DiskType = "GP3"
	DiskProvisionedSSD DiskType = "PROVISIONED_SSD"
	DiskProvisionedIO2 DiskType = "PROVISIONED_IO2"
)

// DiskTypeFor maps a tier to its volume type. All disk-type tiers are
// universally offered, so no regional fallback is needed.
func DiskTypeFor(tier Tier) DiskType {
	switch tier {
	case Business:
		return DiskSSD
	case Customized:
		return DiskProvisionedSSD
	default:
		return DiskStandard
	}
}
