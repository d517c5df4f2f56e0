package compute

import "testing"

func TestFindInstanceType(t *testing.T) {
	tests := []struct {
		name      string
		economy   bool
		cpus      int
		memoryGiB int64
		want      string
	}{
		{"smallest fit", false, 1, 1, "t2.micro"},
		{"memory drives selection", false, 1, 4, "t2.medium"},
		{"cpu drives selection", false, 2, 1, "t2.medium"},
		{"business large machine", false, 16, 64, "m5.4xlarge"},
		{"business beyond largest", false, 128, 512, "m5.24xlarge"},
		{"economy small fit", true, 1, 2, "t2.small"},
		{"economy capped at ceiling", true, 8, 32, EconomyCeiling},
		{"economy huge machine still capped", true, 96, 384, EconomyCeiling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindInstanceType(tt.economy, tt.cpus, tt.memoryGiB)
			if got != tt.want {
				t.Errorf("FindInstanceType(%t, %d, %d) = %s, want %s",
					tt.economy, tt.cpus, tt.memoryGiB, got, tt.want)
			}
		})
	}
}

func TestDiskTypeFor(t *testing.T) {
	tests := []struct {
		tier Tier
		want DiskType
	}{
		{Economy, DiskStandard},
		{Business, DiskSSD},
		{Customized, DiskProvisionedSSD},
		{Tier("unknown"), DiskStandard},
	}
	for _, tt := range tests {
		if got := DiskTypeFor(tt.tier); got != tt.want {
			t.Errorf("DiskTypeFor(%s) = %s, want %s", tt.tier, got, tt.want)
		}
	}
}
