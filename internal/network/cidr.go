// Package network provides target-side network resource discovery: CIDR
// address allocation, subnet classification, free private IP search and
// security group lookup.
package network

import (
	"fmt"
	"math/rand"
	"net/netip"
)

// Cidr is an IPv4 network address range with deterministic enumeration of
// host addresses by index. It is used only to generate address candidates and
// is never persisted.
type Cidr struct {
	base uint32
	size int64
}

// ParseCidr parses an IPv4 CIDR block such as "10.0.1.0/24".
func ParseCidr(block string) (Cidr, error) {
	prefix, err := netip.ParsePrefix(block)
	if err != nil {
		return Cidr{}, fmt.Errorf("invalid CIDR block %q: %w", block, err)
	}
	if !prefix.Addr().Is4() {
		return Cidr{}, fmt.Errorf("CIDR block %q is not IPv4", block)
	}
	b := prefix.Masked().Addr().As4()
	base := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return Cidr{
		base: base,
		size: int64(1) << (32 - prefix.Bits()),
	}, nil
}

// Size returns the number of addresses in the range.
func (c Cidr) Size() int64 {
	return c.size
}

// Address returns the dotted-quad address at the given index within the range.
func (c Cidr) Address(index int64) string {
	a := c.base + uint32(index)
	return fmt.Sprintf("%d.%d.%d.%d", a>>24&0xff, a>>16&0xff, a>>8&0xff, a&0xff)
}

// Contains reports whether the dotted-quad address lies within the range.
func (c Cidr) Contains(address string) bool {
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is4() {
		return false
	}
	b := addr.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return v >= c.base && int64(v-c.base) < c.size
}

// FindUnusedAddresses draws uniformly random indices within the range and
// collects addresses that are neither in used nor already accepted, returning
// up to count+1 addresses. The extra address lets callers discard one
// reserved entry. Sampling attempts are bounded by the range size, so a
// densely populated or tiny range may yield fewer addresses than requested;
// callers must check the returned length.
func FindUnusedAddresses(cidr Cidr, used []string, count int) []string {
	usedSet := make(map[string]struct{}, len(used))
	for _, a := range used {
		usedSet[a] = struct{}{}
	}

	var unused []string
	size := cidr.Size()
	for i := int64(0); i < size; i++ {
		address := cidr.Address(rand.Int63n(size))
		if _, taken := usedSet[address]; taken {
			continue
		}
		// Sampling is with replacement; treat our own picks as used.
		usedSet[address] = struct{}{}
		unused = append(unused, address)
		if len(unused) > count {
			return unused
		}
	}
	return unused
}
