// Package values holds immutable value objects of the device registry.
package values

import (
	"fmt"
	"strings"
)

// Tier is the developer status of a requester. Tiers are ordered.
type Tier int

const (
	TierUser Tier = iota
	TierDeveloper
	TierTrustedDeveloper
	TierAdmin
)

var tierNames = map[Tier]string{
	TierUser:             "user",
	TierDeveloper:        "developer",
	TierTrustedDeveloper: "trusted-developer",
	TierAdmin:            "admin",
}

// ParseTier converts a tier name such as "trusted-developer" to a Tier.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for tier, n := range tierNames {
		if n == name {
			return tier, nil
		}
	}
	return TierUser, fmt.Errorf("unknown developer tier %q", s)
}

func (t Tier) String() string {
	if n, ok := tierNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Requester identifies the organization and tier on whose behalf a
// submission is made.
type Requester struct {
	Organization int64
	Tier         Tier
}

// NewRequester creates a requester value.
func NewRequester(org int64, tier Tier) Requester {
	return Requester{Organization: org, Tier: tier}
}

// CanApprove reports whether submissions from this requester may be
// auto-approved.
func (r Requester) CanApprove() bool {
	return r.Tier >= TierTrustedDeveloper
}

// CanEdit reports whether the requester may modify a device owned by owner.
func (r Requester) CanEdit(owner int64) bool {
	return r.Organization == owner || r.Tier >= TierAdmin
}
