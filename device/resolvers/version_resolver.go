// Package resolvers picks a stored package version for a constraint.
package resolvers

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// Latest selects the highest stored version.
const Latest = "latest"

// VersionResolver maps a constraint onto the developer versions stored for
// a device package.
//
// Developer versions are plain integers. Each one is treated as the major
// component of a semantic version, so "3" means 3.0.0 and ">=2, <5" selects
// among versions 2 through 4.
type VersionResolver struct{}

// NewVersionResolver creates a VersionResolver.
func NewVersionResolver() *VersionResolver {
	return &VersionResolver{}
}

// Resolve returns the highest available version satisfying constraint.
// An empty constraint behaves like "latest".
func (r *VersionResolver) Resolve(constraint string, available []int) (int, error) {
	var c *semver.Constraints
	var err error

	switch constraint {
	case "", Latest:
		c, err = semver.NewConstraint(">= 0")
	default:
		if n, convErr := strconv.Atoi(constraint); convErr == nil {
			// bare integers are exact versions, not "1.x" ranges
			c, err = semver.NewConstraint("= " + strconv.Itoa(n) + ".0.0")
		} else {
			c, err = semver.NewConstraint(constraint)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}

	var valid []*semver.Version
	for _, n := range available {
		if n < 0 {
			continue
		}
		v := semver.New(uint64(n), 0, 0, "", "")
		if c.Check(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, fmt.Errorf("no version satisfies constraint %q from available options", constraint)
	}

	sort.Sort(semver.Collection(valid))
	return int(valid[len(valid)-1].Major()), nil
}
