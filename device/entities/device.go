package entities

import "slices"

// DeviceRecord is the registry entry of a submitted device.
type DeviceRecord struct {
	ID               int64
	PrimaryKind      string
	GlobalName       string
	Name             string
	Description      string
	FullCode         bool
	Owner            int64
	DeveloperVersion int
	// ApprovedVersion is nil while no version has been approved.
	ApprovedVersion *int
	Kinds           []string
	ChildKinds      []string
}

// IsOnlineAccount reports whether the device implements the online-account
// interface.
func (d DeviceRecord) IsOnlineAccount() bool {
	return slices.Contains(d.Kinds, TagOnlineAccount)
}

// IsApproved reports whether any version is approved.
func (d DeviceRecord) IsApproved() bool {
	return d.ApprovedVersion != nil
}
