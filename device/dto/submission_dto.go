// Package dto holds data transfer objects crossing the device service
// boundary.
package dto

// DeviceSubmissionDTO is a create or update request for a device.
type DeviceSubmissionDTO struct {
	Name        string
	Description string
	PrimaryKind string
	// Code is the descriptor document as JSON text.
	Code string
	// FullCode marks a descriptor that fully describes the device, so no
	// package archive is required.
	FullCode bool
	// Approve requests that the new version be approved immediately.
	Approve bool
	// Package is the zip archive of the device implementation.
	Package []byte
}

// DeviceSourceDTO is a device together with its current descriptor, used
// to pre-fill an edit.
type DeviceSourceDTO struct {
	ID          int64
	Name        string
	Description string
	PrimaryKind string
	FullCode    bool
	// Code is the descriptor, indented when it parses as JSON.
	Code string
}
