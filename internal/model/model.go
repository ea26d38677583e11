// Package model holds the storage-side records shared between the
// repositories and the sub-server handlers.
package model

import "time"

// User is one account in the user store.
type User struct {
	ID           uint32
	Username     string
	PasswordHash string
	CustomerID   uint32
	CreatedAt    time.Time
}

// Session is one login-issued session row, keyed by the context id the
// client carries between sub-servers.
type Session struct {
	ContextID  string
	CustomerID uint32
	UserID     uint32
	ProfileID  uint32
	UpdatedAt  time.Time
}

// Profile is a customer-owned game identity (persona).
type Profile struct {
	ProfileID    uint32
	CustomerID   uint32
	ProfileName  string
	ShardID      uint32
	ProfileLevel uint8
	GameBlob     []byte
	PersonalBlob []byte
	PictureBlob  []byte
	CreatedAt    time.Time
}

// Vehicle is a persona-owned car. Parts hang off it in a tree.
type Vehicle struct {
	VehicleID     uint32
	PersonaID     uint32
	BrandedPartID uint32
	SkinID        uint32
}

// Part is one node of a vehicle's part tree. The root part's
// ParentPartID is zero and its VehicleID links it to the vehicle.
type Part struct {
	PartID        uint32
	ParentPartID  uint32
	VehicleID     uint32
	BrandedPartID uint32
	OwnerID       uint32
}
