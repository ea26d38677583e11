// Package db is the persistence layer: repository interfaces consumed by
// the sub-server handlers, a pgx-backed implementation, and an in-memory
// implementation used by tests and the dev bootstrap.
package db

import (
	"context"
	"errors"

	"github.com/drazisil/mcos-sub001/internal/model"
)

// ErrNotFound is returned when a lookup misses. Handlers translate it
// into the protocol-level "not found" reply where one is defined.
var ErrNotFound = errors.New("record not found")

// UserRepository resolves account credentials.
type UserRepository interface {
	// FindUserByCredentials returns the user matching username/password,
	// or ErrNotFound. Password comparison happens in the implementation.
	FindUserByCredentials(ctx context.Context, username, password string) (*model.User, error)
}

// SessionRepository persists the login-issued context rows.
type SessionRepository interface {
	UpsertSession(ctx context.Context, contextID string, customerID, profileID uint32) error
	// FindSessionByContext returns the session row for a context id,
	// or ErrNotFound.
	FindSessionByContext(ctx context.Context, contextID string) (*model.Session, error)
}

// ProfileRepository owns the persona store.
type ProfileRepository interface {
	GetProfilesForCustomer(ctx context.Context, customerID uint32) ([]*model.Profile, error)
	GetProfile(ctx context.Context, profileID uint32) (*model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	DeleteProfile(ctx context.Context, profileID uint32) error
	// ProfileNameInUse reports whether any customer already owns the name.
	ProfileNameInUse(ctx context.Context, name string) (bool, error)
}

// VehicleRepository owns the vehicle/part store. Vehicles are created on
// purchase and never physically deleted.
type VehicleRepository interface {
	VehiclesForPersona(ctx context.Context, personaID uint32) ([]*model.Vehicle, error)
	PartsForVehicle(ctx context.Context, vehicleID uint32) ([]*model.Part, error)
	GetVehicle(ctx context.Context, vehicleID uint32) (*model.Vehicle, error)
	// PurchaseStockCar creates a vehicle and its root part tree for the
	// persona and returns the new vehicle.
	PurchaseStockCar(ctx context.Context, personaID, brandedPartID, skinID uint32) (*model.Vehicle, error)
}

// Store bundles every repository the sub-servers consume.
type Store interface {
	UserRepository
	SessionRepository
	ProfileRepository
	VehicleRepository
}
