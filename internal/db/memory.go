package db

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/drazisil/mcos-sub001/internal/model"
)

// MemoryStore реализует Store в памяти. Используется unit-тестами и
// dev-бутстрапом (storage: memory) вместо PostgreSQL.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*model.User // key: lowercase username
	sessions map[string]*model.Session
	profiles map[uint32]*model.Profile
	vehicles map[uint32]*model.Vehicle
	parts    map[uint32]*model.Part

	nextProfileID uint32
	nextVehicleID uint32
	nextPartID    uint32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		sessions:      make(map[string]*model.Session),
		profiles:      make(map[uint32]*model.Profile),
		vehicles:      make(map[uint32]*model.Vehicle),
		parts:         make(map[uint32]*model.Part),
		nextProfileID: 1000,
		nextVehicleID: 5000,
		nextPartID:    9000,
	}
}

// NewFixtureStore returns a MemoryStore seeded with the well-known dev
// accounts and login contexts the legacy tooling expects.
func NewFixtureStore() *MemoryStore {
	s := NewMemoryStore()
	s.AddUser(&model.User{ID: 1, Username: "admin", CustomerID: 5551212}, "admin")
	s.AddUser(&model.User{ID: 2, Username: "player2", CustomerID: 2885746688}, "player2")
	s.sessions["d316cd2dd6bf870893dfbaaf17f965884e"] = &model.Session{
		ContextID:  "d316cd2dd6bf870893dfbaaf17f965884e",
		CustomerID: 5551212,
		UserID:     1,
		UpdatedAt:  time.Now(),
	}
	s.sessions["5213dee3a6bcdb133373b2d4f3b9962758"] = &model.Session{
		ContextID:  "5213dee3a6bcdb133373b2d4f3b9962758",
		CustomerID: 2885746688,
		UserID:     2,
		UpdatedAt:  time.Now(),
	}
	return s
}

// AddUser hashes the password and stores the user.
func (s *MemoryStore) AddUser(u *model.User, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		// bcrypt only fails on oversized input, fixture passwords are short
		panic(err)
	}
	u.PasswordHash = string(hash)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(u.Username)] = u
}

// AddProfile stores a profile with an assigned id.
func (s *MemoryStore) AddProfile(p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ProfileID == 0 {
		p.ProfileID = s.nextProfileID
		s.nextProfileID++
	}
	s.profiles[p.ProfileID] = p
}

// FindUserByCredentials resolves username/password, comparing against the
// stored bcrypt hash.
func (s *MemoryStore) FindUserByCredentials(_ context.Context, username, password string) (*model.User, error) {
	s.mu.RLock()
	u, ok := s.users[strings.ToLower(username)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// UpsertSession stores or replaces the row for a context id.
func (s *MemoryStore) UpsertSession(_ context.Context, contextID string, customerID, profileID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[contextID]
	if !ok {
		row = &model.Session{ContextID: contextID}
		s.sessions[contextID] = row
	}
	row.CustomerID = customerID
	row.ProfileID = profileID
	row.UpdatedAt = time.Now()
	return nil
}

// FindSessionByContext resolves a context id or returns ErrNotFound.
func (s *MemoryStore) FindSessionByContext(_ context.Context, contextID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.sessions[contextID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *row
	return &out, nil
}

// GetProfilesForCustomer returns every profile the customer owns. An
// empty result is valid: a customer may own zero profiles.
func (s *MemoryStore) GetProfilesForCustomer(_ context.Context, customerID uint32) ([]*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Profile
	for _, p := range s.profiles {
		if p.CustomerID == customerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetProfile returns one profile or ErrNotFound.
func (s *MemoryStore) GetProfile(_ context.Context, profileID uint32) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

// CreateProfile stores a new profile, assigning the id when zero.
func (s *MemoryStore) CreateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ProfileID == 0 {
		p.ProfileID = s.nextProfileID
		s.nextProfileID++
	}
	cp := *p
	cp.CreatedAt = time.Now()
	s.profiles[cp.ProfileID] = &cp
	return nil
}

// DeleteProfile removes a profile; missing ids are ErrNotFound.
func (s *MemoryStore) DeleteProfile(_ context.Context, profileID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return ErrNotFound
	}
	delete(s.profiles, profileID)
	return nil
}

// ProfileNameInUse reports whether any profile already carries the name.
func (s *MemoryStore) ProfileNameInUse(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.ProfileName, name) {
			return true, nil
		}
	}
	return false, nil
}

// VehiclesForPersona returns every vehicle the persona owns.
func (s *MemoryStore) VehiclesForPersona(_ context.Context, personaID uint32) ([]*model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Vehicle
	for _, v := range s.vehicles {
		if v.PersonaID == personaID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

// PartsForVehicle returns the part tree rooted at the vehicle.
func (s *MemoryStore) PartsForVehicle(_ context.Context, vehicleID uint32) ([]*model.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Part
	for _, p := range s.parts {
		if p.VehicleID == vehicleID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetVehicle returns one vehicle or ErrNotFound.
func (s *MemoryStore) GetVehicle(_ context.Context, vehicleID uint32) (*model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *v
	return &out, nil
}

// PurchaseStockCar creates the vehicle and its root part.
func (s *MemoryStore) PurchaseStockCar(_ context.Context, personaID, brandedPartID, skinID uint32) (*model.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &model.Vehicle{
		VehicleID:     s.nextVehicleID,
		PersonaID:     personaID,
		BrandedPartID: brandedPartID,
		SkinID:        skinID,
	}
	s.nextVehicleID++
	s.vehicles[v.VehicleID] = v

	root := &model.Part{
		PartID:        s.nextPartID,
		ParentPartID:  0,
		VehicleID:     v.VehicleID,
		BrandedPartID: brandedPartID,
		OwnerID:       personaID,
	}
	s.nextPartID++
	s.parts[root.PartID] = root

	out := *v
	return &out, nil
}
