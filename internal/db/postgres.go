package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/drazisil/mcos-sub001/internal/model"
)

// PostgresStore реализует Store поверх pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and returns a Store handle.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Pool returns the underlying pgx pool (for goose migrations).
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// FindUserByCredentials resolves username/password against the users
// table. The stored hash is bcrypt.
func (s *PostgresStore) FindUserByCredentials(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.ToLower(username)
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, customer_id, created_at
		 FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CustomerID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user %q: %w", username, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrNotFound
	}
	return &u, nil
}

// UpsertSession inserts or replaces the session row for a context id.
// INSERT ... ON CONFLICT keeps concurrent logins race-free.
func (s *PostgresStore) UpsertSession(ctx context.Context, contextID string, customerID, profileID uint32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (context_id, customer_id, profile_id, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (context_id) DO UPDATE
		 SET customer_id = EXCLUDED.customer_id,
		     profile_id = EXCLUDED.profile_id,
		     updated_at = EXCLUDED.updated_at`,
		contextID, customerID, profileID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting session %q: %w", contextID, err)
	}
	return nil
}

// FindSessionByContext resolves a context id or returns ErrNotFound.
func (s *PostgresStore) FindSessionByContext(ctx context.Context, contextID string) (*model.Session, error) {
	var row model.Session
	err := s.pool.QueryRow(ctx,
		`SELECT context_id, customer_id, user_id, profile_id, updated_at
		 FROM sessions WHERE context_id = $1`, contextID,
	).Scan(&row.ContextID, &row.CustomerID, &row.UserID, &row.ProfileID, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying session %q: %w", contextID, err)
	}
	return &row, nil
}

// GetProfilesForCustomer returns every profile the customer owns.
func (s *PostgresStore) GetProfilesForCustomer(ctx context.Context, customerID uint32) ([]*model.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT profile_id, customer_id, profile_name, shard_id, profile_level,
		        game_blob, personal_blob, picture_blob, created_at
		 FROM profiles WHERE customer_id = $1 ORDER BY profile_id`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying profiles for customer %d: %w", customerID, err)
	}
	defer rows.Close()

	var out []*model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ProfileID, &p.CustomerID, &p.ProfileName, &p.ShardID, &p.ProfileLevel,
			&p.GameBlob, &p.PersonalBlob, &p.PictureBlob, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profile rows: %w", err)
	}
	return out, nil
}

// GetProfile returns one profile or ErrNotFound.
func (s *PostgresStore) GetProfile(ctx context.Context, profileID uint32) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT profile_id, customer_id, profile_name, shard_id, profile_level,
		        game_blob, personal_blob, picture_blob, created_at
		 FROM profiles WHERE profile_id = $1`, profileID,
	).Scan(&p.ProfileID, &p.CustomerID, &p.ProfileName, &p.ShardID, &p.ProfileLevel,
		&p.GameBlob, &p.PersonalBlob, &p.PictureBlob, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying profile %d: %w", profileID, err)
	}
	return &p, nil
}

// CreateProfile inserts a new profile and fills in the assigned id.
func (s *PostgresStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO profiles (customer_id, profile_name, shard_id, profile_level,
		                       game_blob, personal_blob, picture_blob, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING profile_id`,
		p.CustomerID, p.ProfileName, p.ShardID, p.ProfileLevel,
		p.GameBlob, p.PersonalBlob, p.PictureBlob, time.Now(),
	).Scan(&p.ProfileID)
	if err != nil {
		return fmt.Errorf("creating profile %q: %w", p.ProfileName, err)
	}
	return nil
}

// DeleteProfile removes a profile; missing ids are ErrNotFound.
func (s *PostgresStore) DeleteProfile(ctx context.Context, profileID uint32) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE profile_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("deleting profile %d: %w", profileID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileNameInUse reports whether any profile already carries the name.
func (s *PostgresStore) ProfileNameInUse(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE lower(profile_name) = lower($1))`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking profile name %q: %w", name, err)
	}
	return exists, nil
}

// VehiclesForPersona returns every vehicle the persona owns.
func (s *PostgresStore) VehiclesForPersona(ctx context.Context, personaID uint32) ([]*model.Vehicle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vehicle_id, persona_id, branded_part_id, skin_id
		 FROM vehicles WHERE persona_id = $1 ORDER BY vehicle_id`, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying vehicles for persona %d: %w", personaID, err)
	}
	defer rows.Close()

	var out []*model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.VehicleID, &v.PersonaID, &v.BrandedPartID, &v.SkinID); err != nil {
			return nil, fmt.Errorf("scanning vehicle row: %w", err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vehicle rows: %w", err)
	}
	return out, nil
}

// PartsForVehicle returns the part tree rooted at the vehicle.
func (s *PostgresStore) PartsForVehicle(ctx context.Context, vehicleID uint32) ([]*model.Part, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT part_id, parent_part_id, vehicle_id, branded_part_id, owner_id
		 FROM parts WHERE vehicle_id = $1 ORDER BY part_id`, vehicleID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying parts for vehicle %d: %w", vehicleID, err)
	}
	defer rows.Close()

	var out []*model.Part
	for rows.Next() {
		var p model.Part
		if err := rows.Scan(&p.PartID, &p.ParentPartID, &p.VehicleID, &p.BrandedPartID, &p.OwnerID); err != nil {
			return nil, fmt.Errorf("scanning part row: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating part rows: %w", err)
	}
	return out, nil
}

// GetVehicle returns one vehicle or ErrNotFound.
func (s *PostgresStore) GetVehicle(ctx context.Context, vehicleID uint32) (*model.Vehicle, error) {
	var v model.Vehicle
	err := s.pool.QueryRow(ctx,
		`SELECT vehicle_id, persona_id, branded_part_id, skin_id
		 FROM vehicles WHERE vehicle_id = $1`, vehicleID,
	).Scan(&v.VehicleID, &v.PersonaID, &v.BrandedPartID, &v.SkinID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying vehicle %d: %w", vehicleID, err)
	}
	return &v, nil
}

// PurchaseStockCar creates a vehicle and its root part in one
// transaction.
func (s *PostgresStore) PurchaseStockCar(ctx context.Context, personaID, brandedPartID, skinID uint32) (*model.Vehicle, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning purchase: %w", err)
	}
	defer tx.Rollback(ctx)

	v := &model.Vehicle{PersonaID: personaID, BrandedPartID: brandedPartID, SkinID: skinID}
	err = tx.QueryRow(ctx,
		`INSERT INTO vehicles (persona_id, branded_part_id, skin_id)
		 VALUES ($1, $2, $3) RETURNING vehicle_id`,
		personaID, brandedPartID, skinID,
	).Scan(&v.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("inserting vehicle: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO parts (parent_part_id, vehicle_id, branded_part_id, owner_id)
		 VALUES (0, $1, $2, $3)`,
		v.VehicleID, brandedPartID, personaID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting root part: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing purchase: %w", err)
	}
	return v, nil
}
