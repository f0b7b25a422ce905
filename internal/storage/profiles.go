package storage

import "context"

// EnsureProfile creates the profile row on first contact and bumps last_seen
// on every later call. Writes reference profiles, so handlers call this first.
func (db *DB) EnsureProfile(ctx context.Context, profileID int) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO profiles (id)
		VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET last_seen = NOW()
	`, profileID)
	return err
}
