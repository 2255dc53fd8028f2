package model

import "time"

// Role names stored in the users table and carried in the JWT "role"
// claim.  ADMINISTRATOR bypasses ownership checks; OWNER sells monitor
// time; ADVERTISER places bids; ACCOUNTANT has read-only ledger access.
const (
	RoleAdministrator = "ADMINISTRATOR"
	RoleOwner         = "OWNER"
	RoleAdvertiser    = "ADVERTISER"
	RoleAccountant    = "ACCOUNTANT"
)

// User represents an application user record as stored in the `users`
// table.  Handlers define separate response types with JSON tags; this
// struct is used by the repository layer.
//
// Fields:
//  ID           - primary key identifier.
//  Email        - unique email address.
//  PasswordHash - bcrypt hashed password.
//  Role         - role name (see constants above).
//  IsActive     - whether the account is active.
//  CreatedAt    - timestamp of creation.
//  UpdatedAt    - timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        - primary key identifier.
//  UserID    - owner of the token.
//  TokenHash - SHA-256 hex digest of the token value.
//  ExpiresAt - expiration timestamp.
//  RevokedAt - when the token was revoked (nil if still active).
//  CreatedAt - timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
