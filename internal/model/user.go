package model

import "time"

// Roles carried in access tokens.  Administrators manage screenings
// and may act on any reservation; users act only on their own.
const (
    RoleUser  = "USER"
    RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the
// `users` table.  Authentication itself is handled at the edge; the
// reservation core only ever sees the (ID, Role) pair of an Actor.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – USER or ADMIN.
//  CreatedAt    – timestamp of creation.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    CreatedAt    time.Time // users.created_at
}

// Actor is the verified caller of a core operation.  It is built per
// request from the access token and passed explicitly into every call.
type Actor struct {
    UserID uint64
    Role   string
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
