package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleAlumni UserRole = "alumni"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleAlumni
}

// User represents an application user. Admin users carry the branch they review.
type User struct {
	ID           string    `db:"id" json:"id" bson:"_id"`
	Name         string    `db:"name" json:"name" bson:"name"`
	Email        string    `db:"email" json:"email" bson:"email"`
	PasswordHash string    `db:"password_hash" json:"-" bson:"passwordHash"`
	Role         UserRole  `db:"role" json:"role" bson:"role"`
	Branch       Branch    `db:"branch" json:"branch" bson:"branch"`
	RollNo       string    `db:"roll_no" json:"rollNo" bson:"rollNo"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt" bson:"updatedAt"`
}

// Info converts the user into its public representation.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Branch: u.Branch,
		RollNo: u.RollNo,
	}
}
