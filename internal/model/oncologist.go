package model

import "strings"

// Oncologist is the login/identity record. Stored in clear text because it
// is the credential table itself; only the password hash is one-way.
type Oncologist struct {
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	FullName     string `db:"full_name" json:"full_name"`
	IsAdmin      bool   `db:"is_admin" json:"is_admin"`
}

// LastName returns the capitalized last word of the full name, used for the
// toolbar display ("Dr. <LastName>").
func (o *Oncologist) LastName() string {
	parts := strings.Fields(o.FullName)
	if len(parts) == 0 {
		return ""
	}
	last := parts[len(parts)-1]
	return strings.ToUpper(last[:1]) + strings.ToLower(last[1:])
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterOncologistRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	IsAdmin  bool   `json:"is_admin"`
}
