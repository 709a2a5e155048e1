package model

// User holds login credentials. Role selects which profile table the user's
// details live in.
type User struct {
	Base
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         Role   `db:"role" json:"role"`
}
