package identity

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// User represents the users table
type User struct {
	ID             int            `db:"id" json:"id"`
	Email          string         `db:"email" json:"email"`
	PasswordDigest string         `db:"password_digest" json:"-"`
	DisplayName    string         `db:"display_name" json:"display_name"`
	Role           string         `db:"role" json:"role"`
	Permissions    pq.StringArray `db:"permissions" json:"permissions"`
	LastLoggedOn   sql.NullTime   `db:"last_logged_on" json:"last_logged_on,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
