package signup

import (
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

// User is the account record. It doubles as the session snapshot persisted
// on the client, so the password hash is never serialized.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string    `bun:"password,notnull" json:"-"`
	Announcements bool      `bun:"announcements,notnull,default:false" json:"announcements"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// Clone returns a copy of the snapshot.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// MarshalSnapshot serializes the user for persisted storage.
func MarshalSnapshot(u *User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalSnapshot parses a persisted user. A record without an email is
// rejected since it can not represent an account.
func UnmarshalSnapshot(raw string) (*User, error) {
	u := &User{}
	if err := json.Unmarshal([]byte(raw), u); err != nil {
		return nil, err
	}
	if strings.TrimSpace(u.Email) == "" {
		return nil, ErrCorruptSnapshot
	}
	return u, nil
}

// SignUpRequest is the create account payload.
type SignUpRequest struct {
	Email         string `form:"email" json:"email"`
	Password      string `form:"password" json:"password"`
	Announcements bool   `form:"announcements" json:"announcements"`
}

// Validate checks the presence rules enforced by the account service.
func (r SignUpRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Email is required")),
		validation.Field(&r.Password, validation.Required.Error("Password is required")),
	)
	if err != nil {
		return ValidationErrorFromOzzo(err)
	}
	return nil
}

// String hides the password.
func (r SignUpRequest) String() string {
	return "SignUpRequest{email=" + r.Email + ", announcements=" + boolString(r.Announcements) + "}"
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
