package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidUser is returned when a user record fails validation.
// Validation happens before any store interaction.
var ErrInvalidUser = errors.New("invalid user")

// ErrIDAlreadyAssigned is returned when AssignID is called on a user that
// already carries a store-assigned identifier.
var ErrIDAlreadyAssigned = errors.New("user id already assigned")

var validate = validator.New(validator.WithRequiredStructEnabled())

// userFields mirrors the persisted columns for validation.
type userFields struct {
	Username  string    `validate:"required,max=255"`
	Email     string    `validate:"required,email,max=255"`
	CreatedAt time.Time `validate:"required"`
}

// User represents one user record destined for the users table.
//
// All fields except the identifier are fixed at construction. The identifier
// is zero until the store assigns it after a single-record insert; batch
// inserts leave it unset.
type User struct {
	id        int64
	username  string
	email     string
	createdAt time.Time
}

// NewUser creates a new User entity with validation.
// A zero createdAt defaults to the current time in UTC.
func NewUser(username, email string, createdAt time.Time) (*User, error) {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	u := &User{
		username:  username,
		email:     email,
		createdAt: createdAt,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks the record fields. It is safe to call on a zero User,
// which always fails.
func (u *User) Validate() error {
	if u == nil {
		return fmt.Errorf("%w: nil user", ErrInvalidUser)
	}
	err := validate.Struct(userFields{
		Username:  u.username,
		Email:     u.email,
		CreatedAt: u.createdAt,
	})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: %s failed on %q", ErrInvalidUser, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidUser, err)
}

// ID returns the store-assigned identifier, or 0 if none has been assigned.
func (u *User) ID() int64 { return u.id }

func (u *User) Username() string { return u.username }

func (u *User) Email() string { return u.email }

func (u *User) CreatedAt() time.Time { return u.createdAt }

// AssignID records the identifier generated by the store.
// It can only be called once per user.
func (u *User) AssignID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("id must be positive, got %d", id)
	}
	if u.id != 0 {
		return fmt.Errorf("%w: %d", ErrIDAlreadyAssigned, u.id)
	}
	u.id = id
	return nil
}
