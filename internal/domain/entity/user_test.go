package entity

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewUser(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		username    string
		email       string
		createdAt   time.Time
		wantErr     bool
		errContains string
	}{
		{
			name:      "valid user",
			username:  "user1",
			email:     "user1@example.com",
			createdAt: createdAt,
			wantErr:   false,
		},
		{
			name:        "empty username",
			username:    "",
			email:       "user1@example.com",
			createdAt:   createdAt,
			wantErr:     true,
			errContains: "Username",
		},
		{
			name:        "empty email",
			username:    "user1",
			email:       "",
			createdAt:   createdAt,
			wantErr:     true,
			errContains: "Email",
		},
		{
			name:        "malformed email",
			username:    "user1",
			email:       "not-an-email",
			createdAt:   createdAt,
			wantErr:     true,
			errContains: `"email"`,
		},
		{
			name:        "username too long",
			username:    strings.Repeat("a", 256),
			email:       "user1@example.com",
			createdAt:   createdAt,
			wantErr:     true,
			errContains: `"max"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := NewUser(tt.username, tt.email, tt.createdAt)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidUser) {
					t.Errorf("expected ErrInvalidUser, got %v", err)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.Username() != tt.username {
				t.Errorf("Username = %q, want %q", user.Username(), tt.username)
			}
			if user.Email() != tt.email {
				t.Errorf("Email = %q, want %q", user.Email(), tt.email)
			}
			if !user.CreatedAt().Equal(tt.createdAt) {
				t.Errorf("CreatedAt = %v, want %v", user.CreatedAt(), tt.createdAt)
			}
			if user.ID() != 0 {
				t.Errorf("ID = %d, want 0 before insert", user.ID())
			}
		})
	}
}

func TestNewUser_DefaultsCreatedAt(t *testing.T) {
	before := time.Now().UTC()
	user, err := NewUser("user1", "user1@example.com", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.CreatedAt().Before(before) {
		t.Errorf("CreatedAt %v is before construction time %v", user.CreatedAt(), before)
	}
	if user.CreatedAt().Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", user.CreatedAt().Location())
	}
}

func TestUser_AssignID(t *testing.T) {
	user, err := NewUser("user1", "user1@example.com", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := user.AssignID(0); err == nil {
		t.Error("expected error for zero id")
	}
	if err := user.AssignID(42); err != nil {
		t.Fatalf("AssignID failed: %v", err)
	}
	if user.ID() != 42 {
		t.Errorf("ID = %d, want 42", user.ID())
	}

	err = user.AssignID(43)
	if !errors.Is(err, ErrIDAlreadyAssigned) {
		t.Errorf("expected ErrIDAlreadyAssigned, got %v", err)
	}
	if user.ID() != 42 {
		t.Errorf("ID changed to %d after second AssignID", user.ID())
	}
}

func TestUser_ValidateZeroValue(t *testing.T) {
	var nilUser *User
	if err := nilUser.Validate(); !errors.Is(err, ErrInvalidUser) {
		t.Errorf("nil user: expected ErrInvalidUser, got %v", err)
	}
	if err := (&User{}).Validate(); !errors.Is(err, ErrInvalidUser) {
		t.Errorf("zero user: expected ErrInvalidUser, got %v", err)
	}
}
