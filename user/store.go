package user

import "context"

// Store defines the persistence contract for users.
type Store interface {
	// CreateUser persists a new user. Account IDs and nicknames are unique.
	CreateUser(ctx context.Context, u *User) error

	// GetUser returns a user by platform account.
	GetUser(ctx context.Context, accountID int64) (*User, error)

	// GetUserByNickname returns a user by nickname.
	GetUserByNickname(ctx context.Context, nickname string) (*User, error)

	// UpdateUser replaces a stored user.
	UpdateUser(ctx context.Context, u *User) error

	// DeleteUser removes a user.
	DeleteUser(ctx context.Context, accountID int64) error

	// ListUsers returns all users ordered by account ID.
	ListUsers(ctx context.Context) ([]*User, error)
}
