package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/attr"
	"github.com/xraph/wormhole/internal/entity"
)

// ErrForbidden is returned when the acting account may not alter the target account.
var ErrForbidden = errors.New("wormhole: forbidden")

// Service provides administrative user operations.
type Service struct {
	store   Store
	ownerID int64
	logger  *slog.Logger
}

// NewService creates a user service. ownerID is the account allowed to alter
// moderators and itself.
func NewService(store Store, ownerID int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		ownerID: ownerID,
		logger:  logger,
	}
}

// Add registers a user.
func (svc *Service) Add(ctx context.Context, accountID int64, nickname, homeID string) (*User, error) {
	if err := validateNickname(nickname); err != nil {
		return nil, err
	}

	u := &User{
		Entity:    entity.New(),
		ID:        id.NewUserID(),
		AccountID: accountID,
		Nickname:  nickname,
		HomeID:    homeID,
	}
	if err := svc.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "user added", "account_id", accountID, "nickname", nickname)
	return u, nil
}

// Get returns a user by account.
func (svc *Service) Get(ctx context.Context, accountID int64) (*User, error) {
	return svc.store.GetUser(ctx, accountID)
}

// List returns all users.
func (svc *Service) List(ctx context.Context) ([]*User, error) {
	return svc.store.ListUsers(ctx)
}

// Remove deletes a user on behalf of actor.
func (svc *Service) Remove(ctx context.Context, actor, accountID int64) error {
	if err := svc.authorize(ctx, actor, accountID); err != nil {
		return err
	}
	if err := svc.store.DeleteUser(ctx, accountID); err != nil {
		return err
	}

	svc.logger.InfoContext(ctx, "user removed", "account_id", accountID, "actor", actor)
	return nil
}

// Set updates a single user attribute from its textual value on behalf of actor.
func (svc *Service) Set(ctx context.Context, actor, accountID int64, key, value string) (*User, error) {
	if err := svc.authorize(ctx, actor, accountID); err != nil {
		return nil, err
	}
	u, err := svc.store.GetUser(ctx, accountID)
	if err != nil {
		return nil, err
	}

	switch key {
	case "nickname":
		if err := validateNickname(value); err != nil {
			return nil, err
		}
		u.Nickname = value
	case "home_id":
		if _, err := attr.Int(value); err != nil {
			return nil, &ValidationError{Field: key, Message: err.Error()}
		}
		u.HomeID = strings.TrimSpace(value)
	case "mod", "readonly", "restricted":
		flag, err := attr.Flag(value)
		if err != nil {
			return nil, &ValidationError{Field: key, Message: err.Error()}
		}
		switch key {
		case "mod":
			u.Mod = flag
		case "readonly":
			u.Readonly = flag
		default:
			u.Restricted = flag
		}
	default:
		return nil, &ValidationError{Field: key, Message: "unknown attribute"}
	}
	u.Touch()

	if err := svc.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "user updated", "account_id", accountID, "key", key, "value", value, "actor", actor)
	return u, nil
}

// authorize applies the moderator rule: only the owner may alter moderator
// accounts or the owner account itself.
func (svc *Service) authorize(ctx context.Context, actor, target int64) error {
	if actor == svc.ownerID {
		return nil
	}
	if target == svc.ownerID {
		return ErrForbidden
	}
	u, err := svc.store.GetUser(ctx, target)
	if err != nil {
		return err
	}
	if u.Mod {
		return ErrForbidden
	}
	return nil
}

func validateNickname(nickname string) error {
	switch {
	case strings.TrimSpace(nickname) == "":
		return &ValidationError{Field: "nickname", Message: "is required"}
	case strings.ContainsAny(nickname, "()"):
		return &ValidationError{Field: "nickname", Message: "must not contain parentheses"}
	}
	return nil
}

// ValidationError indicates malformed administrative input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "user validation: " + e.Field + ": " + e.Message
}
