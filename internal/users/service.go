package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/access"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/outbox"
	"github.com/angelmondragon/orderdesk/pkg/security"
	"github.com/angelmondragon/orderdesk/pkg/validate"
)

// RegisterInput carries a new account request.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UserDTO is the read model for identity operations.
type UserDTO struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	Status    enums.UserStatus `json:"status"`
	Roles     []string         `json:"roles,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// RoleAssignedEvent is recorded when a user gains a role.
type RoleAssignedEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	RoleName string    `json:"role_name"`
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes identity and role management operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*UserDTO, error)
	Authenticate(ctx context.Context, email, password string) (*UserDTO, error)
	AssignRole(ctx context.Context, userID uuid.UUID, roleName enums.RoleName) error
	RoleSet(ctx context.Context, userID uuid.UUID) (access.RoleSet, error)
	ActorFor(ctx context.Context, userID uuid.UUID) (access.Actor, error)
	Deactivate(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	SeedRoles(ctx context.Context) error
	DeleteRole(ctx context.Context, roleName string) error
}

type service struct {
	repo        *Repository
	dbClient    *db.Client
	outbox      outboxPublisher
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewService constructs the identity service.
func NewService(repo *Repository, dbClient *db.Client, publisher outboxPublisher, passwordCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:        repo,
		dbClient:    dbClient,
		outbox:      publisher,
		passwordCfg: passwordCfg,
		logg:        logg,
	}, nil
}

// Register creates an account. Emails are lowercased before the uniqueness
// check so casing variants collide.
func (s *service) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	if err := validate.Struct(&input); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		Status:       enums.UserStatusActive,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	}
	return s.toDTO(ctx, user)
}

// Authenticate verifies credentials against the stored argon2id hash.
// Disabled accounts are rejected even with a correct password.
func (s *service) Authenticate(ctx context.Context, email, password string) (*UserDTO, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "invalid credentials")
		}
		return nil, err
	}
	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "invalid credentials")
	}
	if user.Status != enums.UserStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}
	return s.toDTO(ctx, user)
}

// AssignRole grants the role as a set union: assigning a role the user
// already holds changes nothing and reports success. The upsert decides
// within the transaction whether this call performed the grant, so exactly
// one role_assigned event is recorded per grant even under concurrent
// duplicate requests.
func (s *service) AssignRole(ctx context.Context, userID uuid.UUID, roleName enums.RoleName) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		user, err := repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		role, err := repo.FindRoleByName(ctx, string(roleName))
		if err != nil {
			return err
		}

		granted, err := repo.UpsertAssignment(ctx, &models.UserRole{UserID: user.ID, RoleID: role.ID})
		if err != nil {
			return err
		}
		if !granted {
			return nil
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoleAssigned,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Version:       1,
			Data:          RoleAssignedEvent{UserID: user.ID, RoleName: role.Name},
		})
	})
}

// RoleSet resolves the user's role names for the access guard.
func (s *service) RoleSet(ctx context.Context, userID uuid.UUID) (access.RoleSet, error) {
	names, err := s.repo.RoleNamesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(access.RoleSet, len(names))
	for _, name := range names {
		set[enums.RoleName(name)] = struct{}{}
	}
	return set, nil
}

// ActorFor builds the access-guard principal for the user.
func (s *service) ActorFor(ctx context.Context, userID uuid.UUID) (access.Actor, error) {
	roles, err := s.RoleSet(ctx, userID)
	if err != nil {
		return access.Actor{}, err
	}
	return access.Actor{UserID: userID, Roles: roles}, nil
}

// Deactivate disables the account. Orders keep referencing the user; rows
// are never removed.
func (s *service) Deactivate(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status != enums.UserStatusDisabled {
		user.Status = enums.UserStatusDisabled
		if err := s.repo.SaveUser(ctx, user); err != nil {
			return nil, err
		}
		if s.logg != nil {
			s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "user deactivated")
		}
	}
	return s.toDTO(ctx, user)
}

// SeedRoles bootstraps the built-in roles. Safe to run repeatedly.
func (s *service) SeedRoles(ctx context.Context) error {
	seeds := []models.Role{
		{Name: string(enums.RoleAdmin), Description: "full access to every order and the catalog"},
		{Name: string(enums.RoleCustomer), Description: "places and manages own orders"},
	}
	for _, seed := range seeds {
		if _, err := s.repo.FindRoleByName(ctx, seed.Name); err == nil {
			continue
		} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		role := seed
		if err := s.repo.CreateRole(ctx, &role); err != nil {
			if db.IsUniqueViolation(err, "") {
				continue
			}
			return err
		}
	}
	return nil
}

// DeleteRole removes a role that no user holds. Held roles are protected.
func (s *service) DeleteRole(ctx context.Context, roleName string) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		role, err := repo.FindRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		assignments, err := repo.CountRoleAssignments(ctx, role.ID)
		if err != nil {
			return err
		}
		if assignments > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "role is still assigned to users")
		}
		return repo.DeleteRole(ctx, role.ID)
	})
}

func (s *service) toDTO(ctx context.Context, user *models.User) (*UserDTO, error) {
	names, err := s.repo.RoleNamesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		Status:    user.Status,
		Roles:     names,
		CreatedAt: user.CreatedAt,
	}, nil
}
