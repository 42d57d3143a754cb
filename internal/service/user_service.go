package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/auth"
	"github.com/MohamedNashad/seafood-node-api/internal/mailer"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"go.uber.org/zap"
)

const (
	minPasswordLength       = 6
	generatedPasswordLength = 12
	mailTimeout             = 10 * time.Second
)

// UserService handles accounts and sessions. Account changes run as explicit steps:
// validate, hash, persist, then notify. Notification failures never fail the call.
type UserService struct {
	users      store.UserRepository
	access     *AccessControl
	dispatcher mailer.Dispatcher
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users store.UserRepository,
	access *AccessControl,
	dispatcher mailer.Dispatcher,
	tokens *auth.TokenManager,
	bcryptCost int,
) *UserService {
	return &UserService{
		users:      users,
		access:     access,
		dispatcher: dispatcher,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     util.GetLogger(),
	}
}

// UserInput is the payload for registering, creating or updating a user
type UserInput struct {
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
}

// LoginResult carries the session token for the HTTP layer to set as a cookie
type LoginResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (in *UserInput) normalize(requirePassword bool) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		in.Username = in.Email
	}

	fields := map[string]string{}
	if in.FirstName == "" {
		fields["first_name"] = "required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "must be a valid email address"
	}
	if requirePassword && len(in.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if !requirePassword && in.Password != "" && len(in.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid user", fields)
	}
	return nil
}

// Register creates a self-service account
func (s *UserService) Register(ctx context.Context, in UserInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Register")
	defer span.End()

	if err := in.normalize(true); err != nil {
		return nil, err
	}

	user, err := s.persistNew(ctx, in, nil)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	return user, nil
}

// Create adds an account on behalf of an administrator and mails the credentials.
// A password is generated when none is given.
func (s *UserService) Create(ctx context.Context, actorID string, in UserInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Create")
	defer span.End()

	if in.Password == "" {
		generated, err := auth.GeneratePassword(generatedPasswordLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		in.Password = generated
	}
	if err := in.normalize(true); err != nil {
		return nil, err
	}

	user, err := s.persistNew(ctx, in, optional(actorID))
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	s.notify(ctx, user.Email, "credentials", mailer.Credentials(user.FirstName, user.Email, in.Password))
	return user, nil
}

func (s *UserService) persistNew(ctx context.Context, in UserInput, actorID *string) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		CreatedBy:    actorID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created", zap.String("user_id", user.ID))
	return user, nil
}

// Update changes profile fields. A new password is re-hashed and mailed; sending the
// current password again changes nothing.
func (s *UserService) Update(ctx context.Context, actorID, userID string, in UserInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Update")
	defer span.End()

	if err := in.normalize(false); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	passwordChanged := false
	if in.Password != "" {
		same, err := auth.SamePassword(user.PasswordHash, in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to compare password: %w", err)
		}
		if !same {
			hash, err := auth.HashPassword(in.Password, s.bcryptCost)
			if err != nil {
				return nil, err
			}
			user.PasswordHash = hash
			passwordChanged = true
		}
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Email = in.Email
	user.Username = in.Username
	user.UpdatedBy = optional(actorID)

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, util.RecordError(span, err)
	}

	if passwordChanged {
		s.notify(ctx, user.Email, "credentials", mailer.Credentials(user.FirstName, user.Email, in.Password))
	}
	return user, nil
}

// Login checks the credentials and issues a session token
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Login")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	if user.IsDeleted || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	token, exp, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID))
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// ValidateToken returns the claims of a session token
func (s *UserService) ValidateToken(raw string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired session")
	}
	return claims, nil
}

// Get returns a single user
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// List returns every user to elevated callers and nothing to anyone else
func (s *UserService) List(ctx context.Context, actorID string) ([]models.User, error) {
	profile, err := s.access.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !profile.Elevated {
		return []models.User{}, nil
	}
	return s.users.ListUsers(ctx)
}

// SoftDelete disables an account
func (s *UserService) SoftDelete(ctx context.Context, userID string) error {
	return lifecycle{s.users, models.EntityUser}.SoftDelete(ctx, userID)
}

// Activate restores a soft deleted account
func (s *UserService) Activate(ctx context.Context, userID string) error {
	return lifecycle{s.users, models.EntityUser}.Activate(ctx, userID)
}

// Delete permanently removes a soft deleted account
func (s *UserService) Delete(ctx context.Context, userID string) error {
	return lifecycle{s.users, models.EntityUser}.Delete(ctx, userID)
}

// notify sends a best-effort mail; failures are logged and counted only
func (s *UserService) notify(ctx context.Context, to, kind string, msg mailer.Message) {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()

	if err := s.dispatcher.Send(ctx, to, msg.Subject, msg.Body); err != nil {
		util.NotificationMailFailed.WithLabelValues(kind).Inc()
		s.logger.Warn("Failed to send mail",
			zap.String("kind", kind),
			util.MaskedEmail("to", to),
			zap.Error(err))
	}
}
