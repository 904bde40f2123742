package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"
	"restaurant_ordering/pkg/mailer"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minUsernameLength = 3

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) (*mailer.SendEmailResponse, error)
}

type TokenIssuer interface {
	Issue(user *models.User, branchID *uint) (string, error)
}

type RegisterInput struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	BranchID uint   `json:"branchId"`
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthSettings struct {
	FrontendURL     string
	VerificationTTL time.Duration
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) error
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type authService struct {
	userRepo    repository.UserRepository
	pendingRepo repository.PendingUserRepository
	branchRepo  repository.BranchRepository
	tokens      TokenIssuer
	mail        Mailer
	settings    AuthSettings
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, pendingRepo repository.PendingUserRepository, branchRepo repository.BranchRepository, tokens TokenIssuer, mail Mailer, settings AuthSettings, log logrus.FieldLogger) AuthService {
	return &authService{
		userRepo:    userRepo,
		pendingRepo: pendingRepo,
		branchRepo:  branchRepo,
		tokens:      tokens,
		mail:        mail,
		settings:    settings,
		log:         log,
		now:         time.Now,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) error {
	username := strings.TrimSpace(in.Username)
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" || username == "" || in.Password == "" {
		return validationError("all fields are required")
	}
	if len(username) < minUsernameLength {
		return validationError("username must be at least %d characters", minUsernameLength)
	}

	taken, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return validationError("this username is already taken")
	}
	pending, err := s.pendingRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check pending registrations: %w", err)
	}
	if pending {
		return validationError("a verification is already pending for this address, please check your e-mail")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	token, err := newVerificationToken()
	if err != nil {
		return err
	}

	name, surname := splitFullName(fullName)
	row := &models.PendingUser{
		Username:          username,
		PasswordHash:      string(hash),
		Name:              name,
		Surname:           surname,
		VerificationToken: token,
		TokenExpiry:       s.now().Add(s.settings.VerificationTTL),
	}
	if err := s.pendingRepo.Create(ctx, row); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return validationError("a verification is already pending for this address, please check your e-mail")
		}
		return fmt.Errorf("failed to store pending user: %w", err)
	}

	if _, err := s.mail.Send(ctx, verificationMessage(username, fullName, s.verificationURL(token))); err != nil {
		s.log.WithError(err).WithField("username", username).Error("verification e-mail failed")
		if delErr := s.pendingRepo.DeleteByToken(ctx, token); delErr != nil {
			s.log.WithError(delErr).Warn("failed to remove pending user after e-mail failure")
		}
		return fmt.Errorf("failed to send verification e-mail: %w", err)
	}
	return nil
}

func (s *authService) Verify(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("verification token is missing")
	}

	pending, err := s.pendingRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationError("invalid or expired verification link")
		}
		return fmt.Errorf("failed to load pending user: %w", err)
	}

	if pending.Expired(s.now()) {
		if err := s.pendingRepo.Delete(ctx, pending.ID); err != nil {
			return fmt.Errorf("failed to remove expired pending user: %w", err)
		}
		return validationError("verification link has expired, please register again")
	}

	user := &models.User{
		Username:     pending.Username,
		PasswordHash: pending.PasswordHash,
		Name:         pending.Name,
		Surname:      pending.Surname,
		Role:         string(models.RoleCustomer),
		Active:       true,
	}
	if err := s.userRepo.PromotePending(ctx, user, pending.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return conflictError("this username is already registered")
		}
		return fmt.Errorf("failed to promote pending user: %w", err)
	}
	return nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, validationError("username and password are required")
	}
	if in.BranchID == 0 {
		return nil, validationError("branchId is required")
	}

	if _, err := s.branchRepo.GetByID(ctx, in.BranchID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationError("invalid branch")
		}
		return nil, fmt.Errorf("failed to load branch: %w", err)
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		pending, perr := s.pendingRepo.ExistsByUsername(ctx, username)
		if perr != nil {
			return nil, fmt.Errorf("failed to check pending registrations: %w", perr)
		}
		if pending {
			return nil, forbiddenError("your account is not verified yet, please check your e-mail")
		}
		return nil, notFoundError("user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, unauthorizedError("wrong password")
	}
	if !user.Active {
		return nil, forbiddenError("this account is disabled")
	}
	role := models.UserRole(user.Role)
	if role == models.RoleStaff && user.BranchID != nil && *user.BranchID != in.BranchID {
		return nil, forbiddenError("staff can only sign in to their own branch")
	}

	branchID := in.BranchID
	token, err := s.tokens.Issue(user, &branchID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	} else {
		user.LastLogin = &now
	}
	user.BranchID = &branchID

	return &LoginResult{Token: token, User: user}, nil
}

func (s *authService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.pendingRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge pending users: %w", err)
	}
	return n, nil
}

func (s *authService) verificationURL(token string) string {
	return strings.TrimRight(s.settings.FrontendURL, "/") + "/verify?token=" + token
}

func newVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// splitFullName takes the first word as the name and the rest as the surname.
func splitFullName(fullName string) (*string, *string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return &parts[0], nil
	}
	surname := strings.Join(parts[1:], " ")
	return &parts[0], &surname
}

func verificationMessage(email, fullName, link string) mailer.Message {
	return mailer.Message{
		To:      mailer.Address{Email: email, Name: fullName},
		Subject: "Verify your e-mail address",
		HTML: fmt.Sprintf(`<p>Hello %s,</p><p>Please confirm your e-mail address to finish creating your account.</p><p><a href="%s">Verify my e-mail</a></p><p>The link is valid for a limited time.</p>`,
			html.EscapeString(fullName), html.EscapeString(link)),
		Text: fmt.Sprintf("Hello %s,\n\nOpen this link to verify your e-mail address:\n%s\n", fullName, link),
	}
}
