package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AccountUseCase interface {
	Register(ctx context.Context, input RegisterInput) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	ParseToken(raw string) (*Claims, error)
	AssignRoles(ctx context.Context, id int64, roles []string) (*domain.Account, error)
	List(ctx context.Context, page domain.Page) (domain.Paginated[domain.Account], error)
	Delete(ctx context.Context, id int64) error
}

type Reconciler interface {
	ReconcileAll(ctx context.Context, passengerIDs []int64) (int, error)
}

type RegisterInput struct {
	Email    string `json:"email"`
	UserName string `json:"username"`
	Password string `json:"password"`
}

type Claims struct {
	AccountID int64         `json:"aid"`
	Roles     []domain.Role `json:"roles"`
	jwt.RegisteredClaims
}

func (c Claims) HasRole(roles ...domain.Role) bool {
	return domain.Account{Roles: c.Roles}.HasRole(roles...)
}

type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"account"`
}

type Settings struct {
	JWTSecret  string
	AccessTTL  time.Duration
	BcryptCost int
}

type AccountService struct {
	accounts   repository.AccountRepository
	passengers repository.PassengerRepository
	reconciler Reconciler
	settings   Settings
	now        func() time.Time
}

type AccountServiceOption func(*AccountService)

func WithClock(now func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		s.now = now
	}
}

func NewAccountService(
	accounts repository.AccountRepository,
	passengers repository.PassengerRepository,
	reconciler Reconciler,
	settings Settings,
	opts ...AccountServiceOption,
) *AccountService {
	if settings.BcryptCost == 0 {
		settings.BcryptCost = bcrypt.DefaultCost
	}
	if settings.AccessTTL == 0 {
		settings.AccessTTL = time.Hour
	}
	s := &AccountService{
		accounts:   accounts,
		passengers: passengers,
		reconciler: reconciler,
		settings:   settings,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	return s.create(ctx, input, []domain.Role{domain.RoleUser})
}

func (s *AccountService) create(ctx context.Context, input RegisterInput, roles []domain.Role) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.UserName)
	if name == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.settings.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &domain.Account{
		Email:        email,
		UserName:     name,
		PasswordHash: string(hash),
		Roles:        roles,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	now := s.now()
	exp := now.Add(s.settings.AccessTTL)
	claims := Claims{
		AccountID: account.ID,
		Roles:     account.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.settings.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp, Account: account}, nil
}

// ParseToken accepts only HS256 tokens signed with the configured secret.
func (s *AccountService) ParseToken(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return []byte(s.settings.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return &claims, nil
}

// AssignRoles replaces the role set. The Owner role is only granted through seeding.
func (s *AccountService) AssignRoles(ctx context.Context, id int64, names []string) (*domain.Account, error) {
	roles, err := domain.ParseRoles(names)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.HasRole(domain.RoleOwner) {
		return nil, fmt.Errorf("%w: owner roles cannot be changed", domain.ErrForbidden)
	}
	if (domain.Account{Roles: roles}).HasRole(domain.RoleOwner) {
		return nil, fmt.Errorf("%w: owner role cannot be assigned", domain.ErrForbidden)
	}
	if err := s.accounts.SetRoles(ctx, id, roles); err != nil {
		return nil, err
	}
	account.Roles = roles
	return account, nil
}

func (s *AccountService) List(ctx context.Context, page domain.Page) (domain.Paginated[domain.Account], error) {
	all, err := s.accounts.List(ctx)
	if err != nil {
		return domain.Paginated[domain.Account]{}, err
	}
	return domain.Paginate(all, page), nil
}

// Delete unlinks the account's claimed profiles and lets the reconciler drop the ones left unreferenced.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if account.HasRole(domain.RoleOwner) {
		return fmt.Errorf("%w: owner account cannot be deleted", domain.ErrForbidden)
	}

	claimed, err := s.passengers.ListByAccount(ctx, id)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(claimed))
	for _, p := range claimed {
		if err := s.passengers.SetAccount(ctx, p.ID, nil); err != nil {
			return err
		}
		ids = append(ids, p.ID)
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	removed, err := s.reconciler.ReconcileAll(ctx, ids)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "account deleted", "account_id", id, "profiles_released", len(ids), "profiles_removed", removed)
	return nil
}

// SeedOwner makes sure the configured owner account exists and carries the Owner role.
func (s *AccountService) SeedOwner(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	existing, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	switch {
	case err == nil:
		if existing.HasRole(domain.RoleOwner) {
			return existing, nil
		}
		roles := append(existing.Roles, domain.RoleOwner)
		if err := s.accounts.SetRoles(ctx, existing.ID, roles); err != nil {
			return nil, err
		}
		existing.Roles = roles
		return existing, nil
	case errors.Is(err, domain.ErrNotFound):
		return s.create(ctx, input, []domain.Role{domain.RoleOwner, domain.RoleAdmin})
	default:
		return nil, err
	}
}

var _ AccountUseCase = (*AccountService)(nil)
