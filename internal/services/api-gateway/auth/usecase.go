package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/NordCoder/Aurum/internal/domain/auth"
	"github.com/NordCoder/Aurum/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password is too weak")
)

const minPasswordLen = 8

// Sessions is the token side of authentication.
type Sessions interface {
	Issue(subjectID int64, role user.Role) (domainauth.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (domainauth.Pair, domainauth.Principal, error)
	Revoke(ctx context.Context, refreshToken string) error
}

type Config struct {
	BcryptCost int
}

type Usecase struct {
	users    user.Repo
	sessions Sessions
	cost     int
	dummy    []byte
}

func NewUseCase(users user.Repo, sessions Sessions, cfg Config) *Usecase {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	// compared against when the email is unknown, so both paths cost one bcrypt run
	dummy, _ := bcrypt.GenerateFromPassword([]byte("aurum-dummy-password"), cost)
	return &Usecase{users: users, sessions: sessions, cost: cost, dummy: dummy}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (u *Usecase) Register(ctx context.Context, email, password string) (*user.User, domainauth.Pair, error) {
	if len(password) < minPasswordLen {
		return nil, domainauth.Pair{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return nil, domainauth.Pair{}, fmt.Errorf("hash password: %w", err)
	}
	newUser := &user.User{Email: normalizeEmail(email), Password: string(hash), Role: user.RoleCustomer}
	if err := u.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, domainauth.Pair{}, ErrEmailExists
		}
		return nil, domainauth.Pair{}, err
	}
	pair, err := u.sessions.Issue(newUser.ID, newUser.Role)
	if err != nil {
		return nil, domainauth.Pair{}, err
	}
	return newUser, pair, nil
}

func (u *Usecase) Login(ctx context.Context, email, password string) (*user.User, domainauth.Pair, error) {
	rec, err := u.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return nil, domainauth.Pair{}, err
		}
		_ = bcrypt.CompareHashAndPassword(u.dummy, []byte(password))
		return nil, domainauth.Pair{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)) != nil {
		return nil, domainauth.Pair{}, ErrInvalidCredentials
	}
	pair, err := u.sessions.Issue(rec.ID, rec.Role)
	if err != nil {
		return nil, domainauth.Pair{}, err
	}
	return rec, pair, nil
}

func (u *Usecase) Refresh(ctx context.Context, refreshToken string) (domainauth.Pair, error) {
	pair, _, err := u.sessions.Refresh(ctx, refreshToken)
	return pair, err
}

func (u *Usecase) Logout(ctx context.Context, refreshToken string) error {
	return u.sessions.Revoke(ctx, refreshToken)
}

func (u *Usecase) Me(ctx context.Context, p domainauth.Principal) (*user.User, error) {
	return u.users.GetByID(ctx, p.SubjectID)
}
