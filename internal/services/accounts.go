package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/planpal-backend/internal/identity"
	"github.com/AnshRaj112/planpal-backend/pkg/utils"
)

// ResetTokenTTL is how long a password reset code stays valid.
const ResetTokenTTL = time.Hour

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrAccountNotFound    = errors.New("account does not exist")
	ErrInvalidCredentials = errors.New("incorrect password")
	ErrResetCodeInvalid   = errors.New("invalid or missing password reset code")
)

// Account is an email/password sign-in.
type Account struct {
	ID            uuid.UUID
	Email         string
	DisplayName   string
	EmailVerified bool
	CreatedAt     time.Time
	PasswordHash  string
}

// Identity is the session identity for a password account.
func (a *Account) Identity() *identity.Identity {
	return &identity.Identity{
		ID:          a.ID.String(),
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Provider:    identity.ProviderPassword,
	}
}

// AccountService stores email/password accounts and reset codes in PostgreSQL.
type AccountService struct {
	db  *sql.DB
	now func() time.Time
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db, now: time.Now}
}

// Register creates an account. The email must be unused.
func (s *AccountService) Register(ctx context.Context, email, password, displayName string) (*Account, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &Account{Email: email, DisplayName: strings.TrimSpace(displayName), PasswordHash: hash}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (email, password_hash, display_name)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		acc.Email, acc.PasswordHash, acc.DisplayName,
	).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// Authenticate checks an email/password pair.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, err
	}
	acc, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	ok, err := utils.VerifyPassword(password, acc.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// CreateResetToken issues a single-use reset code for the account behind email.
func (s *AccountService) CreateResetToken(ctx context.Context, email string) (string, *Account, error) {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return "", nil, err
	}
	acc, err := s.findByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	token := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (account_id, token, expires_at) VALUES ($1, $2, $3)`,
		acc.ID, token, s.now().UTC().Add(ResetTokenTTL),
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert reset token: %w", err)
	}
	return token, acc, nil
}

// ResetPassword consumes token and sets a new password, returning the account.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) (*Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrResetCodeInvalid
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		accountID uuid.UUID
		expiresAt time.Time
		used      bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT account_id, expires_at, used FROM password_reset_tokens WHERE token = $1 FOR UPDATE`,
		token,
	).Scan(&accountID, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResetCodeInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("read reset token: %w", err)
	}
	if used || !s.now().UTC().Before(expiresAt) {
		return nil, ErrResetCodeInvalid
	}

	acc := &Account{ID: accountID}
	err = tx.QueryRowContext(ctx,
		`UPDATE accounts SET password_hash = $1 WHERE id = $2 RETURNING email, display_name`,
		hash, accountID,
	).Scan(&acc.Email, &acc.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE WHERE token = $1`, token); err != nil {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *AccountService) findByEmail(ctx context.Context, email string) (*Account, error) {
	var acc Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, email_verified, created_at
		 FROM accounts WHERE LOWER(email) = $1`,
		email,
	).Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.DisplayName, &acc.EmailVerified, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &acc, nil
}
