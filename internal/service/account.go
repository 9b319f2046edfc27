package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"ludo-arena-backend/internal/config"
	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/db"
	"ludo-arena-backend/internal/repository"
)

// Account-related errors.
var (
	ErrPhoneTaken         = errors.New("phone number already registered")
	ErrInvalidCredentials = errors.New("invalid phone or password")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrInvalidReferral    = errors.New("invalid referral code")
	ErrKYCNotSubmitted    = errors.New("kyc not submitted")
)

// AccountService handles registration, login and account moderation.
type AccountService struct {
	pool       *pgxpool.Pool
	userRepo   *repository.UserRepository
	ledgerRepo *repository.LedgerRepository
	wallet     *WalletService
	bonuses    config.WalletConfig
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	pool *pgxpool.Pool,
	userRepo *repository.UserRepository,
	ledgerRepo *repository.LedgerRepository,
	wallet *WalletService,
	bonuses config.WalletConfig,
) *AccountService {
	return &AccountService{
		pool:       pool,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		wallet:     wallet,
		bonuses:    bonuses,
	}
}

// Register creates a user account, credits the signup bonus and links
// the referrer, all in one transaction. A bad referral code aborts the
// whole signup so no half-created accounts exist.
func (s *AccountService) Register(ctx context.Context, phone, username, password, referralCode string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var referrerID *int64
	if referralCode != "" {
		referrer, err := s.userRepo.GetByReferralCode(ctx, strings.ToUpper(referralCode))
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrInvalidReferral
			}
			return nil, err
		}
		referrerID = &referrer.ID
	}

	var user *model.User
	err = s.registerInTx(ctx, func(tx pgx.Tx, ownCode string) error {
		var err error
		user, err = s.userRepo.WithTx(tx).Create(ctx, phone, username, string(hash), ownCode, referrerID)
		if err != nil {
			return mapUserInsertErr(err)
		}

		if s.bonuses.SignupBonus > 0 {
			notes := "signup bonus"
			user, err = s.wallet.ApplyTx(ctx, tx, user.ID, s.bonuses.SignupBonus, model.BucketBalance, model.TxTypeSignupBonus, &notes)
			if err != nil {
				return err
			}
		}

		if referrerID != nil && s.bonuses.ReferralBonus > 0 {
			notes := fmt.Sprintf("referral bonus for user %d", user.ID)
			if _, err := s.wallet.ApplyTx(ctx, tx, *referrerID, s.bonuses.ReferralBonus, model.BucketBalance, model.TxTypeReferralBonus, &notes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// errReferralCodeCollision signals the generated referral code is
// already taken. Never returned to callers; Register retries with a
// fresh code.
var errReferralCodeCollision = errors.New("referral code collision")

const registerAttempts = 3

// registerInTx runs the signup transaction, regenerating the referral
// code when it collides. Postgres aborts a transaction after a unique
// violation, so each attempt is a fresh transaction.
func (s *AccountService) registerInTx(ctx context.Context, fn func(tx pgx.Tx, ownCode string) error) error {
	var err error
	for attempt := 0; attempt < registerAttempts; attempt++ {
		ownCode := newReferralCode()
		err = db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
			return fn(tx, ownCode)
		})
		if !errors.Is(err, errReferralCodeCollision) {
			return err
		}
	}
	return fmt.Errorf("failed to generate a unique referral code: %w", err)
}

// mapUserInsertErr tells apart the two unique constraints the user
// insert can trip: a duplicate phone is the caller's error, a
// duplicate referral code is ours to retry.
func mapUserInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "referral_code") {
			return errReferralCodeCollision
		}
		return ErrPhoneTaken
	}
	return err
}

// Login verifies credentials. Suspended accounts cannot log in.
func (s *AccountService) Login(ctx context.Context, phone, password string) (*model.User, error) {
	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Status == model.UserSuspended {
		return nil, ErrAccountSuspended
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// SubmitKYC records that the user handed in identity documents.
// Verified accounts stay verified; re-submission is for rejected or
// fresh accounts.
func (s *AccountService) SubmitKYC(ctx context.Context, userID int64) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.KYCStatus == model.KYCVerified {
		return nil
	}
	return s.userRepo.SetKYCStatus(ctx, userID, model.KYCSubmitted)
}

// ReviewKYC is the admin decision on submitted documents.
func (s *AccountService) ReviewKYC(ctx context.Context, userID int64, approve bool) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.KYCStatus != model.KYCSubmitted {
		return ErrKYCNotSubmitted
	}
	status := model.KYCRejected
	if approve {
		status = model.KYCVerified
	}
	return s.userRepo.SetKYCStatus(ctx, userID, status)
}

// SetSuspended suspends or reactivates an account.
func (s *AccountService) SetSuspended(ctx context.Context, userID int64, suspended bool) error {
	status := model.UserActive
	if suspended {
		status = model.UserSuspended
	}
	if err := s.userRepo.SetStatus(ctx, userID, status); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// SetRole grants or revokes an admin role.
func (s *AccountService) SetRole(ctx context.Context, userID int64, role string) error {
	switch role {
	case model.RoleNone, model.RoleFinance, model.RoleSuperadmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// AdminAdjust credits or debits a wallet bucket on behalf of an admin,
// with the acting admin recorded in the ledger notes.
func (s *AccountService) AdminAdjust(ctx context.Context, adminID, userID, amount int64, bucket string) (*model.User, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	txType := model.TxTypeAdminCredit
	if amount < 0 {
		txType = model.TxTypeAdminDebit
	}
	notes := fmt.Sprintf("adjusted by admin %d", adminID)
	return s.wallet.Apply(ctx, userID, amount, bucket, txType, &notes)
}

// ListUsers returns accounts for the admin panel, newest first.
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

// newReferralCode generates a short shareable code.
func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
