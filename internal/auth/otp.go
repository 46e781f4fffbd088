package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kaaltube/backend/internal/email"
	"github.com/kaaltube/backend/internal/models"
)

// OTPTTL is the absolute lifetime of an issued verification code.
const OTPTTL = 10 * time.Minute

var (
	// ErrOTPNotIssued indicates verification was attempted before any code existed.
	ErrOTPNotIssued = errors.New("no verification code issued")
	// ErrOTPExpired indicates the stored code's lifetime has passed.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrOTPMismatch indicates the supplied code does not match the stored hash.
	ErrOTPMismatch = errors.New("verification code mismatch")
	// ErrAlreadyVerified indicates a resend was requested for a verified account.
	ErrAlreadyVerified = errors.New("account already verified")
)

// OTPStore captures the persistence operations the verification flow needs.
// SaveOTP overwrites any live code; MarkVerified flips the flag and clears
// the stored code and expiry in the same write.
type OTPStore interface {
	FindByEmail(ctx context.Context, emailAddr string) (models.User, error)
	SaveOTP(ctx context.Context, userID, otpHash string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, userID string) error
}

// OTPService manages the one-time-code account activation flow.
type OTPService struct {
	users  OTPStore
	mailer email.Sender

	NowFunc func() time.Time
}

// NewOTPService constructs an OTPService dispatching codes through mailer.
func NewOTPService(users OTPStore, mailer email.Sender) *OTPService {
	if users == nil {
		panic("auth: otp store must not be nil")
	}
	return &OTPService{users: users, mailer: mailer}
}

// Issue generates a fresh 6-digit code for the user, stores its hash with a
// 10 minute expiry and emails the plaintext out-of-band. The stored code is
// committed before dispatch, so a failed or slow send leaves a valid code
// that the user can only obtain via resend.
func (s *OTPService) Issue(ctx context.Context, user models.User) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	if err := s.users.SaveOTP(ctx, user.ID, string(hash), s.now().Add(OTPTTL)); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if s.mailer == nil {
		return errors.New("auth: mailer not configured")
	}

	msg := email.Message{
		To:      user.Email,
		Subject: "Verify your Kaaltube account",
		Text:    fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in 10 minutes.\n", user.FullName, code),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("dispatch otp email: %w", err)
	}
	return nil
}

// Verify checks the supplied code for the account identified by emailAddr.
// Verifying an already-verified account is a no-op success. On match the
// account is marked verified and the stored code cleared.
func (s *OTPService) Verify(ctx context.Context, emailAddr, code string) error {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}

	if user.Verified {
		return nil
	}
	if user.OTPHash == "" {
		return ErrOTPNotIssued
	}
	if user.OTPExpiresAt == nil || s.now().After(*user.OTPExpiresAt) {
		return ErrOTPExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(code)) != nil {
		return ErrOTPMismatch
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// Resend issues a new code, invalidating any previous one even if unexpired.
func (s *OTPService) Resend(ctx context.Context, emailAddr string) error {
	user, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}
	return s.Issue(ctx, user)
}

func (s *OTPService) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

// generateCode draws a uniformly random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
