package twofactor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ventortech/merpwms/internal/config"
	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/utils"
)

// Service runs the login flow and the 2FA administration actions
type Service struct {
	users     UserStore
	otp       TOTP
	qr        QREncoder
	jwtSecret string
	cfg       config.TwoFactorConfig
	observe   func(Outcome)
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithTOTP replaces the one-time password implementation
func WithTOTP(t TOTP) Option {
	return func(s *Service) { s.otp = t }
}

// WithQREncoder replaces the QR renderer
func WithQREncoder(q QREncoder) Option {
	return func(s *Service) { s.qr = q }
}

// WithObserver registers a callback that sees every login outcome
func WithObserver(fn func(Outcome)) Option {
	return func(s *Service) { s.observe = fn }
}

// NewService creates the login service
func NewService(users UserStore, jwtSecret string, cfg config.TwoFactorConfig, log zerolog.Logger, opts ...Option) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 10 * time.Minute
	}
	if cfg.DefaultIssuer == "" {
		cfg.DefaultIssuer = "merpwms"
	}
	s := &Service{
		users:     users,
		otp:       PquernaTOTP{},
		qr:        PNGEncoder{Size: cfg.QRSize},
		jwtSecret: jwtSecret,
		cfg:       cfg,
		observe:   func(Outcome) {},
		now:       time.Now,
		log:       log.With().Str("component", "twofactor").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks one submission of the login form and tells the caller what
// to do next. Wrong credentials and wrong codes are reported in the
// Outcome; the error is reserved for storage and signing failures.
func (s *Service) Login(ctx context.Context, a Attempt) (Outcome, error) {
	out, err := s.login(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	s.observe(out)
	return out, nil
}

func (s *Service) login(ctx context.Context, a Attempt) (Outcome, error) {
	login := strings.TrimSpace(a.Login)
	user, err := s.users.ByLogin(ctx, login)
	if errors.Is(err, ErrUserNotFound) {
		s.log.Info().Str("login", login).Msg("login rejected: unknown user")
		return rejected(), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load user %q: %w", login, err)
	}
	if !user.IsActive {
		s.log.Info().Str("login", login).Msg("login rejected: inactive user")
		return rejected(), nil
	}

	// A pending token issued by an earlier step replaces the password
	pending, boundDigest := false, ""
	if a.PendingToken != "" {
		claims, err := utils.ValidatePendingToken(a.PendingToken, s.jwtSecret)
		if err == nil && claims.UserID == user.ID {
			pending, boundDigest = true, claims.SecretDigest
		} else {
			s.log.Debug().Err(err).Str("login", login).Msg("pending token ignored")
		}
	}
	if !pending && !utils.CheckPasswordHash(a.Password, user.Password) {
		s.log.Info().Str("login", login).Msg("login rejected: wrong password")
		return rejected(), nil
	}

	if !user.Enable2FA {
		return s.authenticate(ctx, user)
	}

	if a.OTPCode == nil {
		return s.challenge(ctx, user, a, boundDigest)
	}

	secret := user.SecretCode2FA
	firstUse := secret == ""
	if firstUse {
		secret = a.SecretCode
		// The secret must be the one this flow provisioned
		if secret == "" || utils.SecretDigest(secret) != boundDigest {
			s.log.Warn().Str("login", login).Msg("otp rejected: secret does not match provisioning")
			return s.invalidCode(user, a, boundDigest)
		}
	}

	if !s.otp.Validate(strings.TrimSpace(*a.OTPCode), secret) {
		s.log.Info().Str("login", login).Msg("otp rejected")
		return s.invalidCode(user, a, boundDigest)
	}

	if !user.HasQRCode() {
		if err := s.storeCredentials(ctx, user, secret); err != nil {
			return Outcome{}, err
		}
	}
	return s.authenticate(ctx, user)
}

func rejected() Outcome {
	return Outcome{State: Rejected, Error: MsgWrongLogin}
}

// challenge stops the flow before the OTP check. A user who has not
// scanned a code yet gets a fresh secret and QR.
func (s *Service) challenge(ctx context.Context, user *models.UserAuth, a Attempt, boundDigest string) (Outcome, error) {
	out := Outcome{
		State:  AwaitingOTP,
		Signal: SignalMissingOTP,
		User:   user,
	}

	// Carried provisioning values only count when a pending token pinned
	// the secret this flow generated
	digest := boundDigest
	if user.HasQRCode() || (a.QRCode != "" && boundDigest != "") {
		out.Step = StepVerifyCode
		out.SecretCode = a.SecretCode
		out.QRCode = a.QRCode
	} else {
		secret, qr, err := s.GenerateQRCode(ctx, user)
		if err != nil {
			return Outcome{}, err
		}
		out.Step = StepScanCode
		out.SecretCode = secret
		out.QRCode = qr
		digest = utils.SecretDigest(secret)
	}

	token, err := utils.GeneratePendingToken(user.ID, digest, s.jwtSecret, s.cfg.PendingTTL)
	if err != nil {
		return Outcome{}, fmt.Errorf("sign pending token: %w", err)
	}
	out.PendingToken = token

	s.log.Info().Str("login", user.Login).Str("step", string(out.Step)).Msg("otp required")
	return out, nil
}

func (s *Service) invalidCode(user *models.UserAuth, a Attempt, boundDigest string) (Outcome, error) {
	token, err := utils.GeneratePendingToken(user.ID, boundDigest, s.jwtSecret, s.cfg.PendingTTL)
	if err != nil {
		return Outcome{}, fmt.Errorf("sign pending token: %w", err)
	}
	return Outcome{
		State:        AwaitingOTP,
		Step:         StepVerifyCode,
		Signal:       SignalInvalidOTP,
		User:         user,
		SecretCode:   a.SecretCode,
		QRCode:       a.QRCode,
		Error:        MsgWrongCode,
		PendingToken: token,
	}, nil
}

// storeCredentials keeps the secret confirmed by the first valid code. The
// QR image is rendered from the secret, never taken from the client.
func (s *Service) storeCredentials(ctx context.Context, user *models.UserAuth, secret string) error {
	uri, err := s.otp.URI(s.issuer(user), user.Login, secret)
	if err != nil {
		return err
	}
	png, err := s.qr.Encode(uri)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	user.SecretCode2FA = secret
	user.QRImage2FA = base64.StdEncoding.EncodeToString(png)
	if err := s.users.SaveTwoFactor(ctx, user); err != nil {
		return fmt.Errorf("store 2fa credentials of %s: %w", user.Login, err)
	}
	s.log.Info().Str("login", user.Login).Msg("2fa credentials stored")
	return nil
}

func (s *Service) authenticate(ctx context.Context, user *models.UserAuth) (Outcome, error) {
	access, refresh, err := utils.GenerateTokens(user, s.jwtSecret)
	if err != nil {
		return Outcome{}, fmt.Errorf("sign session tokens: %w", err)
	}
	if err := s.users.TouchLogin(ctx, user.ID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("login", user.Login).Msg("failed to update last login")
	}
	s.log.Info().Str("login", user.Login).Msg("login succeeded")
	return Outcome{
		State:        Authenticated,
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) issuer(user *models.UserAuth) string {
	if user.Company != nil && user.Company.Name != "" {
		return user.Company.Name
	}
	return s.cfg.DefaultIssuer
}

// GenerateQRCode creates a new secret for user and returns it with the
// base64 PNG of its provisioning URI. The issuer is the user's company.
func (s *Service) GenerateQRCode(_ context.Context, user *models.UserAuth) (secret, qrBase64 string, err error) {
	secret, uri, err := s.otp.Generate(s.issuer(user), user.Login)
	if err != nil {
		return "", "", err
	}
	png, err := s.qr.Encode(uri)
	if err != nil {
		return "", "", fmt.Errorf("encode qr: %w", err)
	}
	return secret, base64.StdEncoding.EncodeToString(png), nil
}

func requireAdmin(actor *models.UserAuth) error {
	if actor == nil || !actor.IsAdmin() {
		return &AccessError{Message: MsgAdminOnly}
	}
	return nil
}

// EnableTwoFactor turns 2FA on for the given users
func (s *Service) EnableTwoFactor(ctx context.Context, actor *models.UserAuth, ids []string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.update(ctx, ids, func(u *models.UserAuth) {
		u.Enable2FA = true
	})
}

// DisableTwoFactor turns 2FA off for the given users and drops their
// credentials.
func (s *Service) DisableTwoFactor(ctx context.Context, actor *models.UserAuth, ids []string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.update(ctx, ids, func(u *models.UserAuth) {
		u.Enable2FA = false
		u.SecretCode2FA = ""
		u.QRImage2FA = ""
	})
}

// DiscardCredentials clears the secret and QR of the given users. They
// scan a new code at their next login.
func (s *Service) DiscardCredentials(ctx context.Context, ids []string) error {
	return s.update(ctx, ids, func(u *models.UserAuth) {
		u.SecretCode2FA = ""
		u.QRImage2FA = ""
	})
}

func (s *Service) update(ctx context.Context, ids []string, apply func(*models.UserAuth)) error {
	users, err := s.users.ByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range users {
		apply(&users[i])
		if err := s.users.SaveTwoFactor(ctx, &users[i]); err != nil {
			return fmt.Errorf("update user %s: %w", users[i].Login, err)
		}
		s.log.Info().Str("login", users[i].Login).Bool("enable_2fa", users[i].Enable2FA).Msg("2fa settings changed")
	}
	return nil
}
