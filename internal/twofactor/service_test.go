package twofactor

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventortech/merpwms/internal/config"
	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/utils"
)

const testJWTSecret = "test-secret"

type memUsers struct {
	users   map[string]*models.UserAuth
	touched []string
	saveErr error
}

func (m *memUsers) ByLogin(_ context.Context, login string) (*models.UserAuth, error) {
	for _, u := range m.users {
		if u.Login == login {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUsers) ByID(_ context.Context, id string) (*models.UserAuth, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) ByIDs(ctx context.Context, ids []string) ([]models.UserAuth, error) {
	out := make([]models.UserAuth, 0, len(ids))
	for _, id := range ids {
		u, err := m.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) SaveTwoFactor(_ context.Context, u *models.UserAuth) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	stored := m.users[u.ID]
	stored.Enable2FA = u.Enable2FA
	stored.SecretCode2FA = u.SecretCode2FA
	stored.QRImage2FA = u.QRImage2FA
	return nil
}

func (m *memUsers) TouchLogin(_ context.Context, id string, at time.Time) error {
	m.touched = append(m.touched, id)
	m.users[id].LastLogin = &at
	return nil
}

func newUsers(t *testing.T) *memUsers {
	t.Helper()
	hash, err := utils.HashPassword("secret")
	require.NoError(t, err)
	company := &models.ResCompany{ID: 1, Name: "YourCompany"}
	return &memUsers{users: map[string]*models.UserAuth{
		"u-plain": {ID: "u-plain", Login: "plain", Password: hash, IsActive: true, Role: models.RoleUser},
		"u-otp":   {ID: "u-otp", Login: "demo", Password: hash, IsActive: true, Role: models.RoleUser, Enable2FA: true, Company: company},
		"u-admin": {ID: "u-admin", Login: "admin", Password: hash, IsActive: true, Role: models.RoleAdmin},
		"u-gone":  {ID: "u-gone", Login: "gone", Password: hash, IsActive: false},
	}}
}

func newTestService(users UserStore, opts ...Option) *Service {
	cfg := config.TwoFactorConfig{DefaultIssuer: "merpwms", PendingTTL: 10 * time.Minute, QRSize: 64}
	return NewService(users, testJWTSecret, cfg, zerolog.Nop(), opts...)
}

func code(t *testing.T, secret string) *string {
	t.Helper()
	c, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return &c
}

func str(s string) *string { return &s }

func TestLogin_WrongCredentials(t *testing.T) {
	svc := newTestService(newUsers(t))
	ctx := context.Background()

	for _, a := range []Attempt{
		{Login: "plain", Password: "nope"},
		{Login: "nobody", Password: "secret"},
		{Login: "gone", Password: "secret"},
		{Login: "demo", Password: "", PendingToken: "garbage"},
	} {
		out, err := svc.Login(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, Rejected, out.State, a.Login)
		assert.Equal(t, MsgWrongLogin, out.Error)
		assert.Empty(t, out.AccessToken)
	}
}

func TestLogin_WithoutTwoFactor(t *testing.T) {
	users := newUsers(t)
	svc := newTestService(users)

	out, err := svc.Login(context.Background(), Attempt{Login: " plain ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, out.State)
	assert.Equal(t, StepNone, out.Step)
	assert.NotEmpty(t, out.AccessToken)
	assert.NotEmpty(t, out.RefreshToken)
	assert.Equal(t, []string{"u-plain"}, users.touched)
}

// The full first-use flow: password, scan, confirm with the first code.
func TestLogin_FirstUseProvisioning(t *testing.T) {
	users := newUsers(t)
	var seen []FlowState
	svc := newTestService(users, WithObserver(func(o Outcome) { seen = append(seen, o.State) }))
	ctx := context.Background()

	out, err := svc.Login(ctx, Attempt{Login: "demo", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, AwaitingOTP, out.State)
	assert.Equal(t, SignalMissingOTP, out.Signal)
	assert.Equal(t, StepScanCode, out.Step)
	require.NotEmpty(t, out.SecretCode)
	require.NotEmpty(t, out.PendingToken)
	assert.Len(t, out.SecretCode, 16)

	png, err := base64.StdEncoding.DecodeString(out.QRCode)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))

	// Nothing stored before the first code is confirmed
	assert.Empty(t, users.users["u-otp"].SecretCode2FA)

	secret, qr := out.SecretCode, out.QRCode
	out, err = svc.Login(ctx, Attempt{
		Login:        "demo",
		PendingToken: out.PendingToken,
		OTPCode:      code(t, secret),
		SecretCode:   secret,
		QRCode:       qr,
	})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, out.State)
	assert.NotEmpty(t, out.AccessToken)

	stored := users.users["u-otp"]
	assert.Equal(t, secret, stored.SecretCode2FA)
	storedPNG, err := base64.StdEncoding.DecodeString(stored.QRImage2FA)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(storedPNG), "\x89PNG"))
	assert.Equal(t, []FlowState{AwaitingOTP, Authenticated}, seen)
}

func TestLogin_VerifyWithStoredSecret(t *testing.T) {
	users := newUsers(t)
	users.users["u-otp"].SecretCode2FA = "JBSWY3DPEHPK3PXP"
	users.users["u-otp"].QRImage2FA = "c3RvcmVk"
	svc := newTestService(users)
	ctx := context.Background()

	out, err := svc.Login(ctx, Attempt{Login: "demo", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, AwaitingOTP, out.State)
	assert.Equal(t, StepVerifyCode, out.Step)
	assert.Empty(t, out.SecretCode, "stored secret must never be sent back")

	wrong, err := svc.Login(ctx, Attempt{Login: "demo", PendingToken: out.PendingToken, OTPCode: str("000000x")})
	require.NoError(t, err)
	assert.Equal(t, AwaitingOTP, wrong.State)
	assert.Equal(t, SignalInvalidOTP, wrong.Signal)
	assert.Equal(t, StepVerifyCode, wrong.Step)
	assert.Equal(t, MsgWrongCode, wrong.Error)
	assert.NotEmpty(t, wrong.PendingToken)

	// The renewed pending token allows another try
	ok, err := svc.Login(ctx, Attempt{Login: "demo", PendingToken: wrong.PendingToken, OTPCode: code(t, "JBSWY3DPEHPK3PXP")})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, ok.State)
	assert.Equal(t, "c3RvcmVk", users.users["u-otp"].QRImage2FA)
}

func TestLogin_EmptyCodeIsInvalidNotMissing(t *testing.T) {
	users := newUsers(t)
	users.users["u-otp"].SecretCode2FA = "JBSWY3DPEHPK3PXP"
	users.users["u-otp"].QRImage2FA = "c3RvcmVk"
	svc := newTestService(users)

	out, err := svc.Login(context.Background(), Attempt{Login: "demo", Password: "secret", OTPCode: str("")})
	require.NoError(t, err)
	assert.Equal(t, SignalInvalidOTP, out.Signal)
}

func TestLogin_FirstUseRejectsForeignSecret(t *testing.T) {
	users := newUsers(t)
	svc := newTestService(users)
	ctx := context.Background()

	out, err := svc.Login(ctx, Attempt{Login: "demo", Password: "secret"})
	require.NoError(t, err)

	foreign := "KRSXG5CTMVRXEZLU"
	res, err := svc.Login(ctx, Attempt{
		Login:        "demo",
		PendingToken: out.PendingToken,
		OTPCode:      code(t, foreign),
		SecretCode:   foreign,
	})
	require.NoError(t, err)
	assert.Equal(t, SignalInvalidOTP, res.Signal)
	assert.Empty(t, users.users["u-otp"].SecretCode2FA)

	// Password path has no provisioning to match
	res, err = svc.Login(ctx, Attempt{Login: "demo", Password: "secret", OTPCode: code(t, out.SecretCode), SecretCode: out.SecretCode})
	require.NoError(t, err)
	assert.Equal(t, SignalInvalidOTP, res.Signal)
}

func TestLogin_CarriedSecretWithoutPendingTokenIsIgnored(t *testing.T) {
	users := newUsers(t)
	svc := newTestService(users)
	ctx := context.Background()

	foreign := "KRSXG5CTMVRXEZLU"
	out, err := svc.Login(ctx, Attempt{Login: "demo", Password: "secret", SecretCode: foreign, QRCode: "x"})
	require.NoError(t, err)
	assert.Equal(t, StepScanCode, out.Step)
	assert.NotEqual(t, foreign, out.SecretCode)
	assert.NotEqual(t, "x", out.QRCode)

	res, err := svc.Login(ctx, Attempt{
		Login:        "demo",
		PendingToken: out.PendingToken,
		OTPCode:      code(t, foreign),
		SecretCode:   foreign,
		QRCode:       "x",
	})
	require.NoError(t, err)
	assert.Equal(t, SignalInvalidOTP, res.Signal)
	assert.Empty(t, users.users["u-otp"].SecretCode2FA)
	assert.Empty(t, users.users["u-otp"].QRImage2FA)

	// The provisioned secret still confirms, and the client QR is not kept
	ok, err := svc.Login(ctx, Attempt{
		Login:        "demo",
		PendingToken: res.PendingToken,
		OTPCode:      code(t, out.SecretCode),
		SecretCode:   out.SecretCode,
		QRCode:       "x",
	})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, ok.State)
	assert.Equal(t, out.SecretCode, users.users["u-otp"].SecretCode2FA)
	assert.NotEqual(t, "x", users.users["u-otp"].QRImage2FA)
}

func TestLogin_ReturningToVerifyKeepsProvisioning(t *testing.T) {
	users := newUsers(t)
	svc := newTestService(users)
	ctx := context.Background()

	scan, err := svc.Login(ctx, Attempt{Login: "demo", Password: "secret"})
	require.NoError(t, err)

	// The scan page posts back without a code: the carried QR leads to the
	// verify page instead of a new secret
	verify, err := svc.Login(ctx, Attempt{Login: "demo", PendingToken: scan.PendingToken, SecretCode: scan.SecretCode, QRCode: scan.QRCode})
	require.NoError(t, err)
	assert.Equal(t, StepVerifyCode, verify.Step)
	assert.Equal(t, scan.SecretCode, verify.SecretCode)

	// No QR carried back: the server rebuilds it when storing
	done, err := svc.Login(ctx, Attempt{Login: "demo", PendingToken: verify.PendingToken, OTPCode: code(t, scan.SecretCode), SecretCode: scan.SecretCode})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, done.State)
	assert.NotEmpty(t, users.users["u-otp"].QRImage2FA)
}

func TestLogin_PendingTokenOfOtherUser(t *testing.T) {
	users := newUsers(t)
	svc := newTestService(users)

	token, err := utils.GeneratePendingToken("u-plain", "", testJWTSecret, time.Minute)
	require.NoError(t, err)

	out, err := svc.Login(context.Background(), Attempt{Login: "demo", PendingToken: token})
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.State)
}

func TestLogin_StoreFailure(t *testing.T) {
	users := newUsers(t)
	users.saveErr = errors.New("db down")
	svc := newTestService(users)
	ctx := context.Background()

	scan, err := svc.Login(ctx, Attempt{Login: "demo", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, Attempt{Login: "demo", PendingToken: scan.PendingToken, OTPCode: code(t, scan.SecretCode), SecretCode: scan.SecretCode, QRCode: scan.QRCode})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

type fixedTOTP struct{ PquernaTOTP }

func (fixedTOTP) Generate(issuer, account string) (string, string, error) {
	return "GEZDGNBVGY3TQOJQ", "otpauth://totp/" + issuer + ":" + account, nil
}

func TestGenerateQRCode(t *testing.T) {
	users := newUsers(t)
	var encoded []string
	svc := newTestService(users, WithTOTP(fixedTOTP{}), WithQREncoder(encoderFunc(func(s string) ([]byte, error) {
		encoded = append(encoded, s)
		return []byte("png"), nil
	})))

	secret, qr, err := svc.GenerateQRCode(context.Background(), users.users["u-otp"])
	require.NoError(t, err)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", secret)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), qr)
	assert.Equal(t, []string{"otpauth://totp/YourCompany:demo"}, encoded)

	// No company: configured issuer
	_, _, err = svc.GenerateQRCode(context.Background(), users.users["u-plain"])
	require.NoError(t, err)
	assert.Equal(t, "otpauth://totp/merpwms:plain", encoded[1])
}

func TestProvisioningURI(t *testing.T) {
	secret, uri, err := PquernaTOTP{}.Generate("YourCompany", "demo")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/YourCompany:demo?"))
	assert.Contains(t, uri, "secret="+secret)

	rebuilt, err := PquernaTOTP{}.URI("YourCompany", "demo", secret)
	require.NoError(t, err)
	assert.Contains(t, rebuilt, "secret="+secret)
}

type encoderFunc func(string) ([]byte, error)

func (f encoderFunc) Encode(s string) ([]byte, error) { return f(s) }

func TestAdminActions(t *testing.T) {
	users := newUsers(t)
	svc := newTestService(users)
	ctx := context.Background()
	admin := users.users["u-admin"]
	plain := users.users["u-plain"]

	err := svc.EnableTwoFactor(ctx, plain, []string{"u-plain"})
	var ae *AccessError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, MsgAdminOnly, ae.Message)
	assert.False(t, users.users["u-plain"].Enable2FA)

	require.ErrorAs(t, svc.DisableTwoFactor(ctx, nil, []string{"u-otp"}), &ae)

	require.NoError(t, svc.EnableTwoFactor(ctx, admin, []string{"u-plain"}))
	assert.True(t, users.users["u-plain"].Enable2FA)

	users.users["u-otp"].SecretCode2FA = "JBSWY3DPEHPK3PXP"
	users.users["u-otp"].QRImage2FA = "c3RvcmVk"
	require.NoError(t, svc.DisableTwoFactor(ctx, admin, []string{"u-otp"}))
	assert.False(t, users.users["u-otp"].Enable2FA)
	assert.Empty(t, users.users["u-otp"].SecretCode2FA)
	assert.Empty(t, users.users["u-otp"].QRImage2FA)

	assert.ErrorIs(t, svc.EnableTwoFactor(ctx, admin, []string{"missing"}), ErrUserNotFound)
}

func TestDiscardCredentials(t *testing.T) {
	users := newUsers(t)
	users.users["u-otp"].SecretCode2FA = "JBSWY3DPEHPK3PXP"
	users.users["u-otp"].QRImage2FA = "c3RvcmVk"
	svc := newTestService(users)

	require.NoError(t, svc.DiscardCredentials(context.Background(), []string{"u-otp"}))
	u := users.users["u-otp"]
	assert.True(t, u.Enable2FA)
	assert.Empty(t, u.SecretCode2FA)
	assert.Empty(t, u.QRImage2FA)

	// Next login provisions a new code
	out, err := svc.Login(context.Background(), Attempt{Login: "demo", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, StepScanCode, out.Step)
}
