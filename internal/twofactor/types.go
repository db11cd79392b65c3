// Package twofactor adds a TOTP step to the password login. The login is
// modelled as a small state machine whose result tells the caller which
// page to render next.
package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/ventortech/merpwms/internal/models"
)

// FlowState is the position of a login attempt in the flow
type FlowState string

const (
	Normal        FlowState = "normal"
	AwaitingOTP   FlowState = "awaiting_otp"
	Authenticated FlowState = "authenticated"
	Rejected      FlowState = "rejected"
)

// Step names the page the user has to see next
type Step string

const (
	StepNone       Step = ""
	StepScanCode   Step = "scan_code"
	StepVerifyCode Step = "verify_code"
)

// Signal tells why the flow stopped at the OTP step
type Signal string

const (
	SignalNone       Signal = ""
	SignalMissingOTP Signal = "missing_otp"
	SignalInvalidOTP Signal = "invalid_otp"
)

// User facing messages
const (
	MsgWrongLogin = "Wrong login/password"
	MsgWrongCode  = "Your security code is wrong"
	MsgAdminOnly  = "Only Administrators can do this operation!"
)

// ErrUserNotFound is returned by a UserStore for unknown users
var ErrUserNotFound = errors.New("user not found")

// AccessError is returned when a non administrator runs a bulk 2FA action
type AccessError struct {
	Message string
}

func (e *AccessError) Error() string { return e.Message }

// Attempt carries the values of one submission of the login form.
// OTPCode is nil when the form had no otp field at all, which is how the
// first submission is told apart from an empty code.
type Attempt struct {
	Login        string
	Password     string
	PendingToken string
	OTPCode      *string
	SecretCode   string // secret_code_2fa carried by the scan page
	QRCode       string // qr_code_2fa carried by the scan page
}

// Outcome is the result of a login attempt
type Outcome struct {
	State  FlowState
	Step   Step
	Signal Signal
	User   *models.UserAuth

	// Provisioning values to render on the scan or verify page
	SecretCode string
	QRCode     string

	Error        string
	PendingToken string

	AccessToken  string
	RefreshToken string
}

// UserStore loads and updates users
type UserStore interface {
	// ByLogin returns the user with its company
	ByLogin(ctx context.Context, login string) (*models.UserAuth, error)
	ByID(ctx context.Context, id string) (*models.UserAuth, error)
	// ByIDs returns ErrUserNotFound when one of the ids is unknown
	ByIDs(ctx context.Context, ids []string) ([]models.UserAuth, error)
	// SaveTwoFactor stores Enable2FA, SecretCode2FA and QRImage2FA
	SaveTwoFactor(ctx context.Context, u *models.UserAuth) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}
