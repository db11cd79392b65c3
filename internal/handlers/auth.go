package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ventortech/merpwms/internal/middleware"
	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/twofactor"
	"github.com/ventortech/merpwms/web"
)

// defaultRedirect is where a browser lands after logging in
const defaultRedirect = "/api/status"

// LoginRequest represents a login request. OTPCode is omitted on the first
// step and present once the user answers the challenge.
type LoginRequest struct {
	Login        string  `json:"login"`
	Password     string  `json:"password"`
	PendingToken string  `json:"pendingToken,omitempty"`
	OTPCode      *string `json:"otpCode,omitempty"`
	SecretCode   string  `json:"secretCode,omitempty"`
	QRCode       string  `json:"qrCode,omitempty"`
}

// LoginResponse reports the state of the login flow
type LoginResponse struct {
	State        twofactor.FlowState `json:"state"`
	Step         twofactor.Step      `json:"step,omitempty"`
	Signal       twofactor.Signal    `json:"signal,omitempty"`
	Error        string              `json:"error,omitempty"`
	QRCode       string              `json:"qrCode,omitempty"`
	SecretCode   string              `json:"secretCode,omitempty"`
	PendingToken string              `json:"pendingToken,omitempty"`
	Tokens       *tokenPair          `json:"tokens,omitempty"`
	User         *models.UserAuth    `json:"user,omitempty"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (l LoginRequest) attempt() twofactor.Attempt {
	return twofactor.Attempt{
		Login:        strings.TrimSpace(l.Login),
		Password:     l.Password,
		PendingToken: l.PendingToken,
		OTPCode:      l.OTPCode,
		SecretCode:   l.SecretCode,
		QRCode:       l.QRCode,
	}
}

// login handles the JSON login flow
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := decodeJSON(req, &loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	out, err := r.Logins.Login(req.Context(), loginReq.attempt())
	if err != nil {
		r.respondServiceError(w, err)
		return
	}

	resp := LoginResponse{
		State:        out.State,
		Step:         out.Step,
		Signal:       out.Signal,
		Error:        out.Error,
		QRCode:       out.QRCode,
		SecretCode:   out.SecretCode,
		PendingToken: out.PendingToken,
	}

	status := http.StatusOK
	switch out.State {
	case twofactor.Authenticated:
		resp.Tokens = &tokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
		resp.User = out.User
	case twofactor.Rejected:
		status = http.StatusUnauthorized
	}
	respondJSON(w, status, resp)
}

// logout acknowledges a client side logout. Tokens are stateless and simply
// expire.
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// webLoginPage renders the login form
func (r *Router) webLoginPage(w http.ResponseWriter, req *http.Request) {
	r.renderPage(w, http.StatusOK, web.PageLogin, web.LoginPage{
		Redirect: safeRedirect(req.URL.Query().Get("redirect")),
	})
}

// webLogin handles the form posts of the login, scan and verify pages
func (r *Router) webLogin(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form")
		return
	}

	a := twofactor.Attempt{
		Login:        strings.TrimSpace(req.PostForm.Get("login")),
		Password:     req.PostForm.Get("password"),
		PendingToken: req.PostForm.Get("pending_token"),
		SecretCode:   req.PostForm.Get("secret_code_2fa"),
		QRCode:       req.PostForm.Get("qr_code_2fa"),
	}
	if _, ok := req.PostForm["otp_code"]; ok {
		code := strings.TrimSpace(req.PostForm.Get("otp_code"))
		a.OTPCode = &code
	}
	redirect := safeRedirect(req.PostForm.Get("redirect"))

	out, err := r.Logins.Login(req.Context(), a)
	if err != nil {
		r.log.Error().Err(err).Str("login", a.Login).Msg("login failed")
		r.renderPage(w, http.StatusInternalServerError, web.PageLogin, web.LoginPage{
			Login:    a.Login,
			Redirect: redirect,
			Error:    "Login is temporarily unavailable",
		})
		return
	}

	page := web.LoginPage{
		Login:        a.Login,
		Redirect:     redirect,
		Error:        out.Error,
		PendingToken: out.PendingToken,
		SecretCode:   out.SecretCode,
		QRCode:       out.QRCode,
	}

	switch {
	case out.State == twofactor.Authenticated:
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    out.AccessToken,
			Path:     "/",
			Expires:  time.Now().Add(time.Hour),
			HttpOnly: true,
			Secure:   r.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, req, redirect, http.StatusSeeOther)
	case out.Step == twofactor.StepScanCode:
		r.renderPage(w, http.StatusOK, web.PageScanCode, page)
	case out.Step == twofactor.StepVerifyCode:
		r.renderPage(w, http.StatusOK, web.PageVerifyCode, page)
	default:
		r.renderPage(w, http.StatusOK, web.PageLogin, web.LoginPage{
			Login:    a.Login,
			Redirect: redirect,
			Error:    out.Error,
		})
	}
}

// webLogout drops the session cookie
func (r *Router) webLogout(w http.ResponseWriter, req *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, req, "/web/login", http.StatusSeeOther)
}

func (r *Router) renderPage(w http.ResponseWriter, status int, page string, data web.LoginPage) {
	if r.Pages == nil {
		respondError(w, http.StatusNotFound, "Login pages are not available")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := r.Pages.Render(w, page, data); err != nil {
		r.log.Error().Err(err).Str("page", page).Msg("render failed")
	}
}

// safeRedirect only accepts local absolute paths
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return defaultRedirect
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return defaultRedirect
	}
	return target
}
