package handlers

import (
	"net/http"

	"github.com/ventortech/merpwms/internal/middleware"
	"github.com/ventortech/merpwms/internal/models"
	"github.com/ventortech/merpwms/internal/twofactor"
)

// UserIDsRequest names the users of a 2FA action
type UserIDsRequest struct {
	UserIDs []string `json:"userIds"`
}

// listUsers returns all users (admin only)
func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.Users.List(req.Context())
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// actor loads the calling user
func (r *Router) actor(req *http.Request) (*models.UserAuth, error) {
	c, _ := middleware.ClaimsFrom(req.Context())
	return r.Users.ByID(req.Context(), c.UserID)
}

func (r *Router) readUserIDs(w http.ResponseWriter, req *http.Request) ([]string, bool) {
	var body UserIDsRequest
	if err := decodeJSON(req, &body); err != nil || len(body.UserIDs) == 0 {
		respondError(w, http.StatusBadRequest, "userIds is required")
		return nil, false
	}
	return body.UserIDs, true
}

// enableTwoFactor turns two factor authentication on for users
func (r *Router) enableTwoFactor(w http.ResponseWriter, req *http.Request) {
	ids, ok := r.readUserIDs(w, req)
	if !ok {
		return
	}
	actor, err := r.actor(req)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	if err := r.Logins.EnableTwoFactor(req.Context(), actor, ids); err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"enabled": ids})
}

// disableTwoFactor turns two factor authentication off and drops the
// stored credentials
func (r *Router) disableTwoFactor(w http.ResponseWriter, req *http.Request) {
	ids, ok := r.readUserIDs(w, req)
	if !ok {
		return
	}
	actor, err := r.actor(req)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	if err := r.Logins.DisableTwoFactor(req.Context(), actor, ids); err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"disabled": ids})
}

// discardTwoFactor clears the stored secret so the next login provisions a
// new one. Users may discard their own credentials.
func (r *Router) discardTwoFactor(w http.ResponseWriter, req *http.Request) {
	ids, ok := r.readUserIDs(w, req)
	if !ok {
		return
	}
	c, _ := middleware.ClaimsFrom(req.Context())
	if !c.IsAdmin() {
		for _, id := range ids {
			if id != c.UserID {
				respondError(w, http.StatusForbidden, twofactor.MsgAdminOnly)
				return
			}
		}
	}
	if err := r.Logins.DiscardCredentials(req.Context(), ids); err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"discarded": ids})
}
