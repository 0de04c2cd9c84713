package handler

import (
	"net/http"
	"slices"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/session"
)

// authenticate resolves the session token of the request and rejects
// sessions whose role is not in roles.
func (h *Handler) authenticate(next http.HandlerFunc, roles ...session.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.sessions.Resolve(r.Context(), r.Header.Get(SessionHeader))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, s.Role) {
			writeError(w, r, session.ErrForbidden)
			return
		}
		next(w, r.WithContext(session.With(r.Context(), *s)))
	})
}

// Login starts a session for the identity in the body.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s := session.Session{
		UserEmail: req.Email,
		ShopID:    req.ShopID,
		ShopName:  req.ShopName,
		Role:      session.Role(req.Role),
	}
	if s.Role == "" {
		s.Role = session.RoleCustomer
	}

	token, err := h.sessions.Login(r.Context(), s)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(token)
		e.FieldStart("role")
		e.Str(string(s.Role))
		e.ObjEnd()
	})
}

// Logout ends the session of the request token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), r.Header.Get(SessionHeader)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
