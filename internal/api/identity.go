package api

import (
	"net/http"

	"github.com/google/uuid"
)

const uidCookie = "uid"

// ensureUserID resolves the caller's identity from the uid cookie, issuing a
// fresh one when the cookie is missing or malformed. Handlers pass the
// returned ID explicitly to every downstream call.
func ensureUserID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(uidCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     uidCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
