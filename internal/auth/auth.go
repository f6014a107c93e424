package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/visa-checker/internal/store"
)

// Store authenticates operators against the database and round-trips
// their session through a securecookie.
type Store struct {
	sc     *securecookie.SecureCookie
	repo   *store.Store
	maxAge time.Duration
}

type ctxKey string

const operatorIDKey ctxKey = "operatorID"

const cookieName = "visacheck_session"

func NewStore(repo *store.Store, hashKey, blockKey []byte) *Store {
	maxAge := 14 * 24 * time.Hour
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	return &Store{sc: sc, repo: repo, maxAge: maxAge}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (int64, error) {
	op, err := s.repo.GetOperator(ctx, username)
	if err != nil {
		return 0, err
	}
	if !CheckPassword(op.PasswordBcrypt, password) {
		return 0, errors.New("invalid credentials")
	}
	return op.ID, nil
}

type Session struct {
	OperatorID int64
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, operatorID int64) error {
	encoded, err := s.sc.Encode(cookieName, map[string]any{"oid": operatorID, "v": 1})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(s.maxAge.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]any{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	switch id := val["oid"].(type) {
	case int64:
		if id > 0 {
			return Session{OperatorID: id}, true
		}
	case float64:
		if id > 0 {
			return Session{OperatorID: int64(id)}, true
		}
	}
	return Session{}, false
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), operatorIDKey, sess.OperatorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func OperatorIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(operatorIDKey).(int64)
	return id, ok
}
