package auth

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *Store {
	return NewStore(nil, bytes.Repeat([]byte{0x42}, 32), bytes.Repeat([]byte{0x17}, 32))
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}

func TestSessionCookieRoundTrip(t *testing.T) {
	s := testStore()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	require.NoError(t, s.SetSession(w, r, 7))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	sess, ok := s.GetSession(r2)
	require.True(t, ok)
	assert.Equal(t, int64(7), sess.OperatorID)
}

func TestGetSessionRejectsTamperedCookie(t *testing.T) {
	s := testStore()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "garbage"})
	_, ok := s.GetSession(r)
	assert.False(t, ok)
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	s := testStore()
	h := s.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Result().Header.Get("Location"))
}

func TestRequireAuthPassesOperatorID(t *testing.T) {
	s := testStore()

	w := httptest.NewRecorder()
	require.NoError(t, s.SetSession(w, httptest.NewRequest(http.MethodPost, "/login", nil), 42))
	cookie := w.Result().Cookies()[0]

	var gotID int64
	h := s.RequireAuth(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		id, ok := OperatorIDFromContext(r.Context())
		require.True(t, ok)
		gotID = id
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, int64(42), gotID)
}
