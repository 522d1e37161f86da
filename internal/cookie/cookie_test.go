package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSession(t *testing.T) {
	t.Setenv("DFL_ENV", "")

	w := httptest.NewRecorder()
	SetSession(w, "sealed-value", time.Hour)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookie, c.Name)
	assert.Equal(t, "sealed-value", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestSetSessionDevModeIsNotSecure(t *testing.T) {
	t.Setenv("DFL_ENV", "development")

	w := httptest.NewRecorder()
	SetSession(w, "v", time.Minute)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.False(t, cookies[0].Secure)
}

func TestClearSession(t *testing.T) {
	w := httptest.NewRecorder()
	ClearSession(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestGetSession(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	_, err := GetSession(r)
	assert.ErrorIs(t, err, http.ErrNoCookie)

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
	v, err := GetSession(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}
