package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hash(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestNewAPIKeyAuthRejectsPlaintext(t *testing.T) {
	_, err := NewAPIKeyAuth([]string{"not-a-hash"})
	assert.Error(t, err)

	a, err := NewAPIKeyAuth([]string{"", "  "})
	require.NoError(t, err)
	assert.False(t, a.Enabled())
}

func TestAPIKeyAuthIsValid(t *testing.T) {
	a, err := NewAPIKeyAuth([]string{hash(t, "alpha"), hash(t, "beta")})
	require.NoError(t, err)

	assert.True(t, a.IsValid("alpha"))
	assert.True(t, a.IsValid("beta"))
	assert.False(t, a.IsValid("gamma"))
	assert.False(t, a.IsValid(""))
}

func TestKeyFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, KeyFromRequest(r))

	r.Header.Set("Authorization", "bearer tok")
	assert.Equal(t, "tok", KeyFromRequest(r))

	r.Header.Set(APIKeyHeader, "from-header")
	assert.Equal(t, "from-header", KeyFromRequest(r))
}

func TestMiddlewarePassThroughWhenDisabled(t *testing.T) {
	a, err := NewAPIKeyAuth(nil)
	require.NoError(t, err)

	called := false
	h := a.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, called)
}

func TestMiddlewareRejects(t *testing.T) {
	a, err := NewAPIKeyAuth([]string{hash(t, "alpha")})
	require.NoError(t, err)
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"success":false`))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(APIKeyHeader, "alpha")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mw("first"), mw("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("1.2.3")

	st := c.Check(context.Background())
	assert.True(t, st.Healthy)
	assert.Equal(t, "No health checks registered", st.Message)

	c.AddCheck("store", func(context.Context) error { return nil })
	c.AddCheck("redis", func(context.Context) error { return errors.New("refused") })
	st = c.Check(context.Background())
	assert.False(t, st.Healthy)
	assert.Equal(t, "Some checks failed: redis", st.Message)
	assert.Equal(t, "1.2.3", st.Version)
	assert.True(t, st.Checks["store"].Healthy)
	assert.Equal(t, "refused", st.Checks["redis"].Message)
}

func TestCompositeHealthCheckerTimeout(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	st := c.Check(context.Background())
	assert.False(t, st.Healthy)
	assert.Contains(t, st.Checks["slow"].Message, "deadline")
}
