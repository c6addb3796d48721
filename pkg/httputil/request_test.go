package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"plantilla"}`))

		var dest struct {
			Name string `json:"name"`
		}
		require.NoError(t, ParseJSON(r, &dest))
		assert.Equal(t, "plantilla", dest.Name)
	})

	t.Run("invalid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))

		var dest struct{}
		err := ParseJSON(r, &dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`oops`))

	var dest struct{}
	ok := ParseJSONOrError(w, r, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestParsePathInt64(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/users/42", nil)
		r = mux.SetURLVars(r, map[string]string{"id": "42"})

		val, err := ParsePathInt64(r, "id")
		require.NoError(t, err)
		assert.Equal(t, int64(42), val)
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/users", nil)

		_, err := ParsePathInt64(r, "id")
		assert.Error(t, err)
	})

	t.Run("not a number", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
		r = mux.SetURLVars(r, map[string]string{"id": "abc"})

		_, err := ParsePathInt64(r, "id")
		assert.Error(t, err)
	})
}

func TestParseQueryInt(t *testing.T) {
	t.Run("default when absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/emails", nil)

		val, err := ParseQueryInt(r, "offset", 0)
		require.NoError(t, err)
		assert.Equal(t, 0, val)
	})

	t.Run("parses value", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/emails?offset=40", nil)

		val, err := ParseQueryInt(r, "offset", 0)
		require.NoError(t, err)
		assert.Equal(t, 40, val)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/emails?offset=x", nil)

		_, err := ParseQueryInt(r, "offset", 0)
		assert.Error(t, err)
	})
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/emails?q=netflix", nil)
	assert.Equal(t, "netflix", ParseQueryString(r, "q", ""))
	assert.Equal(t, "fallback", ParseQueryString(r, "missing", "fallback"))
}

func TestRequireNonEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	assert.True(t, RequireNonEmpty(w, "ana", "username"))

	w = httptest.NewRecorder()
	assert.False(t, RequireNonEmpty(w, "", "username"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username is required")
}

func TestRequirePositive(t *testing.T) {
	w := httptest.NewRecorder()
	assert.True(t, RequirePositive(w, 5, "user_id"))

	w = httptest.NewRecorder()
	assert.False(t, RequirePositive(w, 0, "user_id"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
