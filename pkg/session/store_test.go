package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create then get round-trips the identity", func(t *testing.T) {
		store, _ := newTestStore(t)

		created, err := store.Create(ctx, 5, "admin_a", authz.RoleAdmin)
		require.NoError(t, err)
		require.NotEmpty(t, created.Token)

		got, err := store.Get(ctx, created.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.UserID)
		assert.Equal(t, "admin_a", got.Username)
		assert.Equal(t, authz.RoleAdmin, got.Role)
		assert.Equal(t, authz.Actor{ID: 5, Role: authz.RoleAdmin}, got.Actor())
	})

	t.Run("unknown token is not found", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.Get(ctx, "nope")
		require.ErrorIs(t, err, authz.ErrNotFound)
	})

	t.Run("expired token is not found", func(t *testing.T) {
		store, mr := newTestStore(t)

		created, err := store.Create(ctx, 5, "admin_a", authz.RoleAdmin)
		require.NoError(t, err)

		mr.FastForward(2 * time.Hour)

		_, err = store.Get(ctx, created.Token)
		require.ErrorIs(t, err, authz.ErrNotFound)
	})

	t.Run("get slides the expiry forward", func(t *testing.T) {
		store, mr := newTestStore(t)

		created, err := store.Create(ctx, 5, "admin_a", authz.RoleAdmin)
		require.NoError(t, err)

		mr.FastForward(50 * time.Minute)
		_, err = store.Get(ctx, created.Token)
		require.NoError(t, err)

		// Without the touch this would be past the original TTL.
		mr.FastForward(50 * time.Minute)
		_, err = store.Get(ctx, created.Token)
		require.NoError(t, err)
	})

	t.Run("delete closes the session", func(t *testing.T) {
		store, _ := newTestStore(t)

		created, err := store.Create(ctx, 5, "admin_a", authz.RoleAdmin)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, created.Token))

		_, err = store.Get(ctx, created.Token)
		require.ErrorIs(t, err, authz.ErrNotFound)

		// Deleting again is fine.
		require.NoError(t, store.Delete(ctx, created.Token))
	})
}

func TestFlash(t *testing.T) {
	ctx := context.Background()

	t.Run("set then pop consumes the message", func(t *testing.T) {
		store, _ := newTestStore(t)

		require.NoError(t, store.SetFlash(ctx, "tok", "Se asignaron 3 correos"))

		msg, err := store.PopFlash(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, "Se asignaron 3 correos", msg)

		msg, err = store.PopFlash(ctx, "tok")
		require.NoError(t, err)
		assert.Empty(t, msg)
	})

	t.Run("no pending message is empty, not an error", func(t *testing.T) {
		store, _ := newTestStore(t)

		msg, err := store.PopFlash(ctx, "tok")
		require.NoError(t, err)
		assert.Empty(t, msg)
	})

	t.Run("a newer message replaces an unread one", func(t *testing.T) {
		store, _ := newTestStore(t)

		require.NoError(t, store.SetFlash(ctx, "tok", "first"))
		require.NoError(t, store.SetFlash(ctx, "tok", "second"))

		msg, err := store.PopFlash(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, "second", msg)
	})

	t.Run("unread messages expire", func(t *testing.T) {
		store, mr := newTestStore(t)

		require.NoError(t, store.SetFlash(ctx, "tok", "stale"))
		mr.FastForward(10 * time.Minute)

		msg, err := store.PopFlash(ctx, "tok")
		require.NoError(t, err)
		assert.Empty(t, msg)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("valid cookie puts the actor and session on the context", func(t *testing.T) {
		store, _ := newTestStore(t)

		created, err := store.Create(context.Background(), 5, "admin_a", authz.RoleAdmin)
		require.NoError(t, err)

		var got authz.Actor
		var found bool
		var sess *Session
		var sessFound bool
		handler := Middleware(store, "buzonshare_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, found = authz.ActorFromContext(r.Context())
			sess, sessFound = FromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/users", nil)
		req.AddCookie(&http.Cookie{Name: "buzonshare_session", Value: created.Token})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.True(t, found)
		assert.Equal(t, authz.Actor{ID: 5, Role: authz.RoleAdmin}, got)
		require.True(t, sessFound)
		assert.Equal(t, created.Token, sess.Token)
	})

	t.Run("missing cookie passes through unauthenticated", func(t *testing.T) {
		store, _ := newTestStore(t)

		var found bool
		handler := Middleware(store, "buzonshare_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, found = authz.ActorFromContext(r.Context())
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/users", nil))
		assert.False(t, found)
	})

	t.Run("stale cookie passes through unauthenticated", func(t *testing.T) {
		store, mr := newTestStore(t)

		created, err := store.Create(context.Background(), 5, "admin_a", authz.RoleAdmin)
		require.NoError(t, err)
		mr.FastForward(2 * time.Hour)

		var found bool
		handler := Middleware(store, "buzonshare_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, found = authz.ActorFromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/users", nil)
		req.AddCookie(&http.Cookie{Name: "buzonshare_session", Value: created.Token})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.False(t, found)
	})
}
