package bot

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	t.Run("getUpdates decodes the update list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/bottoken123/getUpdates", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.Form.Get("offset"))

			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true,
				"result": []map[string]interface{}{
					{
						"update_id": 42,
						"message": map[string]interface{}{
							"chat": map[string]interface{}{"id": 777},
							"text": "/correo",
						},
					},
				},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "token123")
		updates, err := client.GetUpdates(context.Background(), 42, 30*time.Second)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, int64(42), updates[0].UpdateID)
		assert.Equal(t, int64(777), updates[0].Message.Chat.ID)
		assert.Equal(t, "/correo", updates[0].Message.Text)
	})

	t.Run("sendMessage posts the chat id and text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/bottoken123/sendMessage", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "777", r.Form.Get("chat_id"))
			assert.Equal(t, "hola", r.Form.Get("text"))

			json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": map[string]interface{}{}})
		}))
		defer server.Close()

		client := NewClient(server.URL, "token123")
		require.NoError(t, client.SendMessage(context.Background(), 777, "hola"))
	})

	t.Run("api rejection surfaces the description", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":          false,
				"description": "Unauthorized",
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "badtoken")
		err := client.SendMessage(context.Background(), 777, "hola")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unauthorized")
	})
}

func newTestWorker(t *testing.T) (*Worker, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return NewWorker(nil, NewQueryService(db), time.Second, logger), mock
}

func expectChatUser(mock sqlmock.Sqlmock, chatID, userID int64, username string) {
	mock.ExpectQuery(`SELECT id, username FROM users WHERE telegram_chat_id = \$1`).
		WithArgs(chatID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(userID, username))
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("correo lists the user's mailboxes", func(t *testing.T) {
		worker, mock := newTestWorker(t)

		expectChatUser(mock, 777, 8, "cliente1")
		mock.ExpectQuery(`SELECT ae.email`).
			WithArgs(int64(8), "").
			WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@example.com"))

		reply, err := worker.Dispatch(ctx, 777, "/correo")
		require.NoError(t, err)
		assert.Contains(t, reply, "ana@example.com")

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("correo with filter and bot suffix", func(t *testing.T) {
		worker, mock := newTestWorker(t)

		expectChatUser(mock, 777, 8, "cliente1")
		mock.ExpectQuery(`SELECT ae.email`).
			WithArgs(int64(8), "netflix").
			WillReturnRows(sqlmock.NewRows([]string{"email"}))

		reply, err := worker.Dispatch(ctx, 777, "/correo@BuzonBot netflix")
		require.NoError(t, err)
		assert.Equal(t, "No tienes correos autorizados.", reply)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("plataforma requires an argument", func(t *testing.T) {
		worker, mock := newTestWorker(t)

		expectChatUser(mock, 777, 8, "cliente1")

		reply, err := worker.Dispatch(ctx, 777, "/plataforma")
		require.NoError(t, err)
		assert.Equal(t, "Uso: /plataforma <nombre>", reply)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("asunto lists the matching platforms", func(t *testing.T) {
		worker, mock := newTestWorker(t)

		expectChatUser(mock, 777, 8, "cliente1")
		mock.ExpectQuery(`SELECT p.name`).
			WithArgs(int64(8), "codigo").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Netflix"))

		reply, err := worker.Dispatch(ctx, 777, "/asunto codigo")
		require.NoError(t, err)
		assert.Contains(t, reply, "Netflix")

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unlinked chat errors", func(t *testing.T) {
		worker, mock := newTestWorker(t)

		mock.ExpectQuery(`SELECT id, username FROM users WHERE telegram_chat_id = \$1`).
			WithArgs(int64(999)).
			WillReturnError(sql.ErrNoRows)

		_, err := worker.Dispatch(ctx, 999, "/correo")
		require.Error(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown command gets help", func(t *testing.T) {
		worker, mock := newTestWorker(t)

		expectChatUser(mock, 777, 8, "cliente1")

		reply, err := worker.Dispatch(ctx, 777, "/baila")
		require.NoError(t, err)
		assert.Equal(t, "Comando desconocido. Usa /ayuda.", reply)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
