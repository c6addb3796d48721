package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// sender is the outbound half of the Bot API the worker needs.
type sender interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Worker long-polls the Bot API and dispatches commands to the query
// service.
type Worker struct {
	client      sender
	queries     *QueryService
	pollTimeout time.Duration
	logger      *logrus.Logger
}

// NewWorker creates a new bot worker
func NewWorker(client sender, queries *QueryService, pollTimeout time.Duration, logger *logrus.Logger) *Worker {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Worker{
		client:      client,
		queries:     queries,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Run polls for updates until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := w.client.GetUpdates(ctx, offset, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.WithError(err).Warn("getUpdates failed, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			w.handleUpdate(ctx, update)
		}
	}
}

func (w *Worker) handleUpdate(ctx context.Context, update Update) {
	if update.Message == nil || !strings.HasPrefix(update.Message.Text, "/") {
		return
	}
	chatID := update.Message.Chat.ID

	reply, err := w.Dispatch(ctx, chatID, update.Message.Text)
	if err != nil {
		w.logger.WithError(err).WithField("chat_id", chatID).Warn("command failed")
		reply = "No tienes acceso o el comando falló. Contacta a tu administrador."
	}

	if err := w.client.SendMessage(ctx, chatID, reply); err != nil {
		w.logger.WithError(err).WithField("chat_id", chatID).Error("sendMessage failed")
	}
}

// Dispatch maps one command line to a query-service call and renders the
// reply. Exported so the worker loop and tests share the exact same
// command surface.
func (w *Worker) Dispatch(ctx context.Context, chatID int64, text string) (string, error) {
	command, arg := splitCommand(text)

	user, err := w.queries.UserForChat(ctx, chatID)
	if err != nil {
		return "", err
	}

	switch command {
	case "/start", "/ayuda":
		return fmt.Sprintf("Hola %s. Comandos: /correo [filtro], /plataforma <nombre>, /asunto <palabra>", user.Username), nil

	case "/correo":
		emails, err := w.queries.AuthorizedEmails(ctx, user.ID, arg)
		if err != nil {
			return "", err
		}
		if len(emails) == 0 {
			return "No tienes correos autorizados.", nil
		}
		return "Tus correos autorizados:\n" + strings.Join(emails, "\n"), nil

	case "/plataforma":
		if arg == "" {
			return "Uso: /plataforma <nombre>", nil
		}
		keywords, err := w.queries.PlatformKeywords(ctx, user.ID, arg)
		if err != nil {
			return "", err
		}
		if len(keywords) == 0 {
			return fmt.Sprintf("No tienes asuntos autorizados en %s.", arg), nil
		}
		return fmt.Sprintf("Asuntos autorizados en %s:\n%s", arg, strings.Join(keywords, "\n")), nil

	case "/asunto":
		if arg == "" {
			return "Uso: /asunto <palabra>", nil
		}
		platforms, err := w.queries.PlatformsForKeyword(ctx, user.ID, arg)
		if err != nil {
			return "", err
		}
		if len(platforms) == 0 {
			return fmt.Sprintf("El asunto %q no está autorizado en ninguna plataforma.", arg), nil
		}
		return fmt.Sprintf("Plataformas con el asunto %q:\n%s", arg, strings.Join(platforms, "\n")), nil

	default:
		return "Comando desconocido. Usa /ayuda.", nil
	}
}

func splitCommand(text string) (command, arg string) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	command = strings.ToLower(parts[0])
	// Commands may arrive as /correo@MyBot in group chats.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	return command, arg
}
