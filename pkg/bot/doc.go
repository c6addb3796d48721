// Package bot implements the Telegram-facing query side of the panel: a
// read-only service that answers an end user's mailbox questions
// (/correo, /plataforma, /asunto) strictly within that user's authorized
// set, plus a minimal Bot API client and the long-polling worker that
// ties the two together.
//
// Users are recognized by the telegram_chat_id bound to their account in
// the admin panel; an unbound chat gets nothing.
package bot
