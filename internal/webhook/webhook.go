package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Update is an incoming Telegram update, trimmed to the fields the bot
// reads.
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int    `json:"message_id"`
	From      User   `json:"from"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Bot is the command surface the webhook routes to.
type Bot interface {
	HandlePreliminary(ctx context.Context) error
	HandleUpdate(ctx context.Context, eventID string) error
	HandleRetraction(ctx context.Context, eventID string) error
	SendWelcome(ctx context.Context, chatID int64) error
	SendLatest(ctx context.Context, chatID int64) error
	SendStats(ctx context.Context, chatID int64) error
	SendDetectorStatus(ctx context.Context, chatID int64) error
	Subscribe(ctx context.Context, chatID int64) error
	Unsubscribe(ctx context.Context, chatID int64) error
}

// Server handles Telegram updates posted to a secret path. Alert notices
// arrive on the same path as the internal /preliminary, /update and
// /retraction commands, so knowing the path is what authenticates them.
type Server struct {
	secret string
	bot    Bot
	log    zerolog.Logger
}

func NewServer(secret string, bot Bot, log zerolog.Logger) *Server {
	return &Server{
		secret: secret,
		bot:    bot,
		log:    log.With().Str("component", "webhook").Logger(),
	}
}

// Handler returns the HTTP handler serving the webhook on /<secret>.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+s.secret, s.handleUpdate)
	return mux
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.log.Warn().Err(err).Msg("undecodable update")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if update.Message != nil {
		s.dispatch(r.Context(), update.Message)
	}

	// Telegram retries anything but a 2xx, so the reply is always OK once
	// the update was decoded.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) dispatch(ctx context.Context, msg *Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	chatID := msg.Chat.ID

	var err error
	switch command(text) {
	case "/start", "/help":
		err = s.bot.SendWelcome(ctx, chatID)
	case "/latest":
		err = s.bot.SendLatest(ctx, chatID)
	case "/stats":
		err = s.bot.SendStats(ctx, chatID)
	case "/status":
		err = s.bot.SendDetectorStatus(ctx, chatID)
	case "/subscribe":
		err = s.bot.Subscribe(ctx, chatID)
	case "/unsubscribe":
		err = s.bot.Unsubscribe(ctx, chatID)
	case "/preliminary":
		err = s.bot.HandlePreliminary(ctx)
	case "/update":
		err = s.bot.HandleUpdate(ctx, lastField(text))
	case "/retraction":
		err = s.bot.HandleRetraction(ctx, lastField(text))
	default:
		s.log.Debug().Str("text", text).Int64("chat_id", chatID).Msg("unknown command")
		return
	}
	if err != nil {
		s.log.Error().Str("text", text).Int64("chat_id", chatID).Err(err).Msg("command failed")
	}
}

// command extracts the command word, dropping any @botname suffix that
// Telegram appends in group chats.
func command(text string) string {
	cmd := strings.Fields(text)[0]
	if at := strings.Index(cmd, "@"); at != -1 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// lastField returns the last whitespace-separated token, which is where
// alert notices carry the event id.
func lastField(text string) string {
	fields := strings.Fields(text)
	return fields[len(fields)-1]
}
