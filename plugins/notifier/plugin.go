// Package notifier bridges the fabric to Telegram. Services publish to
// the notifier:send queue; the notifier delivers the text to the
// operator chat. Incoming slash commands run admin commands.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"switchboard/cmd"
	"switchboard/internal/config"
	"switchboard/plugin"
	"switchboard/transport"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// init registers the notifier plugin
func init() {
	plugin.Register(NewNotifierPlugin())
}

// NotifierPlugin provides Telegram delivery for fabric notifications
type NotifierPlugin struct {
	bot    *tgbotapi.BotAPI
	router *cmd.Router
	ctx    context.Context
	stopCh chan struct{}
	chatID atomic.Int64 // Active chat ID for sending messages
}

// notification is the notifier:send payload
type notification struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	ChatID  int64  `json:"chatId,omitempty"`
}

// NewNotifierPlugin creates a new notifier plugin
func NewNotifierPlugin() *NotifierPlugin {
	return &NotifierPlugin{
		stopCh: make(chan struct{}),
	}
}

// Name returns the plugin name
func (p *NotifierPlugin) Name() string {
	return "notifier"
}

// CheckRequirements validates plugin requirements
func (p *NotifierPlugin) CheckRequirements(ctx context.Context) error {
	checker := plugin.NewRequirementChecker("notifier")

	token := p.getToken(ctx)

	checker.AddRequired(
		"telegram_token",
		"Telegram bot token required",
		func(ctx context.Context) error {
			if token == "" {
				return fmt.Errorf("TELEGRAM_TOKEN not set in config or environment")
			}
			return nil
		},
	)

	checker.AddRequired(
		"daemon_mode",
		"Notifier requires daemon mode",
		plugin.RequireMode(plugin.ModeDaemon),
	)

	return checker.Check(ctx)
}

// getToken retrieves the Telegram token from config or environment
func (p *NotifierPlugin) getToken(ctx context.Context) string {
	if cfg, ok := ctx.Value("config").(*config.Config); ok {
		if token, ok := cfg.GetPluginSettingString("notifier", "token"); ok && token != "" {
			return token
		}
	}
	return os.Getenv("TELEGRAM_TOKEN")
}

// Extensions returns the plugin's extensions
func (p *NotifierPlugin) Extensions() []plugin.Extension {
	return []plugin.Extension{
		plugin.NewServiceExtension("notifier", func() []string {
			return []string{transport.QueueName("notifier", "send")}
		}),
	}
}

// Start initializes the Telegram bot and attaches the send queue
func (p *NotifierPlugin) Start(ctx context.Context, client *transport.Client) error {
	p.ctx = ctx
	p.router = cmd.NewRouter()

	token := p.getToken(ctx)

	var err error
	p.bot, err = tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	log.Printf("[Notifier] Authorized on account %s", p.bot.Self.UserName)

	if cfg, ok := ctx.Value("config").(*config.Config); ok {
		if chatID, ok := cfg.GetPluginSettingInt("notifier", "chat_id"); ok {
			p.chatID.Store(int64(chatID))
		}
	}

	queue := transport.QueueName("notifier", "send")
	if err := client.ConsumeQueue(queue, p.handleSend); err != nil {
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}

	go p.handleTelegramUpdates()

	log.Printf("[Notifier] Started")
	return nil
}

// Stop shuts down the Telegram bot
func (p *NotifierPlugin) Stop(ctx context.Context) error {
	close(p.stopCh)

	if p.bot != nil {
		p.bot.StopReceivingUpdates()
	}

	log.Printf("[Notifier] Stopped")
	return nil
}

// handleSend delivers one queued notification. A returned error puts
// the message back on the queue for redelivery.
func (p *NotifierPlugin) handleSend(ctx context.Context, env transport.Envelope) error {
	var n notification
	if err := json.Unmarshal(env.Data, &n); err != nil {
		log.Printf("[Notifier] Dropping malformed notification: %v", err)
		return nil
	}
	if n.Content == "" {
		log.Printf("[Notifier] Dropping empty notification from tenant %s", env.Subdomain)
		return nil
	}

	chatID := n.ChatID
	if chatID == 0 {
		chatID = p.chatID.Load()
	}
	if chatID == 0 {
		return fmt.Errorf("no active chat to deliver to")
	}

	text := n.Content
	if n.Title != "" {
		text = n.Title + "\n" + n.Content
	}
	if env.Subdomain != "" {
		text = fmt.Sprintf("[%s] %s", env.Subdomain, text)
	}

	return p.sendMessage(chatID, text)
}

// handleTelegramUpdates receives updates from Telegram
func (p *NotifierPlugin) handleTelegramUpdates() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := p.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			p.chatID.Store(update.Message.Chat.ID)

			log.Printf("[Notifier] [%s] %s", update.Message.From.UserName, update.Message.Text)

			p.processMessage(update.Message)

		case <-p.stopCh:
			return
		}
	}
}

// processMessage handles one incoming Telegram message
func (p *NotifierPlugin) processMessage(message *tgbotapi.Message) {
	text := message.Text

	if !strings.HasPrefix(text, "/") {
		p.sendMessage(message.Chat.ID, "Send /help for available commands")
		return
	}

	result, err := p.router.Route(p.ctx, strings.TrimPrefix(text, "/"))
	if err != nil {
		p.sendMessage(message.Chat.ID, fmt.Sprintf("Error: %v", err))
		return
	}

	if result != nil && result.Output != "" {
		p.sendMessage(message.Chat.ID, result.Output)
	}
}

// sendMessage sends a message to a Telegram chat
func (p *NotifierPlugin) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := p.bot.Send(msg); err != nil {
		log.Printf("[Notifier] Error sending message: %v", err)
		return err
	}
	return nil
}
