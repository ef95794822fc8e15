package queue

import (
	"log/slog"
)

// ChatNotifier is the chat-conversation store's boundary contract: the
// ability to post a system message into a conversation. The store itself
// is an external collaborator.
type ChatNotifier interface {
	PostSystemMessage(conversationID, text string) error
}

// Router delivers completed responses back to the source that enqueued the
// message, switching on the metadata sum type.
type Router struct {
	notifier ChatNotifier
	logger   *slog.Logger
}

// NewRouter creates a response router. notifier may be nil when no chat
// store is attached (tests, headless runs).
func NewRouter(notifier ChatNotifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{notifier: notifier, logger: logger.With("component", "router")}
}

// Route returns a response to the message's originating source.
//
// Web-chat responses are a no-op here: the chat event bus already delivered
// them to the websocket layer. Messenger sources get their completion
// callback. System events are logged only.
func (r *Router) Route(msg Message, response string) {
	switch meta := msg.Metadata.(type) {
	case WebChatMetadata, nil:
		// Delivered via the chat event bus.
	case SystemEventMetadata:
		r.logger.Info("system event completed",
			"conversation", msg.ConversationID, "origin", meta.Origin)
	case SlackMetadata:
		if meta.Resolve != nil {
			meta.Resolve(response)
		}
	case WhatsAppMetadata:
		if meta.Reply != nil {
			meta.Reply(meta.ChatID, response)
		}
	case DiscordMetadata:
		if meta.Reply != nil {
			meta.Reply(meta.ChannelID, response)
		}
	default:
		r.logger.Error("unroutable source metadata",
			"conversation", msg.ConversationID, "source", msg.Source)
	}
}

// RouteError posts a system message to the originating conversation and
// invokes the source's error callback, if any.
func (r *Router) RouteError(msg Message, errText string) {
	if r.notifier != nil && msg.ConversationID != "" {
		if err := r.notifier.PostSystemMessage(msg.ConversationID, errText); err != nil {
			r.logger.Warn("posting system message failed",
				"conversation", msg.ConversationID, "error", err)
		}
	}

	switch meta := msg.Metadata.(type) {
	case SlackMetadata:
		if meta.OnError != nil {
			meta.OnError(errText)
		}
	case WhatsAppMetadata:
		if meta.OnError != nil {
			meta.OnError(errText)
		}
	case DiscordMetadata:
		if meta.OnError != nil {
			meta.OnError(errText)
		}
	}
}
