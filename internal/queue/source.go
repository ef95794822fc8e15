package queue

// SourceMetadata is the per-source completion payload carried by a message.
// It is a closed sum: the router switches on the concrete type, and an
// unknown source is a programming error rather than a runtime fallback.
type SourceMetadata interface {
	sourceMetadata()
}

// WebChatMetadata accompanies web-chat messages. The chat event bus already
// delivers responses to the websocket layer, so routing is a no-op.
type WebChatMetadata struct{}

func (WebChatMetadata) sourceMetadata() {}

// SystemEventMetadata accompanies internally generated messages (scheduler
// firings, lifecycle events). Responses are logged, not routed.
type SystemEventMetadata struct {
	// Origin names the subsystem that enqueued the event.
	Origin string
}

func (SystemEventMetadata) sourceMetadata() {}

// SlackMetadata carries the Slack adapter's completion callbacks.
type SlackMetadata struct {
	// Resolve delivers the orchestrator's response to the Slack thread.
	Resolve func(response string)

	// OnError is invoked if delivery fails. Optional.
	OnError func(errText string)
}

func (SlackMetadata) sourceMetadata() {}

// WhatsAppMetadata carries the WhatsApp adapter's reply target.
type WhatsAppMetadata struct {
	ChatID string

	// Reply sends the response back to the chat.
	Reply func(chatID, response string)

	// OnError is invoked if delivery fails. Optional.
	OnError func(errText string)
}

func (WhatsAppMetadata) sourceMetadata() {}

// DiscordMetadata carries the Discord adapter's reply target.
type DiscordMetadata struct {
	ChannelID string

	// Reply sends the response back to the channel.
	Reply func(channelID, response string)

	// OnError is invoked if delivery fails. Optional.
	OnError func(errText string)
}

func (DiscordMetadata) sourceMetadata() {}
