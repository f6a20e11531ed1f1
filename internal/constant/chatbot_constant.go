package constant

const (
	MessageFromUser = "user"
	MessageFromBot  = "bot"

	// FallbackReply is sent when generation never produced a usable answer.
	FallbackReply = "I don't know"

	// DefaultChatTitle replaces titles the backend failed to produce or that
	// came back too short to be meaningful.
	DefaultChatTitle = "MediBot"

	// TitleUnavailable is the relay-side placeholder when title generation
	// itself fails; the registry maps it to DefaultChatTitle.
	TitleUnavailable = "No title available"

	// MinTitleChars below which a generated title is treated as unusable.
	MinTitleChars = 3

	PersistTurnTopic  = "PERSIST_CHAT_TURN"
	TurnEventSubject  = "chat.turn_completed"
	SystemNoticeTopic = "events.system.notice"

	OllamaDefaultBaseURL = "http://localhost:11434"
	OllamaDefaultModel   = "llama3"
)

// SystemInstructions frames every generation request. The formatting hints
// match what the mobile client's renderer understands.
const SystemInstructions = `You are a helpful assistant. ` +
	`Answer the user's questions in a concise and informative manner. ` +
	`If you don't know the answer, say 'I don't know' in the respective language. ` +
	`Use these to make the text more comfortable for the user: ` +
	`separator: --- Bold: ** Italicize: _ List item: * Titles: # Subtitles: ## Sub subtitles: ###. ` +
	`You will not be able to answer any question that it is not related to health, medicine, pills/drugs or, our app, ` +
	`if the user's text is not about any of those topics, you will reject the answer on a polite way. ` +
	`Use emojis to make your response more engaging. ` +
	`If the user asks for a summary, provide it in a concise manner.`

// TitleInstructions asks the backend for a bare title, nothing else. It is
// sent as the closing user turn of the exchange's chat history.
const TitleInstructions = `You are a helpful assistant. ` +
	`Generate a concise title for this conversation in %s. ` +
	`You will only return the title, nothing else, without "".`
