package config

const (
	// MaxChatTitleLength is the maximum length for chat titles, both
	// user supplied and derived from the first message.
	MaxChatTitleLength = 120

	// MaxDerivedTitleRunes is where a title derived from the first user
	// message is cut before the ellipsis.
	MaxDerivedTitleRunes = 60

	// MaxChatIDLength bounds client-minted chat ids. Ids must still parse
	// as UUIDs; this only rejects absurd input before parsing.
	MaxChatIDLength = 64

	// MaxMessageLength is the maximum length of one user message.
	MaxMessageLength = 32000
)
