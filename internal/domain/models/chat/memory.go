package chat

import "time"

// MemoryType classifies a stored memory.
type MemoryType string

const (
	MemoryEpisodic   MemoryType = "episodic"
	MemoryFact       MemoryType = "fact"
	MemoryPreference MemoryType = "preference"
	MemoryArtefact   MemoryType = "artefact"
)

// Memory is an embedded fact, preference or episode extracted from a conversation.
// Created only when the classifier approves; never updated.
type Memory struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	ThreadID  string     `json:"thread_id" db:"thread_id"`
	Content   string     `json:"content" db:"content"`
	Type      MemoryType `json:"memory_type" db:"memory_type"`
	Embedding []float32  `json:"-" db:"embedding"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ScoredMemory is a search hit ranked by cosine similarity.
type ScoredMemory struct {
	Memory
	Score float64 `json:"score"`
}
