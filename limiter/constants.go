package limiter

import "time"

// Named policies bound by the application forms and composers.
const (
	PolicyLogin        = "login"
	PolicySignup       = "signup"
	PolicyChatMessage  = "chat_message"
	PolicyNoteCreation = "note_creation"
)

// Storage types
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Memory store sweep defaults.
const (
	DefaultSweepInterval = 1 * time.Minute
	DefaultMaxIdle       = 1 * time.Hour
)
