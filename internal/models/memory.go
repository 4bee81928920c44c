package models

// PersonalFact is one extracted statement about a user.
type PersonalFact struct {
	Content   string     `json:"content"`
	Source    FactSource `json:"source"`
	CreatedAt int64      `json:"createdAt"`
}

// MemoryRecord is the durable per-user distillation of facts, preferences,
// and the rolling conversation summary. At most one exists per user; it is
// created lazily on first access and never deleted.
type MemoryRecord struct {
	UserID      string            `json:"userId"`
	Facts       []PersonalFact    `json:"facts"`
	Preferences map[string]string `json:"preferences"`
	Summary     string            `json:"summary"`
	LastUpdated int64             `json:"lastUpdated"`
}

// APICredential grants programmatic access to the API on behalf of a user.
// The secret is stored as a sha256 hash, never in the clear.
type APICredential struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	SecretHash string `json:"-"`
	Label      string `json:"label"`
	ExpiresAt  *int64 `json:"expiresAt,omitempty"`
	LastUsedAt *int64 `json:"lastUsedAt,omitempty"`
	UsageCount int    `json:"usageCount"`
	Active     bool   `json:"active"`
	CreatedAt  int64  `json:"createdAt"`
}
