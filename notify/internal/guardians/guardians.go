// Package guardians resolves which guardians to notify for a ward.
package guardians

import "context"

// Preferences holds a guardian's per-channel opt-in flags.
type Preferences struct {
	Email    bool `json:"email"`
	SMS      bool `json:"sms"`
	Push     bool `json:"push"`
	Telegram bool `json:"telegram"`
}

// Guardian is a notification recipient linked to a ward.
type Guardian struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	PushToken      string      `json:"pushToken"`
	TelegramChatID string      `json:"telegramChatId"`
	Preferences    Preferences `json:"preferences"`
}

// Directory looks up the guardians responsible for a ward.
type Directory interface {
	GuardiansForWard(ctx context.Context, wardID string) ([]Guardian, error)
}
