package migration

import (
	"github.com/majstori/marketplace-chat/internal/domain"
	"github.com/majstori/marketplace-chat/internal/repository"
	"gorm.io/gorm"
)

// ChatModels lists every table owned by the chat core
func ChatModels() []interface{} {
	return []interface{}{
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.Receipt{},
	}
}

// Run executes AutoMigrate for the chat tables.
// withDirectory also creates the provider_profiles projection, which production reads from the marketplace schema.
func Run(db *gorm.DB, withDirectory bool) error {
	// AutoMigrate - create if missing, add new columns otherwise
	if err := db.AutoMigrate(ChatModels()...); err != nil {
		return err
	}
	if withDirectory {
		return db.AutoMigrate(&repository.ProviderProfile{})
	}
	return nil
}

// BackfillParticipants creates membership rows for conversations that predate chat_participants
func BackfillParticipants(db *gorm.DB) (int64, error) {
	var inserted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`INSERT INTO chat_participants (conversation_id, user_id, role, joined_at)
			SELECT c.id, c.provider_id, 'provider', c.created_at FROM chat_conversations c
			WHERE NOT EXISTS (SELECT 1 FROM chat_participants p WHERE p.conversation_id = c.id AND p.user_id = c.provider_id)`)
		if res.Error != nil {
			return res.Error
		}
		inserted += res.RowsAffected

		res = tx.Exec(`INSERT INTO chat_participants (conversation_id, user_id, role, joined_at)
			SELECT c.id, c.customer_id, 'customer', c.created_at FROM chat_conversations c
			WHERE c.customer_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM chat_participants p WHERE p.conversation_id = c.id AND p.user_id = c.customer_id)`)
		if res.Error != nil {
			return res.Error
		}
		inserted += res.RowsAffected
		return nil
	})
	return inserted, err
}
