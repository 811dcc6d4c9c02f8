package repository

import (
	"testing"

	"github.com/hitoshi/cronpost/internal/model"
)

// PostgresEmailLogRepoがEmailLogRepositoryインターフェースを満たすことを検証
func TestPostgresEmailLogRepo_ImplementsInterface(t *testing.T) {
	var _ EmailLogRepository = (*PostgresEmailLogRepo)(nil)
}

// NewPostgresEmailLogRepoが正しく初期化されることを検証
func TestNewPostgresEmailLogRepo_Initializes(t *testing.T) {
	repo := NewPostgresEmailLogRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// EmailLogモデルの既定値を検証
func TestPostgresEmailLogRepo_EmailLogModel_Defaults(t *testing.T) {
	log := &model.EmailLog{
		ID:             "log-id-1",
		UserID:         "user-id-1",
		RecipientEmail: "taro@example.com",
		EmailType:      model.EmailTypeSubscription,
		Status:         model.EmailLogStatusQueued,
	}

	if log.Status != model.EmailLogStatusQueued {
		t.Errorf("log.Status = %q, want %q", log.Status, model.EmailLogStatusQueued)
	}
	if log.SentAt != nil {
		t.Error("sent_at should be nil until the email is sent")
	}
	if log.ProviderMsgID != "" {
		t.Error("provider_msg_id should be empty until the email is sent")
	}
}
