package repository

import (
	"testing"

	"github.com/hitoshi/cronpost/internal/model"
)

// PostgresUserRepoがUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Userモデルのメール受信状態フィールドの既定値を検証
func TestPostgresUserRepo_UserModel_Defaults(t *testing.T) {
	user := &model.User{
		ID:          "user-id-1",
		Email:       "taro@example.com",
		PlanTier:    model.PlanTierFree,
		EmailStatus: model.EmailStatusActive,
	}

	if !user.CanReceiveEmails() {
		t.Error("active user should be able to receive emails")
	}
	if user.BounceCount != 0 {
		t.Errorf("user.BounceCount = %d, want 0", user.BounceCount)
	}
	if user.LastBounceAt != nil {
		t.Error("last_bounce_at should be nil by default")
	}
}

// バウンス状態のユーザーがメール受信不可であることを検証
func TestPostgresUserRepo_UserModel_BouncedCannotReceive(t *testing.T) {
	user := &model.User{
		ID:          "user-id-2",
		Email:       "hanako@example.com",
		EmailStatus: model.EmailStatusBounced,
	}

	if user.CanReceiveEmails() {
		t.Error("bounced user should not be able to receive emails")
	}
}
