package mail

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// mockUserRepo はUserRepositoryのテスト用モック。
type mockUserRepo struct {
	user    *model.User
	updated *model.User
}

func (m *mockUserRepo) FindByID(_ context.Context, _ string) (*model.User, error) {
	return m.user, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return m.user, nil
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error {
	return nil
}

func (m *mockUserRepo) UpdateEmailStatus(_ context.Context, user *model.User) error {
	m.updated = user
	return nil
}

// mockSubRepoForBounce はSubscriptionRepositoryのテスト用モック。
type mockSubRepoForBounce struct {
	disabledUserID string
	disabledCount  int
}

func (m *mockSubRepoForBounce) FindByID(_ context.Context, _ string) (*model.Subscription, error) {
	return nil, nil
}

func (m *mockSubRepoForBounce) FindByNID(_ context.Context, _ string) (*model.Subscription, error) {
	return nil, nil
}

func (m *mockSubRepoForBounce) ListEnabled(_ context.Context) ([]*model.Subscription, error) {
	return nil, nil
}

func (m *mockSubRepoForBounce) CountByUserID(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m *mockSubRepoForBounce) Create(_ context.Context, _ *model.Subscription) error {
	return nil
}

func (m *mockSubRepoForBounce) Update(_ context.Context, _ *model.Subscription) error {
	return nil
}

func (m *mockSubRepoForBounce) UpdateRunState(_ context.Context, _ *model.Subscription) error {
	return nil
}

func (m *mockSubRepoForBounce) DisableByUserID(_ context.Context, userID string) (int, error) {
	m.disabledUserID = userID
	m.disabledCount = 2
	return m.disabledCount, nil
}

func (m *mockSubRepoForBounce) Delete(_ context.Context, _ string) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ハードバウンスで即時に受信停止と購読無効化が行われることを検証
func TestBounceProcessor_ProcessBounce_HardBounce(t *testing.T) {
	userRepo := &mockUserRepo{user: &model.User{
		ID:          "user-1",
		Email:       "taro@example.com",
		EmailStatus: model.EmailStatusActive,
	}}
	subRepo := &mockSubRepoForBounce{}
	p := NewBounceProcessor(userRepo, subRepo, testLogger())

	n := BounceNotification{
		Email:       "taro@example.com",
		Type:        BounceTypeHard,
		Description: "宛先不明",
		OccurredAt:  time.Now(),
	}
	if err := p.ProcessBounce(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if userRepo.updated == nil {
		t.Fatal("expected user update")
	}
	if userRepo.updated.EmailStatus != model.EmailStatusBounced {
		t.Errorf("EmailStatus = %s, want bounced", userRepo.updated.EmailStatus)
	}
	if userRepo.updated.BounceCount != 1 {
		t.Errorf("BounceCount = %d, want 1", userRepo.updated.BounceCount)
	}
	if subRepo.disabledUserID != "user-1" {
		t.Errorf("disabled subscriptions for %q, want user-1", subRepo.disabledUserID)
	}
}

// ソフトバウンスは閾値未満では受信停止にならないことを検証
func TestBounceProcessor_ProcessBounce_SoftBounceUnderThreshold(t *testing.T) {
	userRepo := &mockUserRepo{user: &model.User{
		ID:          "user-1",
		Email:       "taro@example.com",
		EmailStatus: model.EmailStatusActive,
		BounceCount: 1,
	}}
	subRepo := &mockSubRepoForBounce{}
	p := NewBounceProcessor(userRepo, subRepo, testLogger())

	n := BounceNotification{
		Email:      "taro@example.com",
		Type:       BounceTypeSoft,
		OccurredAt: time.Now(),
	}
	if err := p.ProcessBounce(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if userRepo.updated.EmailStatus != model.EmailStatusActive {
		t.Errorf("EmailStatus = %s, want active", userRepo.updated.EmailStatus)
	}
	if userRepo.updated.BounceCount != 2 {
		t.Errorf("BounceCount = %d, want 2", userRepo.updated.BounceCount)
	}
	if subRepo.disabledUserID != "" {
		t.Error("subscriptions should not be disabled under threshold")
	}
}

// ソフトバウンスが閾値に達すると受信停止になることを検証
func TestBounceProcessor_ProcessBounce_SoftBounceAtThreshold(t *testing.T) {
	userRepo := &mockUserRepo{user: &model.User{
		ID:          "user-1",
		Email:       "taro@example.com",
		EmailStatus: model.EmailStatusActive,
		BounceCount: 2,
	}}
	subRepo := &mockSubRepoForBounce{}
	p := NewBounceProcessor(userRepo, subRepo, testLogger())

	n := BounceNotification{
		Email:      "taro@example.com",
		Type:       BounceTypeSoft,
		OccurredAt: time.Now(),
	}
	if err := p.ProcessBounce(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if userRepo.updated.EmailStatus != model.EmailStatusBounced {
		t.Errorf("EmailStatus = %s, want bounced", userRepo.updated.EmailStatus)
	}
	if subRepo.disabledUserID != "user-1" {
		t.Error("subscriptions should be disabled at threshold")
	}
}

// 未知のメールアドレスへの通知が無視されることを検証
func TestBounceProcessor_ProcessBounce_UnknownEmail(t *testing.T) {
	userRepo := &mockUserRepo{user: nil}
	subRepo := &mockSubRepoForBounce{}
	p := NewBounceProcessor(userRepo, subRepo, testLogger())

	n := BounceNotification{
		Email:      "unknown@example.com",
		Type:       BounceTypeHard,
		OccurredAt: time.Now(),
	}
	if err := p.ProcessBounce(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if userRepo.updated != nil {
		t.Error("no user should be updated for unknown email")
	}
}

// 苦情通知で即時に受信停止と購読無効化が行われることを検証
func TestBounceProcessor_ProcessComplaint(t *testing.T) {
	userRepo := &mockUserRepo{user: &model.User{
		ID:          "user-1",
		Email:       "taro@example.com",
		EmailStatus: model.EmailStatusActive,
	}}
	subRepo := &mockSubRepoForBounce{}
	p := NewBounceProcessor(userRepo, subRepo, testLogger())

	if err := p.ProcessComplaint(context.Background(), "taro@example.com", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if userRepo.updated.EmailStatus != model.EmailStatusComplained {
		t.Errorf("EmailStatus = %s, want complained", userRepo.updated.EmailStatus)
	}
	if subRepo.disabledUserID != "user-1" {
		t.Error("subscriptions should be disabled on complaint")
	}
}
