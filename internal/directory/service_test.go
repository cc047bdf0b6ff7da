package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ishit08/chat-web/internal/demo"
	"github.com/ishit08/chat-web/internal/model"
	"github.com/ishit08/chat-web/internal/repository"
)

// --- モック定義 ---

type mockMemberRepo struct {
	listChatIDsByUserFn func(ctx context.Context, userID string) ([]string, error)
	listByChatFn        func(ctx context.Context, chatID string) ([]repository.MemberWithName, error)
}

func (m *mockMemberRepo) ListChatIDsByUser(ctx context.Context, userID string) ([]string, error) {
	if m.listChatIDsByUserFn != nil {
		return m.listChatIDsByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockMemberRepo) ListByChat(ctx context.Context, chatID string) ([]repository.MemberWithName, error) {
	if m.listByChatFn != nil {
		return m.listByChatFn(ctx, chatID)
	}
	return nil, nil
}

func (m *mockMemberRepo) ListPairRows(_ context.Context, _, _ string) ([]model.ChatMember, error) {
	return nil, nil
}

func (m *mockMemberRepo) BulkInsert(_ context.Context, _ string, _ []string) error {
	return nil
}

func (m *mockMemberRepo) BulkDelete(_ context.Context, _ string, _ []string) error {
	return nil
}

type mockMessageRepo struct {
	lastByChatFn func(ctx context.Context, chatID string) (*model.Message, error)
}

func (m *mockMessageRepo) ListByChat(_ context.Context, _ string) ([]model.Message, error) {
	return nil, nil
}

func (m *mockMessageRepo) LastByChat(ctx context.Context, chatID string) (*model.Message, error) {
	if m.lastByChatFn != nil {
		return m.lastByChatFn(ctx, chatID)
	}
	return nil, nil
}

func (m *mockMessageRepo) FindByID(_ context.Context, _ string) (*model.Message, error) {
	return nil, nil
}

func (m *mockMessageRepo) Insert(_ context.Context, _ *model.Message) error {
	return nil
}

func (m *mockMessageRepo) UpdateAttachmentState(_ context.Context, _ string, _ model.AttachmentState) error {
	return nil
}

type mockUserRepo struct {
	listExceptFn func(ctx context.Context, excludeID string) ([]*model.User, error)
}

func (m *mockUserRepo) FindByID(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) ListExcept(ctx context.Context, excludeID string) ([]*model.User, error) {
	if m.listExceptFn != nil {
		return m.listExceptFn(ctx, excludeID)
	}
	return nil, nil
}

func (m *mockUserRepo) UpsertProfile(_ context.Context, _ *model.User) error {
	return nil
}

func newService(member *mockMemberRepo, message *mockMessageRepo, user *mockUserRepo) *Service {
	catalog := demo.DefaultCatalog()
	return NewService(catalog, demo.NewStore(catalog), member, message, user)
}

// --- LoadChats ---

// 永続化チャットがない場合、デモカタログがそのまま返ることを検証
func TestLoadChats_DemoOnly(t *testing.T) {
	s := newService(&mockMemberRepo{}, &mockMessageRepo{}, &mockUserRepo{})

	list, err := s.LoadChats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadChats error = %v", err)
	}

	catalog := demo.DefaultCatalog()
	if len(list.Chats) != len(catalog.Chats) {
		t.Fatalf("chat count = %d, want %d", len(list.Chats), len(catalog.Chats))
	}
	for i, c := range list.Chats {
		if c.ID != catalog.Chats[i].ID {
			t.Errorf("chats[%d].ID = %q, want %q", i, c.ID, catalog.Chats[i].ID)
		}
		if c.Source != model.ChatSourceDemo {
			t.Errorf("chats[%d].Source = %q, want demo", i, c.Source)
		}
	}
	if list.DefaultChatID != catalog.DefaultChatID {
		t.Errorf("DefaultChatID = %q, want %q", list.DefaultChatID, catalog.DefaultChatID)
	}
}

// 永続化チャットがデモの後ろに並び、相手の名前が表示されることを検証
func TestLoadChats_AppendsPersistedChats(t *testing.T) {
	lastAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	member := &mockMemberRepo{
		listChatIDsByUserFn: func(_ context.Context, _ string) ([]string, error) {
			return []string{"chat-p1"}, nil
		},
		listByChatFn: func(_ context.Context, chatID string) ([]repository.MemberWithName, error) {
			return []repository.MemberWithName{
				{ChatID: chatID, UserID: "user-1", Name: "自分"},
				{ChatID: chatID, UserID: "user-2", Name: "佐藤花子", AvatarURL: "https://example.com/a.png"},
			}, nil
		},
	}
	message := &mockMessageRepo{
		lastByChatFn: func(_ context.Context, _ string) (*model.Message, error) {
			return &model.Message{Content: "また明日", CreatedAt: lastAt}, nil
		},
	}

	s := newService(member, message, &mockUserRepo{})
	list, err := s.LoadChats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadChats error = %v", err)
	}

	demoCount := len(demo.DefaultCatalog().Chats)
	if len(list.Chats) != demoCount+1 {
		t.Fatalf("chat count = %d, want %d", len(list.Chats), demoCount+1)
	}

	got := list.Chats[demoCount]
	if got.ID != "chat-p1" {
		t.Errorf("ID = %q, want chat-p1", got.ID)
	}
	if got.Name != "佐藤花子" {
		t.Errorf("Name = %q, want 佐藤花子 (other member)", got.Name)
	}
	if got.LastMessage != "また明日" {
		t.Errorf("LastMessage = %q, want また明日", got.LastMessage)
	}
	if !got.LastMessageTime.Equal(lastAt) {
		t.Errorf("LastMessageTime = %v, want %v", got.LastMessageTime, lastAt)
	}
	if got.Source != model.ChatSourcePersisted {
		t.Errorf("Source = %q, want persisted", got.Source)
	}
	if got.AvatarURL != "https://example.com/a.png" {
		t.Errorf("AvatarURL = %q", got.AvatarURL)
	}
}

// メッセージのないチャットにプレビュー文言が入ることを検証
func TestLoadChats_EmptyChatPreview(t *testing.T) {
	member := &mockMemberRepo{
		listChatIDsByUserFn: func(_ context.Context, _ string) ([]string, error) {
			return []string{"chat-p1"}, nil
		},
	}

	s := newService(member, &mockMessageRepo{}, &mockUserRepo{})
	list, err := s.LoadChats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadChats error = %v", err)
	}

	got := list.Chats[len(list.Chats)-1]
	if got.LastMessage != emptyPreview {
		t.Errorf("LastMessage = %q, want %q", got.LastMessage, emptyPreview)
	}
	if got.Name != fallbackChatName {
		t.Errorf("Name = %q, want %q", got.Name, fallbackChatName)
	}
}

// 同一IDの永続化チャットがデモチャットを置き換え、IDが一意であることを検証
func TestLoadChats_PersistedShadowsDemo(t *testing.T) {
	catalog := demo.DefaultCatalog()
	shadowID := catalog.Chats[0].ID

	member := &mockMemberRepo{
		listChatIDsByUserFn: func(_ context.Context, _ string) ([]string, error) {
			return []string{shadowID}, nil
		},
		listByChatFn: func(_ context.Context, chatID string) ([]repository.MemberWithName, error) {
			return []repository.MemberWithName{
				{ChatID: chatID, UserID: "user-2", Name: "実データ"},
			}, nil
		},
	}

	s := newService(member, &mockMessageRepo{}, &mockUserRepo{})
	list, err := s.LoadChats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadChats error = %v", err)
	}

	if len(list.Chats) != len(catalog.Chats) {
		t.Fatalf("chat count = %d, want %d (no duplicate entries)", len(list.Chats), len(catalog.Chats))
	}

	var shadowed []model.Chat
	for _, c := range list.Chats {
		if c.ID == shadowID {
			shadowed = append(shadowed, c)
		}
	}
	if len(shadowed) != 1 {
		t.Fatalf("entries for %q = %d, want exactly 1", shadowID, len(shadowed))
	}
	if shadowed[0].Source != model.ChatSourcePersisted {
		t.Errorf("Source = %q, want persisted (persisted wins)", shadowed[0].Source)
	}
	if shadowed[0].Name != "実データ" {
		t.Errorf("Name = %q, want 実データ", shadowed[0].Name)
	}
}

// メンバーシップ取得の失敗が一覧全体を失敗させることを検証
func TestLoadChats_MembershipError(t *testing.T) {
	member := &mockMemberRepo{
		listChatIDsByUserFn: func(_ context.Context, _ string) ([]string, error) {
			return nil, errors.New("db down")
		},
	}

	s := newService(member, &mockMessageRepo{}, &mockUserRepo{})
	if _, err := s.LoadChats(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error")
	}
}

// 表示情報の解決失敗がフォールバック値で埋められることを検証
func TestLoadChats_DisplayResolutionFailureFallsBack(t *testing.T) {
	member := &mockMemberRepo{
		listChatIDsByUserFn: func(_ context.Context, _ string) ([]string, error) {
			return []string{"chat-p1"}, nil
		},
		listByChatFn: func(_ context.Context, _ string) ([]repository.MemberWithName, error) {
			return nil, errors.New("join failed")
		},
	}
	message := &mockMessageRepo{
		lastByChatFn: func(_ context.Context, _ string) (*model.Message, error) {
			return nil, errors.New("query failed")
		},
	}

	s := newService(member, message, &mockUserRepo{})
	list, err := s.LoadChats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadChats should not fail on display resolution: %v", err)
	}

	got := list.Chats[len(list.Chats)-1]
	if got.Name != fallbackChatName || got.LastMessage != emptyPreview {
		t.Errorf("fallback not applied: name=%q preview=%q", got.Name, got.LastMessage)
	}
}

// デフォルトチャットが一覧にない場合に先頭が選ばれることを検証
func TestLoadChats_DefaultFallsBackToFirst(t *testing.T) {
	catalog := demo.DefaultCatalog()
	catalog.Chats = catalog.Chats[1:] // デフォルトIDのエントリを外す

	s := NewService(catalog, demo.NewStore(catalog), &mockMemberRepo{}, &mockMessageRepo{}, &mockUserRepo{})
	list, err := s.LoadChats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadChats error = %v", err)
	}
	if list.DefaultChatID != list.Chats[0].ID {
		t.Errorf("DefaultChatID = %q, want first entry %q", list.DefaultChatID, list.Chats[0].ID)
	}
}

// セッション中に送信されたデモメッセージがプレビューへ反映されることを検証
func TestLoadChats_DemoPreviewReflectsStore(t *testing.T) {
	catalog := demo.DefaultCatalog()
	store := demo.NewStore(catalog)
	sentAt := time.Now()
	store.Append(model.Message{
		ID:        "local-1",
		ChatID:    catalog.DefaultChatID,
		SenderID:  "user-1",
		Content:   "新しいプレビュー",
		CreatedAt: sentAt,
	})

	s := NewService(catalog, store, &mockMemberRepo{}, &mockMessageRepo{}, &mockUserRepo{})
	list, err := s.LoadChats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadChats error = %v", err)
	}

	for _, c := range list.Chats {
		if c.ID == catalog.DefaultChatID {
			if c.LastMessage != "新しいプレビュー" {
				t.Errorf("LastMessage = %q, want 新しいプレビュー", c.LastMessage)
			}
			if !c.LastMessageTime.Equal(sentAt) {
				t.Errorf("LastMessageTime not updated")
			}
			return
		}
	}
	t.Fatal("default demo chat not found in list")
}

// --- Contacts ---

// 登録ユーザーの後ろにデモ連絡先が付加されることを検証
func TestContacts_MergesUsersAndDemoContacts(t *testing.T) {
	user := &mockUserRepo{
		listExceptFn: func(_ context.Context, excludeID string) ([]*model.User, error) {
			if excludeID != "user-1" {
				t.Errorf("ListExcept called with %q, want user-1", excludeID)
			}
			return []*model.User{{ID: "user-2", Name: "佐藤花子"}}, nil
		},
	}

	s := newService(&mockMemberRepo{}, &mockMessageRepo{}, user)
	contacts, err := s.Contacts(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Contacts error = %v", err)
	}

	demoContacts := len(demo.DefaultCatalog().Contacts)
	if len(contacts) != 1+demoContacts {
		t.Fatalf("contact count = %d, want %d", len(contacts), 1+demoContacts)
	}
	if contacts[0].ID != "user-2" {
		t.Errorf("contacts[0].ID = %q, want user-2 (registered users first)", contacts[0].ID)
	}
}
