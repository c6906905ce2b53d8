package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	convs []Conversation
	msgs  map[uuid.UUID][]Message
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{msgs: make(map[uuid.UUID][]Message)}
}

func (f *fakeRepo) Create(_ context.Context, conv *Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	f.convs = append(f.convs, *conv)
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id, userID uuid.UUID) (*Conversation, error) {
	for _, c := range f.convs {
		if c.ID == id && c.UserID == userID {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) MostRecent(_ context.Context, userID uuid.UUID) (*Conversation, error) {
	var latest *Conversation
	for i := range f.convs {
		c := f.convs[i]
		if c.UserID != userID {
			continue
		}
		if latest == nil || c.UpdatedAt.After(latest.UpdatedAt) {
			latest = &f.convs[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, userID uuid.UUID, _, _ int) ([]Conversation, int64, error) {
	var out []Conversation
	for _, c := range f.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) Delete(_ context.Context, id, userID uuid.UUID) error {
	for i, c := range f.convs {
		if c.ID == id && c.UserID == userID {
			f.convs = append(f.convs[:i], f.convs[i+1:]...)
			return nil
		}
	}
	return assert.AnError
}

func (f *fakeRepo) AppendMessage(_ context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	f.msgs[msg.ConversationID] = append(f.msgs[msg.ConversationID], *msg)
	return nil
}

func (f *fakeRepo) RecentMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	all := f.msgs[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (f *fakeRepo) ListMessages(_ context.Context, conversationID uuid.UUID, _, _ int) ([]Message, int64, error) {
	all := f.msgs[conversationID]
	return all, int64(len(all)), nil
}

func TestGetOrCreateActiveCreatesForNewUser(t *testing.T) {
	svc := NewService(newFakeRepo())
	userID := uuid.New()

	conv, err := svc.GetOrCreateActive(context.Background(), userID, nil, "why does my loop never terminate")
	require.NoError(t, err)
	assert.Equal(t, userID, conv.UserID)
	assert.Equal(t, "why does my loop never terminate", conv.Title)
}

func TestGetOrCreateActiveReusesLatest(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	userID := uuid.New()

	first, err := svc.GetOrCreateActive(context.Background(), userID, nil, "hello")
	require.NoError(t, err)

	second, err := svc.GetOrCreateActive(context.Background(), userID, nil, "another message")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.convs, 1)
}

func TestGetOrCreateActiveExplicitIDNotFound(t *testing.T) {
	svc := NewService(newFakeRepo())
	missing := uuid.New()

	_, err := svc.GetOrCreateActive(context.Background(), uuid.New(), &missing, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentTurnsMapsMessageLog(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	convID := uuid.New()

	for _, m := range []struct{ role, content string }{
		{RoleUser, "what is a channel"},
		{RoleAssistant, "a typed conduit between goroutines"},
		{RoleUser, "and a buffered one?"},
	} {
		_, err := svc.Append(context.Background(), convID, m.role, m.content)
		require.NoError(t, err)
	}

	turns, err := svc.RecentTurns(context.Background(), convID, 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleAssistant, turns[0].Role)
	assert.Equal(t, "and a buffered one?", turns[1].Content)
	assert.False(t, turns[1].CreatedAt.IsZero())
}

func TestTitleFromTruncatesLongMessages(t *testing.T) {
	long := "I have been trying to understand how garbage collection works in managed runtimes for weeks now"
	title := titleFrom(long)
	assert.LessOrEqual(t, len(title), 64)
	assert.Contains(t, title, "I have been trying")
}

func TestTitleFromEmptyMessage(t *testing.T) {
	assert.Equal(t, "New conversation", titleFrom("   "))
}
