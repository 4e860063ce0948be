package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/majstori/marketplace-chat/internal/common"
	"github.com/majstori/marketplace-chat/internal/domain"
	"github.com/majstori/marketplace-chat/internal/migration"
	"github.com/majstori/marketplace-chat/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ChatServiceSuite struct {
	suite.Suite
	db    *gorm.DB
	svc   *chatService
	clock time.Time
	ctx   context.Context

	provider domain.Identity
	customer domain.Identity
	stranger domain.Identity
}

func TestChatServiceSuite(t *testing.T) {
	suite.Run(t, new(ChatServiceSuite))
}

func (s *ChatServiceSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(migration.Run(db, true))
	s.Require().NoError(db.Create(&repository.ProviderProfile{UserID: "prov-1", BusinessName: "Petrov Plumbing"}).Error)

	s.db = db
	s.ctx = context.Background()
	s.clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewChatService(repository.NewChatRepository(db), repository.NewProviderDirectory(db, nil)).(*chatService)
	svc.now = func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}
	s.svc = svc

	s.provider = domain.Identity{UserID: "prov-1", Role: domain.RoleProvider, Name: "Georgi"}
	s.customer = domain.Identity{UserID: "cust-1", Role: domain.RoleCustomer, Name: "Ivan"}
	s.stranger = domain.Identity{UserID: "cust-9", Role: domain.RoleCustomer, Name: "Maria"}
}

func (s *ChatServiceSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *ChatServiceSuite) newConversation() *domain.Conversation {
	res, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{ProviderID: s.provider.UserID}, &s.customer)
	s.Require().NoError(err)
	return res.Conversation
}

func (s *ChatServiceSuite) send(conv *domain.Conversation, from domain.Identity, body string) *domain.Message {
	msg, err := s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{ConversationID: conv.ID, Body: body}, from)
	s.Require().NoError(err)
	return msg
}

// --- CreateConversation ---

func (s *ChatServiceSuite) TestCreateConversation_IdempotentWithInitialMessage() {
	req := &domain.CreateConversationRequest{
		ProviderID:     "prov-1",
		CustomerName:   "Ivan",
		CustomerEmail:  "ivan@example.bg",
		InitialMessage: "Здравей",
	}

	first, err := s.svc.CreateConversation(s.ctx, req, &s.customer)
	s.Require().NoError(err)
	s.True(first.Created)
	s.Require().NotNil(first.InitialMessage)
	s.Equal("Здравей", first.InitialMessage.Body)
	s.Equal(domain.RoleCustomer, first.InitialMessage.SenderType)
	s.Equal("ivan@example.bg", first.Conversation.CustomerEmail)
	s.Require().NotNil(first.Conversation.CustomerID)
	s.Equal("cust-1", *first.Conversation.CustomerID)

	second, err := s.svc.CreateConversation(s.ctx, req, &s.customer)
	s.Require().NoError(err)
	s.False(second.Created)
	s.Nil(second.InitialMessage)
	s.Equal(first.Conversation.ID, second.Conversation.ID)

	var convCount, msgCount int64
	s.db.Model(&domain.Conversation{}).Count(&convCount)
	s.db.Model(&domain.Message{}).Count(&msgCount)
	s.Equal(int64(1), convCount)
	s.Equal(int64(1), msgCount)
}

func (s *ChatServiceSuite) TestCreateConversation_ParticipantsRecorded() {
	conv := s.newConversation()

	for _, id := range []string{"prov-1", "cust-1"} {
		ok, err := repository.NewChatRepository(s.db).IsUserInConversation(s.ctx, conv.ID, id)
		s.Require().NoError(err)
		s.True(ok, id)
	}
	s.False(conv.LastMessageAt.IsZero())
}

func (s *ChatServiceSuite) TestCreateConversation_ProviderWithoutCustomer() {
	res, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{CustomerName: "Walk-in"}, &s.provider)
	s.Require().NoError(err)
	s.True(res.Created)
	s.Nil(res.Conversation.CustomerID)
	s.Equal([]string{"prov-1"}, res.Conversation.ParticipantIDs())

	// customer-less conversations are never deduplicated
	again, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{CustomerName: "Walk-in"}, &s.provider)
	s.Require().NoError(err)
	s.NotEqual(res.Conversation.ID, again.Conversation.ID)
}

func (s *ChatServiceSuite) TestCreateConversation_Validation() {
	_, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{}, &s.customer)
	s.ErrorIs(err, common.ErrValidation)

	self := domain.Identity{UserID: "prov-1", Role: domain.RoleCustomer}
	_, err = s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{ProviderID: "prov-1"}, &self)
	s.ErrorIs(err, common.ErrValidation)
}

func (s *ChatServiceSuite) TestCreateConversation_UniquePair() {
	conv := s.newConversation()

	// a second raw insert for the same pair is what a concurrent creator hits
	repo := repository.NewChatRepository(s.db)
	cust := "cust-1"
	err := repo.CreateConversation(s.ctx, &domain.Conversation{ProviderID: "prov-1", CustomerID: &cust, LastMessageAt: s.clock}, nil)
	s.ErrorIs(err, repository.ErrDuplicateConversation)

	res, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{ProviderID: "prov-1"}, &s.customer)
	s.Require().NoError(err)
	s.Equal(conv.ID, res.Conversation.ID)
}

// staleLookupRepo misses the pair lookup a set number of times, as a creator
// that checked before a concurrent insert committed would
type staleLookupRepo struct {
	repository.ChatRepository
	misses int
}

func (r *staleLookupRepo) FindConversationBetween(ctx context.Context, customerID, providerID string) (*domain.Conversation, error) {
	if r.misses > 0 {
		r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.ChatRepository.FindConversationBetween(ctx, customerID, providerID)
}

func (s *ChatServiceSuite) TestCreateConversation_LostRaceReturnsWinner() {
	winner := s.newConversation()

	racer := NewChatService(&staleLookupRepo{ChatRepository: repository.NewChatRepository(s.db), misses: 1}, nil)
	res, err := racer.CreateConversation(s.ctx, &domain.CreateConversationRequest{
		ProviderID:     "prov-1",
		InitialMessage: "Are you free tomorrow?",
	}, &s.customer)
	s.Require().NoError(err)
	s.False(res.Created)
	s.Nil(res.InitialMessage)
	s.Equal(winner.ID, res.Conversation.ID)

	var convCount, msgCount int64
	s.db.Model(&domain.Conversation{}).Count(&convCount)
	s.db.Model(&domain.Message{}).Count(&msgCount)
	s.Equal(int64(1), convCount)
	s.Equal(int64(0), msgCount)
}

func (s *ChatServiceSuite) TestCreateConversation_RejectedInitialMessageWritesNothing() {
	repo := repository.NewChatRepository(s.db)

	for _, body := range []string{strings.Repeat("a", domain.MaxMessageBodyLength+1), "   "} {
		_, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{
			ProviderID:     "prov-1",
			InitialMessage: body,
		}, &s.customer)
		s.ErrorIs(err, common.ErrValidation)

		_, err = repo.FindConversationBetween(s.ctx, "cust-1", "prov-1")
		s.ErrorIs(err, gorm.ErrRecordNotFound)
	}

	var participants int64
	s.db.Model(&domain.Participant{}).Count(&participants)
	s.Equal(int64(0), participants)

	res, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{
		ProviderID:     "prov-1",
		InitialMessage: "Здравей",
	}, &s.customer)
	s.Require().NoError(err)
	s.True(res.Created)
	s.Require().NotNil(res.InitialMessage)
	s.Equal(res.Conversation.ID, res.InitialMessage.ConversationID)
	s.Equal(res.InitialMessage.SentAt, res.Conversation.LastMessageAt)

	stored, err := repo.FindConversationByID(s.ctx, res.Conversation.ID)
	s.Require().NoError(err)
	s.True(stored.LastMessageAt.Equal(res.InitialMessage.SentAt))
}

// --- GetConversation / ListConversations ---

func (s *ChatServiceSuite) TestGetConversation_Authorization() {
	conv := s.newConversation()

	_, err := s.svc.GetConversation(s.ctx, conv.ID, s.stranger)
	s.ErrorIs(err, common.ErrUnauthorized)

	_, err = s.svc.GetConversation(s.ctx, "missing", s.customer)
	s.ErrorIs(err, common.ErrNotFound)

	view, err := s.svc.GetConversation(s.ctx, conv.ID, s.customer)
	s.Require().NoError(err)
	s.Equal("Petrov Plumbing", view.ProviderName)
	s.Nil(view.LastMessage)
}

func (s *ChatServiceSuite) TestListConversations_EnrichedAndOrdered() {
	older := s.newConversation()
	other := domain.Identity{UserID: "cust-2", Role: domain.RoleCustomer, Name: "Elena"}
	res, err := s.svc.CreateConversation(s.ctx, &domain.CreateConversationRequest{ProviderID: "prov-1"}, &other)
	s.Require().NoError(err)
	newer := res.Conversation

	long := strings.Repeat("ж", 150)
	s.send(older, s.customer, long)

	views, meta, err := s.svc.ListConversations(s.ctx, s.provider, domain.ConversationQuery{})
	s.Require().NoError(err)
	s.Require().Len(views, 2)
	s.False(meta.HasMore)

	// the conversation with the latest message comes first
	s.Equal(older.ID, views[0].ID)
	s.Equal(newer.ID, views[1].ID)
	s.Equal(int64(1), views[0].UnreadCount)
	s.Equal("Petrov Plumbing", views[0].ProviderName)
	s.Require().NotNil(views[0].LastMessage)
	s.Equal(strings.Repeat("ж", 100)+"…", views[0].LastMessage.Body)

	page, meta, err := s.svc.ListConversations(s.ctx, s.provider, domain.ConversationQuery{Limit: 1})
	s.Require().NoError(err)
	s.Len(page, 1)
	s.True(meta.HasMore)
	s.Equal(older.ID, meta.NextCursor)

	page, meta, err = s.svc.ListConversations(s.ctx, s.provider, domain.ConversationQuery{Limit: 1, Cursor: meta.NextCursor})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(newer.ID, page[0].ID)
	s.False(meta.HasMore)

	mine, _, err := s.svc.ListConversations(s.ctx, s.customer, domain.ConversationQuery{})
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(int64(0), mine[0].UnreadCount)
}

// --- SendMessage ---

func (s *ChatServiceSuite) TestSendMessage_BodyBoundaries() {
	conv := s.newConversation()

	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"empty", "", false},
		{"whitespace", "   \n\t", false},
		{"exact limit", strings.Repeat("a", domain.MaxMessageBodyLength), true},
		{"exact limit in cyrillic", strings.Repeat("я", domain.MaxMessageBodyLength), true},
		{"over limit", strings.Repeat("a", domain.MaxMessageBodyLength+1), false},
	}
	for _, tc := range cases {
		_, err := s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{ConversationID: conv.ID, Body: tc.body}, s.customer)
		if tc.ok {
			s.NoError(err, tc.name)
		} else {
			s.ErrorIs(err, common.ErrValidation, tc.name)
		}
	}
}

func (s *ChatServiceSuite) TestSendMessage_TrimsAndAdvancesLastMessageAt() {
	conv := s.newConversation()
	msg := s.send(conv, s.customer, "  hello  ")
	s.Equal("hello", msg.Body)
	s.Equal(domain.MessageText, msg.Type)
	s.Equal(domain.RoleCustomer, msg.SenderType)
	s.Equal("Ivan", msg.SenderName)

	reloaded, err := repository.NewChatRepository(s.db).FindConversationByID(s.ctx, conv.ID)
	s.Require().NoError(err)
	s.True(reloaded.LastMessageAt.Equal(msg.SentAt))
}

func (s *ChatServiceSuite) TestSendMessage_Rejections() {
	conv := s.newConversation()

	_, err := s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{ConversationID: conv.ID, Body: "hi"}, s.stranger)
	s.ErrorIs(err, common.ErrUnauthorized)

	_, err = s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{ConversationID: "missing", Body: "hi"}, s.customer)
	s.ErrorIs(err, common.ErrNotFound)

	_, err = s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{ConversationID: conv.ID, Body: "hi", Type: "sticker"}, s.customer)
	s.ErrorIs(err, common.ErrValidation)

	many := make([]string, domain.MaxMessageAttachments+1)
	for i := range many {
		many[i] = fmt.Sprintf("https://cdn.example.com/%d.jpg", i)
	}
	_, err = s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{ConversationID: conv.ID, Body: "hi", Attachments: many}, s.customer)
	s.ErrorIs(err, common.ErrValidation)

	var count int64
	s.db.Model(&domain.Message{}).Count(&count)
	s.Equal(int64(0), count)
}

func (s *ChatServiceSuite) TestSendMessage_AttachmentsInferMimeType() {
	conv := s.newConversation()
	_, err := s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{
		ConversationID: conv.ID,
		Type:           domain.MessageImage,
		Body:           "photos of the leak",
		Attachments: []string{
			"https://cdn.example.com/a.jpg",
			"https://cdn.example.com/b.PNG?v=2",
			"https://cdn.example.com/c.jpeg",
		},
	}, s.customer)
	s.Require().NoError(err)

	msgs, _, err := s.svc.ListMessages(s.ctx, conv.ID, s.provider, domain.MessageQuery{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Require().Len(msgs[0].Attachments, 3)
	for _, a := range msgs[0].Attachments {
		s.True(strings.HasPrefix(a.MimeType, "image/"), a.MimeType)
		s.Equal(msgs[0].ID, a.MessageID)
	}
}

// --- ListMessages ---

func (s *ChatServiceSuite) TestListMessages_PagesBackwards() {
	conv := s.newConversation()
	var sent []*domain.Message
	for i := 0; i < 5; i++ {
		sent = append(sent, s.send(conv, s.customer, fmt.Sprintf("m%d", i)))
	}

	page, meta, err := s.svc.ListMessages(s.ctx, conv.ID, s.provider, domain.MessageQuery{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(sent[4].ID, page[0].ID)
	s.Equal(sent[3].ID, page[1].ID)
	s.True(meta.HasMore)

	page, meta, err = s.svc.ListMessages(s.ctx, conv.ID, s.provider, domain.MessageQuery{Limit: 2, Before: meta.NextCursor})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(sent[2].ID, page[0].ID)
	s.Equal(sent[1].ID, page[1].ID)

	page, meta, err = s.svc.ListMessages(s.ctx, conv.ID, s.provider, domain.MessageQuery{Limit: 2, Before: meta.NextCursor})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(sent[0].ID, page[0].ID)
	s.False(meta.HasMore)

	_, _, err = s.svc.ListMessages(s.ctx, conv.ID, s.provider, domain.MessageQuery{Before: "nope"})
	s.ErrorIs(err, common.ErrValidation)

	_, _, err = s.svc.ListMessages(s.ctx, conv.ID, s.stranger, domain.MessageQuery{})
	s.ErrorIs(err, common.ErrUnauthorized)
}

// --- Edit / Delete ---

func (s *ChatServiceSuite) TestEditMessage_SenderOnly() {
	conv := s.newConversation()
	msg := s.send(conv, s.customer, "original")

	_, err := s.svc.EditMessage(s.ctx, msg.ID, "hijack", s.provider)
	s.ErrorIs(err, common.ErrUnauthorized)

	_, err = s.svc.EditMessage(s.ctx, msg.ID, "   ", s.customer)
	s.ErrorIs(err, common.ErrValidation)

	edited, err := s.svc.EditMessage(s.ctx, msg.ID, " fixed ", s.customer)
	s.Require().NoError(err)
	s.Equal("fixed", edited.Body)
	s.Equal(domain.MessageStateEdited, edited.State())

	_, err = s.svc.EditMessage(s.ctx, "missing", "x", s.customer)
	s.ErrorIs(err, common.ErrNotFound)
}

func (s *ChatServiceSuite) TestDeleteMessage_TombstoneAndIdempotency() {
	conv := s.newConversation()
	msg, err := s.svc.SendMessage(s.ctx, &domain.SendMessageRequest{
		ConversationID: conv.ID,
		Body:           "secret",
		Attachments:    []string{"https://cdn.example.com/doc.pdf"},
	}, s.customer)
	s.Require().NoError(err)

	_, err = s.svc.DeleteMessage(s.ctx, msg.ID, s.provider.UserID)
	s.ErrorIs(err, common.ErrUnauthorized)

	deleted, err := s.svc.DeleteMessage(s.ctx, msg.ID, s.customer.UserID)
	s.Require().NoError(err)
	s.Equal(domain.MessageStateDeleted, deleted.State())
	s.Empty(deleted.Body)

	msgs, _, err := s.svc.ListMessages(s.ctx, conv.ID, s.provider, domain.MessageQuery{})
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Empty(msgs[0].Body)
	s.Empty(msgs[0].Attachments)
	s.NotNil(msgs[0].DeletedAt)

	_, err = s.svc.DeleteMessage(s.ctx, msg.ID, s.customer.UserID)
	s.ErrorIs(err, common.ErrNotFound)

	_, err = s.svc.EditMessage(s.ctx, msg.ID, "revive", s.customer)
	s.ErrorIs(err, common.ErrNotFound)

	// row is kept
	var count int64
	s.db.Model(&domain.Message{}).Where("id = ?", msg.ID).Count(&count)
	s.Equal(int64(1), count)
}

// --- Unread / MarkAsRead ---

func (s *ChatServiceSuite) TestUnreadAndMarkAsRead() {
	conv := s.newConversation()

	before, err := s.svc.GetUnreadCount(s.ctx, conv.ID, s.provider)
	s.Require().NoError(err)

	last := s.send(conv, s.customer, "is tomorrow ok?")

	after, err := s.svc.GetUnreadCount(s.ctx, conv.ID, s.provider)
	s.Require().NoError(err)
	s.Equal(before+1, after)

	own, err := s.svc.GetUnreadCount(s.ctx, conv.ID, s.customer)
	s.Require().NoError(err)
	s.Equal(int64(0), own)

	s.Require().NoError(s.svc.MarkAsRead(s.ctx, conv.ID, s.provider))
	s.Require().NoError(s.svc.MarkAsRead(s.ctx, conv.ID, s.provider))

	after, err = s.svc.GetUnreadCount(s.ctx, conv.ID, s.provider)
	s.Require().NoError(err)
	s.Equal(int64(0), after)

	var p domain.Participant
	s.Require().NoError(s.db.Where("conversation_id = ? AND user_id = ?", conv.ID, "prov-1").First(&p).Error)
	s.Require().NotNil(p.LastReadMessageID)
	s.Equal(last.ID, *p.LastReadMessageID)

	err = s.svc.MarkAsRead(s.ctx, conv.ID, s.stranger)
	s.ErrorIs(err, common.ErrUnauthorized)
}

func (s *ChatServiceSuite) TestParticipantSummaries() {
	conv := s.newConversation()
	msg := s.send(conv, s.customer, "hello")

	summaries, err := s.svc.ParticipantSummaries(s.ctx, conv.ID, s.customer.UserID)
	s.Require().NoError(err)
	s.Require().Len(summaries, 2)

	s.Equal(int64(0), summaries["cust-1"].UnreadCount)
	s.Equal(int64(1), summaries["prov-1"].UnreadCount)
	s.Equal(msg.ID, summaries["prov-1"].LastMessage.ID)
	s.True(summaries["prov-1"].LastMessageAt.Equal(msg.SentAt))

	ids, err := s.svc.ParticipantIDs(s.ctx, conv.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"prov-1", "cust-1"}, ids)
}

// --- Receipts ---

func (s *ChatServiceSuite) TestReceipts_NeverDowngrade() {
	conv := s.newConversation()
	msg := s.send(conv, s.customer, "hello")

	_, err := s.svc.UpdateReceipt(s.ctx, msg.ID, s.customer, domain.ReceiptRead)
	s.ErrorIs(err, common.ErrValidation)

	_, err = s.svc.UpdateReceipt(s.ctx, msg.ID, s.provider, "seen")
	s.ErrorIs(err, common.ErrValidation)

	_, err = s.svc.UpdateReceipt(s.ctx, msg.ID, s.stranger, domain.ReceiptDelivered)
	s.ErrorIs(err, common.ErrUnauthorized)

	r, err := s.svc.UpdateReceipt(s.ctx, msg.ID, s.provider, domain.ReceiptDelivered)
	s.Require().NoError(err)
	s.Equal(domain.ReceiptDelivered, r.Status)

	r, err = s.svc.UpdateReceipt(s.ctx, msg.ID, s.provider, domain.ReceiptRead)
	s.Require().NoError(err)
	s.Equal(domain.ReceiptRead, r.Status)

	r, err = s.svc.UpdateReceipt(s.ctx, msg.ID, s.provider, domain.ReceiptDelivered)
	s.Require().NoError(err)
	s.Equal(domain.ReceiptRead, r.Status)

	receipts, err := s.svc.GetReceipts(s.ctx, msg.ID, s.customer.UserID)
	s.Require().NoError(err)
	s.Require().Len(receipts, 1)
	s.Equal(domain.ReceiptRead, receipts[0].Status)
	s.Equal("prov-1", receipts[0].RecipientUserID)

	_, err = s.svc.GetReceipts(s.ctx, "missing", s.customer.UserID)
	s.ErrorIs(err, common.ErrNotFound)
}

// --- Archive ---

func (s *ChatServiceSuite) TestArchiveConversation_Reserved() {
	conv := s.newConversation()

	err := s.svc.ArchiveConversation(s.ctx, conv.ID, s.stranger)
	s.ErrorIs(err, common.ErrUnauthorized)

	err = s.svc.ArchiveConversation(s.ctx, conv.ID, s.customer)
	s.ErrorIs(err, common.ErrNotImplemented)
}

func (s *ChatServiceSuite) TestCheckParticipant() {
	conv := s.newConversation()
	s.NoError(s.svc.CheckParticipant(s.ctx, conv.ID, "cust-1"))
	s.ErrorIs(s.svc.CheckParticipant(s.ctx, conv.ID, "cust-9"), common.ErrUnauthorized)
	s.True(errors.Is(s.svc.CheckParticipant(s.ctx, "", "cust-1"), common.ErrValidation))
}

func TestInferMimeType(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/a.jpg":          "image/jpeg",
		"https://cdn.example.com/a.JPEG":         "image/jpeg",
		"https://cdn.example.com/a.png?w=200":    "image/png",
		"https://cdn.example.com/report.pdf":     "application/pdf",
		"https://cdn.example.com/clip.mp4#t=10":  "video/mp4",
		"https://cdn.example.com/no-extension":   "application/octet-stream",
		"https://cdn.example.com/archive.zzzzzz": "application/octet-stream",
	}
	for in, want := range cases {
		assert.Equal(t, want, InferMimeType(in), in)
	}
}

func TestValidateBody(t *testing.T) {
	got, err := validateBody("  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	_, err = validateBody("")
	assert.ErrorIs(t, err, common.ErrValidation)
}
