package gateway

import (
	"context"
	"strings"

	"inksnap-backend/apperrors"
	"inksnap-backend/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) ListConversationsWithDetails(ctx context.Context, identityID uuid.UUID) ([]models.ConversationSummary, error) {
	var convs []models.Conversation
	err := s.conn(ctx).
		Where("participant_a = ? OR participant_b = ?", identityID, identityID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("id").
		Find(&convs).Error
	if err != nil {
		return nil, storeErr("ListConversationsWithDetails.Find", err, nil)
	}
	summaries := make([]models.ConversationSummary, 0, len(convs))
	if len(convs) == 0 {
		return summaries, nil
	}

	others := make([]uuid.UUID, 0, len(convs))
	for i := range convs {
		others = append(others, convs[i].Other(identityID))
	}
	profiles, err := s.GetUsers(ctx, others)
	if err != nil {
		return nil, err
	}

	var unread []struct {
		ConversationID uuid.UUID
		Unread         int64
	}
	err = s.conn(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND is_read = ?", identityID, false).
		Group("conversation_id").
		Scan(&unread).Error
	if err != nil {
		return nil, storeErr("ListConversationsWithDetails.Unread", err, nil)
	}
	unreadBy := make(map[uuid.UUID]int64, len(unread))
	for _, u := range unread {
		unreadBy[u.ConversationID] = u.Unread
	}

	for i := range convs {
		c := &convs[i]
		otherID := c.Other(identityID)
		other := models.Profile{ID: otherID, DisplayName: "Deleted user"}
		if u, ok := profiles[otherID]; ok {
			other = u.Profile()
		}
		summaries = append(summaries, models.ConversationSummary{
			ID:                 c.ID,
			Other:              other,
			LastMessagePreview: c.LastMessagePreview,
			LastMessageAt:      c.LastMessageAt,
			UnreadCount:        unreadBy[c.ID],
		})
	}
	return summaries, nil
}

// StartOrGetConversation looks the pair up before creating it; the unique pair index plus
// ON CONFLICT DO NOTHING settles two identities starting the same conversation at once.
func (s *GormStore) StartOrGetConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	if a == b {
		return nil, apperrors.ErrSelfConversation
	}
	pa, pb := models.OrderedPair(a, b)

	if conv, err := s.findConversation(ctx, pa, pb); err != nil || conv != nil {
		return conv, err
	}

	users, err := s.GetUsers(ctx, []uuid.UUID{pa, pb})
	if err != nil {
		return nil, err
	}
	if len(users) != 2 {
		return nil, apperrors.ErrUserNotFound
	}

	conv := &models.Conversation{ParticipantA: pa, ParticipantB: pb}
	if err := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(conv).Error; err != nil {
		return nil, storeErr("StartOrGetConversation.Create", err, nil)
	}
	conv, err = s.findConversation(ctx, pa, pb)
	if err == nil && conv == nil {
		err = apperrors.ErrConversationMissing
	}
	return conv, err
}

func (s *GormStore) findConversation(ctx context.Context, pa, pb uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.conn(ctx).Where("participant_a = ? AND participant_b = ?", pa, pb).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("findConversation.First", err, nil)
	}
	return &conv, nil
}

func (s *GormStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.conn(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, storeErr("GetConversation.First", err, apperrors.ErrConversationMissing)
	}
	return &conv, nil
}

func (s *GormStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	msgs := []models.Message{}
	err := s.conn(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at").
		Order("id").
		Find(&msgs).Error
	if err != nil {
		return nil, storeErr("ListMessages.Find", err, nil)
	}
	return msgs, nil
}

// InsertMessage stores the row, refreshes the conversation preview, and publishes the
// insert once the transaction committed.
func (s *GormStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.Content != nil {
		trimmed := strings.TrimSpace(*msg.Content)
		if trimmed == "" {
			msg.Content = nil
		} else {
			msg.Content = &trimmed
		}
	}
	if msg.Content == nil && msg.ImageURL == nil {
		return apperrors.ErrEmptyMessage
	}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, "id = ?", msg.ConversationID).Error; err != nil {
			return err
		}
		if msg.SenderID == msg.ReceiverID || !conv.HasParticipant(msg.SenderID) || conv.Other(msg.SenderID) != msg.ReceiverID {
			return apperrors.ErrNotParticipant
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&conv).Updates(map[string]any{
			"last_message_preview": msg.Preview(),
			"last_message_at":      msg.CreatedAt,
		}).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return storeErr("InsertMessage.Transaction", err, apperrors.ErrConversationMissing)
	}

	s.publish(Event{
		Table: TableMessages,
		Type:  EventInsert,
		Fields: map[string]string{
			"id":              msg.ID.String(),
			"conversation_id": msg.ConversationID.String(),
			"sender_id":       msg.SenderID.String(),
			"receiver_id":     msg.ReceiverID.String(),
		},
		Record: *msg,
	})
	return nil
}

func (s *GormStore) MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	res := s.conn(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, receiverID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, storeErr("MarkConversationRead.Update", res.Error, nil)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CountUnread(ctx context.Context, identityID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", identityID, false).
		Count(&n).Error
	if err != nil {
		return 0, storeErr("CountUnread.Count", err, nil)
	}
	return n, nil
}
