package services

import (
	"context"
	"log/slog"
	"strings"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

// MessageSender runs the upload-then-insert send sequence shared by the realtime channel
// and the REST endpoint.
type MessageSender struct {
	store   gateway.MessageStore
	storage gateway.Storage
	log     *slog.Logger
}

func NewMessageSender(store gateway.MessageStore, storage gateway.Storage, log *slog.Logger) *MessageSender {
	if log == nil {
		log = slog.Default()
	}
	return &MessageSender{store: store, storage: storage, log: log}
}

// Send uploads the attachment, if any, and then inserts the message. When the insert
// fails the uploaded object is deleted again.
func (s *MessageSender) Send(ctx context.Context, conv *models.Conversation, senderID uuid.UUID, text string, att *Attachment) (*models.Message, error) {
	if !conv.HasParticipant(senderID) {
		return nil, apperrors.ErrNotParticipant
	}
	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		return nil, apperrors.ErrEmptyMessage
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     conv.Other(senderID),
	}
	if text != "" {
		msg.Content = &text
	}

	var uploaded *gateway.StoredObject
	if att != nil {
		obj, err := s.storage.Upload(ctx, gateway.UploadInput{Folder: folderChat, Name: att.Name, Body: att.reader()})
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeUpload {
				return nil, err
			}
			return nil, apperrors.Upload("could not upload image", err)
		}
		uploaded = obj
		msg.ImageURL = &obj.URL
		msg.ImageRef = &obj.Ref
	}

	if err := s.store.InsertMessage(ctx, msg); err != nil {
		if uploaded != nil {
			if delErr := s.storage.Delete(context.WithoutCancel(ctx), uploaded.Ref); delErr != nil {
				s.log.Warn("orphaned upload", slog.String("ref", uploaded.Ref), slog.Any("error", delErr))
			}
		}
		return nil, err
	}
	return msg, nil
}
