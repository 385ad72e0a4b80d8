package services

import (
	"context"
	"log/slog"
	"time"

	"inksnap-backend/config"
	"inksnap-backend/gateway"
	"inksnap-backend/models"
	"inksnap-backend/utils"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// SMSSender delivers a reminder text and returns the provider's message id.
type SMSSender interface {
	Send(ctx context.Context, channel, to, body string) (string, error)
}

// TwilioSender sends through the Twilio messages API.
type TwilioSender struct {
	client *twilio.RestClient
	cfg    config.Twilio
}

func NewTwilioSender(cfg config.Twilio) *TwilioSender {
	return &TwilioSender{
		cfg: cfg,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
	}
}

func (t *TwilioSender) Send(ctx context.Context, channel, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)
	if channel == ChannelWhatsApp {
		params.SetTo("whatsapp:" + to)
		params.SetFrom("whatsapp:" + t.cfg.WhatsAppNumber)
	} else {
		params.SetTo(to)
		params.SetFrom(t.cfg.PhoneNumber)
	}

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", errors.Wrap(err, "twilio.CreateMessage")
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// ReminderService texts clients the day before a confirmed session.
type ReminderService struct {
	store   gateway.Store
	sender  SMSSender
	channel string
	log     *slog.Logger
	cron    *cron.Cron
	now     func() time.Time
}

// NewReminderService sends every reminder over channel, ChannelSMS unless ChannelWhatsApp
// is given.
func NewReminderService(store gateway.Store, sender SMSSender, channel string, log *slog.Logger) *ReminderService {
	if log == nil {
		log = slog.Default()
	}
	if channel != ChannelWhatsApp {
		channel = ChannelSMS
	}
	return &ReminderService{
		store:   store,
		sender:  sender,
		channel: channel,
		log:     log.With(slog.String("component", "reminders")),
		now:     time.Now,
	}
}

// Start schedules the daily run. The returned function stops the scheduler.
func (s *ReminderService) Start(schedule string) (func(), error) {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.SendUpcomingReminders(context.Background(), s.now()); err != nil {
			s.log.Error("reminder run failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reminders.Start: invalid schedule %q", schedule)
	}
	s.cron.Start()
	s.log.Info("reminder scheduler started", slog.String("schedule", schedule))
	return func() { <-s.cron.Stop().Done() }, nil
}

// SendUpcomingReminders texts every client with a confirmed booking on the calendar day
// after now that has not been reminded yet. It returns how many reminders went out.
func (s *ReminderService) SendUpcomingReminders(ctx context.Context, now time.Time) (int, error) {
	from, to := utils.NextDay(now)
	bookings, err := s.store.ListUpcomingBookings(ctx, models.BookingConfirmed, from, to)
	if err != nil {
		return 0, err
	}

	templates := map[string]*models.ReminderTemplate{}
	sent := 0
	for i := range bookings {
		b := &bookings[i]
		if b.ClientPhone == nil {
			continue
		}
		key := b.ArtistID.String()
		tpl, ok := templates[key]
		if !ok {
			tpl, err = s.store.GetReminderTemplate(ctx, b.ArtistID)
			if err != nil {
				s.log.Warn("template lookup failed", slog.String("artist_id", key), slog.Any("error", err))
			}
			templates[key] = tpl
		}
		if tpl != nil && !tpl.IsActive {
			continue
		}
		if s.remind(ctx, b, tpl) {
			sent++
		}
	}

	s.log.Info("reminder run completed", slog.Int("bookings", len(bookings)), slog.Int("sent", sent))
	return sent, nil
}

func (s *ReminderService) remind(ctx context.Context, b *models.Booking, tpl *models.ReminderTemplate) bool {
	clientName, artistName := "there", "your artist"
	if b.Client != nil {
		clientName = b.Client.DisplayName
	}
	if b.Artist != nil {
		artistName = b.Artist.DisplayName
	}
	body := tpl.Render(clientName, artistName, b.RequestedAt)

	phone, channel := *b.ClientPhone, s.channel

	entry := &models.ReminderLog{
		BookingID: b.ID,
		ArtistID:  b.ArtistID,
		Message:   body,
		Status:    "sent",
		Channel:   channel,
		SentAt:    s.now(),
	}
	sid, err := s.sender.Send(ctx, channel, phone, body)
	if err != nil {
		s.log.Warn("reminder not delivered", slog.String("booking_id", b.ID.String()), slog.Any("error", err))
		entry.Status = "failed"
		entry.ErrorMessage = err.Error()
	} else {
		s.log.Info("reminder sent", slog.String("booking_id", b.ID.String()), slog.String("channel", channel), slog.String("sid", sid))
	}

	if err := s.store.RecordReminder(ctx, entry); err != nil {
		s.log.Warn("reminder log not saved", slog.String("booking_id", b.ID.String()), slog.Any("error", err))
	}
	if entry.Status != "sent" {
		return false
	}
	if err := s.store.MarkBookingReminded(ctx, b.ID, entry.SentAt); err != nil {
		s.log.Warn("booking not marked reminded", slog.String("booking_id", b.ID.String()), slog.Any("error", err))
	}
	return true
}
