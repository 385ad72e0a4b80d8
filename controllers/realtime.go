package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/models"
	"inksnap-backend/services"
	"inksnap-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	frameOpen   = "open"
	frameDraft  = "draft"
	frameAttach = "attach"
	frameSend   = "send"
	frameClose  = "close"

	frameState      = "state"
	frameHistory    = "history"
	frameMessageNew = "message:new"
	frameUnread     = "unread"
	frameBookings   = "bookings"
	frameError      = "error"

	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
)

// Frame is one websocket message in either direction.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type openFrame struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type draftFrame struct {
	Text string `json:"text"`
}

type attachFrame struct {
	Name string `json:"name"`
	Data []byte `json:"data"` // base64 in JSON
}

type errorFrame struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

// RealtimeController runs one session per websocket. Browsers cannot set headers on a
// websocket handshake, so the token comes in the query string.
type RealtimeController struct {
	Deps               services.Deps
	JWTSecret          string
	OriginPatterns     []string
	InsecureSkipVerify bool
}

func (h *RealtimeController) Handle(c *gin.Context) {
	identity, err := utils.ParseToken(h.JWTSecret, c.Query("token"))
	if err != nil {
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.OriginPatterns,
		InsecureSkipVerify: h.InsecureSkipVerify,
	})
	if err != nil {
		return // Accept already wrote the response
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	client := &wsClient{
		conn:    conn,
		send:    make(chan Frame, sendBuffer),
		ctx:     ctx,
		session: services.NewSession(h.Deps, identity.ID),
		log:     h.logger().With(slog.String("identity", identity.ID.String())),
	}
	defer func() {
		cancel()
		client.session.Close()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	go client.writeLoop()
	go client.keepAliveLoop()

	client.session.Unread.OnChange(func(n int64) {
		client.push(Frame{Type: frameUnread, Data: gin.H{"unread": n}})
	})
	client.session.WatchBookings(func(b models.Booking) {
		client.push(Frame{Type: frameBookings, Data: gin.H{"booking": b}})
	})
	if _, err := client.session.Unread.Refresh(ctx); err != nil {
		client.fail(err)
	}

	client.readLoop()
}

func (h *RealtimeController) logger() *slog.Logger {
	if h.Deps.Logger == nil {
		return slog.Default()
	}
	return h.Deps.Logger
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan Frame
	ctx     context.Context
	session *services.Session
	log     *slog.Logger
}

// push never blocks; frames are dropped when the client cannot keep up.
func (w *wsClient) push(f Frame) {
	select {
	case <-w.ctx.Done():
	case w.send <- f:
	default:
		w.log.Warn("websocket frame dropped", slog.String("type", f.Type))
	}
}

func (w *wsClient) fail(err error) {
	w.push(Frame{Type: frameError, Data: errorFrame{Code: apperrors.CodeOf(err), Message: publicMessage(err)}})
}

func publicMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

func (w *wsClient) writeLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case f := <-w.send:
			writeCtx, cancel := context.WithTimeout(w.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, w.conn, f)
			cancel()
			if err != nil {
				w.log.Debug("websocket write failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (w *wsClient) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(w.ctx, 5*time.Second)
			_ = w.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (w *wsClient) readLoop() {
	for {
		var in inboundFrame
		if err := wsjson.Read(w.ctx, w.conn, &in); err != nil {
			return
		}
		if err := w.handle(in); err != nil {
			w.fail(err)
		}
	}
}

func (w *wsClient) handle(in inboundFrame) error {
	switch in.Type {
	case frameOpen:
		var data openFrame
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return apperrors.Validation("invalid open frame")
		}
		return w.open(data.ConversationID)

	case frameDraft:
		var data draftFrame
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return apperrors.Validation("invalid draft frame")
		}
		ch, err := w.channel()
		if err != nil {
			return err
		}
		ch.SetDraft(data.Text)

	case frameAttach:
		var data attachFrame
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return apperrors.Validation("invalid attach frame")
		}
		ch, err := w.channel()
		if err != nil {
			return err
		}
		if len(data.Data) == 0 {
			ch.Attach(nil)
			return nil
		}
		ch.Attach(&services.Attachment{Name: data.Name, Data: data.Data})

	case frameSend:
		ch, err := w.channel()
		if err != nil {
			return err
		}
		// the read loop keeps running so a second send is refused while this one is in flight
		go func() {
			if _, err := ch.Send(w.ctx); err != nil {
				w.fail(err)
			}
		}()

	case frameClose:
		w.session.CloseConversation()
		w.push(Frame{Type: frameState, Data: gin.H{"state": services.ChannelClosed}})

	default:
		return apperrors.Validation("unknown frame type " + in.Type)
	}
	return nil
}

func (w *wsClient) channel() (*services.MessageChannel, error) {
	ch := w.session.Channel()
	if ch == nil {
		return nil, apperrors.ErrChannelNotReady
	}
	return ch, nil
}

func (w *wsClient) open(conversationID uuid.UUID) error {
	listener := services.ChannelListener{
		OnState: func(state services.ChannelState, err error) {
			data := gin.H{"conversation_id": conversationID, "state": state}
			if err != nil {
				data["error"] = publicMessage(err)
			}
			w.push(Frame{Type: frameState, Data: data})
		},
		OnHistory: func(messages []models.Message) {
			w.push(Frame{Type: frameHistory, Data: gin.H{"conversation_id": conversationID, "messages": messages}})
		},
		OnAppend: func(msg models.Message, length int) {
			w.push(Frame{Type: frameMessageNew, Data: gin.H{"conversation_id": conversationID, "message": msg, "length": length}})
		},
	}

	ch, err := w.session.OpenConversation(w.ctx, conversationID, listener)
	if err != nil {
		// history failures were already reported through OnState
		if ch != nil {
			return nil
		}
		return err
	}

	bookings, err := w.session.Bookings.Between(w.ctx, ch.Other().ID)
	if err != nil {
		return err
	}
	w.push(Frame{Type: frameBookings, Data: gin.H{"with": ch.Other(), "bookings": bookings}})
	return nil
}
