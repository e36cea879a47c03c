package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-guard-service/internal/app"
	"quiz-guard-service/internal/backend"
	"quiz-guard-service/internal/domain"
	"quiz-guard-service/internal/integrity"
	"quiz-guard-service/internal/logging"
)

// maxMessageSize bounds one inbound frame; the environment report is the largest.
const maxMessageSize = 64 << 10

type WSHandler struct {
	service  *app.PlayService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PlayService, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionID string `json:"optionId"`
}

type verdictMessage struct {
	Type    string               `json:"type"`
	Kind    integrity.SignalKind `json:"kind"`
	Prevent bool                 `json:"prevent"`
}

// ServeWS upgrades HTTP requests to websockets and drives one play session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	log := h.log.WithFields(logrus.Fields{"quiz_id": quizID, "user_id": userID})
	ctx := backend.WithToken(r.Context(), bearerToken(r))
	ctx = logging.WithEntry(ctx, log)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	session, err := h.service.Begin(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(beginError(quizID, err))
		return
	}
	// r.Context is done once the socket drops; release the claim regardless
	defer h.service.End(context.WithoutCancel(ctx), session)

	notices, cancel := session.Subscribe()
	defer cancel()

	send := make(chan any, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	noticesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(noticesDone)
		for {
			select {
			case notice, ok := <-notices:
				if !ok {
					return
				}
				select {
				case send <- notice:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg any) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			session.Start(ctx)
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorNotice("invalid select payload"))
				continue
			}
			session.SelectOption(payload.OptionID)
		case "confirm":
			session.ConfirmAnswer()
		case "submit":
			session.Submit(false)
		case "signal":
			var sig integrity.Signal
			if err := json.Unmarshal(inbound.Payload, &sig); err != nil || sig.Kind == "" {
				reply(errorNotice("invalid signal payload"))
				continue
			}
			if v := session.Signal(sig); v.Prevent {
				reply(verdictMessage{Type: "verdict", Kind: sig.Kind, Prevent: true})
			}
		default:
			reply(errorNotice("unsupported message type"))
		}
	}

	close(closeSignals)
	<-noticesDone
	close(send)
	<-writerDone
}

// bearerToken reads the token from the Authorization header, falling back to
// the access_token query parameter since browsers cannot set headers on a
// WebSocket upgrade.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

func beginError(quizID string, err error) domain.Notice {
	n := errorNotice(err.Error())
	switch {
	case errors.Is(err, domain.ErrAlreadyAttempted):
		n.Message = "You have already attempted this quiz."
		n.Redirect = fmt.Sprintf("/quizzes/%s/leaderboard", quizID)
	case errors.Is(err, domain.ErrQuizNotActive):
		n.Message = "This quiz is not currently active."
		n.Redirect = "/quizzes"
	case errors.Is(err, domain.ErrQuizNotFound):
		n.Message = "Quiz not found."
		n.Redirect = "/quizzes"
	case errors.Is(err, domain.ErrInvalidQuiz):
		n.Message = "This quiz cannot be played."
	case errors.Is(err, domain.ErrSessionActive):
		n.Message = "This quiz is already open in another window."
	}
	return n
}

func errorNotice(msg string) domain.Notice {
	return domain.Notice{Type: domain.NoticeError, Message: msg}
}
