package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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
	Option *int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// outbox feeds the single writer goroutine. push gives up once the writer
// has stopped so a reader never blocks on a dead connection.
type outbox struct {
	send chan outboundMessage[any]
	done <-chan struct{}
}

func (o outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and binds the connection to the caller's
// session for the quiz. Every state change, including timer ticks, is pushed
// as a "state" message; rejected commands produce an "error" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, _, err := h.service.Open(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: newErrorPayload(err)})
		return
	}
	defer h.service.Close(quizID, userID)

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	out := outbox{send: send, done: writerDone}

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// unblock the read loop
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: view}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var cmdErr error
		switch inbound.Type {
		case "start":
			_, cmdErr = session.Start(ctx)
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == nil {
				if !out.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid select payload"}}) {
					break readLoop
				}
				continue
			}
			_, cmdErr = session.Select(ctx, *payload.Option)
		case "confirm":
			_, cmdErr = session.Confirm(ctx)
		case "advance":
			_, cmdErr = session.Advance(ctx)
		case "finish":
			_, cmdErr = session.Finish(ctx)
		case "retake":
			_, cmdErr = session.Retake(ctx)
		case "reset":
			_, cmdErr = session.Reset(ctx)
		case "sync":
			if !out.push(outboundMessage[any]{Type: "state", Payload: session.Sync(ctx)}) {
				break readLoop
			}
		default:
			if !out.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}}) {
				break readLoop
			}
		}
		if cmdErr != nil && !out.push(outboundMessage[any]{Type: "error", Payload: newErrorPayload(cmdErr)}) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrDefinitionUnavailable, "definition_unavailable"},
	{domain.ErrNotEligible, "not_eligible"},
	{domain.ErrRetakeNotAllowed, "retake_not_allowed"},
	{domain.ErrRetakeRequired, "retake_required"},
	{domain.ErrSessionInProgress, "in_progress"},
	{domain.ErrSessionNotStarted, "not_started"},
	{domain.ErrSessionCompleted, "completed"},
	{domain.ErrSubmitting, "submitting"},
	{domain.ErrAlreadyConfirmed, "already_confirmed"},
	{domain.ErrNoSelection, "no_selection"},
	{domain.ErrNotConfirmed, "not_confirmed"},
	{domain.ErrQuestionsRemaining, "questions_remaining"},
	{domain.ErrTimeExpired, "time_expired"},
	{domain.ErrOptionOutOfRange, "option_out_of_range"},
	{domain.ErrSubmissionFailed, "submission_failed"},
}

func newErrorPayload(err error) errorPayload {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return errorPayload{Code: c.code, Message: err.Error()}
		}
	}
	return errorPayload{Code: "internal", Message: err.Error()}
}
