package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/middleware"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/response"
	"github.com/stemsi/exampool/internal/service"
	"github.com/stemsi/exampool/internal/validator"
	ws "github.com/stemsi/exampool/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams answer saves and submission for one attempt.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Upgrades to WebSocket. Every action goes through the same service calls as REST.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Refuse the upgrade for attempts the caller cannot write to.
	ctx := c.Request.Context()
	if _, err := h.attemptService.GetAttempt(ctx, attemptID, claims.UserID); err != nil {
		failWithError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s := &wsSession{
		h:         h,
		conn:      conn,
		userID:    claims.UserID,
		attemptID: attemptID,
		log: h.log.With().
			Str("user_id", claims.UserID).
			Str("attempt_id", attemptID.String()).
			Logger(),
	}
	s.log.Info().Msg("Client connected")
	s.serve(ctx)
}

type wsSession struct {
	h         *WSHandler
	conn      *websocket.Conn
	userID    string
	attemptID uuid.UUID
	log       zerolog.Logger
}

func (s *wsSession) serve(ctx context.Context) {
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(s.conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		var done bool
		switch msg.Action {
		case ws.ActionAnswer:
			done = s.handleAnswer(ctx, &msg)
		case ws.ActionSubmit:
			done = s.handleSubmit(ctx)
		case ws.ActionPing:
			done = s.handlePing(ctx)
		default:
			s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = ws.WriteError(s.conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
		if done {
			return
		}
	}
}

func (s *wsSession) handleAnswer(ctx context.Context, msg *ws.RequestPayload) bool {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		_ = ws.WriteError(s.conn, string(response.ErrInvalidID), "invalid question_id")
		return false
	}

	req := model.PutAnswerRequest{SelectedOption: msg.SelectedOption, IsMarkedForReview: msg.IsMarkedForReview}
	if fields := validator.Struct(&req); fields != nil {
		_ = ws.WriteError(s.conn, string(response.ErrValidation), validator.FirstMessage(fields))
		return false
	}

	ans, err := s.h.attemptService.PutAnswer(ctx, s.attemptID, s.userID, questionID, req)
	if err != nil {
		return s.fail(err)
	}
	_ = ws.WriteTyped(s.conn, ws.SavedResponse{Event: ws.EventSaved, Answer: ans})
	return false
}

func (s *wsSession) handleSubmit(ctx context.Context) bool {
	result, err := s.h.attemptService.SubmitAttempt(ctx, s.attemptID, s.userID)
	if err != nil {
		return s.fail(err)
	}
	_ = ws.WriteTyped(s.conn, ws.GradedResponse{Event: ws.EventGraded, Result: result})
	s.log.Info().Str("score", result.TotalScore.String()).Msg("Attempt submitted over stream")
	return true
}

func (s *wsSession) handlePing(ctx context.Context) bool {
	view, err := s.h.attemptService.GetAttempt(ctx, s.attemptID, s.userID)
	if err != nil {
		return s.fail(err)
	}
	_ = ws.WriteTyped(s.conn, ws.PongResponse{Event: ws.EventPong, RemainingSeconds: view.RemainingSeconds})
	return false
}

// fail reports err to the client and tells the loop whether the stream is over.
// Once the attempt is submitted or expired nothing more can be written to it.
func (s *wsSession) fail(err error) bool {
	_, code := errorCode(err)
	msg := response.GetMessage(code)
	if code == response.ErrInternal {
		s.log.Error().Err(err).Msg("Stream action failed")
	}

	if errors.Is(err, service.ErrAttemptExpired) {
		// Deliver the auto-submitted result before closing.
		if result, rerr := s.h.attemptService.GetResult(context.Background(), s.attemptID, s.userID); rerr == nil {
			_ = ws.WriteError(s.conn, string(code), msg)
			_ = ws.WriteTyped(s.conn, ws.GradedResponse{Event: ws.EventGraded, Result: result})
			return true
		}
	}

	_ = ws.WriteError(s.conn, string(code), msg)
	return errors.Is(err, service.ErrAttemptExpired) || errors.Is(err, service.ErrAttemptAlreadySubmitted)
}
