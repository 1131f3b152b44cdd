package v1

import (
	stderrors "errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai/funnel"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
	ratelimit "github.com/hrygo/servicefunnel/server/middleware"
)

// MaxUtteranceRunes is the longest accepted message.
const MaxUtteranceRunes = 2000

// DetectRequest is the body of a detect call. History is optional; without
// it the server keeps the transcript itself.
type DetectRequest struct {
	Message         string         `json:"message"`
	OriginalMessage string         `json:"originalMessage"`
	IsFollowup      bool           `json:"isFollowup"`
	History         memory.History `json:"history"`
}

// Detect runs one turn of a dialog.
// POST /api/v1/dialogs/:id/detect
func (s *APIV1Service) Detect(c echo.Context) error {
	dialogID := strings.TrimSpace(c.Param("id"))
	if dialogID == "" {
		return c.JSON(http.StatusBadRequest, errorBody(funnelerrors.InvalidArgument("dialog id is required")))
	}

	var req DetectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(funnelerrors.InvalidArgument("invalid request body")))
	}
	if utf8.RuneCountInString(req.Message) > MaxUtteranceRunes {
		return c.JSON(http.StatusBadRequest, errorBody(funnelerrors.InvalidArgument("message is too long")))
	}

	history := req.History
	serverSide := len(history) == 0 && s.Window != nil
	if serverSide {
		history = s.Window.History(dialogID)
	}

	res := s.Funnel.DetectService(c.Request().Context(), req.Message, funnel.DetectContext{
		DialogID:        dialogID,
		OriginalMessage: req.OriginalMessage,
		IsFollowup:      req.IsFollowup || len(history) > 0,
		DialogHistory:   history,
	})

	if serverSide && res.Status != funnel.StatusError {
		s.Window.Append(dialogID,
			memory.Entry{Role: memory.RoleUser, Text: req.Message},
			memory.Entry{Role: memory.RoleBot, Text: res.Message})
	}
	return c.JSON(httpStatus(res), res)
}

// ResetDialog forgets a dialog.
// DELETE /api/v1/dialogs/:id
func (s *APIV1Service) ResetDialog(c echo.Context) error {
	dialogID := strings.TrimSpace(c.Param("id"))
	if dialogID == "" {
		return c.JSON(http.StatusBadRequest, errorBody(funnelerrors.InvalidArgument("dialog id is required")))
	}

	if err := s.Funnel.Reset(c.Request().Context(), dialogID); err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}
	if s.Window != nil {
		s.Window.Clear(dialogID)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpStatus(res *funnel.DetectResult) int {
	if res.Status != funnel.StatusError {
		return http.StatusOK
	}
	if res.ErrorCode == string(funnelerrors.ErrCodeCatalogEmpty) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorBody(err error) ratelimit.ErrorBody {
	body := ratelimit.ErrorBody{
		Code:    string(funnelerrors.GetCodeFromError(err, funnelerrors.ErrCodeInternal)),
		Message: "internal error",
	}
	var fe *funnelerrors.FunnelError
	if stderrors.As(err, &fe) {
		body.Message = fe.Message
	}
	return body
}
