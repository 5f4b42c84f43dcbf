package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"storyteller/pkg/errs"
	"storyteller/pkg/session"
	"storyteller/pkg/story"
)

// ErrBusy is returned when a submission arrives while another is still running.
var ErrBusy = errors.New("the Storyteller is still working on your last request")

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Status int    `json:"status,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

func errorResponse(err error) (int, errorBody) {
	if ge, ok := errs.AsGeneration(err); ok {
		return http.StatusBadGateway, errorBody{
			Error:  ge.Error(),
			Kind:   ge.Kind.String(),
			Status: ge.Status,
			Raw:    ge.Raw,
		}
	}
	switch {
	case errors.Is(err, story.ErrWrongStage), errors.Is(err, ErrBusy):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, story.ErrInvalidInput), errors.Is(err, story.ErrUnknownChoice):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, errs.ErrAuthentication):
		return http.StatusUnauthorized, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: err.Error()}
	}
}

func generationMessage(ge *errs.GenerationError) string {
	switch ge.Kind {
	case errs.MalformedResponse:
		return "The AI returned an unexpected format. Please try again."
	case errs.UpstreamRejected:
		return "The AI service rejected the request."
	default:
		return "The AI service is not configured."
	}
}

// fail reports err as JSON or as a flash followed by a redirect to the page.
func fail(c echo.Context, sess *session.Session, err error) error {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.Path(), "err", err)
	}
	if wantsJSON(c) {
		return c.JSON(status, body)
	}

	flash := session.Flash{Level: "error", Message: body.Error, Detail: body.Raw}
	if ge, ok := errs.AsGeneration(err); ok {
		flash.Message = generationMessage(ge)
		if ge.Status != 0 {
			flash.Message += fmt.Sprintf(" (status %d)", ge.Status)
		}
		if flash.Detail == "" && ge.Err != nil {
			flash.Detail = ge.Err.Error()
		}
	}
	sess.SetFlash(flash)
	return c.Redirect(http.StatusSeeOther, "/")
}

// done answers a successful form post.
func done(c echo.Context, sess *session.Session, status int, flash *session.Flash) error {
	if wantsJSON(c) {
		return c.JSON(status, newStoryView(sess))
	}
	if flash != nil {
		sess.SetFlash(*flash)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
