// Package bundle serves the authenticated bundle management endpoints.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"qrshare/entity"
	"qrshare/lib/api/cont"
	"qrshare/lib/api/response"
	"qrshare/lib/sl"
)

type Core interface {
	CreateBundle(ctx context.Context, user *entity.User, req *entity.ShareRequest) (*entity.ShareResult, error)
	GetBundle(ctx context.Context, user *entity.User, publicId string) (*entity.Bundle, error)
	UpdateBundle(ctx context.Context, user *entity.User, publicId string, upd *entity.BundleUpdate) (*entity.Bundle, error)
	DeleteBundle(ctx context.Context, user *entity.User, publicId string) error
	ApproveBundle(ctx context.Context, user *entity.User, publicId string, status entity.ApprovalStatus, notes string) (*entity.Bundle, error)
	RotatePasscode(ctx context.Context, user *entity.User, publicId, newCode string) error
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r, "")

		var req entity.ShareRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(slog.Int("documents", len(req.Documents)))

		user := cont.GetUser(r.Context())
		result, err := handler.CreateBundle(r.Context(), user, &req)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		logger.Debug("bundle create handled", slog.Bool("reused", result.Reused))

		if !result.Reused {
			render.Status(r, 201)
		}
		render.JSON(w, r, response.Ok(result))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publicId := chi.URLParam(r, "publicId")
		logger := requestLogger(log, r, publicId)

		user := cont.GetUser(r.Context())
		b, err := handler.GetBundle(r.Context(), user, publicId)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Ok(b))
	}
}

func Update(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publicId := chi.URLParam(r, "publicId")
		logger := requestLogger(log, r, publicId)

		var upd entity.BundleUpdate
		if err := render.Bind(r, &upd); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		user := cont.GetUser(r.Context())
		b, err := handler.UpdateBundle(r.Context(), user, publicId, &upd)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Ok(b))
	}
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publicId := chi.URLParam(r, "publicId")
		logger := requestLogger(log, r, publicId)

		user := cont.GetUser(r.Context())
		if err := handler.DeleteBundle(r.Context(), user, publicId); err != nil {
			renderError(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}

func Approve(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publicId := chi.URLParam(r, "publicId")
		logger := requestLogger(log, r, publicId)

		var req entity.ApprovalRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		user := cont.GetUser(r.Context())
		b, err := handler.ApproveBundle(r.Context(), user, publicId, req.Status, req.Notes)
		if err != nil {
			renderError(w, r, logger, err)
			return
		}
		logger.Debug("approval handled", slog.String("status", string(req.Status)))
		render.JSON(w, r, response.Ok(b))
	}
}

func RotatePasscode(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publicId := chi.URLParam(r, "publicId")
		logger := requestLogger(log, r, publicId)

		var req entity.RotatePasscodeRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		user := cont.GetUser(r.Context())
		if err := handler.RotatePasscode(r.Context(), user, publicId, req.Passcode); err != nil {
			renderError(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}

func requestLogger(log *slog.Logger, r *http.Request, publicId string) *slog.Logger {
	logger := log.With(
		sl.Module("http.handlers.bundle"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	if publicId != "" {
		logger = logger.With(sl.Bundle(publicId))
	}
	return logger
}

func renderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validationErr *entity.ValidationError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		render.Status(r, 404)
		render.JSON(w, r, response.Error("Requested resource not found"))
	case errors.Is(err, entity.ErrForbidden):
		render.Status(r, 403)
		render.JSON(w, r, response.Error("Operation not permitted"))
	case errors.As(err, &validationErr):
		render.Status(r, 400)
		render.JSON(w, r, response.Error(validationErr.Message))
	default:
		logger.Error("bundle operation failed", sl.Err(err))
		render.Status(r, 500)
		render.JSON(w, r, response.Error("Internal error"))
	}
}
