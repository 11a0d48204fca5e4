// Package qr serves the public scan endpoints: everything reachable from
// a QR code without authentication.
package qr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/biter777/countries"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"qrshare/entity"
	"qrshare/lib/api/response"
	"qrshare/lib/sl"
)

type Core interface {
	ViewBundle(ctx context.Context, publicId, sig string, meta *entity.ScanMeta) (*entity.ViewOutcome, error)
	VerifyPasscode(ctx context.Context, publicId, sig, code string, meta *entity.ScanMeta) (*entity.BundleView, error)
}

// View handles GET /qr/view/{publicId}?sig=, the landing point of every
// QR scan.
func View(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.qr")
		publicId := chi.URLParam(r, "publicId")
		sig := r.URL.Query().Get("sig")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Bundle(publicId),
		)

		if handler == nil {
			logger.Error("share service not available")
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Share service not available"))
			return
		}

		outcome, err := handler.ViewBundle(r.Context(), publicId, sig, scanMeta(r))
		if err != nil {
			renderScanError(w, r, logger, err)
			return
		}

		if outcome.Locked != nil {
			render.JSON(w, r, response.Ok(outcome.Locked))
			return
		}
		render.JSON(w, r, response.Ok(outcome.Full))
	}
}

// VerifyPasscode handles POST /qr/verify-passcode/{publicId}?sig= with a
// {passcode} body.
func VerifyPasscode(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.qr")
		publicId := chi.URLParam(r, "publicId")
		sig := r.URL.Query().Get("sig")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Bundle(publicId),
		)

		if handler == nil {
			logger.Error("share service not available")
			render.Status(r, 500)
			render.JSON(w, r, response.Error("Share service not available"))
			return
		}

		var req entity.PasscodeRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Invalid request"))
			return
		}

		view, err := handler.VerifyPasscode(r.Context(), publicId, sig, req.Passcode, scanMeta(r))
		if err != nil {
			renderScanError(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Ok(view))
	}
}

// scanMeta collects the network/client metadata stamped onto audit events.
func scanMeta(r *http.Request) *entity.ScanMeta {
	remote := r.RemoteAddr
	if xRemote := r.Header.Get("X-Forwarded-For"); xRemote != "" {
		remote = xRemote
	}
	meta := &entity.ScanMeta{
		IPAddress: remote,
		UserAgent: r.UserAgent(),
	}
	// coarse geo from the edge-provided country header, if any
	if code := r.Header.Get("CF-IPCountry"); code != "" {
		if c := countries.ByName(code); c != countries.Unknown {
			meta.Country = c.String()
		}
	}
	return meta
}

// renderScanError maps core errors to the public status codes. Gate
// failures are deliberately opaque: the caller never learns why a bundle
// is inaccessible.
func renderScanError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validationErr *entity.ValidationError
	switch {
	case errors.Is(err, entity.ErrBadSignature):
		render.Status(r, 400)
		render.JSON(w, r, response.Error("Invalid signature"))
	case errors.Is(err, entity.ErrNotFound):
		render.Status(r, 404)
		render.JSON(w, r, response.Error("Requested resource not found"))
	case errors.Is(err, entity.ErrForbidden):
		render.Status(r, 403)
		render.JSON(w, r, response.NotAccessible())
	case errors.Is(err, entity.ErrUnauthorized):
		render.Status(r, 401)
		render.JSON(w, r, response.Error("Invalid passcode"))
	case errors.As(err, &validationErr):
		render.Status(r, 400)
		render.JSON(w, r, response.Error(validationErr.Message))
	default:
		logger.Error("scan flow failed", sl.Err(err))
		render.Status(r, 500)
		render.JSON(w, r, response.Error("Internal error"))
	}
}
