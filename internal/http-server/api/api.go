package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"qrshare/internal/config"
	"qrshare/internal/http-server/handlers/bundle"
	"qrshare/internal/http-server/handlers/errors"
	"qrshare/internal/http-server/handlers/qr"
	"qrshare/internal/http-server/middleware/authenticate"
	"qrshare/internal/http-server/middleware/timeout"
	"qrshare/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	qr.Core
	bundle.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	// public scan endpoints reached from QR codes; no authentication,
	// gated by the signed URL instead
	router.Route("/qr", func(pub chi.Router) {
		pub.Get("/view/{publicId}", qr.View(log, handler))
		pub.Post("/verify-passcode/{publicId}", qr.VerifyPasscode(log, handler))
	})

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, handler))
		rootApi.Route("/bundles", func(b chi.Router) {
			b.Post("/", bundle.Create(log, handler))
			b.Get("/{publicId}", bundle.Get(log, handler))
			b.Patch("/{publicId}", bundle.Update(log, handler))
			b.Delete("/{publicId}", bundle.Delete(log, handler))
			b.Post("/{publicId}/approve", bundle.Approve(log, handler))
			b.Post("/{publicId}/passcode", bundle.RotatePasscode(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
