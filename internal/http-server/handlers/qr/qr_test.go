package qr

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/require"

	"qrshare/entity"
)

type stubCore struct {
	viewOutcome *entity.ViewOutcome
	viewErr     error
	fullView    *entity.BundleView
	passErr     error
	lastMeta    *entity.ScanMeta
}

func (s *stubCore) ViewBundle(_ context.Context, _, _ string, meta *entity.ScanMeta) (*entity.ViewOutcome, error) {
	s.lastMeta = meta
	return s.viewOutcome, s.viewErr
}

func (s *stubCore) VerifyPasscode(_ context.Context, _, _, _ string, meta *entity.ScanMeta) (*entity.BundleView, error) {
	s.lastMeta = meta
	return s.fullView, s.passErr
}

func newRouter(core *stubCore) *chi.Mux {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/qr/view/{publicId}", View(log, core))
	r.Post("/qr/verify-passcode/{publicId}", VerifyPasscode(log, core))
	return r
}

func doView(t *testing.T, core *stubCore, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/qr/view/pub-1?sig=abc", nil)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	newRouter(core).ServeHTTP(rec, req)
	return rec
}

func TestView_FullPayload(t *testing.T) {
	t.Parallel()

	core := &stubCore{viewOutcome: &entity.ViewOutcome{
		Full: &entity.BundleView{PublicId: "pub-1", Title: "pack", ViewCount: 3},
	}}
	rec := doView(t, core, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool              `json:"success"`
		Data    entity.BundleView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, int64(3), body.Data.ViewCount)
}

func TestView_LockedPayloadHidesDocuments(t *testing.T) {
	t.Parallel()

	core := &stubCore{viewOutcome: &entity.ViewOutcome{
		Locked: &entity.LockedView{PublicId: "pub-1", Title: "pack", HasPasscode: true},
	}}
	rec := doView(t, core, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"has_passcode":true`)
	require.NotContains(t, rec.Body.String(), "documents")
}

func TestView_ErrorStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"bad signature", entity.ErrBadSignature, http.StatusBadRequest},
		{"unknown id", entity.ErrNotFound, http.StatusNotFound},
		{"gate failed", entity.ErrForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := doView(t, &stubCore{viewErr: tt.err}, nil)
			require.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

// Whatever the gate reason, the 403 body is identical.
func TestView_OpaqueForbiddenBody(t *testing.T) {
	t.Parallel()

	rec := doView(t, &stubCore{viewErr: entity.ErrForbidden}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Bundle is not accessible")
	for _, leak := range []string{"expired", "rejected", "pending", "quota", "publish"} {
		require.NotContains(t, strings.ToLower(rec.Body.String()), leak)
	}
}

func TestView_ScanMetaCollected(t *testing.T) {
	t.Parallel()

	core := &stubCore{viewOutcome: &entity.ViewOutcome{Full: &entity.BundleView{}}}
	header := http.Header{}
	header.Set("X-Forwarded-For", "198.51.100.9")
	header.Set("User-Agent", "scanner/2.0")
	header.Set("CF-IPCountry", "PL")
	doView(t, core, header)

	require.NotNil(t, core.lastMeta)
	require.Equal(t, "198.51.100.9", core.lastMeta.IPAddress)
	require.Equal(t, "scanner/2.0", core.lastMeta.UserAgent)
	require.Equal(t, "Poland", core.lastMeta.Country)
}

func TestVerifyPasscode_Statuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		core       *stubCore
		wantStatus int
	}{
		{
			"success",
			`{"passcode":"alpha42"}`,
			&stubCore{fullView: &entity.BundleView{PublicId: "pub-1"}},
			http.StatusOK,
		},
		{
			"wrong code",
			`{"passcode":"nope"}`,
			&stubCore{passErr: entity.ErrUnauthorized},
			http.StatusUnauthorized,
		},
		{
			"inaccessible",
			`{"passcode":"alpha42"}`,
			&stubCore{passErr: entity.ErrForbidden},
			http.StatusForbidden,
		},
		{
			"missing passcode field",
			`{}`,
			&stubCore{},
			http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/qr/verify-passcode/pub-1?sig=abc",
				strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newRouter(tt.core).ServeHTTP(rec, req)
			require.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
