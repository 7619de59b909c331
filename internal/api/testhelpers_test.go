package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prospect-scanner/backend/internal/processor"
	"github.com/prospect-scanner/backend/internal/testutil"
	"github.com/prospect-scanner/backend/internal/workspace"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")

type testEnv struct {
	e         *echo.Echo
	ws        *workspace.Manager
	store     *testutil.MockStorage
	extractor *testutil.MockExtractor
	proc      *processor.Processor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := testutil.NewMockStorage()
	ws := workspace.NewManager(store)
	ext := testutil.NewMockExtractor()
	proc := processor.New(ws, ext, zap.NewNop())

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Workspace: ws,
		Runner:    proc,
		BaseCtx:   context.Background(),
		Version:   "test",
		Provider:  "mock",
	}))

	return &testEnv{e: e, ws: ws, store: store, extractor: ext, proc: proc}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

type uploadPart struct {
	name        string
	contentType string
	data        []byte
}

func imageParts(n int) []uploadPart {
	parts := make([]uploadPart, n)
	for i := range parts {
		parts[i] = uploadPart{name: fmt.Sprintf("page%d.png", i+1), contentType: "image/png", data: pngBytes}
	}
	return parts
}

func multipartRequest(t *testing.T, parts []uploadPart) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, p.name))
		h.Set("Content-Type", p.contentType)
		w, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

// seed uploads n images and returns their ids in order.
func (env *testEnv) seed(t *testing.T, n int) []string {
	t.Helper()
	rec := env.do(multipartRequest(t, imageParts(n)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ids []string
	for _, f := range env.ws.Snapshot().Files {
		ids = append(ids, f.ID)
	}
	return ids
}
