package server

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *testutil.FakeEngine) {
	t.Helper()
	engine := testutil.NewFakeEngine()
	pl, err := pipeline.NewBuilder().BuildWith(engine)
	require.NoError(t, err)

	if cfg.Format == (pipeline.FormatOptions{}) {
		cfg.Format = pipeline.DefaultFormatOptions()
	}
	s, err := NewServer(cfg, pl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, engine
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.CreateSceneImage(w, h, image.Rect(w/4, h/4, w/2, h/2))))
	return buf.Bytes()
}

// multipartRequest builds a POST with one file field and optional form values.
func multipartRequest(t *testing.T, target, field, filename string, data []byte, values map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
