package media

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	folder      string
	contentType string
	body        []byte
}

func (f *fakeUploader) UploadImage(ctx context.Context, folder, originalName string, body io.Reader, size int64, contentType string) (Upload, error) {
	f.folder = folder
	f.contentType = contentType
	f.body, _ = io.ReadAll(body)
	return Upload{Key: folder + "/x.png", URL: "http://cdn/" + folder + "/x.png", ContentType: contentType, Size: size}, nil
}

// Smallest valid PNG header is enough for content sniffing.
var pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartBody(t *testing.T, folder string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	fw, err := mw.CreateFormFile("image", "cover.png")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	up := &fakeUploader{}
	h := NewHandler(up, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body, ct := multipartBody(t, "categories", pngHead)
	req := httptest.NewRequest(http.MethodPost, "/admin/media/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadImage(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "categories", up.folder)
	assert.Equal(t, "image/png", up.contentType)
	assert.Equal(t, pngHead, up.body)
}

func TestUploadRejectsNonImages(t *testing.T) {
	h := NewHandler(&fakeUploader{}, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body, ct := multipartBody(t, "", []byte("#!/bin/sh\necho hi\n"))
	req := httptest.NewRequest(http.MethodPost, "/admin/media/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadImage(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadRejectsUnknownFolder(t *testing.T) {
	h := NewHandler(&fakeUploader{}, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body, ct := multipartBody(t, "../etc", pngHead)
	req := httptest.NewRequest(http.MethodPost, "/admin/media/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.UploadImage(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("resources", ".png", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "resources/2024/03/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	assert.True(t, strings.HasPrefix(ObjectKey("../../x", ".gif", time.Now()), "x/"))
}

func TestKeyFromRef(t *testing.T) {
	m := &MinioStore{bucket: "cms-media", publicURL: "https://cdn.example.com/cms-media"}
	assert.Equal(t, "resources/a.png", m.keyFromRef("https://cdn.example.com/cms-media/resources/a.png"))
	assert.Equal(t, "resources/a.png", m.keyFromRef("/resources/a.png"))
	assert.Equal(t, "", m.keyFromRef("https://elsewhere.com/a.png"))
	assert.Equal(t, "https://cdn.example.com/cms-media/resources/a.png", m.URL("resources/a.png"))
}

func TestImageExtension(t *testing.T) {
	ext, err := ImageExtension("image/webp")
	require.NoError(t, err)
	assert.Equal(t, ".webp", ext)

	_, err = ImageExtension("application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
