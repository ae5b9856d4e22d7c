// handlers_upload_test.go - Tests for upload handlers
package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelboard/backend/internal/models"
	"github.com/reelboard/backend/internal/testutil"
)

func multipartBody(t *testing.T, category string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if category != "" {
		require.NoError(t, writer.WriteField("category", category))
	}
	for _, name := range names {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		part.Write([]byte("fake image bytes"))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func uploadContext(t *testing.T, body *bytes.Buffer, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleUploadFiles(t *testing.T) {
	store := testutil.NewMockStorage()
	h := NewHandler(store, nil, nil, nil, nil, 4)

	body, contentType := multipartBody(t, "face", "a.jpg", "b.jpg")
	c, rec := uploadContext(t, body, contentType)

	require.NoError(t, h.HandleUploadFiles(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var uploaded []models.UploadedFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	require.Len(t, uploaded, 2)
	assert.Equal(t, models.CategoryFace, uploaded[0].Category)
	assert.NotEmpty(t, uploaded[0].URL)
	assert.NotEmpty(t, uploaded[0].Handle)
}

func TestHandleUploadFiles_InvalidCategory(t *testing.T) {
	store := testutil.NewMockStorage()
	h := NewHandler(store, nil, nil, nil, nil, 4)

	body, contentType := multipartBody(t, "selfie", "a.jpg")
	c, _ := uploadContext(t, body, contentType)

	err := h.HandleUploadFiles(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestHandleUploadFiles_NoFiles(t *testing.T) {
	store := testutil.NewMockStorage()
	h := NewHandler(store, nil, nil, nil, nil, 4)

	body, contentType := multipartBody(t, "product")
	c, _ := uploadContext(t, body, contentType)

	err := h.HandleUploadFiles(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestHandleRecentFiles(t *testing.T) {
	store := testutil.NewMockStorage()
	store.SeedFiles(3, models.CategoryProduct)
	h := NewHandler(store, nil, nil, nil, nil, 4)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/files/recent", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleRecentFiles(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var files []models.UploadedFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 3)
}

func TestHandleGetAndDeleteFile(t *testing.T) {
	store := testutil.NewMockStorage()
	seeded := store.SeedFiles(1, models.CategoryFaceless)
	h := NewHandler(store, nil, nil, nil, nil, 4)

	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded[0].ID)
	require.NoError(t, h.HandleGetFile(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded[0].ID)
	require.NoError(t, h.HandleDeleteFile(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Now gone
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(seeded[0].ID)
	err := h.HandleGetFile(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
