// handlers_history_test.go - Tests for persisted generation browsing
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reelboard/backend/internal/history"
	"github.com/reelboard/backend/internal/models"
	"github.com/reelboard/backend/internal/testutil"
)

func newHistoryHandler(t *testing.T) (*Handler, *history.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store, err := history.NewStore(db)
	require.NoError(t, err)

	return NewHandler(testutil.NewMockStorage(), nil, nil, nil, store, 4), store
}

func seedGeneration(t *testing.T, store *history.Store, theme string) *models.SlideshowGeneration {
	t.Helper()
	gen, err := models.NewSlideshowGeneration(
		models.GenerationSettings{Themes: []string{theme}, SlideshowsPerTheme: 1, FramesPerSlideshow: 4},
		[]models.Slideshow{{Theme: theme, Images: []string{"a", "b", "c", "d"}, Captions: []string{"1", "2", "3", "4"}}},
	)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), gen))
	return gen
}

func historyContext(t *testing.T, target string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleHistoryList(t *testing.T) {
	h, store := newHistoryHandler(t)
	seedGeneration(t, store, "alpha")
	seedGeneration(t, store, "beta")

	c, rec := historyContext(t, "/api/history?limit=10")

	require.NoError(t, h.HandleHistoryList(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Generations []models.SlideshowGeneration `json:"generations"`
		Limit       int                          `json:"limit"`
		Total       int64                        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Generations, 2)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, int64(2), resp.Total)
}

func TestHandleHistoryList_DefaultsBadParams(t *testing.T) {
	h, store := newHistoryHandler(t)
	seedGeneration(t, store, "alpha")

	c, rec := historyContext(t, "/api/history?limit=9999&offset=-3")

	require.NoError(t, h.HandleHistoryList(c))

	var resp struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 20, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
}

func TestHandleHistoryDetail(t *testing.T) {
	h, store := newHistoryHandler(t)
	gen := seedGeneration(t, store, "gamma")

	c, rec := historyContext(t, "/api/history/"+gen.ID.String())
	c.SetParamNames("id")
	c.SetParamValues(gen.ID.String())

	require.NoError(t, h.HandleHistoryDetail(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var loaded models.SlideshowGeneration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.Equal(t, gen.ID, loaded.ID)

	slideshows, err := loaded.DecodeSlideshows()
	require.NoError(t, err)
	require.Len(t, slideshows, 1)
	assert.Equal(t, "gamma", slideshows[0].Theme)
}

func TestHandleHistoryDetail_InvalidID(t *testing.T) {
	h, _ := newHistoryHandler(t)

	c, _ := historyContext(t, "/api/history/not-a-uuid")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.HandleHistoryDetail(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestHandleHistoryDetail_NotFound(t *testing.T) {
	h, _ := newHistoryHandler(t)

	missing := uuid.New().String()
	c, _ := historyContext(t, "/api/history/"+missing)
	c.SetParamNames("id")
	c.SetParamValues(missing)

	err := h.HandleHistoryDetail(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestHandleHistoryDetailMsgpack(t *testing.T) {
	h, store := newHistoryHandler(t)
	gen := seedGeneration(t, store, "delta")

	c, rec := historyContext(t, "/api/history/"+gen.ID.String()+"/msgpack")
	c.SetParamNames("id")
	c.SetParamValues(gen.ID.String())

	require.NoError(t, h.HandleHistoryDetailMsgpack(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var loaded models.SlideshowGeneration
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.Equal(t, gen.ID, loaded.ID)
}

func TestHandleHistory_NoStoreConfigured(t *testing.T) {
	h := NewHandler(testutil.NewMockStorage(), nil, nil, nil, nil, 4)

	c, _ := historyContext(t, "/api/history")

	err := h.HandleHistoryList(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}
