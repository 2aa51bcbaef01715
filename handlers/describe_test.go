package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenlens/models"
	"screenlens/services"
)

func describeBody(mime string) gin.H {
	return gin.H{"imageBase64": "aGVsbG8=", "imageMimeType": mime}
}

func TestDescribeRejectsUnsupportedMime(t *testing.T) {
	provider := &fakeProvider{}
	r := newTestRouter(t, setupDB(t), provider)

	for _, mime := range []string{"image/bmp", "image/tiff", "text/plain", "application/pdf"} {
		w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody(mime))
		assert.Equal(t, http.StatusBadRequest, w.Code, mime)
	}
	assert.Empty(t, provider.calls(), "unsupported types must not reach the model")
}

func TestDescribeAcceptsSupportedMimes(t *testing.T) {
	provider := &fakeProvider{}
	r := newTestRouter(t, setupDB(t), provider)

	for _, mime := range []string{"image/png", "image/jpeg", "image/webp", "image/gif"} {
		provider.script(services.AgentEvent{Kind: services.EventResult, Result: "ok"})
		w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody(mime))
		assert.Equal(t, http.StatusCreated, w.Code, mime)
	}
	assert.Len(t, provider.calls(), 4)
}

func TestDescribeTerminalResultWinsOverDeltas(t *testing.T) {
	db := setupDB(t)
	provider := &fakeProvider{}
	provider.script(
		services.AgentEvent{Kind: services.EventTextDelta, Text: "X"},
		services.AgentEvent{Kind: services.EventResult, Result: "Y"},
	)
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody("image/png"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Y", decodeBody(t, w)["description"])

	var record models.ScreenDescription
	require.NoError(t, db.First(&record).Error)
	assert.Equal(t, "Y", record.Description)
	assert.Equal(t, testDefaultModel, record.Model)
	assert.Len(t, record.ImageSha256, 64)
}

func TestDescribeDeltasUsedWithoutTerminalResult(t *testing.T) {
	provider := &fakeProvider{}
	provider.script(
		services.AgentEvent{Kind: services.EventTextDelta, Text: "part "},
		services.AgentEvent{Kind: services.EventTextDelta, Text: "two"},
	)
	r := newTestRouter(t, setupDB(t), provider)

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody("image/png"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "part two", decodeBody(t, w)["description"])
}

func TestDescribeUpstreamErrorTextIsNotADescription(t *testing.T) {
	db := setupDB(t)
	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventResult, Result: "API Error: rate limited"})
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody("image/png"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var count int64
	db.Model(&models.ScreenDescription{}).Count(&count)
	assert.Equal(t, int64(0), count, "no audit row for unusable output")
}

func TestDescribeRetriesWithDefaultModel(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.Settings{
		ID:    models.SettingsID,
		Model: "claude-opus-4-20250514",
		Theme: models.ThemeSystem,
	}).Error)

	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventError, Err: "Could not process image attachment"})
	provider.script(services.AgentEvent{Kind: services.EventResult, Result: "fallback description"})
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody("image/png"))
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "fallback description", body["description"])
	assert.Equal(t, testDefaultModel, body["model"])

	calls := provider.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "claude-opus-4-20250514", calls[0].Model)
	assert.Equal(t, testDefaultModel, calls[1].Model)
}

func TestDescribeNoRetryWhenAlreadyDefaultModel(t *testing.T) {
	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventError, Err: "could not process image"})
	r := newTestRouter(t, setupDB(t), provider)

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody("image/png"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Len(t, provider.calls(), 1)
}

func TestDescribeNoRetryForUnrelatedFailure(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.Settings{
		ID:    models.SettingsID,
		Model: "claude-opus-4-20250514",
		Theme: models.ThemeSystem,
	}).Error)

	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventError, Err: "overloaded"})
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody("image/png"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Len(t, provider.calls(), 1)
}

func TestDescribeKeepsPartialTextOnStreamFailure(t *testing.T) {
	provider := &fakeProvider{}
	provider.script(
		services.AgentEvent{Kind: services.EventTextDelta, Text: "partial but real"},
		services.AgentEvent{Kind: services.EventError, Err: "stream cut"},
	)
	r := newTestRouter(t, setupDB(t), provider)

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", describeBody("image/png"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "partial but real", decodeBody(t, w)["description"])
}

func TestDescribeRequiresPayload(t *testing.T) {
	r := newTestRouter(t, setupDB(t), &fakeProvider{})

	w := doJSON(t, r, http.MethodPost, "/api/screens/describe", gin.H{"imageMimeType": "image/png"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/screens/describe", gin.H{"imageBase64": "aGVsbG8="})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
