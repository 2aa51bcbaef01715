package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"screenlens/config"
	"screenlens/handlers"
	"screenlens/models"
	"screenlens/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testDefaultModel = "claude-sonnet-4-20250514"

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Project{},
		&models.Screen{},
		&models.ScreenDescription{},
		&models.Conversation{},
		&models.ChatMessage{},
		&models.Settings{},
	))
	return db
}

// fakeProvider replays scripted event sequences, one per Query call, and
// records the requests it saw.
type fakeProvider struct {
	mu       sync.Mutex
	scripts  [][]services.AgentEvent
	requests []services.QueryRequest
}

func (f *fakeProvider) script(events ...services.AgentEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, events)
}

func (f *fakeProvider) calls() []services.QueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.QueryRequest(nil), f.requests...)
}

func (f *fakeProvider) Query(ctx context.Context, req services.QueryRequest) (<-chan services.AgentEvent, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var events []services.AgentEvent
	if len(f.scripts) > 0 {
		events = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	f.mu.Unlock()

	ch := make(chan services.AgentEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) SupportedModels() []services.ModelOption {
	return []services.ModelOption{
		{Value: testDefaultModel, DisplayName: "Claude Sonnet 4"},
	}
}

func (f *fakeProvider) AccountInfo(ctx context.Context) (map[string]any, error) {
	return map[string]any{"model": testDefaultModel, "apiKeySource": "none"}, nil
}

func newTestRouter(t *testing.T, db *gorm.DB, provider services.ModelProvider) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		DefaultModel: testDefaultModel,
		BodyLimit:    15 << 20,
	}
	return handlers.Router(cfg, db, provider)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createTestProject(t *testing.T, r *gin.Engine, name string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/projects", gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code)
	return decodeBody(t, w)["id"].(string)
}
