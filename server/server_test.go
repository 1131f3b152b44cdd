package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/servicefunnel/internal/profile"
	"github.com/hrygo/servicefunnel/store"
	"github.com/hrygo/servicefunnel/store/db"
)

func newDemoServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	prof := &profile.Profile{Mode: "demo", Data: t.TempDir(), Version: "test"}
	prof.FromEnv()
	prof.LLMEnabled = false
	require.NoError(t, prof.Validate())

	driver, err := db.NewDBDriver(prof)
	require.NoError(t, err)
	st := store.New(driver, prof)
	require.NoError(t, st.Migrate(ctx))

	s, err := NewServer(ctx, prof, st)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func TestServer_DetectOverHTTP(t *testing.T) {
	s := newDemoServer(t)
	assert.Nil(t, s.Components.LLM)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dialogs/d1/detect", strings.NewReader(`{"message":"лифт застрял между этажами"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Candidates []struct {
			ServiceID int32 `json:"serviceId"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Candidates)
	assert.Equal(t, int32(7), body.Candidates[0].ServiceID)
}

func TestServer_Healthz(t *testing.T) {
	s := newDemoServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewComponents_BadFeatureTable(t *testing.T) {
	prof := &profile.Profile{FeaturesPath: "/nonexistent/features.yaml"}
	_, err := NewComponents(prof, nil, nil, nil)
	assert.Error(t, err)
}
