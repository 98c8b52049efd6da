package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/annel0/tile-sim/internal/entity"
	"github.com/annel0/tile-sim/internal/physics"
	"github.com/annel0/tile-sim/internal/render"
	"github.com/annel0/tile-sim/internal/sim"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world"
	"github.com/annel0/tile-sim/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTile = 2

// newTestServer - запущенная симуляция 10x10 с каменным полом на y=5 и
// игроком, стоящим на полу в (2,4)
func newTestServer(t *testing.T) (*Server, *sim.Simulation) {
	t.Helper()
	reg := block.Default()
	blocks := make([]block.ID, 100)
	for x := 0; x < 10; x++ {
		blocks[5*10+x] = reg.MustID(block.RockName)
	}
	g, err := world.NewGrid(reg, 10, 10, blocks, nil)
	require.NoError(t, err)
	cache, err := render.NewChunkCache(g, 4, testTile, nil)
	require.NoError(t, err)

	s, err := sim.New(g, cache, nil, sim.Options{Step: 5 * time.Millisecond, MaxCatchUpSteps: 5})
	require.NoError(t, err)
	_, err = s.Entities().Spawn(entity.SpawnOptions{
		Name:     "player",
		Type:     entity.EntityTypePlayer,
		Position: vec.Vec2Float{X: 2, Y: 4},
		Size:     vec.Vec2Float{X: 1, Y: 1},
		Tuning:   physics.DefaultTuning(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	reg2 := prometheus.NewRegistry()
	srv := NewServer(Config{Sim: s, Follow: "player", Registerer: reg2, Gatherer: reg2})
	return srv, s
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func data(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "ответ без data: %v", resp)
	return d
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, resp := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestGetBlock(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/api/blocks/0/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := data(t, resp)
	assert.Equal(t, block.RockName, d["name"])
	assert.Equal(t, true, d["solid"])

	rec, _ = do(t, srv, http.MethodGet, "/api/blocks/99/0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/api/blocks/a/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetBlock(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, http.MethodPut, "/api/blocks/7/2", `{"name":"lamp"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	changed, ok := data(t, resp)["changed"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, changed)

	_, resp = do(t, srv, http.MethodGet, "/api/blocks/7/2", "")
	assert.Equal(t, block.LampName, data(t, resp)["name"])

	rec, _ = do(t, srv, http.MethodPut, "/api/blocks/7/2", `{"id":3}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	cases := map[string]string{
		"оба поля":        `{"id":2,"name":"rock"}`,
		"пустая ссылка":   `{}`,
		"неизвестное имя": `{"name":"gold"}`,
		"неизвестный id":  `{"id":99}`,
		"битый json":      `{"id":`,
	}
	for name, body := range cases {
		rec, _ = do(t, srv, http.MethodPut, "/api/blocks/7/2", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	rec, _ = do(t, srv, http.MethodPut, "/api/blocks/70/2", `{"name":"rock"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleBlock(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, http.MethodPost, "/api/blocks/0/5/toggle", `{"name":"rock"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(sim.ActionRemoved), data(t, resp)["action"])

	rec, _ = do(t, srv, http.MethodPost, "/api/blocks/2/4/toggle", `{"name":"rock"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = do(t, srv, http.MethodPost, "/api/blocks/8/1/toggle", `{"name":"rock"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(sim.ActionPlaced), data(t, resp)["action"])
}

func TestGetLight(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/api/light/0/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := data(t, resp)
	assert.Equal(t, float64(block.MaxLight), d["level"])
	assert.Equal(t, true, d["sunlit"])
	assert.Equal(t, float64(5), d["sun_boundary"])

	_, resp = do(t, srv, http.MethodGet, "/api/light/0/7", "")
	assert.Equal(t, false, data(t, resp)["sunlit"])

	rec, _ = do(t, srv, http.MethodGet, "/api/light/0/10", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntitiesAndIntent(t *testing.T) {
	srv, s := newTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/api/entities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := data(t, resp)
	assert.Equal(t, float64(1), d["total"])
	list := d["entities"].([]interface{})
	assert.Equal(t, "player", list[0].(map[string]interface{})["name"])

	rec, _ = do(t, srv, http.MethodPut, "/api/entities/intent", `{"name":"player","right":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var intent physics.Intent
	require.NoError(t, s.Do(context.Background(), func() {
		e, _ := s.Entities().ByName("player")
		intent = e.Body.Intent
	}))
	assert.True(t, intent.Right)
	assert.False(t, intent.Left)

	rec, _ = do(t, srv, http.MethodPut, "/api/entities/intent", `{"name":"ghost","left":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv, http.MethodPut, "/api/entities/intent",
		`{"id":"`+list[0].(map[string]interface{})["id"].(string)+`","name":"player"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, srv, http.MethodPut, "/api/entities/intent", `{"jump":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestView(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, _ := do(t, srv, http.MethodGet, "/api/view.png?w=6&h=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 6*testTile, img.Bounds().Dx())
	assert.Equal(t, 4*testTile, img.Bounds().Dy())

	rec, _ = do(t, srv, http.MethodGet, "/api/view.png?w=4&h=4&x=1.5&y=2", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, q := range []string{"w=0", "h=1000", "w=abc", "x=1", "x=a&y=1"} {
		rec, _ = do(t, srv, http.MethodGet, "/api/view.png?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStatsAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := data(t, resp)
	assert.Contains(t, d, "sim")
	assert.Contains(t, d, "entities")
	assert.Contains(t, d, "server")
	assert.NotContains(t, d, "events")

	rec, _ = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tilesim_api")
}

func TestStoppedSimulation(t *testing.T) {
	reg := block.Default()
	g, err := world.NewGrid(reg, 2, 2, make([]block.ID, 4), nil)
	require.NoError(t, err)
	s, err := sim.New(g, nil, nil, sim.Options{Step: time.Millisecond, MaxCatchUpSteps: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = s.Run(ctx)

	srv := NewServer(Config{Sim: s})
	rec, _ := do(t, srv, http.MethodGet, "/api/blocks/0/0", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5с", formatUptime(5*time.Second))
	assert.Equal(t, "2м 5с", formatUptime(2*time.Minute+5*time.Second))
	assert.Equal(t, "1ч 0м 0с", formatUptime(time.Hour))
	assert.Equal(t, "1д 2ч 0м 0с", formatUptime(26*time.Hour))
}
