package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/annel0/tile-sim/internal/entity"
	"github.com/annel0/tile-sim/internal/physics"
	"github.com/annel0/tile-sim/internal/render"
	"github.com/annel0/tile-sim/internal/sim"
	"github.com/annel0/tile-sim/internal/vec"
	"github.com/annel0/tile-sim/internal/world"
	"github.com/annel0/tile-sim/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BlockRef ссылается на тип блока по ID или по имени, но не по обоим сразу
type BlockRef struct {
	ID   *block.ID `json:"id"`
	Name string    `json:"name"`
}

// IntentRequest задаёт намерение движения сущности
type IntentRequest struct {
	ID   *uuid.UUID `json:"id"`
	Name string     `json:"name"`
	physics.Intent
}

// BlockInfo описывает клетку карты
type BlockInfo struct {
	X     int      `json:"x"`
	Y     int      `json:"y"`
	ID    block.ID `json:"id"`
	Name  string   `json:"name"`
	Solid bool     `json:"solid"`
	Light int      `json:"light"`
}

// LightInfo описывает освещение клетки
type LightInfo struct {
	X           int  `json:"x"`
	Y           int  `json:"y"`
	Level       int  `json:"level"`
	SunBoundary int  `json:"sun_boundary"`
	Sunlit      bool `json:"sunlit"`
}

// EditResult - результат правки блока
type EditResult struct {
	Action  string     `json:"action,omitempty"`
	Changed []vec.Vec2 `json:"changed"`
}

// EntityInfo описывает сущность
type EntityInfo struct {
	ID      uuid.UUID      `json:"id"`
	Name    string         `json:"name,omitempty"`
	Type    string         `json:"type"`
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	VX      float64        `json:"vx"`
	VY      float64        `json:"vy"`
	Width   float64        `json:"width"`
	Height  float64        `json:"height"`
	Falling bool           `json:"falling"`
	Intent  physics.Intent `json:"intent"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// cell разбирает координаты клетки из пути
func cell(c *gin.Context) (int, int, bool) {
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(c.Param("y"))
	if errX != nil || errY != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "координаты должны быть целыми числами"})
		return 0, 0, false
	}
	return x, y, true
}

func (s *Server) handleGetBlock(c *gin.Context) {
	x, y, ok := cell(c)
	if !ok {
		return
	}

	var info BlockInfo
	found := false
	err := s.sim.Do(c.Request.Context(), func() {
		g := s.sim.Grid()
		id, ok := g.GetBlock(x, y)
		if !ok {
			return
		}
		found = true
		level, _ := g.GetLight(x, y)
		info = BlockInfo{X: x, Y: y, ID: id, Light: level}
		if bt, ok := g.Registry().ByID(id); ok {
			info.Name = bt.Name
			info.Solid = bt.Solid
		}
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		s.fail(c, world.ErrOutOfBounds)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: info})
}

func (s *Server) handleSetBlock(c *gin.Context) {
	s.editBlock(c, func(ctx context.Context, x, y int, id block.ID) (string, []vec.Vec2, error) {
		changed, err := s.sim.SetBlock(ctx, x, y, id)
		return "", changed, err
	})
}

func (s *Server) handleToggleBlock(c *gin.Context) {
	s.editBlock(c, func(ctx context.Context, x, y int, id block.ID) (string, []vec.Vec2, error) {
		action, changed, err := s.sim.Toggle(ctx, x, y, id)
		return string(action), changed, err
	})
}

// editBlock разбирает запрос правки и выполняет edit в горутине симуляции
func (s *Server) editBlock(c *gin.Context, edit func(ctx context.Context, x, y int, id block.ID) (string, []vec.Vec2, error)) {
	x, y, ok := cell(c)
	if !ok {
		return
	}
	var ref BlockRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "неверный формат запроса: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	var res EditResult
	var editErr error
	err := s.sim.Do(ctx, func() {
		bt, err := s.sim.Grid().Registry().Resolve(ref.ID, ref.Name)
		if err != nil {
			editErr = err
			return
		}
		res.Action, res.Changed, editErr = edit(ctx, x, y, bt.ID)
	})
	if err == nil {
		err = editErr
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Changed == nil {
		res.Changed = []vec.Vec2{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "блок изменён", Data: res})
}

func (s *Server) handleGetLight(c *gin.Context) {
	x, y, ok := cell(c)
	if !ok {
		return
	}

	var info LightInfo
	found := false
	err := s.sim.Do(c.Request.Context(), func() {
		g := s.sim.Grid()
		level, ok := g.GetLight(x, y)
		if !ok {
			return
		}
		found = true
		boundary := g.Light().SunBoundary(x)
		info = LightInfo{X: x, Y: y, Level: level, SunBoundary: boundary, Sunlit: y <= boundary}
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if !found {
		s.fail(c, world.ErrOutOfBounds)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: info})
}

func (s *Server) handleGetEntities(c *gin.Context) {
	var list []EntityInfo
	err := s.sim.Do(c.Request.Context(), func() {
		for _, e := range s.sim.Entities().All() {
			b := e.Body
			list = append(list, EntityInfo{
				ID: e.ID, Name: e.Name, Type: e.Type.String(),
				X: b.Pos.X, Y: b.Pos.Y, VX: b.Vel.X, VY: b.Vel.Y,
				Width: b.Size.X, Height: b.Size.Y,
				Falling: b.Falling, Intent: b.Intent,
			})
		}
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []EntityInfo{}
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "список сущностей получен",
		Data:    gin.H{"entities": list, "total": len(list)},
	})
}

func (s *Server) handleSetIntent(c *gin.Context) {
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "неверный формат запроса: " + err.Error()})
		return
	}

	var id uuid.UUID
	var setErr error
	err := s.sim.Do(c.Request.Context(), func() {
		e, err := s.sim.Entities().Lookup(req.ID, req.Name)
		if err != nil {
			setErr = err
			return
		}
		id = e.ID
		setErr = s.sim.Entities().SetIntent(e.ID, req.Intent)
	})
	if err == nil {
		err = setErr
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "намерение обновлено", Data: gin.H{"id": id}})
}

// handleView рисует область карты через кэш чанков. Без x и y область
// центрируется на отслеживаемой сущности (или на центре карты).
func (s *Server) handleView(c *gin.Context) {
	w, errW := strconv.Atoi(c.DefaultQuery("w", strconv.Itoa(DefaultViewWidth)))
	h, errH := strconv.Atoi(c.DefaultQuery("h", strconv.Itoa(DefaultViewHeight)))
	if errW != nil || errH != nil || w <= 0 || h <= 0 || w > MaxViewTiles || h > MaxViewTiles {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "w и h должны быть в диапазоне 1.." + strconv.Itoa(MaxViewTiles)})
		return
	}
	var topLeft *vec.Vec2Float
	if qx, qy := c.Query("x"), c.Query("y"); qx != "" || qy != "" {
		x, errX := strconv.ParseFloat(qx, 64)
		y, errY := strconv.ParseFloat(qy, 64)
		if errX != nil || errY != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Message: "x и y должны быть числами"})
			return
		}
		topLeft = &vec.Vec2Float{X: x, Y: y}
	}

	cache := s.sim.Cache()
	if cache == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Message: "кэш отрисовки отключён"})
		return
	}
	tile := cache.TileSize()
	img := image.NewRGBA(image.Rect(0, 0, w*tile, h*tile))

	err := s.sim.Do(c.Request.Context(), func() {
		mapW, mapH := s.sim.Grid().Size()
		var at vec.Vec2Float
		if topLeft != nil {
			at = render.ClampViewport(*topLeft, float64(w), float64(h), mapW, mapH)
		} else {
			at = render.CenterViewport(s.viewCenter(mapW, mapH), float64(w), float64(h), mapW, mapH)
		}
		cache.Draw(img, at)
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// viewCenter - центр отслеживаемой сущности или центр карты
func (s *Server) viewCenter(mapW, mapH int) vec.Vec2Float {
	if s.follow != "" {
		if e, ok := s.sim.Entities().ByName(s.follow); ok {
			return e.Body.Pos.Add(e.Body.Size.Mul(0.5))
		}
	}
	return vec.Vec2Float{X: float64(mapW) / 2, Y: float64(mapH) / 2}
}

func (s *Server) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	err := s.sim.Do(c.Request.Context(), func() {
		w, h := s.sim.Grid().Size()
		simStats := map[string]interface{}{
			"tick":          s.sim.Tick(),
			"dropped_steps": s.sim.Dropped(),
			"step":          s.sim.StepDuration().String(),
			"width":         w,
			"height":        h,
			"light_radius":  s.sim.Grid().Light().Radius(),
		}
		if cache := s.sim.Cache(); cache != nil {
			simStats["cached_chunks"] = cache.Len()
		}
		stats["sim"] = simStats
		stats["entities"] = s.sim.Entities().GetStats()
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.bus != nil {
		stats["events"] = s.bus.Metrics()
	}
	stats["server"] = s.process.Snapshot()

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "статистика получена", Data: stats})
}

// fail отвечает ошибкой с кодом, соответствующим её виду
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Ошибка обработки %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, GenericResponse{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrOutOfBounds):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrOccupied):
		return http.StatusConflict
	case errors.Is(err, world.ErrUnknownBlock),
		errors.Is(err, block.ErrUnknownBlock),
		errors.Is(err, block.ErrAmbiguousRef),
		errors.Is(err, block.ErrEmptyRef),
		errors.Is(err, entity.ErrAmbiguousRef),
		errors.Is(err, entity.ErrEmptyRef):
		return http.StatusBadRequest
	case errors.Is(err, sim.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
