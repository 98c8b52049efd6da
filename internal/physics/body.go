// Package physics интегрирует движение тел с непрерывными координатами и
// разрешает столкновения с сеткой блоков по осям раздельно.
package physics

import (
	"math"
	"time"

	"github.com/annel0/tile-sim/internal/vec"
)

// Tuning - параметры движения тела (единицы - блоки и секунды)
type Tuning struct {
	Gravity         float64 `yaml:"gravity"`
	MaxFall         float64 `yaml:"max_fall"`
	JumpVelocity    float64 `yaml:"jump_velocity"`
	WalkAccel       float64 `yaml:"walk_accel"`
	MaxWalk         float64 `yaml:"max_walk"`
	RestingVelocity float64 `yaml:"resting_velocity"`
}

// DefaultTuning возвращает параметры игрока по умолчанию
func DefaultTuning() Tuning {
	return Tuning{
		Gravity:         5,
		MaxFall:         10,
		JumpVelocity:    -4.5,
		WalkAccel:       6,
		MaxWalk:         6,
		RestingVelocity: 0.01,
	}
}

// Intent - управляющие намерения тела на текущий тик
type Intent struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Jump  bool `json:"jump"`
}

// Body - прямоугольное тело на карте. Pos - левый верхний угол.
// После каждого Step прямоугольник тела не пересекает твёрдых блоков.
type Body struct {
	Pos     vec.Vec2Float
	Vel     vec.Vec2Float
	Size    vec.Vec2Float
	Falling bool
	Tuning  Tuning
	Intent  Intent
}

// NewBody создаёт тело в воздухе с нулевой скоростью
func NewBody(pos, size vec.Vec2Float, tuning Tuning) *Body {
	return &Body{
		Pos:     pos,
		Size:    size,
		Falling: true,
		Tuning:  tuning,
	}
}

// Rect возвращает прямоугольник тела
func (b *Body) Rect() vec.Rect {
	return vec.NewRect(b.Pos, b.Size)
}

// StepResult описывает столкновения за шаг
type StepResult struct {
	BlockedX bool
	BlockedY bool
	Landed   bool // тело коснулось опоры на этом шаге
}

// Step продвигает тело на dt: применяет силы, затем перемещает его подшагами
// и корректирует положение по сетке при столкновении.
func (b *Body) Step(dt time.Duration, c Collider) StepResult {
	secs := dt.Seconds()
	if secs <= 0 {
		return StepResult{}
	}
	b.applyForces(secs)

	dispX := b.Vel.X * secs
	dispY := b.Vel.Y * secs
	n := math.Max(1, math.Max(math.Ceil(math.Abs(dispX)/MaxSubstep), math.Ceil(math.Abs(dispY)/MaxSubstep)))
	sx, sy := dispX/n, dispY/n

	var res StepResult
	for i := 0; i < int(n) && (sx != 0 || sy != 0); i++ {
		bx, by := b.substep(sx, sy, c)
		if bx {
			res.BlockedX = true
			sx = 0
		}
		if by {
			res.BlockedY = true
			sy = 0
		}
	}

	switch {
	case dispY > 0 && !res.BlockedY:
		b.Falling = true
	case dispY > 0 && res.BlockedY:
		res.Landed = b.Falling
		b.Falling = false
		b.Vel.Y = b.Tuning.RestingVelocity
	case dispY < 0 && res.BlockedY:
		// удар головой
		b.Vel.Y = 0
	}
	if res.BlockedX {
		b.Vel.X = 0
	}
	return res
}

// applyForces обновляет скорость по гравитации, прыжку и ходьбе
func (b *Body) applyForces(secs float64) {
	t := b.Tuning

	if b.Falling {
		b.Vel.Y += t.Gravity * secs
		if b.Vel.Y > t.MaxFall {
			b.Vel.Y = t.MaxFall
		}
	} else {
		// небольшая скорость вниз, чтобы заметить потерю опоры
		b.Vel.Y = t.RestingVelocity
	}

	if !b.Falling && b.Intent.Jump {
		b.Vel.Y = t.JumpVelocity
		b.Falling = true
	}

	switch {
	case b.Intent.Right && !b.Intent.Left:
		b.Vel.X += t.WalkAccel * secs
		if math.Abs(b.Vel.X) > t.MaxWalk {
			b.Vel.X = t.MaxWalk
		}
	case b.Intent.Left && !b.Intent.Right:
		b.Vel.X -= t.WalkAccel * secs
		if math.Abs(b.Vel.X) > t.MaxWalk {
			b.Vel.X = -t.MaxWalk
		}
	default:
		b.Vel.X = 0
	}
}

// substep выполняет один подшаг. Приоритет: полное перемещение, затем только
// по x, затем только по y. Заблокированная ось прижимается к сетке.
func (b *Body) substep(sx, sy float64, c Collider) (blockedX, blockedY bool) {
	x, y := b.Pos.X, b.Pos.Y

	if free(c, x+sx, y+sy, b.Size) {
		b.Pos = vec.Vec2Float{X: x + sx, Y: y + sy}
		return false, false
	}
	if free(c, x+sx, y, b.Size) {
		b.Pos.X = x + sx
		b.Pos.Y = sweepY(c, b.Pos.X, y, sy, b.Size)
		return false, true
	}
	if free(c, x, y+sy, b.Size) {
		b.Pos.Y = y + sy
		b.Pos.X = sweepX(c, x, b.Pos.Y, sx, b.Size)
		return true, false
	}

	b.Pos.X = sweepX(c, x, y, sx, b.Size)
	b.Pos.Y = sweepY(c, b.Pos.X, y, sy, b.Size)
	return true, true
}
