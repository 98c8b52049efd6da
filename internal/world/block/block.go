package block

import "image"

// MaxLight - максимальный уровень освещённости клетки
const MaxLight = 15

// ID представляет идентификатор типа блока
type ID uint16

// BlockType описывает свойства типа блока. Экземпляры создаются один раз при
// построении Registry и дальше только читаются: изменять поля после
// регистрации нельзя.
type BlockType struct {
	ID         ID     // Идентификатор типа блока
	Name       string // Уникальное имя ("air", "rock", ...)
	Solid      bool   // Блокирует движение и солнечный свет
	Brightness int    // Собственное свечение, 0..MaxLight
	Opacity    int    // Ослабление света за один шаг распространения

	// Appearance[level] - внешний вид блока при уровне освещения level.
	// nil означает, что блок не рисуется (виден фон).
	Appearance []image.Image
}

// Variant возвращает вариант внешнего вида для уровня освещения
func (bt *BlockType) Variant(level int) image.Image {
	if len(bt.Appearance) == 0 {
		return nil
	}
	if level < 0 {
		level = 0
	}
	if level >= len(bt.Appearance) {
		level = len(bt.Appearance) - 1
	}
	return bt.Appearance[level]
}

// IsEmissive возвращает true, если блок светится сам
func (bt *BlockType) IsEmissive() bool {
	return bt.Brightness > 0
}
