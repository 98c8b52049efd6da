package block

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png" // декодер текстур
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogFile - формат YAML-файла каталога блоков
type CatalogFile struct {
	Blocks []BlockDef `yaml:"blocks"`
}

// BlockDef - описание одного блока в каталоге
type BlockDef struct {
	ID         ID     `yaml:"id"`
	Name       string `yaml:"name"`
	Solid      bool   `yaml:"solid"`
	Brightness int    `yaml:"brightness"`
	Opacity    int    `yaml:"opacity"`
	Color      string `yaml:"color,omitempty"`   // "#rrggbb" или "#rrggbbaa"
	Texture    string `yaml:"texture,omitempty"` // PNG относительно файла каталога
	Invisible  bool   `yaml:"invisible,omitempty"`
}

// LoadCatalog читает каталог блоков из YAML файла
func LoadCatalog(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data, filepath.Dir(path))
}

// ParseCatalog разбирает YAML каталога. Пути текстур считаются относительно baseDir.
func ParseCatalog(data []byte, baseDir string) (*Registry, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("blocks catalog: %w", err)
	}

	types := make([]BlockType, 0, len(file.Blocks))
	for _, def := range file.Blocks {
		appearance, err := def.appearance(baseDir)
		if err != nil {
			return nil, fmt.Errorf("blocks catalog: block %q: %w", def.Name, err)
		}
		types = append(types, BlockType{
			ID:         def.ID,
			Name:       def.Name,
			Solid:      def.Solid,
			Brightness: def.Brightness,
			Opacity:    def.Opacity,
			Appearance: appearance,
		})
	}

	reg, err := NewRegistry(types...)
	if err != nil {
		return nil, fmt.Errorf("blocks catalog: %w", err)
	}
	return reg, nil
}

func (d BlockDef) appearance(baseDir string) ([]image.Image, error) {
	switch {
	case d.Invisible:
		return nil, nil
	case d.Texture != "":
		f, err := os.Open(filepath.Join(baseDir, d.Texture))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("texture %s: %w", d.Texture, err)
		}
		return LitVariants(img), nil
	case d.Color != "":
		c, err := ParseHexColor(d.Color)
		if err != nil {
			return nil, err
		}
		return LitVariants(SolidTexture(c, DefaultTextureSize)), nil
	default:
		return nil, nil
	}
}

// ParseHexColor разбирает цвет вида "#rrggbb" или "#rrggbbaa"
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
