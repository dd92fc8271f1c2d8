package engine

import (
	"fmt"
	"os"

	"github.com/gogpu/glyphraster/font"
)

// LoadNative reads the font file a native handle points to.
func LoadNative(handle font.NativeFontHandle) ([]byte, error) {
	if handle.Path == "" {
		return nil, fmt.Errorf("engine: native font handle has no path")
	}
	data, err := os.ReadFile(handle.Path)
	if err != nil {
		return nil, fmt.Errorf("engine: load native font: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}
	return data, nil
}
