// Package ui provides the terminal user interface for the VPN client.
// This file contains icon generation for the system tray.
package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/yllada/vpn-client/common"
)

// iconConfig defines the palette for one tray icon state.
type iconConfig struct {
	size          int
	fillColor     color.RGBA
	borderColor   color.RGBA
	accentColor   color.RGBA
	symbolColor   color.RGBA
	showCheckmark bool
}

func connectedIconConfig() iconConfig {
	return iconConfig{
		size:          22,
		fillColor:     color.RGBA{56, 142, 60, 255},
		borderColor:   color.RGBA{76, 175, 80, 255},
		accentColor:   color.RGBA{200, 230, 201, 255},
		symbolColor:   color.RGBA{255, 255, 255, 255},
		showCheckmark: true,
	}
}

func disconnectedIconConfig() iconConfig {
	return iconConfig{
		size:        22,
		fillColor:   color.RGBA{117, 117, 117, 255},
		borderColor: color.RGBA{158, 158, 158, 255},
		accentColor: color.RGBA{189, 189, 189, 255},
		symbolColor: color.RGBA{255, 255, 255, 255},
	}
}

func errorIconConfig() iconConfig {
	return iconConfig{
		size:        22,
		fillColor:   color.RGBA{183, 28, 28, 255},
		borderColor: color.RGBA{224, 27, 36, 255},
		accentColor: color.RGBA{255, 205, 210, 255},
		symbolColor: color.RGBA{255, 255, 255, 255},
	}
}

// IconCache generates and caches the PNG tray icons per connection
// status. It is handed to the tray indicator explicitly so tests can
// inspect it and so no package-level state survives the tray.
type IconCache struct {
	mu    sync.Mutex
	icons map[common.ConnectionStatus][]byte
}

// NewIconCache creates an empty icon cache.
func NewIconCache() *IconCache {
	return &IconCache{icons: map[common.ConnectionStatus][]byte{}}
}

// IconFor returns the PNG tray icon for a connection status. Icons are
// generated once and cached.
func (c *IconCache) IconFor(status common.ConnectionStatus) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if icon, ok := c.icons[status]; ok {
		return icon
	}

	var cfg iconConfig
	switch status {
	case common.StatusConnected:
		cfg = connectedIconConfig()
	case common.StatusError:
		cfg = errorIconConfig()
	default:
		cfg = disconnectedIconConfig()
	}

	icon := generateIcon(cfg)
	c.icons[status] = icon
	return icon
}

// generateIcon renders a shield with either a checkmark (connected) or a
// lock symbol.
func generateIcon(cfg iconConfig) []byte {
	img := image.NewRGBA(image.Rect(0, 0, cfg.size, cfg.size))

	drawShield(img, cfg)
	if cfg.showCheckmark {
		drawCheckmark(img, cfg)
	} else {
		drawLock(img, cfg)
	}

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func drawShield(img *image.RGBA, cfg iconConfig) {
	size := cfg.size
	centerX := float64(size) / 2
	topY := 1.0
	bottomY := float64(size) - 2
	shieldWidth := float64(size) - 4

	isInShield := func(x, y float64) bool {
		relY := (y - topY) / (bottomY - topY)
		if relY < 0 || relY > 1 {
			return false
		}

		var halfWidth float64
		if relY < 0.5 {
			halfWidth = shieldWidth/2 - relY*0.5
		} else {
			progress := (relY - 0.5) * 2
			halfWidth = (shieldWidth/2 - 0.25) * (1 - progress*progress)
		}

		return x >= centerX-halfWidth && x <= centerX+halfWidth
	}

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			if !isInShield(fx, fy) {
				continue
			}

			isBorder := !isInShield(fx-1, fy) || !isInShield(fx+1, fy) ||
				!isInShield(fx, fy-1) || !isInShield(fx, fy+1)

			switch {
			case isBorder:
				img.Set(x, y, cfg.borderColor)
			case float64(y)/float64(size) < 0.3:
				img.Set(x, y, cfg.accentColor)
			default:
				img.Set(x, y, cfg.fillColor)
			}
		}
	}
}

func drawCheckmark(img *image.RGBA, cfg iconConfig) {
	points := []struct{ x, y int }{
		{6, 11}, {7, 11}, {7, 12}, {8, 12}, {8, 13}, {9, 13},
		{9, 12}, {10, 12}, {10, 11}, {11, 11}, {11, 10}, {12, 10},
		{12, 9}, {13, 9}, {13, 8}, {14, 8},
	}
	for _, p := range points {
		if p.x >= 0 && p.x < cfg.size && p.y >= 0 && p.y < cfg.size {
			img.Set(p.x, p.y, cfg.symbolColor)
		}
	}
}

func drawLock(img *image.RGBA, cfg iconConfig) {
	c := cfg.symbolColor

	// Lock body
	for y := 10; y <= 15; y++ {
		for x := 8; x <= 14; x++ {
			if y == 10 || y == 15 || x == 8 || x == 14 {
				img.Set(x, y, c)
			}
		}
	}

	// Lock shackle
	for y := 6; y <= 10; y++ {
		if y <= 8 {
			img.Set(9, y, c)
			img.Set(13, y, c)
		}
		if y == 6 {
			for x := 9; x <= 13; x++ {
				img.Set(x, y, c)
			}
		}
	}
}
