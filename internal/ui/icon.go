package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// iconBytes is a 16x16 PNG rendered at startup so no binary asset needs to
// ship with the agent.
var iconBytes = renderIcon()

func renderIcon() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	bg := color.RGBA{30, 30, 46, 255}
	fg := color.RGBA{243, 139, 168, 255}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	// A rough play triangle.
	for y := 4; y < 12; y++ {
		half := y
		if y >= 8 {
			half = 15 - y
		}
		for x := 5; x < 5+half; x++ {
			img.SetRGBA(x, y, fg)
		}
	}

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
