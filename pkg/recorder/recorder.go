// Package recorder builds a motion-JPEG AVI file from a stream of decoded
// camera frames.
package recorder

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/icza/mjpeg"
)

// Recorder wraps an AVI writer, JPEG-encoding each incoming RGB frame
// before appending it.
type Recorder struct {
	width  int
	height int

	aw      mjpeg.AviWriter
	frames  int
	quality int
}

// New opens path for writing and prepares to accept width*height RGB
// frames at fps frames per second. quality is the JPEG encode quality
// (1-100); 0 selects jpeg's default.
func New(path string, width, height, fps, quality int) (*Recorder, error) {
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, err
	}
	if quality <= 0 {
		quality = jpeg.DefaultQuality
	}
	return &Recorder{width: width, height: height, aw: aw, quality: quality}, nil
}

// AddRGB JPEG-encodes an interleaved width*height*3 RGB frame and appends
// it to the AVI.
func (r *Recorder) AddRGB(rgb []byte) error {
	img := &image.RGBA{
		Pix:    expandToRGBA(rgb, r.width*r.height),
		Stride: r.width * 4,
		Rect:   image.Rect(0, 0, r.width, r.height),
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return err
	}
	if err := r.aw.AddFrame(buf.Bytes()); err != nil {
		return err
	}
	r.frames++
	return nil
}

// FrameCount reports how many frames have been written so far.
func (r *Recorder) FrameCount() int { return r.frames }

// Close finalizes the AVI file.
func (r *Recorder) Close() error { return r.aw.Close() }

// expandToRGBA widens an interleaved RGB buffer into RGBA with full alpha,
// the pixel layout image.RGBA requires.
func expandToRGBA(rgb []byte, pixels int) []byte {
	out := make([]byte, pixels*4)
	for i := 0; i < pixels; i++ {
		out[i*4+0] = rgb[i*3+0]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = 0xff
	}
	return out
}
