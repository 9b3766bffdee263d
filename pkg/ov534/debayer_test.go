package ov534

import "testing"

const (
	testWidth  = 8
	testHeight = 8
)

func constantBayer(v byte) []byte {
	buf := make([]byte, testWidth*testHeight)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestDebayerGrayConstantInput(t *testing.T) {
	const v = 0x55
	in := constantBayer(v)
	out := make([]byte, testWidth*testHeight)

	debayerGray(testWidth, testHeight, in, out)

	expected := toGray(v, v, v)
	for i, b := range out {
		if b != expected {
			t.Fatalf("out[%d] = %#x, want %#x (constant-input round trip)", i, b, expected)
		}
	}
}

func TestDebayerRGBConstantInput(t *testing.T) {
	const v = 0x7f
	in := constantBayer(v)
	out := make([]byte, testWidth*testHeight*3)

	debayerRGB(testWidth, testHeight, in, out, false)

	for i := 0; i < testWidth*testHeight; i++ {
		r, g, b := out[i*3], out[i*3+1], out[i*3+2]
		if r != v || g != v || b != v {
			t.Fatalf("pixel %d = (%d,%d,%d), want (%d,%d,%d)", i, r, g, b, v, v, v)
		}
	}
}

func TestDebayerRGBBGRChannelSwap(t *testing.T) {
	// A constant input can't distinguish channel order, so feed a Bayer
	// image whose samples all differ and verify that BGR and RGB outputs
	// are mirror images of each other in the R/B channel slots.
	in := make([]byte, testWidth*testHeight)
	for i := range in {
		in[i] = byte(i * 3)
	}
	rgbOut := make([]byte, testWidth*testHeight*3)
	bgrOut := make([]byte, testWidth*testHeight*3)

	debayerRGB(testWidth, testHeight, in, rgbOut, false)
	debayerRGB(testWidth, testHeight, in, bgrOut, true)

	for i := 0; i < testWidth*testHeight; i++ {
		if rgbOut[i*3+0] != bgrOut[i*3+2] || rgbOut[i*3+2] != bgrOut[i*3+0] {
			t.Fatalf("pixel %d: R/B channels not swapped between RGB and BGR output", i)
		}
		if rgbOut[i*3+1] != bgrOut[i*3+1] {
			t.Fatalf("pixel %d: G channel differs between RGB and BGR output", i)
		}
	}
}
