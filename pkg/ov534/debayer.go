package ov534

// The sensor outputs GRBG Bayer data:
//
//	G R G R G R
//	B G B G B G
//	G R G R G R
//	B G B G B G
//
// i.e. the standard Bayer pattern shifted one pixel left. debayerGray and
// debayerRGB walk the interior of the image (rows/columns 1..N-2) filling
// destination pixels from their surrounding samples, then copy the first
// and last row/column from their neighbors.

func avg2(a, b uint32) uint32       { return (a + b + 1) >> 1 }
func avg4(a, b, c, d uint32) uint32 { return (a + b + c + d + 2) >> 2 }

func toGray(r, g, b uint32) uint8 {
	return uint8((r*77 + g*151 + b*28) >> 8)
}

// debayerGray converts width*height Bayer bytes to a width*height
// grayscale image.
func debayerGray(width, height int, in, out []byte) {
	stride := width

	for y := 0; y < height-2; y++ {
		srcRow := y * stride
		dstRow := (y+1)*stride + 1

		x := 0
		if y%2 == 0 {
			s := srcRow
			B := avg2(u32(in[s+stride]), u32(in[s+stride+2]))
			G := u32(in[s+stride+1])
			R := avg2(u32(in[s+1]), u32(in[s+stride*2+1]))
			out[dstRow] = toGray(R, G, B)
			x = 1
			d := dstRow + 1
			s = srcRow + 1
			for ; x <= width-4; x, s, d = x+2, s+2, d+2 {
				B = u32(in[s+stride+1])
				G = avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1]))
				R = avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2]))
				out[d] = toGray(R, G, B)

				B = avg2(u32(in[s+stride+1]), u32(in[s+stride+3]))
				G = u32(in[s+stride+2])
				R = avg2(u32(in[s+2]), u32(in[s+stride*2+2]))
				out[d+1] = toGray(R, G, B)
			}
			if x <= width-3 {
				s = srcRow + x
				d = dstRow + x
				B = u32(in[s+stride+1])
				G = avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1]))
				R = avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2]))
				out[d] = toGray(R, G, B)
			}
		} else {
			s := srcRow
			d := dstRow
			for ; x <= width-4; x, s, d = x+2, s+2, d+2 {
				B := avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2]))
				G := avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1]))
				R := u32(in[s+stride+1])
				out[d] = toGray(R, G, B)

				B = avg2(u32(in[s+2]), u32(in[s+stride*2+2]))
				G = u32(in[s+stride+2])
				R = avg2(u32(in[s+stride+1]), u32(in[s+stride+3]))
				out[d+1] = toGray(R, G, B)
			}
			if x <= width-3 {
				s = srcRow + x
				d = dstRow + x
				B := avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2]))
				G := avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1]))
				R := u32(in[s+stride+1])
				out[d] = toGray(R, G, B)
			}
		}

		out[dstRow-1] = out[dstRow]
		out[dstRow+(width-2)] = out[dstRow+(width-3)]
	}

	copy(out[0:stride], out[stride:2*stride])
	copy(out[(height-1)*stride:height*stride], out[(height-2)*stride:(height-1)*stride])
}

// debayerRGB converts width*height Bayer bytes to an interleaved 3-channel
// image. inBGR selects BGR channel order; false selects RGB — the two
// differ only by a +-1 channel-offset sign flip applied to every R/B
// write.
func debayerRGB(width, height int, in, out []byte, inBGR bool) {
	const channels = 3
	stride := width
	dstStride := width * channels

	swap := -1
	if inBGR {
		swap = 1
	}

	for y := 0; y < height-2; y++ {
		srcRow := y * stride
		dstRow := (y+1)*dstStride + channels + 1

		x := 0
		if y%2 == 0 {
			s := srcRow
			d := dstRow
			out[d-swap] = byte(avg2(u32(in[s+stride]), u32(in[s+stride+2])))
			out[d] = in[s+stride+1]
			out[d+swap] = byte(avg2(u32(in[s+1]), u32(in[s+stride*2+1])))

			x = 1
			s = srcRow + 1
			d = dstRow + channels

			for ; x <= width-4; x, s, d = x+2, s+2, d+2*channels {
				out[d-swap] = in[s+stride+1]
				out[d] = byte(avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1])))
				out[d+swap] = byte(avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2])))

				nd := d + channels
				out[nd-swap] = byte(avg2(u32(in[s+stride+1]), u32(in[s+stride+3])))
				out[nd] = in[s+stride+2]
				out[nd+swap] = byte(avg2(u32(in[s+2]), u32(in[s+stride*2+2])))
			}
			if x <= width-3 {
				s = srcRow + x
				d = dstRow + x*channels
				out[d-swap] = in[s+stride+1]
				out[d] = byte(avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1])))
				out[d+swap] = byte(avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2])))
			}
		} else {
			s := srcRow
			d := dstRow

			for ; x <= width-4; x, s, d = x+2, s+2, d+2*channels {
				out[d-swap] = byte(avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2])))
				out[d] = byte(avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1])))
				out[d+swap] = in[s+stride+1]

				nd := d + channels
				out[nd-swap] = byte(avg2(u32(in[s+2]), u32(in[s+stride*2+2])))
				out[nd] = in[s+stride+2]
				out[nd+swap] = byte(avg2(u32(in[s+stride+1]), u32(in[s+stride+3])))
			}
			if x <= width-3 {
				s = srcRow + x
				d = dstRow + x*channels
				out[d-swap] = byte(avg4(u32(in[s]), u32(in[s+2]), u32(in[s+stride*2]), u32(in[s+stride*2+2])))
				out[d] = byte(avg4(u32(in[s+1]), u32(in[s+stride]), u32(in[s+stride+2]), u32(in[s+stride*2+1])))
				out[d+swap] = in[s+stride+1]
			}
		}

		firstPixel := dstRow - channels
		out[firstPixel-swap] = out[dstRow-swap]
		out[firstPixel] = out[dstRow]
		out[firstPixel+swap] = out[dstRow+swap]

		lastPixel := dstRow + (width-2)*channels
		secondToLast := lastPixel - channels
		out[lastPixel-swap] = out[secondToLast-swap]
		out[lastPixel] = out[secondToLast]
		out[lastPixel+swap] = out[secondToLast+swap]
	}

	copy(out[0:dstStride], out[dstStride:2*dstStride])
	copy(out[(height-1)*dstStride:height*dstStride], out[(height-2)*dstStride:(height-1)*dstStride])
}

func u32(b byte) uint32 { return uint32(b) }
