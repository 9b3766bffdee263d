package ov534

// rateEntry is one row of a frame-rate quantization table: the bridge and
// sensor register values that produce the given FPS at a given resolution.
type rateEntry struct {
	fps      int
	r11, r0d uint8
	bridgeE5 uint8
}

// rateVGA covers 640x480. Descending FPS order is significant: lookup
// walks it looking for the first entry at or below the requested rate.
var rateVGA = []rateEntry{
	{83, 0x01, 0xc1, 0x02}, // partly corrupt video above this point
	{75, 0x01, 0x81, 0x02}, // 75 FPS or below: valid video
	{60, 0x00, 0x41, 0x04},
	{50, 0x01, 0x41, 0x02},
	{40, 0x02, 0xc1, 0x04},
	{30, 0x04, 0x81, 0x02},
	{25, 0x00, 0x01, 0x02},
	{20, 0x04, 0x41, 0x02},
	{15, 0x09, 0x81, 0x02},
	{10, 0x09, 0x41, 0x02},
	{8, 0x02, 0x01, 0x02},
	{5, 0x04, 0x01, 0x02},
	{3, 0x06, 0x01, 0x02},
	{2, 0x09, 0x01, 0x02},
}

// rateQVGA covers 320x240.
var rateQVGA = []rateEntry{
	{290, 0x00, 0xc1, 0x04},
	{205, 0x01, 0xc1, 0x02}, // partly corrupt video above this point
	{187, 0x01, 0x81, 0x02}, // 187 FPS or below: valid video
	{150, 0x00, 0x41, 0x04},
	{137, 0x02, 0xc1, 0x02},
	{125, 0x01, 0x41, 0x02},
	{100, 0x02, 0xc1, 0x04},
	{90, 0x03, 0x81, 0x02},
	{75, 0x04, 0x81, 0x02},
	{60, 0x04, 0xc1, 0x04},
	{50, 0x04, 0x41, 0x02},
	{40, 0x06, 0x81, 0x03},
	{37, 0x00, 0x01, 0x04},
	{30, 0x04, 0x41, 0x04},
	{17, 0x18, 0xc1, 0x02},
	{15, 0x18, 0x81, 0x02},
	{12, 0x02, 0x01, 0x04},
	{10, 0x18, 0x41, 0x02},
	{7, 0x04, 0x01, 0x04},
	{5, 0x06, 0x01, 0x04},
	{3, 0x09, 0x01, 0x04},
	{2, 0x18, 0x01, 0x02},
}

func rateTableFor(res Resolution) []rateEntry {
	if res == ResolutionQVGA {
		return rateQVGA
	}
	return rateVGA
}

// NormalizeFramerate quantizes a requested frame rate to the nearest table
// entry at or below it for the given resolution, falling back to the
// table's smallest entry if requested is below every entry.
func NormalizeFramerate(requested int, res Resolution) int {
	return quantizeRate(requested, res).fps
}

func quantizeRate(requested int, res Resolution) rateEntry {
	table := rateTableFor(res)
	chosen := table[len(table)-1]
	for _, e := range table {
		if requested >= e.fps {
			chosen = e
			break
		}
	}
	return chosen
}
