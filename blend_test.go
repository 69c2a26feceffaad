package geoinfer

import (
	"math"
	"testing"
)

type memWriter struct {
	width  int
	height int
	data   []byte
	writes []uint8
}

func newMemWriter(width, height int) *memWriter {
	m := &memWriter{
		width:  width,
		height: height,
		data:   make([]byte, width*height),
		writes: make([]uint8, width*height),
	}
	for i := range m.data {
		m.data[i] = MosaicNoData
	}
	return m
}

func (m *memWriter) WriteRegion(col, row, width, height int, data []byte) error {
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			m.data[(row+r)*m.width+col+c] = data[r*width+c]
			m.writes[(row+r)*m.width+col+c]++
		}
	}
	return nil
}

// 一窗一平面的one-hot得分：像素值即类别
func oneHotScores(values []byte, w Window, classes int) []float32 {
	plane := w.Height * w.Width
	scores := make([]float32, classes*plane)
	for i, v := range values {
		scores[int(v)*plane+i] = 1
	}
	return scores
}

func windowValues(full []byte, width int, w Window) []byte {
	out := make([]byte, w.Height*w.Width)
	for r := 0; r < w.Height; r++ {
		copy(out[r*w.Width:], full[(w.Row+r)*width+w.Col:(w.Row+r)*width+w.Col+w.Width])
	}
	return out
}

func synthMask(width, height, classes int) []byte {
	full := make([]byte, width*height)
	for i := range full {
		full[i] = byte((i*31 + i/width*7) % classes)
	}
	return full
}

func TestHannProfiles(t *testing.T) {
	const size = 64
	ps := hannProfiles(size)
	first, center, last := ps[0], ps[1], ps[2]
	step := size >> 1
	if center[step] != 1 {
		t.Fatalf("hann peak %f != 1", center[step])
	}
	if center[0] != 0 {
		t.Fatalf("periodic hann must start at 0, got %f", center[0])
	}
	for i := 0; i < step; i++ {
		if first[i] != 1 {
			t.Fatalf("leading-flat profile not flat at %d", i)
		}
		if last[step+i] != 1 {
			t.Fatalf("trailing-flat profile not flat at %d", step+i)
		}
	}
	for i := step; i < size; i++ {
		if first[i] != center[i] {
			t.Fatal("leading-flat profile trailing half differs from hann")
		}
	}
	for i := 0; i < size; i++ {
		if center[i] < 0 || center[i] > 1 {
			t.Fatalf("hann out of range at %d: %f", i, center[i])
		}
	}
}

func runAccumulator(t *testing.T, policy BlendPolicy, width, height, tileSize, overlap, classes int,
	full []byte, skip map[int]bool) *memWriter {
	t.Helper()
	windows, err := planWindows(width, height, tileSize, overlap)
	if err != nil {
		t.Fatal(err)
	}
	out := newMemWriter(width, height)
	acc := newBlendAccumulator(policy, width, height, classes, tileSize, overlap, out)
	for i, w := range windows {
		if skip[i] {
			if err = acc.fillNoData(w); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err = acc.merge(w, oneHotScores(windowValues(full, width, w), w, classes)); err != nil {
			t.Fatal(err)
		}
	}
	if err = acc.finish(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDiscardAccumulatorRoundTrip(t *testing.T) {
	const width, height, classes = 100, 90, 40
	full := synthMask(width, height, classes)
	out := runAccumulator(t, BlendDiscardMargin, width, height, 32, 8, classes, full, nil)
	for i := range full {
		if out.data[i] != full[i] {
			t.Fatalf("pixel %d: got %d want %d", i, out.data[i], full[i])
		}
	}
	for i, n := range out.writes {
		if n != 1 {
			t.Fatalf("pixel %d written %d times", i, n)
		}
	}
}

func TestWeightedAccumulatorRoundTrip(t *testing.T) {
	const width, height, classes = 100, 90, 40
	full := synthMask(width, height, classes)
	out := runAccumulator(t, BlendWeightedAverage, width, height, 32, 8, classes, full, nil)
	for i := range full {
		if out.data[i] != full[i] {
			t.Fatalf("pixel %d: got %d want %d", i, out.data[i], full[i])
		}
	}
}

func TestWeightedAccumulatorZeroOverlap(t *testing.T) {
	const width, height, classes = 100, 90, 40
	full := synthMask(width, height, classes)
	out := runAccumulator(t, BlendWeightedAverage, width, height, 32, 0, classes, full, nil)
	for i := range full {
		if out.data[i] != full[i] {
			t.Fatalf("pixel %d: got %d want %d", i, out.data[i], full[i])
		}
	}
}

func TestAccumulatorSkippedCore(t *testing.T) {
	const width, height, classes = 100, 90, 40
	full := synthMask(width, height, classes)
	for _, policy := range []BlendPolicy{BlendDiscardMargin, BlendWeightedAverage} {
		windows, err := planWindows(width, height, 32, 8)
		if err != nil {
			t.Fatal(err)
		}
		// 跳过第二行第二列的窗口
		skipIdx := -1
		for i, w := range windows {
			if w.Row == 24 && w.Col == 24 {
				skipIdx = i
				break
			}
		}
		if skipIdx < 0 {
			t.Fatal("no interior window found")
		}
		core := windows[skipIdx]
		out := runAccumulator(t, policy, width, height, 32, 8, classes, full, map[int]bool{skipIdx: true})
		for r := 0; r < height; r++ {
			for c := 0; c < width; c++ {
				inCore := r >= core.CoreRow && r < core.CoreRow+core.CoreHeight &&
					c >= core.CoreCol && c < core.CoreCol+core.CoreWidth
				got := out.data[r*width+c]
				if inCore && got != MosaicNoData {
					t.Fatalf("policy %d: skipped core pixel (%d,%d) = %d", policy, r, c, got)
				}
				if !inCore && got != full[r*width+c] {
					t.Fatalf("policy %d: pixel (%d,%d) corrupted", policy, r, c)
				}
			}
		}
	}
}

func TestSoftmax(t *testing.T) {
	scores := []float32{1, 3, 2} // 单像素三类
	probs := make([]float32, 3)
	softmax(scores, probs, 0, 1)
	var total float32
	for _, p := range probs {
		total += p
	}
	if math.Abs(float64(total-1)) > 1e-5 {
		t.Fatalf("softmax sum %f != 1", total)
	}
	if !(probs[1] > probs[2] && probs[2] > probs[0]) {
		t.Fatalf("softmax order broken: %v", probs)
	}
}
