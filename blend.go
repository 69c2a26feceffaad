package geoinfer

import (
	"math"

	"github.com/wgdzlh/geoinfer/log"

	"go.uber.org/zap"
)

// 融合器：按调度顺序逐窗口吸收预测结果，写入镶嵌输出
type blendAccumulator interface {
	// scores为窗口全幅（含边缘）的类别得分平面，CHW排列
	merge(w Window, scores []float32) error
	// 失败窗口核心区置为无效值
	fillNoData(w Window) error
	finish() error
}

func newBlendAccumulator(policy BlendPolicy, width, height, classes, tileSize, overlap int, out regionWriter) blendAccumulator {
	if policy == BlendWeightedAverage {
		return newWeightedAccumulator(width, height, classes, tileSize, overlap, out)
	}
	return &discardAccumulator{
		classes: classes,
		out:     out,
	}
}

// 丢弃边缘策略：核心区互不重叠，各窗口argmax后直接落盘，无需融合运算
type discardAccumulator struct {
	classes int
	out     regionWriter
}

func (a *discardAccumulator) merge(w Window, scores []float32) error {
	var (
		plane = w.Height * w.Width
		mask  = make([]byte, w.CoreHeight*w.CoreWidth)
		offX  = w.coreOffX()
		offY  = w.coreOffY()
	)
	for r := 0; r < w.CoreHeight; r++ {
		base := (offY+r)*w.Width + offX
		for x := 0; x < w.CoreWidth; x++ {
			var (
				best  = float32(math.Inf(-1))
				label byte
			)
			for c := 0; c < a.classes; c++ {
				if s := scores[c*plane+base+x]; s > best {
					best = s
					label = byte(c)
				}
			}
			mask[r*w.CoreWidth+x] = label
		}
	}
	return a.out.WriteRegion(w.CoreCol, w.CoreRow, w.CoreWidth, w.CoreHeight, mask)
}

func (a *discardAccumulator) fillNoData(w Window) error {
	mask := make([]byte, w.CoreHeight*w.CoreWidth)
	for i := range mask {
		mask[i] = MosaicNoData
	}
	return a.out.WriteRegion(w.CoreCol, w.CoreRow, w.CoreWidth, w.CoreHeight, mask)
}

func (a *discardAccumulator) finish() error {
	return nil
}

// 加权平均策略：softmax后按Hann窗权重在窗口全幅上累加，
// 行带之外不再有窗口触及时即归一化argmax落盘，工作集始终有界
type weightedAccumulator struct {
	width   int
	height  int
	classes int
	tile    int

	// 行带缓冲首行对应的影像行号
	baseRow int
	sum     []float32 // classes × tile × width
	weight  []float32 // tile × width
	// 三种单轴权重轮廓：0前沿平坦 1中心Hann 2后沿平坦
	profiles [3][]float32
	flat     []float32

	skipped []Window
	out     regionWriter
}

func newWeightedAccumulator(width, height, classes, tileSize, overlap int, out regionWriter) *weightedAccumulator {
	a := &weightedAccumulator{
		width:   width,
		height:  height,
		classes: classes,
		tile:    tileSize,
		sum:     make([]float32, classes*tileSize*width),
		weight:  make([]float32, tileSize*width),
		flat:    make([]float32, tileSize),
		out:     out,
	}
	for i := range a.flat {
		a.flat[i] = 1
	}
	if overlap > 0 {
		a.profiles = hannProfiles(tileSize)
	} else {
		// 无重叠时窗口恰好相接，Hann前沿零权重会产生空洞，退化为等权
		a.profiles = [3][]float32{a.flat, a.flat, a.flat}
	}
	return a
}

// 周期Hann窗的三种单轴变体；二维权重为两轴轮廓外积，
// 边界侧半幅取峰值平坦延伸，角部恰为常量1
func hannProfiles(size int) (ps [3][]float32) {
	var (
		center = make([]float32, size)
		step   = size >> 1
	)
	for i := 0; i < size; i++ {
		center[i] = float32(0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size)))
	}
	first := make([]float32, size)
	last := make([]float32, size)
	copy(first, center)
	copy(last, center)
	for i := 0; i < step; i++ {
		first[i] = center[step]
	}
	for i := step; i < size; i++ {
		last[i] = center[step]
	}
	ps = [3][]float32{first, center, last}
	return
}

func (a *weightedAccumulator) profileFor(first, last bool) []float32 {
	switch {
	case first && last:
		return a.flat
	case first:
		return a.profiles[0]
	case last:
		return a.profiles[2]
	}
	return a.profiles[1]
}

func (a *weightedAccumulator) merge(w Window, scores []float32) (err error) {
	if err = a.advanceTo(w.Row); err != nil {
		return
	}
	var (
		plane = w.Height * w.Width
		probs = make([]float32, a.classes)
		vProf = a.profileFor(w.Row == 0, w.Row+w.Height == a.height)
		hProf = a.profileFor(w.Col == 0, w.Col+w.Width == a.width)
	)
	for r := 0; r < w.Height; r++ {
		var (
			row  = w.Row + r - a.baseRow
			vw   = vProf[r]
			base = row*a.width + w.Col
		)
		for x := 0; x < w.Width; x++ {
			weight := vw * hProf[x]
			softmax(scores, probs, r*w.Width+x, plane)
			for c := 0; c < a.classes; c++ {
				a.sum[c*a.tile*a.width+base+x] += probs[c] * weight
			}
			a.weight[base+x] += weight
		}
	}
	return
}

func softmax(scores, probs []float32, idx, plane int) {
	max := float32(math.Inf(-1))
	for c := range probs {
		if s := scores[c*plane+idx]; s > max {
			max = s
		}
	}
	var total float32
	for c := range probs {
		e := float32(math.Exp(float64(scores[c*plane+idx] - max)))
		probs[c] = e
		total += e
	}
	for c := range probs {
		probs[c] /= total
	}
}

func (a *weightedAccumulator) fillNoData(w Window) error {
	a.skipped = append(a.skipped, w)
	return a.advanceTo(w.Row)
}

// 新窗口行带开始前，其上方已完结的行归一化argmax并落盘，缓冲下移
func (a *weightedAccumulator) advanceTo(row int) (err error) {
	if row <= a.baseRow {
		return
	}
	n := row - a.baseRow
	if err = a.flushRows(n); err != nil {
		return
	}
	var (
		planeSz = a.tile * a.width
		shift   = n * a.width
	)
	for c := 0; c < a.classes; c++ {
		plane := a.sum[c*planeSz : (c+1)*planeSz]
		copy(plane, plane[shift:])
		zeroTail(plane, planeSz-shift)
	}
	copy(a.weight, a.weight[shift:])
	zeroTail(a.weight, planeSz-shift)
	a.baseRow = row
	return
}

func zeroTail(buf []float32, from int) {
	tail := buf[from:]
	for i := range tail {
		tail[i] = 0
	}
}

func (a *weightedAccumulator) flushRows(n int) (err error) {
	if a.baseRow+n > a.height {
		n = a.height - a.baseRow
	}
	if n <= 0 {
		return
	}
	var (
		planeSz = a.tile * a.width
		mask    = make([]byte, n*a.width)
	)
	for i := range mask {
		var (
			best  = float32(0)
			label = byte(MosaicNoData)
		)
		if a.weight[i] > 0 {
			for c := 0; c < a.classes; c++ {
				if s := a.sum[c*planeSz+i]; s > best || label == MosaicNoData {
					best = s
					label = byte(c)
				}
			}
		}
		mask[i] = label
	}
	a.maskSkipped(mask, n)
	return a.out.WriteRegion(0, a.baseRow, a.width, n, mask)
}

// 被跳过窗口的核心区在落盘行中覆盖为无效值
func (a *weightedAccumulator) maskSkipped(mask []byte, rows int) {
	for _, w := range a.skipped {
		top := w.CoreRow
		if top < a.baseRow {
			top = a.baseRow
		}
		bottom := w.CoreRow + w.CoreHeight
		if bottom > a.baseRow+rows {
			bottom = a.baseRow + rows
		}
		for r := top; r < bottom; r++ {
			row := mask[(r-a.baseRow)*a.width : (r-a.baseRow+1)*a.width]
			for x := w.CoreCol; x < w.CoreCol+w.CoreWidth; x++ {
				row[x] = MosaicNoData
			}
		}
	}
}

func (a *weightedAccumulator) finish() (err error) {
	n := a.height - a.baseRow
	if err = a.flushRows(n); err != nil {
		return
	}
	a.baseRow = a.height
	if len(a.skipped) > 0 {
		log.Warn("BlendAccumulator:mosaic has nodata cores", zap.Int("skipped", len(a.skipped)))
	}
	return
}
