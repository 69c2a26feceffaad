package geoinfer

// 推理窗口：全幅范围含重叠边缘，核心区互不重叠且恰好铺满全图
type Window struct {
	Col, Row      int
	Width, Height int

	CoreCol, CoreRow      int
	CoreWidth, CoreHeight int
}

// 核心区相对窗口自身的偏移
func (w Window) coreOffX() int {
	return w.CoreCol - w.Col
}

func (w Window) coreOffY() int {
	return w.CoreRow - w.Row
}

type axisSpan struct {
	off, size         int
	coreOff, coreSize int
	first, last       bool
}

// 单轴切分：窗口步进为tileSize-overlap，末窗收缩贴边；
// 相邻核心区以前导ceil(overlap/2)、后继floor(overlap/2)的边缘划界，恰好衔接
func planAxis(extent, tileSize, overlap int) (spans []axisSpan) {
	if extent <= tileSize {
		return []axisSpan{{
			off: 0, size: extent,
			coreOff: 0, coreSize: extent,
			first: true, last: true,
		}}
	}
	var (
		stride = tileSize - overlap
		lead   = overlap - overlap/2
		trail  = overlap / 2
		n      = (extent-tileSize+stride-1)/stride + 1
	)
	spans = make([]axisSpan, n)
	for i := 0; i < n; i++ {
		s := axisSpan{off: i * stride, size: tileSize, first: i == 0, last: i == n-1}
		if s.off+s.size > extent {
			s.size = extent - s.off // 末窗收缩，不越界
		}
		coreEnd := s.off + s.size - trail
		s.coreOff = s.off + lead
		if s.first {
			s.coreOff = 0
		}
		if s.last {
			coreEnd = extent
		}
		s.coreSize = coreEnd - s.coreOff
		spans[i] = s
	}
	return
}

// 按行主序生成覆盖全图的推理窗口序列；同一输入必然产生同一序列
func planWindows(width, height, tileSize, overlap int) (windows []Window, err error) {
	if tileSize <= 0 {
		err = ErrBadTileSize
		return
	}
	if overlap < 0 || overlap >= tileSize {
		err = ErrBadOverlap
		return
	}
	if width <= 0 || height <= 0 {
		err = ErrEmptyRaster
		return
	}
	rows := planAxis(height, tileSize, overlap)
	cols := planAxis(width, tileSize, overlap)
	windows = make([]Window, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			windows = append(windows, Window{
				Col: c.off, Row: r.off,
				Width: c.size, Height: r.size,
				CoreCol: c.coreOff, CoreRow: r.coreOff,
				CoreWidth: c.coreSize, CoreHeight: r.coreSize,
			})
		}
	}
	return
}
