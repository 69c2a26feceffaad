package geoinfer

import (
	"sync"

	"github.com/wgdzlh/geoinfer/log"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

var registerDrivers sync.Once

// 影像源：只读打开一次，经窗口读取像素，运行结束后关闭
type RasterSource struct {
	ds        *Dataset
	path      string
	width     int
	height    int
	bands     int
	transform [6]float64
	logTag    string
}

func OpenRaster(tif string) (src *RasterSource, err error) {
	registerDrivers.Do(gdal.RegisterAll)
	sds, err := gdal.Open(tif, gdal.RasterOnly())
	if err != nil {
		log.Error("RasterSource:open tif failed", zap.String("tif", tif), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	tifBands := sds.Bands()
	if len(tifBands) == 0 {
		log.Error("RasterSource:tif has no bands", zap.String("tif", tif))
		sds.Close()
		err = ErrWrongTif
		return
	}
	bandStruct := tifBands[0].Structure()
	x := bandStruct.SizeX
	y := bandStruct.SizeY
	if x <= 0 || y <= 0 {
		sds.Close()
		err = ErrEmptyRaster
		return
	}
	gt, err := sds.GeoTransform()
	if err != nil {
		log.Error("RasterSource:tif has no geo transform", zap.String("tif", tif), zap.Error(err))
		sds.Close()
		err = ErrWrongTif
		return
	}
	src = &RasterSource{
		ds:        sds,
		path:      tif,
		width:     x,
		height:    y,
		bands:     len(tifBands),
		transform: gt,
		logTag:    "RasterSource:",
	}
	log.Info(src.logTag+"opened tif", zap.String("tif", tif), zap.Int("width", x),
		zap.Int("height", y), zap.Int("bands", len(tifBands)), zap.Int("dt", int(bandStruct.DataType)))
	return
}

func (s *RasterSource) Width() int {
	return s.width
}

func (s *RasterSource) Height() int {
	return s.height
}

func (s *RasterSource) Bands() int {
	return s.bands
}

func (s *RasterSource) Transform() [6]float64 {
	return s.transform
}

func (s *RasterSource) SpatialRef() *gdal.SpatialRef {
	return s.ds.SpatialRef()
}

// 像素坐标换算世界坐标范围 [minx, maxx, miny, maxy]
func (s *RasterSource) Span() (span [4]float64) {
	gt := s.transform
	xs := [4]float64{gt[0], gt[0] + float64(s.width)*gt[1], gt[0] + float64(s.height)*gt[2],
		gt[0] + float64(s.width)*gt[1] + float64(s.height)*gt[2]}
	ys := [4]float64{gt[3], gt[3] + float64(s.width)*gt[4], gt[3] + float64(s.height)*gt[5],
		gt[3] + float64(s.width)*gt[4] + float64(s.height)*gt[5]}
	span = [4]float64{xs[0], xs[0], ys[0], ys[0]}
	for i := 1; i < 4; i++ {
		if xs[i] < span[0] {
			span[0] = xs[i]
		}
		if xs[i] > span[1] {
			span[1] = xs[i]
		}
		if ys[i] < span[2] {
			span[2] = ys[i]
		}
		if ys[i] > span[3] {
			span[3] = ys[i]
		}
	}
	return
}

// 读取窗口全幅（含边缘）像素，逐波段转为float32平面；
// 越出影像边界的部分置零，完全在界外则报错（边界窗口由调用方填充无效值继续）
func (s *RasterSource) ReadWindow(w Window) (tile Tile, err error) {
	if w.Col >= s.width || w.Row >= s.height || w.Col+w.Width <= 0 || w.Row+w.Height <= 0 {
		err = ErrWindowOutOfRange
		return
	}
	tile = Tile{
		Window: w,
		Bands:  s.bands,
		Data:   make([]float32, s.bands*w.Height*w.Width),
	}
	rCol, rRow := w.Col, w.Row
	rWidth, rHeight := w.Width, w.Height
	if rCol < 0 {
		rWidth += rCol
		rCol = 0
	}
	if rRow < 0 {
		rHeight += rRow
		rRow = 0
	}
	if rCol+rWidth > s.width {
		rWidth = s.width - rCol
	}
	if rRow+rHeight > s.height {
		rHeight = s.height - rRow
	}
	whole := rCol == w.Col && rRow == w.Row && rWidth == w.Width && rHeight == w.Height
	var buf []float32
	for i, band := range s.ds.Bands() {
		plane := tile.Data[i*w.Height*w.Width : (i+1)*w.Height*w.Width]
		if whole {
			buf = plane
		} else {
			buf = make([]float32, rHeight*rWidth)
		}
		if err = band.IO(gdal.IORead, rCol, rRow, buf, rWidth, rHeight); err != nil {
			log.Error(s.logTag+"read tif window failed", zap.Int("band", i),
				zap.Int("col", w.Col), zap.Int("row", w.Row), zap.Error(err))
			err = ErrTifReadFailed
			return
		}
		if !whole {
			offX, offY := rCol-w.Col, rRow-w.Row
			for r := 0; r < rHeight; r++ {
				copy(plane[(offY+r)*w.Width+offX:], buf[r*rWidth:(r+1)*rWidth])
			}
		}
	}
	return
}

func (s *RasterSource) Close() {
	if s.ds != nil {
		s.ds.Close()
		s.ds = nil
	}
}
