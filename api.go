package geoinfer

import (
	gdal "github.com/airbusgeo/godal"
)

type Dataset = gdal.Dataset

type Band = gdal.Band

// 模型句柄，由外部加载并在启动时选定一次（CPU/GPU后端互换）
type Predictor interface {
	// Predict runs the model on a batch of n patches laid out NCHW, each
	// size×size pixels with the given band count. The output keeps the
	// spatial extent: n×Classes()×size×size class scores.
	Predict(batch []float32, n, bands, size int) ([]float32, error)
	Classes() int
}

// 单窗口像素数据，按波段平面（CHW）排列，推理后即丢弃
type Tile struct {
	Window Window
	Bands  int
	Data   []float32
}

// 镶嵌结果汇总
type Report struct {
	Windows   int      `json:"windows"`
	Skipped   [][2]int `json:"skipped,omitempty"` // 被跳过窗口核心区的(row,col)像素偏移
	Classes   int      `json:"classes"`
	Srid      int      `json:"srid"`
	ExtentWkt string   `json:"extent_wkt"`
	Elapsed   float64  `json:"elapsed_sec"`
}
