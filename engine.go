package geoinfer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wgdzlh/geoinfer/log"
	"github.com/wgdzlh/geoinfer/utils"

	"go.uber.org/zap"
)

// 瓦片推理引擎：窗口调度、批量推理、融合落盘的总控
type Engine struct {
	cfg    Config
	model  Predictor
	srs    *srsToolbox
	logTag string
}

// 配置校验在此完成，任何I/O开始之前即返回配置错误
func New(model Predictor, cfg Config) (e *Engine, err error) {
	if model == nil {
		err = ErrNilPredictor
		return
	}
	cfg.normalize()
	if err = cfg.validate(); err != nil {
		return
	}
	classes := model.Classes()
	if classes <= 0 {
		err = ErrWrongModelOutput
		return
	}
	if classes >= MosaicNoData {
		err = ErrTooManyClass
		return
	}
	e = &Engine{
		cfg:    cfg,
		model:  model,
		srs:    newSrsToolbox(),
		logTag: "Engine:",
	}
	return
}

type readResult struct {
	tile Tile
	err  error
}

// 对影像全图执行瓦片化推理，输出与输入逐像素对齐的类别掩膜tif。
// 窗口读取与推理流水并行，融合严格按调度顺序串行；
// 取消或致命错误不留下任何输出文件
func (e *Engine) Run(ctx context.Context, tif, out string) (rep *Report, err error) {
	start := time.Now()
	src, err := OpenRaster(tif)
	if err != nil {
		return
	}
	defer src.Close()
	windows, err := planWindows(src.width, src.height, e.cfg.TileSize, e.cfg.Overlap)
	if err != nil {
		return
	}
	classes := e.model.Classes()
	log.Info(e.logTag+"run planned", zap.String("tif", tif), zap.Int("windows", len(windows)),
		zap.Int("tileSize", e.cfg.TileSize), zap.Int("overlap", e.cfg.Overlap),
		zap.Int("batchSize", e.cfg.BatchSize), zap.Int("classes", classes))

	srid := 0
	if ref := src.SpatialRef(); ref != nil {
		if projWkt, we := ref.WKT(); we == nil {
			if srid, err = e.srs.SridOfWkt(projWkt); err != nil {
				log.Warn(e.logTag+"srid not identified", zap.Error(err))
				err = nil
			}
		}
	}
	extWkt, _ := e.srs.SpanToUniversalWkt(src.Span(), srid)

	mw, err := NewMosaicWriter(out, src.width, src.height, src.transform, src.SpatialRef())
	if err != nil {
		return
	}
	finalized := false
	defer func() {
		if !finalized {
			mw.Abort()
		}
	}()
	var (
		acc     = newBlendAccumulator(e.cfg.Blend, src.width, src.height, classes, e.cfg.TileSize, e.cfg.Overlap, mw)
		runner  = newInferenceRunner(e.model, src.bands, e.cfg.TileSize)
		skipped [][2]int
		batches int
	)

	// 预读流水线：下一窗口的磁盘读取与当前批推理重叠
	runCtx, cancel := context.WithCancel(ctx)
	readerDone := make(chan struct{})
	defer func() {
		cancel()
		<-readerDone
	}()
	results := make(chan readResult, e.cfg.BatchSize+1)
	go func() {
		defer close(readerDone)
		defer close(results)
		for _, w := range windows {
			var rr readResult
			rr.tile, rr.err = src.ReadWindow(w)
			if rr.err == ErrWindowOutOfRange {
				// 窗口边缘合法越界：填零继续
				log.Warn(e.logTag+"window outside raster, filled as nodata",
					zap.Int("col", w.Col), zap.Int("row", w.Row))
				rr.tile = Tile{Window: w, Bands: src.bands, Data: make([]float32, src.bands*w.Height*w.Width)}
				rr.err = nil
			}
			select {
			case results <- rr:
			case <-runCtx.Done():
				return
			}
		}
	}()

	processBatch := func(tiles []Tile) error {
		preds, be := runner.inferBatch(tiles)
		if be != nil {
			if e.cfg.OnError == FailFast {
				return be
			}
			// 逐瓦片重试，只跳过真正失败的窗口
			preds = make([][]float32, len(tiles))
			for i := range tiles {
				if one, oe := runner.inferBatch(tiles[i : i+1]); oe == nil {
					preds[i] = one[0]
				} else {
					w := tiles[i].Window
					skipped = append(skipped, [2]int{w.CoreRow, w.CoreCol})
					log.Warn(e.logTag+"window skipped on inference error",
						zap.Int("coreRow", w.CoreRow), zap.Int("coreCol", w.CoreCol), zap.Error(oe))
				}
			}
		}
		for i, t := range tiles {
			var me error
			if preds[i] == nil {
				me = acc.fillNoData(t.Window)
			} else {
				me = acc.merge(t.Window, preds[i])
			}
			if me != nil {
				return me
			}
		}
		batches++
		if batches%progressLogStep == 0 {
			log.Info(e.logTag+"extracting features", zap.Int("batches", batches))
		}
		return nil
	}

	tiles := make([]Tile, 0, e.cfg.BatchSize)
	for rr := range results {
		select {
		case <-ctx.Done():
			err = ErrRunCancelled
			return
		default:
		}
		if rr.err != nil {
			err = rr.err
			return
		}
		tiles = append(tiles, rr.tile)
		if len(tiles) == e.cfg.BatchSize {
			if err = processBatch(tiles); err != nil {
				return
			}
			tiles = tiles[:0]
		}
	}
	select {
	case <-ctx.Done():
		err = ErrRunCancelled
		return
	default:
	}
	if len(tiles) > 0 {
		if err = processBatch(tiles); err != nil {
			return
		}
	}
	if err = acc.finish(); err != nil {
		return
	}
	if len(skipped) > 0 {
		b, _ := json.Marshal(skipped)
		mw.MarkIncomplete(utils.B2S(b))
		log.Warn(e.logTag+"mosaic incomplete", zap.Int("skipped", len(skipped)))
	}
	if err = mw.Finalize(); err != nil {
		return
	}
	finalized = true
	elapsed := time.Since(start)
	rep = &Report{
		Windows:   len(windows),
		Skipped:   skipped,
		Classes:   classes,
		Srid:      srid,
		ExtentWkt: extWkt,
		Elapsed:   elapsed.Seconds(),
	}
	log.Info(e.logTag+"extraction completed", zap.Duration("elapsed", elapsed),
		zap.Int("windows", len(windows)), zap.Int("skipped", len(skipped)))
	return
}
