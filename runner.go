package geoinfer

import (
	"github.com/wgdzlh/geoinfer/log"

	"go.uber.org/zap"
)

// 推理执行器：组批、补零、调用模型、裁剪回窗口实际范围；
// 批量与逐个执行结果一致，组批只为吞吐
type InferenceRunner struct {
	model    Predictor
	classes  int
	tileSize int
	bands    int
	logTag   string
}

func newInferenceRunner(model Predictor, bands, tileSize int) *InferenceRunner {
	return &InferenceRunner{
		model:    model,
		classes:  model.Classes(),
		tileSize: tileSize,
		bands:    bands,
		logTag:   "InferenceRunner:",
	}
}

// 不足模型输入尺寸的瓦片右下补零；预测后按窗口实际尺寸裁剪，空间位置一一对应
func (ir *InferenceRunner) inferBatch(tiles []Tile) (preds [][]float32, err error) {
	var (
		n     = len(tiles)
		ts    = ir.tileSize
		plane = ts * ts
		batch = make([]float32, n*ir.bands*plane)
	)
	for i, t := range tiles {
		dst := batch[i*ir.bands*plane:]
		for b := 0; b < ir.bands; b++ {
			src := t.Data[b*t.Window.Height*t.Window.Width:]
			for r := 0; r < t.Window.Height; r++ {
				copy(dst[b*plane+r*ts:b*plane+r*ts+t.Window.Width], src[r*t.Window.Width:])
			}
		}
	}
	out, err := ir.model.Predict(batch, n, ir.bands, ts)
	if err != nil {
		log.Error(ir.logTag+"model predict failed", zap.Int("batch", n), zap.Error(err))
		err = ErrInference
		return
	}
	if len(out) != n*ir.classes*plane {
		log.Error(ir.logTag+"unexpected model output size",
			zap.Int("got", len(out)), zap.Int("want", n*ir.classes*plane))
		err = ErrWrongModelOutput
		return
	}
	preds = make([][]float32, n)
	for i, t := range tiles {
		var (
			w, h = t.Window.Width, t.Window.Height
			pred = make([]float32, ir.classes*h*w)
			src  = out[i*ir.classes*plane:]
		)
		for c := 0; c < ir.classes; c++ {
			for r := 0; r < h; r++ {
				copy(pred[c*h*w+r*w:c*h*w+(r+1)*w], src[c*plane+r*ts:])
			}
		}
		preds[i] = pred
	}
	return
}
