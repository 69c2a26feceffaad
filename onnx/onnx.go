// Package onnx 基于ONNX Runtime的模型句柄实现，启动时选定CPU或CUDA后端
package onnx

import (
	"errors"
	"strconv"

	"github.com/wgdzlh/geoinfer/log"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

const probeSize = 32

var (
	ErrModelLoad   = errors.New("onnx model load failed")
	ErrModelProbe  = errors.New("onnx model probe failed")
	ErrModelOutput = errors.New("onnx model output is not float32")
)

type Options struct {
	// onnxruntime动态库路径，留空则按默认名称加载
	LibPath string
	UseCUDA bool
	GpuId   int
	// 模型输入波段数，用于探测类别数
	Bands      int
	InputName  string
	OutputName string
}

type Predictor struct {
	session *ort.DynamicAdvancedSession
	classes int
	logTag  string
}

func New(model string, opts Options) (p *Predictor, err error) {
	if opts.Bands <= 0 {
		opts.Bands = 3
	}
	if opts.InputName == "" {
		opts.InputName = "input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "output"
	}
	if opts.LibPath != "" {
		ort.SetSharedLibraryPath(opts.LibPath)
	}
	if !ort.IsInitialized() {
		if err = ort.InitializeEnvironment(); err != nil {
			log.Error("onnx:init environment failed", zap.Error(err))
			err = ErrModelLoad
			return
		}
	}
	so, err := ort.NewSessionOptions()
	if err != nil {
		err = ErrModelLoad
		return
	}
	defer so.Destroy()
	if opts.UseCUDA {
		var cu *ort.CUDAProviderOptions
		if cu, err = ort.NewCUDAProviderOptions(); err != nil {
			log.Error("onnx:cuda provider unavailable", zap.Error(err))
			err = ErrModelLoad
			return
		}
		defer cu.Destroy()
		if err = cu.Update(map[string]string{"device_id": strconv.Itoa(opts.GpuId)}); err == nil {
			err = so.AppendExecutionProviderCUDA(cu)
		}
		if err != nil {
			log.Error("onnx:cuda provider setup failed", zap.Int("gpu", opts.GpuId), zap.Error(err))
			err = ErrModelLoad
			return
		}
	}
	session, err := ort.NewDynamicAdvancedSession(model,
		[]string{opts.InputName}, []string{opts.OutputName}, so)
	if err != nil {
		log.Error("onnx:load model failed", zap.String("model", model), zap.Error(err))
		err = ErrModelLoad
		return
	}
	p = &Predictor{
		session: session,
		logTag:  "OnnxPredictor:",
	}
	// 以全1小批探测模型输出类别数
	probe := make([]float32, opts.Bands*probeSize*probeSize)
	for i := range probe {
		probe[i] = 1
	}
	if p.classes, err = p.probeClasses(probe, opts.Bands); err != nil {
		session.Destroy()
		p = nil
		return
	}
	log.Info(p.logTag+"model loaded", zap.String("model", model),
		zap.Bool("cuda", opts.UseCUDA), zap.Int("classes", p.classes))
	return
}

func (p *Predictor) probeClasses(probe []float32, bands int) (classes int, err error) {
	_, shape, err := p.run(probe, 1, bands, probeSize)
	if err != nil {
		err = ErrModelProbe
		return
	}
	if len(shape) != 4 || shape[1] <= 0 {
		log.Error(p.logTag+"unexpected probe output shape", zap.Int64s("shape", shape))
		err = ErrModelProbe
		return
	}
	classes = int(shape[1])
	return
}

func (p *Predictor) run(batch []float32, n, bands, size int) (out []float32, shape []int64, err error) {
	in, err := ort.NewTensor(ort.NewShape(int64(n), int64(bands), int64(size), int64(size)), batch)
	if err != nil {
		return
	}
	defer in.Destroy()
	outputs := []ort.Value{nil}
	if err = p.session.Run([]ort.Value{in}, outputs); err != nil {
		return
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
		err = ErrModelOutput
		return
	}
	defer tensor.Destroy()
	shape = tensor.GetShape()
	out = append([]float32(nil), tensor.GetData()...)
	return
}

// 同尺寸进出的批量推理，实现geoinfer.Predictor
func (p *Predictor) Predict(batch []float32, n, bands, size int) (out []float32, err error) {
	out, _, err = p.run(batch, n, bands, size)
	return
}

func (p *Predictor) Classes() int {
	return p.classes
}

func (p *Predictor) Close() {
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
}
