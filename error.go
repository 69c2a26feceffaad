package geoinfer

import "errors"

var (
	// 配置类错误（在任何I/O之前返回）
	ErrBadTileSize  = errors.New("tile size must be a positive pixel count")
	ErrBadOverlap   = errors.New("overlap must be non-negative and less than tile size")
	ErrBadBatchSize = errors.New("batch size must be positive")
	ErrBadBlendMode = errors.New("unknown blend policy")
	ErrBadErrorMode = errors.New("unknown error policy")
	ErrNilPredictor = errors.New("nil predictor")
	ErrTooManyClass = errors.New("model classes exceed mask value range")

	// I/O类错误
	ErrInvalidTif       = errors.New("invalid tif")
	ErrWrongTif         = errors.New("wrong tif")
	ErrEmptyRaster      = errors.New("raster has no pixels")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrTifWriteFailed   = errors.New("tif write failed")
	ErrWindowOutOfRange = errors.New("window out of raster range")

	// 推理类错误
	ErrInference        = errors.New("model inference failed")
	ErrWrongModelOutput = errors.New("wrong model output shape")

	ErrRunCancelled = errors.New("run cancelled")
	ErrVoidSrid     = errors.New("void srid in spatial ref")
)
