package geoinfer

const (
	DefaultTileSize  = 512
	DefaultOverlap   = 256
	DefaultBatchSize = 1

	// 掩膜中的无效值；模型类别数须小于该值
	MosaicNoData = 255

	UNIVERSAL_SRID = 4326

	TMP_MASK_TIF = "mask_%s.tif"

	progressLogStep = 32
)

type BlendPolicy uint8

const (
	// 仅保留窗口核心区预测，丢弃重叠边缘（默认）
	BlendDiscardMargin BlendPolicy = iota
	// Hann窗加权平均，重叠区按权重融合
	BlendWeightedAverage
)

type ErrorPolicy uint8

const (
	// 单窗口推理失败则整体失败，不产出结果
	FailFast ErrorPolicy = iota
	// 失败窗口核心区置为无效值，继续推理其余窗口
	SkipOnError
)

type Config struct {
	TileSize  int
	Overlap   int
	BatchSize int
	Blend     BlendPolicy
	OnError   ErrorPolicy
}

func (c *Config) normalize() {
	if c.TileSize == 0 {
		c.TileSize = DefaultTileSize
		if c.Overlap == 0 {
			c.Overlap = DefaultOverlap
		}
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
}

func (c Config) validate() error {
	if c.TileSize <= 0 {
		return ErrBadTileSize
	}
	if c.Overlap < 0 || c.Overlap >= c.TileSize {
		return ErrBadOverlap
	}
	if c.BatchSize <= 0 {
		return ErrBadBatchSize
	}
	if c.Blend > BlendWeightedAverage {
		return ErrBadBlendMode
	}
	if c.OnError > SkipOnError {
		return ErrBadErrorMode
	}
	return nil
}

func ParseBlendPolicy(s string) (p BlendPolicy, err error) {
	switch s {
	case "", "discard-margin":
		p = BlendDiscardMargin
	case "weighted-average":
		p = BlendWeightedAverage
	default:
		err = ErrBadBlendMode
	}
	return
}

func ParseErrorPolicy(s string) (p ErrorPolicy, err error) {
	switch s {
	case "", "fail-fast":
		p = FailFast
	case "skip-on-error":
		p = SkipOnError
	default:
		err = ErrBadErrorMode
	}
	return
}
