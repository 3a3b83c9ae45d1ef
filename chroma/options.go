package chroma

const (
	DefaultThreshold = 30
	DefaultFeather   = 2

	// FeatherStep 每个羽化单位对应的颜色距离
	FeatherStep = 10
	// MaxDistance 颜色距离上限（取整），threshold 超过它时整张图都会变透明
	MaxDistance = 441
)

// Options 一次去背景调用的全部参数，按值传递，调用之间互不影响
type Options struct {
	Background RGB
	Threshold  int
	Feather    int
	AutoDetect bool
}

func DefaultOptions() Options {
	return Options{
		Background: White,
		Threshold:  DefaultThreshold,
		Feather:    DefaultFeather,
	}
}

// Validate 负数直接报错；threshold > MaxDistance 允许，结果为全透明
func (o Options) Validate() error {
	if o.Threshold < 0 {
		return &InvalidParameterError{Name: "threshold", Value: o.Threshold, Reason: "must be >= 0"}
	}
	if o.Feather < 0 {
		return &InvalidParameterError{Name: "feather", Value: o.Feather, Reason: "must be >= 0"}
	}
	return nil
}

func (o Options) band() float64 {
	return float64(o.Feather) * FeatherStep
}
