package backtest

// DefaultInitialValue 为每个窗口的默认起始净值。
const DefaultInitialValue = 100.0

// Config 定义回测参数。
type Config struct {
	InitialValue float64 // 每个窗口的起始净值
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialValue <= 0 {
		cfg.InitialValue = DefaultInitialValue
	}
	return cfg
}
