package oracle

// ==================== 配置结构 ====================

// Config Oracle集合配置
// 所有参数均可配置，不在使用处硬编码；一次trace内不可重配
type Config struct {
	Disabled     bool               `yaml:"disabled" json:"disabled"`           // 整体关闭缺陷检测
	InfiniteLoop InfiniteLoopConfig `yaml:"infinite_loop" json:"infinite_loop"` // 死循环检测配置
	Formula      FormulaConfig      `yaml:"formula" json:"formula"`             // 公式遍历配置
	TypedBug     TypedBugConfig     `yaml:"typed_bug" json:"typed_bug"`         // 标记缺陷配置
}

// InfiniteLoopConfig 死循环检测配置
type InfiniteLoopConfig struct {
	Threshold int `yaml:"threshold" json:"threshold"` // 相同条件值连续重复阈值
}

// FormulaConfig 符号公式遍历配置
type FormulaConfig struct {
	MaxNodes int `yaml:"max_nodes" json:"max_nodes"` // 单次遍历访问节点上限
}

// TypedBugConfig 标记缺陷检测配置
type TypedBugConfig struct {
	Mode      string `yaml:"mode" json:"mode"`             // "abort" 或 "event"
	AbortCode uint64 `yaml:"abort_code" json:"abort_code"` // abort模式哨兵值
}

// DefaultConfig 返回默认配置
// 所有默认值集中在此处
func DefaultConfig() *Config {
	return &Config{
		Disabled: false,
		InfiniteLoop: InfiniteLoopConfig{
			Threshold: DefaultLoopThreshold,
		},
		Formula: FormulaConfig{
			MaxNodes: DefaultFormulaNodeCap,
		},
		TypedBug: TypedBugConfig{
			Mode:      "abort",
			AbortCode: DefaultCrashAbortCode,
		},
	}
}

// MergeWithDefaults 合并用户配置与默认配置
// 用于处理部分配置的情况
func (c *Config) MergeWithDefaults() {
	defaults := DefaultConfig()

	if c.InfiniteLoop.Threshold == 0 {
		c.InfiniteLoop.Threshold = defaults.InfiniteLoop.Threshold
	}
	if c.Formula.MaxNodes == 0 {
		c.Formula.MaxNodes = defaults.Formula.MaxNodes
	}
	if c.TypedBug.Mode == "" {
		c.TypedBug.Mode = defaults.TypedBug.Mode
	}
	if c.TypedBug.AbortCode == 0 {
		c.TypedBug.AbortCode = defaults.TypedBug.AbortCode
	}
}

// TypedBugMode 解析标记缺陷模式
func (c *Config) TypedBugMode() TypedBugMode {
	if c.TypedBug.Mode == "event" {
		return TypedBugCrashEvent
	}
	return TypedBugAbortCode
}

// BuildOracles 按配置构造全部Oracle实例 (固定注册顺序)
// 每次独立执行必须使用独立的实例集合，状态绝不跨执行共享
func BuildOracles(c *Config) []Oracle {
	if c == nil {
		c = DefaultConfig()
	}
	c.MergeWithDefaults()

	return []Oracle{
		NewDisableable(NewInfiniteLoopOracle(c.InfiniteLoop.Threshold), c.Disabled),
		NewDisableable(NewOverflowOracle(), c.Disabled),
		NewDisableable(NewPrecisionLossOracle(c.Formula.MaxNodes), c.Disabled),
		NewDisableable(NewTypeConversionOracle(), c.Disabled),
		NewDisableable(NewTypedBugOracle(c.TypedBugMode(), c.TypedBug.AbortCode), c.Disabled),
	}
}
