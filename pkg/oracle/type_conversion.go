package oracle

import (
	"movefuzz/pkg/concolic"
	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// TypeConversionOracle 冗余类型转换检测 (动态)
// 转换指令的操作数声明位宽与目标位宽相同即是无效转换，
// 通常是残留或混乱代码的信号；无需任何持久状态
type TypeConversionOracle struct {
	NoopOracle
}

// NewTypeConversionOracle 创建冗余转换检测器
func NewTypeConversionOracle() *TypeConversionOracle {
	return &TypeConversionOracle{}
}

// Name 实现Oracle接口
func (o *TypeConversionOracle) Name() string {
	return "TypeConversionOracle"
}

// BeforeInstruction 转换指令处比较位宽
func (o *TypeConversionOracle) BeforeInstruction(pc uint16, op trace.Opcode,
	st *trace.State, _ *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error) {
	target := op.CastTargetWidth()
	if target == 0 {
		return nil, nil
	}
	val, ok := st.Top(0)
	if !ok {
		return nil, nil
	}
	if val.Bitwidth() != target {
		return nil, nil
	}
	extra := locationExtra(fn, pc)
	extra["width"] = target
	return []types.Finding{
		types.NewFinding(o.Name(), types.SeverityMinor, extra),
	}, nil
}
