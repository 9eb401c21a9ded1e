package oracle

import (
	"movefuzz/pkg/concolic"
	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// OverflowOracle 左移位宽溢出检测
// 以操作数的"实际有效位数"而非仅类型位宽判定: 8位类型里只占2个
// 有效位的值左移3位是安全的，朴素的按位宽检查会误报
type OverflowOracle struct {
	NoopOracle
}

// NewOverflowOracle 创建移位溢出检测器
func NewOverflowOracle() *OverflowOracle {
	return &OverflowOracle{}
}

// Name 实现Oracle接口
func (o *OverflowOracle) Name() string {
	return "OverflowOracle"
}

// Event 在每条指令执行事件上检查左移
func (o *OverflowOracle) Event(ev trace.Event, st *trace.State,
	_ *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error) {
	ie, ok := ev.(trace.InstructionEvent)
	if !ok || ie.Op != trace.OpShl {
		return nil, nil
	}
	// 栈深不足视为畸形trace，防御性跳过
	vals := st.LastN(2)
	if vals == nil {
		return nil, nil
	}
	lhs, rhs := vals[0], vals[1]

	width := uint64(lhs.Bitwidth())
	sigBits := uint64(lhs.SigBits())
	shift := rhs.AsUint256()

	// 移位量达到类型位宽本身即可疑；否则看有效位是否会被移出位宽
	overflow := !shift.IsUint64() || shift.Uint64() >= width ||
		sigBits+shift.Uint64() > width

	if !overflow {
		return nil, nil
	}
	extra := locationExtra(fn, ie.PC)
	extra["width"] = width
	extra["sig_bits"] = sigBits
	extra["shift"] = shift.Dec()
	return []types.Finding{
		types.NewFinding(o.Name(), types.SeverityMedium, extra),
	}, nil
}
