package oracle

import (
	"movefuzz/pkg/concolic"
	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// DefaultFormulaNodeCap 公式遍历的访问节点数上限
// 超限按"未命中"处理，保证对病态规模/带环公式图的终止性
const DefaultFormulaNodeCap = 10000

// PrecisionLossOracle 先除后乘精度丢失检测
// (a / b) * c 相对 (a * c) / b 丢失精度；乘法操作数的符号公式中
// 出现除法子项即产出Medium
type PrecisionLossOracle struct {
	NoopOracle

	nodeCap int
}

// NewPrecisionLossOracle 创建精度丢失检测器；nodeCap<=0时用默认上限
func NewPrecisionLossOracle(nodeCap int) *PrecisionLossOracle {
	if nodeCap <= 0 {
		nodeCap = DefaultFormulaNodeCap
	}
	return &PrecisionLossOracle{nodeCap: nodeCap}
}

// Name 实现Oracle接口
func (o *PrecisionLossOracle) Name() string {
	return "PrecisionLossOracle"
}

// BeforeInstruction 乘法处检查两个符号操作数
func (o *PrecisionLossOracle) BeforeInstruction(pc uint16, op trace.Opcode,
	_ *trace.State, sym *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error) {
	if op != trace.OpMul {
		return nil, nil
	}
	rhs, ok := sym.Top(0)
	if !ok {
		return nil, nil
	}
	lhs, ok := sym.Top(1)
	if !ok {
		return nil, nil
	}

	loss := (lhs.Known() && o.containsDivision(lhs.Expr())) ||
		(rhs.Known() && o.containsDivision(rhs.Expr()))
	if !loss {
		return nil, nil
	}
	return []types.Finding{
		types.NewFinding(o.Name(), types.SeverityMedium, locationExtra(fn, pc)),
	}, nil
}

// containsDivision 在公式子项图中查找除法节点
// 显式工作表做深度优先，不递归，带访问上限；上限命中即视为未找到
func (o *PrecisionLossOracle) containsDivision(e *concolic.Expr) bool {
	stack := []*concolic.Expr{e}
	count := 0
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		count++
		if count > o.nodeCap {
			break
		}
		if node.Op == concolic.ExprDiv {
			return true
		}
		stack = append(stack, node.Args...)
	}
	return false
}
