package oracle

import (
	"movefuzz/pkg/concolic"
	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// DefaultLoopThreshold 同一位置同一条件值连续重复多少次判定为死循环
const DefaultLoopThreshold = 1000

// branchCounter 单个 (函数, pc) 位置的分支条件观测记录
type branchCounter struct {
	valueHash uint64 // 上次观测到的条件值hash
	repeats   int    // 连续相同的次数
}

// InfiniteLoopOracle 死循环检测
// 同一 (函数, pc) 处的条件分支若以完全相同的具体条件值被连续
// 求值达到阈值次，判定循环未取得进展，产出Major
// 帧打开时清空该函数的计数，递归/兄弟调用互不继承
type InfiniteLoopOracle struct {
	NoopOracle

	threshold    int
	branchCounts map[uint64]map[uint16]*branchCounter
}

// NewInfiniteLoopOracle 创建死循环检测器；threshold<=0时用默认阈值
func NewInfiniteLoopOracle(threshold int) *InfiniteLoopOracle {
	if threshold <= 0 {
		threshold = DefaultLoopThreshold
	}
	return &InfiniteLoopOracle{
		threshold:    threshold,
		branchCounts: make(map[uint64]map[uint16]*branchCounter),
	}
}

// Name 实现Oracle接口
func (o *InfiniteLoopOracle) Name() string {
	return "InfiniteLoopOracle"
}

// OpenFrame 进入函数时丢弃其全部历史计数 (每次激活从零开始)
func (o *InfiniteLoopOracle) OpenFrame(frame *trace.Frame, _ *trace.State,
	_ *concolic.State, _ *types.FunctionIdent) ([]types.Finding, error) {
	if frame == nil {
		return nil, nil
	}
	delete(o.branchCounts, hashTo64(frame.Function.String()))
	return nil, nil
}

// BeforeInstruction 条件分支处比对条件值
func (o *InfiniteLoopOracle) BeforeInstruction(pc uint16, op trace.Opcode,
	st *trace.State, sym *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error) {
	if !op.IsConditionalBranch() || fn == nil {
		return nil, nil
	}
	// 影子栈顶无符号信息时该条件不在关注范围内
	symTop, ok := sym.Top(0)
	if !ok || !symTop.Known() {
		return nil, nil
	}
	cond, ok := st.Top(0)
	if !ok {
		return nil, nil
	}

	funcKey := hashTo64(fn.String())
	valHash := hashTo64(cond.AsUint256().Dec())

	perPC := o.branchCounts[funcKey]
	if perPC == nil {
		perPC = make(map[uint16]*branchCounter)
		o.branchCounts[funcKey] = perPC
	}
	c := perPC[pc]
	if c == nil {
		c = &branchCounter{}
		perPC[pc] = c
	}

	if c.valueHash != valHash {
		c.valueHash = valHash
		c.repeats = 1
		return nil, nil
	}
	c.repeats++
	if c.repeats >= o.threshold {
		// 清零后继续计数，病态循环持续时可再次触发
		c.repeats = 0
		return []types.Finding{
			types.NewFinding(o.Name(), types.SeverityMajor, locationExtra(fn, pc)),
		}, nil
	}
	return nil, nil
}
