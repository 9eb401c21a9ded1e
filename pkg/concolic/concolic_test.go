package concolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// step 一条脚本化trace事件与该时刻的具体栈快照
type step struct {
	ev    trace.Event
	stack []trace.Value
}

// runSteps 按序推进影子状态，收集路径约束
func runSteps(t *testing.T, cs *State, steps []step) []*Expr {
	t.Helper()
	var constraints []*Expr
	for i, s := range steps {
		st := trace.NewState()
		st.OperandStack = s.stack
		c, err := cs.NotifyEvent(s.ev, st)
		require.NoErrorf(t, err, "step %d (%T)", i, s.ev)
		if c != nil {
			constraints = append(constraints, c)
		}
	}
	return constraints
}

func entryFrame(params int) trace.OpenFrameEvent {
	kinds := make([]trace.ValueKind, params)
	for i := range kinds {
		kinds[i] = trace.KindU64
	}
	return trace.OpenFrameEvent{Frame: &trace.Frame{
		ID:         1,
		Function:   types.FunctionIdent{Module: "vault", Name: "entry"},
		ParamCount: params,
		LocalKinds: kinds,
	}}
}

func u64(v uint64) trace.Value {
	return trace.NewUint(trace.KindU64, v)
}

// TestOpenFrameIntroducesVariables 测试顶层帧为标量参数引入自由变量
func TestOpenFrameIntroducesVariables(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{{ev: entryFrame(2)}})

	require.Len(t, cs.Locals, 1)
	require.Len(t, cs.Locals[0], 2)
	assert.True(t, cs.Locals[0][0].Known(), "Scalar param should get a variable")
	assert.Equal(t, "0.0", cs.Locals[0][0].Expr().String())
	assert.Equal(t, "0.1", cs.Locals[0][1].Expr().String())

	require.Len(t, cs.Args, 1)
	assert.Len(t, cs.Args[0], 2, "Both params should be recorded as args")
}

// TestOpenFrameOpaqueParam 测试非标量参数不引入变量
func TestOpenFrameOpaqueParam(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{{ev: trace.OpenFrameEvent{Frame: &trace.Frame{
		Function:   types.FunctionIdent{Module: "m", Name: "f"},
		ParamCount: 2,
		LocalKinds: []trace.ValueKind{trace.KindU64, trace.KindOpaque},
	}}}})

	require.Len(t, cs.Locals[0], 2)
	assert.True(t, cs.Locals[0][0].Known())
	assert.False(t, cs.Locals[0][1].Known(), "Opaque param should stay Unknown")
	assert.Len(t, cs.Args[0], 1)
}

// TestArithmeticPropagation 测试算术指令沿影子栈传播公式
func TestArithmeticPropagation(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{
		{ev: entryFrame(2)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: trace.InstructionEvent{PC: 1, Op: trace.OpCopyLoc, Imm: 1}, stack: []trace.Value{u64(10)}},
		{ev: trace.InstructionEvent{PC: 2, Op: trace.OpAdd}, stack: []trace.Value{u64(10), u64(20)}},
	})

	require.Equal(t, 1, cs.Depth(), "Add should pop two and push one")
	top, ok := cs.Top(0)
	require.True(t, ok)
	require.True(t, top.Known())
	assert.Equal(t, "(add 0.0 0.1)", top.Expr().String())
}

// TestMixedOperandResolvedFromConcrete 测试一侧Unknown时从具体值补全
func TestMixedOperandResolvedFromConcrete(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: trace.InstructionEvent{PC: 1, Op: trace.OpLdU64}, stack: []trace.Value{u64(7)}},
		{ev: trace.InstructionEvent{PC: 2, Op: trace.OpMul}, stack: []trace.Value{u64(7), u64(3)}},
	})

	top, _ := cs.Top(0)
	require.True(t, top.Known())
	assert.Equal(t, "(mul 0.0 3)", top.Expr().String())
}

// TestComparisonEmitsPathConstraint 测试比较指令按实际走向产生约束
func TestComparisonEmitsPathConstraint(t *testing.T) {
	t.Run("TakenDirection", func(t *testing.T) {
		cs := NewState()
		constraints := runSteps(t, cs, []step{
			{ev: entryFrame(1)},
			{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
			{ev: trace.InstructionEvent{PC: 1, Op: trace.OpLdU64}, stack: []trace.Value{u64(5)}},
			// 5 < 10 成立，约束方向为lt本身
			{ev: trace.InstructionEvent{PC: 2, Op: trace.OpLt}, stack: []trace.Value{u64(5), u64(10)}},
		})

		require.Len(t, constraints, 1)
		assert.Equal(t, "(lt 0.0 10)", constraints[0].String())

		top, _ := cs.Top(0)
		require.True(t, top.Known())
		assert.True(t, top.Expr().IsComparison(), "Comparison result should stay on shadow stack")
	})

	t.Run("NotTakenDirection", func(t *testing.T) {
		cs := NewState()
		constraints := runSteps(t, cs, []step{
			{ev: entryFrame(1)},
			{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
			{ev: trace.InstructionEvent{PC: 1, Op: trace.OpLdU64}, stack: []trace.Value{u64(50)}},
			// 50 < 10 不成立，约束取反
			{ev: trace.InstructionEvent{PC: 2, Op: trace.OpLt}, stack: []trace.Value{u64(50), u64(10)}},
		})

		require.Len(t, constraints, 1)
		assert.Equal(t, "(not (lt 0.0 10))", constraints[0].String())
	})
}

// TestBranchConsumesCondition 测试条件分支弹出条件值
func TestBranchConsumesCondition(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: trace.InstructionEvent{PC: 1, Op: trace.OpBrTrue}, stack: []trace.Value{u64(1)}},
	})
	assert.Equal(t, 0, cs.Depth())
}

// TestCastEmitsWidthConstraint 测试转换指令产生目标位宽上界约束
func TestCastEmitsWidthConstraint(t *testing.T) {
	cs := NewState()
	constraints := runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: trace.InstructionEvent{PC: 1, Op: trace.OpCastU8}, stack: []trace.Value{u64(200)}},
	})

	require.Len(t, constraints, 1)
	assert.Equal(t, "(le 0.0 255)", constraints[0].String())
	assert.Equal(t, 1, cs.Depth(), "Cast should not change stack shape")
}

// TestShlEmitsOverflowConstraint 测试左移的模语义与溢出约束
func TestShlEmitsOverflowConstraint(t *testing.T) {
	cs := NewState()
	frame := trace.OpenFrameEvent{Frame: &trace.Frame{
		Function:   types.FunctionIdent{Module: "vault", Name: "entry"},
		ParamCount: 1,
		LocalKinds: []trace.ValueKind{trace.KindU8},
	}}
	constraints := runSteps(t, cs, []step{
		{ev: frame},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: trace.InstructionEvent{PC: 1, Op: trace.OpLdU8}, stack: []trace.Value{trace.NewUint(trace.KindU8, 2)}},
		{ev: trace.InstructionEvent{PC: 2, Op: trace.OpShl},
			stack: []trace.Value{trace.NewUint(trace.KindU8, 2), trace.NewUint(trace.KindU8, 3)}},
	})

	require.Len(t, constraints, 1)
	assert.Equal(t, "(gt (mul 0.0 8) 255)", constraints[0].String())

	top, _ := cs.Top(0)
	require.True(t, top.Known())
	assert.Equal(t, "(mod (mul 0.0 8) 256)", top.Expr().String())
}

// TestInnerFrameMovesArguments 测试内层帧从栈上搬运实参
func TestInnerFrameMovesArguments(t *testing.T) {
	cs := NewState()
	inner := trace.OpenFrameEvent{Frame: &trace.Frame{
		ID:         2,
		Function:   types.FunctionIdent{Module: "vault", Name: "helper"},
		ParamCount: 1,
		LocalKinds: []trace.ValueKind{trace.KindU64, trace.KindU64},
	}}
	runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: inner, stack: []trace.Value{u64(9)}},
	})

	assert.Equal(t, 0, cs.Depth(), "Argument should leave the shadow stack")
	require.Len(t, cs.Locals, 2)
	require.Len(t, cs.Locals[1], 2, "Locals padded to declared slot count")
	assert.True(t, cs.Locals[1][0].Known(), "Inner frame should inherit symbolic arg")
	assert.Equal(t, "0.0", cs.Locals[1][0].Expr().String())

	// 关帧丢弃内层局部槽位
	runSteps(t, cs, []step{{ev: trace.CloseFrameEvent{FrameID: 2}}})
	assert.Len(t, cs.Locals, 1)
}

// TestNativeFrameReturns 测试native帧直接占位返回值
func TestNativeFrameReturns(t *testing.T) {
	cs := NewState()
	native := trace.OpenFrameEvent{Frame: &trace.Frame{
		ID:         2,
		Function:   types.FunctionIdent{Module: "std", Name: "hash"},
		ParamCount: 1,
		ReturnNum:  1,
		IsNative:   true,
	}}
	runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: native, stack: []trace.Value{u64(9)}},
	})

	require.Equal(t, 1, cs.Depth(), "Native return value should be placed on stack")
	top, _ := cs.Top(0)
	assert.False(t, top.Known(), "Native results carry no symbolic information")
}

// TestMoveLocInvalidatesSlot 测试move后槽位失去符号信息
func TestMoveLocInvalidatesSlot(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpMoveLoc, Imm: 0}},
		{ev: trace.InstructionEvent{PC: 1, Op: trace.OpPop}, stack: []trace.Value{u64(1)}},
		{ev: trace.InstructionEvent{PC: 2, Op: trace.OpCopyLoc, Imm: 0}},
	})

	top, _ := cs.Top(0)
	assert.False(t, top.Known(), "Moved-from slot should be Unknown")
}

// TestStLocStoresSymbol 测试栈顶写回局部槽位
func TestStLocStoresSymbol(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: trace.InstructionEvent{PC: 1, Op: trace.OpStLoc, Imm: 2}, stack: []trace.Value{u64(5)}},
		{ev: trace.InstructionEvent{PC: 2, Op: trace.OpCopyLoc, Imm: 2}},
	})

	top, _ := cs.Top(0)
	require.True(t, top.Known())
	assert.Equal(t, "0.0", top.Expr().String())
}

// TestEffectEventsMirrorStack 测试栈外效果同步映射到影子栈
func TestEffectEventsMirrorStack(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{
		{ev: entryFrame(1)},
		{ev: trace.EffectEvent{Kind: trace.EffectPush}, stack: []trace.Value{u64(1)}},
		{ev: trace.EffectEvent{Kind: trace.EffectPush}, stack: []trace.Value{u64(1), u64(2)}},
		{ev: trace.EffectEvent{Kind: trace.EffectPop}, stack: []trace.Value{u64(1)}},
	})
	assert.Equal(t, 1, cs.Depth())
}

// TestExternalCallResetsState 测试顶层调用开始时影子状态复位
func TestExternalCallResetsState(t *testing.T) {
	cs := NewState()
	runSteps(t, cs, []step{
		{ev: entryFrame(2)},
		{ev: trace.InstructionEvent{PC: 0, Op: trace.OpCopyLoc, Imm: 0}},
		{ev: trace.ExternalEvent{Tag: trace.ExternalCallStart}},
	})

	assert.Equal(t, 0, cs.Depth())
	assert.Empty(t, cs.Locals)
	assert.Len(t, cs.Args, 1, "Recorded args survive across calls")
}

// TestOutOfSyncDetected 测试影子栈与具体栈长度不一致时报错
func TestOutOfSyncDetected(t *testing.T) {
	cs := NewState()
	st := trace.NewState()
	st.OperandStack = []trace.Value{u64(1), u64(2), u64(3)}

	_, err := cs.NotifyEvent(trace.InstructionEvent{PC: 0, Op: trace.OpAdd}, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of sync")
}

// TestDisabledStateIgnoresEvents 测试关闭后事件直接忽略
func TestDisabledStateIgnoresEvents(t *testing.T) {
	cs := NewState()
	cs.Disabled = true

	st := trace.NewState()
	st.OperandStack = []trace.Value{u64(1), u64(2), u64(3)}
	c, err := cs.NotifyEvent(trace.InstructionEvent{PC: 0, Op: trace.OpAdd}, st)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, 0, cs.Depth())
}
