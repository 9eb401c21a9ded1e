package concolic

import (
	"fmt"
	"log"
	"math/big"

	"movefuzz/pkg/trace"
)

// ==================== 符号值 ====================

// SymbolValue 影子栈上一个槽位的符号侧
// 两种形态: Unknown (无符号信息，仅具体路径) 或携带公式
type SymbolValue struct {
	expr *Expr
}

// Unknown 无符号信息的槽位
var Unknown = SymbolValue{}

// Symbolic 由公式构造符号值
func Symbolic(e *Expr) SymbolValue {
	return SymbolValue{expr: e}
}

// Known 是否携带公式
func (s SymbolValue) Known() bool {
	return s.expr != nil
}

// Expr 返回公式 (Unknown时为nil)
func (s SymbolValue) Expr() *Expr {
	return s.expr
}

// ==================== 影子执行状态 ====================

// State concolic影子状态
// 与VM真实操作数栈逐指令同步推进的符号栈，外加帧内局部槽位
// 单次执行独占一个实例；仅由dispatch引擎修改，Oracle只读
type State struct {
	// Stack 影子操作数栈，与具体栈长度始终一致 (栈顶在末尾)
	Stack []SymbolValue
	// Locals 调用栈各帧的局部槽位符号值
	Locals [][]SymbolValue
	// Args 各顶层帧引入的符号变量 (参数索引 -> 变量)
	Args []map[int]*Expr
	// Disabled 关闭影子跟踪 (所有事件直接忽略)
	Disabled bool
}

// NewState 创建空影子状态
func NewState() *State {
	return &State{}
}

// Top 返回栈顶起第n个符号值 (n=0为栈顶)
func (cs *State) Top(n int) (SymbolValue, bool) {
	if len(cs.Stack) <= n {
		return Unknown, false
	}
	return cs.Stack[len(cs.Stack)-1-n], true
}

// Depth 影子栈深度
func (cs *State) Depth() int {
	return len(cs.Stack)
}

func maxUBits(n uint) *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), n)
	return v.Sub(v, big.NewInt(1))
}

func twoPow(n uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), n)
}

// resolveValue 从具体值生成常量公式 (用于一侧Unknown的混合运算)
func resolveValue(v trace.Value) *Expr {
	return NewConst(v.AsBig())
}

// resolveArg 为新顶层帧的一个局部槽位生成初始符号值
// 标量参数得到新的自由变量，其余为Unknown
func resolveArg(cmdIndex, paramIndex int, kind trace.ValueKind) SymbolValue {
	switch kind {
	case trace.KindBool, trace.KindU8, trace.KindU16, trace.KindU32,
		trace.KindU64, trace.KindU128, trace.KindU256:
		return Symbolic(NewVar(fmt.Sprintf("%d.%d", cmdIndex, paramIndex)))
	}
	return Unknown
}

func (cs *State) push(v SymbolValue) {
	cs.Stack = append(cs.Stack, v)
}

func (cs *State) pop() (SymbolValue, bool) {
	if len(cs.Stack) == 0 {
		return Unknown, false
	}
	v := cs.Stack[len(cs.Stack)-1]
	cs.Stack = cs.Stack[:len(cs.Stack)-1]
	return v, true
}

// NotifyEvent 按trace事件推进影子状态
// 必须在Oracle回调之后、针对同一事件调用恰好一次
// 返回该指令引入的路径约束 (无则为nil)；影子栈与具体栈长度
// 不一致视为内部不变量被破坏，返回错误终止本次trace的分析
func (cs *State) NotifyEvent(ev trace.Event, st *trace.State) (*Expr, error) {
	if cs.Disabled {
		return nil, nil
	}

	if st != nil {
		// VM在错误/重入后可能整体清空操作数栈，影子栈跟随复位
		if len(cs.Stack) != st.Depth() && st.Depth() == 0 {
			cs.Stack = cs.Stack[:0]
		}
		// 栈外效果 (native推入/弹出、错误回卷) 直接映射到影子栈
		if eff, ok := ev.(trace.EffectEvent); ok {
			switch eff.Kind {
			case trace.EffectPush:
				cs.push(Unknown)
			case trace.EffectPop, trace.EffectExecutionError:
				cs.pop()
			}
		}
		if len(cs.Stack) != st.Depth() {
			return nil, fmt.Errorf("concolic stack out of sync: shadow=%d concrete=%d event=%T",
				len(cs.Stack), st.Depth(), ev)
		}
	}

	switch e := ev.(type) {
	case trace.ExternalEvent:
		if e.Tag == trace.ExternalCallStart {
			cs.Stack = cs.Stack[:0]
			cs.Locals = cs.Locals[:0]
		}
	case trace.OpenFrameEvent:
		cs.openFrame(e.Frame)
	case trace.CloseFrameEvent:
		if len(cs.Locals) > 0 {
			cs.Locals = cs.Locals[:len(cs.Locals)-1]
		}
	case trace.InstructionEvent:
		return cs.applyInstruction(e.PC, e.Op, e.Imm, st)
	}
	return nil, nil
}

// openFrame 处理新帧: 顶层帧引入参数变量，内层帧从栈上搬运实参
func (cs *State) openFrame(frame *trace.Frame) {
	if frame == nil {
		return
	}
	paramCount := frame.ParamCount

	if len(cs.Locals) == 0 {
		// 顶层帧: 按槽位类型引入自由变量
		var locals []SymbolValue
		if len(frame.LocalKinds) == 0 {
			locals = make([]SymbolValue, paramCount)
		} else {
			locals = make([]SymbolValue, 0, len(frame.LocalKinds))
			for i, kind := range frame.LocalKinds {
				locals = append(locals, resolveArg(len(cs.Args), i, kind))
			}
		}
		for len(locals) < paramCount {
			locals = append(locals, Unknown)
		}
		args := map[int]*Expr{}
		for i := 0; i < paramCount && i < len(locals); i++ {
			if locals[i].Known() {
				args[i] = locals[i].Expr()
			}
		}
		cs.Args = append(cs.Args, args)
		cs.Locals = append(cs.Locals, locals)
		return
	}

	// 内层帧: 栈顶的实参符号值转入新帧局部槽位
	argLen := paramCount
	if argLen > len(cs.Stack) {
		argLen = len(cs.Stack)
	}
	skip := len(cs.Stack) - argLen
	locals := make([]SymbolValue, argLen)
	copy(locals, cs.Stack[skip:])
	cs.Stack = cs.Stack[:skip]
	for len(locals) < len(frame.LocalKinds) {
		locals = append(locals, Unknown)
	}
	cs.Locals = append(cs.Locals, locals)

	if frame.IsNative {
		// native函数不产生指令事件，返回值直接以Unknown占位
		for i := 0; i < frame.ReturnNum; i++ {
			cs.push(Unknown)
		}
	}
}

// binOperands 弹出两个符号操作数并按需用具体值补全Unknown一侧
// 两侧均Unknown时返回nil,nil
func (cs *State) binOperands(st *trace.State) (lhs, rhs *Expr) {
	rv, _ := cs.pop()
	lv, _ := cs.pop()
	vals := st.LastN(2)
	if vals == nil {
		return nil, nil
	}
	switch {
	case lv.Known() && rv.Known():
		return lv.Expr(), rv.Expr()
	case lv.Known():
		return lv.Expr(), resolveValue(vals[1])
	case rv.Known():
		return resolveValue(vals[0]), rv.Expr()
	}
	return nil, nil
}

// applyInstruction 按指令更新影子栈，返回可选路径约束
func (cs *State) applyInstruction(pc uint16, op trace.Opcode, imm int, st *trace.State) (*Expr, error) {
	switch op {
	case trace.OpPop, trace.OpBrTrue, trace.OpBrFalse, trace.OpAbort,
		trace.OpVecImmBorrow, trace.OpVecMutBorrow:
		cs.pop()

	case trace.OpLdU8, trace.OpLdU16, trace.OpLdU32, trace.OpLdU64,
		trace.OpLdU128, trace.OpLdU256, trace.OpLdConst:
		cs.push(Unknown)

	case trace.OpLdFalse:
		cs.push(Symbolic(NewConstUint64(0)))
	case trace.OpLdTrue:
		cs.push(Symbolic(NewConstUint64(1)))

	case trace.OpCastU8, trace.OpCastU16, trace.OpCastU32,
		trace.OpCastU64, trace.OpCastU128, trace.OpCastU256:
		// 转换不改变栈形状；已知符号值引入目标位宽的上界约束
		top, ok := cs.Top(0)
		if !ok {
			log.Printf("[Concolic] Stack underflow at pc %d", pc)
			return nil, nil
		}
		if top.Known() {
			width := op.CastTargetWidth()
			return NewBinary(ExprLe, top.Expr(), NewConst(maxUBits(width))), nil
		}

	case trace.OpAdd, trace.OpSub, trace.OpMul, trace.OpDiv, trace.OpMod:
		exprOp := map[trace.Opcode]ExprOp{
			trace.OpAdd: ExprAdd, trace.OpSub: ExprSub, trace.OpMul: ExprMul,
			trace.OpDiv: ExprDiv, trace.OpMod: ExprMod,
		}[op]
		if l, r := cs.binOperands(st); l != nil {
			cs.push(Symbolic(NewBinary(exprOp, l, r)))
		} else {
			cs.push(Unknown)
		}

	case trace.OpAnd, trace.OpBitAnd, trace.OpOr, trace.OpBitOr, trace.OpXor:
		cs.applyBitwise(op, st)

	case trace.OpShl:
		return cs.applyShl(st), nil

	case trace.OpShr:
		rv, _ := cs.pop()
		lv, _ := cs.pop()
		vals := st.LastN(2)
		if lv.Known() && !rv.Known() && vals != nil {
			shift := uint(vals[1].AsUint256().Uint64())
			cs.push(Symbolic(NewBinary(ExprDiv, lv.Expr(), NewConst(twoPow(shift)))))
		} else {
			cs.push(Unknown)
		}

	case trace.OpNot:
		v, ok := cs.pop()
		if !ok {
			log.Printf("[Concolic] Stack underflow at pc %d", pc)
			return nil, nil
		}
		if v.Known() {
			cs.push(Symbolic(NewUnary(ExprNot, v.Expr())))
		} else {
			cs.push(Unknown)
		}

	case trace.OpCopyLoc, trace.OpImmBorrowLoc, trace.OpMutBorrowLoc:
		cs.pushLocal(pc, imm, false)
	case trace.OpMoveLoc:
		cs.pushLocal(pc, imm, true)

	case trace.OpStLoc:
		v, ok := cs.pop()
		if !ok {
			log.Printf("[Concolic] Stack underflow at pc %d", pc)
			return nil, nil
		}
		cs.storeLocal(pc, imm, v)

	case trace.OpWriteRef, trace.OpVecPushBack:
		cs.pop()
		cs.pop()

	case trace.OpReadRef:
		v, _ := cs.pop()
		cs.push(v)

	case trace.OpEq, trace.OpNeq, trace.OpLt, trace.OpGt, trace.OpLe, trace.OpGe:
		return cs.applyComparison(op, st), nil
	}
	return nil, nil
}

// applyBitwise 位运算: 仅在恰好一侧已知时保留公式 (另一侧作为常量掩码)
func (cs *State) applyBitwise(op trace.Opcode, st *trace.State) {
	exprOp := ExprAnd
	switch op {
	case trace.OpOr, trace.OpBitOr:
		exprOp = ExprOr
	case trace.OpXor:
		exprOp = ExprXor
	}

	rv, _ := cs.pop()
	lv, _ := cs.pop()
	vals := st.LastN(2)
	if vals == nil {
		cs.push(Unknown)
		return
	}
	switch {
	case lv.Known() && !rv.Known():
		cs.push(Symbolic(NewBinary(exprOp, lv.Expr(), resolveValue(vals[1]))))
	case !lv.Known() && rv.Known():
		cs.push(Symbolic(NewBinary(exprOp, rv.Expr(), resolveValue(vals[0]))))
	default:
		// 双侧符号的位运算不在支持的理论内，退化为Unknown
		cs.push(Unknown)
	}
}

// applyShl 左移: 已知被移位值时生成 (l * 2^r) mod 2^w，并返回溢出约束
func (cs *State) applyShl(st *trace.State) *Expr {
	rv, _ := cs.pop()
	lv, _ := cs.pop()
	vals := st.LastN(2)
	if vals == nil || !lv.Known() || rv.Known() {
		cs.push(Unknown)
		return nil
	}
	width := vals[0].Bitwidth()
	shift := uint(vals[1].AsUint256().Uint64())
	shl := NewBinary(ExprMul, lv.Expr(), NewConst(twoPow(shift)))
	cs.push(Symbolic(NewBinary(ExprMod, shl, NewConst(twoPow(width)))))
	// 移出位宽即溢出
	return NewBinary(ExprGt, shl, NewConst(maxUBits(width)))
}

// applyComparison 比较指令: 产生布尔结果并按具体执行方向返回路径约束
func (cs *State) applyComparison(op trace.Opcode, st *trace.State) *Expr {
	exprOp := map[trace.Opcode]ExprOp{
		trace.OpEq: ExprEq, trace.OpNeq: ExprNe,
		trace.OpLt: ExprLt, trace.OpGt: ExprGt,
		trace.OpLe: ExprLe, trace.OpGe: ExprGe,
	}[op]

	vals := st.LastN(2)
	l, r := cs.binOperands(st)
	if l == nil {
		cs.push(Unknown)
		return nil
	}
	cmp := NewBinary(exprOp, l, r)
	cs.push(Symbolic(cmp))
	if vals == nil {
		return nil
	}

	// 具体执行走到的方向即为约束方向
	taken := false
	c := vals[0].Cmp(vals[1])
	switch op {
	case trace.OpEq:
		taken = c == 0
	case trace.OpNeq:
		taken = c != 0
	case trace.OpLt:
		taken = c < 0
	case trace.OpGt:
		taken = c > 0
	case trace.OpLe:
		taken = c <= 0
	case trace.OpGe:
		taken = c >= 0
	}
	if taken {
		return cmp
	}
	return NewUnary(ExprNot, cmp)
}

// pushLocal 复制/借用/移动局部槽位到栈顶
func (cs *State) pushLocal(pc uint16, idx int, move bool) {
	if len(cs.Locals) == 0 {
		log.Printf("[Concolic] No locals available at pc %d", pc)
		cs.push(Unknown)
		return
	}
	locals := cs.Locals[len(cs.Locals)-1]
	if idx < 0 || idx >= len(locals) {
		log.Printf("[Concolic] Local index %d out of bounds at pc %d", idx, pc)
		cs.push(Unknown)
		return
	}
	cs.push(locals[idx])
	if move {
		locals[idx] = Unknown // moved-from
	}
}

// storeLocal 栈顶写回局部槽位
func (cs *State) storeLocal(pc uint16, idx int, v SymbolValue) {
	if len(cs.Locals) == 0 {
		log.Printf("[Concolic] No locals available at pc %d", pc)
		return
	}
	locals := cs.Locals[len(cs.Locals)-1]
	if idx < 0 {
		return
	}
	for len(locals) <= idx {
		locals = append(locals, Unknown)
	}
	locals[idx] = v
	cs.Locals[len(cs.Locals)-1] = locals
}
