package trace

// ==================== 具体执行状态快照 ====================

// State VM在事件回调时刻的只读具体状态
// 由VM拥有，回调期间借用；Oracle只读不改
type State struct {
	// OperandStack 当前帧视角下的操作数栈 (栈顶在末尾)
	OperandStack []Value
}

// NewState 创建空状态
func NewState() *State {
	return &State{}
}

// Depth 操作数栈深度
func (s *State) Depth() int {
	return len(s.OperandStack)
}

// Top 返回栈顶起第n个值 (n=0为栈顶)，不足时ok=false
func (s *State) Top(n int) (Value, bool) {
	if len(s.OperandStack) <= n {
		return Value{}, false
	}
	return s.OperandStack[len(s.OperandStack)-1-n], true
}

// LastN 返回栈顶的n个值 (从栈底方向到栈顶)，不足时返回nil
// 防御性约定: 深度不足不是错误，调用方据此跳过本条指令
func (s *State) LastN(n int) []Value {
	if len(s.OperandStack) < n {
		return nil
	}
	return s.OperandStack[len(s.OperandStack)-n:]
}
