package trace

import "movefuzz/pkg/types"

// ==================== Trace事件模型 ====================

// Event VM在执行过程中向引擎通报的事件
// 固定的封闭集合: OpenFrame / Instruction / Effect / CloseFrame / External
type Event interface {
	eventTag()
}

// Frame 一次函数调用的激活记录描述
type Frame struct {
	ID         uint64              `json:"id"`
	Function   types.FunctionIdent `json:"function"`
	ParamCount int                 `json:"param_count"`
	LocalKinds []ValueKind         `json:"local_kinds,omitempty"` // 参数在前的局部槽位类型
	ReturnNum  int                 `json:"return_num"`
	IsNative   bool                `json:"is_native"`
}

// OpenFrameEvent 新调用帧开始执行
type OpenFrameEvent struct {
	Frame *Frame
}

// InstructionEvent 一条已解码指令即将执行
// 操作数栈快照与影子栈此刻都反映指令生效前的状态
type InstructionEvent struct {
	PC  uint16
	Op  Opcode
	Imm int // 立即数操作数 (局部槽位索引/跳转目标)，无则为0
}

// EffectKind 指令执行产生的副作用类别
type EffectKind int

const (
	EffectPush EffectKind = iota
	EffectPop
	EffectExecutionError
)

// EffectEvent 指令执行后的副作用通知
type EffectEvent struct {
	Kind EffectKind
}

// CloseFrameEvent 调用帧执行结束
type CloseFrameEvent struct {
	FrameID uint64
}

// ExternalEvent 执行生命周期标记 (如一次顶层调用开始)
type ExternalEvent struct {
	Tag string
}

// ExternalCallStart 顶层调用开始的标记值，影子状态在此处整体复位
const ExternalCallStart = "MoveCallStart"

func (OpenFrameEvent) eventTag()   {}
func (InstructionEvent) eventTag() {}
func (EffectEvent) eventTag()      {}
func (CloseFrameEvent) eventTag()  {}
func (ExternalEvent) eventTag()    {}
