// Package oracle 提供可插拔的缺陷检测器集合
// 每个Oracle独立观察trace事件并产出Finding；检测结果纯观察性，
// 绝不中断被测执行。hook返回error表示分析本身无法继续 (致命)，
// 与"检测到缺陷"是两条永不混用的通道
package oracle

import (
	"movefuzz/pkg/concolic"
	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// ==================== Oracle契约 ====================

// Oracle 检测器接口，四个hook对应VM的四个通报点
// 所有hook必须同步完成、不阻塞不做IO；防御性跳过 (栈深不足、
// 无符号信息) 返回(nil, nil)而不是error
type Oracle interface {
	// Name Oracle的稳定名称，写入每条Finding
	Name() string

	// OpenFrame 新调用帧开始执行；可在此复位按函数维度的状态
	OpenFrame(frame *trace.Frame, st *trace.State, sym *concolic.State,
		fn *types.FunctionIdent) ([]types.Finding, error)

	// BeforeInstruction 指令即将执行；具体栈与影子栈均为指令生效前视图
	BeforeInstruction(pc uint16, op trace.Opcode, st *trace.State,
		sym *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error)

	// Event 通用通知通道，覆盖指令执行事件与生命周期事件
	Event(ev trace.Event, st *trace.State, sym *concolic.State,
		fn *types.FunctionIdent) ([]types.Finding, error)

	// DoneExecution 顶层执行全部结束，最终效果可用
	DoneExecution(effects *types.ExecutionEffects) ([]types.Finding, error)
}

// NoopOracle 全空实现；具体Oracle内嵌它以获得默认hook
type NoopOracle struct{}

// OpenFrame 默认空实现
func (NoopOracle) OpenFrame(*trace.Frame, *trace.State, *concolic.State,
	*types.FunctionIdent) ([]types.Finding, error) {
	return nil, nil
}

// BeforeInstruction 默认空实现
func (NoopOracle) BeforeInstruction(uint16, trace.Opcode, *trace.State,
	*concolic.State, *types.FunctionIdent) ([]types.Finding, error) {
	return nil, nil
}

// Event 默认空实现
func (NoopOracle) Event(trace.Event, *trace.State, *concolic.State,
	*types.FunctionIdent) ([]types.Finding, error) {
	return nil, nil
}

// DoneExecution 默认空实现
func (NoopOracle) DoneExecution(*types.ExecutionEffects) ([]types.Finding, error) {
	return nil, nil
}

// locationExtra 构造带函数与pc上下文的extra payload
func locationExtra(fn *types.FunctionIdent, pc uint16) map[string]any {
	extra := map[string]any{"pc": pc}
	if fn != nil {
		extra["function"] = fn.String()
	}
	return extra
}

// ==================== 可禁用包装 ====================

// Disableable 按配置整体关闭某个Oracle的包装器
type Disableable struct {
	Oracle   Oracle
	Disabled bool
}

// NewDisableable 创建包装器
func NewDisableable(o Oracle, disabled bool) *Disableable {
	return &Disableable{Oracle: o, Disabled: disabled}
}

// Name 透传内层名称
func (d *Disableable) Name() string {
	return d.Oracle.Name()
}

// OpenFrame 禁用时直接返回空
func (d *Disableable) OpenFrame(frame *trace.Frame, st *trace.State,
	sym *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error) {
	if d.Disabled {
		return nil, nil
	}
	return d.Oracle.OpenFrame(frame, st, sym, fn)
}

// BeforeInstruction 禁用时直接返回空
func (d *Disableable) BeforeInstruction(pc uint16, op trace.Opcode, st *trace.State,
	sym *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error) {
	if d.Disabled {
		return nil, nil
	}
	return d.Oracle.BeforeInstruction(pc, op, st, sym, fn)
}

// Event 禁用时直接返回空
func (d *Disableable) Event(ev trace.Event, st *trace.State,
	sym *concolic.State, fn *types.FunctionIdent) ([]types.Finding, error) {
	if d.Disabled {
		return nil, nil
	}
	return d.Oracle.Event(ev, st, sym, fn)
}

// DoneExecution 禁用时直接返回空
func (d *Disableable) DoneExecution(effects *types.ExecutionEffects) ([]types.Finding, error) {
	if d.Disabled {
		return nil, nil
	}
	return d.Oracle.DoneExecution(effects)
}
