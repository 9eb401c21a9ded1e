// Package tracer 实现trace观察与Oracle分发引擎
// VM每执行一条指令通知一次引擎: 引擎先让全部Oracle观察事件
// (指令生效前视图)，再推进concolic影子状态，二者严格同步、
// 单线程、无内部并发；检测结果只累积，绝不打断执行
package tracer

import (
	"fmt"
	"log"

	"movefuzz/pkg/concolic"
	"movefuzz/pkg/oracle"
	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// ==================== 执行判定 ====================

// ExitKind 单次执行的整体判定
type ExitKind int

const (
	ExitOk    ExitKind = iota // 未发现任何缺陷
	ExitCrash                 // 至少产出一条Finding
)

// String 返回判定名
func (k ExitKind) String() string {
	if k == ExitCrash {
		return "Crash"
	}
	return "Ok"
}

// ==================== 分发引擎 ====================

// Analyzer 单次执行的trace分析器
// 持有注册顺序固定的Oracle集合与影子状态；一个实例只服务
// 一次执行，并发的执行各自独立构造，状态绝不共享
type Analyzer struct {
	oracles  []oracle.Oracle
	concolic *concolic.State
	coverage *Coverage

	currentFunctions []types.FunctionIdent
	findings         []types.Finding
	constraints      []*concolic.Expr
	verdict          ExitKind
	verbose          bool
}

// NewAnalyzer 创建分析器
func NewAnalyzer(oracles []oracle.Oracle) *Analyzer {
	return &Analyzer{
		oracles:  oracles,
		concolic: concolic.NewState(),
		coverage: NewCoverage(0),
		verdict:  ExitOk,
	}
}

// SetVerbose 打开事件级日志
func (a *Analyzer) SetVerbose(v bool) {
	a.verbose = v
}

// currentFunction 当前执行函数 (调用栈顶)；无帧时为nil
func (a *Analyzer) currentFunction() *types.FunctionIdent {
	if len(a.currentFunctions) == 0 {
		return nil
	}
	return &a.currentFunctions[len(a.currentFunctions)-1]
}

// collect 累积一批检测结果；非空即把判定翻到Crash
func (a *Analyzer) collect(findings []types.Finding) {
	if len(findings) == 0 {
		return
	}
	a.verdict = ExitCrash
	a.findings = append(a.findings, findings...)
}

// dispatchEvent 把事件按注册顺序交给每个Oracle
// 指令事件同时触发BeforeInstruction与Event两个hook；
// 任何Oracle返回error即为致命，立刻终止本次trace的分析
func (a *Analyzer) dispatchEvent(ev trace.Event, st *trace.State) error {
	fn := a.currentFunction()
	ie, isInstr := ev.(trace.InstructionEvent)

	for _, o := range a.oracles {
		if isInstr {
			findings, err := o.BeforeInstruction(ie.PC, ie.Op, st, a.concolic, fn)
			if err != nil {
				return fmt.Errorf("oracle %s failed at pc %d: %w", o.Name(), ie.PC, err)
			}
			a.collect(findings)
		}
		if frameEv, ok := ev.(trace.OpenFrameEvent); ok {
			findings, err := o.OpenFrame(frameEv.Frame, st, a.concolic, fn)
			if err != nil {
				return fmt.Errorf("oracle %s failed at frame open: %w", o.Name(), err)
			}
			a.collect(findings)
		}
		findings, err := o.Event(ev, st, a.concolic, fn)
		if err != nil {
			return fmt.Errorf("oracle %s failed: %w", o.Name(), err)
		}
		a.collect(findings)
	}
	return nil
}

// HandleEvent 处理一个VM trace事件
// st为VM在该时刻的只读具体状态快照；调用发生在VM挂起期间，
// 返回前必须完成全部Oracle工作
func (a *Analyzer) HandleEvent(ev trace.Event, st *trace.State) error {
	if a.verbose {
		log.Printf("[Tracer] Event %T", ev)
	}

	// 帧边界先维护当前函数栈，Oracle在回调里要看到进入后的函数
	switch e := ev.(type) {
	case trace.OpenFrameEvent:
		if e.Frame != nil {
			a.currentFunctions = append(a.currentFunctions, e.Frame.Function)
			a.coverage.CallPackage(e.Frame.Function.String())
		}
	case trace.CloseFrameEvent:
		a.coverage.CallEndPackage()
		if len(a.currentFunctions) > 0 {
			a.currentFunctions = a.currentFunctions[:len(a.currentFunctions)-1]
		}
	}

	// Oracle先观察 (指令生效前的双栈视图)，影子状态随后推进
	if err := a.dispatchEvent(ev, st); err != nil {
		return err
	}
	constraint, err := a.concolic.NotifyEvent(ev, st)
	if err != nil {
		return err
	}
	if constraint != nil {
		a.constraints = append(a.constraints, constraint)
	}

	if ie, ok := ev.(trace.InstructionEvent); ok {
		a.coverage.MayDoCoverage(ie.PC)
		switch ie.Op {
		case trace.OpBrTrue, trace.OpBrFalse, trace.OpBranch:
			a.coverage.WillBranch()
		}
	}
	return nil
}

// DoneExecution 顶层执行结束，把最终效果交给每个Oracle
func (a *Analyzer) DoneExecution(effects *types.ExecutionEffects) error {
	for _, o := range a.oracles {
		findings, err := o.DoneExecution(effects)
		if err != nil {
			return fmt.Errorf("oracle %s failed at done: %w", o.Name(), err)
		}
		a.collect(findings)
	}
	return nil
}

// Findings 返回迄今累积的全部检测结果 (注册顺序拼接)
// 被中止的trace已累积的结果依然有效
func (a *Analyzer) Findings() []types.Finding {
	return a.findings
}

// Verdict 返回整体判定
func (a *Analyzer) Verdict() ExitKind {
	return a.verdict
}

// Constraints 返回影子执行收集到的路径约束
func (a *Analyzer) Constraints() []*concolic.Expr {
	return a.constraints
}

// Coverage 返回覆盖记录器
func (a *Analyzer) Coverage() *Coverage {
	return a.coverage
}

// Concolic 返回影子状态 (Oracle之外的调用方只读)
func (a *Analyzer) Concolic() *concolic.State {
	return a.concolic
}
