package oracle

import (
	"log"

	"movefuzz/pkg/types"
)

// ==================== 标记缺陷检测 ====================

// TypedBugMode 被测合约主动上报缺陷的通道选择
type TypedBugMode int

const (
	// TypedBugAbortCode 合约以特定abort code终止来标记缺陷
	TypedBugAbortCode TypedBugMode = iota
	// TypedBugCrashEvent 合约在成功执行中发出标记事件
	TypedBugCrashEvent
)

// DefaultCrashAbortCode abort code模式的默认哨兵值
const DefaultCrashAbortCode uint64 = 0xdeadbeef

// 事件模式的哨兵事件类型
const (
	CrashEventModule = "oracle"
	CrashEventName   = "Crash"
)

// TypedBugOracle 合约自标记缺陷检测
// 两种模式互斥，构造时二选一；仅在done_execution评估
type TypedBugOracle struct {
	NoopOracle

	mode      TypedBugMode
	abortCode uint64
}

// NewTypedBugOracle 创建标记缺陷检测器
// abortCode为0时使用默认哨兵值 (仅abort code模式关心)
func NewTypedBugOracle(mode TypedBugMode, abortCode uint64) *TypedBugOracle {
	if abortCode == 0 {
		abortCode = DefaultCrashAbortCode
	}
	return &TypedBugOracle{mode: mode, abortCode: abortCode}
}

// Name 实现Oracle接口
func (o *TypedBugOracle) Name() string {
	return "TypedBugOracle"
}

// DoneExecution 按模式检查最终执行效果
func (o *TypedBugOracle) DoneExecution(effects *types.ExecutionEffects) ([]types.Finding, error) {
	if effects == nil {
		return nil, nil
	}
	switch o.mode {
	case TypedBugAbortCode:
		if effects.Status != types.StatusAborted {
			return nil, nil
		}
		if effects.AbortCode.Uint64() != o.abortCode {
			return nil, nil
		}
		extra := map[string]any{"abort_code": effects.AbortCode.String()}
		return []types.Finding{
			types.NewFinding(o.Name(), types.SeverityCritical, extra),
		}, nil

	case TypedBugCrashEvent:
		// 只有外部框架判定"成功可接受"的执行才扫描标记事件
		if !effects.AllowedSuccess {
			return nil, nil
		}
		for _, ev := range effects.Events {
			if ev.Module == CrashEventModule && ev.Name == CrashEventName {
				log.Printf("[Oracle] Typed bug event detected: %s::%s", ev.Module, ev.Name)
				extra := map[string]any{"event": ev}
				// 首个命中即停，单次执行至多一条
				return []types.Finding{
					types.NewFinding(o.Name(), types.SeverityCritical, extra),
				}, nil
			}
		}
	}
	return nil, nil
}
