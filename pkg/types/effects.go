package types

// ==================== 执行结果 ====================

// ExecStatus 顶层执行的最终状态
type ExecStatus int

const (
	StatusSuccess ExecStatus = iota // 正常结束
	StatusAborted                   // 合约abort终止 (携带abort code)
	StatusError                     // VM层错误 (无abort code)
)

// String 返回状态的字符串表示
func (s ExecStatus) String() string {
	names := []string{"Success", "Aborted", "Error"}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// ContractEvent 合约执行期间发出的应用层事件
type ContractEvent struct {
	Module  string         `json:"module"` // 事件类型所在模块
	Name    string         `json:"name"`   // 事件类型名
	Payload map[string]any `json:"payload,omitempty"`
}

// ExecutionEffects 整个顶层执行结束后的最终效果
// 由外部VM/执行层提供，引擎在done_execution时消费
type ExecutionEffects struct {
	Status    ExecStatus      `json:"status"`
	AbortCode FlexibleUint64  `json:"abort_code"` // 仅StatusAborted时有效
	Events    []ContractEvent `json:"events,omitempty"`

	// AllowedSuccess 外部fuzzing框架的"成功可接受"判定
	// 引擎不计算该值，仅在事件模式的TypedBugOracle中参考
	AllowedSuccess bool `json:"allowed_success"`
}

// Failed 执行是否以失败告终
func (e *ExecutionEffects) Failed() bool {
	return e.Status != StatusSuccess
}
