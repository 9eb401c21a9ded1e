package types

import (
	"fmt"
	"sort"
	"strings"
)

// ==================== Oracle检测结果 ====================

// Finding 单条Oracle检测结果
// 创建后不可变；引擎只收集，不修改
type Finding struct {
	Oracle   string         `json:"oracle"`   // 产生该结果的Oracle名称
	Severity Severity       `json:"severity"` // 严重程度
	Extra    map[string]any `json:"extra"`    // 结构化上下文 (function/pc等)
}

// NewFinding 创建检测结果
// extra中始终补充oracle名称；function与pc由调用方按可用性填入
func NewFinding(oracle string, severity Severity, extra map[string]any) Finding {
	if extra == nil {
		extra = map[string]any{}
	}
	extra["oracle"] = oracle
	return Finding{
		Oracle:   oracle,
		Severity: severity,
		Extra:    extra,
	}
}

// String 返回单行文本描述 (用于text格式输出)
func (f Finding) String() string {
	keys := make([]string, 0, len(f.Extra))
	for k := range f.Extra {
		if k == "oracle" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f.Extra[k]))
	}
	return fmt.Sprintf("[%s] %s %s", f.Severity, f.Oracle, strings.Join(parts, " "))
}
