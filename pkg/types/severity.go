package types

// ==================== 严重程度 ====================

// Severity 检测结果的严重程度等级
// Minor < Medium < Major < Critical
type Severity int

const (
	SeverityMinor    Severity = iota // 轻微 (如冗余类型转换)
	SeverityMedium                   // 中等 (如精度丢失、移位溢出)
	SeverityMajor                    // 严重 (如疑似死循环)
	SeverityCritical                 // 致命 (如合约主动标记的崩溃)
)

// String 返回严重程度的字符串表示
func (s Severity) String() string {
	names := []string{"Minor", "Medium", "Major", "Critical"}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// MarshalJSON 序列化为字符串形式，便于报告阅读
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
