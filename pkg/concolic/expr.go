package concolic

import (
	"fmt"
	"math/big"
	"strings"
)

// ==================== 符号公式 ====================

// ExprOp 符号公式节点的算子
// 标量整数理论: 常量/变量/算术/移位/掩码/比较
type ExprOp int

const (
	ExprConst ExprOp = iota // 整数常量
	ExprVar                 // 自由变量 (来自调用参数)
	ExprAdd
	ExprSub
	ExprMul
	ExprDiv // 整数除法
	ExprMod
	ExprAnd
	ExprOr
	ExprXor
	ExprNot
	ExprShl
	ExprShr
	ExprEq
	ExprNe
	ExprLt
	ExprLe
	ExprGt
	ExprGe
)

var exprOpNames = []string{
	"const", "var", "add", "sub", "mul", "div", "mod",
	"and", "or", "xor", "not", "shl", "shr",
	"eq", "ne", "lt", "le", "gt", "ge",
}

// String 返回算子名
func (op ExprOp) String() string {
	if int(op) >= 0 && int(op) < len(exprOpNames) {
		return exprOpNames[op]
	}
	return "unknown"
}

// Expr 符号公式节点
// 不可变；共享子节点构成DAG，遍历方必须自带节点数上限
type Expr struct {
	Op    ExprOp
	Const *big.Int // ExprConst时有效
	Name  string   // ExprVar时有效
	Args  []*Expr  // 其余算子的子节点
}

// NewConst 创建常量节点
func NewConst(v *big.Int) *Expr {
	return &Expr{Op: ExprConst, Const: new(big.Int).Set(v)}
}

// NewConstUint64 创建uint64常量节点
func NewConstUint64(v uint64) *Expr {
	return &Expr{Op: ExprConst, Const: new(big.Int).SetUint64(v)}
}

// NewVar 创建变量节点
func NewVar(name string) *Expr {
	return &Expr{Op: ExprVar, Name: name}
}

// NewBinary 创建二元节点
func NewBinary(op ExprOp, lhs, rhs *Expr) *Expr {
	return &Expr{Op: op, Args: []*Expr{lhs, rhs}}
}

// NewUnary 创建一元节点
func NewUnary(op ExprOp, arg *Expr) *Expr {
	return &Expr{Op: op, Args: []*Expr{arg}}
}

// IsComparison 是否为比较节点 (可作为路径约束)
func (e *Expr) IsComparison() bool {
	switch e.Op {
	case ExprEq, ExprNe, ExprLt, ExprLe, ExprGt, ExprGe:
		return true
	}
	return false
}

// String 返回S表达式形式，用于日志与求解器缓存key
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Op {
	case ExprConst:
		return e.Const.String()
	case ExprVar:
		return e.Name
	default:
		parts := make([]string, 0, len(e.Args)+1)
		parts = append(parts, e.Op.String())
		for _, a := range e.Args {
			parts = append(parts, a.String())
		}
		return fmt.Sprintf("(%s)", strings.Join(parts, " "))
	}
}
