package trace

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// ==================== 具体值 ====================

// ValueKind 操作数栈上具体值的类型
type ValueKind int

const (
	KindBool ValueKind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindRef    // 引用 (快照其指向的值)
	KindOpaque // 结构体/vector等非标量值
)

var kindNames = map[ValueKind]string{
	KindBool:   "bool",
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindU64:    "u64",
	KindU128:   "u128",
	KindU256:   "u256",
	KindRef:    "ref",
	KindOpaque: "opaque",
}

// String 返回类型名
func (k ValueKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseValueKind 从类型名解析 (用于trace JSON)
func ParseValueKind(name string) ValueKind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindOpaque
}

// Value VM操作数栈上一个槽位的具体值快照
// 标量值统一用uint256承载；bool按0/1处理
// 引用槽位持有被引用值的快照 (Elem)
type Value struct {
	Kind ValueKind
	Num  uint256.Int // 标量payload
	Elem *Value      // KindRef时指向被引用值的快照
}

// NewBool 构造bool值
func NewBool(b bool) Value {
	v := Value{Kind: KindBool}
	if b {
		v.Num.SetOne()
	}
	return v
}

// NewUint 构造指定位宽的无符号整数值
func NewUint(kind ValueKind, n uint64) Value {
	v := Value{Kind: kind}
	v.Num.SetUint64(n)
	return v
}

// NewUintBig 构造大整数值 (u128/u256)
func NewUintBig(kind ValueKind, n *big.Int) Value {
	v := Value{Kind: kind}
	v.Num.SetFromBig(n)
	return v
}

// NewRef 构造引用槽位
func NewRef(inner Value) Value {
	return Value{Kind: KindRef, Elem: &inner}
}

// Deref 穿透引用得到底层值
func (v Value) Deref() Value {
	for v.Kind == KindRef && v.Elem != nil {
		v = *v.Elem
	}
	return v
}

// IsScalar 是否为可参与数值推理的标量
func (v Value) IsScalar() bool {
	d := v.Deref()
	return d.Kind >= KindBool && d.Kind <= KindU256
}

// Bitwidth 返回值类型的声明位宽 (bool=1)；非标量返回0
func (v Value) Bitwidth() uint {
	switch v.Deref().Kind {
	case KindBool:
		return 1
	case KindU8:
		return 8
	case KindU16:
		return 16
	case KindU32:
		return 32
	case KindU64:
		return 64
	case KindU128:
		return 128
	case KindU256:
		return 256
	}
	return 0
}

// SigBits 返回具体值的有效位数 (0值为0)
func (v Value) SigBits() uint {
	d := v.Deref()
	return uint(d.Num.BitLen())
}

// AsUint256 返回标量payload (穿透引用)
func (v Value) AsUint256() *uint256.Int {
	d := v.Deref()
	n := d.Num
	return &n
}

// AsBig 返回无界整数表示
func (v Value) AsBig() *big.Int {
	return v.AsUint256().ToBig()
}

// Cmp 比较两个标量值 (-1/0/1)
func (v Value) Cmp(o Value) int {
	return v.AsUint256().Cmp(o.AsUint256())
}

// String 返回 "kind(decimal)" 形式
func (v Value) String() string {
	d := v.Deref()
	if d.Kind == KindOpaque {
		return "opaque"
	}
	if v.Kind == KindRef {
		return fmt.Sprintf("&%s(%s)", d.Kind, d.Num.Dec())
	}
	return fmt.Sprintf("%s(%s)", d.Kind, d.Num.Dec())
}
