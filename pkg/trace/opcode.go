package trace

// ==================== 指令集 ====================

// Opcode 被观测VM的已解码指令
// 仅覆盖引擎关心的Move字节码子集；其余指令统一按OpUnknown处理
type Opcode int

const (
	OpUnknown Opcode = iota

	// 栈与常量
	OpPop
	OpLdU8
	OpLdU16
	OpLdU32
	OpLdU64
	OpLdU128
	OpLdU256
	OpLdConst
	OpLdTrue
	OpLdFalse

	// 局部变量
	OpCopyLoc
	OpMoveLoc
	OpStLoc
	OpImmBorrowLoc
	OpMutBorrowLoc

	// 控制流
	OpBrTrue
	OpBrFalse
	OpBranch
	OpAbort
	OpRet
	OpCall

	// 算术
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// 位运算与移位
	OpBitAnd
	OpBitOr
	OpXor
	OpShl
	OpShr
	OpNot

	// 逻辑
	OpAnd
	OpOr

	// 比较
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe

	// 类型转换
	OpCastU8
	OpCastU16
	OpCastU32
	OpCastU64
	OpCastU128
	OpCastU256

	// 引用与容器
	OpReadRef
	OpWriteRef
	OpVecPushBack
	OpVecImmBorrow
	OpVecMutBorrow
)

var opcodeNames = map[Opcode]string{
	OpUnknown:      "UNKNOWN",
	OpPop:          "POP",
	OpLdU8:         "LD_U8",
	OpLdU16:        "LD_U16",
	OpLdU32:        "LD_U32",
	OpLdU64:        "LD_U64",
	OpLdU128:       "LD_U128",
	OpLdU256:       "LD_U256",
	OpLdConst:      "LD_CONST",
	OpLdTrue:       "LD_TRUE",
	OpLdFalse:      "LD_FALSE",
	OpCopyLoc:      "COPY_LOC",
	OpMoveLoc:      "MOVE_LOC",
	OpStLoc:        "ST_LOC",
	OpImmBorrowLoc: "IMM_BORROW_LOC",
	OpMutBorrowLoc: "MUT_BORROW_LOC",
	OpBrTrue:       "BR_TRUE",
	OpBrFalse:      "BR_FALSE",
	OpBranch:       "BRANCH",
	OpAbort:        "ABORT",
	OpRet:          "RET",
	OpCall:         "CALL",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpMod:          "MOD",
	OpBitAnd:       "BIT_AND",
	OpBitOr:        "BIT_OR",
	OpXor:          "XOR",
	OpShl:          "SHL",
	OpShr:          "SHR",
	OpNot:          "NOT",
	OpAnd:          "AND",
	OpOr:           "OR",
	OpEq:           "EQ",
	OpNeq:          "NEQ",
	OpLt:           "LT",
	OpGt:           "GT",
	OpLe:           "LE",
	OpGe:           "GE",
	OpCastU8:       "CAST_U8",
	OpCastU16:      "CAST_U16",
	OpCastU32:      "CAST_U32",
	OpCastU64:      "CAST_U64",
	OpCastU128:     "CAST_U128",
	OpCastU256:     "CAST_U256",
	OpReadRef:      "READ_REF",
	OpWriteRef:     "WRITE_REF",
	OpVecPushBack:  "VEC_PUSH_BACK",
	OpVecImmBorrow: "VEC_IMM_BORROW",
	OpVecMutBorrow: "VEC_MUT_BORROW",
}

// String 返回指令助记符
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseOpcode 从助记符解析指令 (用于trace JSON)
func ParseOpcode(name string) Opcode {
	for op, n := range opcodeNames {
		if n == name {
			return op
		}
	}
	return OpUnknown
}

// IsConditionalBranch 是否为条件分支指令
func (op Opcode) IsConditionalBranch() bool {
	return op == OpBrTrue || op == OpBrFalse
}

// CastTargetWidth 返回类型转换指令的目标位宽；非转换指令返回0
func (op Opcode) CastTargetWidth() uint {
	switch op {
	case OpCastU8:
		return 8
	case OpCastU16:
		return 16
	case OpCastU32:
		return 32
	case OpCastU64:
		return 64
	case OpCastU128:
		return 128
	case OpCastU256:
		return 256
	}
	return 0
}
