// +build z3

package solver

import (
	"context"
	"fmt"
	"math/big"
	"time"

	z3 "github.com/mitchellh/go-z3"

	"movefuzz/pkg/concolic"
)

// Z3Solver Z3 SMT求解器封装
// 把路径约束翻译到整数理论后求模型；不支持的算子 (除法/位运算)
// 所在的约束直接丢弃，只影响种子产出，不是错误
type Z3Solver struct {
	config  *Config
	context *z3.Context
	z3cfg   *z3.Config
	stats   Z3Stats
}

// Z3Stats Z3求解器统计
type Z3Stats struct {
	TotalSolves      int
	SuccessfulSolves int
	FailedSolves     int
	TimeoutSolves    int
	TotalSolveTime   time.Duration
}

// NewZ3Solver 创建Z3求解器
func NewZ3Solver(config *Config) (*Z3Solver, error) {
	z3Config := z3.NewConfig()
	z3Config.SetInt("timeout", int(config.GetTimeoutDuration().Milliseconds()))

	return &Z3Solver{
		config:  config,
		context: z3.NewContext(z3Config),
		z3cfg:   z3Config,
	}, nil
}

// Close 关闭Z3求解器并释放资源
func (zs *Z3Solver) Close() {
	if zs.context != nil {
		zs.context.Close()
	}
	if zs.z3cfg != nil {
		zs.z3cfg.Close()
	}
}

// Solve 求解约束集合，从模型中抽取变量取值
func (zs *Z3Solver) Solve(ctx context.Context, constraints []*concolic.Expr) ([]Seed, error) {
	startTime := time.Now()
	zs.stats.TotalSolves++

	solver := zs.context.NewSolver()
	defer solver.Close()

	vars := map[string]*z3.AST{}
	asserted := 0
	for _, c := range constraints {
		if ast := zs.translate(c, vars); ast != nil {
			solver.Assert(ast)
			asserted++
		}
	}
	if asserted == 0 {
		zs.stats.FailedSolves++
		return nil, fmt.Errorf("no translatable constraints out of %d", len(constraints))
	}

	switch solver.Check() {
	case z3.True:
		model := solver.Model()
		defer model.Close()

		seeds := []Seed{}
		for name, val := range model.Assignments() {
			if _, ok := vars[name]; !ok {
				continue
			}
			n, ok := new(big.Int).SetString(val.String(), 10)
			if !ok {
				continue
			}
			seeds = append(seeds, Seed{Var: name, Value: n, Reason: "solution"})
		}
		zs.stats.SuccessfulSolves++
		zs.stats.TotalSolveTime += time.Since(startTime)
		return seeds, nil

	case z3.False:
		zs.stats.FailedSolves++
		return nil, fmt.Errorf("unsatisfiable constraints")

	default:
		zs.stats.TimeoutSolves++
		return nil, fmt.Errorf("z3 returned undefined (possibly timeout)")
	}
}

// translate 把公式节点翻译为Z3整数理论AST
// 无法表达的节点返回nil，整条约束被放弃
func (zs *Z3Solver) translate(e *concolic.Expr, vars map[string]*z3.AST) *z3.AST {
	if e == nil {
		return nil
	}
	ctx := zs.context

	switch e.Op {
	case concolic.ExprConst:
		if !e.Const.IsInt64() {
			return nil
		}
		return ctx.Int(int(e.Const.Int64()), ctx.IntSort())
	case concolic.ExprVar:
		if v, ok := vars[e.Name]; ok {
			return v
		}
		v := ctx.Const(ctx.Symbol(e.Name), ctx.IntSort())
		vars[e.Name] = v
		return v
	case concolic.ExprNot:
		if len(e.Args) != 1 {
			return nil
		}
		inner := zs.translate(e.Args[0], vars)
		if inner == nil {
			return nil
		}
		return inner.Not()
	}

	if len(e.Args) != 2 {
		return nil
	}
	lhs := zs.translate(e.Args[0], vars)
	rhs := zs.translate(e.Args[1], vars)
	if lhs == nil || rhs == nil {
		return nil
	}

	switch e.Op {
	case concolic.ExprAdd:
		return lhs.Add(rhs)
	case concolic.ExprSub:
		return lhs.Sub(rhs)
	case concolic.ExprMul:
		return lhs.Mul(rhs)
	case concolic.ExprEq:
		return lhs.Eq(rhs)
	case concolic.ExprNe:
		return lhs.Eq(rhs).Not()
	case concolic.ExprLt:
		return lhs.Lt(rhs)
	case concolic.ExprLe:
		return lhs.Le(rhs)
	case concolic.ExprGt:
		return lhs.Gt(rhs)
	case concolic.ExprGe:
		return lhs.Ge(rhs)
	}
	// 除法/取模/位运算不在整数理论的映射范围内
	return nil
}
