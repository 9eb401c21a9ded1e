package solver

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movefuzz/pkg/concolic"
)

// TestDefaultConfig 测试默认配置
func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "local", c.Strategy)
	assert.Equal(t, 20, c.MaxSeeds)
	assert.Greater(t, c.GetTimeoutDuration(), time.Duration(0))
}

// TestMergeWithDefaults 测试部分配置补全
func TestMergeWithDefaults(t *testing.T) {
	c := &Config{MaxSeeds: 5}
	c.MergeWithDefaults()
	assert.Equal(t, "local", c.Strategy)
	assert.Equal(t, 5, c.MaxSeeds)
}

func ltConstraint(name string, v int64) *concolic.Expr {
	return concolic.NewBinary(concolic.ExprLt, concolic.NewVar(name), concolic.NewConst(big.NewInt(v)))
}

// TestSolveBoundarySeeds 测试边界值种子生成
func TestSolveBoundarySeeds(t *testing.T) {
	cs := NewConstraintSolver(nil)
	defer cs.Close()

	seeds, err := cs.Solve(context.Background(), []*concolic.Expr{ltConstraint("0.0", 100)})
	require.NoError(t, err)
	require.Len(t, seeds, 3)

	values := map[string]string{}
	for _, s := range seeds {
		assert.Equal(t, "0.0", s.Var)
		values[s.Value.String()] = s.Reason
	}
	assert.Equal(t, "boundary", values["100"])
	assert.Equal(t, "boundary_adjacent", values["99"])
	assert.Equal(t, "boundary_adjacent", values["101"])
}

// TestSolveZeroBoundary 测试常量为0时不生成负值
func TestSolveZeroBoundary(t *testing.T) {
	cs := NewConstraintSolver(nil)
	defer cs.Close()

	seeds, err := cs.Solve(context.Background(), []*concolic.Expr{
		concolic.NewBinary(concolic.ExprEq, concolic.NewVar("x"), concolic.NewConstUint64(0)),
	})
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "0", seeds[0].Value.String())
	assert.Equal(t, "1", seeds[1].Value.String())
}

// TestSolvePenetratesNot 测试not包装穿透 (边界值不变)
func TestSolvePenetratesNot(t *testing.T) {
	cs := NewConstraintSolver(nil)
	defer cs.Close()

	negated := concolic.NewUnary(concolic.ExprNot, ltConstraint("x", 10))
	seeds, err := cs.Solve(context.Background(), []*concolic.Expr{negated})
	require.NoError(t, err)
	assert.Len(t, seeds, 3)
}

// TestSolveConstOnLeft 测试常量在左侧的比较
func TestSolveConstOnLeft(t *testing.T) {
	cs := NewConstraintSolver(nil)
	defer cs.Close()

	c := concolic.NewBinary(concolic.ExprGe, concolic.NewConstUint64(7), concolic.NewVar("y"))
	seeds, err := cs.Solve(context.Background(), []*concolic.Expr{c})
	require.NoError(t, err)
	require.NotEmpty(t, seeds)
	assert.Equal(t, "y", seeds[0].Var)
	assert.Equal(t, "7", seeds[0].Value.String())
}

// TestSolveSkipsNonComparison 测试不可识别约束直接跳过
func TestSolveSkipsNonComparison(t *testing.T) {
	cs := NewConstraintSolver(nil)
	defer cs.Close()

	constraints := []*concolic.Expr{
		concolic.NewBinary(concolic.ExprAdd, concolic.NewVar("x"), concolic.NewConstUint64(1)),
		// 双变量比较本地算法不处理
		concolic.NewBinary(concolic.ExprLt, concolic.NewVar("x"), concolic.NewVar("y")),
		ltConstraint("z", 5),
	}
	seeds, err := cs.Solve(context.Background(), constraints)
	require.NoError(t, err)
	for _, s := range seeds {
		assert.Equal(t, "z", s.Var, "Only the recognizable constraint contributes")
	}
	assert.Len(t, seeds, 3)
}

// TestSolveDeduplicates 测试重复边界值去重
func TestSolveDeduplicates(t *testing.T) {
	cs := NewConstraintSolver(nil)
	defer cs.Close()

	constraints := []*concolic.Expr{
		ltConstraint("x", 10),
		ltConstraint("x", 10),
		ltConstraint("x", 11), // 与前者共享边界10与11
	}
	seeds, err := cs.Solve(context.Background(), constraints)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, s := range seeds {
		key := s.Var + "=" + s.Value.String()
		assert.Falsef(t, seen[key], "Duplicate seed %s", key)
		seen[key] = true
	}
	// 10,9,11 + 12 (11±1去重后只新增12)
	assert.Len(t, seeds, 4)
}

// TestSolveRespectsMaxSeeds 测试种子数量上限
func TestSolveRespectsMaxSeeds(t *testing.T) {
	cs := NewConstraintSolver(&Config{Strategy: "local", MaxSeeds: 2})
	defer cs.Close()

	constraints := []*concolic.Expr{
		ltConstraint("a", 10),
		ltConstraint("b", 20),
		ltConstraint("c", 30),
	}
	seeds, err := cs.Solve(context.Background(), constraints)
	require.NoError(t, err)
	assert.Len(t, seeds, 2)
}

// TestSolveStats 测试统计计数
func TestSolveStats(t *testing.T) {
	cs := NewConstraintSolver(nil)
	defer cs.Close()

	_, err := cs.Solve(context.Background(), []*concolic.Expr{ltConstraint("x", 1)})
	require.NoError(t, err)
	_, err = cs.Solve(context.Background(), nil)
	require.NoError(t, err)

	stats := cs.Stats()
	assert.Equal(t, 2, stats.TotalSolves)
	assert.Equal(t, 2, stats.LocalSolves)
	assert.Equal(t, 0, stats.Z3Solves)
}
