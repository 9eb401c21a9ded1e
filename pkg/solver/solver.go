// Package solver 把影子执行收集的路径约束变成边界种子值
// 本地算法只处理 "变量 与 常量比较" 形态的简单约束；复杂约束
// 可选交给Z3 (构建时 -tags z3 启用)，失败时回退本地
package solver

import (
	"context"
	"log"
	"math/big"
	"time"

	"movefuzz/pkg/concolic"
)

// ==================== 配置 ====================

// Config 求解器配置
type Config struct {
	Strategy string `yaml:"strategy" json:"strategy"` // "local", "z3", "hybrid"
	Timeout  string `yaml:"timeout" json:"timeout"`   // 超时时间字符串 "3s"
	MaxSeeds int    `yaml:"max_seeds" json:"max_seeds"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Strategy: "local",
		Timeout:  "3s",
		MaxSeeds: 20,
	}
}

// MergeWithDefaults 合并用户配置与默认配置
func (c *Config) MergeWithDefaults() {
	defaults := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = defaults.Strategy
	}
	if c.Timeout == "" {
		c.Timeout = defaults.Timeout
	}
	if c.MaxSeeds == 0 {
		c.MaxSeeds = defaults.MaxSeeds
	}
}

// GetTimeoutDuration 解析超时时间字符串
func (c *Config) GetTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// ==================== 种子 ====================

// Seed 求解得到的一个变量取值建议
type Seed struct {
	Var    string   `json:"var"`
	Value  *big.Int `json:"value"`
	Reason string   `json:"reason"` // "boundary", "boundary_adjacent", "solution"
}

// Stats 求解统计
type Stats struct {
	TotalSolves    int
	LocalSolves    int
	Z3Solves       int
	FallbackSolves int
}

// ==================== 求解器 ====================

// ConstraintSolver 约束求解器
// 本地边界值算法 + 可选Z3
type ConstraintSolver struct {
	config   *Config
	z3Solver *Z3Solver
	stats    Stats
}

// NewConstraintSolver 创建求解器
func NewConstraintSolver(config *Config) *ConstraintSolver {
	if config == nil {
		config = DefaultConfig()
	}
	config.MergeWithDefaults()

	cs := &ConstraintSolver{config: config}
	if config.Strategy == "z3" || config.Strategy == "hybrid" {
		z3Solver, err := NewZ3Solver(config)
		if err != nil {
			log.Printf("[Solver] Warning: Failed to initialize Z3: %v, falling back to local only", err)
		} else {
			cs.z3Solver = z3Solver
			log.Printf("[Solver] Z3 solver initialized (strategy=%s)", config.Strategy)
		}
	}
	return cs
}

// Close 释放Z3资源
func (cs *ConstraintSolver) Close() {
	if cs.z3Solver != nil {
		cs.z3Solver.Close()
	}
}

// Stats 返回求解统计
func (cs *ConstraintSolver) Stats() Stats {
	return cs.stats
}

// Solve 求解一批路径约束，产出去重后的种子值
func (cs *ConstraintSolver) Solve(ctx context.Context, constraints []*concolic.Expr) ([]Seed, error) {
	cs.stats.TotalSolves++

	if cs.z3Solver != nil {
		log.Printf("[Solver] Using Z3 for %d constraints", len(constraints))
		seeds, err := cs.z3Solver.Solve(ctx, constraints)
		if err == nil {
			cs.stats.Z3Solves++
			return cs.capSeeds(seeds), nil
		}
		log.Printf("[Solver] Z3 failed: %v, falling back to local solver", err)
		cs.stats.FallbackSolves++
	}

	cs.stats.LocalSolves++
	return cs.solveLocal(ctx, constraints)
}

// solveLocal 本地边界值求解
// 只识别一侧是变量、另一侧是常量的比较；其余约束直接跳过
func (cs *ConstraintSolver) solveLocal(ctx context.Context, constraints []*concolic.Expr) ([]Seed, error) {
	solveCtx, cancel := context.WithTimeout(ctx, cs.config.GetTimeoutDuration())
	defer cancel()

	seeds := []Seed{}
	seen := map[string]bool{}

	for _, c := range constraints {
		select {
		case <-solveCtx.Done():
			log.Printf("[Solver] Timeout reached, generated %d seeds", len(seeds))
			return seeds, solveCtx.Err()
		default:
		}

		name, value, ok := splitComparison(c)
		if !ok {
			continue
		}
		for _, s := range boundarySeeds(name, value) {
			key := s.Var + "=" + s.Value.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			seeds = append(seeds, s)
		}
	}
	return cs.capSeeds(seeds), nil
}

func (cs *ConstraintSolver) capSeeds(seeds []Seed) []Seed {
	if cs.config.MaxSeeds > 0 && len(seeds) > cs.config.MaxSeeds {
		return seeds[:cs.config.MaxSeeds]
	}
	return seeds
}

// splitComparison 拆出 "变量 op 常量" 形态的比较
// not包装只是方向取反，边界值本身不变，直接穿透
func splitComparison(e *concolic.Expr) (string, *big.Int, bool) {
	for e != nil && e.Op == concolic.ExprNot && len(e.Args) == 1 {
		e = e.Args[0]
	}
	if e == nil || !e.IsComparison() || len(e.Args) != 2 {
		return "", nil, false
	}
	lhs, rhs := e.Args[0], e.Args[1]
	switch {
	case lhs.Op == concolic.ExprVar && rhs.Op == concolic.ExprConst:
		return lhs.Name, rhs.Const, true
	case lhs.Op == concolic.ExprConst && rhs.Op == concolic.ExprVar:
		return rhs.Name, lhs.Const, true
	}
	return "", nil, false
}

// boundarySeeds 围绕比较常量生成边界与临近值
func boundarySeeds(name string, value *big.Int) []Seed {
	seeds := []Seed{
		{Var: name, Value: new(big.Int).Set(value), Reason: "boundary"},
	}
	if value.Sign() > 0 {
		seeds = append(seeds, Seed{
			Var: name, Value: new(big.Int).Sub(value, big.NewInt(1)), Reason: "boundary_adjacent",
		})
	}
	seeds = append(seeds, Seed{
		Var: name, Value: new(big.Int).Add(value, big.NewInt(1)), Reason: "boundary_adjacent",
	})
	return seeds
}
