// +build !z3

package solver

import (
	"context"
	"errors"
	"time"

	"movefuzz/pkg/concolic"
)

// Z3Solver Z3 SMT求解器封装 (stub版本 - Z3未启用)
type Z3Solver struct {
	config *Config
	stats  Z3Stats
}

// Z3Stats Z3求解器统计
type Z3Stats struct {
	TotalSolves      int
	SuccessfulSolves int
	FailedSolves     int
	TimeoutSolves    int
	TotalSolveTime   time.Duration
}

// NewZ3Solver 创建Z3求解器 (stub - 返回错误)
func NewZ3Solver(config *Config) (*Z3Solver, error) {
	return nil, errors.New("Z3 solver not available - rebuild with '-tags z3' to enable")
}

// Close 关闭Z3求解器 (stub)
func (zs *Z3Solver) Close() {
	// No-op
}

// Solve 求解约束 (stub - 返回错误)
func (zs *Z3Solver) Solve(ctx context.Context, constraints []*concolic.Expr) ([]Seed, error) {
	return nil, errors.New("Z3 solver not available")
}
