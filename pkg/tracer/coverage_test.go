package tracer

import "testing"

// TestCoverageHitsAfterBranch 测试只在分支后的首条指令落覆盖
func TestCoverageHitsAfterBranch(t *testing.T) {
	c := NewCoverage(256)
	c.CallPackage("m::f")

	// 进入函数视为一次控制流转移，首条指令命中
	c.MayDoCoverage(0)
	if c.CoveredEdges() != 1 {
		t.Fatalf("CoveredEdges = %d, want 1", c.CoveredEdges())
	}

	// 顺序执行不再记录
	c.MayDoCoverage(1)
	c.MayDoCoverage(2)
	if c.CoveredEdges() != 1 {
		t.Errorf("Straight-line code should not add edges, got %d", c.CoveredEdges())
	}

	// 分支后的首条指令再记一条边
	c.WillBranch()
	c.MayDoCoverage(9)
	if c.CoveredEdges() != 2 {
		t.Errorf("CoveredEdges = %d, want 2", c.CoveredEdges())
	}
}

// TestCoverageEdgeDependsOnPrev 测试边key与来边相关
func TestCoverageEdgeDependsOnPrev(t *testing.T) {
	c := NewCoverage(0)
	c.CallPackage("m::f")

	c.MayDoCoverage(3)
	c.WillBranch()
	c.MayDoCoverage(7)
	c.WillBranch()
	c.MayDoCoverage(11)

	if c.CoveredEdges() != 3 {
		t.Errorf("CoveredEdges = %d, want 3 distinct edges", c.CoveredEdges())
	}
}

// TestCoverageSaturates 测试计数饱和不回绕
func TestCoverageSaturates(t *testing.T) {
	c := NewCoverage(256)
	c.CallPackage("m::f")

	for i := 0; i < 300; i++ {
		c.WillBranch()
		c.MayDoCoverage(5)
		c.WillBranch()
		c.MayDoCoverage(5)
	}

	saturated := false
	for _, b := range c.Map() {
		if b == 0xff {
			saturated = true
		}
	}
	if !saturated {
		t.Error("Expected a saturated counter after 300 hits on the same edge")
	}
	if c.CoveredEdges() == 0 {
		t.Error("Expected some covered edges")
	}
}

// TestCoverageEmptyPackageStack 测试无函数作用域时不记录
func TestCoverageEmptyPackageStack(t *testing.T) {
	c := NewCoverage(256)
	c.WillBranch()
	c.MayDoCoverage(1)

	if c.CoveredEdges() != 0 {
		t.Errorf("No package scope should record nothing, got %d", c.CoveredEdges())
	}
}
