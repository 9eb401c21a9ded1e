package tracer

import (
	"hash/fnv"
	"log"
)

// ==================== 覆盖率记录 ====================

// CoverageMapSize 默认覆盖位图大小 (2的幂，便于取模)
const CoverageMapSize = 1 << 16

// Coverage pc边覆盖位图
// 只在分支后的第一条指令处记录，包内pc与包hash混合成边key；
// 只做记录，不参与任何调度决策
type Coverage struct {
	hits []byte

	packages  []uint64
	hadBranch bool
	prev      uint64
}

// NewCoverage 创建覆盖记录器；size<=0时用默认大小
func NewCoverage(size int) *Coverage {
	if size <= 0 {
		size = CoverageMapSize
	}
	return &Coverage{hits: make([]byte, size)}
}

func hashPackage(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// CallPackage 进入新函数作用域
func (c *Coverage) CallPackage(name string) {
	c.packages = append(c.packages, hashPackage(name))
	c.hadBranch = true
}

// CallEndPackage 离开当前函数作用域
func (c *Coverage) CallEndPackage() {
	if len(c.packages) > 0 {
		c.packages = c.packages[:len(c.packages)-1]
	}
	c.hadBranch = true
}

// WillBranch 标记即将发生控制流转移
func (c *Coverage) WillBranch() {
	c.hadBranch = true
}

// MayDoCoverage 分支后的首条指令处落一次覆盖
func (c *Coverage) MayDoCoverage(pc uint16) {
	if !c.hadBranch {
		return
	}
	c.hadBranch = false
	c.hitCov(pc)
}

func (c *Coverage) hitCov(pc uint16) {
	if len(c.packages) == 0 {
		log.Printf("[Coverage] Package stack empty at pc %d", pc)
		return
	}
	pkg := c.packages[len(c.packages)-1]
	mixed := (uint64(pc) >> 4) ^ (uint64(pc) << 8) ^ pkg
	hit := (c.prev ^ mixed) % uint64(len(c.hits))
	c.prev = mixed
	if c.hits[hit] < 0xff {
		c.hits[hit]++
	}
}

// Map 返回位图 (只读视角)
func (c *Coverage) Map() []byte {
	return c.hits
}

// CoveredEdges 返回命中的边数量
func (c *Coverage) CoveredEdges() int {
	n := 0
	for _, b := range c.hits {
		if b != 0 {
			n++
		}
	}
	return n
}
