package oracle

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// hashTo64 把任意字符串压缩为固定64位key
// 位置/值统一走hash是为了让内存与比较开销与底层值位宽 (8~256位)
// 无关；hash碰撞带来的噪声对启发式Oracle可容忍
func hashTo64(s string) uint64 {
	h := crypto.Keccak256([]byte(s))
	return binary.BigEndian.Uint64(h[:8])
}
