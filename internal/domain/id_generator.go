package domain

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IDGenerator produces local order ids in the format
// ORD_<epoch_ms>_<6-digit-counter>. The counter guarantees monotonic
// ordering within a single process generation even when two calls land in
// the same millisecond.
type IDGenerator struct {
	counter uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("ORD_%d_%06d", time.Now().UnixMilli(), n%1_000_000)
}
