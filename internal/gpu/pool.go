package gpu

import (
	"math/bits"
	"sync"
)

// MinClass is the smallest buffer size class in bytes.
const MinClass = 4 << 10

// SizeClass rounds n up to a power of two, at least MinClass.
func SizeClass(n int) int {
	if n <= MinClass {
		return MinClass
	}
	return 1 << bits.Len(uint(n-1))
}

// PoolStats counts pool traffic.
type PoolStats struct {
	Created   uint64
	Reused    uint64
	Released  uint64
	Destroyed uint64
	Free      int
	FreeBytes int
}

// BufferPool keeps released buffers bucketed by size class so mesh swaps reuse GPU
// memory instead of reallocating it. It locks internally, but the device calls it
// makes mean it must only be used from the GPU thread.
type BufferPool struct {
	mu       sync.Mutex
	dev      Device
	free     map[int][]Buffer
	maxFree  int
	stats    PoolStats
	draining bool
}

// NewBufferPool keeps at most maxFreePerClass idle buffers per class; extra releases
// are destroyed. Zero means unbounded.
func NewBufferPool(dev Device, maxFreePerClass int) *BufferPool {
	return &BufferPool{dev: dev, free: make(map[int][]Buffer), maxFree: maxFreePerClass}
}

// classFor picks the class that fits both the vertex bytes and the index bytes.
func classFor(vertexBytes, indexBytes int) int {
	return SizeClass(max(vertexBytes, 4*indexBytes))
}

// Acquire returns an idle buffer of the right class or creates one.
func (p *BufferPool) Acquire(vertexBytes, indexBytes int) (Buffer, error) {
	class := classFor(vertexBytes, indexBytes)

	p.mu.Lock()
	if list := p.free[class]; len(list) > 0 {
		buf := list[len(list)-1]
		p.free[class] = list[:len(list)-1]
		p.stats.Reused++
		p.stats.Free--
		p.stats.FreeBytes -= class
		p.mu.Unlock()
		return buf, nil
	}
	p.mu.Unlock()

	buf, err := p.dev.CreateBuffer(class, class/4)
	if err != nil {
		return Buffer{}, err
	}
	buf.Class = class
	p.mu.Lock()
	p.stats.Created++
	p.mu.Unlock()
	return buf, nil
}

// Release hands buf back for reuse.
func (p *BufferPool) Release(buf Buffer) {
	if !buf.Valid() {
		return
	}
	p.mu.Lock()
	p.stats.Released++
	if p.draining || (p.maxFree > 0 && len(p.free[buf.Class]) >= p.maxFree) {
		p.stats.Destroyed++
		p.mu.Unlock()
		p.dev.DestroyBuffer(buf)
		return
	}
	p.free[buf.Class] = append(p.free[buf.Class], buf)
	p.stats.Free++
	p.stats.FreeBytes += buf.Class
	p.mu.Unlock()
}

// Drain destroys every idle buffer. Later releases are destroyed immediately.
func (p *BufferPool) Drain() {
	p.mu.Lock()
	p.draining = true
	free := p.free
	p.free = make(map[int][]Buffer)
	p.stats.Free = 0
	p.stats.FreeBytes = 0
	for _, list := range free {
		p.stats.Destroyed += uint64(len(list))
	}
	p.mu.Unlock()

	for _, list := range free {
		for _, buf := range list {
			p.dev.DestroyBuffer(buf)
		}
	}
}

func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
