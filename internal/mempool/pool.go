package mempool

import (
	"sync"
)

// Sized pools for input tensor buffers. A 300x300x3 frame is 270000 elements, so
// buffers are bucketed in 4 KiB-element steps.

const classStep = 4096

// sizeClass rounds n up to the next multiple of classStep.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return ((n + classStep - 1) / classStep) * classStep
}

// bucketPool keeps one sync.Pool per size class for element type T.
type bucketPool[T any] struct {
	pools sync.Map // size class -> *sync.Pool
}

func (b *bucketPool[T]) pool(cls int) *sync.Pool {
	pAny, _ := b.pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

func (b *bucketPool[T]) get(n int) []T {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	bufPtr, ok := b.pool(cls).Get().(*[]T)
	if !ok || cap(*bufPtr) < cls {
		buf := make([]T, cls)
		return buf[:n]
	}
	return (*bufPtr)[:n]
}

func (b *bucketPool[T]) put(buf []T) {
	if cap(buf) < classStep {
		return
	}
	// Only exact class capacities are pooled so get never sees a short buffer.
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		return
	}
	full := buf[:cap(buf)]
	b.pool(cls).Put(&full)
}

var (
	float32Buffers bucketPool[float32]
	uint8Buffers   bucketPool[uint8]
)

// GetFloat32 returns a []float32 of length n. Contents are not zeroed.
// Return it with PutFloat32 when done.
func GetFloat32(n int) []float32 { return float32Buffers.get(n) }

// PutFloat32 returns a buffer to the pool. Nil is ignored.
func PutFloat32(buf []float32) { float32Buffers.put(buf) }

// GetUint8 returns a []uint8 of length n. Contents are not zeroed.
// Return it with PutUint8 when done.
func GetUint8(n int) []uint8 { return uint8Buffers.get(n) }

// PutUint8 returns a buffer to the pool. Nil is ignored.
func PutUint8(buf []uint8) { uint8Buffers.put(buf) }
