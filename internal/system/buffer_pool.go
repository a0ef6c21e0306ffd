package system

import (
	"image"
	"sync"
)

// imagePool recycles *image.RGBA buffers, keyed by dimensions. The refinement
// loop allocates one page-sized marker copy per assessment round, so during a
// search the same geometry is requested over and over.
type imagePool struct {
	pools map[string]*sync.Pool
	mu    sync.RWMutex
}

var markerPool = &imagePool{
	pools: make(map[string]*sync.Pool),
}

// GetImage returns an *image.RGBA with the given bounds, reusing a recycled
// buffer when one of the same geometry is available. The pixel data of a
// reused buffer is stale; callers must overwrite it fully.
func GetImage(rect image.Rectangle) *image.RGBA {
	return markerPool.get(rect)
}

// PutImage hands a buffer back for reuse. The caller must not touch the
// image afterwards.
func PutImage(img *image.RGBA) {
	markerPool.put(img)
}

func (p *imagePool) get(rect image.Rectangle) *image.RGBA {
	key := rect.String()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(rect)
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

func (p *imagePool) put(img *image.RGBA) {
	if img == nil {
		return
	}
	key := img.Rect.String()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
