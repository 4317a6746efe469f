package reactor

import (
	"github.com/valyala/bytebufferpool"
)

// PageAllocator supplies and recycles the byte slices a Stream uses for its
// internal pages. Acquire must return a slice with len == capacity; Release
// returns a slice previously handed out by Acquire (never a foreign one).
//
// This is the DOMAIN STACK substitution for a fixed-size memory-node
// allocator: embedders who want bounded, GC-pressure-free pages can supply
// fixedPoolAllocator, while the default pulls from a pooled ecosystem
// allocator instead of calling make([]byte, n) on every page.
type PageAllocator interface {
	Acquire(capacity int) []byte
	Release(buf []byte)
}

// bufferPoolAllocator is the default PageAllocator, backed by
// bytebufferpool so repeated page churn reuses underlying arrays instead of
// pressuring the GC.
type bufferPoolAllocator struct {
	pool bytebufferpool.Pool
}

// NewBufferPoolAllocator returns the default pooled allocator.
func NewBufferPoolAllocator() PageAllocator {
	return &bufferPoolAllocator{}
}

func (a *bufferPoolAllocator) Acquire(capacity int) []byte {
	bb := a.pool.Get()
	if cap(bb.B) < capacity {
		bb.B = make([]byte, capacity)
	} else {
		bb.B = bb.B[:capacity]
	}
	return bb.B
}

func (a *bufferPoolAllocator) Release(buf []byte) {
	bb := &bytebufferpool.ByteBuffer{B: buf}
	a.pool.Put(bb)
}

// fixedPoolAllocator recycles fixed-capacity buffers through a slice-backed
// freelist rather than a sync.Pool, so page lifetime is fully deterministic
// and GC never reclaims a page behind the Stream's back.
type fixedPoolAllocator struct {
	size int
	free [][]byte
}

// NewFixedPoolAllocator returns an allocator that pools buffers of exactly
// size bytes. Acquire for a different capacity returns a freshly made,
// unpooled slice, and Release drops buffers whose capacity is not size.
func NewFixedPoolAllocator(size int) PageAllocator {
	return &fixedPoolAllocator{size: size}
}

func (a *fixedPoolAllocator) Acquire(capacity int) []byte {
	if capacity != a.size {
		return make([]byte, capacity)
	}
	if n := len(a.free); n > 0 {
		buf := a.free[n-1]
		a.free = a.free[:n-1]
		return buf[:capacity]
	}
	return make([]byte, capacity)
}

func (a *fixedPoolAllocator) Release(buf []byte) {
	if cap(buf) != a.size {
		return
	}
	a.free = append(a.free, buf[:a.size])
}

// page is one node of a Stream's linked-list of buffers. size is the usable
// payload length (<= cap(data)).
type page struct {
	data []byte
	size int
	next *page
	prev *page
}

// lruBase sets the LRU free-page cache's target size (lruBase pages kept
// warm; it is allowed to grow to 2*lruBase before pages are actually
// released back to the allocator).
const lruBase = 2

const (
	streamLowWaterFloor = 1024
	streamHighWaterCap  = 0x10000
)

// Stream is a paged, in-memory byte FIFO: Write appends, Read/Peek/Drop
// consume from the front. Internally it holds a doubly-linked chain of
// fixed-size pages sized between a clamped low/high watermark, plus a small
// LRU cache of recently-freed pages to absorb churn from write/drain
// cycles without round-tripping every page through the allocator.
type Stream struct {
	alloc PageAllocator

	head *page
	tail *page

	lru     *page
	lruTail *page
	lruSize int

	posRead  int
	posWrite int
	size     int

	lowWater  int
	highWater int
}

// NewStream creates a Stream using alloc for page storage, with watermarks
// clamped to [1024, 65536] (and swapped if given in the wrong order).
func NewStream(alloc PageAllocator, low, high int) *Stream {
	if low < streamLowWaterFloor {
		low = streamLowWaterFloor
	} else if low > streamHighWaterCap {
		low = streamHighWaterCap
	}
	if high < streamLowWaterFloor {
		high = streamLowWaterFloor
	} else if high > streamHighWaterCap {
		high = streamHighWaterCap
	}
	if low >= high {
		low, high = high, low
	}
	if alloc == nil {
		alloc = NewBufferPoolAllocator()
	}
	return &Stream{alloc: alloc, lowWater: low, highWater: high}
}

func (s *Stream) newPage() *page {
	size := pageSizeOf{}.next(s.size, s.lowWater, s.highWater)
	return &page{data: s.alloc.Acquire(size)}
}

// pageSizeOf exists purely to namespace the page sizing rule without
// polluting Stream's method set.
type pageSizeOf struct{}

func (pageSizeOf) next(currentSize, low, high int) int {
	n := currentSize
	if n >= high {
		return high
	}
	if n <= low {
		return low
	}
	return n
}

func (s *Stream) acquirePage() *page {
	if s.lruSize == 0 {
		for i := 0; i < lruBase; i++ {
			p := s.newPage()
			s.lruPush(p)
		}
	}
	p := s.lru
	s.lru = p.next
	if s.lru != nil {
		s.lru.prev = nil
	} else {
		s.lruTail = nil
	}
	s.lruSize--
	p.next, p.prev = nil, nil
	p.size = 0
	return p
}

func (s *Stream) lruPush(p *page) {
	p.prev = s.lruTail
	p.next = nil
	if s.lruTail != nil {
		s.lruTail.next = p
	} else {
		s.lru = p
	}
	s.lruTail = p
	s.lruSize++
}

func (s *Stream) releasePage(p *page) {
	s.lruPush(p)
	if s.lruSize < lruBase*2 {
		return
	}
	for s.lruSize > lruBase {
		victim := s.lru
		s.lru = victim.next
		if s.lru != nil {
			s.lru.prev = nil
		} else {
			s.lruTail = nil
		}
		s.lruSize--
		s.alloc.Release(victim.data)
	}
}

// Size returns the number of bytes currently buffered.
func (s *Stream) Size() int { return s.size }

// Write appends data to the stream, growing pages as needed from the LRU
// cache (or the allocator, if the cache is empty). It always succeeds.
func (s *Stream) Write(data []byte) int {
	total := 0
	for len(data) > 0 {
		var canWrite int
		if s.tail == nil {
			canWrite = 0
		} else {
			canWrite = len(s.tail.data) - s.posWrite
		}
		if canWrite == 0 {
			p := s.acquirePage()
			if s.tail != nil {
				s.tail.next = p
				p.prev = s.tail
			} else {
				s.head = p
			}
			s.tail = p
			s.posWrite = 0
			canWrite = len(p.data)
		}

		toWrite := len(data)
		if toWrite > canWrite {
			toWrite = canWrite
		}
		copy(s.tail.data[s.posWrite:], data[:toWrite])
		s.tail.size = s.posWrite + toWrite
		s.posWrite += toWrite
		s.size += toWrite
		total += toWrite
		data = data[toWrite:]
	}
	return total
}

// readSub implements Read/Peek/Drop: nodrop suppresses advancing pos_read
// and freeing consumed pages. dst may be nil (used by Drop, which only
// advances state).
func (s *Stream) readSub(dst []byte, size int, nodrop bool) int {
	if size <= 0 {
		return 0
	}
	total := 0
	posRead := s.posRead
	cur := s.head

	for total < size {
		if cur == nil {
			break
		}
		var canRead int
		if cur.next == nil {
			canRead = s.posWrite - posRead
		} else {
			canRead = cur.size - posRead
		}
		toRead := size - total
		if toRead > canRead {
			toRead = canRead
		}
		if toRead == 0 {
			break
		}
		if dst != nil {
			copy(dst[total:total+toRead], cur.data[posRead:posRead+toRead])
		}
		posRead += toRead
		total += toRead

		next := cur.next
		if next != nil {
			if posRead >= cur.size {
				posRead = 0
				if !nodrop {
					s.head = next
					next.prev = nil
					s.releasePage(cur)
				}
			}
		} else if posRead >= s.posWrite {
			// The last remaining page has been fully drained: the chain
			// goes empty, so reset both offsets rather than leaving them
			// pointing past an exhausted, still-held page.
			posRead = 0
			if !nodrop {
				s.head = nil
				s.tail = nil
				s.posWrite = 0
				s.releasePage(cur)
			}
		}
		if !nodrop {
			s.size -= toRead
			s.posRead = posRead
		}
		cur = next
	}
	return total
}

// Read consumes up to len(dst) bytes from the front of the stream,
// returning the number actually read.
func (s *Stream) Read(dst []byte) int {
	return s.readSub(dst, len(dst), false)
}

// Peek copies up to len(dst) bytes from the front of the stream without
// consuming them.
func (s *Stream) Peek(dst []byte) int {
	return s.readSub(dst, len(dst), true)
}

// Drop discards up to size bytes from the front of the stream.
func (s *Stream) Drop(size int) int {
	return s.readSub(nil, size, false)
}

// Clear discards all buffered data.
func (s *Stream) Clear() {
	s.Drop(s.size)
}

// Flat returns a slice viewing the first contiguous run of unread bytes
// (which may be shorter than Size if the data spans more than one page).
// It is nil when the stream is empty.
func (s *Stream) Flat() []byte {
	if s.size == 0 {
		return nil
	}
	cur := s.head
	if cur.next != nil {
		return cur.data[s.posRead:cur.size]
	}
	return cur.data[s.posRead:s.posWrite]
}

// MoveTo transfers up to size bytes from s into dst, page-flat-copy at a
// time, returning the number of bytes moved.
func (s *Stream) MoveTo(dst *Stream, size int) int {
	total := 0
	for size > 0 {
		chunk := s.Flat()
		if len(chunk) == 0 {
			break
		}
		toMove := size
		if toMove > len(chunk) {
			toMove = len(chunk)
		}
		moved := dst.Write(chunk[:toMove])
		s.Drop(moved)
		total += moved
		size -= moved
		if moved == 0 {
			break
		}
	}
	return total
}
