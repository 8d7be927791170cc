package proc

import (
	"errors"
	"io"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/insdump/pkg/logflags"
)

// DefaultDecodeCacheSize is the default number of decoded instructions kept
// by a cached Disassembler.
const DefaultDecodeCacheSize = 4096

type decodeKey struct {
	pc  uint64
	mem string
}

type decodeEntry struct {
	n    int
	text string
}

// cachedDisassembler remembers the result of decoding a window at a given
// address. Tight loops in the target execute the same instructions over
// and over; the cache saves decoding them again each time. Self-modifying
// code is handled because the window bytes are part of the key.
type cachedDisassembler struct {
	d     Disassembler
	cache *lru.Cache
	lb    *LineBuffer
}

// NewCachedDisassembler wraps d with an LRU cache holding up to size
// decoded instructions. A size <= 0 returns d unchanged.
func NewCachedDisassembler(d Disassembler, size int) (Disassembler, error) {
	if size <= 0 {
		return d, nil
	}
	log := logflags.DisasmLogger()
	var onEvict func(key, value interface{})
	if logflags.Disasm() {
		onEvict = func(key, value interface{}) {
			log.Debugf("evicted instruction at %#x", key.(decodeKey).pc)
		}
	}
	cache, err := lru.NewWithEvict(size, onEvict)
	if err != nil {
		return nil, err
	}
	log.Debugf("decode cache holds %d instructions", size)
	return &cachedDisassembler{d: d, cache: cache, lb: NewLineBuffer(4096)}, nil
}

func (c *cachedDisassembler) Decode(win *InstructionWindow, out io.Writer) (int, error) {
	key := decodeKey{pc: win.PC, mem: string(win.Bytes)}
	if v, ok := c.cache.Get(key); ok {
		e := v.(decodeEntry)
		return e.n, writeText(out, e.text)
	}

	// Decode into a private buffer so that the cached text does not depend
	// on the capacity of out.
	c.lb.Reset()
	n, err := c.d.Decode(win, c.lb)
	if err != nil && !errors.Is(err, ErrLineBufferFull) {
		return n, err
	}
	if n <= 0 {
		return n, nil
	}
	e := decodeEntry{n: n, text: c.lb.String()}
	c.cache.Add(key, e)
	return e.n, writeText(out, e.text)
}

func writeText(out io.Writer, text string) error {
	_, err := io.WriteString(out, text)
	if errors.Is(err, ErrLineBufferFull) {
		return nil
	}
	return err
}
