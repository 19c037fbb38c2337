package heap

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils"
)

const (
	// Alignment is the alignment of every payload address and every block size
	Alignment int = 16
	// HeaderSize is the size of a block header: size, tag, and the two list links
	HeaderSize int = 32
	// FooterSize is the size of a block footer: size and tag
	FooterSize int = 16
	// Overhead is the number of bytes each block spends on boundary tags
	Overhead int = HeaderSize + FooterSize
	// ChunkOverhead is the number of bytes each chunk spends on its two border blocks
	ChunkOverhead int = FooterSize + HeaderSize

	sizeOffset memutils.Addr = 0
	tagOffset  memutils.Addr = 8
	prevOffset memutils.Addr = 16
	nextOffset memutils.Addr = 24

	baseMagic uint32 = 0x7F84E666
)

type blockState uint32

const (
	stateFree   blockState = 0xF4EE
	stateUsed   blockState = 0x05ED
	stateBorder blockState = 0xB0DE
)

var blockStateMapping = map[blockState]string{
	stateFree:   "Free",
	stateUsed:   "Used",
	stateBorder: "Border",
}

func (s blockState) String() string {
	str, ok := blockStateMapping[s]
	if !ok {
		return fmt.Sprintf("Unknown(%#x)", uint32(s))
	}
	return str
}

func (h *Heap) tryWord(addr memutils.Addr) (uint64, bool) {
	b, ok := h.provider.Bytes(addr, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (h *Heap) word(addr memutils.Addr) uint64 {
	value, ok := h.tryWord(addr)
	if !ok {
		panic(errors.AssertionFailedf("heap corruption: address %#x is outside of the provider's memory", addr))
	}
	return value
}

func (h *Heap) setWord(addr memutils.Addr, value uint64) {
	b, ok := h.provider.Bytes(addr, 8)
	if !ok {
		panic(errors.AssertionFailedf("heap corruption: address %#x is outside of the provider's memory", addr))
	}
	binary.LittleEndian.PutUint64(b, value)
}

func (h *Heap) encodeTag(state blockState) uint64 {
	return uint64(h.magic)<<32 | uint64(state)
}

// decodeTag reads the tag of the header or footer at the provided address. It returns false if the
// tag does not belong to this heap.
func (h *Heap) decodeTag(at memutils.Addr) (blockState, bool) {
	tag, ok := h.tryWord(at + tagOffset)
	if !ok || uint32(tag>>32) != h.magic {
		return 0, false
	}

	state := blockState(tag)
	_, known := blockStateMapping[state]
	return state, known
}

// state reads the state of the header or footer at the provided address. Both share a layout for
// their first two words, so this works on either end of a block.
func (h *Heap) state(at memutils.Addr) blockState {
	state, ok := h.decodeTag(at)
	if !ok {
		raw, _ := h.tryWord(at + tagOffset)
		panic(errors.AssertionFailedf("heap corruption: boundary tag at %#x does not belong to this heap (raw tag %#x)", at, raw))
	}
	return state
}

func (h *Heap) setState(at memutils.Addr, state blockState) {
	h.setWord(at+tagOffset, h.encodeTag(state))
}

func (h *Heap) isFree(at memutils.Addr) bool   { return h.state(at) == stateFree }
func (h *Heap) isUsed(at memutils.Addr) bool   { return h.state(at) == stateUsed }
func (h *Heap) isBorder(at memutils.Addr) bool { return h.state(at) == stateBorder }

func (h *Heap) blockSize(at memutils.Addr) int {
	return int(h.word(at + sizeOffset))
}

// setSize writes the size of one end of a block. The mirrored tag at the other end is untouched.
func (h *Heap) setSize(at memutils.Addr, size int) {
	h.setWord(at+sizeOffset, uint64(size))
}

func (h *Heap) footerOf(header memutils.Addr) memutils.Addr {
	return header + memutils.Addr(h.blockSize(header)-FooterSize)
}

func (h *Heap) headerOf(footer memutils.Addr) memutils.Addr {
	return footer + memutils.Addr(FooterSize-h.blockSize(footer))
}

// writeBlock writes matching header and footer tags for a block of the provided size
func (h *Heap) writeBlock(header memutils.Addr, size int, state blockState) {
	h.setSize(header, size)
	h.setState(header, state)

	footer := header + memutils.Addr(size-FooterSize)
	h.setSize(footer, size)
	h.setState(footer, state)
}

// writeBorderHeader writes the back border of a chunk, which doubles as the chunk's node in the chunk list
func (h *Heap) writeBorderHeader(at memutils.Addr, chunkSize int, prev, next memutils.Addr) {
	h.setSize(at, chunkSize)
	h.setState(at, stateBorder)
	h.setWord(at+prevOffset, uint64(prev))
	h.setWord(at+nextOffset, uint64(next))
}

// writeBorderFooter writes the front border of a chunk
func (h *Heap) writeBorderFooter(at memutils.Addr, chunkSize int) {
	h.setSize(at, chunkSize)
	h.setState(at, stateBorder)
}

func (h *Heap) chunkBase(border memutils.Addr) memutils.Addr {
	return border + memutils.Addr(HeaderSize-h.blockSize(border))
}

// trailingBlock returns the header of the last block before a chunk's back border
func (h *Heap) trailingBlock(border memutils.Addr) memutils.Addr {
	return h.headerOf(border - memutils.Addr(FooterSize))
}
