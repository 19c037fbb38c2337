package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/tagheap/memutils"
)

type wordAccess interface {
	word(addr memutils.Addr) uint64
	setWord(addr memutils.Addr, value uint64)
}

// blockList is a circular doubly-linked list whose links live in the headers of its members.
// The sentinel is kept in the struct and addressed by memutils.Null, which no block can occupy.
// An empty list is one whose sentinel links to itself.
type blockList struct {
	mem    wordAccess
	head   memutils.Addr
	tail   memutils.Addr
	length int
}

func (l *blockList) init(mem wordAccess) {
	l.mem = mem
	l.head = memutils.Null
	l.tail = memutils.Null
	l.length = 0
}

func (l *blockList) empty() bool { return l.head == memutils.Null }

func (l *blockList) first() memutils.Addr { return l.head }

func (l *blockList) last() memutils.Addr { return l.tail }

func (l *blockList) next(node memutils.Addr) memutils.Addr {
	if node == memutils.Null {
		return l.head
	}
	return memutils.Addr(l.mem.word(node + nextOffset))
}

func (l *blockList) prev(node memutils.Addr) memutils.Addr {
	if node == memutils.Null {
		return l.tail
	}
	return memutils.Addr(l.mem.word(node + prevOffset))
}

func (l *blockList) setNext(node, next memutils.Addr) {
	if node == memutils.Null {
		l.head = next
		return
	}
	l.mem.setWord(node+nextOffset, uint64(next))
}

func (l *blockList) setPrev(node, prev memutils.Addr) {
	if node == memutils.Null {
		l.tail = prev
		return
	}
	l.mem.setWord(node+prevOffset, uint64(prev))
}

// insert appends node to the end of the list
func (l *blockList) insert(node memutils.Addr) {
	l.insertBefore(node, memutils.Null)
}

// insertBefore links node in front of at. Passing memutils.Null for at appends.
func (l *blockList) insertBefore(node, at memutils.Addr) {
	if node == memutils.Null {
		panic(errors.AssertionFailedf("attempted to insert the sentinel into a block list"))
	}

	prev := l.prev(at)
	l.setPrev(node, prev)
	l.setNext(node, at)
	l.setNext(prev, node)
	l.setPrev(at, node)
	l.length++
}

func (l *blockList) disconnect(node memutils.Addr) {
	if node == memutils.Null {
		panic(errors.AssertionFailedf("attempted to disconnect the sentinel from a block list"))
	}

	prev := l.prev(node)
	next := l.next(node)
	l.setNext(prev, next)
	l.setPrev(next, prev)
	l.length--
}

// reconnect points node's neighbours back at node, using the links stored in node itself. It is
// used after a node's header has been copied to a new address.
func (l *blockList) reconnect(node memutils.Addr) {
	l.setNext(l.prev(node), node)
	l.setPrev(l.next(node), node)
}
