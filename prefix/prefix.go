// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package prefix builds and serializes an adaptive, byte-frequency-weighted
// binary prefix-code tree, and compresses or decompresses a byte stream
// against it over the bitio bitstream. Unlike flate's fixed RFC 1951 trees,
// the tree here is rebuilt from scratch for every payload and travels
// alongside the data it encodes.
package prefix

import (
	"container/heap"
	"runtime"

	"github.com/dsnet/bordersave/bitio"
)

func errRecover(err *error) {
	switch ex := recover().(type) {
	case nil:
		// Do nothing.
	case runtime.Error:
		panic(ex)
	case error:
		*err = ex
	default:
		panic(ex)
	}
}

// Node is one node of the prefix tree. A leaf carries a byte value; an
// internal node carries Left and Right children.
type Node struct {
	Sym         byte
	Weight      int
	Left, Right *Node
}

func (n *Node) isLeaf() bool { return n.Left == nil && n.Right == nil }

// BuildTree constructs the prefix tree for data, weighted by byte
// frequency. Equal-weight subtrees are combined in the order they were
// inserted into the priority queue, making the tree shape deterministic
// for a given input.
func BuildTree(data []byte) *Node {
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	pq := make(nodeHeap, 0, 256)
	seq := 0
	for sym := 0; sym < 256; sym++ {
		if freq[sym] == 0 {
			continue
		}
		pq = append(pq, &heapItem{node: &Node{Sym: byte(sym), Weight: freq[sym]}, seq: seq})
		seq++
	}
	if len(pq) == 0 {
		// No bytes at all; synthesize a single placeholder leaf so the
		// tree can still be serialized. It is never used to decode a
		// non-zero-length payload.
		return &Node{Sym: 0, Weight: 0}
	}
	if len(pq) == 1 {
		return pq[0].node
	}

	heap.Init(&pq)
	for pq.Len() > 1 {
		a := heap.Pop(&pq).(*heapItem)
		b := heap.Pop(&pq).(*heapItem)
		parent := &Node{Weight: a.node.Weight + b.node.Weight, Left: a.node, Right: b.node}
		heap.Push(&pq, &heapItem{node: parent, seq: seq})
		seq++
	}
	return pq[0].node
}

type heapItem struct {
	node *Node
	seq  int
}

type nodeHeap []*heapItem

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].node.Weight != h[j].node.Weight {
		return h[i].node.Weight < h[j].node.Weight
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// WriteTree serializes root pre-order: one bit per node, 1 for an internal
// node (followed by its left then right subtree), 0 for a leaf (followed
// by its 8-bit byte value).
func WriteTree(w *bitio.Writer, root *Node) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.isLeaf() {
			w.WriteBits(1, 0)
			w.WriteBits(8, uint64(n.Sym))
			return
		}
		w.WriteBits(1, 1)
		walk(n.Left)
		walk(n.Right)
	}
	walk(root)
}

// ReadTree deserializes a tree written by WriteTree.
func ReadTree(r *bitio.Reader) *Node {
	var walk func() *Node
	walk = func() *Node {
		if r.ReadBits(1) == 0 {
			return &Node{Sym: byte(r.ReadBits(8))}
		}
		left := walk()
		right := walk()
		return &Node{Left: left, Right: right}
	}
	return walk()
}

// code is one symbol's bit path in the tree, stored as the path value (LSB
// first, root bit in bit 0) and path length.
type code struct {
	val uint64
	len uint
}

func buildCodeTable(root *Node) map[byte]code {
	table := make(map[byte]code)
	var walk func(n *Node, val uint64, depth uint)
	walk = func(n *Node, val uint64, depth uint) {
		if n.isLeaf() {
			table[n.Sym] = code{val: val, len: depth}
			return
		}
		walk(n.Left, val, depth+1)
		walk(n.Right, val|(1<<depth), depth+1)
	}
	walk(root, 0, 0)
	return table
}

// Encode writes data to w as a sequence of bit paths through root, one per
// byte of data, with no trailing framing of its own (the caller knows the
// byte count it will later pass to Decode).
func Encode(w *bitio.Writer, root *Node, data []byte) {
	table := buildCodeTable(root)
	for _, b := range data {
		c, ok := table[b]
		if !ok {
			panic(Error("byte not present in tree"))
		}
		if c.len == 0 {
			continue // sole symbol in a single-leaf tree; no bits needed
		}
		w.WriteBits(c.len, c.val)
	}
}

// Decode reads n bytes from r by walking root from the root bit-by-bit to
// a leaf, n times.
func Decode(r *bitio.Reader, root *Node, n int) (dst []byte, err error) {
	defer errRecover(&err)
	dst = make([]byte, 0, n)
	for i := 0; i < n; i++ {
		node := root
		for !node.isLeaf() {
			if r.ReadBits(1) == 0 {
				node = node.Left
			} else {
				node = node.Right
			}
		}
		dst = append(dst, node.Sym)
	}
	return dst, nil
}

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "prefix: " + string(e) }
