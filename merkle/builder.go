package merkle

import (
	"bytes"
	"errors"
	"fmt"

	merkletree "github.com/wealdtech/go-merkletree/v2"
)

// PadLeaf fills the leaf sequence up to a power of two. It starts with a NUL
// byte so it can never equal a serialized roster record, audited ballot or
// plane cell.
var PadLeaf = []byte("\x00poll-anchor:pad")

var ErrNoLeaves = errors.New("merkle: no leaves to commit")

// LeafData is the ordered sequence of buffers committed by the tree.
type LeafData [][]byte

// Builder owns the leaf sequence while a commitment is assembled. It is not
// safe for concurrent use.
type Builder struct {
	leaves LeafData
	hash   *SHA3
}

func NewBuilder() *Builder {
	return &Builder{hash: NewSHA3()}
}

func (b *Builder) Push(leaf []byte) {
	cp := make([]byte, len(leaf))
	copy(cp, leaf)
	b.leaves = append(b.leaves, cp)
}

func (b *Builder) PushAll(leaves [][]byte) {
	for _, leaf := range leaves {
		b.Push(leaf)
	}
}

func (b *Builder) PushString(leaf string) {
	b.Push([]byte(leaf))
}

func (b *Builder) Len() int {
	return len(b.leaves)
}

// Leaves returns a copy of the current sequence.
func (b *Builder) Leaves() LeafData {
	out := make(LeafData, len(b.leaves))
	copy(out, b.leaves)
	return out
}

// Pad appends PadLeaf until the length is a power of two. An empty sequence
// is left empty.
func (b *Builder) Pad() {
	n := len(b.leaves)
	for target := NextPowerOfTwo(n); n < target; n++ {
		b.leaves = append(b.leaves, bytes.Clone(PadLeaf))
	}
}

// Build pads the sequence and computes the tree over it.
func (b *Builder) Build() (*Commitment, error) {
	if len(b.leaves) == 0 {
		return nil, ErrNoLeaves
	}
	original := len(b.leaves)
	b.Pad()

	tree, err := merkletree.NewTree(
		merkletree.WithData(b.leaves),
		merkletree.WithHashType(b.hash),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build merkle tree: %w", err)
	}

	return &Commitment{
		root:     tree.Root(),
		leaves:   b.Leaves(),
		nodes:    tree.Nodes,
		original: original,
		hashName: b.hash.HashName(),
	}, nil
}

// NextPowerOfTwo returns the smallest power of two >= n, and 0 for n == 0.
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 0
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
