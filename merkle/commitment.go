package merkle

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Commitment is a built tree. Nodes use heap order: index 1 is the root,
// node i has children 2i and 2i+1, and the leaf digests occupy the upper
// half of the slice.
type Commitment struct {
	root     []byte
	leaves   LeafData
	nodes    [][]byte
	original int
	hashName string
}

// NewCommitment restores a commitment from its persisted parts and checks
// that the nodes are consistent with the leaves.
func NewCommitment(leaves LeafData, nodes [][]byte, original int) (*Commitment, error) {
	c := &Commitment{
		leaves:   leaves,
		nodes:    nodes,
		original: original,
		hashName: NewSHA3().HashName(),
	}
	if len(nodes) > 1 {
		c.root = nodes[1]
	}
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Commitment) Root() []byte {
	return bytes.Clone(c.root)
}

func (c *Commitment) RootHex() string {
	return hex.EncodeToString(c.root)
}

func (c *Commitment) Leaves() LeafData {
	out := make(LeafData, len(c.leaves))
	copy(out, c.leaves)
	return out
}

func (c *Commitment) Nodes() [][]byte {
	return c.nodes
}

// OriginalLeaves is the leaf count before padding.
func (c *Commitment) OriginalLeaves() int {
	return c.original
}

func (c *Commitment) HashName() string {
	return c.hashName
}

// Verify recomputes every node from the leaves.
func (c *Commitment) Verify() error {
	n := len(c.leaves)
	if n == 0 || n != NextPowerOfTwo(n) {
		return fmt.Errorf("invalid leaf count %d", n)
	}
	if len(c.nodes) != 2*n {
		return fmt.Errorf("invalid node count %d for %d leaves", len(c.nodes), n)
	}
	if c.original > n {
		return fmt.Errorf("original leaf count %d exceeds %d", c.original, n)
	}
	h := NewSHA3()
	for i, leaf := range c.leaves {
		if !bytes.Equal(h.Hash(leaf), c.nodes[n+i]) {
			return fmt.Errorf("leaf %d does not match its digest", i)
		}
	}
	for i := n - 1; i > 0; i-- {
		if !bytes.Equal(h.Hash(c.nodes[2*i], c.nodes[2*i+1]), c.nodes[i]) {
			return fmt.Errorf("branch %d does not match its children", i)
		}
	}
	if !bytes.Equal(c.root, c.nodes[1]) {
		return fmt.Errorf("root mismatch")
	}
	return nil
}
