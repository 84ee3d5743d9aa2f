package merkle

import "golang.org/x/crypto/sha3"

// SHA3 is the hash contract used for both leaves and branches:
// leaf = SHA3-256(data), branch = SHA3-256(left || right).
type SHA3 struct{}

func NewSHA3() *SHA3 {
	return &SHA3{}
}

func (h *SHA3) Hash(data ...[]byte) []byte {
	d := sha3.New256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

func (h *SHA3) HashLength() int {
	return 32
}

func (h *SHA3) HashName() string {
	return "sha3-256"
}
