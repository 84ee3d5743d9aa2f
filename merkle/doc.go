// Package merkle builds the commitment anchored for a poll.
//
// Leaves are appended in a fixed order, padded with PadLeaf up to a power of
// two and hashed into a binary tree with SHA3-256. The full tree is kept so
// that an independent verifier can later derive inclusion proofs from the
// persisted file.
package merkle
