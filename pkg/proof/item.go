package proof

import (
	"github.com/cometbft/cometbft/proto/tendermint/crypto"
	"github.com/cosmos/iavl"
)

// ItemWithProof is a query result together with the proof of its presence, or absence when Item is nil.
type ItemWithProof[T any] struct {
	Item    *T
	Index   int64
	Height  int64
	ProofOp crypto.ProofOp

	// Value is the committed encoding of Item, as covered by the proof.
	Value []byte
}

func (i *ItemWithProof[T]) ProofOps() *crypto.ProofOps {
	return &crypto.ProofOps{Ops: []crypto.ProofOp{i.ProofOp}}
}

// GetProofHeight returns the height the proof is valid at. The working version of the tree is one ahead of the
// last committed block.
func GetProofHeight(tree *iavl.MutableTree) int64 {
	latest := tree.Version()
	if tree.VersionExists(latest - 1) {
		return latest - 1
	}

	return latest
}
