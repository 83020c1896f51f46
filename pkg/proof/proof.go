package proof

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cometbft/cometbft/proto/tendermint/crypto"
	ics23 "github.com/confio/ics23/go"
	"github.com/cosmos/iavl"
)

// TreeProof binds an ICS23 commitment proof to the root hash it was generated against.
type TreeProof struct {
	RootHash []byte                 `json:"root_hash"`
	Proof    *ics23.CommitmentProof `json:"proof"`
}

const TypeIAVL = "ics23:iavl"

var (
	ErrMissingProof      = errors.New("missing proof")
	ErrInvalidProof      = errors.New("invalid proof")
	ErrValueMismatch     = errors.New("proof does not commit to the returned value")
	ErrTreeUninitialized = errors.New("uninitialized merkle tree: cannot generate proof for empty tree")
)

func ProofOpForTree(tree *iavl.MutableTree, key []byte) (crypto.ProofOp, error) {
	hash, err := tree.Hash()
	if err != nil {
		return crypto.ProofOp{}, err
	}

	commitment, err := tree.GetProof(key)
	if err != nil {
		// iavl has no typed error for this
		if err.Error() == "cannot generate the proof with nil root" {
			return crypto.ProofOp{}, ErrTreeUninitialized
		}

		return crypto.ProofOp{}, err
	}

	marshalled, err := json.Marshal(TreeProof{
		RootHash: hash,
		Proof:    commitment,
	})
	if err != nil {
		return crypto.ProofOp{}, err
	}

	return crypto.ProofOp{
		Type: TypeIAVL,
		Key:  key,
		Data: marshalled,
	}, nil
}

// Validate checks a membership or non-membership proof against the root hash it carries.
func Validate(op crypto.ProofOp) error {
	if op.Type != TypeIAVL {
		return fmt.Errorf("%w: unsupported proof op type %q", ErrInvalidProof, op.Type)
	}

	var treeProof TreeProof
	if err := json.Unmarshal(op.Data, &treeProof); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProof, err.Error())
	}

	switch p := treeProof.Proof.Proof.(type) {
	case *ics23.CommitmentProof_Exist:
		if err := p.Exist.Verify(ics23.IavlSpec, treeProof.RootHash, op.Key, p.Exist.Value); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidProof, err.Error())
		}
	case *ics23.CommitmentProof_Nonexist:
		if err := p.Nonexist.Verify(ics23.IavlSpec, treeProof.RootHash, op.Key); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidProof, err.Error())
		}
	default:
		return fmt.Errorf("%w: unsupported proof type %T", ErrInvalidProof, treeProof.Proof.Proof)
	}

	return nil
}

// ValidateValue checks that op is a valid membership proof for exactly value, or a valid non-membership proof
// when value is nil.
func ValidateValue(op crypto.ProofOp, value []byte) error {
	if err := Validate(op); err != nil {
		return err
	}

	var treeProof TreeProof
	if err := json.Unmarshal(op.Data, &treeProof); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProof, err.Error())
	}

	exist, ok := treeProof.Proof.Proof.(*ics23.CommitmentProof_Exist)
	if value == nil {
		if ok {
			return ErrValueMismatch
		}

		return nil
	}

	if !ok || !bytes.Equal(exist.Exist.Value, value) {
		return ErrValueMismatch
	}

	return nil
}

func ValidateProofOps(proofOps *crypto.ProofOps, value []byte) error {
	if proofOps == nil || len(proofOps.Ops) == 0 {
		return ErrMissingProof
	}

	return ValidateValue(proofOps.Ops[0], value)
}

// RootHash extracts the root hash a proof was generated against.
func RootHash(op crypto.ProofOp) ([]byte, error) {
	var treeProof TreeProof
	if err := json.Unmarshal(op.Data, &treeProof); err != nil {
		return nil, err
	}

	return treeProof.RootHash, nil
}

func (t TreeProof) MarshalJSON() ([]byte, error) {
	if t.Proof == nil {
		return nil, ErrMissingProof
	}

	proofMarshalled, err := t.Proof.Marshal()
	if err != nil {
		return nil, err
	}

	return json.Marshal(struct {
		RootHash []byte `json:"root_hash"`
		Proof    []byte `json:"proof"`
	}{
		RootHash: t.RootHash,
		Proof:    proofMarshalled,
	})
}

func (t *TreeProof) UnmarshalJSON(b []byte) error {
	var raw struct {
		RootHash []byte `json:"root_hash"`
		Proof    []byte `json:"proof"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var commitment ics23.CommitmentProof
	if err := commitment.Unmarshal(raw.Proof); err != nil {
		return err
	}

	t.RootHash = raw.RootHash
	t.Proof = &commitment
	return nil
}
