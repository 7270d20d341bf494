// Package crypto defines the ThresholdScheme capability (§6): the BLS/DKG
// cryptography the core treats as an external collaborator. One reference
// implementation, crypto/bls, wraps drand/kyber's tbls scheme, grounded on
// the teacher's crypto/vault.Vault and bls/tbls.go.
package crypto

// PrivateShare is this node's DKG output share: its canonical index and the
// scalar value, opaque outside the scheme implementation.
type PrivateShare struct {
	Index int
	Value []byte
}

// PublicPolynomial is the public commitment polynomial produced by a
// successful DKG; PartialVerify checks a partial signature against it
// without needing the group's aggregated public key.
type PublicPolynomial struct {
	Commits [][]byte
}

// Scheme is the ThresholdScheme capability (§6):
//
//	partial_sign(share, msg) -> partial
//	partial_verify(pk_poly, msg, partial) -> ok|error
//	aggregate(t, partials) -> signature
//	verify(group_pk, msg, signature) -> ok|error
type Scheme interface {
	// PartialSign produces share's partial signature over msg.
	PartialSign(share PrivateShare, msg []byte) ([]byte, error)

	// PartialVerify checks that partial is a valid partial signature over
	// msg under pubPoly.
	PartialVerify(pubPoly PublicPolynomial, msg, partial []byte) error

	// Aggregate combines at least t of the given partials (indexed by the
	// contributing share's canonical index, recovered from the partial's
	// own encoding) into a full threshold signature over msg.
	Aggregate(pubPoly PublicPolynomial, msg []byte, partials [][]byte, t, n int) ([]byte, error)

	// Verify checks a full signature against the group's aggregated public
	// key.
	Verify(groupPublicKey, msg, signature []byte) error

	// NewKeyPair returns a fresh (private scalar, public point) pair, used
	// by node bootstrap to generate this node's long-lived DKG key-pair.
	NewKeyPair() (priv, pub []byte, err error)
}
