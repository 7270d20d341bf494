// Package bls implements crypto.Scheme on top of drand/kyber's BLS12-381
// threshold signature scheme, grounded on the teacher's crypto/schemes.go
// (NewPedersenBLSChained: KeyGroup on G1, SigGroup on G2,
// tbls.NewThresholdSchemeOnG2) and crypto/vault.Vault's SignPartial/GetPub
// usage.
package bls

import (
	"fmt"

	"github.com/drand/kyber"
	kyberbls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/sign/tbls"
	"github.com/drand/kyber/util/random"

	"github.com/ARPA-Network/randcast-node/crypto"
)

// domain separation tags, matching the teacher's RFC9380 defaults.
var (
	dstG1 = []byte("BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_")
	dstG2 = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")
)

// Scheme is the reference crypto.Scheme: keys and DKG commitments on G1 (48
// bytes), threshold signatures on G2 (96 bytes).
type Scheme struct {
	suite *kyberbls.BLS12381Suite
}

func New() *Scheme {
	return &Scheme{suite: kyberbls.NewBLS12381SuiteWithDST(dstG1, dstG2)}
}

var _ crypto.Scheme = (*Scheme)(nil)

func (s *Scheme) NewKeyPair() (priv, pub []byte, err error) {
	sk := s.suite.G1().Scalar().Pick(random.New())
	pk := s.suite.G1().Point().Mul(sk, nil)

	privBytes, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling private scalar: %w", err)
	}
	pubBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling public point: %w", err)
	}
	return privBytes, pubBytes, nil
}

func (s *Scheme) priShare(sh crypto.PrivateShare) (*share.PriShare, error) {
	v := s.suite.G1().Scalar()
	if err := v.UnmarshalBinary(sh.Value); err != nil {
		return nil, fmt.Errorf("unmarshaling share value: %w", err)
	}
	return &share.PriShare{I: sh.Index, V: v}, nil
}

func (s *Scheme) pubPoly(pp crypto.PublicPolynomial) (*share.PubPoly, error) {
	commits := make([]kyber.Point, len(pp.Commits))
	for i, c := range pp.Commits {
		p := s.suite.G1().Point()
		if err := p.UnmarshalBinary(c); err != nil {
			return nil, fmt.Errorf("unmarshaling commit %d: %w", i, err)
		}
		commits[i] = p
	}
	return share.NewPubPoly(s.suite.G1(), nil, commits), nil
}

// PartialSign produces sh's partial signature over msg, encoded by tbls as
// (2-byte big-endian index || BLS12-381 G2 signature) so Aggregate can
// recover each contributor's index without a side channel.
func (s *Scheme) PartialSign(sh crypto.PrivateShare, msg []byte) ([]byte, error) {
	pri, err := s.priShare(sh)
	if err != nil {
		return nil, err
	}
	scheme := tbls.NewThresholdSchemeOnG2(s.suite)
	return scheme.Sign(pri, msg)
}

func (s *Scheme) PartialVerify(pp crypto.PublicPolynomial, msg, partial []byte) error {
	poly, err := s.pubPoly(pp)
	if err != nil {
		return err
	}
	scheme := tbls.NewThresholdSchemeOnG2(s.suite)
	return scheme.VerifyPartial(poly, msg, partial)
}

func (s *Scheme) Aggregate(pp crypto.PublicPolynomial, msg []byte, partials [][]byte, t, n int) ([]byte, error) {
	poly, err := s.pubPoly(pp)
	if err != nil {
		return nil, err
	}
	scheme := tbls.NewThresholdSchemeOnG2(s.suite)
	sig, err := scheme.Recover(poly, msg, partials, t, n)
	if err != nil {
		return nil, fmt.Errorf("recovering threshold signature: %w", err)
	}
	return sig, nil
}

func (s *Scheme) Verify(groupPublicKey, msg, signature []byte) error {
	pub := s.suite.G1().Point()
	if err := pub.UnmarshalBinary(groupPublicKey); err != nil {
		return fmt.Errorf("unmarshaling group public key: %w", err)
	}
	scheme := tbls.NewThresholdSchemeOnG2(s.suite)
	return scheme.VerifyRecovered(pub, msg, signature)
}
