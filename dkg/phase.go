package dkg

import (
	"context"
	"fmt"
	"time"

	"github.com/drand/kyber"
	kyberbls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/util/random"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
)

// HeightSource is the minimal view of a chain.Gateway the driver needs: the
// current block height, to know when a phase deadline has passed.
type HeightSource interface {
	CurrentBlock(ctx context.Context) (uint64, error)
}

// Result is a successful DKG round's output (§4.6): this node's share, the
// group's public commitment polynomial and aggregated public key, and the
// qualified member set.
type Result struct {
	Share             crypto.PrivateShare
	PublicPolynomial  crypto.PublicPolynomial
	GroupPublicKey    []byte
	Qualified         []core.Address
	// PartialPublicKeys holds each qualified member's evaluation of the
	// final public polynomial at its own index, marshaled — the value
	// PostSuccessGroupingSubscriber persists onto core.Member.PartialPublicKey
	// (§4.4 "persists committers and partial public keys").
	PartialPublicKeys map[core.Address][]byte
}

// Driver runs one DKGTask's Phase0..Phase3 state machine against a
// chain.Board (§4.6). A fresh Driver is used per (group_index, epoch); it
// holds no state across rounds.
type Driver struct {
	suite        *kyberbls.BLS12381Suite
	board        chain.Board
	heights      HeightSource
	pollInterval time.Duration
	log          log.Logger

	// OnPhase, if set, is called as the state machine enters phases 0 and 1,
	// and phase 2 only if any complaint was raised (it is not called for
	// phase 3), letting a caller
	// emit DKGPhase events (§4.4) without the driver depending on the
	// event bus directly.
	OnPhase func(phase int)
}

// NewDriver builds a Driver polling heights at pollInterval (the cadence at
// which it re-checks whether a phase deadline height has been reached); in
// production this is a few seconds, in tests a few milliseconds against a
// simulated chain.
func NewDriver(board chain.Board, heights HeightSource, pollInterval time.Duration, l log.Logger) *Driver {
	return &Driver{
		suite:        kyberbls.NewBLS12381Suite(),
		board:        board,
		heights:      heights,
		pollInterval: pollInterval,
		log:          l,
	}
}

// Run drives task to completion for self, suspending at each phase deadline
// and cooperatively cancelling when ctx is done or shouldStop reports true
// (the dynamic scheduler's shutdown predicate, §4.3). It returns
// core.ErrNotEnoughValidShares if fewer than task.Threshold members end up
// qualified.
func (d *Driver) Run(ctx context.Context, task *core.DKGTask, self core.Address, shouldStop func() bool) (*Result, error) {
	myIndex := task.MemberIndex(self)
	if myIndex < 0 {
		return nil, fmt.Errorf("dkg: %s is not a member of group %d epoch %d", self, task.GroupIndex, task.Epoch)
	}
	n := len(task.Members)
	t := task.Threshold
	g1 := d.suite.G1()

	d.notifyPhase(phaseDeal)
	// Phase 0: deal. Generate a degree-(t-1) secret polynomial, publish its
	// public commitments plus one share per recipient.
	secret := g1.Scalar().Pick(random.New())
	myPriPoly := share.NewPriPoly(g1, t, secret, random.New())
	myPubPoly := myPriPoly.Commit(g1.Point().Base())
	myShares := myPriPoly.Shares(n)

	dealt := dealMessage{Shares: make(map[int][]byte, n)}
	_, commits := myPubPoly.Info()
	for _, c := range commits {
		cb, err := c.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("dkg: marshaling own commit: %w", err)
		}
		dealt.Commits = append(dealt.Commits, cb)
	}
	for _, s := range myShares {
		vb, err := s.V.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("dkg: marshaling own share for member %d: %w", s.I, err)
		}
		dealt.Shares[s.I] = vb
	}
	if err := d.publish(ctx, task, phaseDeal, self, dealt); err != nil {
		return nil, err
	}
	d.log.Debugw("dkg phase 0 dealt", "group", task.GroupIndex, "epoch", task.Epoch)

	if err := d.awaitDeadline(ctx, task.Phase0DeadlineHeight, shouldStop); err != nil {
		return nil, err
	}

	dealers, err := d.readDeals(ctx, task, myIndex)
	if err != nil {
		return nil, err
	}
	if len(dealers) < t {
		return nil, fmt.Errorf("dkg: group %d epoch %d: %w (only %d of %d members dealt)",
			task.GroupIndex, task.Epoch, core.ErrNotEnoughValidShares, len(dealers), n)
	}

	d.notifyPhase(phaseComplain)
	// Phase 1: complain about dealers whose share to me fails verification
	// against their own published commitments.
	complaints := make([]int, 0)
	for idx, dealer := range dealers {
		ok, verr := d.verifyShare(g1, dealer, myIndex)
		if verr != nil || !ok {
			complaints = append(complaints, idx)
		}
	}
	if err := d.publish(ctx, task, phaseComplain, self, complaintMessage{Accused: complaints}); err != nil {
		return nil, err
	}

	if err := d.awaitDeadline(ctx, task.Phase1DeadlineHeight, shouldStop); err != nil {
		return nil, err
	}

	complaintsAgainst, err := d.readComplaints(ctx, task)
	if err != nil {
		return nil, err
	}

	// Phase 2: justify, only entered at all if some dealer was complained
	// against (§4.6: "Phase3? only if some party withheld in P1").
	anyComplaints := false
	for _, against := range complaintsAgainst {
		if len(against) > 0 {
			anyComplaints = true
			break
		}
	}
	if anyComplaints {
		d.notifyPhase(phaseJustify)
		if against := complaintsAgainst[myIndex]; len(against) > 0 {
			justify := justifyMessage{Shares: make(map[int][]byte, len(against))}
			for _, complainant := range against {
				for _, s := range myShares {
					if s.I == complainant {
						vb, merr := s.V.MarshalBinary()
						if merr != nil {
							return nil, fmt.Errorf("dkg: marshaling justification for %d: %w", complainant, merr)
						}
						justify.Shares[complainant] = vb
						break
					}
				}
			}
			if err := d.publish(ctx, task, phaseJustify, self, justify); err != nil {
				return nil, err
			}
		}

		if err := d.awaitDeadline(ctx, task.Phase2DeadlineHeight, shouldStop); err != nil {
			return nil, err
		}

		justifications, err := d.readJustifications(ctx, task)
		if err != nil {
			return nil, err
		}

		// Phase 3 (recover): apply any justification addressed to me, and
		// disqualify dealers that were complained against but never
		// justified at all.
		for dealerIdx, against := range complaintsAgainst {
			if len(against) == 0 {
				continue
			}
			justification, justified := justifications[dealerIdx]
			if !justified {
				delete(dealers, dealerIdx)
				continue
			}
			if replacement, ok := justification.Shares[myIndex]; ok {
				dealers[dealerIdx].myShare = replacement
			}
		}
	}

	if len(dealers) < t {
		return nil, fmt.Errorf("dkg: group %d epoch %d: %w (%d of %d dealers qualified)",
			task.GroupIndex, task.Epoch, core.ErrNotEnoughValidShares, len(dealers), n)
	}

	result, err := d.finalize(task, myIndex, dealers)
	if err != nil {
		return nil, err
	}
	d.log.Infow("dkg succeeded", "group", task.GroupIndex, "epoch", task.Epoch, "qualified", len(result.Qualified))
	return result, nil
}

func (d *Driver) notifyPhase(phase int) {
	if d.OnPhase != nil {
		d.OnPhase(phase)
	}
}

// dealerRecord is one dealer's Phase0 contribution as currently trusted:
// its public polynomial commits and the share value it dealt to me
// (possibly replaced by a Phase2 justification).
type dealerRecord struct {
	commits  []kyber.Point
	myShare  []byte
}

// readDeals reads the Phase0 board and keeps, per dealer, its public
// commitments and the specific share it dealt to myIndex. A dealer whose
// message doesn't parse or carries no share for myIndex is dropped.
func (d *Driver) readDeals(ctx context.Context, task *core.DKGTask, myIndex int) (map[int]*dealerRecord, error) {
	raw, err := d.board.Read(ctx, task.GroupIndex, task.Epoch, phaseDeal)
	if err != nil {
		return nil, fmt.Errorf("dkg: reading phase 0 board: %w", err)
	}
	g1 := d.suite.G1()
	out := make(map[int]*dealerRecord, len(raw))
	for dealerIdx, payload := range byMemberIndex(task, raw) {
		var msg dealMessage
		if err := unmarshalMessage(payload, &msg); err != nil {
			continue
		}
		myShare, ok := msg.Shares[myIndex]
		if !ok {
			continue
		}
		commits := make([]kyber.Point, 0, len(msg.Commits))
		valid := true
		for _, cb := range msg.Commits {
			p := g1.Point()
			if err := p.UnmarshalBinary(cb); err != nil {
				valid = false
				break
			}
			commits = append(commits, p)
		}
		if !valid || len(commits) == 0 {
			continue
		}
		out[dealerIdx] = &dealerRecord{commits: commits, myShare: myShare}
	}
	return out, nil
}

func (d *Driver) verifyShare(g1 kyber.Group, dealer *dealerRecord, myIndex int) (bool, error) {
	if dealer.myShare == nil {
		return false, nil
	}
	v := g1.Scalar()
	if err := v.UnmarshalBinary(dealer.myShare); err != nil {
		return false, err
	}
	candidate := g1.Point().Mul(v, nil)
	pub := share.NewPubPoly(g1, g1.Point().Base(), dealer.commits)
	expected := pub.Eval(myIndex)
	return candidate.Equal(expected.V), nil
}

func (d *Driver) readComplaints(ctx context.Context, task *core.DKGTask) (map[int][]int, error) {
	raw, err := d.board.Read(ctx, task.GroupIndex, task.Epoch, phaseComplain)
	if err != nil {
		return nil, fmt.Errorf("dkg: reading phase 1 board: %w", err)
	}
	against := make(map[int][]int)
	for complainantIdx, payload := range byMemberIndex(task, raw) {
		var msg complaintMessage
		if err := unmarshalMessage(payload, &msg); err != nil {
			continue
		}
		for _, dealerIdx := range msg.Accused {
			against[dealerIdx] = append(against[dealerIdx], complainantIdx)
		}
	}
	return against, nil
}

func (d *Driver) readJustifications(ctx context.Context, task *core.DKGTask) (map[int]justifyMessage, error) {
	raw, err := d.board.Read(ctx, task.GroupIndex, task.Epoch, phaseJustify)
	if err != nil {
		return nil, fmt.Errorf("dkg: reading phase 2 board: %w", err)
	}
	out := make(map[int]justifyMessage, len(raw))
	for idx, payload := range byMemberIndex(task, raw) {
		var msg justifyMessage
		if err := unmarshalMessage(payload, &msg); err != nil {
			continue
		}
		out[idx] = msg
	}
	return out, nil
}

func (d *Driver) finalize(task *core.DKGTask, myIndex int, dealers map[int]*dealerRecord) (*Result, error) {
	g1 := d.suite.G1()

	finalShare := g1.Scalar().Zero()
	var finalPubPoly *share.PubPoly
	qualified := make([]core.Address, 0, len(dealers))

	for idx := 0; idx < len(task.Members); idx++ {
		dealer, ok := dealers[idx]
		if !ok {
			continue
		}
		qualified = append(qualified, task.Members[idx])

		v := g1.Scalar()
		if err := v.UnmarshalBinary(dealer.myShare); err != nil {
			return nil, fmt.Errorf("dkg: unmarshaling final share from dealer %d: %w", idx, err)
		}
		finalShare = finalShare.Add(finalShare, v)

		pub := share.NewPubPoly(g1, g1.Point().Base(), dealer.commits)
		if finalPubPoly == nil {
			finalPubPoly = pub
		} else {
			var err error
			finalPubPoly, err = finalPubPoly.Add(pub)
			if err != nil {
				return nil, fmt.Errorf("dkg: combining public polynomials: %w", err)
			}
		}
	}

	shareBytes, err := finalShare.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("dkg: marshaling final share: %w", err)
	}
	groupPub, err := finalPubPoly.Commit().MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("dkg: marshaling group public key: %w", err)
	}
	_, commits := finalPubPoly.Info()
	commitBytes := make([][]byte, len(commits))
	for i, c := range commits {
		cb, err := c.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("dkg: marshaling final commit %d: %w", i, err)
		}
		commitBytes[i] = cb
	}

	partialPublicKeys := make(map[core.Address][]byte, len(qualified))
	for idx, addr := range qualified {
		memberIdx := task.MemberIndex(addr)
		pb, err := finalPubPoly.Eval(memberIdx).V.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("dkg: marshaling partial public key for member %d: %w", idx, err)
		}
		partialPublicKeys[addr] = pb
	}

	return &Result{
		Share:             crypto.PrivateShare{Index: myIndex, Value: shareBytes},
		PublicPolynomial:  crypto.PublicPolynomial{Commits: commitBytes},
		GroupPublicKey:    groupPub,
		Qualified:         qualified,
		PartialPublicKeys: partialPublicKeys,
	}, nil
}

func (d *Driver) publish(ctx context.Context, task *core.DKGTask, phase int, self core.Address, msg interface{}) error {
	payload, err := marshalMessage(msg)
	if err != nil {
		return err
	}
	if err := d.board.Publish(ctx, task.GroupIndex, task.Epoch, phase, self, payload); err != nil {
		return fmt.Errorf("dkg: publishing phase %d: %w", phase, err)
	}
	return nil
}

// awaitDeadline suspends until the chain reaches deadline, polling at
// d.pollInterval and checking shouldStop/ctx at each suspension point (§4.3,
// §4.6). A shouldStop trip always reports as context.Canceled, even if ctx
// itself hasn't been cancelled yet, so Run's caller can tell a deliberate
// stop apart from a deadline reached.
func (d *Driver) awaitDeadline(ctx context.Context, deadline uint64, shouldStop func() bool) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		height, err := d.heights.CurrentBlock(ctx)
		if err != nil {
			return fmt.Errorf("dkg: reading current block height: %w", err)
		}
		if height >= deadline {
			return nil
		}
		if shouldStop != nil && shouldStop() {
			return context.Canceled
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
