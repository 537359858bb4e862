package handshake

import (
	"time"

	"wgcore/internal/cookie"
	"wgcore/internal/mem"
	"wgcore/internal/noisestate"
	"wgcore/internal/peer"
	"wgcore/internal/transport"
	"wgcore/internal/wiremsg"
	"wgcore/wgerr"
)

const (
	opBuildInit      = "handshake.BuildInit"
	opHandleResponse = "handshake.HandleResponse"
	opHandleCookie   = "handshake.HandleCookie"
)

// BuildInit starts a new handshake with p: spec.md §4.5's initiator
// algorithm. The returned bytes are ready to send as-is; the
// in-progress state needed to process the matching Response is kept
// on p until HandleResponse or ClearInitiation clears it (the timer
// wheel calls ClearInitiation once AttemptTimeout has passed), or a
// later BuildInit for p replaces it.
func (e *Engine) BuildInit(p *peer.Peer, now time.Time) ([]byte, error) {
	localIdx, err := e.table.AllocateIndex(p)
	if err != nil {
		return nil, wgerr.New(opBuildInit, wgerr.KindRejected, err)
	}

	eskPriv, eskPub, err := generateEphemeral()
	if err != nil {
		e.table.ReleaseIndex(localIdx)
		return nil, wgerr.New(opBuildInit, wgerr.KindRejected, err)
	}

	st := noisestate.New()
	st.MixHash(p.Config.PublicKey[:])
	st.MixChain(eskPub[:])
	st.MixHash(eskPub[:])

	k1, ok := st.MixKeyDh(&eskPriv, &p.Config.PublicKey)
	if !ok {
		e.table.ReleaseIndex(localIdx)
		return nil, wgerr.New(opBuildInit, wgerr.KindRejected, nil)
	}
	encStatic := st.EncryptAndHash(nil, &k1, e.identity.PublicKey[:])
	mem.Zero32(&k1)

	k2, ok := st.MixKeyDh(&e.identity.PrivateKey, &p.Config.PublicKey)
	if !ok {
		e.table.ReleaseIndex(localIdx)
		return nil, wgerr.New(opBuildInit, wgerr.KindRejected, nil)
	}
	ts := Timestamp(now)
	encTimestamp := st.EncryptAndHash(nil, &k2, ts[:])
	mem.Zero32(&k2)

	msg := &wiremsg.Init{Sender: localIdx, Ephemeral: eskPub}
	copy(msg.EncStatic[:], encStatic)
	copy(msg.EncTimestamp[:], encTimestamp)

	out := make([]byte, wiremsg.InitSize)
	prefix := wiremsg.EncodeInit(out, msg)
	mac1 := cookie.Mac1(p.Config.Mac1Key(), prefix)
	copy(out[116:132], mac1[:])
	if cached, ok := p.CookieCache().Get(now); ok {
		mac2 := cookie.Mac2(&cached, out[:132])
		copy(out[132:148], mac2[:])
	}

	init := p.BeginInitiation(now)
	init.LocalIndex = localIdx
	init.EphemeralSK = eskPriv
	init.EphemeralPK = eskPub
	init.Noise = st
	init.LastSentMac1 = mac1
	init.LastInitBytes = out
	init.Attempts = 1

	return out, nil
}

// HandleResponse processes a received Response that matches an
// in-progress initiation on some peer, completing the handshake and
// installing the new session into that peer's "current" slot.
func (e *Engine) HandleResponse(buf []byte, now time.Time) (*peer.Peer, error) {
	resp, err := wiremsg.DecodeResponse(buf)
	if err != nil {
		return nil, err
	}

	if !cookie.VerifyMac1(&e.ownMac1Key, buf[:60], resp.Mac1) {
		return nil, wgerr.New(opHandleResponse, wgerr.KindRejected, nil)
	}

	owner, found := e.table.ByIndex(resp.Receiver)
	if !found {
		return nil, wgerr.New(opHandleResponse, wgerr.KindUnknownSession, nil)
	}
	init := owner.Initiation()
	if init == nil || init.LocalIndex != resp.Receiver {
		return nil, wgerr.New(opHandleResponse, wgerr.KindUnknownSession, nil)
	}

	st := init.Noise
	st.MixChain(resp.Ephemeral[:])
	st.MixHash(resp.Ephemeral[:])
	ephemeralR := resp.Ephemeral
	if !st.MixDh(&init.EphemeralSK, &ephemeralR) {
		return nil, wgerr.New(opHandleResponse, wgerr.KindRejected, nil)
	}
	if !st.MixDh(&e.identity.PrivateKey, &ephemeralR) {
		return nil, wgerr.New(opHandleResponse, wgerr.KindRejected, nil)
	}
	k := st.MixKeyHash(owner.Config.PresharedKey[:])
	if _, err := st.DecryptAndHash(nil, &k, resp.EncEmpty[:]); err != nil {
		mem.Zero32(&k)
		return nil, wgerr.New(opHandleResponse, wgerr.KindBadTag, err)
	}
	mem.Zero32(&k)

	// The initiator takes Split()'s pair unswapped: k1 as its send key,
	// k2 as its receive key. The responder (internal/handshake/responder.go)
	// swaps, so each side's send key matches the other's receive key.
	sendKey, recvKey := st.Split()
	sess := transport.NewSession(init.LocalIndex, resp.Sender, transport.RoleInitiator, sendKey, recvKey, now)
	owner.InstallNext(sess)
	owner.PromoteNext(now)
	owner.ClearInitiation()

	return owner, nil
}

// HandleCookie decrypts a cookie reply and caches the resulting
// cookie on whichever peer had the matching in-progress initiation,
// per spec.md §4.4. It does not itself retransmit the Init; the timer
// layer does that once RetransmitTimeout next fires.
func (e *Engine) HandleCookie(buf []byte, now time.Time) error {
	msg, err := wiremsg.DecodeCookie(buf)
	if err != nil {
		return err
	}
	owner, found := e.table.ByIndex(msg.Receiver)
	if !found {
		return wgerr.New(opHandleCookie, wgerr.KindUnknownSession, nil)
	}
	init := owner.Initiation()
	if init == nil {
		return wgerr.New(opHandleCookie, wgerr.KindUnknownSession, nil)
	}
	cookieVal, err := cookie.ConsumeReply(owner.Config.CookieKey(), msg, init.LastSentMac1)
	if err != nil {
		return wgerr.New(opHandleCookie, wgerr.KindBadTag, err)
	}
	owner.CookieCache().Store(cookieVal, now)
	return nil
}
