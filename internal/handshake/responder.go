package handshake

import (
	"time"

	"wgcore/internal/cookie"
	"wgcore/internal/mem"
	"wgcore/internal/noisestate"
	"wgcore/internal/peer"
	"wgcore/internal/transport"
	"wgcore/internal/wgcrypto"
	"wgcore/internal/wiremsg"
	"wgcore/wgerr"
)

const opHandleInit = "handshake.HandleInit"

// HandleInit processes a received Init message: spec.md §4.5's
// eleven-step responder algorithm, gated by the mac1/mac2 cookie
// check of §4.4. On success it returns the Response bytes to send
// back and the peer the session belongs to. A non-nil reply with a
// nil peer means "send this cookie reply and do nothing else" — the
// expensive steps were skipped because the host is under load and the
// sender has no valid cookie yet.
func (e *Engine) HandleInit(buf []byte, srcAddr []byte, now time.Time) (reply []byte, p *peer.Peer, err error) {
	init, err := wiremsg.DecodeInit(buf)
	if err != nil {
		return nil, nil, err
	}

	if !cookie.VerifyMac1(&e.ownMac1Key, buf[:116], init.Mac1) {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, nil)
	}

	if e.isUnderLoad() {
		cookieLocal := e.secret.Compute(srcAddr)
		if !cookie.VerifyMac2(&cookieLocal, buf[:132], init.Mac2) {
			reply, rerr := e.buildCookieReply(init.Sender, init.Mac1, cookieLocal)
			if rerr != nil {
				return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, rerr)
			}
			return reply, nil, nil
		}
	}

	if !e.allowed(srcAddr) {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRateLimited, nil)
	}

	st := noisestate.New()
	st.MixHash(e.identity.PublicKey[:])
	st.MixChain(init.Ephemeral[:])
	st.MixHash(init.Ephemeral[:])

	ephemeral := init.Ephemeral
	k1, ok := st.MixKeyDh(&e.identity.PrivateKey, &ephemeral)
	if !ok {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, nil)
	}
	staticPt, err := st.DecryptAndHash(nil, &k1, init.EncStatic[:])
	if err != nil {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindBadTag, err)
	}
	var remoteStatic [wgcrypto.KeySize]byte
	copy(remoteStatic[:], staticPt)
	mem.Zero32(&k1)

	p, found := e.table.ByPublicKey(remoteStatic)
	if !found {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindUnknownPeer, nil)
	}

	k2, ok := st.MixKeyDh(&e.identity.PrivateKey, &remoteStatic)
	if !ok {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, nil)
	}
	tsPt, err := st.DecryptAndHash(nil, &k2, init.EncTimestamp[:])
	if err != nil {
		mem.Zero32(&k2)
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindBadTag, err)
	}
	mem.Zero32(&k2)
	var ts [12]byte
	copy(ts[:], tsPt)
	if !p.CheckTimestamp(ts) {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindReplay, nil)
	}

	localIdx, err := e.table.AllocateIndex(p)
	if err != nil {
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, err)
	}

	respEskPriv, respEskPub, err := generateEphemeral()
	if err != nil {
		e.table.ReleaseIndex(localIdx)
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, err)
	}

	st.MixChain(respEskPub[:])
	st.MixHash(respEskPub[:])
	if !st.MixDh(&respEskPriv, &ephemeral) {
		e.table.ReleaseIndex(localIdx)
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, nil)
	}
	if !st.MixDh(&respEskPriv, &remoteStatic) {
		e.table.ReleaseIndex(localIdx)
		return nil, nil, wgerr.New(opHandleInit, wgerr.KindRejected, nil)
	}
	k3 := st.MixKeyHash(p.Config.PresharedKey[:])
	encEmpty := st.EncryptAndHash(nil, &k3, nil)
	mem.Zero32(&k3)

	resp := &wiremsg.Response{Sender: localIdx, Receiver: init.Sender, Ephemeral: respEskPub}
	copy(resp.EncEmpty[:], encEmpty)

	out := make([]byte, wiremsg.ResponseSize)
	prefix := wiremsg.EncodeResponse(out, resp)
	mac1 := cookie.Mac1(p.Config.Mac1Key(), prefix)
	copy(out[60:76], mac1[:])
	if cached, ok := p.CookieCache().Get(now); ok {
		mac2 := cookie.Mac2(&cached, out[:76])
		copy(out[76:92], mac2[:])
	}

	// Split() returns (k1, k2) identically on both sides, since both
	// hosts reach the same chain through symmetric MixDh/MixKeyDh
	// steps. The initiator uses k1 as its send key and k2 to receive;
	// the responder must swap so its send key is the initiator's
	// receive key and vice versa.
	recvKey, sendKey := st.Split()
	sess := transport.NewSession(localIdx, init.Sender, transport.RoleResponder, sendKey, recvKey, now)
	p.InstallNext(sess)
	p.PromoteNext(now)

	mem.Zero32(&respEskPriv)
	return out, p, nil
}

func (e *Engine) buildCookieReply(receiver uint32, mac1 [wgcrypto.MacSize]byte, cookieLocal [wgcrypto.MacSize]byte) ([]byte, error) {
	msg, err := cookie.CreateReply(&e.ownCookieKey, mac1, cookieLocal)
	if err != nil {
		return nil, err
	}
	msg.Receiver = receiver
	out := make([]byte, wiremsg.CookieSize)
	wiremsg.EncodeCookie(out, msg)
	return out, nil
}
