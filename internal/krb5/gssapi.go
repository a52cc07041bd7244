/*
MIT License

Copyright (c) 2026 netssh contributors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package krb5 implements the client half of GSSAPI-with-MIC over Kerberos
// 5, satisfying golang.org/x/crypto/ssh's GSSAPIClient interface so a
// Connection can authenticate against a device joined to an Active
// Directory or MIT Kerberos realm.
package krb5

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/gssapi"
	"github.com/jcmturner/gokrb5/v8/iana/chksumtype"
	"github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/spnego"
	"github.com/jcmturner/gokrb5/v8/types"
)

// initiatorState tracks where InitiatorClient is within the
// INIT/CONTINUE_NEEDED/COMPLETE token exchange ssh.GSSAPIClient expects.
// The zero value is the starting state, so a freshly constructed client
// needs no explicit initialization.
type initiatorState int

const (
	stateStart initiatorState = iota
	stateWaitForMutual
	stateReady
)

// contextFlagReady marks the checksum as carrying no channel bindings.
const contextFlagReady = 128

// apReqOptions is the single AP-REQ option every exchange requests:
// mutual authentication, so the acceptor must prove itself back.
var apReqOptions = []int{flags.APOptionMutualRequired}

// NewClientWithPassword logs into the realm via a plain password bind.
func NewClientWithPassword(username, password, krb5ConfPath string) (*InitiatorClient, error) {
	cfg, err := config.Load(krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("load krb5 config: %w", err)
	}
	return newInitiator(client.NewWithPassword(username, cfg.LibDefaults.DefaultRealm, password, cfg))
}

// NewClientWithKeytab logs in using a keytab file instead of a password,
// the usual choice for unattended automation where a password cannot be
// stored.
func NewClientWithKeytab(username, krb5ConfPath, keytabPath string) (*InitiatorClient, error) {
	cfg, err := config.Load(krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("load krb5 config: %w", err)
	}
	kt, err := keytab.Load(keytabPath)
	if err != nil {
		return nil, fmt.Errorf("load keytab: %w", err)
	}
	return newInitiator(client.NewWithKeytab(username, cfg.LibDefaults.DefaultRealm, kt, cfg))
}

// NewClientWithCCache builds a client from an existing credential cache
// (e.g. one populated by kinit), so a session can ride an operator's
// already-acquired TGT.
func NewClientWithCCache(krb5ConfPath, ccachePath string) (*InitiatorClient, error) {
	cfg, err := config.Load(krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("load krb5 config: %w", err)
	}
	cache, err := credentials.LoadCCache(ccachePath)
	if err != nil {
		return nil, fmt.Errorf("load credential cache: %w", err)
	}
	cl, err := client.NewFromCCache(cache, cfg)
	if err != nil {
		return nil, fmt.Errorf("build krb5 client from ccache: %w", err)
	}
	return newInitiator(cl)
}

// newInitiator is the shared constructor tail: log in, confirm the login
// actually produced usable credentials, and wrap the client. AffirmLogin
// catches the case where Login succeeds against a KDC that then refuses
// to issue a TGT.
func newInitiator(cl *client.Client) (*InitiatorClient, error) {
	if err := cl.Login(); err != nil {
		return nil, fmt.Errorf("krb5 login: %w", err)
	}
	if err := cl.AffirmLogin(); err != nil {
		return nil, fmt.Errorf("affirm krb5 login: %w", err)
	}
	return &InitiatorClient{client: cl}, nil
}

// InitiatorClient drives the GSSAPI initiator side of the exchange for one
// SSH authentication attempt; it is not safe to reuse across connections.
type InitiatorClient struct {
	state  initiatorState
	client *client.Client
	subkey types.EncryptionKey
}

// InitSecContext implements ssh.GSSAPIClient. The first call emits the
// AP-REQ token for target and asks the caller to continue; the second call
// consumes the acceptor's mutual-auth reply and completes the context.
func (k *InitiatorClient) InitSecContext(target string, token []byte, isGSSDelegCreds bool) ([]byte, bool, error) {
	switch k.state {
	case stateStart:
		out, err := k.buildInitialToken(target, isGSSDelegCreds)
		if err != nil {
			return nil, false, err
		}
		k.state = stateWaitForMutual
		return out, true, nil

	case stateWaitForMutual:
		if err := consumeMutualReply(token); err != nil {
			return nil, false, err
		}
		k.state = stateReady
		return nil, false, nil

	default:
		return nil, false, fmt.Errorf("security context already established")
	}
}

// buildInitialToken fetches a service ticket for target and wraps it,
// together with a freshly keyed authenticator, into the marshaled KRB5
// AP-REQ token the SSH server expects as the opening message.
func (k *InitiatorClient) buildInitialToken(target string, delegate bool) ([]byte, error) {
	// ssh hands the target as host@fqdn; Kerberos SPNs use host/fqdn.
	spn := strings.ReplaceAll(target, "@", "/")

	ticket, sessionKey, err := k.client.GetServiceTicket(spn)
	if err != nil {
		return nil, fmt.Errorf("get service ticket for %s: %w", spn, err)
	}

	ctxFlags := contextFlags(delegate)
	krb5Token, err := spnego.NewKRB5TokenAPREQ(k.client, ticket, sessionKey, ctxFlags, apReqOptions)
	if err != nil {
		return nil, fmt.Errorf("build AP-REQ token: %w", err)
	}

	apReq, subkey, err := k.buildAPReq(ticket, sessionKey, ctxFlags)
	if err != nil {
		return nil, err
	}
	k.subkey = subkey
	krb5Token.APReq = apReq

	out, err := krb5Token.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal AP-REQ token: %w", err)
	}
	return out, nil
}

// buildAPReq assembles the AP-REQ message whose authenticator carries the
// GSS-API checksum and a session subkey; the subkey is what GetMIC signs
// with once the context is up.
func (k *InitiatorClient) buildAPReq(ticket messages.Ticket, sessionKey types.EncryptionKey, ctxFlags []int) (messages.APReq, types.EncryptionKey, error) {
	creds := k.client.Credentials
	authenticator, err := types.NewAuthenticator(creds.Domain(), creds.CName())
	if err != nil {
		return messages.APReq{}, types.EncryptionKey{}, fmt.Errorf("build authenticator: %w", err)
	}
	authenticator.Cksum = types.Checksum{
		CksumType: chksumtype.GSSAPI,
		Checksum:  checksumField(ctxFlags),
	}

	etype, err := crypto.GetEtype(sessionKey.KeyType)
	if err != nil {
		return messages.APReq{}, types.EncryptionKey{}, fmt.Errorf("resolve encryption type: %w", err)
	}
	if err := authenticator.GenerateSeqNumberAndSubKey(sessionKey.KeyType, etype.GetKeyByteSize()); err != nil {
		return messages.APReq{}, types.EncryptionKey{}, fmt.Errorf("generate subkey: %w", err)
	}

	apReq, err := messages.NewAPReq(ticket, sessionKey, authenticator)
	if err != nil {
		return messages.APReq{}, types.EncryptionKey{}, fmt.Errorf("build AP-REQ: %w", err)
	}
	for _, opt := range apReqOptions {
		types.SetFlag(&apReq.APOptions, opt)
	}
	return apReq, authenticator.SubKey, nil
}

// consumeMutualReply validates that the acceptor's reply parses as a KRB5
// token; a parse failure means the server did not complete mutual auth.
func consumeMutualReply(token []byte) error {
	var reply spnego.KRB5Token
	if err := reply.Unmarshal(token); err != nil {
		return fmt.Errorf("unmarshal AP-REP token: %w", err)
	}
	return nil
}

// contextFlags lists the context-establishment flags requested of the
// acceptor: integrity and mutual auth always, delegation only on request.
func contextFlags(delegate bool) []int {
	f := []int{contextFlagReady, gssapi.ContextFlagInteg, gssapi.ContextFlagMutual}
	if delegate {
		f = append(f, gssapi.ContextFlagDeleg)
	}
	return f
}

// checksumField renders the GSS-API checksum carried in the AP-REQ
// authenticator: a length-prefixed 16-byte zero channel-binding block, the
// OR of the requested flags as a little-endian word, and a trailing
// four-byte delegation stub when delegation is among the flags.
func checksumField(ctxFlags []int) []byte {
	size := 24
	var word uint32
	for _, f := range ctxFlags {
		word |= uint32(f)
		if f == gssapi.ContextFlagDeleg {
			size = 28
		}
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[:4], 16)
	binary.LittleEndian.PutUint32(buf[20:24], word)
	return buf
}

// GetMIC signs micField with the context subkey, proving to the server
// that the party who established the context is the one authenticating.
func (k *InitiatorClient) GetMIC(micField []byte) ([]byte, error) {
	micToken, err := gssapi.NewInitiatorMICToken(micField, k.subkey)
	if err != nil {
		return nil, err
	}
	return micToken.Marshal()
}

// DeleteSecContext releases the underlying Kerberos client's credential
// cache.
func (k *InitiatorClient) DeleteSecContext() error {
	k.client.Destroy()
	return nil
}
