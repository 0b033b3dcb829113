// AES/CFB8 stream cipher as used on the wire once a login key exchange has
// completed. The cipher operates below framing on the raw socket bytes: the
// same 16-byte shared secret doubles as key and IV, and each direction keeps
// its own feedback register.
//
// The standard library only ships CFB with full-block feedback, so the 8-bit
// feedback variant is implemented here on top of crypto/aes.
package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"strconv"
)

// SecretSize is the required length of the shared secret in bytes.
const SecretSize = 16

type KeySizeError int

func (k KeySizeError) Error() string {
	return "protocol: invalid shared secret size " + strconv.Itoa(int(k))
}

// cfb8 holds one direction's keystream state. After every byte the feedback
// register shifts by one and absorbs the ciphertext byte, so skipping or
// reordering even a single byte desynchronizes the stream permanently.
type cfb8 struct {
	block    cipher.Block
	register [SecretSize]byte
	scratch  [SecretSize]byte
	decrypt  bool
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) *cfb8 {
	c := &cfb8{block: block, decrypt: decrypt}
	copy(c.register[:], iv)
	return c
}

// xorKeyStream transforms b in place. The operation never changes the length
// of the data and cannot fail.
func (c *cfb8) xorKeyStream(b []byte) {
	for i := range b {
		c.block.Encrypt(c.scratch[:], c.register[:])

		in := b[i]
		out := in ^ c.scratch[0]
		b[i] = out

		feedback := out
		if c.decrypt {
			feedback = in
		}

		copy(c.register[:], c.register[1:])
		c.register[SecretSize-1] = feedback
	}
}

// CryptoSession owns the cipher state for one connection. The inbound and
// outbound keystreams advance independently, mirroring the per-direction
// cursors kept by the peer.
type CryptoSession struct {
	outbound *cfb8
	inbound  *cfb8
}

// NewCryptoSession initializes both cipher directions from the finished
// shared secret. Producing the secret (the login key exchange) is the
// caller's concern; this layer only applies the keystream.
func NewCryptoSession(secret []byte) (*CryptoSession, error) {
	if len(secret) != SecretSize {
		return nil, KeySizeError(len(secret))
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}

	return &CryptoSession{
		outbound: newCFB8(block, secret, false),
		inbound:  newCFB8(block, secret, true),
	}, nil
}

// Encrypt transforms outbound plaintext in place.
func (s *CryptoSession) Encrypt(b []byte) { s.outbound.xorKeyStream(b) }

// Decrypt transforms inbound ciphertext in place.
func (s *CryptoSession) Decrypt(b []byte) { s.inbound.xorKeyStream(b) }
