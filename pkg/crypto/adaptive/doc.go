// Package adaptive seals small values with an AEAD cipher chosen for the
// host: AES-256-GCM where the CPU accelerates AES, ChaCha20-Poly1305
// elsewhere.
//
// Keys are derived from a passphrase with Argon2id; the salt is supplied
// by the caller so it can be persisted next to the sealed data.
//
//	salt, _ := adaptive.NewSalt()
//	key := adaptive.DeriveKey([]byte(passphrase), salt)
//	c, _ := adaptive.New(key)
//	sealed, _ := c.Encrypt(plaintext, []byte("k8s_dashboard_token"))
//
// The nonce is random per call and prepended to the ciphertext.
package adaptive
