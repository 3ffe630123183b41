package crypto

import "errors"

var (
	// ErrIntegrity indicates the envelope's integrity digest does not match
	// its fields. The envelope is rejected before decryption is attempted.
	ErrIntegrity = errors.New("envelope integrity digest mismatch")
	// ErrDecryption indicates authenticated decryption failed. The cause is
	// deliberately not reported to avoid acting as a decryption oracle.
	ErrDecryption = errors.New("decryption failed")
	// ErrUnknownKeyVersion indicates the engine holds no master key for the
	// requested key version.
	ErrUnknownKeyVersion = errors.New("unknown master key version")
)
