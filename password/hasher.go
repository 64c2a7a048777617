package password

import (
	"errors"
	"strings"
)

const (
	// MinPasswordBytes is the shortest password accepted by Hash.
	MinPasswordBytes = 8
	// MaxPasswordBytes is bcrypt's input limit; longer inputs are rejected rather than truncated.
	MaxPasswordBytes = 72
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash is returned when no configured algorithm recognizes a stored hash.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

// Hasher hashes new passwords and verifies stored hashes.
//
// Verify returns (false, nil) for a wrong password and a non-nil error only
// when the stored hash itself is unusable.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Algorithm names accepted by [New].
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Config selects the algorithm used for new hashes. Verification always
// accepts both bcrypt and argon2id encodings.
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultConfig returns bcrypt at cost 12 with argon2id parameters for
// verification of legacy hashes.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: 12,
		Argon2: Argon2Config{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

// Multi hashes with its primary algorithm and verifies any supported encoding.
type Multi struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon2  *Argon2
}

var _ Hasher = (*Multi)(nil)

// New builds a [Multi] from cfg.
func New(cfg Config) (*Multi, error) {
	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	m := &Multi{bcrypt: b, argon2: a}
	switch strings.ToLower(strings.TrimSpace(cfg.Algorithm)) {
	case "", AlgorithmBcrypt:
		m.primary = b
	case AlgorithmArgon2id:
		m.primary = a
	default:
		return nil, errors.New("unsupported password algorithm: " + cfg.Algorithm)
	}
	return m, nil
}

// Hash hashes with the primary algorithm.
func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

// Verify dispatches on the hash prefix.
func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	switch {
	case isBcryptHash(encodedHash):
		return m.bcrypt.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$"+argon2AlgorithmID+"$"):
		return m.argon2.Verify(password, encodedHash)
	default:
		return false, ErrUnsupportedHash
	}
}

// Algorithm reports the primary algorithm name.
func (m *Multi) Algorithm() string {
	if _, ok := m.primary.(*Argon2); ok {
		return AlgorithmArgon2id
	}
	return AlgorithmBcrypt
}

func checkLength(password string) error {
	// Raw bytes, no Unicode normalization.
	if len(password) < MinPasswordBytes {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
