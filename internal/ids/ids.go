package ids

import (
	"math/big"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ShortIDLength is the length of identifiers produced by ShortID.
// 12 base62 characters carry roughly 71 bits of entropy.
const ShortIDLength = 12

// ShortID returns a short URL-safe identifier over the base62 alphabet,
// used for artifact download links where a full ULID is too long.
func ShortID() string {
	raw := uuid.New()
	num := new(big.Int).SetBytes(raw[:])
	encoded := encodeBase62(num)
	for len(encoded) < ShortIDLength {
		encoded += string(base62Alphabet[mathrand.Intn(len(base62Alphabet))])
	}
	return encoded[:ShortIDLength]
}

func encodeBase62(num *big.Int) string {
	if num.Sign() == 0 {
		return string(base62Alphabet[0])
	}
	base := big.NewInt(int64(len(base62Alphabet)))
	rem := new(big.Int)
	var buf []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, rem)
		buf = append(buf, base62Alphabet[rem.Int64()])
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
