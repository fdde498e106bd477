package output

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// HashLength is the number of hex characters of the content hash kept in
// production file names.
const HashLength = 20

// ContentHash returns the truncated hex sha256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:HashLength]
}

// Namer derives output-relative file names.
type Namer struct {
	Hashed bool
}

// Name returns dir/<stem>.<ext> or, when hashing, dir/<stem>.<hash>.<ext>.
// The result is slash separated.
func (n Namer) Name(dir, base string, content []byte) string {
	if !n.Hashed {
		return path.Join(dir, base)
	}
	return path.Join(dir, HashedName(base, content))
}

// Stable returns dir/base regardless of mode.
func (n Namer) Stable(dir, base string) string {
	return path.Join(dir, base)
}

// HashedName inserts the content hash before the final extension.
func HashedName(base string, content []byte) string {
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem + "." + ContentHash(content) + ext
}
