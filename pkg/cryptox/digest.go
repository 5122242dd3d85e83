package cryptox

import (
	"crypto/md5" // #nosec G501 - fixed wire format expected by the gateway, not a security boundary
	"encoding/hex"
)

// DigestPrefix tags a password digest with the algorithm that produced it.
const DigestPrefix = "md5"

// PasswordDigest returns the hashed password format the CoSelPro gateway
// expects at login: "md5" followed by hex(md5(password + login)).
//
// This mirrors the PostgreSQL md5 password convention. It is deterministic and
// must stay bit-exact; it protects nothing on its own.
func PasswordDigest(password, login string) string {
	sum := md5.Sum([]byte(password + login)) // #nosec G401
	return DigestPrefix + hex.EncodeToString(sum[:])
}
