package ext

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // fingerprinting only
	"crypto/sha1" //nolint:gosec // fingerprinting only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"reflect"
	"strings"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

// HashClass holds the Hash library.
type HashClass struct{}

// Hash returns hex-encoded digests and HMACs of strings. Md5 and Sha1 are
// for fingerprinting, not security.
func Hash() Library {
	t := reflect.TypeFor[HashClass]()
	digest := func(newHash func() hash.Hash) func(string) string {
		return func(s string) string {
			h := newHash()
			h.Write([]byte(s))
			return hex.EncodeToString(h.Sum(nil))
		}
	}
	return Library{Name: "Hash", Type: t, register: func(r *typemodel.Registry) error {
		return registerStatics(r, t, []static{
			{"Md5", digest(md5.New), []string{"value"}},
			{"Sha1", digest(sha1.New), []string{"value"}},
			{"Sha256", digest(sha256.New), []string{"value"}},
			{"Sha512", digest(sha512.New), []string{"value"}},
			{"Hmac", Hmac, []string{"value", "key", "algorithm"}},
		})
	}}
}

func hasher(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha384":
		return sha512.New384, nil
	case "sha512":
		return sha512.New, nil
	}
	return nil, fmt.Errorf("unsupported algorithm %q; use md5, sha1, sha256, sha384 or sha512", algorithm)
}

// Hmac returns the hex-encoded HMAC of value under key.
func Hmac(value, key, algorithm string) (string, error) {
	newHash, err := hasher(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(newHash, []byte(key))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
