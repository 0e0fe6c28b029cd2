// Package fingerprint selects the bytes that identify a file for duplicate detection.
// A strategy decides which bytes are fed into a hash, an algorithm decides the hash.
package fingerprint

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
)

var (
	// ErrUnknownStrategy is returned for a strategy code outside the closed set.
	ErrUnknownStrategy = errors.New("unknown fingerprint strategy")
	// ErrUnknownAlgorithm is returned for an unsupported digest algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
)

// Strategy selects which bytes of a file are hashed.
type Strategy int

const (
	// Content hashes the whole file.
	Content Strategy = iota
	// Block hashes the first block of the file.
	Block
	// Date hashes the base name and the modification time.
	Date
	// Metadata hashes embedded metadata (EXIF), falling back to Content.
	Metadata
	// Name hashes the base name only.
	Name
)

// Strategies lists all strategies in sidecar discovery order.
var Strategies = []Strategy{Content, Block, Date, Metadata, Name}

var strategyCodes = map[Strategy]string{
	Content:  "c",
	Block:    "b",
	Date:     "d",
	Metadata: "e",
	Name:     "n",
}

var strategyNames = map[Strategy]string{
	Content:  "content",
	Block:    "block",
	Date:     "date",
	Metadata: "metadata",
	Name:     "name",
}

// Code returns the one-letter code used in sidecar file names.
func (s Strategy) Code() string {
	return strategyCodes[s]
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy maps a one-letter code back to its Strategy.
func ParseStrategy(code string) (Strategy, error) {
	for _, s := range Strategies {
		if strategyCodes[s] == code {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, code)
}

// Algorithm is a supported digest algorithm.
type Algorithm int

const (
	SHA512 Algorithm = iota
	SHA384
	SHA256
	SHA224
	SHA1
	MD5
)

// Algorithms lists all algorithms in sidecar discovery order.
var Algorithms = []Algorithm{SHA512, SHA384, SHA256, SHA224, SHA1, MD5}

var algorithmNames = map[Algorithm]string{
	SHA512: "sha512",
	SHA384: "sha384",
	SHA256: "sha256",
	SHA224: "sha224",
	SHA1:   "sha1",
	MD5:    "md5",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps an algorithm name such as "sha256" to its Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range Algorithms {
		if algorithmNames[a] == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// New returns a fresh hasher for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New()
	case SHA384:
		return sha512.New384()
	case SHA256:
		return sha256.New()
	case SHA224:
		return sha256.New224()
	case SHA1:
		return sha1.New()
	case MD5:
		return md5.New()
	}
	panic(fmt.Sprintf("fingerprint: unhandled algorithm %d", int(a)))
}
