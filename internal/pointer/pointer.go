// Package pointer classifies and parses git-lfs pointer files.
package pointer

import (
	"io"
	"os"
	"strconv"
	"strings"

	"lfspull/internal/errors"
)

// Header is the exact first line of every git-lfs pointer file. The
// discriminator compares this many bytes verbatim.
const Header = "version https://git-lfs.github.com/spec/v1"

const (
	versionKey = "version"
	oidKey     = "oid"
	sizeKey    = "size"
)

type HashKind int

const (
	HashNone HashKind = iota
	HashSHA256
	HashOther
)

// Metadata is the parsed content of a pointer file, immutable once built.
// Oid carries the bare hex digest, with the algorithm prefix split off
// into Hash.
type Metadata struct {
	Version string
	Oid     string
	Size    int64
	Hash    HashKind
}

// IsPointerFile reports whether the file at path starts with the exact
// pointer header. Directories, shorter files and files with any other
// prefix are simply not pointers; only real read failures surface as
// errors.
func IsPointerFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, errors.FileIO(path, err)
	}
	if info.IsDir() {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, errors.FileIO(path, err)
	}
	defer f.Close()

	buf := make([]byte, len(Header))
	if _, err := io.ReadFull(f, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, errors.FileIO(path, err)
	}
	return string(buf) == Header, nil
}

// ParseFile reads path and parses its content as pointer text.
func ParseFile(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileIO(path, err)
	}
	return Parse(string(raw))
}

// Parse extracts pointer metadata from raw pointer text. Every line is a
// key/value pair keyed by its first space-separated token and valued by
// its last; line order does not matter and unknown keys are ignored.
func Parse(input string) (*Metadata, error) {
	entries := make(map[string]string)
	for _, line := range strings.Split(input, "\n") {
		fields := strings.Split(strings.TrimSuffix(line, "\r"), " ")
		entries[fields[0]] = fields[len(fields)-1]
	}

	sizeText, ok := entries[sizeKey]
	if !ok {
		return nil, errors.New(errors.InvalidFormat, "could not find size entry")
	}
	size, err := strconv.ParseInt(sizeText, 10, 64)
	if err != nil || size < 0 {
		return nil, errors.New(errors.InvalidFormat, "could not parse size entry: "+sizeText)
	}

	version, ok := entries[versionKey]
	if !ok {
		return nil, errors.New(errors.InvalidFormat, "could not find version entry")
	}

	oid, ok := entries[oidKey]
	if !ok {
		return nil, errors.New(errors.InvalidFormat, "could not find oid entry")
	}

	hash := HashNone
	if strings.Contains(oid, ":") {
		parts := strings.Split(oid, ":")
		if parts[0] == "sha256" {
			hash = HashSHA256
		} else {
			hash = HashOther
		}
		oid = parts[len(parts)-1]
	}

	return &Metadata{
		Version: version,
		Oid:     oid,
		Size:    size,
		Hash:    hash,
	}, nil
}
