package plan

import (
	"fmt"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/avaricia/agentflow/internal/errors"
)

// Canonicalize returns the canonical serialized form of the plan with the
// integrity marker zeroed, so the checksum never covers itself.
func Canonicalize(p *Plan) ([]byte, error) {
	shallow := *p
	shallow.Checksum = ""

	data, err := yaml.Marshal(&shallow)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileMarshal, "canonicalize plan "+p.ID, err)
	}
	return data, nil
}

// ComputeChecksum computes the blake3 hex digest of the canonical plan form
func ComputeChecksum(p *Plan) (string, error) {
	canonical, err := Canonicalize(p)
	if err != nil {
		return "", err
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileMarshal, "hash plan "+p.ID, err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Digest hashes raw artifact bytes. The store compares digests to detect
// external edits that did not bump the version marker.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
