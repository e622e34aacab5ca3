package plan

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avaricia/agentflow/internal/errors"
)

// Unmarshal decodes a plan artifact from YAML bytes
func Unmarshal(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileUnmarshal, "unmarshal plan", err)
	}
	return &p, nil
}

// Marshal encodes the plan as a two-space-indented YAML document
func Marshal(p *Plan) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileMarshal, "marshal plan "+p.ID, err)
	}
	return data, nil
}

// Load reads and validates a plan artifact. Callers that need lock tokens
// for subsequent writes go through the store instead.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read plan file "+path, err)
	}

	p, err := Unmarshal(data)
	if err != nil {
		return nil, errors.NewFileUnmarshalError(path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
