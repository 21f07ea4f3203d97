package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// LoadError is a configuration file that could not be loaded.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Load reads path (.cue, .yaml or .yml) over Default and validates the
// result. Fields absent from the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{Path: path, Message: err.Error()}
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		err = decodeCUE(path, data, &cfg)
	case ".yaml", ".yml":
		err = decodeYAML(path, data, &cfg)
	default:
		return Config{}, &LoadError{Path: path, Message: "unsupported config format, want .cue, .yaml or .yml"}
	}
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, &LoadError{Path: path, Message: err.Error()}
	}
	return cfg, nil
}

// decodeCUE unifies the file with #Config, requires a concrete result and
// decodes it through its JSON form over cfg.
func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return cueLoadError(path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueLoadError(path, err)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return cueLoadError(path, err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return &LoadError{Path: path, Message: err.Error()}
	}
	return nil
}

func cueLoadError(path string, err error) error {
	le := &LoadError{Path: path, Message: cueerrors.Details(err, nil)}
	le.Message = strings.TrimSpace(le.Message)
	var cerr cueerrors.Error
	if errors.As(err, &cerr) {
		le.Message = strings.TrimSpace(cerr.Error())
		if pos := cerr.Position(); pos.IsValid() {
			le.Pos = pos
		}
	}
	return le
}

func decodeYAML(path string, data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &LoadError{Path: path, Message: err.Error()}
	}
	return nil
}
