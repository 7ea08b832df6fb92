package config

import (
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"wingspan/internal/attrset"
	"wingspan/internal/toolchain"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "wingspan.yaml"

type Config struct {
	Toolchain struct {
		Clang      string   `yaml:"clang"`
		ClangFlags []string `yaml:"clang_flags"`
		Opt        string   `yaml:"opt"`
		Plugin     string   `yaml:"plugin"`
		Passes     []string `yaml:"passes"`
	} `yaml:"toolchain"`
	AttrSet attrset.Profile `yaml:"attrset"`
	Run     struct {
		KeepUnoptimized bool   `yaml:"keep_unoptimized"`
		Ledger          string `yaml:"ledger"`
	} `yaml:"run"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Toolchain.Clang = "clang"
	cfg.Toolchain.ClangFlags = append([]string{}, toolchain.DefaultCompilerFlags...)
	cfg.Toolchain.Opt = "opt"
	cfg.Toolchain.Plugin = DefaultPluginPath()
	cfg.Toolchain.Passes = []string{toolchain.DefaultPass}
	cfg.AttrSet = attrset.DefaultProfile()
	cfg.Run.Ledger = "wingspan.db"
	return &cfg
}

// DefaultPluginPath is the pass plugin next to the parent directory, named
// for the host's shared-library convention.
func DefaultPluginPath() string {
	switch runtime.GOOS {
	case "windows":
		return "../wingspan.dll"
	case "darwin":
		return "../wingspan.dylib"
	default:
		return "../wingspan.so"
	}
}

// LoadConfig layers the YAML file at path and the environment over the
// defaults. A missing file is an error only when required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := validate(file); err != nil {
			return nil, errors.Wrapf(err, "invalid config %s", path)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode config %s", path)
		}
	case os.IsNotExist(err) && !required:
		// defaults only
	default:
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	// 3. Override with Environment Variables if present
	if v := os.Getenv("WINGSPAN_CLANG"); v != "" {
		cfg.Toolchain.Clang = v
	}
	if v := os.Getenv("WINGSPAN_OPT"); v != "" {
		cfg.Toolchain.Opt = v
	}
	if v := os.Getenv("WINGSPAN_PLUGIN"); v != "" {
		cfg.Toolchain.Plugin = v
	}
	if v := os.Getenv("WINGSPAN_PASSES"); v != "" {
		cfg.Toolchain.Passes = splitList(v)
	}

	if err := cfg.AttrSet.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

const schemaURL = "https://wingspan.dev/schemas/config.json"

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "toolchain": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "clang": {"type": "string", "minLength": 1},
        "clang_flags": {"type": "array", "items": {"type": "string"}},
        "opt": {"type": "string", "minLength": 1},
        "plugin": {"type": "string", "minLength": 1},
        "passes": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
      }
    },
    "attrset": {
      "type": "object",
      "additionalProperties": false,
      "required": ["version", "body"],
      "properties": {
        "version": {"type": "string", "minLength": 1},
        "body": {"type": "string", "pattern": "^\\{[^\\r\\n]*\\}$"}
      }
    },
    "run": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "keep_unoptimized": {"type": "boolean"},
        "ledger": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// validate checks a raw YAML document against the config schema. The
// document goes through JSON first so the validator sees JSON types.
func validate(raw []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	schema, err := loadSchema()
	if err != nil {
		return errors.Wrap(err, "config schema")
	}
	return schema.Validate(v)
}
