package migration

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "migration.schema.json"

// Loader reads YAML migration files and validates them against the
// embedded JSON schema
type Loader struct {
	schema *jsonschema.Schema
	log    *slog.Logger
}

// NewLoader compiles the migration schema
func NewLoader(log *slog.Logger) (*Loader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add migration schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile migration schema: %w", err)
	}
	return &Loader{schema: schema, log: log.With("component", "migration")}, nil
}

// Load parses and validates a migration file
func (l *Loader) Load(ctx context.Context, path string) (*domain.Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration: %w", err)
	}

	m, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if m.Name == "" {
		m.Name = nameFromPath(path)
	}
	m.Source = path
	l.log.Debug("loaded migration", "name", m.Name, "path", path, "steps", len(m.Steps))
	return m, nil
}

// Parse decodes and validates migration YAML
func (l *Loader) Parse(data []byte) (*domain.Migration, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", domain.ErrConfig, err)
	}
	doc, err := nodeValue(&node)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", domain.ErrConfig, err)
	}

	// The validator wants JSON-shaped values, so round trip through JSON
	generic, err := toJSONValue(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	if err := l.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConfig, describeValidation(err))
	}

	root := doc.(map[string]any)
	m := &domain.Migration{}
	if name, ok := root["name"].(string); ok {
		m.Name = name
	}

	items, _ := root["steps"].([]any)
	for i, item := range items {
		step, err := decodeStep(item.(map[string]any))
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", domain.ErrConfig, i, err)
		}
		m.Steps = append(m.Steps, step)
	}
	return m, nil
}

// Discover lists *.yaml and *.yml files in dir ordered by their numeric
// prefix (1_initial.yaml, 2_deploy.yaml, 10_upgrade.yaml)
func (l *Loader) Discover(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		ext := filepath.Ext(e.Name())
		return e.Name(), !e.IsDir() && (ext == ".yaml" || ext == ".yml")
	})
	sort.SliceStable(files, func(i, j int) bool {
		pi, oki := numericPrefix(files[i])
		pj, okj := numericPrefix(files[j])
		if oki && okj && pi != pj {
			return pi < pj
		}
		if oki != okj {
			return oki
		}
		return files[i] < files[j]
	})

	return lo.Map(files, func(name string, _ int) string { return filepath.Join(dir, name) }), nil
}

func decodeStep(raw map[string]any) (*domain.Step, error) {
	step := &domain.Step{}
	fields := raw

	if kind, ok := raw["kind"].(string); ok {
		step.Kind = domain.StepKind(kind)
	} else {
		for _, kind := range []domain.StepKind{domain.StepDeploy, domain.StepLink, domain.StepCall} {
			body, ok := raw[string(kind)]
			if !ok {
				continue
			}
			step.Kind = kind
			switch b := body.(type) {
			case string:
				step.Contract = b
			case map[string]any:
				// Step-level keys next to the short form override the inner ones
				fields = lo.Assign(b, lo.OmitByKeys(raw, []string{string(kind)}))
			}
			break
		}
	}

	if v, ok := fields["contract"].(string); ok {
		step.Contract = v
	}
	if v, ok := fields["library"].(string); ok {
		step.Library = v
	}
	if v, ok := fields["method"].(string); ok {
		step.Method = v
	}
	if v, ok := fields["args"].([]any); ok {
		step.Args = v
	}
	if v, ok := raw["args"].([]any); ok && step.Args == nil {
		step.Args = v
	}

	gas, err := uintField(fields, raw, "gas")
	if err != nil {
		return nil, err
	}
	if gas != nil {
		step.Gas = gas.Uint64()
	}
	value, err := uintField(fields, raw, "value")
	if err != nil {
		return nil, err
	}
	step.Value = value

	return step, nil
}

// uintField reads a non-negative integer given as a YAML number or a decimal string
func uintField(fields, raw map[string]any, key string) (*big.Int, error) {
	v, ok := fields[key]
	if !ok {
		if v, ok = raw[key]; !ok {
			return nil, nil
		}
	}

	var n *big.Int
	switch x := v.(type) {
	case int:
		n = big.NewInt(int64(x))
	case *big.Int:
		n = x
	case uint64:
		n = new(big.Int).SetUint64(x)
	case string:
		parsed, ok := new(big.Int).SetString(x, 10)
		if !ok {
			return nil, fmt.Errorf("invalid %s %q", key, x)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("invalid %s %v", key, v)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%s must not be negative", key)
	}
	if key == "gas" && !n.IsUint64() {
		return nil, fmt.Errorf("gas %s out of range", n)
	}
	return n, nil
}

// nodeValue decodes a YAML node like yaml.Unmarshal into any, except that
// integers beyond 64 bits become *big.Int instead of a rounded float64
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if key.Tag == "!!merge" {
				if err := mergeInto(out, value); err != nil {
					return nil, err
				}
				continue
			}
			k, err := nodeValue(key)
			if err != nil {
				return nil, err
			}
			name, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("line %d: migration must be a mapping with string keys, got %v", key.Line, k)
			}
			v, err := nodeValue(value)
			if err != nil {
				return nil, err
			}
			out[name] = v
		}
		return out, nil
	}

	if isIntegerLiteral(n) {
		var v any
		if err := n.Decode(&v); err == nil {
			switch v.(type) {
			case int, int64, uint64:
				return v, nil
			}
		}
		i, ok := new(big.Int).SetString(strings.ReplaceAll(n.Value, "_", ""), 0)
		if !ok {
			return nil, fmt.Errorf("line %d: invalid integer %q", n.Line, n.Value)
		}
		return i, nil
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

var integerLiteral = regexp.MustCompile(`^[-+]?(0x[0-9a-fA-F_]+|0o[0-7_]+|0b[01_]+|[0-9][0-9_]*)$`)

// isIntegerLiteral reports whether a plain scalar is written as an integer.
// yaml.v3 tags integers that overflow 64 bits as !!float.
func isIntegerLiteral(n *yaml.Node) bool {
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return false
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
		return integerLiteral.MatchString(n.Value)
	}
	return false
}

// mergeInto applies a "<<" merge key; explicit keys take precedence
func mergeInto(out map[string]any, value *yaml.Node) error {
	sources := []*yaml.Node{value}
	if value.Kind == yaml.SequenceNode {
		sources = value.Content
	}
	for _, src := range sources {
		v, err := nodeValue(src)
		if err != nil {
			return err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("line %d: merge value must be a mapping", src.Line)
		}
		for k, mv := range m {
			if _, set := out[k]; !set {
				out[k] = mv
			}
		}
	}
	return nil
}

func toJSONValue(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("migration must be a mapping with string keys: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// describeValidation flattens a schema error to its leaf causes
func describeValidation(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var leaves []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return "invalid migration: " + strings.Join(lo.Uniq(leaves), "; ")
}

func nameFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.IndexByte(name, '_'); i > 0 {
		if _, err := strconv.Atoi(name[:i]); err == nil {
			return name[i+1:]
		}
	}
	return name
}

func numericPrefix(name string) (int, bool) {
	i := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:i])
	return n, err == nil
}

var _ usecase.MigrationLoader = (*Loader)(nil)
