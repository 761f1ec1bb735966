package optimization

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Config is a structured configuration navigated by dotted paths.
// Nested levels are plain maps so configurations round-trip through JSON.
type Config map[string]interface{}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	out := make(Config, len(c))
	for k, v := range c {
		if nested, ok := toNested(v); ok {
			out[k] = map[string]interface{}(Config(nested).Clone())
			continue
		}
		out[k] = v
	}
	return out
}

func toNested(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Config:
		return m, true
	default:
		return nil, false
	}
}

// Hash returns a stable hash of the configuration. Map keys are sorted by
// the JSON encoder, so equal configurations hash equally across runs.
func (c Config) Hash() string {
	data, err := json.Marshal(c)
	if err != nil {
		// Config values come from decode or user input; non-marshalable
		// values are a contract violation.
		panic(fmt.Sprintf("config not hashable: %v", err))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Bounds is an inclusive numeric range with Low < High.
type Bounds struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Parameter declares one tunable dimension. A parameter is numeric
// (Bounds set) or categorical (Choices set), never both, never neither.
type Parameter struct {
	// Name is the unique key for this parameter. It doubles as the dotted
	// path into the configuration unless Path overrides it.
	Name string
	// Path optionally overrides the configuration path.
	Path string
	// Bounds marks the parameter numeric.
	Bounds *Bounds
	// Choices marks the parameter categorical. Order is significant: the
	// encoded value is the index into this slice.
	Choices []interface{}
}

// Numeric creates a continuous bounded parameter.
func Numeric(name string, low, high float64) Parameter {
	return Parameter{Name: name, Bounds: &Bounds{Low: low, High: high}}
}

// Categorical creates a discrete parameter over an ordered set of choices.
func Categorical(name string, choices ...interface{}) Parameter {
	return Parameter{Name: name, Choices: choices}
}

// IsNumeric reports whether the parameter is in numeric mode.
func (p Parameter) IsNumeric() bool {
	return p.Bounds != nil
}

// ConfigPath returns the dotted path used to read and write this parameter.
func (p Parameter) ConfigPath() string {
	if p.Path != "" {
		return p.Path
	}
	return p.Name
}

func (p Parameter) check() error {
	if p.Name == "" {
		return NewValidationError("", "parameter name must not be empty")
	}
	if p.Bounds != nil && p.Choices != nil {
		return NewValidationError(p.Name, "parameter cannot define both bounds and choices")
	}
	if p.Bounds == nil && p.Choices == nil {
		return NewValidationError(p.Name, "parameter must define either bounds or choices")
	}
	if p.Bounds != nil {
		if math.IsNaN(p.Bounds.Low) || math.IsInf(p.Bounds.Low, 0) ||
			math.IsNaN(p.Bounds.High) || math.IsInf(p.Bounds.High, 0) {
			return NewValidationError(p.Name, "bounds must be finite, got (%v, %v)", p.Bounds.Low, p.Bounds.High)
		}
		if p.Bounds.Low >= p.Bounds.High {
			return NewValidationError(p.Name, "bounds require low < high, got (%v, %v)", p.Bounds.Low, p.Bounds.High)
		}
	}
	if p.Choices != nil {
		if len(p.Choices) == 0 {
			return NewValidationError(p.Name, "choices must not be empty")
		}
		seen := make(map[string]struct{}, len(p.Choices))
		for _, choice := range p.Choices {
			key := fmt.Sprintf("%T:%v", choice, choice)
			if _, dup := seen[key]; dup {
				return NewValidationError(p.Name, "duplicate choice %v", choice)
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

// encode converts a config-space value to its encoded float.
func (p Parameter) encode(value interface{}) (float64, error) {
	if p.Choices != nil {
		for i, choice := range p.Choices {
			if choiceEqual(choice, value) {
				return float64(i), nil
			}
		}
		return 0, NewValidationError(p.Name, "invalid categorical choice: %v", value)
	}
	num, ok := asFloat(value)
	if !ok {
		return 0, NewValidationError(p.Name, "requires a numeric value, got %T", value)
	}
	return num, nil
}

// decode converts an encoded float back to a config-space value. Categorical
// values are rounded and clamped into the valid index range.
func (p Parameter) decode(value float64) interface{} {
	if p.Choices != nil {
		index := int(math.Round(value))
		if index < 0 {
			index = 0
		}
		if index > len(p.Choices)-1 {
			index = len(p.Choices) - 1
		}
		return p.Choices[index]
	}
	return value
}

func (p Parameter) validate(value interface{}, strict bool) error {
	if p.Choices != nil {
		for _, choice := range p.Choices {
			if choiceEqual(choice, value) {
				return nil
			}
		}
		return NewValidationError(p.Name, "invalid categorical choice: %v", value)
	}
	num, ok := asFloat(value)
	if !ok {
		return NewValidationError(p.Name, "requires a numeric value, got %T", value)
	}
	if strict && (num < p.Bounds.Low || num > p.Bounds.High) {
		return NewValidationError(p.Name, "out of bounds: %v not in [%v, %v]", num, p.Bounds.Low, p.Bounds.High)
	}
	return nil
}

func choiceEqual(choice, value interface{}) bool {
	if choice == value {
		return true
	}
	// Numeric choices compare by value so 1 and 1.0 are the same choice
	// after a JSON or YAML round trip.
	cf, cok := asFloat(choice)
	vf, vok := asFloat(value)
	return cok && vok && cf == vf
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Space is an ordered sequence of unique-named parameters. The order is the
// canonical encoding order and is stable across process runs.
type Space struct {
	params []Parameter
}

// NewSpace validates the parameter definitions and builds a Space.
func NewSpace(params ...Parameter) (*Space, error) {
	if len(params) == 0 {
		return nil, NewValidationError("", "space requires at least one parameter")
	}
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if err := p.check(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.Name]; dup {
			return nil, NewValidationError(p.Name, "duplicate parameter name")
		}
		seen[p.Name] = struct{}{}
	}
	return &Space{params: append([]Parameter(nil), params...)}, nil
}

// Len returns the number of dimensions.
func (s *Space) Len() int { return len(s.params) }

// Parameters returns a copy of the parameter definitions in encoding order.
func (s *Space) Parameters() []Parameter {
	return append([]Parameter(nil), s.params...)
}

// Names returns the parameter names in encoding order.
func (s *Space) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// IsNumeric reports whether every parameter is numeric. Numeric-only
// strategies use this as their construction-time guard.
func (s *Space) IsNumeric() bool {
	for _, p := range s.params {
		if !p.IsNumeric() {
			return false
		}
	}
	return true
}

// Encode maps a configuration to its flat numeric vector in parameter order.
func (s *Space) Encode(cfg Config) ([]float64, error) {
	vec := make([]float64, len(s.params))
	for i, p := range s.params {
		value, err := getPath(cfg, p.ConfigPath())
		if err != nil {
			return nil, err
		}
		encoded, err := p.encode(value)
		if err != nil {
			return nil, err
		}
		vec[i] = encoded
	}
	return vec, nil
}

// Decode maps an encoded vector back to a fresh configuration. The input is
// never mutated and decoding the same vector twice yields equal output.
func (s *Space) Decode(vec []float64) (Config, error) {
	return s.DecodeInto(vec, nil)
}

// DecodeInto decodes on top of a deep copy of base, preserving entries that
// are not declared parameters. A nil base starts from an empty configuration.
func (s *Space) DecodeInto(vec []float64, base Config) (Config, error) {
	if len(vec) != len(s.params) {
		return nil, NewValidationError("", "encoded vector length mismatch: expected %d, got %d", len(s.params), len(vec))
	}
	cfg := base.Clone()
	for i, p := range s.params {
		setPath(cfg, p.ConfigPath(), p.decode(vec[i]))
	}
	return cfg, nil
}

// Validate checks a configuration against the space. In strict mode numeric
// values must also lie within their declared bounds.
func (s *Space) Validate(cfg Config, strict bool) error {
	for _, p := range s.params {
		value, err := getPath(cfg, p.ConfigPath())
		if err != nil {
			return err
		}
		if err := p.validate(value, strict); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint returns a stable hash of the space definition, used to tie a
// run's artifacts back to the exact space they were produced under.
func (s *Space) Fingerprint() string {
	var b strings.Builder
	for _, p := range s.params {
		b.WriteString(p.Name)
		b.WriteByte('|')
		b.WriteString(p.ConfigPath())
		b.WriteByte('|')
		if p.Bounds != nil {
			fmt.Fprintf(&b, "num:%v:%v", p.Bounds.Low, p.Bounds.High)
		} else {
			b.WriteString("cat")
			for _, choice := range p.Choices {
				fmt.Fprintf(&b, ":%v", choice)
			}
		}
		b.WriteByte('\n')
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

func getPath(cfg Config, path string) (interface{}, error) {
	var current interface{} = map[string]interface{}(cfg)
	for _, segment := range strings.Split(path, ".") {
		nested, ok := toNested(current)
		if !ok {
			return nil, NewValidationError(path, "missing from configuration")
		}
		current, ok = nested[segment]
		if !ok {
			return nil, NewValidationError(path, "missing from configuration")
		}
	}
	return current, nil
}

func setPath(cfg Config, path string, value interface{}) {
	segments := strings.Split(path, ".")
	current := map[string]interface{}(cfg)
	for _, segment := range segments[:len(segments)-1] {
		next, ok := toNested(current[segment])
		if !ok {
			next = map[string]interface{}{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
