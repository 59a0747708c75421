package attr

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// decl is the YAML shape of one attribute declaration.
type decl struct {
	Key          string   `yaml:"key"`
	Type         string   `yaml:"type"`
	Cardinality  string   `yaml:"cardinality"`
	Identity     bool     `yaml:"identity"`
	Of           []string `yaml:"of"`
	Schema       string   `yaml:"schema"`
	Target       string   `yaml:"target"`
	Table        string   `yaml:"table"`
	Column       string   `yaml:"column"`
	MaxLen       int      `yaml:"max-length"`
	FkAttr       string   `yaml:"fk-attr"`
	DeleteOrphan bool     `yaml:"delete-orphan"`
	OrderBy      string   `yaml:"order-by"`
}

// file is the YAML shape of a registry file.
type file struct {
	Schema     string `yaml:"schema"`
	Attributes []decl `yaml:"attributes"`
}

var typesByName = map[string]Type{
	"uuid":     TypeUUID,
	"int":      TypeInt,
	"long":     TypeLong,
	"string":   TypeString,
	"password": TypePassword,
	"boolean":  TypeBool,
	"decimal":  TypeDecimal,
	"instant":  TypeInstant,
	"enum":     TypeEnum,
	"keyword":  TypeKeyword,
	"symbol":   TypeSymbol,
	"ref":      TypeRef,
}

// Load reads attribute declarations from a YAML document. The file-level
// schema is the default for declarations that do not name their own.
// Custom codecs cannot be declared in YAML; install them with Transform on
// builders or via the engine's codec override map.
func Load(r io.Reader) ([]*Attribute, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("attr: decoding registry file: %w", err)
	}
	attrs := make([]*Attribute, 0, len(f.Attributes))
	for _, d := range f.Attributes {
		t, ok := typesByName[d.Type]
		if !ok {
			return nil, NewInvalidAttributeError(Key(d.Key), fmt.Sprintf("unknown domain type %q", d.Type))
		}
		a := &Attribute{
			Key:          Key(d.Key),
			Type:         t,
			Identity:     d.Identity,
			Schema:       f.Schema,
			Target:       Key(d.Target),
			Table:        d.Table,
			Column:       d.Column,
			MaxLen:       d.MaxLen,
			FkAttr:       Key(d.FkAttr),
			DeleteOrphan: d.DeleteOrphan,
			OrderBy:      Key(d.OrderBy),
		}
		if d.Schema != "" {
			a.Schema = d.Schema
		}
		switch d.Cardinality {
		case "":
			if t == TypeRef {
				a.Cardinality = CardOne
			}
		case "one":
			a.Cardinality = CardOne
		case "many":
			a.Cardinality = CardMany
		default:
			return nil, NewInvalidAttributeError(a.Key, fmt.Sprintf("unknown cardinality %q", d.Cardinality))
		}
		if a.Identity {
			a.Identities = append(a.Identities, a.Key)
		}
		for _, k := range d.Of {
			a.Identities = append(a.Identities, Key(k))
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// LoadFile reads attribute declarations from the named YAML file.
func LoadFile(path string) ([]*Attribute, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("attr: opening registry file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
