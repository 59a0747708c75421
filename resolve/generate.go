package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yenda/formsql/dialect"
	sqld "github.com/yenda/formsql/dialect/sql"
	"github.com/yenda/formsql/pgexec"
	"github.com/yenda/formsql/rowconv"
	"github.com/yenda/formsql/schema/attr"
	"github.com/yenda/formsql/sqltype"
)

// Generate compiles the resolvers of one schema: an identity resolver per
// identity attribute, and a reference resolver per reference attribute.
// Configuration errors surface here, at startup, never at request time.
func Generate(reg *attr.Registry, cs sqltype.Codecs, schema string) ([]*Resolver, error) {
	var out []*Resolver
	for _, a := range reg.Schema(schema) {
		switch {
		case a.Identity:
			r, err := identityResolver(reg, cs, a)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		case a.IsRef() && a.Cardinality == attr.CardOne && a.FkAttr == "":
			r, err := aliasResolver(a)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		case a.IsRef() && a.Cardinality == attr.CardOne:
			r, err := reverseOneResolver(reg, cs, a)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		case a.IsRef():
			r, err := reverseManyResolver(reg, cs, a)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// selectable returns the entity's attributes that are columns of its own
// table: the identity, scalars and forward to-one references. Password
// attributes are excluded; the engine never selects them back.
func selectable(reg *attr.Registry, identity attr.Key) ([]*attr.Attribute, error) {
	all, err := reg.Entity(identity)
	if err != nil {
		return nil, err
	}
	out := make([]*attr.Attribute, 0, len(all))
	for _, a := range all {
		if a.Type == attr.TypePassword {
			continue
		}
		if a.IsRef() && (a.Cardinality == attr.CardMany || a.FkAttr != "") {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// decoderFor resolves the decode half of an attribute's codec. Forward
// reference columns hold the target's id and decode with the target
// identity's codec.
func decoderFor(reg *attr.Registry, cs sqltype.Codecs, a *attr.Attribute) (func(any) (any, error), error) {
	if a.IsRef() {
		target, err := reg.Target(a)
		if err != nil {
			return nil, err
		}
		return sqltype.Resolve(target, cs).Decode, nil
	}
	return sqltype.Resolve(a, cs).Decode, nil
}

// batchPredicate renders "col = ANY($1::T[])" for the given id attribute.
func batchPredicate(col string, t attr.Type) string {
	return fmt.Sprintf("%s = ANY($1::%s)", col, sqltype.ArrayType(t))
}

func identityResolver(reg *attr.Registry, cs sqltype.Codecs, id *attr.Attribute) (*Resolver, error) {
	attrs, err := selectable(reg, id.Key)
	if err != nil {
		return nil, err
	}
	var (
		cols  = make([]string, 0, len(attrs))
		keys  = make([]attr.Key, 0, len(attrs))
		specs = make([]rowconv.Spec, 0, len(attrs))
	)
	for _, a := range attrs {
		col, err := sqltype.Column(a)
		if err != nil {
			return nil, err
		}
		dec, err := decoderFor(reg, cs, a)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		keys = append(keys, a.Key)
		specs = append(specs, rowconv.Spec{Column: col, Path: []attr.Key{a.Key}, Decode: dec})
	}
	transform, err := rowconv.Compile(specs)
	if err != nil {
		return nil, err
	}
	idCol := cols[0]
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(cols, ", "), id.Table, batchPredicate(idCol, id.Type))
	idKey := id.Key
	return &Resolver{
		Config: Config{
			Input:   idKey,
			Output:  keys,
			SQL:     query,
			Columns: cols,
			Schema:  id.Schema,
		},
		Batch: true,
		run: func(ctx context.Context, drv dialect.Driver, ids []any) (map[any]Entity, error) {
			rows, err := queryRows(ctx, drv, query, []any{pq.Array(ids)}, cols)
			if err != nil {
				return nil, err
			}
			byID := make(map[any]Entity, len(rows))
			for _, row := range rows {
				e, err := transform(row)
				if err != nil {
					return nil, err
				}
				byID[e[idKey]] = e
			}
			return byID, nil
		},
	}, nil
}

// aliasResolver handles a forward to-one reference: the entity's own table
// holds the foreign key, so no query is needed. The resolver re-labels the
// raw FK id as the nested reference's identity and defers field expansion
// to the target's identity resolver.
func aliasResolver(a *attr.Attribute) (*Resolver, error) {
	refKey, targetKey := a.Key, a.Target
	return &Resolver{
		Config: Config{
			Input:  refKey,
			Output: []attr.Key{refKey},
			Schema: a.Schema,
		},
		Batch: true,
		alias: func(v any) Entity {
			return Entity{refKey: Entity{targetKey: inputID(targetKey, v)}}
		},
	}, nil
}

// owner returns the identity attribute of the entity a reference belongs to.
func owner(reg *attr.Registry, a *attr.Attribute) (*attr.Attribute, error) {
	if len(a.Identities) == 0 {
		return nil, attr.NewInvalidAttributeError(a.Key, "reference belongs to no entity")
	}
	return reg.Identity(a.Identities[0])
}

// reverseOneResolver handles a to-one reference whose foreign key lives on
// the target table. Decoded target rows are wrapped under the reference's
// own key so downstream traversal sees {ref-key: {...target fields...}},
// self-referential relations included.
func reverseOneResolver(reg *attr.Registry, cs sqltype.Codecs, a *attr.Attribute) (*Resolver, error) {
	src, err := owner(reg, a)
	if err != nil {
		return nil, err
	}
	target, err := reg.Target(a)
	if err != nil {
		return nil, err
	}
	fk, err := reg.Get(a.FkAttr)
	if err != nil {
		return nil, err
	}
	fkCol, err := sqltype.Column(fk)
	if err != nil {
		return nil, err
	}
	attrs, err := selectable(reg, target.Key)
	if err != nil {
		return nil, err
	}
	var (
		cols  = make([]string, 0, len(attrs))
		specs = make([]rowconv.Spec, 0, len(attrs))
	)
	refKey := a.Key
	for _, t := range attrs {
		col, err := sqltype.Column(t)
		if err != nil {
			return nil, err
		}
		dec, err := decoderFor(reg, cs, t)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		specs = append(specs, rowconv.Spec{Column: col, Path: []attr.Key{refKey, t.Key}, Decode: dec})
	}
	transform, err := rowconv.Compile(specs)
	if err != nil {
		return nil, err
	}
	fkDecode := sqltype.Resolve(src, cs).Decode
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(cols, ", "), target.Table, batchPredicate(fkCol, src.Type))
	return &Resolver{
		Config: Config{
			Input:   src.Key,
			Output:  []attr.Key{refKey},
			SQL:     query,
			Columns: cols,
			Schema:  a.Schema,
		},
		Batch: true,
		run: func(ctx context.Context, drv dialect.Driver, ids []any) (map[any]Entity, error) {
			rows, err := queryRows(ctx, drv, query, []any{pq.Array(ids)}, cols)
			if err != nil {
				return nil, err
			}
			byID := make(map[any]Entity, len(rows))
			for _, row := range rows {
				k, err := sqltype.Decode(attr.Codec{Decode: fkDecode}, row[fkCol])
				if err != nil {
					return nil, err
				}
				e, err := transform(row)
				if err != nil {
					return nil, err
				}
				byID[k] = e
			}
			return byID, nil
		},
	}, nil
}

// reverseManyResolver handles a to-many reference: one grouped query
// aggregating the target ids per foreign key. Input ids with no related
// rows resolve to an empty collection, never to an absent field; the rest
// of the system depends on that normalization.
func reverseManyResolver(reg *attr.Registry, cs sqltype.Codecs, a *attr.Attribute) (*Resolver, error) {
	src, err := owner(reg, a)
	if err != nil {
		return nil, err
	}
	target, err := reg.Target(a)
	if err != nil {
		return nil, err
	}
	fk, err := reg.Get(a.FkAttr)
	if err != nil {
		return nil, err
	}
	fkCol, err := sqltype.Column(fk)
	if err != nil {
		return nil, err
	}
	targetCol, err := sqltype.Column(target)
	if err != nil {
		return nil, err
	}
	agg := targetCol
	if a.OrderBy != "" {
		ob, err := reg.Get(a.OrderBy)
		if err != nil {
			return nil, err
		}
		obCol, err := sqltype.Column(ob)
		if err != nil {
			return nil, err
		}
		agg = fmt.Sprintf("%s ORDER BY %s", targetCol, obCol)
	}
	query := fmt.Sprintf("SELECT %s AS k, array_agg(%s) AS v FROM %s WHERE %s GROUP BY %s",
		fkCol, agg, target.Table, batchPredicate(fkCol, src.Type), fkCol)
	fkDecode := sqltype.Resolve(src, cs).Decode
	elem, err := elemDecoder(target)
	if err != nil {
		return nil, err
	}
	refKey, targetKey := a.Key, target.Key
	return &Resolver{
		Config: Config{
			Input:   src.Key,
			Output:  []attr.Key{refKey},
			SQL:     query,
			Columns: []string{"k", "v"},
			Schema:  a.Schema,
		},
		Batch: true,
		empty: func() Entity {
			return Entity{refKey: []Entity{}}
		},
		run: func(ctx context.Context, drv dialect.Driver, ids []any) (map[any]Entity, error) {
			var rows sqld.Rows
			if err := drv.Query(ctx, query, []any{pq.Array(ids)}, &rows); err != nil {
				return nil, pgexec.NewSaveError(err)
			}
			defer rows.Close()
			byID := make(map[any]Entity, len(ids))
			for rows.Next() {
				var (
					rawK any
					ents []Entity
				)
				scan, collect := elem(targetKey, &ents)
				if err := rows.Scan(&rawK, scan); err != nil {
					return nil, pgexec.NewSaveError(err)
				}
				if err := collect(); err != nil {
					return nil, err
				}
				k, err := sqltype.Decode(attr.Codec{Decode: fkDecode}, rawK)
				if err != nil {
					return nil, err
				}
				byID[k] = Entity{refKey: ents}
			}
			if err := rows.Err(); err != nil {
				return nil, pgexec.NewSaveError(err)
			}
			return byID, nil
		},
	}, nil
}

// elemDecoder returns, per target identity type, a factory building the
// array scan destination and the collector turning scanned elements into
// wrapped {target-key: id} entities.
func elemDecoder(target *attr.Attribute) (func(targetKey attr.Key, out *[]Entity) (any, func() error), error) {
	switch target.Type {
	case attr.TypeUUID:
		return func(targetKey attr.Key, out *[]Entity) (any, func() error) {
			arr := &pq.StringArray{}
			return arr, func() error {
				*out = make([]Entity, 0, len(*arr))
				for _, s := range *arr {
					id, err := uuid.Parse(s)
					if err != nil {
						return fmt.Errorf("resolve: parsing aggregated uuid: %w", err)
					}
					*out = append(*out, Entity{targetKey: id})
				}
				return nil
			}
		}, nil
	case attr.TypeInt, attr.TypeLong:
		return func(targetKey attr.Key, out *[]Entity) (any, func() error) {
			arr := &pq.Int64Array{}
			return arr, func() error {
				*out = make([]Entity, 0, len(*arr))
				for _, n := range *arr {
					*out = append(*out, Entity{targetKey: n})
				}
				return nil
			}
		}, nil
	default:
		return nil, attr.NewInvalidAttributeError(target.Key, fmt.Sprintf("identity type %s cannot be aggregated", target.Type))
	}
}
