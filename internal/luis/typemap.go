package luis

import "fmt"

const builtinPrefix = "builtin."

// TypeMapper renames builtin entity types to the names configured for them.
// It is read-only after construction.
type TypeMapper struct {
	byBuiltin map[string]string
}

// NewTypeMapper takes the configured domain name -> builtin name table. Two
// domain names claiming the same builtin is a configuration error.
func NewTypeMapper(prebuilt map[string]string) (TypeMapper, error) {
	byBuiltin := make(map[string]string, len(prebuilt))
	for domainName, builtinName := range prebuilt {
		key := builtinPrefix + builtinName
		if existing, ok := byBuiltin[key]; ok {
			return TypeMapper{}, fmt.Errorf("prebuilt entity type %q is mapped by both %q and %q", builtinName, existing, domainName)
		}
		byBuiltin[key] = domainName
	}
	return TypeMapper{byBuiltin: byBuiltin}, nil
}

func (m TypeMapper) Map(entityType string) string {
	if mapped, ok := m.byBuiltin[entityType]; ok {
		return mapped
	}
	return entityType
}
