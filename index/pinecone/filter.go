package pinecone

import (
	"strings"

	"github.com/ragmesh/ragmesh/core"
)

// supportedOps is the Pinecone metadata filter operator vocabulary.
var supportedOps = map[string]bool{
	"$eq":     true,
	"$ne":     true,
	"$gt":     true,
	"$gte":    true,
	"$lt":     true,
	"$lte":    true,
	"$in":     true,
	"$nin":    true,
	"$exists": true,
	"$and":    true,
	"$or":     true,
}

// ValidateFilter walks a filter and rejects unknown operators with a
// *core.UnsupportedFilterError. A nil filter is valid (no filtering).
func ValidateFilter(filter core.Filter) error {
	return validateClause(map[string]any(filter))
}

func validateClause(clause map[string]any) error {
	for key, value := range clause {
		if strings.HasPrefix(key, "$") {
			if !supportedOps[key] {
				return &core.UnsupportedFilterError{Op: key}
			}
			switch key {
			case "$and", "$or":
				clauses, ok := value.([]any)
				if !ok {
					return &core.UnsupportedFilterError{Op: key}
				}
				for _, sub := range clauses {
					m, ok := sub.(map[string]any)
					if !ok {
						return &core.UnsupportedFilterError{Op: key}
					}
					if err := validateClause(m); err != nil {
						return err
					}
				}
			}
			continue
		}
		// Field condition: either a literal ($eq shorthand) or an
		// operator map.
		if m, ok := value.(map[string]any); ok {
			if err := validateClause(m); err != nil {
				return err
			}
		}
	}
	return nil
}
