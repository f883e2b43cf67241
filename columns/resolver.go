package columns

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

// Resolver builds column catalogs and resolves column identifiers against the
// attribute registry.
type Resolver struct {
	attributes types.AttributeLookup
	logger     types.Logger
}

// NewResolver returns a resolver backed by the attribute lookup. A nil lookup
// yields fixed columns only.
func NewResolver(attributes types.AttributeLookup, logger types.Logger) *Resolver {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Resolver{attributes: attributes, logger: logger}
}

// AvailableColumns returns the fixed columns of the list type followed by one
// entry per custom attribute of its subject kind when orgID is set.
func (r *Resolver) AvailableColumns(ctx context.Context, listType types.ListType, orgID uuid.UUID) ([]types.Column, error) {
	def, ok := Lookup(listType)
	if !ok {
		r.logger.Warn("unknown list type", "list_type", string(listType))
		return nil, types.ValidationError(types.ErrInvalidListType, types.TextCodeInvalidListType, map[string]any{
			"list_type": string(listType),
		})
	}
	out := append([]types.Column(nil), def.Columns...)
	if orgID == uuid.Nil || r.attributes == nil {
		return out, nil
	}
	attrs, err := r.attributes.ListAttributes(ctx, types.SubjectScope{OrgID: orgID, Kind: def.SubjectKind})
	if err != nil {
		return nil, err
	}
	for _, attr := range attrs {
		out = append(out, types.Column{
			Value:    attr.ID.String(),
			Label:    attr.Name,
			DataType: attr.DataType,
			IsCustom: true,
		})
	}
	return out, nil
}

// ValidateSortField checks that a sort expression names an available column.
// One leading "-" is stripped before the check. An empty sort is valid.
func (r *Resolver) ValidateSortField(ctx context.Context, listType types.ListType, orgID uuid.UUID, sort string) error {
	field := strings.TrimPrefix(strings.TrimSpace(sort), "-")
	if field == "" {
		return nil
	}
	cols, err := r.AvailableColumns(ctx, listType, orgID)
	if err != nil {
		return err
	}
	if id, ok := ParseCustomID(field); ok {
		field = id.String()
	} else {
		field = NormalizeFieldPath(field)
	}
	for _, col := range cols {
		if col.Value == field {
			return nil
		}
	}
	return types.ValidationError(types.ErrInvalidSortField, types.TextCodeInvalidSortField, map[string]any{
		"list_type": string(listType),
		"sort":      sort,
	})
}

// Resolve turns identifiers into column references. Custom identifiers that
// do not resolve inside the scope are dropped and reported in the returned
// diagnostics under stage. Duplicates are resolved once.
func (r *Resolver) Resolve(ctx context.Context, scope types.SubjectScope, identifiers []string, stage types.ClauseStage) ([]ColumnRef, types.Diagnostics, error) {
	var diags types.Diagnostics
	refs := make([]ColumnRef, 0, len(identifiers))
	seen := make(map[string]struct{}, len(identifiers))

	var customIDs []uuid.UUID
	for _, raw := range identifiers {
		if id, ok := ParseCustomID(raw); ok {
			customIDs = append(customIDs, id)
		}
	}
	defs, err := r.lookup(ctx, scope, customIDs)
	if err != nil {
		return nil, diags, err
	}

	for _, raw := range identifiers {
		if id, ok := ParseCustomID(raw); ok {
			key := id.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			def, found := defs[id]
			if !found {
				r.logger.Warn("custom attribute not found, skipping",
					"attribute_id", key,
					"organization_id", scope.OrgID.String(),
					"subject_kind", string(scope.Kind),
					"stage", string(stage),
				)
				diags.Skip(stage, raw, types.SkipReasonUnknownAttribute, nil)
				continue
			}
			refs = append(refs, CustomAttribute{Definition: def})
			continue
		}
		path := NormalizeFieldPath(raw)
		if path == "" {
			diags.Skip(stage, raw, types.SkipReasonInvalidIdentifier, nil)
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		refs = append(refs, FixedField{Path: path})
	}
	return refs, diags, nil
}

func (r *Resolver) lookup(ctx context.Context, scope types.SubjectScope, ids []uuid.UUID) (map[uuid.UUID]types.AttributeDefinition, error) {
	if len(ids) == 0 || r.attributes == nil {
		return map[uuid.UUID]types.AttributeDefinition{}, nil
	}
	return r.attributes.LookupAttributes(ctx, scope, ids)
}
