package attributes

import (
	"context"
	"errors"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// RegistryConfig wires the Bun-backed attribute registry. Either DB or all
// three repositories must be provided.
type RegistryConfig struct {
	DB         *bun.DB
	Attributes repository.Repository[*Attribute]
	Options    repository.Repository[*EnumOption]
	Values     repository.Repository[*Value]
	Clock      types.Clock
	IDGen      types.IDGenerator
	Logger     types.Logger
	Hooks      types.Hooks
}

type attributeStore interface {
	repository.Repository[*Attribute]
}

// Registry persists custom attribute definitions, enum options and values.
type Registry struct {
	attributeStore
	db      *bun.DB
	options repository.Repository[*EnumOption]
	values  repository.Repository[*Value]
	clock   types.Clock
	idGen   types.IDGenerator
	logger  types.Logger
	hooks   types.Hooks
}

// NewRegistry constructs the default attribute registry.
func NewRegistry(cfg RegistryConfig, opts ...RepositoryOption) (*Registry, error) {
	options := applyRepositoryOptions(opts)
	attrs := cfg.Attributes
	enums := cfg.Options
	values := cfg.Values
	if attrs == nil || enums == nil || values == nil {
		if cfg.DB == nil {
			return nil, errors.New("attributes: db or repositories required")
		}
		if attrs == nil {
			attrs = newAttributeRepository(cfg.DB)
		}
		if enums == nil {
			enums = newEnumOptionRepository(cfg.DB)
		}
		if values == nil {
			values = newValueRepository(cfg.DB)
		}
	}
	if options.CacheEnabled {
		if _, ok := attrs.(*repositorycache.CachedRepository[*Attribute]); !ok {
			cacheCfg := cache.DefaultConfig()
			if options.CacheConfig != nil {
				cacheCfg = *options.CacheConfig
			}
			svc, err := cache.NewCacheService(cacheCfg)
			if err != nil {
				return nil, err
			}
			attrs = repositorycache.New(attrs, svc, cache.NewDefaultKeySerializer())
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Registry{
		attributeStore: attrs,
		db:             cfg.DB,
		options:        enums,
		values:         values,
		clock:          clock,
		idGen:          idGen,
		logger:         logger,
		hooks:          cfg.Hooks,
	}, nil
}

var (
	_ repository.Repository[*Attribute] = (*Registry)(nil)
	_ types.AttributeRegistry           = (*Registry)(nil)
	_ types.AttributeLookup             = (*Registry)(nil)
)

// ListAttributes returns the attributes defined for the subject scope ordered
// by name.
func (r *Registry) ListAttributes(ctx context.Context, scope types.SubjectScope) ([]types.AttributeDefinition, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	rows, _, err := r.List(ctx, scopeCriteria(scope), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("name ASC").OrderExpr("id ASC")
	})
	if err != nil {
		return nil, err
	}
	return r.withOptions(ctx, rows)
}

// GetAttribute returns one attribute. Attributes of another organization or
// subject kind are reported exactly like unknown ids.
func (r *Registry) GetAttribute(ctx context.Context, scope types.SubjectScope, id uuid.UUID) (*types.AttributeDefinition, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	rows, _, err := r.List(ctx, scopeCriteria(scope), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id).Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, attributeNotFound(id)
	}
	defs, err := r.withOptions(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &defs[0], nil
}

// LookupAttributes resolves a batch of ids inside the subject scope. Ids that
// do not resolve are absent from the result.
func (r *Registry) LookupAttributes(ctx context.Context, scope types.SubjectScope, ids []uuid.UUID) (map[uuid.UUID]types.AttributeDefinition, error) {
	out := make(map[uuid.UUID]types.AttributeDefinition, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	rows, _, err := r.List(ctx, scopeCriteria(scope), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id IN (?)", bun.In(uniqueIDs(ids)))
	})
	if err != nil {
		return nil, err
	}
	defs, err := r.withOptions(ctx, rows)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		out[def.ID] = def
	}
	return out, nil
}

// CreateAttribute defines a new attribute and its enum options.
func (r *Registry) CreateAttribute(ctx context.Context, input types.AttributeInput) (*types.AttributeDefinition, error) {
	if err := validateScope(input.Scope); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, types.ValidationError(types.ErrAttributeNameRequired, types.TextCodeAttributeInvalid, nil)
	}
	dataType, ok := types.ParseDataType(string(input.DataType))
	if !ok {
		return nil, types.ValidationError(types.ErrInvalidDataType, types.TextCodeAttributeInvalid, map[string]any{
			"data_type": string(input.DataType),
		})
	}
	if dataType != types.DataTypeEnum && len(input.Options) > 0 {
		return nil, types.ValidationError(types.ErrAttributeValueType, types.TextCodeAttributeInvalid, map[string]any{
			"data_type": string(dataType),
		})
	}
	now := r.clock.Now()
	record := &Attribute{
		ID:          r.idGen.UUID(),
		OrgID:       input.Scope.OrgID,
		SubjectKind: string(input.Scope.Kind),
		Name:        name,
		DataType:    string(dataType),
		IsMulti:     input.IsMulti,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := r.Create(ctx, record)
	if err != nil {
		if types.IsUniqueViolation(err) {
			return nil, types.ConflictError(err, types.TextCodeAttributeConflict, "custom attribute name already defined", map[string]any{
				"name": name,
			})
		}
		return nil, err
	}
	for i, opt := range input.Options {
		if _, err := r.createOption(ctx, created.ID, opt, i); err != nil {
			return nil, err
		}
	}
	def, err := r.GetAttribute(ctx, input.Scope, created.ID)
	if err != nil {
		return nil, err
	}
	r.emitAttributeEvent(ctx, types.AttributeEvent{
		AttributeID: def.ID,
		Scope:       types.ScopeFilter{OrgID: def.OrgID},
		SubjectKind: def.SubjectKind,
		Action:      "attribute.created",
		OccurredAt:  now,
	})
	return def, nil
}

// AddEnumOption appends an allowed value to an ENUM attribute.
func (r *Registry) AddEnumOption(ctx context.Context, scope types.SubjectScope, attributeID uuid.UUID, option types.EnumOptionInput) (*types.EnumOption, error) {
	def, err := r.GetAttribute(ctx, scope, attributeID)
	if err != nil {
		return nil, err
	}
	if def.DataType != types.DataTypeEnum {
		return nil, types.ValidationError(types.ErrAttributeValueType, types.TextCodeAttributeInvalid, map[string]any{
			"attribute_id": attributeID.String(),
		})
	}
	created, err := r.createOption(ctx, def.ID, option, len(def.Options))
	if err != nil {
		return nil, err
	}
	r.emitAttributeEvent(ctx, types.AttributeEvent{
		AttributeID: def.ID,
		Scope:       types.ScopeFilter{OrgID: def.OrgID},
		SubjectKind: def.SubjectKind,
		Action:      "attribute.option_added",
		OccurredAt:  r.clock.Now(),
	})
	opt := toEnumOption(created)
	return &opt, nil
}

// SetValues replaces the values of one attribute on one subject record.
func (r *Registry) SetValues(ctx context.Context, scope types.SubjectScope, attributeID, subjectID uuid.UUID, inputs []types.AttributeValueInput) ([]types.AttributeValue, error) {
	if r.db == nil {
		return nil, errors.New("attributes: setting values requires bun DB")
	}
	if subjectID == uuid.Nil {
		return nil, errors.New("attributes: subject id required")
	}
	def, err := r.GetAttribute(ctx, scope, attributeID)
	if err != nil {
		return nil, err
	}
	if !def.IsMulti && len(inputs) > 1 {
		return nil, types.ValidationError(types.ErrSingleValuedAttribute, types.TextCodeAttributeInvalid, map[string]any{
			"attribute_id": attributeID.String(),
			"count":        len(inputs),
		})
	}
	now := r.clock.Now()
	rows := make([]*Value, 0, len(inputs))
	for _, input := range inputs {
		row, err := r.buildValue(*def, subjectID, input)
		if err != nil {
			return nil, err
		}
		row.CreatedAt = now
		row.UpdatedAt = now
		rows = append(rows, row)
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Value)(nil)).
			Where("attribute_id = ?", def.ID).
			Where("subject_kind = ?", string(def.SubjectKind)).
			Where("subject_id = ?", subjectID).
			Exec(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.emitAttributeEvent(ctx, types.AttributeEvent{
		AttributeID: def.ID,
		SubjectID:   subjectID,
		Scope:       types.ScopeFilter{OrgID: def.OrgID},
		SubjectKind: def.SubjectKind,
		Action:      "attribute.values_set",
		OccurredAt:  now,
	})
	out := make([]types.AttributeValue, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAttributeValue(row, *def))
	}
	return out, nil
}

// ListValues returns the values of every attribute in scope for one subject.
func (r *Registry) ListValues(ctx context.Context, scope types.SubjectScope, subjectID uuid.UUID) ([]types.AttributeValue, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	defs, err := r.ListAttributes(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}
	byID := make(map[uuid.UUID]types.AttributeDefinition, len(defs))
	ids := make([]uuid.UUID, 0, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
		ids = append(ids, def.ID)
	}
	rows, _, err := r.values.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("subject_kind = ?", string(scope.Kind)).
			Where("subject_id = ?", subjectID).
			Where("attribute_id IN (?)", bun.In(ids)).
			OrderExpr("created_at ASC").
			OrderExpr("id ASC")
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.AttributeValue, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAttributeValue(row, byID[row.AttributeID]))
	}
	return out, nil
}

func (r *Registry) buildValue(def types.AttributeDefinition, subjectID uuid.UUID, input types.AttributeValueInput) (*Value, error) {
	row := &Value{
		ID:          r.idGen.UUID(),
		AttributeID: def.ID,
		SubjectKind: string(def.SubjectKind),
		SubjectID:   subjectID,
	}
	switch def.DataType {
	case types.DataTypeDate:
		if input.Date == nil || input.EnumOption != uuid.Nil || input.EnumValue != "" {
			return nil, types.ValidationError(types.ErrAttributeValueType, types.TextCodeAttributeInvalid, map[string]any{
				"attribute_id": def.ID.String(),
			})
		}
		date := *input.Date
		row.ValueDate = &date
	case types.DataTypeEnum:
		if input.Date != nil {
			return nil, types.ValidationError(types.ErrAttributeValueType, types.TextCodeAttributeInvalid, map[string]any{
				"attribute_id": def.ID.String(),
			})
		}
		opt, ok := def.Option(input.EnumOption)
		if !ok && input.EnumValue != "" {
			opt, ok = def.OptionByValue(input.EnumValue)
		}
		if !ok {
			return nil, types.ValidationError(types.ErrEnumOptionNotFound, types.TextCodeAttributeInvalid, map[string]any{
				"attribute_id": def.ID.String(),
			})
		}
		row.ValueEnumID = opt.ID
	default:
		return nil, types.ValidationError(types.ErrInvalidDataType, types.TextCodeAttributeInvalid, map[string]any{
			"data_type": string(def.DataType),
		})
	}
	return row, nil
}

func (r *Registry) createOption(ctx context.Context, attributeID uuid.UUID, input types.EnumOptionInput, position int) (*EnumOption, error) {
	label := strings.TrimSpace(input.Label)
	value := strings.TrimSpace(input.Value)
	if value == "" {
		value = strings.ToLower(label)
	}
	if label == "" || value == "" {
		return nil, types.ValidationError(types.ErrEnumOptionNotFound, types.TextCodeAttributeInvalid, map[string]any{
			"attribute_id": attributeID.String(),
		})
	}
	created, err := r.options.Create(ctx, &EnumOption{
		ID:          r.idGen.UUID(),
		AttributeID: attributeID,
		Label:       label,
		Value:       value,
		Position:    position,
	})
	if err != nil {
		if types.IsUniqueViolation(err) {
			return nil, types.ConflictError(err, types.TextCodeAttributeConflict, "enum option already defined", map[string]any{
				"value": value,
			})
		}
		return nil, err
	}
	return created, nil
}

func (r *Registry) withOptions(ctx context.Context, rows []*Attribute) ([]types.AttributeDefinition, error) {
	defs := make([]types.AttributeDefinition, 0, len(rows))
	var enumIDs []uuid.UUID
	for _, row := range rows {
		defs = append(defs, toDefinition(row))
		if row.DataType == string(types.DataTypeEnum) {
			enumIDs = append(enumIDs, row.ID)
		}
	}
	if len(enumIDs) == 0 {
		return defs, nil
	}
	opts, _, err := r.options.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("attribute_id IN (?)", bun.In(enumIDs)).
			OrderExpr("position ASC").
			OrderExpr("label ASC")
	})
	if err != nil {
		return nil, err
	}
	grouped := make(map[uuid.UUID][]types.EnumOption, len(enumIDs))
	for _, opt := range opts {
		grouped[opt.AttributeID] = append(grouped[opt.AttributeID], toEnumOption(opt))
	}
	for i := range defs {
		defs[i].Options = grouped[defs[i].ID]
	}
	return defs, nil
}

func (r *Registry) emitAttributeEvent(ctx context.Context, event types.AttributeEvent) {
	if r.hooks.AfterAttributeChange == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("attribute hook panic", errors.New("panic in AfterAttributeChange"), "panic", rec)
		}
	}()
	r.hooks.AfterAttributeChange(ctx, event)
}

func scopeCriteria(scope types.SubjectScope) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("organization_id = ?", scope.OrgID).
			Where("subject_kind = ?", string(scope.Kind))
	}
}

func validateScope(scope types.SubjectScope) error {
	if scope.OrgID == uuid.Nil {
		return types.ValidationError(types.ErrOrganizationRequired, types.TextCodeOrganizationRequired, nil)
	}
	if strings.TrimSpace(string(scope.Kind)) == "" {
		return types.ValidationError(types.ErrInvalidSubjectKind, types.TextCodeAttributeInvalid, nil)
	}
	return nil
}

func attributeNotFound(id uuid.UUID) error {
	return types.NotFoundError(types.ErrAttributeNotFound, types.TextCodeAttributeNotFound, map[string]any{
		"attribute_id": id.String(),
	})
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toDefinition(row *Attribute) types.AttributeDefinition {
	return types.AttributeDefinition{
		ID:          row.ID,
		OrgID:       row.OrgID,
		SubjectKind: types.SubjectKind(row.SubjectKind),
		Name:        row.Name,
		DataType:    types.DataType(row.DataType),
		IsMulti:     row.IsMulti,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toEnumOption(row *EnumOption) types.EnumOption {
	return types.EnumOption{
		ID:          row.ID,
		AttributeID: row.AttributeID,
		Label:       row.Label,
		Value:       row.Value,
		Position:    row.Position,
	}
}

func toAttributeValue(row *Value, def types.AttributeDefinition) types.AttributeValue {
	value := types.AttributeValue{
		ID:          row.ID,
		AttributeID: row.AttributeID,
		SubjectKind: types.SubjectKind(row.SubjectKind),
		SubjectID:   row.SubjectID,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.ValueDate != nil {
		date := *row.ValueDate
		value.Date = &date
	}
	if row.ValueEnumID != uuid.Nil {
		if opt, ok := def.Option(row.ValueEnumID); ok {
			value.Enum = &opt
		}
	}
	return value
}

func newAttributeRepository(db *bun.DB) repository.Repository[*Attribute] {
	return repository.NewRepository(db, repository.ModelHandlers[*Attribute]{
		NewRecord: func() *Attribute { return &Attribute{} },
		GetID: func(rec *Attribute) uuid.UUID {
			if rec == nil {
				return uuid.Nil
			}
			return rec.ID
		},
		SetID: func(rec *Attribute, id uuid.UUID) {
			if rec != nil {
				rec.ID = id
			}
		},
	})
}

func newEnumOptionRepository(db *bun.DB) repository.Repository[*EnumOption] {
	return repository.NewRepository(db, repository.ModelHandlers[*EnumOption]{
		NewRecord: func() *EnumOption { return &EnumOption{} },
		GetID: func(rec *EnumOption) uuid.UUID {
			if rec == nil {
				return uuid.Nil
			}
			return rec.ID
		},
		SetID: func(rec *EnumOption, id uuid.UUID) {
			if rec != nil {
				rec.ID = id
			}
		},
	})
}

func newValueRepository(db *bun.DB) repository.Repository[*Value] {
	return repository.NewRepository(db, repository.ModelHandlers[*Value]{
		NewRecord: func() *Value { return &Value{} },
		GetID: func(rec *Value) uuid.UUID {
			if rec == nil {
				return uuid.Nil
			}
			return rec.ID
		},
		SetID: func(rec *Value, id uuid.UUID) {
			if rec != nil {
				rec.ID = id
			}
		},
	})
}
