package attributes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thrivehealth/go-listviews/internal/testsupport"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

func TestRegistry_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)

	var events []types.AttributeEvent
	registry, err := NewRegistry(RegistryConfig{
		DB:    db,
		Clock: testsupport.FixedClock{T: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		Hooks: types.Hooks{
			AfterAttributeChange: func(_ context.Context, evt types.AttributeEvent) {
				events = append(events, evt)
			},
		},
	})
	require.NoError(t, err)

	scope := types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindEncounter}
	priority, err := registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    scope,
		Name:     "  Priority ",
		DataType: "enum",
		Options: []types.EnumOptionInput{
			{Label: "High", Value: "high"},
			{Label: "Low"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Priority", priority.Name)
	require.Equal(t, types.DataTypeEnum, priority.DataType)
	require.Len(t, priority.Options, 2)
	require.Equal(t, "high", priority.Options[0].Value)
	require.Equal(t, "low", priority.Options[1].Value)
	require.Equal(t, 1, priority.Options[1].Position)

	due, err := registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    scope,
		Name:     "Due date",
		DataType: types.DataTypeDate,
	})
	require.NoError(t, err)

	list, err := registry.ListAttributes(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Due date", list[0].Name)
	require.Equal(t, "Priority", list[1].Name)

	found, err := registry.LookupAttributes(ctx, scope, []uuid.UUID{priority.ID, due.ID, priority.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Len(t, found[priority.ID].Options, 2)

	other := types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindEncounter}
	found, err = registry.LookupAttributes(ctx, other, []uuid.UUID{priority.ID})
	require.NoError(t, err)
	require.Empty(t, found)

	_, err = registry.GetAttribute(ctx, types.SubjectScope{OrgID: scope.OrgID, Kind: types.SubjectKindPatient}, priority.ID)
	require.ErrorIs(t, err, types.ErrAttributeNotFound)
	require.Equal(t, types.TextCodeAttributeNotFound, types.TextCode(err))

	require.Len(t, events, 2)
	require.Equal(t, "attribute.created", events[0].Action)
}

func TestRegistry_CreateValidation(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(RegistryConfig{DB: testsupport.NewDB(t)})
	require.NoError(t, err)
	scope := types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindPatient}

	_, err = registry.CreateAttribute(ctx, types.AttributeInput{Scope: scope, DataType: types.DataTypeDate})
	require.ErrorIs(t, err, types.ErrAttributeNameRequired)

	_, err = registry.CreateAttribute(ctx, types.AttributeInput{Scope: scope, Name: "Score", DataType: "NUMBER"})
	require.ErrorIs(t, err, types.ErrInvalidDataType)

	_, err = registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    scope,
		Name:     "Due",
		DataType: types.DataTypeDate,
		Options:  []types.EnumOptionInput{{Label: "x"}},
	})
	require.ErrorIs(t, err, types.ErrAttributeValueType)

	_, err = registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    types.SubjectScope{Kind: types.SubjectKindPatient},
		Name:     "Due",
		DataType: types.DataTypeDate,
	})
	require.ErrorIs(t, err, types.ErrOrganizationRequired)

	_, err = registry.CreateAttribute(ctx, types.AttributeInput{Scope: scope, Name: "Due", DataType: types.DataTypeDate})
	require.NoError(t, err)
	_, err = registry.CreateAttribute(ctx, types.AttributeInput{Scope: scope, Name: "Due", DataType: types.DataTypeDate})
	require.Error(t, err)
	require.Equal(t, types.TextCodeAttributeConflict, types.TextCode(err))
}

func TestRegistry_AddEnumOption(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(RegistryConfig{DB: testsupport.NewDB(t)})
	require.NoError(t, err)
	scope := types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindEncounter}

	status, err := registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    scope,
		Name:     "Status",
		DataType: types.DataTypeEnum,
		Options:  []types.EnumOptionInput{{Label: "Open"}},
	})
	require.NoError(t, err)

	opt, err := registry.AddEnumOption(ctx, scope, status.ID, types.EnumOptionInput{Label: "Closed", Value: "closed"})
	require.NoError(t, err)
	require.Equal(t, 1, opt.Position)

	_, err = registry.AddEnumOption(ctx, scope, status.ID, types.EnumOptionInput{Label: "Closed again", Value: "closed"})
	require.Equal(t, types.TextCodeAttributeConflict, types.TextCode(err))

	due, err := registry.CreateAttribute(ctx, types.AttributeInput{Scope: scope, Name: "Due", DataType: types.DataTypeDate})
	require.NoError(t, err)
	_, err = registry.AddEnumOption(ctx, scope, due.ID, types.EnumOptionInput{Label: "x"})
	require.ErrorIs(t, err, types.ErrAttributeValueType)
}

func TestRegistry_SetValuesReplaces(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(RegistryConfig{DB: testsupport.NewDB(t)})
	require.NoError(t, err)
	scope := types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindEncounter}
	subject := uuid.New()

	tags, err := registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    scope,
		Name:     "Tags",
		DataType: types.DataTypeEnum,
		IsMulti:  true,
		Options:  []types.EnumOptionInput{{Label: "Red"}, {Label: "Blue"}},
	})
	require.NoError(t, err)
	due, err := registry.CreateAttribute(ctx, types.AttributeInput{Scope: scope, Name: "Due", DataType: types.DataTypeDate})
	require.NoError(t, err)

	_, err = registry.SetValues(ctx, scope, tags.ID, subject, []types.AttributeValueInput{
		{EnumValue: "red"},
		{EnumOption: tags.Options[1].ID},
	})
	require.NoError(t, err)
	date := types.NewDate(2025, time.December, 31)
	_, err = registry.SetValues(ctx, scope, due.ID, subject, []types.AttributeValueInput{{Date: &date}})
	require.NoError(t, err)

	values, err := registry.ListValues(ctx, scope, subject)
	require.NoError(t, err)
	require.Len(t, values, 3)

	_, err = registry.SetValues(ctx, scope, tags.ID, subject, []types.AttributeValueInput{{EnumValue: "blue"}})
	require.NoError(t, err)
	values, err = registry.ListValues(ctx, scope, subject)
	require.NoError(t, err)
	require.Len(t, values, 2)

	var labels []string
	var dates []types.Date
	for _, v := range values {
		if v.Enum != nil {
			labels = append(labels, v.Enum.Label)
		}
		if v.Date != nil {
			dates = append(dates, *v.Date)
		}
	}
	require.Equal(t, []string{"Blue"}, labels)
	require.Equal(t, []types.Date{date}, dates)

	_, err = registry.SetValues(ctx, scope, tags.ID, subject, nil)
	require.NoError(t, err)
	values, err = registry.ListValues(ctx, scope, subject)
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestRegistry_SetValuesValidation(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry(RegistryConfig{DB: testsupport.NewDB(t)})
	require.NoError(t, err)
	scope := types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindEncounter}
	subject := uuid.New()

	priority, err := registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    scope,
		Name:     "Priority",
		DataType: types.DataTypeEnum,
		Options:  []types.EnumOptionInput{{Label: "High"}, {Label: "Low"}},
	})
	require.NoError(t, err)
	date := types.NewDate(2025, time.January, 1)

	_, err = registry.SetValues(ctx, scope, priority.ID, subject, []types.AttributeValueInput{{EnumValue: "high"}, {EnumValue: "low"}})
	require.ErrorIs(t, err, types.ErrSingleValuedAttribute)

	_, err = registry.SetValues(ctx, scope, priority.ID, subject, []types.AttributeValueInput{{EnumValue: "urgent"}})
	require.ErrorIs(t, err, types.ErrEnumOptionNotFound)

	_, err = registry.SetValues(ctx, scope, priority.ID, subject, []types.AttributeValueInput{{Date: &date}})
	require.ErrorIs(t, err, types.ErrAttributeValueType)

	_, err = registry.SetValues(ctx, scope, uuid.New(), subject, []types.AttributeValueInput{{EnumValue: "high"}})
	require.ErrorIs(t, err, types.ErrAttributeNotFound)
}

func TestRegistry_HookPanicIsRecovered(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{
		DB: testsupport.NewDB(t),
		Hooks: types.Hooks{
			AfterAttributeChange: func(context.Context, types.AttributeEvent) {
				panic(errors.New("boom"))
			},
		},
	})
	require.NoError(t, err)

	_, err = registry.CreateAttribute(context.Background(), types.AttributeInput{
		Scope:    types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindPatient},
		Name:     "Due",
		DataType: types.DataTypeDate,
	})
	require.NoError(t, err)
}

func TestRegistry_CacheWrapsAttributes(t *testing.T) {
	db := testsupport.NewDB(t)
	registry, err := NewRegistry(RegistryConfig{DB: db}, WithCache(true))
	require.NoError(t, err)

	_, ok := registry.attributeStore.(*repositorycache.CachedRepository[*Attribute])
	require.True(t, ok)
}

func TestRegistry_CacheDoesNotDoubleWrap(t *testing.T) {
	db := testsupport.NewDB(t)
	cacheService, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)
	cached := repositorycache.New(newAttributeRepository(db), cacheService, cache.NewDefaultKeySerializer())

	registry, err := NewRegistry(RegistryConfig{DB: db, Attributes: cached}, WithCache(true))
	require.NoError(t, err)

	stored, ok := registry.attributeStore.(*repositorycache.CachedRepository[*Attribute])
	require.True(t, ok)
	require.Same(t, cached, stored)
}

func TestRegistry_RequiresStorage(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{})
	require.Error(t, err)
}
