package columns

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

func TestIsCustom(t *testing.T) {
	require.True(t, IsCustom("550e8400-e29b-41d4-a716-446655440000"))
	require.False(t, IsCustom("patient.first_name"))
	require.False(t, IsCustom("patient__first_name"))
	require.False(t, IsCustom(""))
	require.False(t, IsCustom("created_at"))
}

func TestAnnotationName(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	require.Equal(t, "attr_550e8400_e29b_41d4_a716_446655440000", AnnotationName(id))
	require.NotEqual(t, AnnotationName(id), AnnotationName(uuid.New()))
}

func TestLookupUnknownListType(t *testing.T) {
	_, ok := Lookup("billing_list")
	require.False(t, ok)

	_, err := SubjectKindFor("billing_list")
	require.ErrorIs(t, err, types.ErrInvalidListType)
	require.Equal(t, types.TextCodeInvalidListType, types.TextCode(err))

	kind, err := SubjectKindFor(types.ListTypeEncounters)
	require.NoError(t, err)
	require.Equal(t, types.SubjectKindEncounter, kind)
}

func TestLookupReturnsCopies(t *testing.T) {
	def, ok := Lookup(types.ListTypePatients)
	require.True(t, ok)
	def.DefaultColumns[0] = "mutated"

	again, _ := Lookup(types.ListTypePatients)
	require.Equal(t, "first_name", again.DefaultColumns[0])
}

func TestAvailableColumnsAppendsCustomAttributes(t *testing.T) {
	orgID := uuid.New()
	attr := types.AttributeDefinition{
		ID:          uuid.New(),
		OrgID:       orgID,
		SubjectKind: types.SubjectKindEncounter,
		Name:        "Priority",
		DataType:    types.DataTypeEnum,
	}
	lookup := &fakeLookup{attrs: []types.AttributeDefinition{attr}}
	resolver := NewResolver(lookup, nil)

	cols, err := resolver.AvailableColumns(context.Background(), types.ListTypeEncounters, orgID)
	require.NoError(t, err)
	require.Len(t, cols, 7)
	require.Equal(t, "patient__first_name", cols[0].Value)
	last := cols[len(cols)-1]
	require.Equal(t, attr.ID.String(), last.Value)
	require.Equal(t, "Priority", last.Label)
	require.True(t, last.IsCustom)
	require.Equal(t, types.DataTypeEnum, last.DataType)
	require.Equal(t, types.SubjectScope{OrgID: orgID, Kind: types.SubjectKindEncounter}, lookup.lastScope)

	fixedOnly, err := resolver.AvailableColumns(context.Background(), types.ListTypeEncounters, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, fixedOnly, 6)
}

func TestAvailableColumnsUnknownListType(t *testing.T) {
	resolver := NewResolver(nil, nil)
	_, err := resolver.AvailableColumns(context.Background(), "unknown", uuid.New())
	require.ErrorIs(t, err, types.ErrInvalidListType)
}

func TestValidateSortField(t *testing.T) {
	orgID := uuid.New()
	attrID := uuid.New()
	resolver := NewResolver(&fakeLookup{attrs: []types.AttributeDefinition{{
		ID:          attrID,
		OrgID:       orgID,
		SubjectKind: types.SubjectKindPatient,
		Name:        "Follow-up",
		DataType:    types.DataTypeDate,
	}}}, nil)
	ctx := context.Background()

	require.NoError(t, resolver.ValidateSortField(ctx, types.ListTypePatients, orgID, "-updated_at"))
	require.NoError(t, resolver.ValidateSortField(ctx, types.ListTypePatients, orgID, "first_name"))
	require.NoError(t, resolver.ValidateSortField(ctx, types.ListTypePatients, orgID, "-"+attrID.String()))
	require.NoError(t, resolver.ValidateSortField(ctx, types.ListTypePatients, orgID, ""))

	err := resolver.ValidateSortField(ctx, types.ListTypePatients, orgID, "password")
	require.ErrorIs(t, err, types.ErrInvalidSortField)
	require.Equal(t, types.TextCodeInvalidSortField, types.TextCode(err))

	err = resolver.ValidateSortField(ctx, types.ListTypePatients, orgID, uuid.NewString())
	require.ErrorIs(t, err, types.ErrInvalidSortField)

	err = resolver.ValidateSortField(ctx, types.ListTypePatients, orgID, "--updated_at")
	require.ErrorIs(t, err, types.ErrInvalidSortField)
}

func TestResolveTagsIdentifiers(t *testing.T) {
	orgID := uuid.New()
	known := types.AttributeDefinition{ID: uuid.New(), OrgID: orgID, SubjectKind: types.SubjectKindEncounter, Name: "Due", DataType: types.DataTypeDate}
	unknown := uuid.New()
	resolver := NewResolver(&fakeLookup{attrs: []types.AttributeDefinition{known}}, nil)
	scope := types.SubjectScope{OrgID: orgID, Kind: types.SubjectKindEncounter}

	refs, diags, err := resolver.Resolve(context.Background(), scope, []string{
		"patient.first_name",
		known.ID.String(),
		unknown.String(),
		known.ID.String(),
		"patient__first_name",
	}, types.ClauseStageAnnotate)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	fixed, ok := refs[0].(FixedField)
	require.True(t, ok)
	require.Equal(t, "patient__first_name", fixed.Path)

	custom, ok := refs[1].(CustomAttribute)
	require.True(t, ok)
	require.Equal(t, known.ID, custom.ID())
	require.Equal(t, types.DataTypeDate, custom.DataType())

	require.Equal(t, []string{unknown.String()}, diags.Fields(types.ClauseStageAnnotate))
	require.Equal(t, types.SkipReasonUnknownAttribute, diags.Skipped[0].Reason)
}

func TestResolvePropagatesLookupErrors(t *testing.T) {
	boom := errors.New("boom")
	resolver := NewResolver(&fakeLookup{err: boom}, nil)
	_, _, err := resolver.Resolve(context.Background(), types.SubjectScope{OrgID: uuid.New(), Kind: types.SubjectKindPatient}, []string{uuid.NewString()}, types.ClauseStageFilter)
	require.ErrorIs(t, err, boom)
}

type fakeLookup struct {
	attrs     []types.AttributeDefinition
	err       error
	lastScope types.SubjectScope
}

func (f *fakeLookup) ListAttributes(_ context.Context, scope types.SubjectScope) ([]types.AttributeDefinition, error) {
	f.lastScope = scope
	if f.err != nil {
		return nil, f.err
	}
	var out []types.AttributeDefinition
	for _, attr := range f.attrs {
		if attr.Scope() == scope {
			out = append(out, attr)
		}
	}
	return out, nil
}

func (f *fakeLookup) LookupAttributes(_ context.Context, scope types.SubjectScope, ids []uuid.UUID) (map[uuid.UUID]types.AttributeDefinition, error) {
	f.lastScope = scope
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[uuid.UUID]types.AttributeDefinition)
	for _, id := range ids {
		for _, attr := range f.attrs {
			if attr.ID == id && attr.Scope() == scope {
				out[id] = attr
			}
		}
	}
	return out, nil
}
