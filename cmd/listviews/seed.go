package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/command"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/subjects"
	"github.com/uptrace/bun"
)

var demoFirstNames = []string{
	"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald",
	"Frances", "Ken", "Radia", "Niklaus", "Margaret", "Dennis",
}

var demoLastNames = []string{
	"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth",
	"Allen", "Thompson", "Perlman", "Wirth", "Hamilton", "Ritchie",
}

type seedSummary struct {
	OrgID      uuid.UUID `json:"organization_id"`
	Patients   int       `json:"patients"`
	Encounters int       `json:"encounters"`
	Attributes []string  `json:"attributes"`
}

// seedDemo inserts demo subjects for the configured organization, defines a
// few custom attributes and stores an organization default for the encounter
// list.
func seedDemo(ctx context.Context, app *App, count int) (seedSummary, error) {
	scope := app.Scope()
	actor := app.Actor()
	summary := seedSummary{OrgID: scope.OrgID}
	if count <= 0 {
		return summary, fmt.Errorf("seed: patients must be positive")
	}

	if _, err := app.permissions.EnsureOrgRoles(ctx, scope.OrgID); err != nil {
		return summary, err
	}
	if err := app.permissions.AssignRole(ctx, scope.OrgID, actor.ID, actor.RoleName()); err != nil {
		return summary, err
	}

	base := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(count) * 24 * time.Hour)
	patientIDs := make([]uuid.UUID, 0, count)
	encounterIDs := make([]uuid.UUID, 0, count)
	err := app.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := 0; i < count; i++ {
			created := base.Add(time.Duration(i) * 24 * time.Hour)
			first := demoFirstNames[i%len(demoFirstNames)]
			last := demoLastNames[i%len(demoLastNames)]
			dob := types.NewDate(1950+i%40, time.Month(i%12+1), i%28+1)
			patient := subjects.Patient{
				ID:          uuid.New(),
				OrgID:       scope.OrgID,
				FirstName:   first,
				LastName:    last,
				Email:       fmt.Sprintf("%s.%s@example.com", first, last),
				DateOfBirth: &dob,
				CreatedAt:   created,
				UpdatedAt:   created,
			}
			if _, err := tx.NewInsert().Model(&patient).Exec(ctx); err != nil {
				return err
			}
			encounter := subjects.Encounter{
				ID:        uuid.New(),
				OrgID:     scope.OrgID,
				PatientID: patient.ID,
				Active:    i%3 != 0,
				CreatedAt: created,
				UpdatedAt: created,
			}
			if _, err := tx.NewInsert().Model(&encounter).Exec(ctx); err != nil {
				return err
			}
			patientIDs = append(patientIDs, patient.ID)
			encounterIDs = append(encounterIDs, encounter.ID)
		}
		return nil
	})
	if err != nil {
		return summary, err
	}
	summary.Patients = len(patientIDs)
	summary.Encounters = len(encounterIDs)

	cmds := app.service.Commands()
	priority := &types.AttributeDefinition{}
	if err := cmds.DefineAttribute.Execute(ctx, command.DefineAttributeInput{
		Scope:       scope,
		SubjectKind: types.SubjectKindEncounter,
		Name:        "Priority",
		DataType:    types.DataTypeEnum,
		Options:     []types.EnumOptionInput{{Label: "High"}, {Label: "Medium"}, {Label: "Low"}},
		Actor:       actor,
		Result:      priority,
	}); err != nil {
		return summary, err
	}
	tags := &types.AttributeDefinition{}
	if err := cmds.DefineAttribute.Execute(ctx, command.DefineAttributeInput{
		Scope:       scope,
		SubjectKind: types.SubjectKindEncounter,
		Name:        "Tags",
		DataType:    types.DataTypeEnum,
		IsMulti:     true,
		Options:     []types.EnumOptionInput{{Label: "Follow-up"}, {Label: "Billing"}, {Label: "Referral"}},
		Actor:       actor,
		Result:      tags,
	}); err != nil {
		return summary, err
	}
	followUp := &types.AttributeDefinition{}
	if err := cmds.DefineAttribute.Execute(ctx, command.DefineAttributeInput{
		Scope:       scope,
		SubjectKind: types.SubjectKindEncounter,
		Name:        "Follow-up date",
		DataType:    types.DataTypeDate,
		Actor:       actor,
		Result:      followUp,
	}); err != nil {
		return summary, err
	}
	summary.Attributes = []string{priority.ID.String(), tags.ID.String(), followUp.ID.String()}

	levels := []string{"high", "medium", "low"}
	tagValues := []string{"follow-up", "billing", "referral"}
	for i, id := range encounterIDs {
		if err := cmds.SetAttributeValues.Execute(ctx, command.SetAttributeValuesInput{
			Scope:       scope,
			SubjectKind: types.SubjectKindEncounter,
			AttributeID: priority.ID,
			SubjectID:   id,
			Values:      []types.AttributeValueInput{{EnumValue: levels[i%len(levels)]}},
			Actor:       actor,
		}); err != nil {
			return summary, err
		}
		if i%2 == 0 {
			if err := cmds.SetAttributeValues.Execute(ctx, command.SetAttributeValuesInput{
				Scope:       scope,
				SubjectKind: types.SubjectKindEncounter,
				AttributeID: tags.ID,
				SubjectID:   id,
				Values: []types.AttributeValueInput{
					{EnumValue: tagValues[i%len(tagValues)]},
					{EnumValue: tagValues[(i+1)%len(tagValues)]},
				},
				Actor: actor,
			}); err != nil {
				return summary, err
			}
		}
		if i%3 == 1 {
			due := types.DateOf(base.Add(time.Duration(count+i) * 24 * time.Hour))
			if err := cmds.SetAttributeValues.Execute(ctx, command.SetAttributeValuesInput{
				Scope:       scope,
				SubjectKind: types.SubjectKindEncounter,
				AttributeID: followUp.ID,
				SubjectID:   id,
				Values:      []types.AttributeValueInput{{Date: &due}},
				Actor:       actor,
			}); err != nil {
				return summary, err
			}
		}
	}

	if err := cmds.SavePreference.Execute(ctx, command.SavePreferenceInput{
		Scope:    scope,
		ListType: types.ListTypeEncounters,
		VisibleColumns: []string{
			"patient__first_name",
			"active",
			priority.ID.String(),
			followUp.ID.String(),
			"updated_at",
		},
		DefaultSort: "-" + followUp.ID.String(),
		SavedFilters: map[string]any{
			"model_fields": map[string]any{"active": true},
		},
		ItemsPerPage: 10,
		Actor:        actor,
	}); err != nil {
		return summary, err
	}
	return summary, nil
}
