package activity

import (
	"sync"

	"github.com/goliatone/go-masker"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

var defaultMaskerOnce sync.Once

var patientFields = []string{
	"email",
	"patient__email",
	"phone",
	"patient__phone",
	"date_of_birth",
	"patient__date_of_birth",
}

// DefaultMasker returns the shared masker with the default denylist plus the
// patient contact fields that show up in saved filters.
func DefaultMasker() *masker.Masker {
	defaultMaskerOnce.Do(func() {
		if masker.Default == nil {
			return
		}
		registerDefaultMaskFields(masker.Default)
	})
	return masker.Default
}

// SanitizeRecord masks sensitive values in the activity record data payload.
func SanitizeRecord(mask *masker.Masker, record types.ActivityRecord) types.ActivityRecord {
	if len(record.Data) == 0 {
		return record
	}
	if mask == nil {
		mask = DefaultMasker()
	}
	if mask == nil {
		record.Data = map[string]any{}
		return record
	}

	cloned := cloneStringMap(record.Data)
	masked, err := mask.Mask(cloned)
	if err != nil {
		record.Data = map[string]any{}
		return record
	}

	switch masked := masked.(type) {
	case map[string]any:
		record.Data = masked
	default:
		record.Data = map[string]any{}
	}
	return record
}

// SanitizeRecords masks sensitive values for every record in the slice.
func SanitizeRecords(mask *masker.Masker, records []types.ActivityRecord) []types.ActivityRecord {
	if len(records) == 0 {
		return records
	}
	out := make([]types.ActivityRecord, 0, len(records))
	for _, record := range records {
		out = append(out, SanitizeRecord(mask, record))
	}
	return out
}

func registerDefaultMaskFields(mask *masker.Masker) {
	if mask == nil {
		return
	}
	mask.RegisterMaskField("Secret", "filled4")
	mask.RegisterMaskField("secret", "filled4")
	for _, field := range patientFields {
		mask.RegisterMaskField(field, "filled4")
	}
}

func cloneStringMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
