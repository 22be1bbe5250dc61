package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type submission struct {
	FullName    string   `json:"full_name" validate:"required,min=2"`
	PhoneNumber string   `json:"phone_number" validate:"required,e164"`
	Images      []string `json:"images" validate:"required,len=2"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&submission{PhoneNumber: "not-a-phone", Images: []string{"a"}})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)

	fields := make(map[string]string, len(failures))
	for _, f := range failures {
		fields[f.Field] = f.Tag
	}

	require.Equal(t, "required", fields["full_name"])
	require.Equal(t, "e164", fields["phone_number"])
	require.Equal(t, "len", fields["images"])
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&submission{
		FullName:    "Jane Doe",
		PhoneNumber: "+15551234567",
		Images:      []string{"one", "two"},
	})
	require.NoError(t, err)
}
