package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalUnmarshal(t *testing.T) {
	type payload struct {
		Note Optional[string] `json:"note"`
	}

	t.Run("omitted key is not set", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
		assert.False(t, p.Note.Set)
		assert.Nil(t, p.Note.Value)
	})

	t.Run("explicit null is set with nil value", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{"note": null}`), &p))
		assert.True(t, p.Note.Set)
		assert.Nil(t, p.Note.Value)
	})

	t.Run("value is set and carried", func(t *testing.T) {
		var p payload
		require.NoError(t, json.Unmarshal([]byte(`{"note": "fasting bloods"}`), &p))
		assert.True(t, p.Note.Set)
		require.NotNil(t, p.Note.Value)
		assert.Equal(t, "fasting bloods", *p.Note.Value)
	})
}

func TestUpdateAppointmentRequestFields(t *testing.T) {
	status := AppointmentStatusCompleted
	req := &UpdateAppointmentRequest{
		Status:      &status,
		NotesDoctor: Optional[string]{Set: true},
	}

	assert.ElementsMatch(t, []AppointmentField{FieldStatus, FieldNotesDoctor}, req.Fields())

	empty := &UpdateAppointmentRequest{}
	assert.Empty(t, empty.Fields())
}

func TestAppointmentRecordNumber(t *testing.T) {
	assert.Equal(t, "APT-001", AppointmentRecordNumber(1))
	assert.Equal(t, "APT-042", AppointmentRecordNumber(42))
	assert.Equal(t, "APT-1000", AppointmentRecordNumber(1000))
}
