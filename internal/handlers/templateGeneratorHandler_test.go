package handlers

import (
	"context"
	"strings"
	"testing"

	"driveline/dealer-crm-worker/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateMessageGenerator(t *testing.T) {
	gen := NewTemplateMessageGenerator()

	t.Run("every cadence stage has a template", func(t *testing.T) {
		stages := []dto.SequenceStage{
			dto.StageInitial, dto.StageFollowUp1, dto.StageFollowUp2, dto.StageFollowUp3,
			dto.StageFollowUp4, dto.StageFollowUp5, dto.StageFollowUp6, dto.StageFollowUp7,
			dto.StageFollowUp8, dto.StageFollowUp9,
		}

		for _, stage := range stages {
			text, err := gen.Generate(context.Background(), dto.MessageContext{
				LeadName:        "Jordan Blake",
				VehicleInterest: "2022 Honda CR-V",
				Stage:           stage,
			})
			require.NoError(t, err, "stage %s", stage)
			assert.NotEmpty(t, text)
			assert.Contains(t, text, "Jordan")
			assert.NotContains(t, text, "Blake", "templates use the first name only")
			assert.Contains(t, text, "2022 Honda CR-V")
		}
	})

	t.Run("unknown stage is an error", func(t *testing.T) {
		_, err := gen.Generate(context.Background(), dto.MessageContext{
			LeadName: "Jordan",
			Stage:    dto.SequenceStage("bogus"),
		})
		assert.Error(t, err)
	})

	t.Run("missing name falls back to a greeting", func(t *testing.T) {
		text, err := gen.Generate(context.Background(), dto.MessageContext{
			LeadName:        "",
			VehicleInterest: "a used SUV",
			Stage:           dto.StageInitial,
		})
		require.NoError(t, err)
		assert.True(t, strings.Contains(text, "there"))
	})
}
