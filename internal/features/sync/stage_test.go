package sync

import "testing"

func TestClassifyStage(t *testing.T) {
	finalStages := NewFinalStageSet([]string{"SUCCESS", "FAIL", "FAILURE", "LOSE", "APOLOGY"})

	tests := []struct {
		name    string
		stageID string
		want    StageClassification
	}{
		{"in progress stage", "DT1042_10:UC_IN_PROGRESS", StageActive},
		{"preparation stage", "DT1042_10:PREPARATION", StageActive},
		{"success is final", "DT1042_10:SUCCESS", StageFinal},
		{"fail is final", "DT1046_12:FAIL", StageFinal},
		{"failure is final", "DT1046_12:FAILURE", StageFinal},
		{"lose is final", "DT1110_14:LOSE", StageFinal},
		{"apology is final", "DT1110_14:APOLOGY", StageFinal},
		{"case insensitive", "DT1042_10:success", StageFinal},
		{"empty stage is active", "", StageActive},
		{"no colon is active", "NEW", StageActive},
		{"only last segment counts", "DT1042_SUCCESS:NEW", StageActive},
		{"multiple colons use last", "DT1042_10:UC:SUCCESS", StageFinal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyStage(tt.stageID, finalStages); got != tt.want {
				t.Errorf("ClassifyStage(%q) = %v, want %v", tt.stageID, got, tt.want)
			}
		})
	}
}
