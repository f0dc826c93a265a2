package sync

import "strings"

// StageClassification says whether a record still participates in sync.
type StageClassification int

const (
	StageActive StageClassification = iota
	StageFinal
)

func (c StageClassification) String() string {
	if c == StageFinal {
		return "final"
	}
	return "active"
}

// NewFinalStageSet normalizes the configured final-stage names for lookup.
func NewFinalStageSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.ToUpper(strings.TrimSpace(name))] = struct{}{}
	}
	return set
}

// ClassifyStage maps a Bitrix stageId (DT{type}_{category}:{NAME}) to
// active/final by testing the upper-cased segment after the last colon
// against the final set. Empty or malformed stage ids classify as active,
// so records are never silently dropped from sync on bad data.
func ClassifyStage(stageID string, finalStages map[string]struct{}) StageClassification {
	if stageID == "" {
		return StageActive
	}

	idx := strings.LastIndex(stageID, ":")
	if idx < 0 {
		return StageActive
	}

	name := strings.ToUpper(stageID[idx+1:])
	if _, final := finalStages[name]; final {
		return StageFinal
	}
	return StageActive
}
