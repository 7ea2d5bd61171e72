package videos

// Phase is what the selected item's panel should show.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseReading   Phase = "reading"
	PhaseAnalyzing Phase = "analyzing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// View is derived from the queue and the cursor and holds no state of its own.
type View struct {
	Selected      *Item `json:"selected"`
	Phase         Phase `json:"phase"`
	ExportEnabled bool  `json:"exportEnabled"`
}

// Project computes the view for a queue and a selection cursor. A cursor that
// points at no live item projects as no selection.
func Project(items []Item, selectedID string) View {
	v := View{Phase: PhaseIdle}
	for i := range items {
		if items[i].Status == StatusComplete && items[i].Result != nil {
			v.ExportEnabled = true
		}
		if selectedID != "" && items[i].ID == selectedID && v.Selected == nil {
			sel := items[i]
			v.Selected = &sel
		}
	}
	if v.Selected == nil {
		return v
	}
	switch v.Selected.Status {
	case StatusAnalyzing:
		if v.Selected.Stage == StageRequesting {
			v.Phase = PhaseAnalyzing
		} else {
			v.Phase = PhaseReading
		}
	case StatusComplete:
		v.Phase = PhaseComplete
	case StatusError:
		v.Phase = PhaseError
	}
	return v
}
