package sessions

import "caption-backend/internal/videos"

type createRequest struct {
	MaxLength *int `json:"maxLength"`
}

type createResponse struct {
	SessionID string `json:"sessionId"`
	MaxLength *int   `json:"maxLength"`
}

type selectionRequest struct {
	VideoID *string `json:"videoId"`
}

type settingsRequest struct {
	MaxLength *int `json:"maxLength"`
}

type stateResponse struct {
	SessionID  string        `json:"sessionId"`
	Items      []videos.Item `json:"items"`
	SelectedID *string       `json:"selectedId"`
	MaxLength  *int          `json:"maxLength"`
	View       videos.View   `json:"view"`
}

type uploadResponse struct {
	Items   []videos.Item `json:"items"`
	Warning *string       `json:"warning"`
}

func toState(sessionID string, snap videos.Snapshot) stateResponse {
	items := snap.Items
	if items == nil {
		items = []videos.Item{}
	}
	resp := stateResponse{
		SessionID: sessionID,
		Items:     items,
		MaxLength: snap.CaptionLength,
		View:      videos.Project(snap.Items, snap.SelectedID),
	}
	if snap.SelectedID != "" {
		id := snap.SelectedID
		resp.SelectedID = &id
	}
	return resp
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
