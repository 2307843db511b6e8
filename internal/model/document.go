package model

import "encoding/json"

// Store is a named, account/project-scoped document blob. The document is
// opaque passthrough data except for the handful of fields the typed views
// below expose. Two well-known names exist: "main" and "undoable".
type Store struct {
	ID        int64
	AccountID int64
	ProjectID string
	Name      string
	Document  json.RawMessage
}

const (
	StoreNameMain     = "main"
	StoreNameUndoable = "undoable"
)

// MainDocument is the typed view over the "main" store. Only the fields the
// server reads or rewrites are declared; Extra preserves everything else
// byte-for-byte on round-trip.
type MainDocument struct {
	ID    string  `json:"id"`
	Video string  `json:"video"`
	FPS   float64 `json:"fps"`

	Extra map[string]json.RawMessage `json:"-"`
}

// UndoableDocument is the typed view over the "undoable" store.
type UndoableDocument struct {
	ID        string     `json:"id"`
	Subtitles *string    `json:"subtitles"`
	Timelines []Timeline `json:"timelines"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Timeline is one embedded timeline inside the undoable document. Screenshot
// timelines carry a type tag with the "screenshots" prefix.
type Timeline struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Type string          `json:"type"`
	Data []TimelineFrame `json:"data"`

	Extra map[string]json.RawMessage `json:"-"`
}

// TimelineFrame is one screenshot entry within a timeline.
type TimelineFrame struct {
	Frame     int    `json:"frame"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`

	Extra map[string]json.RawMessage `json:"-"`
}

// The custom (un)marshalers below keep unknown document fields intact. The
// document is edited in place on import (id and video reference rewrites)
// and must otherwise survive an export/import round-trip unchanged.

func (d *MainDocument) UnmarshalJSON(data []byte) error {
	type alias MainDocument
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, "id", "video", "fps")
	if err != nil {
		return err
	}
	*d = MainDocument(v)
	d.Extra = extra
	return nil
}

func (d MainDocument) MarshalJSON() ([]byte, error) {
	out := cloneExtra(d.Extra)
	if err := setField(out, "id", d.ID); err != nil {
		return nil, err
	}
	if err := setField(out, "video", d.Video); err != nil {
		return nil, err
	}
	if err := setField(out, "fps", d.FPS); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (d *UndoableDocument) UnmarshalJSON(data []byte) error {
	type alias UndoableDocument
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, "id", "subtitles", "timelines")
	if err != nil {
		return err
	}
	*d = UndoableDocument(v)
	d.Extra = extra
	return nil
}

func (d UndoableDocument) MarshalJSON() ([]byte, error) {
	out := cloneExtra(d.Extra)
	if err := setField(out, "id", d.ID); err != nil {
		return nil, err
	}
	if err := setField(out, "subtitles", d.Subtitles); err != nil {
		return nil, err
	}
	if err := setField(out, "timelines", d.Timelines); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (t *Timeline) UnmarshalJSON(data []byte) error {
	type alias Timeline
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, "id", "name", "type", "data")
	if err != nil {
		return err
	}
	*t = Timeline(v)
	t.Extra = extra
	return nil
}

func (t Timeline) MarshalJSON() ([]byte, error) {
	out := cloneExtra(t.Extra)
	if err := setField(out, "id", t.ID); err != nil {
		return nil, err
	}
	if err := setField(out, "name", t.Name); err != nil {
		return nil, err
	}
	if err := setField(out, "type", t.Type); err != nil {
		return nil, err
	}
	if err := setField(out, "data", t.Data); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (f *TimelineFrame) UnmarshalJSON(data []byte) error {
	type alias TimelineFrame
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, "frame", "image", "thumbnail")
	if err != nil {
		return err
	}
	*f = TimelineFrame(v)
	f.Extra = extra
	return nil
}

func (f TimelineFrame) MarshalJSON() ([]byte, error) {
	out := cloneExtra(f.Extra)
	if err := setField(out, "frame", f.Frame); err != nil {
		return nil, err
	}
	if err := setField(out, "image", f.Image); err != nil {
		return nil, err
	}
	if err := setField(out, "thumbnail", f.Thumbnail); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func splitExtra(data []byte, known ...string) (map[string]json.RawMessage, error) {
	all := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(extra)+4)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func setField(out map[string]json.RawMessage, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	out[key] = raw
	return nil
}
