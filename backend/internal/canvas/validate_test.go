package canvas

import (
	"encoding/json"
	"testing"
)

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return raw
}

func validRawAction() map[string]any {
	return map[string]any{
		"id":          "a-1",
		"kind":        "draw",
		"points":      []any{map[string]any{"x": 1.0, "y": 2.0}},
		"color":       "#000000",
		"strokeWidth": 3.0,
		"timestamp":   1000.0,
		"authorId":    "u-1",
	}
}

func TestValidateRaw_Rejects(t *testing.T) {
	// 空对象 / nil / 未知 kind 都必须拒收
	if ValidateRaw(map[string]any{}) {
		t.Fatalf("ValidateRaw({}) = true, want false")
	}
	if ValidateRaw(nil) {
		t.Fatalf("ValidateRaw(nil) = true, want false")
	}
	raw := validRawAction()
	raw["kind"] = "frobnicate"
	if ValidateRaw(raw) {
		t.Fatalf("ValidateRaw(kind=frobnicate) = true, want false")
	}
}

func TestValidateRaw_FieldTypes(t *testing.T) {
	cases := map[string]any{
		"id":          42.0,
		"points":      "not-an-array",
		"color":       7.0,
		"strokeWidth": "fat",
		"timestamp":   "yesterday",
		"authorId":    nil,
	}
	for field, bad := range cases {
		raw := validRawAction()
		raw[field] = bad
		if ValidateRaw(raw) {
			t.Fatalf("ValidateRaw with bad %q = true, want false", field)
		}
	}
	if !ValidateRaw(validRawAction()) {
		t.Fatalf("ValidateRaw(valid) = false, want true")
	}
}

func TestValidateRaw_FromJSON(t *testing.T) {
	raw := decodeJSON(t, `{"id":"a-2","kind":"clear","points":[],"color":"#fff","strokeWidth":1,"timestamp":5,"authorId":"u"}`)
	if !ValidateRaw(raw) {
		t.Fatalf("ValidateRaw(clear json) = false, want true")
	}
}

func TestSanitize_Clamps(t *testing.T) {
	a := Action{
		ID:          "a-3",
		Kind:        KindDraw,
		Points:      []Point{{X: -10, Y: 15000}},
		StrokeWidth: 100,
	}
	got := Sanitize(a)
	if got.Points[0].X != 0 || got.Points[0].Y != 10000 {
		t.Fatalf("point = %+v, want {0 10000}", got.Points[0])
	}
	if got.StrokeWidth != 50 {
		t.Fatalf("strokeWidth = %v, want 50", got.StrokeWidth)
	}
	// 原对象不能被改动
	if a.Points[0].X != -10 || a.StrokeWidth != 100 {
		t.Fatalf("Sanitize mutated its input: %+v", a)
	}
}

func TestSanitize_InRangeUntouched(t *testing.T) {
	a := Action{Points: []Point{{X: 5, Y: 5}}, StrokeWidth: 0.5}
	got := Sanitize(a)
	if got.Points[0].X != 5 || got.Points[0].Y != 5 {
		t.Fatalf("point = %+v, want {5 5}", got.Points[0])
	}
	if got.StrokeWidth != 1 {
		t.Fatalf("strokeWidth = %v, want 1", got.StrokeWidth)
	}
}

func TestDecodeRaw(t *testing.T) {
	raw := validRawAction()
	a := DecodeRaw(raw)
	if a.ID != "a-1" || a.Kind != KindDraw || a.Timestamp != 1000 || a.AuthorID != "u-1" {
		t.Fatalf("DecodeRaw = %+v", a)
	}
	if len(a.Points) != 1 || a.Points[0].X != 1 || a.Points[0].Y != 2 {
		t.Fatalf("points = %+v", a.Points)
	}
}
