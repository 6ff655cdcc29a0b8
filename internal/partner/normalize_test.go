package partner

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decodePayload(t *testing.T, raw string) interface{} {
	t.Helper()
	var payload interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return payload
}

func TestExtractDealsShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    int
	}{
		{"raw sequence", `[{"id": 1}, {"id": 2}]`, 2},
		{"deals key with sequence", `{"deals": [{"id": 1}]}`, 1},
		{"deals key with single object", `{"deals": {"id": 1}}`, 1},
		{"data key with sequence", `{"data": [{"id": 1}, {"id": 2}, {"id": 3}]}`, 3},
		{"data nesting deals sequence", `{"data": {"deals": [{"id": 1}]}}`, 1},
		{"data nesting single deal", `{"data": {"deals": {"id": 7}}}`, 1},
		{"whole object fallback", `{"id": 9, "title": "solo"}`, 1},
		{"data key without deals", `{"data": {"foo": "bar"}}`, 0},
		{"scalar payload", `"nope"`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractDeals(decodePayload(t, tc.payload))
			if len(got) != tc.want {
				t.Fatalf("expected %d raw deals, got %d", tc.want, len(got))
			}
		})
	}
}

func TestExtractDealsPrefersDealsKey(t *testing.T) {
	payload := decodePayload(t, `{"deals": [{"id": 1}], "data": [{"id": 2}, {"id": 3}]}`)
	got := normalizeDeals(extractDeals(payload))
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected the deals key to win, got %+v", got)
	}
}

func TestNormalizeAliasChains(t *testing.T) {
	payload := decodePayload(t, `{"data": {"deals": [{"id": 1, "title": "A"}]}}`)
	deals := normalizeDeals(extractDeals(payload))
	if len(deals) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(deals))
	}
	want := Deal{ID: 1, Name: "A", Category: "", Owner: "", Files: []File{}}
	if !reflect.DeepEqual(deals[0], want) {
		t.Fatalf("unexpected deal: %+v", deals[0])
	}
}

func TestNormalizeAlternateFieldNames(t *testing.T) {
	payload := decodePayload(t, `[{
		"deal_id": 42,
		"dealName": "Tower Fund",
		"assetClass": "real-estate",
		"createdBy": "alice",
		"attachments": [
			{"file_id": 7, "file_name": "teaser.pdf", "fileUrl": "https://x/t.pdf"}
		]
	}]`)
	deals := normalizeDeals(extractDeals(payload))
	if len(deals) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(deals))
	}
	d := deals[0]
	if d.ID != 42 || d.Name != "Tower Fund" || d.Category != "real-estate" || d.Owner != "alice" {
		t.Fatalf("alias resolution failed: %+v", d)
	}
	if len(d.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(d.Files))
	}
	f := d.Files[0]
	if f.ID != 7 || f.Name != "teaser.pdf" || f.DownloadURL != "https://x/t.pdf" {
		t.Fatalf("file alias resolution failed: %+v", f)
	}
}

func TestNormalizeDropsNonObjectEntries(t *testing.T) {
	payload := decodePayload(t, `[{"id": 1}, "junk", 42, null, {"id": 2}]`)
	deals := normalizeDeals(extractDeals(payload))
	if len(deals) != 2 {
		t.Fatalf("expected 2 deals, got %d", len(deals))
	}
}

func TestNormalizeFileTruthiness(t *testing.T) {
	payload := decodePayload(t, `[{
		"id": 1,
		"files": [
			{"filename": "x.pdf"},
			{},
			"not-an-object",
			{"id": 0, "name": "", "download_url": ""}
		]
	}]`)
	deals := normalizeDeals(extractDeals(payload))
	if len(deals) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(deals))
	}
	files := deals[0].Files
	if len(files) != 1 {
		t.Fatalf("expected only the named file to survive, got %+v", files)
	}
	if files[0].Name != "x.pdf" {
		t.Fatalf("unexpected file: %+v", files[0])
	}
}

func TestDedupeDealsKeepsFirstOccurrence(t *testing.T) {
	deals := dedupeDeals([]Deal{
		{ID: 5, Name: "from list"},
		{ID: 3},
		{ID: 5, Name: "from cards"},
	})
	if len(deals) != 2 {
		t.Fatalf("expected 2 deals, got %d", len(deals))
	}
	if deals[0].ID != 5 || deals[0].Name != "from list" {
		t.Fatalf("expected the first id=5 entry to win, got %+v", deals[0])
	}
}

func TestDedupeDealsNeverMergesUnknownIDs(t *testing.T) {
	deals := dedupeDeals([]Deal{
		{ID: 0, Name: "a"},
		{ID: 0, Name: "b"},
	})
	if len(deals) != 2 {
		t.Fatalf("id=0 entries must all be retained, got %+v", deals)
	}
}

func TestFirstIntCoercesNumericStrings(t *testing.T) {
	obj := map[string]interface{}{"id": "17"}
	if got := firstInt(obj, dealIDAliases); got != 17 {
		t.Fatalf("expected 17, got %d", got)
	}
	obj = map[string]interface{}{"id": 0.0, "deal_id": 4.0}
	if got := firstInt(obj, dealIDAliases); got != 4 {
		t.Fatalf("expected fallthrough past zero id, got %d", got)
	}
}
