package manifest

import (
	"encoding/json"
	"testing"
)

func TestValidateAcceptsWellFormedManifest(t *testing.T) {
	t.Parallel()

	m, err := Validate(json.RawMessage(`{"item_ids":[41,52],"target_lang":"es","max_retries":2}`))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(m.ItemIDs) != 2 || m.ItemIDs[0] != 41 {
		t.Fatalf("unexpected item ids: %v", m.ItemIDs)
	}
	if m.TargetLang != "es" || m.MaxRetries != 2 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestValidateRejectsBadManifests(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{name: "empty item list", payload: `{"item_ids":[],"target_lang":"es"}`},
		{name: "missing language", payload: `{"item_ids":[1]}`},
		{name: "unsupported language", payload: `{"item_ids":[1],"target_lang":"tlh"}`},
		{name: "duplicate ids", payload: `{"item_ids":[1,1],"target_lang":"es"}`},
		{name: "unknown field", payload: `{"item_ids":[1],"target_lang":"es","mode":"fast"}`},
		{name: "trailing content", payload: `{"item_ids":[1],"target_lang":"es"} extra`},
		{name: "empty payload", payload: ``},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Validate(json.RawMessage(tc.payload)); err == nil {
				t.Fatalf("expected validation failure for %s", tc.name)
			}
		})
	}
}
