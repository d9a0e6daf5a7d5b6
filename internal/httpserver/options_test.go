package httpserver

import (
	"encoding/json"
	"errors"
	"testing"

	"marketplace-checkout/internal/domain"
)

func TestParseOptionIDsShapes(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want domain.OptionSet
	}{
		"missing":        {``, domain.OptionSet{}},
		"null":           {`null`, domain.OptionSet{}},
		"array":          {`["b","a"]`, domain.OptionSet{"a", "b"}},
		"numbers":        {`[12, 3]`, domain.OptionSet{"12", "3"}},
		"encoded array":  {`"[\"b\",\"a\"]"`, domain.OptionSet{"a", "b"}},
		"encoded object": {`"{\"1\":\"x\"}"`, domain.OptionSet{"x"}},
		"csv":            {`"b, a,"`, domain.OptionSet{"a", "b"}},
		"empty string":   {`""`, domain.OptionSet{}},
		"object":         {`{"color":"red","size":7}`, domain.OptionSet{"7", "red"}},
		"duplicates":     {`["a","a"]`, domain.OptionSet{"a"}},
	}
	for name, tc := range cases {
		got, err := parseOptionIDs(json.RawMessage(tc.raw))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, got)
		}
	}
}

func TestParseOptionIDsRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`true`, `[{"id":1}]`, `[""]`, `{"a":null}`, `[1,`} {
		if _, err := parseOptionIDs(json.RawMessage(raw)); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", raw, err)
		}
	}
}
