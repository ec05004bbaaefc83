/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package selector_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"dirpx.dev/dxcomp/dxcore/selector"
)

var (
	title      = selector.FromFieldNames("title")
	titleYear  = selector.FromFieldNames("title", "year")
	actorNames = selector.Fields(map[string]selector.Selector{
		"actors": selector.FromFieldNames("name"),
	})
	actorsDeep = selector.Fields(map[string]selector.Selector{
		"title":  selector.All,
		"actors": selector.All,
	})
	empty = selector.Fields(nil)
)

func samples() map[string]selector.Selector {
	return map[string]selector.Selector{
		"all":        selector.All,
		"none":       selector.None,
		"empty":      empty,
		"title":      title,
		"titleYear":  titleYear,
		"actorNames": actorNames,
		"actorsDeep": actorsDeep,
	}
}

func TestAlgebraLaws(t *testing.T) {
	for name, s := range samples() {
		t.Run(name, func(t *testing.T) {
			assert.True(t, selector.Equals(selector.Merge(s, selector.None), s), "merge(S, false) == S")
			assert.True(t, selector.Equals(selector.Merge(selector.None, s), s), "merge(false, S) == S")
			assert.True(t, selector.Merge(s, selector.All).IsAll(), "merge(S, true) == true")
			assert.True(t, selector.Equals(selector.Intersect(s, selector.All), s), "intersect(S, true) == S")
			assert.True(t, selector.Intersect(s, selector.None).IsNone(), "intersect(S, false) == false")
			assert.True(t, selector.Includes(s, s), "includes(S, S)")
			assert.True(t, selector.Includes(selector.All, s))
			assert.True(t, selector.Includes(s, selector.None))
			assert.True(t, selector.Subtract(s, s).IsNone(), "S - S == false")
			assert.True(t, selector.Includes(selector.Merge(s, title), s))
		})
	}
}

func TestMerge_Associative(t *testing.T) {
	ss := samples()
	for an, a := range ss {
		for bn, b := range ss {
			for cn, c := range ss {
				left := selector.Merge(selector.Merge(a, b), c)
				right := selector.Merge(a, selector.Merge(b, c))
				assert.True(t, selector.Equals(left, right), "(%s+%s)+%s", an, bn, cn)

				li := selector.Intersect(selector.Intersect(a, b), c)
				ri := selector.Intersect(a, selector.Intersect(b, c))
				assert.True(t, selector.Equals(li, ri), "(%s*%s)*%s", an, bn, cn)
			}
		}
	}
}

func TestGetSet(t *testing.T) {
	assert.True(t, selector.All.Get("x").IsAll())
	assert.True(t, selector.None.Get("x").IsNone())
	assert.True(t, title.Get("title").IsAll())
	assert.True(t, title.Get("year").IsNone(), "absent entries are None")

	s := title.Set("year", selector.All)
	assert.True(t, selector.Equals(s, titleYear))
	assert.True(t, selector.Equals(title, selector.FromFieldNames("title")), "Set is pure")

	assert.True(t, selector.All.Set("x", selector.None).IsAll())
	assert.True(t, selector.None.Set("x", selector.None).IsNone())
	assert.True(t, selector.Equals(selector.None.Set("title", selector.All), title))
	removed := titleYear.Set("year", selector.None)
	assert.True(t, selector.Equals(removed, title))
	assert.Equal(t, []string{"title", "year"}, titleYear.Names())
}

func TestMerge(t *testing.T) {
	got := selector.Merge(actorNames, selector.Fields(map[string]selector.Selector{
		"actors": selector.FromFieldNames("age"),
		"title":  selector.All,
	}))
	assert.Equal(t, "{actors: {age: true, name: true}, title: true}", got.String())
}

func TestIntersect(t *testing.T) {
	got := selector.Intersect(actorsDeep, selector.Merge(actorNames, selector.FromFieldNames("year")))
	assert.Equal(t, "{actors: {name: true}}", got.String())

	// Disjoint mappings intersect to the empty mapping, not None.
	disjoint := selector.Intersect(title, selector.FromFieldNames("year"))
	assert.True(t, disjoint.IsMapping())
	assert.Empty(t, disjoint.Names())
}

func TestSubtract(t *testing.T) {
	tests := []struct {
		name string
		a, b selector.Selector
		want string
	}{
		{"disjoint", titleYear, title, "{year: true}"},
		{"covered", title, titleYear, "false"},
		{"nested", actorsDeep, actorNames, "{actors: true, title: true}"},
		{"nested covered", actorNames, actorsDeep, "false"},
		{"from all", selector.All, title, "true"},
		{"all removed", title, selector.All, "false"},
		{"minus none", title, selector.None, "{title: true}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selector.Subtract(tt.a, tt.b).String())
		})
	}
}

func TestIncludes(t *testing.T) {
	tests := []struct {
		name string
		a, b selector.Selector
		want bool
	}{
		{"superset", titleYear, title, true},
		{"subset", title, titleYear, false},
		{"all covers mapping", selector.All, titleYear, true},
		{"mapping does not cover all", titleYear, selector.All, false},
		{"deep covers shallow", actorsDeep, actorNames, true},
		{"shallow does not cover deep", actorNames, actorsDeep, false},
		{"none covers empty? no", selector.None, empty, false},
		{"empty covers none", empty, selector.None, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selector.Includes(tt.a, tt.b))
		})
	}
}

func TestEquals(t *testing.T) {
	assert.True(t, selector.Equals(titleYear, selector.FromFieldNames("year", "title")))
	assert.False(t, selector.Equals(title, titleYear))
	assert.False(t, selector.Equals(empty, selector.None))
	assert.False(t, selector.Equals(selector.All, title))
	assert.True(t, selector.Equals(selector.Fields(map[string]selector.Selector{"x": selector.None}), empty),
		"None entries are dropped")
}

func TestJSON(t *testing.T) {
	tests := []struct {
		sel  selector.Selector
		want string
	}{
		{selector.All, `true`},
		{selector.None, `false`},
		{empty, `{}`},
		{actorNames, `{"actors":{"name":true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			data, err := json.Marshal(tt.sel)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back selector.Selector
			require.NoError(t, json.Unmarshal(data, &back))
			assert.True(t, selector.Equals(tt.sel, back), "got %s", back)
		})
	}

	var names selector.Selector
	require.NoError(t, json.Unmarshal([]byte(`["title","year"]`), &names))
	assert.True(t, selector.Equals(titleYear, names))

	var bad selector.Selector
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &bad))
}

func TestYAML(t *testing.T) {
	in := selector.Merge(actorNames, selector.FromFieldNames("title"))
	data, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, "actors:\n    name: true\ntitle: true\n", string(data))

	var back selector.Selector
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.True(t, selector.Equals(in, back))

	var fromList selector.Selector
	require.NoError(t, yaml.Unmarshal([]byte("- title\n- year\n"), &fromList))
	assert.True(t, selector.Equals(titleYear, fromList))
}
