package models

import (
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestColorFrom_Deterministic(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "hsl(0 70% 48%)"},
		{"Ana", "hsl(92 70% 48%)"},
		{"Zoé", "hsl(164 70% 48%)"},
		{"😀x", "hsl(229 70% 48%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColorFrom(tt.name))
			assert.Equal(t, ColorFrom(tt.name), ColorFrom(tt.name))
		})
	}
}

func TestNewDataset_Defaults(t *testing.T) {
	d := NewDataset()
	assert.Empty(t, d.People)
	assert.Empty(t, d.Activities)
	assert.NotNil(t, d.Backgrounds)
	assert.Equal(t, DefaultBubbleSize, d.Settings.BubbleSize)
}

func TestDataset_JSONFieldNames(t *testing.T) {
	d := NewDataset()
	d.People = append(d.People, Person{ID: "p1", Name: "Ana", Color: "c"})
	d.Activities = append(d.Activities, Activity{ID: "a1", Title: "Art", Icon: "🎨", Kind: ActivityKindColor, Payload: "#ff0000"})

	b, err := json.Marshal(d)
	require.NoError(t, err)
	s := string(b)
	for _, want := range []string{`"activityId":null`, `"type":"color"`, `"data":"#ff0000"`, `"bubbleSize":72`} {
		assert.Contains(t, s, want)
	}
}

func TestClone_IsDeep(t *testing.T) {
	d := NewDataset()
	d.People = []Person{{ID: "p1", Name: "Ana", ActivityID: ptr("a1")}}
	d.Activities = []Activity{{ID: "a1", Title: "Art"}}
	d.Backgrounds["2024-01-01"] = "bg"

	c := d.Clone()
	*c.People[0].ActivityID = "changed"
	c.People[0].Name = "Bob"
	c.Activities[0].Title = "Music"
	c.Backgrounds["2024-01-01"] = "other"

	assert.Equal(t, "a1", *d.People[0].ActivityID)
	assert.Equal(t, "Ana", d.People[0].Name)
	assert.Equal(t, "Art", d.Activities[0].Title)
	assert.Equal(t, "bg", d.Backgrounds["2024-01-01"])

	var nilDS *Dataset
	assert.Nil(t, nilDS.Clone())
}

func TestNormalize_ClearsDanglingAndFillsDefaults(t *testing.T) {
	d := &Dataset{
		People: []Person{
			{ID: "p1", Name: "Ana", ActivityID: ptr("a1")},
			{ID: "p2", Name: "Bob", ActivityID: ptr("gone")},
		},
		Activities: []Activity{{ID: "a1", Title: "Art"}},
		Settings:   Settings{BubbleSize: 0},
	}

	cleared := d.Normalize()

	assert.Equal(t, 1, cleared)
	assert.True(t, d.People[0].AssignedTo("a1"))
	assert.Nil(t, d.People[1].ActivityID)
	assert.Equal(t, ColorFrom("Bob"), d.People[1].Color)
	assert.NotNil(t, d.Backgrounds)
	assert.Equal(t, DefaultBubbleSize, d.Settings.BubbleSize)

	empty := &Dataset{}
	assert.Equal(t, 0, empty.Normalize())
	assert.NotNil(t, empty.People)
	assert.NotNil(t, empty.Activities)
}

func TestRemoveActivity_Cascades(t *testing.T) {
	d := NewDataset()
	d.Activities = []Activity{{ID: "a1"}, {ID: "a2"}}
	d.People = []Person{
		{ID: "p1", ActivityID: ptr("a1")},
		{ID: "p2", ActivityID: ptr("a2")},
		{ID: "p3", ActivityID: ptr("a1")},
	}

	require.True(t, d.RemoveActivity("a1"))
	assert.Len(t, d.Activities, 1)
	assert.Empty(t, d.Members("a1"))
	assert.Len(t, d.Members("a2"), 1)
	assert.Len(t, d.Unassigned(), 2)

	assert.False(t, d.RemoveActivity("a1"))
}

func TestRemovePerson(t *testing.T) {
	d := NewDataset()
	d.People = []Person{{ID: "p1"}, {ID: "p2"}}

	require.True(t, d.RemovePerson("p1"))
	assert.Nil(t, d.Person("p1"))
	assert.NotNil(t, d.Person("p2"))
	assert.False(t, d.RemovePerson("p1"))
}

func TestBackgroundDates_Sorted(t *testing.T) {
	d := NewDataset()
	d.Backgrounds["2024-03-01"] = "x"
	d.Backgrounds["2023-12-31"] = "y"
	assert.Equal(t, []string{"2023-12-31", "2024-03-01"}, d.BackgroundDates())
}

func TestParseDataURL(t *testing.T) {
	img, err := ParseDataURL("data:image/png;base64,iVBORw0KGgo=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", img.DataURL())

	bad := []string{
		"",
		"http://example.org/a.png",
		"data:image/png,notbase64",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/svg+xml;base64,PHN2Zz4=",
		"data:image/png;base64,!!!",
		"data:image/png;base64,",
	}
	for _, s := range bad {
		_, err := ParseDataURL(s)
		assert.ErrorIs(t, err, common.ErrInvalidImage, s)
	}
}

func TestActivity_Validate(t *testing.T) {
	tests := []struct {
		name string
		a    Activity
		want error
	}{
		{"color ok", Activity{Title: "Art", Kind: ActivityKindColor, Payload: "#00ff00"}, nil},
		{"image ok", Activity{Title: "Pool", Kind: ActivityKindImage, Payload: "data:image/png;base64,iVBORw0KGgo="}, nil},
		{"empty title", Activity{Title: " ", Kind: ActivityKindColor, Payload: "#fff"}, common.ErrEmptyName},
		{"empty color", Activity{Title: "Art", Kind: ActivityKindColor}, common.ErrInvalidPayload},
		{"color with image payload", Activity{Title: "Art", Kind: ActivityKindColor, Payload: "data:image/png;base64,iVBORw0KGgo="}, common.ErrInvalidPayload},
		{"image with color payload", Activity{Title: "Art", Kind: ActivityKindImage, Payload: "#fff"}, common.ErrInvalidPayload},
		{"unknown kind", Activity{Title: "Art", Kind: "video", Payload: "x"}, common.ErrInvalidKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got)

	for _, s := range []string{"", "2023-02-29", "29/02/2024", "2024-2-1"} {
		_, err := ParseDate(s)
		assert.ErrorIs(t, err, common.ErrInvalidDate, s)
	}
}
