package units_test

import (
	"encoding/json"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/heritage/units"
)

type UnitsSuite struct {
	suite.Suite

	data units.ConversionData
}

func TestUnitsSuite(t *testing.T) {
	suite.Run(t, new(UnitsSuite))
}

func (s *UnitsSuite) SetupTest() {
	raw, err := os.ReadFile("../dataset/testdata/conversion-data.json")
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, &s.data))
}

func (s *UnitsSuite) TestCategoryIDsOrder() {
	s.Equal([]string{"length", "area", "mass", "volume", "time"}, units.CategoryIDs())
	for _, id := range units.CategoryIDs() {
		_, ok := s.data[id]
		s.True(ok, "fixture should contain %s", id)
	}
}

func (s *UnitsSuite) TestDocumentOrderIsKept() {
	length := s.data[units.CategoryLength]

	s.Equal([]string{"stopa", "lokiec", "mila"}, length.HistoricalKeys())
	s.Equal([]string{"meter", "kilometer", "foot_modern", "inch_modern"}, length.ModernKeys())

	from, to := length.DefaultPair()
	s.Equal("stopa", from)
	s.Equal("meter", to)
}

func (s *UnitsSuite) TestKeysFallBackToSortedForCodeBuiltCategories() {
	cat := units.UnitCategory{
		Historical: map[string]units.UnitDetails{"b": {ToStandard: 1}, "a": {ToStandard: 2}},
	}
	s.Equal([]string{"a", "b"}, cat.HistoricalKeys())
	s.Empty(cat.ModernKeys())

	from, to := cat.DefaultPair()
	s.Equal("a", from)
	s.Empty(to)
}

func (s *UnitsSuite) TestLookup() {
	cat := units.UnitCategory{
		Historical: map[string]units.UnitDetails{
			"shared": {Name: "old", ToStandard: 2},
			"stopa":  {Name: "Stopa", ToStandard: 0.288},
		},
		Modern: map[string]units.UnitDetails{
			"shared": {Name: "new", ToStandard: 3},
			"meter":  {Name: "Meter", ToStandard: 1},
		},
	}

	testCases := []struct {
		name   string
		key    string
		found  bool
		group  units.Group
		factor float64
	}{
		{name: "historical", key: "stopa", found: true, group: units.Historical, factor: 0.288},
		{name: "modern", key: "meter", found: true, group: units.Modern, factor: 1},
		{name: "collision prefers historical", key: "shared", found: true, group: units.Historical, factor: 2},
		{name: "missing", key: "cubit", found: false},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			unit, group, ok := cat.Lookup(tc.key)
			s.Equal(tc.found, ok)
			if tc.found {
				s.Equal(tc.group, group)
				s.InDelta(tc.factor, unit.ToStandard, 1e-12)
			}
		})
	}

	s.Equal("historical", units.Historical.String())
	s.Equal("modern", units.Modern.String())
}

func (s *UnitsSuite) TestCollisions() {
	s.Empty(s.data.Collisions())

	data := units.ConversionData{
		"length": {
			Historical: map[string]units.UnitDetails{"foot": {ToStandard: 0.3}},
			Modern:     map[string]units.UnitDetails{"foot": {ToStandard: 0.3048}},
		},
	}
	s.Equal([]units.Collision{{Category: "length", Unit: "foot"}}, data.Collisions())
}

func (s *UnitsSuite) TestValidate() {
	s.NoError(s.data.Validate())

	bad := units.ConversionData{
		"mass": {
			Historical: map[string]units.UnitDetails{
				"zero":     {ToStandard: 0},
				"negative": {ToStandard: -1},
			},
			Modern: map[string]units.UnitDetails{
				"nan": {ToStandard: math.NaN()},
				"ok":  {ToStandard: 1},
			},
		},
	}

	err := bad.Validate()
	s.Require().Error(err)
	s.Contains(err.Error(), "standard unit is not set")
	s.Contains(err.Error(), `historical unit "zero"`)
	s.Contains(err.Error(), `historical unit "negative"`)
	s.Contains(err.Error(), `modern unit "nan"`)
	s.NotContains(err.Error(), `"ok"`)
}

func (s *UnitsSuite) TestMarshalKeepsOrder() {
	encoded, err := json.Marshal(s.data[units.CategoryTime])
	s.Require().NoError(err)

	var decoded units.UnitCategory
	s.Require().NoError(json.Unmarshal(encoded, &decoded))

	s.Equal([]string{"moment", "lunar_month", "solar_year"}, decoded.HistoricalKeys())
	s.Equal([]string{"second", "minute", "hour", "day"}, decoded.ModernKeys())
	s.Equal("second", decoded.StandardUnit)
	s.InDelta(86400.0, decoded.Modern["day"].ToStandard, 0)
}

func (s *UnitsSuite) TestUnmarshalRejectsNonObjectGroups() {
	var cat units.UnitCategory
	err := json.Unmarshal([]byte(`{"name":"x","historical":[1,2]}`), &cat)
	s.Error(err)

	err = json.Unmarshal([]byte(`{"name":"x","historical":null}`), &cat)
	s.NoError(err)
	s.Empty(cat.HistoricalKeys())
}
