package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SchemaSuite struct {
	suite.Suite
	profile *Schema
}

func TestSchemaSuite(t *testing.T) {
	suite.Run(t, new(SchemaSuite))
}

func (s *SchemaSuite) SetupTest() {
	s.profile = New("profile",
		[]Field{
			Char("first_name", Nullable),
			Char("last_name", Nullable),
			Email("email", Nullable),
			Phone("phone", Nullable),
			BirthDay("birthday", Nullable),
			Gender("gender", Nullable),
		},
		WithRequiredPairs(
			[]string{"phone", "email"},
			[]string{"first_name", "last_name"},
			[]string{"gender", "birthday"},
		),
		WithContext("has", SuppliedKeys),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func (s *SchemaSuite) TestPairRule() {
	s.Run("any complete pair satisfies the rule", func() {
		for _, doc := range []Document{
			{"phone": "79175002040", "email": "stupnikov@otus.ru"},
			{"first_name": "a", "last_name": "b"},
			{"gender": 0, "birthday": "01.01.2000"},
		} {
			_, err := s.profile.Apply(doc)
			s.Require().NoError(err)
		}
	})

	s.Run("null member does not count", func() {
		_, err := s.profile.Apply(Document{"phone": "79175002040", "email": nil})
		s.assertRule(err, RulePair, "No required pair")
	})

	s.Run("pair is checked before field cleaning", func() {
		_, err := s.profile.Apply(Document{"phone": "bad"})
		s.assertRule(err, RulePair, "No required pair")
	})

	s.Run("empty string member satisfies the pair", func() {
		_, err := s.profile.Apply(Document{"first_name": "", "last_name": ""})
		s.Require().NoError(err)
	})
}

func (s *SchemaSuite) TestFieldErrorsSurfaceAfterPair() {
	_, err := s.profile.Apply(Document{
		"phone":  "79175002040",
		"email":  "stupnikov@otus.ru",
		"gender": -1,
	})
	s.assertRule(err, RuleFormat, "Gender must be in [0, 1, 2]")
}

func (s *SchemaSuite) TestContextHasListsNonNullKeys() {
	v, err := s.profile.Apply(Document{
		"phone":      "79175002040",
		"email":      "stupnikov@otus.ru",
		"first_name": nil,
		"gender":     0,
	})
	s.Require().NoError(err)
	s.Equal([]string{"email", "gender", "phone"}, v.Context["has"])
}

func (s *SchemaSuite) TestValidatedAccessors() {
	v, err := s.profile.Apply(Document{
		"phone":     79175002040,
		"email":     "stupnikov@otus.ru",
		"birthday":  "01.01.2000",
		"gender":    1,
		"last_name": "",
		"unknown":   "ignored",
	})
	s.Require().NoError(err)

	s.Equal("79175002040", v.String("phone"))
	s.True(v.Has("email"))
	s.True(v.Present("last_name"))
	s.False(v.Has("last_name"))
	s.False(v.Present("first_name"))
	s.False(v.Present("unknown"))

	g, ok := v.Int("gender")
	s.True(ok)
	s.Equal(GenderMale, g)

	bday, ok := v.Time("birthday")
	s.True(ok)
	s.Equal(2000, bday.Year())
	s.Len(v.Values(), 5)
}

func (s *SchemaSuite) assertRule(err error, rule Rule, msg string) {
	var vErr *ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Equal(rule, vErr.Rule)
	s.Equal(msg, vErr.Message)
}

func TestApply_RequiredFieldsInDeclarationOrder(t *testing.T) {
	envelope := New("envelope", []Field{
		Char("account", Nullable),
		Char("login", Required, Nullable),
		Char("token", Required, Nullable),
		Arguments("arguments", Required, Nullable),
		Char("method", Required),
	})

	tests := []struct {
		name string
		doc  Document
		msg  string
	}{
		{"empty document", Document{}, `Validation error - require field "login"`},
		{"missing token", Document{"login": "h&f"}, `Validation error - require field "token"`},
		{"missing method", Document{"login": "h&f", "token": "", "arguments": Document{}}, `Validation error - require field "method"`},
		{"empty method", Document{"login": "h&f", "token": "", "arguments": Document{}, "method": ""}, `Trying to set None to not-nullable field "method"`},
		{"wrong method type", Document{"login": "h&f", "token": "", "arguments": Document{}, "method": 1}, `Wrong type for field "method"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := envelope.Apply(tt.doc)
			require.Error(t, err)
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	t.Run("required and nullable accepts null", func(t *testing.T) {
		v, err := envelope.Apply(Document{"login": nil, "token": nil, "arguments": nil, "method": "online_score"})
		require.NoError(t, err)
		assert.True(t, v.Present("login"))
		assert.False(t, v.Has("login"))
		assert.Equal(t, "online_score", v.String("method"))
	})
}

func TestApply_ClientIDsSchema(t *testing.T) {
	interests := New("interests", []Field{
		ClientIDs("client_ids", Required),
		Date("date", Nullable),
	}, WithContext("nclients", func(_ Document, v *Validated) any {
		return len(v.Ints("client_ids"))
	}))

	v, err := interests.Apply(Document{"client_ids": []any{1, 2, 3}, "date": "19.07.2017"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, v.Ints("client_ids"))
	assert.Equal(t, 3, v.Context["nclients"])

	_, err = interests.Apply(Document{"client_ids": []any{}})
	require.Error(t, err)
	assert.Equal(t, `Trying to set None to not-nullable field "client_ids"`, err.Error())
}

func TestApply_ConcurrentCallsDoNotShareContext(t *testing.T) {
	sch := New("s", []Field{Char("name", Nullable)}, WithContext("name", func(_ Document, v *Validated) any {
		return v.String("name")
	}))

	a, err := sch.Apply(Document{"name": "a"})
	require.NoError(t, err)
	b, err := sch.Apply(Document{"name": "b"})
	require.NoError(t, err)

	assert.Equal(t, "a", a.Context["name"])
	assert.Equal(t, "b", b.Context["name"])
}

func TestNew_PanicsOnMisconfiguration(t *testing.T) {
	assert.Panics(t, func() {
		New("dup", []Field{Char("a"), Char("a")})
	})
	assert.Panics(t, func() {
		New("pair", []Field{Char("a")}, WithRequiredPairs([]string{"a", "b"}))
	})
}

func TestDecodeDocument(t *testing.T) {
	t.Run("keeps numbers exact", func(t *testing.T) {
		doc, err := DecodeDocument(strings.NewReader(`{"gender": 1, "phone": 79175002040}`))
		require.NoError(t, err)
		g, err := Gender("gender").Clean(doc["gender"], fixedNow)
		require.NoError(t, err)
		assert.Equal(t, 1, g)
	})

	t.Run("float is not an integer", func(t *testing.T) {
		doc, err := DecodeDocument(strings.NewReader(`{"gender": 1.0}`))
		require.NoError(t, err)
		_, err = Gender("gender").Clean(doc["gender"], fixedNow)
		require.Error(t, err)
	})

	t.Run("rejects non objects", func(t *testing.T) {
		_, err := DecodeDocument(strings.NewReader(`[1, 2]`))
		assert.ErrorIs(t, err, ErrNotObject)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		_, err := DecodeDocument(strings.NewReader(`{"a":`))
		assert.Error(t, err)
	})

	t.Run("rejects trailing data", func(t *testing.T) {
		_, err := DecodeDocument(strings.NewReader(`{"a": 1} {"b": 2}`))
		assert.Error(t, err)
	})

	t.Run("allows trailing whitespace", func(t *testing.T) {
		_, err := DecodeDocument(strings.NewReader("{\"a\": 1}\n"))
		assert.NoError(t, err)
	})
}
