package identity_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passfuse/internal/identity"
	"passfuse/internal/services"
)

func TestNewTreatsBlankAsUnknown(t *testing.T) {
	rec, err := identity.New("1", map[identity.Field]string{
		identity.FieldName:  "Jane Doe",
		identity.FieldPhone: "   ",
		identity.FieldBirth: "",
	})
	require.NoError(t, err)

	_, ok := rec.Value(identity.FieldPhone)
	assert.False(t, ok, "blank phone must be unknown")
	assert.False(t, rec.Has(identity.FieldBirth))
	name, ok := rec.Value(identity.FieldName)
	assert.True(t, ok)
	assert.Equal(t, "Jane Doe", name)
	assert.Equal(t, []string{"Jane", "Doe"}, rec.NameParts())
}

func TestNewRejectsEmptyIdentity(t *testing.T) {
	_, err := identity.New("1", map[identity.Field]string{identity.FieldEmail: " "})
	assert.ErrorIs(t, err, identity.ErrEmptyIdentity)
}

func TestRecordIsImmutable(t *testing.T) {
	values := map[identity.Field]string{identity.FieldName: "Jane Doe"}
	rec, err := identity.New("1", values)
	require.NoError(t, err)

	values[identity.FieldName] = "Mallory"
	parts := rec.NameParts()
	parts[0] = "changed"
	m := rec.Map()
	m["name"] = "changed"

	name, _ := rec.Value(identity.FieldName)
	assert.Equal(t, "Jane Doe", name)
	assert.Equal(t, []string{"Jane", "Doe"}, rec.NameParts())
}

func TestParseLine(t *testing.T) {
	rec, err := identity.ParseLine("email:jane@example.com\tname:JANE|DOE\taccount:\tphone:555-0101\tbirth:19900501\tcity:Oslo", 4)
	require.NoError(t, err)

	assert.Equal(t, "4", rec.Key())
	assert.False(t, rec.Has(identity.FieldAccount))
	assert.Equal(t, []identity.Field{
		identity.FieldEmail, identity.FieldName, identity.FieldPhone, identity.FieldBirth, "city",
	}, rec.Fields())
	assert.Equal(t, []identity.Field{identity.FieldAccount}, rec.Missing([]identity.Field{identity.FieldName, identity.FieldAccount}))
}

func TestParseLineIDAndSpaces(t *testing.T) {
	rec, err := identity.ParseLine("id:target-7  name:Jane Doe  birth:1990-05-01", 1)
	require.NoError(t, err)
	assert.Equal(t, "target-7", rec.Key())
	assert.Equal(t, 1, rec.Index())
	birth, ok := rec.Value(identity.FieldBirth)
	assert.True(t, ok)
	assert.Equal(t, "1990-05-01", birth)
}

func TestLineRoundTrip(t *testing.T) {
	rec, err := identity.ParseLine("birth:19900501\tname:Jane Doe", 1)
	require.NoError(t, err)
	again, err := identity.ParseLine(rec.Line(), 1)
	require.NoError(t, err)
	assert.Equal(t, "name:Jane Doe\tbirth:19900501", rec.Line())
	assert.Equal(t, rec.Map(), again.Map())
}

func TestMarshalJSON(t *testing.T) {
	rec, err := identity.New("9", map[identity.Field]string{identity.FieldAccount: "jdoe"})
	require.NoError(t, err)
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"9","fields":{"account":"jdoe"}}`, string(data))
}

func TestReadTargets(t *testing.T) {
	input := strings.Join([]string{
		"name:Jane Doe\tbirth:19900501",
		"",
		"email:bob@example.com",
		"  ",
		"account:carol",
	}, "\n")
	records, err := identity.ReadTargets(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "1", records[0].Key())
	assert.Equal(t, "2", records[1].Key())
	assert.Equal(t, "3", records[2].Key())
}

func TestReadTargetsKeepsPlaceholderForEmptyLine(t *testing.T) {
	records, err := identity.ReadTargets(strings.NewReader("name:Ann\nemail:\tname:\nname:Bob\n"))
	require.NoError(t, err)
	require.Len(t, records, 3)

	blank := records[1]
	assert.True(t, blank.Blank())
	assert.Equal(t, "2", blank.Key())
	assert.Equal(t, 2, blank.Index())
	assert.Empty(t, blank.Fields())

	assert.False(t, records[0].Blank())
	assert.Equal(t, "Bob", mustValue(t, records[2], identity.FieldName))
	assert.Equal(t, 3, records[2].Index())
}

func TestParseLineEmptyKeepsKey(t *testing.T) {
	rec, err := identity.ParseLine("id:u7\tphone:", 4)
	assert.ErrorIs(t, err, identity.ErrEmptyIdentity)
	assert.True(t, rec.Blank())
	assert.Equal(t, "u7", rec.Key())
	assert.Equal(t, 4, rec.Index())
}

func TestReadTargetsRejectsDuplicate(t *testing.T) {
	_, err := identity.ReadTargets(strings.NewReader("id:a\tname:Jane\nid:a\tname:Bob\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))
	assert.Contains(t, err.Error(), "duplicate identity")
}

func mustValue(t *testing.T, rec identity.Record, field identity.Field) string {
	t.Helper()
	v, ok := rec.Value(field)
	require.True(t, ok, "field %s missing", field)
	return v
}
