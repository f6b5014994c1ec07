package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passfuse/internal/identity"
)

func TestParseBirth(t *testing.T) {
	tests := []struct {
		in   string
		want identity.Date
		ok   bool
	}{
		{"19900501", identity.Date{Year: 1990, Month: 5, Day: 1}, true},
		{"1990-05-01", identity.Date{Year: 1990, Month: 5, Day: 1}, true},
		{"06-JAN-09", identity.Date{Year: 2009, Month: 1, Day: 6}, true},
		{"6-jan-1984", identity.Date{Year: 1984, Month: 1, Day: 6}, true},
		{"31-FOO-84", identity.Date{}, false},
		{"19901301", identity.Date{}, false},
		{"1990", identity.Date{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := identity.ParseBirth(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveVariants(t *testing.T) {
	rec, err := identity.ParseLine("name:Jane Doe\tbirth:1990-05-01\tphone:+1 555 010 9876\temail:jane.doe85@example.com\taccount:JDoe", 1)
	require.NoError(t, err)

	v := identity.DeriveVariants(rec)
	assert.Equal(t, "janedoe", v.Names[0])
	assert.Contains(t, v.Names, "JaneDoe")
	assert.Contains(t, v.Names, "jdoe")
	assert.Contains(t, v.Names, "jd")
	assert.Contains(t, v.Names, "Jane")

	assert.Equal(t, []string{"1990", "19900501", "0501", "90", "900501", "0105", "050190", "010590", "01051990", "199005"}, v.Dates)
	assert.Equal(t, []string{"9876", "109876", "15550109876"}, v.Phones)
	assert.Equal(t, []string{"jane.doe85", "jane.doe", "janedoe", "example"}, v.Emails)
	assert.Equal(t, []string{"jdoe", "JDoe"}, v.Accounts)
}

func TestDeriveVariantsUnknownFields(t *testing.T) {
	rec, err := identity.ParseLine("account:carol", 1)
	require.NoError(t, err)
	v := identity.DeriveVariants(rec)
	assert.Empty(t, v.Names)
	assert.Empty(t, v.Dates)
	assert.Empty(t, v.Phones)
	assert.Empty(t, v.Emails)
	assert.Equal(t, []string{"carol"}, v.Accounts)
}
