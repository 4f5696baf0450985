package postgres

import (
	"testing"
	"time"

	"quotebias/internal/preprocess"

	"github.com/stretchr/testify/assert"
)

func TestSelectAllQuery(t *testing.T) {
	assert.Equal(t, `SELECT * FROM "quotes"`, selectAllQuery("quotes"))
	assert.Equal(t, `SELECT * FROM "survey"."quotes"`, selectAllQuery("survey.quotes"))
	assert.Equal(t, `SELECT * FROM "we""ird"`, selectAllQuery(`we"ird`))
}

func TestCellString(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{[]byte("Milan"), "Milan"},
		{"F", "F"},
		{int64(18), "18"},
		{float64(420.5), "420.5"},
		{true, "true"},
		{ts, "2024-03-01T12:00:00Z"},
		{int32(7), "7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cellString(tt.in))
	}
}

func TestNewQuoteSource_Describe(t *testing.T) {
	src := NewQuoteSource(nil, "survey.quotes", nil, preprocessOptions(), nil)
	assert.Equal(t, "postgres:survey.quotes", src.Describe())
}

func preprocessOptions() preprocess.Options {
	return preprocess.DefaultOptions()
}

func TestSplitTable(t *testing.T) {
	schema, name := splitTable("survey.quotes")
	assert.Equal(t, "survey", schema)
	assert.Equal(t, "quotes", name)

	schema, name = splitTable("quotes")
	assert.Empty(t, schema)
	assert.Equal(t, "quotes", name)
}

func TestCopyInQuery(t *testing.T) {
	assert.Equal(t, `COPY "quotes" ("gender", "C1/a") FROM STDIN`, copyInQuery("quotes", []string{"gender", "C1/a"}))
	assert.Equal(t, `COPY "survey"."quotes" ("age") FROM STDIN`, copyInQuery("survey.quotes", []string{"age"}))
}

func TestCopyValues(t *testing.T) {
	values := copyValues([]string{"gender", "C1/a", "C2/a"}, map[string]string{"gender": "F", "C1/a": "420,5"})
	assert.Equal(t, []interface{}{"F", "420,5", nil}, values)
}
