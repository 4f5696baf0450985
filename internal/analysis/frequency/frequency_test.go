package frequency

import (
	"testing"

	"quotebias/domain/core"
	"quotebias/domain/quotes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset() *quotes.Dataset {
	ds := quotes.NewDataset("survey", []string{quotes.ColClass, quotes.ColGender}, []string{"C1/a", "C1"})
	add := func(class string, price float64, quoted bool) {
		r := quotes.NewRecord()
		r.Values[quotes.ColClass] = class
		r.Values[quotes.ColGender] = "F"
		if quoted {
			r.Outcomes["C1/a"] = price
			r.Outcomes["C1"] = 1
		} else {
			r.Outcomes["C1"] = 0
		}
		ds.Append(r)
	}
	add("18", 900, true)
	add("18", 0, false)
	add("1", 400, true)
	add("4", 0, false)
	add("", 500, true)
	return ds
}

func TestCompute_Count(t *testing.T) {
	table, err := Compute(dataset(), quotes.ColClass, []string{"C1/a"}, AggregateCount)
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"1", "4", "18"}, []string{table.Rows[0].Value, table.Rows[1].Value, table.Rows[2].Value})
	assert.Equal(t, 100.0, table.Rows[0].Percent["C1/a"])
	assert.Equal(t, 0.0, table.Rows[1].Percent["C1/a"])
	assert.Equal(t, 50.0, table.Rows[2].Percent["C1/a"])
	assert.Equal(t, 2, table.Rows[2].Size)
	assert.InDelta(t, 50.0, table.Mean("C1/a"), 1e-9)
}

func TestCompute_SumOfFlags(t *testing.T) {
	count, err := Compute(dataset(), quotes.ColClass, []string{"C1"}, AggregateCount)
	require.NoError(t, err)
	sum, err := Compute(dataset(), quotes.ColClass, []string{"C1"}, AggregateSum)
	require.NoError(t, err)

	// flags are always present, so count is 100% while sum follows the flag
	assert.Equal(t, 100.0, count.Rows[2].Percent["C1"])
	assert.Equal(t, 50.0, sum.Rows[2].Percent["C1"])
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute(dataset(), quotes.ColClass, []string{"C1"}, "mean")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = Compute(dataset(), quotes.ColCity, []string{"C1"}, AggregateCount)
	assert.ErrorIs(t, err, core.ErrMissingColumn)

	_, err = Compute(dataset(), quotes.ColClass, []string{"C9/a"}, AggregateCount)
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestComputeAll_SkipsAbsentFeatures(t *testing.T) {
	tables, err := ComputeAll(dataset(), quotes.DefaultCovariates(), []string{"C1"}, AggregateSum)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, quotes.ColGender, tables[0].Feature)
	assert.Equal(t, quotes.ColClass, tables[1].Feature)
	assert.InDelta(t, 60.0, tables[0].Rows[0].Percent["C1"], 1e-9)
}
