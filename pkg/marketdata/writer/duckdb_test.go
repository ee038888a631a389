package writer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idxquant/swingbt/internal/datasource"
	"github.com/idxquant/swingbt/internal/logger"
	"github.com/idxquant/swingbt/internal/types"
)

func sampleBars() []types.Bar {
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	return []types.Bar{
		{Ticker: "BBCA", Time: day, Open: 100, High: 102, Low: 99, Close: 101, Volume: 1_000_000},
		{Ticker: "BBCA", Time: day.AddDate(0, 0, 1), Open: 101, High: 103, Low: 100, Close: 102, Volume: 1_200_000},
	}
}

func TestDuckDBWriterRoundTrip(t *testing.T) {
	t.Parallel()

	outputPath := filepath.Join(t.TempDir(), "bars.parquet")
	w := NewDuckDBWriter(outputPath)

	require.NoError(t, w.Initialize())

	for _, bar := range sampleBars() {
		require.NoError(t, w.Write(bar))
	}

	path, err := w.Finalize()
	require.NoError(t, err)
	require.Equal(t, outputPath, path)
	require.NoError(t, w.Close())

	// the backtester's data source must be able to read the output directly
	source, err := datasource.NewDuckDBDataSource(":memory:", logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, source.Initialize(outputPath))

	defer source.Close()

	bars, err := source.GetBars("BBCA", optional.None[time.Time](), optional.None[time.Time]())
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.InDelta(t, 101.0, bars[0].Close, 1e-9)
	assert.InDelta(t, 102.0, bars[1].Close, 1e-9)
}

func TestDuckDBWriterRequiresInitialize(t *testing.T) {
	t.Parallel()

	w := NewDuckDBWriter(filepath.Join(t.TempDir(), "bars.parquet"))

	require.Error(t, w.Write(types.Bar{Ticker: "BBCA"}))

	_, err := w.Finalize()
	require.Error(t, err)
}

func TestDuckDBWriterCloseWithoutFinalizeDiscards(t *testing.T) {
	t.Parallel()

	w := NewDuckDBWriter(filepath.Join(t.TempDir(), "bars.parquet"))

	require.NoError(t, w.Initialize())
	require.NoError(t, w.Write(sampleBars()[0]))
	require.NoError(t, w.Close())
}
