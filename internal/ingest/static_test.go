package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func TestStaticAdapter(t *testing.T) {
	a := NewStaticAdapter()
	a.Add("sap-1",
		RawRecord{Type: DataFuel, Date: day("2024-01-10"), SourceReference: "a"},
		RawRecord{Type: DataTravel, Date: day("2024-01-11"), SourceReference: "b"},
		RawRecord{Type: DataFuel, Date: day("2024-02-01"), SourceReference: "c"},
	)
	a.Add("other", RawRecord{Type: DataFuel, Date: day("2024-01-10"), SourceReference: "z"})

	creds := Credentials{IntegrationID: "sap-1"}
	jan := DateRange{From: day("2024-01-01"), To: day("2024-01-31")}

	tests := []struct {
		name  string
		types []DataType
		want  []string
	}{
		{name: "all types", want: []string{"a", "b"}},
		{name: "fuel only", types: []DataType{DataFuel}, want: []string{"a"}},
		{name: "no match", types: []DataType{DataWaste}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.FetchActivityRecords(context.Background(), creds, jan, tt.types)
			require.NoError(t, err)
			var refs []string
			for _, r := range got {
				refs = append(refs, r.SourceReference)
			}
			assert.Equal(t, tt.want, refs)
		})
	}

	t.Run("unavailable", func(t *testing.T) {
		a.SetUnavailable("sap-1", true)
		defer a.SetUnavailable("sap-1", false)
		_, err := a.FetchActivityRecords(context.Background(), creds, jan, nil)
		require.ErrorIs(t, err, ghg.ErrIntegrationUnavailable)
	})
}

func TestFileAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	data := `[
	  {"type": "fuel", "amount": "20", "unit": "l", "date": "2024-05-01T00:00:00Z", "source_reference": "m-1", "keys": {"gl_account": "500100"}},
	  {"type": "fuel", "amount": "20", "unit": "l", "date": "2025-05-01T00:00:00Z", "source_reference": "m-2"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	year := DateRange{From: day("2024-01-01"), To: day("2024-12-31")}
	got, err := FileAdapter{}.FetchActivityRecords(context.Background(), Credentials{IntegrationID: "manual", Path: path}, year, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "500100", got[0].Keys.GLAccount)
	assert.True(t, dec("20").Equal(got[0].Amount))

	_, err = FileAdapter{}.FetchActivityRecords(context.Background(),
		Credentials{IntegrationID: "manual", Path: filepath.Join(t.TempDir(), "missing.json")}, year, nil)
	require.ErrorIs(t, err, ghg.ErrIntegrationUnavailable)
}

func TestParseRawRecords_Invalid(t *testing.T) {
	_, err := ParseRawRecords(context.Background(), []byte(`{"not": "an array"}`))
	require.Error(t, err)
}

func TestDateRange(t *testing.T) {
	r := DateRange{From: day("2024-01-01"), To: day("2024-01-31")}
	require.NoError(t, r.Validate())
	assert.True(t, r.Contains(day("2024-01-31").Add(23*time.Hour)))
	assert.False(t, r.Contains(day("2024-02-01")))
	assert.False(t, r.Empty())
	assert.Equal(t, "2024-01-01..2024-01-31", r.String())

	assert.Error(t, DateRange{From: day("2024-01-01")}.Validate())
	inverted := DateRange{From: day("2024-02-01"), To: day("2024-01-01")}
	assert.Error(t, inverted.Validate())
	assert.True(t, inverted.Empty())
}

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in      string
		want    DataType
		wantErr bool
	}{
		{in: "fuel", want: DataFuel},
		{in: " Electricity ", want: DataElectricity},
		{in: "utility", want: DataElectricity},
		{in: "procurement", want: DataProcurement},
		{in: "rocket", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapterRegistry(t *testing.T) {
	reg := NewAdapterRegistry()
	reg.Register("CSV", CSVAdapter{})
	reg.Register("rest", RESTAdapter{})

	a, err := reg.Get("csv")
	require.NoError(t, err)
	assert.IsType(t, CSVAdapter{}, a)
	assert.Equal(t, []string{"csv", "rest"}, reg.SystemTypes())

	_, err = reg.Get("sftp")
	require.Error(t, err)
}
