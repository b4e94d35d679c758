package reference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ade-signal-mcp-server/internal/domain"
)

func TestLoadCSV_WithHeader(t *testing.T) {
	data := `drug_name,reaction_term,severity_class
Aspirin,Nausea,Needs Attention
Aspirin,Gastrointestinal Haemorrhage,Critical
Ibuprofen,Nausea;Dyspepsia,Needs Attention
,Rash,Critical
`
	records, err := LoadCSV(strings.NewReader(data), ',')
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Aspirin", records[0].DrugName)
	assert.Equal(t, []string{"Nausea", "Gastrointestinal Haemorrhage"}, records[0].ReactionTerms)
	assert.Equal(t, domain.SeverityCritical, records[0].Severity)

	assert.Equal(t, "Ibuprofen", records[1].DrugName)
	assert.Equal(t, []string{"Nausea", "Dyspepsia"}, records[1].ReactionTerms)
	assert.Equal(t, domain.SeverityNeedsAttention, records[1].Severity)
}

func TestLoadCSV_FAERSHeaderOrder(t *testing.T) {
	data := "outc_cod,pt,drugname\nnear-critical,Dizziness,AMLODIPINE\n"

	records, err := LoadCSV(strings.NewReader(data), ',')
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "AMLODIPINE", records[0].DrugName)
	assert.Equal(t, []string{"Dizziness"}, records[0].ReactionTerms)
	assert.Equal(t, domain.SeverityNearCritical, records[0].Severity)
}

func TestLoadCSV_FAERSOutcomeCodes(t *testing.T) {
	data := `drugname,pt,outc_cod
WARFARIN,Haemorrhage,OT
WARFARIN,Cerebral haemorrhage,DE
ISOTRETINOIN,Congenital anomaly,CA
METFORMIN,Diarrhoea,OT
`
	records, err := LoadCSV(strings.NewReader(data), ',')
	require.NoError(t, err)
	require.Len(t, records, 3)

	severities := make(map[string]domain.Severity, len(records))
	for _, record := range records {
		severities[record.DrugName] = record.Severity
	}
	assert.Equal(t, domain.SeverityCritical, severities["WARFARIN"])
	assert.Equal(t, domain.SeverityNearCritical, severities["ISOTRETINOIN"])
	assert.Equal(t, domain.SeverityNeedsAttention, severities["METFORMIN"])
}

func TestLoadCSV_WithoutHeader(t *testing.T) {
	data := "metformin,lactic acidosis,Critical\nmetformin,diarrhoea,\n"

	records, err := LoadCSV(strings.NewReader(data), ',')
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []string{"lactic acidosis", "diarrhoea"}, records[0].ReactionTerms)
	assert.Equal(t, domain.SeverityCritical, records[0].Severity)
}

func TestLoadCSV_Empty(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""), ',')
	assert.Error(t, err)

	_, err = LoadCSV(strings.NewReader("drug_name,reaction_term\n"), ',')
	assert.ErrorIs(t, err, domain.ErrEmptyReference)
}

func TestLoadCSVFile_TSV(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "reference.tsv")
	require.NoError(t, os.WriteFile(path, []byte("drug\treaction\tseverity\nlosartan\thyperkalaemia\tNeeds Attention\n"), 0644))

	records, err := LoadCSVFile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "losartan", records[0].DrugName)
	assert.Equal(t, domain.SeverityNeedsAttention, records[0].Severity)
}

func TestLoadCSVFile_Missing(t *testing.T) {
	_, err := LoadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
