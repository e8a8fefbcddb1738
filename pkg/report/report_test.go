package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"farmadvisor-client/pkg/apiclient"
	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func float(v float64) *float64 { return &v }

func sampleInput() Input {
	return Input{
		Result: &models.PredictionResult{
			Compatibility:   "Compatible",
			Reason:          "Temperature and moisture are within the optimal range",
			QuantityStatus:  "Optimal",
			QuantityReason:  "Recommended range: 20-40 kg",
			Recommendations: []string{"Apply before irrigation", "Split the dose"},
			EfficiencyScore: float(87.5),
		},
		Input: models.AnalysisInput{
			Temperature:        26,
			Moisture:           45,
			SoilType:           "Loamy",
			CropType:           "Ground Nuts",
			FertilizerName:     "Urea",
			FertilizerQuantity: 30,
		},
		Farm:        &models.FarmProfile{Location: "Nakuru", FarmSize: 2.5},
		User:        &models.User{Name: "Amina"},
		GeneratedAt: time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
	}
}

func TestBuildSectionsLayout(t *testing.T) {
	sections, err := BuildSections(sampleInput())
	require.NoError(t, err)

	titles := make([]string, 0, len(sections))
	for _, s := range sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"FarmAdvisor Analysis Report", "Input Parameters", "Results", "Recommendations", "Efficiency"}, titles)
	assert.Contains(t, sections[0].Rows, Row{Label: "Farmer", Value: "Amina"})
	assert.Contains(t, sections[0].Rows, Row{Label: "Farm Size", Value: "2.5 hectares"})
	assert.Contains(t, sections[1].Rows, Row{Label: "Temperature", Value: "26°C"})
	assert.Equal(t, Row{Label: "Efficiency Score", Value: "87.5%"}, sections[4].Rows[0])
}

func TestBuildSectionsOmitsOptionalParts(t *testing.T) {
	in := sampleInput()
	in.Result.Recommendations = nil
	in.Result.EfficiencyScore = nil
	in.Farm = nil
	in.User = nil

	sections, err := BuildSections(in)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Contains(t, sections[0].Rows, Row{Label: "Farmer", Value: "Farmer"})
}

func TestNoResultProducesNoDocument(t *testing.T) {
	in := sampleInput()
	in.Result = nil

	doc, err := NewLocalAssembler().Assemble(context.Background(), in)
	assert.Nil(t, doc)
	assert.True(t, apierr.Is(err, apierr.KindNoResult))

	gen := &fakeGenerator{}
	doc, err = NewRemoteAssembler(gen).Assemble(context.Background(), in)
	assert.Nil(t, doc)
	assert.True(t, apierr.Is(err, apierr.KindNoResult))
	assert.Equal(t, 0, gen.calls)
}

func TestLocalAssemblerWritesWorkbook(t *testing.T) {
	doc, err := NewLocalAssembler().Assemble(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "FarmReport_Ground_Nuts_2024-03-05.xlsx", doc.FileName)
	assert.Equal(t, xlsxType, doc.ContentType)

	// 書き出したブックを読み戻して内容を確認
	f, err := excelize.OpenReader(bytes.NewReader(doc.Body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, sheetName, f.GetSheetName(0))
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "FarmAdvisor Analysis Report", rows[0][0])

	var flat []string
	for _, r := range rows {
		flat = append(flat, r...)
	}
	assert.Contains(t, flat, "Compatible")
	assert.Contains(t, flat, "Apply before irrigation")
	assert.Contains(t, flat, "87.5%")
	assert.Contains(t, flat, "30 kg")
}

type fakeGenerator struct {
	calls int
	req   apiclient.ReportRequest
	body  []byte
	err   error
}

func (g *fakeGenerator) GenerateReport(_ context.Context, req apiclient.ReportRequest) ([]byte, string, error) {
	g.calls++
	g.req = req
	return g.body, "text/html", g.err
}

func TestRemoteAssemblerSanitizesHTML(t *testing.T) {
	gen := &fakeGenerator{body: []byte(`<h1 class="title">Report</h1><script>alert(1)</script><p onclick="x()">Compatible</p>`)}

	doc, err := NewRemoteAssembler(gen).Assemble(context.Background(), sampleInput())
	require.NoError(t, err)

	html := string(doc.Body)
	assert.Contains(t, html, `<h1 class="title">Report</h1>`)
	assert.Contains(t, html, "<p>Compatible</p>")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "onclick")
	assert.Equal(t, "FarmReport_Ground_Nuts_2024-03-05.html", doc.FileName)
	assert.Equal(t, "Amina", gen.req.Farmer)
	assert.Equal(t, "Ground Nuts", gen.req.Input.CropType)
	assert.NotEmpty(t, doc.Sections)
}

func TestRemoteAssemblerPropagatesErrors(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("unreachable")}

	_, err := NewRemoteAssembler(gen).Assemble(context.Background(), sampleInput())
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "FarmReport_Maize_2024-12-31.xlsx", FileName("Maize", at, "xlsx"))
	assert.Equal(t, "FarmReport_Crop_2024-12-31.html", FileName("  ", at, "html"))
	assert.Equal(t, "FarmReport_Oil_seeds_2024-12-31.xlsx", FileName("Oil seeds", at, "xlsx"))
}
