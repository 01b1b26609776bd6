package screening

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/review-screening/internal/domain"
)

func decided(id string, year int, src domain.DatabaseID, status domain.ScreeningStatus, reason string, stage domain.ExclusionStage) domain.Study {
	return domain.Study{
		ID:              id,
		Title:           "Study " + id,
		Year:            year,
		Source:          src,
		Status:          status,
		ExclusionReason: reason,
		ExclusionStage:  stage,
	}
}

func mixedStudies() []domain.Study {
	return []domain.Study{
		decided("a", 2020, domain.DatabasePubMed, domain.ScreeningStatusIncluded, "", ""),
		decided("b", 2021, domain.DatabasePubMed, domain.ScreeningStatusExcluded, "off-topic", domain.ExclusionStageTitleAbstract),
		decided("c", 2021, domain.DatabaseArXiv, domain.ScreeningStatusExcluded, "off-topic", domain.ExclusionStageTitleAbstract),
		decided("d", 0, domain.DatabaseArXiv, domain.ScreeningStatusExcluded, "", ""),
		decided("e", 2019, domain.DatabaseOpenAlex, domain.ScreeningStatusExcluded, "wrong population", domain.ExclusionStageFullText),
		decided("f", 2020, domain.DatabasePubMed, domain.ScreeningStatusMaybe, "", ""),
		decided("g", 2020, domain.DatabasePubMed, domain.ScreeningStatusPending, "", ""),
	}
}

func TestComputeFlow(t *testing.T) {
	flow := ComputeFlow(mixedStudies(), 3, 2)

	assert.Equal(t, domain.Identification{
		RecordsIdentified: 9,
		DuplicatesRemoved: 2,
		DatabasesSearched: 3,
		RecordsAfterDedup: 7,
	}, flow.Identification)

	assert.Equal(t, 7, flow.Screening.RecordsScreened)
	assert.Equal(t, 3, flow.Screening.RecordsExcluded)
	assert.Equal(t, domain.ReasonCounts{
		{Reason: "off-topic", Count: 2},
		{Reason: UnspecifiedReason, Count: 1},
	}, flow.Screening.ExclusionReasons)

	// included + maybe + excluded at full text
	assert.Equal(t, 3, flow.Eligibility.FullTextAssessed)
	assert.Equal(t, 1, flow.Eligibility.FullTextExcluded)
	assert.Equal(t, domain.ReasonCounts{{Reason: "wrong population", Count: 1}}, flow.Eligibility.ExclusionReasons)

	assert.Equal(t, 1, flow.Included.StudiesIncluded)

	assert.Equal(t, []domain.FlowArrow{
		{From: StageIdentification, To: StageScreening, Count: 7},
		{From: StageScreening, To: StageEligibility, Count: 3},
		{From: StageEligibility, To: StageIncluded, Count: 1},
	}, flow.FlowArrows)
}

func TestComputeFlow_ExcludedSplitsAcrossStages(t *testing.T) {
	studies := mixedStudies()
	flow := ComputeFlow(studies, 1, 0)
	stats := ComputeStatistics(studies)

	assert.Equal(t, stats.Excluded, flow.Screening.RecordsExcluded+flow.Eligibility.FullTextExcluded)
	assert.Equal(t, stats.Included, flow.Included.StudiesIncluded)
}

func TestComputeFlow_Empty(t *testing.T) {
	flow := ComputeFlow(nil, 0, 0)

	assert.Zero(t, flow.Identification)
	assert.NotNil(t, flow.Screening.ExclusionReasons)
	assert.Empty(t, flow.Screening.ExclusionReasons)
	assert.Len(t, flow.FlowArrows, 3)

	data, err := json.Marshal(flow)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exclusion_reasons":[]`)
}

func TestComputeFlow_Deterministic(t *testing.T) {
	studies := mixedStudies()

	first, err := json.Marshal(ComputeFlow(studies, 2, 1))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(ComputeFlow(studies, 2, 1))
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestComputeStatistics(t *testing.T) {
	stats := ComputeStatistics(mixedStudies())

	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 1, stats.Included)
	assert.Equal(t, 4, stats.Excluded)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Maybe)
	assert.Equal(t, stats.Total, stats.Included+stats.Excluded+stats.Pending+stats.Maybe)
	assert.Equal(t, 6, stats.Screened())

	assert.Equal(t, []domain.YearCount{
		{Year: 0, Count: 1},
		{Year: 2019, Count: 1},
		{Year: 2020, Count: 3},
		{Year: 2021, Count: 2},
	}, stats.ByYear)

	assert.Equal(t, []domain.DatabaseCount{
		{Database: domain.DatabaseArXiv, Count: 2},
		{Database: domain.DatabaseOpenAlex, Count: 1},
		{Database: domain.DatabasePubMed, Count: 4},
	}, stats.ByDatabase)
}

func TestComputeStatistics_FreeTextSources(t *testing.T) {
	stats := ComputeStatistics([]domain.Study{
		decided("a", 2020, "", domain.ScreeningStatusPending, "", ""),
		decided("b", 2020, domain.SourceOther, domain.ScreeningStatusPending, "", ""),
		decided("c", 2020, "crossref", domain.ScreeningStatusIncluded, "", ""),
	})

	assert.Equal(t, []domain.DatabaseCount{
		{Database: "crossref", Count: 1},
		{Database: domain.SourceOther, Count: 2},
	}, stats.ByDatabase)
}

func TestComputeStatistics_GroupSumsMatchTotal(t *testing.T) {
	stats := ComputeStatistics(mixedStudies())

	byYear, byDB := 0, 0
	for _, y := range stats.ByYear {
		byYear += y.Count
	}
	for _, d := range stats.ByDatabase {
		byDB += d.Count
	}
	assert.Equal(t, stats.Total, byYear)
	assert.Equal(t, stats.Total, byDB)
}
