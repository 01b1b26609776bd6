package screening

import (
	"sort"

	"github.com/helixir/review-screening/internal/domain"
)

// UnspecifiedReason labels exclusions recorded without a reason.
const UnspecifiedReason = "Not specified"

// PRISMA stage names used in flow arrows.
const (
	StageIdentification = "identification"
	StageScreening      = "screening"
	StageEligibility    = "eligibility"
	StageIncluded       = "included"
)

// ComputeFlow derives the PRISMA buckets from a study collection. It is a
// pure function: equal inputs always produce equal output, including the
// order of reason counts and flow arrows.
//
// Exclusions without a stage are placed at title/abstract screening.
func ComputeFlow(studies []domain.Study, databasesSearched, duplicatesRemoved int) domain.PrismaFlow {
	var included, maybe int
	screeningReasons := make(map[string]int)
	fullTextReasons := make(map[string]int)

	for i := range studies {
		s := &studies[i]
		switch s.Status {
		case domain.ScreeningStatusIncluded:
			included++
		case domain.ScreeningStatusMaybe:
			maybe++
		case domain.ScreeningStatusExcluded:
			reason := s.ExclusionReason
			if reason == "" {
				reason = UnspecifiedReason
			}
			if s.ExclusionStage == domain.ExclusionStageFullText {
				fullTextReasons[reason]++
			} else {
				screeningReasons[reason]++
			}
		}
	}

	total := len(studies)
	screeningExcluded := sumCounts(screeningReasons)
	fullTextExcluded := sumCounts(fullTextReasons)
	assessed := included + maybe + fullTextExcluded

	return domain.PrismaFlow{
		Identification: domain.Identification{
			RecordsIdentified: total + duplicatesRemoved,
			DuplicatesRemoved: duplicatesRemoved,
			DatabasesSearched: databasesSearched,
			RecordsAfterDedup: total,
		},
		Screening: domain.ScreeningStage{
			RecordsScreened:  total,
			RecordsExcluded:  screeningExcluded,
			ExclusionReasons: domain.NewReasonCounts(screeningReasons),
		},
		Eligibility: domain.Eligibility{
			FullTextAssessed: assessed,
			FullTextExcluded: fullTextExcluded,
			ExclusionReasons: domain.NewReasonCounts(fullTextReasons),
		},
		Included: domain.IncludedStage{
			StudiesIncluded: included,
		},
		FlowArrows: []domain.FlowArrow{
			{From: StageIdentification, To: StageScreening, Count: total},
			{From: StageScreening, To: StageEligibility, Count: assessed},
			{From: StageEligibility, To: StageIncluded, Count: included},
		},
	}
}

// ComputeStatistics counts studies by screening status, publication year and
// source database. Years ascend with unknown (0) first; databases sort by id.
func ComputeStatistics(studies []domain.Study) domain.Statistics {
	stats := domain.Statistics{Total: len(studies)}
	years := make(map[int]int)
	databases := make(map[domain.DatabaseID]int)

	for i := range studies {
		s := &studies[i]
		switch s.Status {
		case domain.ScreeningStatusIncluded:
			stats.Included++
		case domain.ScreeningStatusExcluded:
			stats.Excluded++
		case domain.ScreeningStatusMaybe:
			stats.Maybe++
		default:
			stats.Pending++
		}
		years[s.Year]++
		databases[s.Origin()]++
	}

	stats.ByYear = make([]domain.YearCount, 0, len(years))
	for year, n := range years {
		stats.ByYear = append(stats.ByYear, domain.YearCount{Year: year, Count: n})
	}
	sort.Slice(stats.ByYear, func(i, j int) bool { return stats.ByYear[i].Year < stats.ByYear[j].Year })

	stats.ByDatabase = make([]domain.DatabaseCount, 0, len(databases))
	for db, n := range databases {
		stats.ByDatabase = append(stats.ByDatabase, domain.DatabaseCount{Database: db, Count: n})
	}
	sort.Slice(stats.ByDatabase, func(i, j int) bool {
		return stats.ByDatabase[i].Database < stats.ByDatabase[j].Database
	})

	return stats
}

func sumCounts(tally map[string]int) int {
	n := 0
	for _, c := range tally {
		n += c
	}
	return n
}
