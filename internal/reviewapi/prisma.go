package reviewapi

import (
	"github.com/helixir/review-screening/internal/domain"
)

// prismaFlowPayload is the wire shape of a PRISMA flow. Counts are pointers
// so a missing bucket fails validation instead of decoding as zero. Both the
// records_identified/studies_included names and the total_records/
// total_included names are accepted.
type prismaFlowPayload struct {
	Identification *identificationPayload `json:"identification" validate:"required"`
	Screening      *screeningPayload      `json:"screening" validate:"required"`
	Eligibility    *eligibilityPayload    `json:"eligibility" validate:"required"`
	Included       *includedPayload       `json:"included" validate:"required"`
	FlowArrows     []domain.FlowArrow     `json:"flow_arrows"`
}

type identificationPayload struct {
	RecordsIdentified *int           `json:"records_identified" validate:"omitempty,gte=0"`
	TotalRecords      *int           `json:"total_records" validate:"omitempty,gte=0"`
	DuplicatesRemoved *int           `json:"duplicates_removed" validate:"required,gte=0"`
	DatabasesSearched *int           `json:"databases_searched" validate:"omitempty,gte=0"`
	BySource          map[string]int `json:"by_source"`
	RecordsAfterDedup *int           `json:"records_after_dedup" validate:"required,gte=0"`
}

type screeningPayload struct {
	RecordsScreened  *int                `json:"records_screened" validate:"required,gte=0"`
	RecordsExcluded  *int                `json:"records_excluded" validate:"required,gte=0"`
	ExclusionReasons domain.ReasonCounts `json:"exclusion_reasons"`
}

type eligibilityPayload struct {
	FullTextAssessed *int                `json:"full_text_assessed" validate:"required,gte=0"`
	FullTextExcluded *int                `json:"full_text_excluded" validate:"required,gte=0"`
	ExclusionReasons domain.ReasonCounts `json:"exclusion_reasons"`
}

type includedPayload struct {
	StudiesIncluded *int `json:"studies_included" validate:"omitempty,gte=0"`
	TotalIncluded   *int `json:"total_included" validate:"omitempty,gte=0"`
}

// toDomain converts a validated payload. It fails when neither name of an
// aliased count is present.
func (p *prismaFlowPayload) toDomain(entity string) (*domain.PrismaFlow, error) {
	identified := firstCount(p.Identification.RecordsIdentified, p.Identification.TotalRecords)
	if identified == nil {
		return nil, domain.NewSchemaError(entity, "identification.records_identified", "missing (also accepted as total_records)")
	}
	included := firstCount(p.Included.StudiesIncluded, p.Included.TotalIncluded)
	if included == nil {
		return nil, domain.NewSchemaError(entity, "included.studies_included", "missing (also accepted as total_included)")
	}

	databases := len(p.Identification.BySource)
	if p.Identification.DatabasesSearched != nil {
		databases = *p.Identification.DatabasesSearched
	}

	flow := &domain.PrismaFlow{
		Identification: domain.Identification{
			RecordsIdentified: *identified,
			DuplicatesRemoved: *p.Identification.DuplicatesRemoved,
			DatabasesSearched: databases,
			RecordsAfterDedup: *p.Identification.RecordsAfterDedup,
		},
		Screening: domain.ScreeningStage{
			RecordsScreened:  *p.Screening.RecordsScreened,
			RecordsExcluded:  *p.Screening.RecordsExcluded,
			ExclusionReasons: p.Screening.ExclusionReasons,
		},
		Eligibility: domain.Eligibility{
			FullTextAssessed: *p.Eligibility.FullTextAssessed,
			FullTextExcluded: *p.Eligibility.FullTextExcluded,
			ExclusionReasons: p.Eligibility.ExclusionReasons,
		},
		Included:   domain.IncludedStage{StudiesIncluded: *included},
		FlowArrows: p.FlowArrows,
	}
	return flow, nil
}

func firstCount(counts ...*int) *int {
	for _, c := range counts {
		if c != nil {
			return c
		}
	}
	return nil
}
