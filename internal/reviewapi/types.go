package reviewapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/review-screening/internal/domain"
)

// SearchInput is the body of a literature search request.
type SearchInput struct {
	Query     string              `json:"query"`
	Databases []domain.DatabaseID `json:"databases"`
}

// SearchResult is the backend's answer to a search. Studies is nil when the
// backend only reports a count; the caller then re-lists the review's studies.
type SearchResult struct {
	StudiesFound int            `json:"studies_found" validate:"gte=0"`
	Message      string         `json:"message"`
	Studies      []domain.Study `json:"studies,omitempty" validate:"omitempty,dive"`
}

// StudyPatch is the body of a screening status update.
type StudyPatch struct {
	StudyID         string                 `json:"study_id"`
	Status          domain.ScreeningStatus `json:"status"`
	ExclusionReason string                 `json:"exclusion_reason"`
	ExclusionStage  domain.ExclusionStage  `json:"exclusion_stage,omitempty"`
}

// NewStudyPatch builds a patch from a normalized decision.
func NewStudyPatch(studyID string, d domain.Decision) StudyPatch {
	return StudyPatch{
		StudyID:         studyID,
		Status:          d.Status,
		ExclusionReason: d.Reason,
		ExclusionStage:  d.Stage,
	}
}

// StudiesPage is the study listing of a review. Statistics is nil when the
// backend omits it.
type StudiesPage struct {
	Studies    []domain.Study     `json:"studies" validate:"required,dive"`
	Statistics *domain.Statistics `json:"statistics,omitempty"`
}

// Find returns the listed copy of one study.
func (p *StudiesPage) Find(studyID string) (domain.Study, bool) {
	if p == nil {
		return domain.Study{}, false
	}
	for i := range p.Studies {
		if p.Studies[i].ID == studyID {
			return p.Studies[i], true
		}
	}
	return domain.Study{}, false
}

type reviewList struct {
	Reviews []domain.Review `json:"reviews" validate:"required,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so schema errors match the wire format.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	enums := map[string]func(string) bool{
		"database":         func(s string) bool { return domain.DatabaseID(s).IsValid() },
		"review_status":    func(s string) bool { return domain.ReviewStatus(s).IsValid() },
		"screening_status": func(s string) bool { return domain.ScreeningStatus(s).IsValid() },
		"exclusion_stage":  func(s string) bool { return domain.ExclusionStage(s).IsValid() },
	}
	for tag, valid := range enums {
		valid := valid
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("reviewapi: register %s validation: %v", tag, err))
		}
	}
	return v
}

// validateEntity checks a decoded payload against its struct tags and maps
// the first failure to a SchemaError naming the offending field.
func validateEntity(entity string, payload interface{}) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return domain.NewSchemaError(entity, field, fmt.Sprintf("failed %q validation (got %v)", fe.Tag(), fe.Value()))
	}
	return domain.NewSchemaError(entity, "", err.Error())
}

// decodeError maps a JSON decoding failure to a SchemaError.
func decodeError(entity string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return domain.NewSchemaError(entity, typeErr.Field, fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return domain.NewSchemaError(entity, "", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
	}
	return domain.NewSchemaError(entity, "", err.Error())
}

// errorDetail extracts the "detail" field of an error body. Non-string
// details, such as validation error lists, are returned as raw JSON.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Detail) == 0 || string(envelope.Detail) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	return string(envelope.Detail)
}
