package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/review-screening/internal/config"
	"github.com/helixir/review-screening/internal/reviewapi"
	"github.com/helixir/review-screening/internal/screening"
)

const testBaseURL = "https://review.test"

const reviewsJSON = `{"reviews": [{
	"id": "r1",
	"name": "Sleep and memory",
	"research_question": "Does sleep improve recall?",
	"inclusion_criteria": ["RCT"],
	"exclusion_criteria": [],
	"databases": ["pubmed", "arxiv"],
	"status": "screening",
	"created_at": "2026-01-02T03:04:05Z",
	"updated_at": "2026-01-02T03:04:05Z"
}]}`

const studiesJSON = `{"studies": [
	{"id": "s1", "title": "Naps and recall", "authors": ["Ada"], "year": 2021, "source": "pubmed", "abstract": "", "status": "pending"},
	{"id": "s2", "title": "Sleep spindles", "authors": [], "year": 2019, "source": "arxiv", "abstract": "", "status": "pending"},
	{"id": "s3", "title": "Caffeine", "authors": [], "year": 2019, "source": "pubmed", "abstract": "", "status": "included"}
]}`

const decidedJSON = `{"studies": [
	{"id": "s1", "title": "Naps and recall", "authors": ["Ada"], "year": 2021, "source": "pubmed", "abstract": "", "status": "excluded", "exclusion_reason": "Wrong population", "exclusion_stage": "title_abstract"},
	{"id": "s2", "title": "Sleep spindles", "authors": [], "year": 2019, "source": "arxiv", "abstract": "", "status": "pending"},
	{"id": "s3", "title": "Caffeine", "authors": [], "year": 2019, "source": "pubmed", "abstract": "", "status": "included"}
]}`

func apiURL(path string) string {
	return testBaseURL + reviewapi.APIPrefix + path
}

// setupBackend points the configuration at a mocked backend serving one review.
func setupBackend(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvPrefix+"_BACKEND_BASE_URL", testBaseURL)
	t.Setenv(config.EnvPrefix+"_AUTH_TOKEN", "secret")

	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, apiURL("/reviews"),
		httpmock.NewStringResponder(http.StatusOK, reviewsJSON))
	httpmock.RegisterResponder(http.MethodGet, apiURL("/reviews/r1/studies"),
		httpmock.NewStringResponder(http.StatusOK, studiesJSON))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReviewsList(t *testing.T) {
	setupBackend(t)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "reviews", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "Sleep and memory")
		assert.Contains(t, out, "pubmed, arxiv")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "reviews", "list", "-o", "json")
		require.NoError(t, err)

		var got reviewList
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, 1, got.TotalCount)
		assert.Equal(t, "r1", got.Reviews[0].ID)
	})
}

func TestReviewsCreate_ValidationSkipsBackend(t *testing.T) {
	setupBackend(t)
	httpmock.RegisterResponder(http.MethodPost, apiURL("/reviews"),
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	_, err := execute(t, "reviews", "create", "--name", "  ", "--question", "Q", "--database", "pubmed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Equal(t, 0, httpmock.GetCallCountInfo()["POST "+apiURL("/reviews")])
}

func TestStudies_StatusFilter(t *testing.T) {
	setupBackend(t)

	out, err := execute(t, "studies", "-r", "r1", "--status", "included", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"s3"`)
	assert.NotContains(t, out, `"s1"`)

	_, err = execute(t, "studies", "-r", "r1", "--status", "rejected")
	require.Error(t, err)
}

func TestScreen_DecidesCurrentStudy(t *testing.T) {
	setupBackend(t)

	var patch reviewapi.StudyPatch
	httpmock.RegisterResponder(http.MethodPatch, apiURL("/reviews/r1/studies"),
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK, decidedJSON), nil
		})

	out, err := execute(t, "screen", "-r", "r1", "-o", "json",
		"--status", "Excluded", "--stage", "title_abstract", "--reason", "Wrong population")
	require.NoError(t, err)

	assert.Equal(t, "s1", patch.StudyID)
	assert.Equal(t, "title_abstract", string(patch.ExclusionStage))

	var got screenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Decided)
	assert.Equal(t, "s1", got.Decided.ID)
	assert.Equal(t, "excluded", string(got.Decided.Status))
	require.NotNil(t, got.Cursor.Study)
	assert.Equal(t, "s2", got.Cursor.Study.ID)
	assert.Equal(t, 1, got.Cursor.Pending)
}

func TestScreen_ExclusionWithoutStageIsRejected(t *testing.T) {
	setupBackend(t)

	_, err := execute(t, "screen", "-r", "r1", "--status", "excluded")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage")
	assert.Equal(t, 0, httpmock.GetCallCountInfo()["PATCH "+apiURL("/reviews/r1/studies")])
}

func TestScreen_ShowsCursor(t *testing.T) {
	setupBackend(t)

	out, err := execute(t, "screen", "-r", "r1", "--skip", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Sleep spindles")
	assert.Contains(t, out, "[2 of 2 pending]")
}

func TestDecide_SeveralStudies(t *testing.T) {
	setupBackend(t)

	var patched []string
	httpmock.RegisterResponder(http.MethodPatch, apiURL("/reviews/r1/studies"),
		func(req *http.Request) (*http.Response, error) {
			var patch reviewapi.StudyPatch
			if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
				return nil, err
			}
			patched = append(patched, patch.StudyID)
			return httpmock.NewStringResponse(http.StatusOK, studiesJSON), nil
		})

	t.Run("all accepted", func(t *testing.T) {
		patched = nil
		out, err := execute(t, "decide", "-r", "r1", "-o", "json", "--study", "s1,s2", "--status", "maybe")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, patched)

		var got screening.BulkResult
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, 2, got.Succeeded)
		assert.Zero(t, got.Failed)
	})

	t.Run("unknown study is reported", func(t *testing.T) {
		patched = nil
		out, err := execute(t, "decide", "-r", "r1", "--study", "s1", "--study", "nope", "--status", "included")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 decisions failed")
		assert.Equal(t, []string{"s1"}, patched)
		assert.Contains(t, out, "nope")
		assert.Contains(t, out, "1 of 2 decided")
	})
}

func TestExport(t *testing.T) {
	setupBackend(t)

	t.Run("csv", func(t *testing.T) {
		out, err := execute(t, "export", "-r", "r1", "-o", "csv")
		require.NoError(t, err)

		rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, screening.ExportColumns, rows[0])
		assert.Equal(t, "s1", rows[1][0])
		assert.Equal(t, "Naps and recall", rows[1][1])
		assert.Equal(t, "included", rows[3][8])
	})

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.json")
		out, err := execute(t, "export", "-r", "r1", "-o", "json", "--file", path)
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got screening.Export
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "r1", got.Review.ID)
		assert.Len(t, got.Studies, 3)
		assert.Empty(t, got.Decisions)
		assert.Equal(t, 1, got.Statistics.Included)
	})

	t.Run("csv is export only", func(t *testing.T) {
		_, err := execute(t, "stats", "-r", "r1", "-o", "csv")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only supported by export")
	})
}

func TestStats_YAML(t *testing.T) {
	setupBackend(t)

	out, err := execute(t, "stats", "-r", "r1", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 3")
	assert.Contains(t, out, "included: 1")
	assert.Contains(t, out, "pending: 2")
}

func TestPrisma(t *testing.T) {
	setupBackend(t)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "prisma", "-r", "r1")
		require.NoError(t, err)
		assert.Contains(t, out, "Identification")
		assert.Contains(t, out, "studies included: 1")
	})

	t.Run("svg to stdout", func(t *testing.T) {
		out, err := execute(t, "prisma", "-r", "r1", "--svg", "-")
		require.NoError(t, err)
		assert.Contains(t, out, "<svg")
	})
}

func TestUnknownReview(t *testing.T) {
	setupBackend(t)

	_, err := execute(t, "stats", "-r", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select review")
}

func TestInvalidOutputFormat(t *testing.T) {
	setupBackend(t)

	_, err := execute(t, "reviews", "list", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}
