// internal/agents/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

func newTestES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return es
}

func TestElasticExecute_SurfacesHitsAndAggregations(t *testing.T) {
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": {
				"total": {"value": 27},
				"hits": [
					{"_source": {"productDesc": "black pepper", "unitRateUsd": 6.1}},
					{"_source": {"productDesc": "white pepper", "unitRateUsd": 7.4}}
				]
			},
			"aggregations": {
				"price_stats": {"count": 12, "min": 3.5, "max": 9.0, "avg": 6.1}
			}
		}`))
	})

	exec := NewElasticExecutor(es, "documents", logger.NewNoOpLogger())
	result := exec.Execute(context.Background(), `{"query":{"match_all":{}}}`)

	require.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, 27, result.TotalHits)
	require.Equal(t, 2, result.HitCount())
	assert.Equal(t, "black pepper", result.Hits[0]["productDesc"])
	require.Contains(t, result.Aggregations, "price_stats")
}

func TestElasticExecute_BackendErrorVerbatim(t *testing.T) {
	errorBody := `{"error":{"type":"parsing_exception","reason":"unknown field [bogus]"}}`
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(errorBody))
	})

	exec := NewElasticExecutor(es, "documents", logger.NewNoOpLogger())
	result := exec.Execute(context.Background(), `{"query":{"bogus":{}}}`)

	assert.False(t, result.Success)
	assert.Equal(t, errorBody, result.Error)
	assert.Empty(t, result.Hits)
}

func TestElasticExecute_TransportFailure(t *testing.T) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{"http://127.0.0.1:1"}})
	require.NoError(t, err)

	exec := NewElasticExecutor(es, "documents", logger.NewNoOpLogger())
	result := exec.Execute(context.Background(), `{"query":{"match_all":{}}}`)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestSQLExecute_MaterializesRowsInColumnOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT Name, Subject, Grade FROM students").
		WillReturnRows(sqlmock.NewRows([]string{"Name", "Subject", "Grade"}).
			AddRow("Alice", "Math", 5).
			AddRow("Bob", "Science", 3))

	exec := NewSQLExecutor(db, logger.NewNoOpLogger())
	result := exec.Execute(context.Background(), "SELECT Name, Subject, Grade FROM students")

	require.True(t, result.Success)
	assert.Equal(t, []string{"Name", "Subject", "Grade"}, result.Columns)
	require.Equal(t, 2, result.RowCount())
	assert.Equal(t, "Alice", result.Rows[0]["Name"])
	assert.Equal(t, "Science", result.Rows[1]["Subject"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLExecute_ZeroRowsIsSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT \\* FROM students").
		WillReturnRows(sqlmock.NewRows([]string{"Name", "Subject", "Grade"}))

	exec := NewSQLExecutor(db, logger.NewNoOpLogger())
	result := exec.Execute(context.Background(), "SELECT * FROM students")

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, 0, result.RowCount())
	assert.True(t, result.Empty())
}

func TestSQLExecute_BackendErrorCaptured(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT bogus FROM students").
		WillReturnError(errors.New(`pq: column "bogus" does not exist`))

	exec := NewSQLExecutor(db, logger.NewNoOpLogger())
	result := exec.Execute(context.Background(), "SELECT bogus FROM students")

	assert.False(t, result.Success)
	assert.Equal(t, `pq: column "bogus" does not exist`, result.Error)
	assert.Empty(t, result.Rows)
}

func TestSQLExecute_ExtractsCorrectionsBeforeRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The executed statement must not contain the annotation.
	mock.ExpectQuery(`^SELECT \* FROM students WHERE Subject = 'Science'$`).
		WillReturnRows(sqlmock.NewRows([]string{"Name"}).AddRow("Alice"))

	exec := NewSQLExecutor(db, logger.NewNoOpLogger())
	result := exec.Execute(context.Background(),
		"SELECT * FROM students WHERE Subject = 'Science' -- corrected: 'Sciense' -> 'Science'")

	require.True(t, result.Success)
	assert.Equal(t, []string{"'Sciense' -> 'Science'"}, result.Corrections)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractCorrections_BothCommentForms(t *testing.T) {
	cleaned, notes := ExtractCorrections(
		"SELECT * FROM students /* corrected: 'Jon' -> 'John' */ WHERE Name = 'John' -- corrected: 'Sciense' -> 'Science'")

	assert.Equal(t, "SELECT * FROM students  WHERE Name = 'John'", cleaned)
	assert.ElementsMatch(t, []string{"'Jon' -> 'John'", "'Sciense' -> 'Science'"}, notes)
}

func TestExtractCorrections_NoAnnotations(t *testing.T) {
	cleaned, notes := ExtractCorrections("SELECT * FROM students")
	assert.Equal(t, "SELECT * FROM students", cleaned)
	assert.Empty(t, notes)
}

func TestDispatcher_RoutesOnBackend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	d := NewDispatcher(logger.NewNoOpLogger())
	d.Register(models.BackendPostgres, NewSQLExecutor(db, logger.NewNoOpLogger()))

	result := d.Execute(context.Background(), models.QueryPlan{
		Query:   "SELECT 1",
		Backend: models.BackendPostgres,
	})
	assert.True(t, result.Success)
}

func TestDispatcher_UnknownBackendFails(t *testing.T) {
	d := NewDispatcher(logger.NewNoOpLogger())

	result := d.Execute(context.Background(), models.QueryPlan{
		Query:   "{}",
		Backend: models.Backend("mysql"),
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "mysql")
}
