// internal/agents/planner/sql.go
package planner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"semantic-search-api/internal/models"
)

// knownSubjects is the closed vocabulary the relational schema carries.
// Near-miss words in a question are corrected against it.
var knownSubjects = []string{"Math", "Science", "English", "History", "Geography", "Physics", "Chemistry", "Biology"}

var (
	fullNamePattern   = regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+)\b`)
	gradeCmpPattern   = regexp.MustCompile(`(?i)grades?\s+(?:of\s+)?(above|over|greater than|more than|below|under|less than|equal to|=)\s*(\d+)`)
	wordPattern       = regexp.MustCompile(`[A-Za-z]+`)
	questionStopwords = map[string]bool{
		"Show": true, "List": true, "What": true, "Which": true, "Who": true,
		"Give": true, "Find": true, "How": true, "Tell": true, "Get": true,
	}
)

// SQLPlanner compiles an intent into a SQL statement over the students
// table (Name, Subject, Grade). Pure text generation; corrections it
// applies are annotated inline for the executor to surface.
type SQLPlanner struct {
	defaultLimit int
}

func NewSQLPlanner(defaultLimit int) *SQLPlanner {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &SQLPlanner{defaultLimit: defaultLimit}
}

func (p *SQLPlanner) Plan(intent *models.Intent, _ models.ResolvedEntities) models.QueryPlan {
	kind := Classify(intent)

	var query string
	switch kind {
	case models.QueryKindAggregation:
		query = p.planAggregation(intent)
	case models.QueryKindDetail:
		query = p.planDetail(intent)
	default:
		query = p.planSearch(intent)
	}

	return models.QueryPlan{
		Query:   query,
		Backend: models.BackendPostgres,
		Kind:    kind,
	}
}

func (p *SQLPlanner) planAggregation(intent *models.Intent) string {
	text := strings.ToLower(intent.RawQuery)
	predicates, corrections := p.extractPredicates(intent.RawQuery)

	var query string
	switch {
	case strings.Contains(text, "how many") || strings.Contains(text, "count") || strings.Contains(text, "total"):
		// Distinct head count, deliberately without GROUP BY.
		query = "SELECT COUNT(DISTINCT Name) AS TotalStudents FROM students"
		query += whereClause(predicates)
	case strings.Contains(text, "average"):
		groupBy := "Subject"
		if namePredicate(predicates) || strings.Contains(text, "each student") || strings.Contains(text, "per student") {
			groupBy = "Name"
		}
		query = fmt.Sprintf("SELECT %s, AVG(Grade) AS AverageGrade FROM students", groupBy)
		query += whereClause(predicates)
		query += " GROUP BY " + groupBy
	default:
		query = "SELECT COUNT(*) AS TotalRecords FROM students"
		query += whereClause(predicates)
	}

	return query + correctionSuffix(corrections)
}

func (p *SQLPlanner) planDetail(intent *models.Intent) string {
	predicates, corrections := p.extractPredicates(intent.RawQuery)

	query := "SELECT Name, Subject, Grade FROM students"
	query += whereClause(predicates)
	query += " ORDER BY Name"
	return query + correctionSuffix(corrections)
}

func (p *SQLPlanner) planSearch(intent *models.Intent) string {
	predicates, corrections := p.extractPredicates(intent.RawQuery)

	query := "SELECT * FROM students"
	query += whereClause(predicates)

	if m := limitPattern.FindStringSubmatch(intent.RawQuery); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			query += fmt.Sprintf(" ORDER BY Grade DESC LIMIT %d", n)
		}
	} else if intent.Limit > 0 {
		query += fmt.Sprintf(" ORDER BY Grade DESC LIMIT %d", intent.Limit)
	}

	return query + correctionSuffix(corrections)
}

// extractPredicates pulls conjunctive WHERE predicates out of the raw
// question: student names, subject keywords (with spelling correction)
// and grade comparisons, including the named bands.
func (p *SQLPlanner) extractPredicates(raw string) ([]string, []string) {
	var predicates []string
	var corrections []string

	if name := extractStudentName(raw); name != "" {
		predicates = append(predicates, fmt.Sprintf("Name = '%s'", escapeSQL(name)))
	}

	if subject, corrected := extractSubject(raw); subject != "" {
		predicates = append(predicates, fmt.Sprintf("Subject = '%s'", subject))
		if corrected != "" {
			corrections = append(corrections, fmt.Sprintf("'%s' -> '%s'", corrected, subject))
		}
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "top performer"):
		predicates = append(predicates, "Grade >= 4")
	case strings.Contains(lower, "struggling"):
		predicates = append(predicates, "Grade <= 2")
	default:
		if m := gradeCmpPattern.FindStringSubmatch(raw); m != nil {
			op := comparisonOperator(m[1])
			predicates = append(predicates, fmt.Sprintf("Grade %s %s", op, m[2]))
		}
	}

	return predicates, corrections
}

// extractStudentName finds a capitalized full name, or failing that a
// lone capitalized word past the question opener.
func extractStudentName(raw string) string {
	if m := fullNamePattern.FindStringSubmatch(raw); m != nil {
		if !questionStopwords[strings.Fields(m[1])[0]] {
			return m[1]
		}
	}

	words := strings.Fields(raw)
	for i, w := range words {
		if i == 0 {
			continue
		}
		w = strings.Trim(w, ".,?!'\"")
		w = strings.TrimSuffix(w, "'s")
		if len(w) < 2 || w[0] < 'A' || w[0] > 'Z' {
			continue
		}
		if questionStopwords[w] || isKnownSubject(w) || isNearSubject(w) {
			continue
		}
		if strings.ToUpper(w) == w {
			// Acronyms are not names.
			continue
		}
		return w
	}
	return ""
}

// extractSubject returns the matched subject in canonical casing and,
// when the question misspelled it, the original word for the
// correction note.
func extractSubject(raw string) (subject, misspelled string) {
	for _, s := range knownSubjects {
		if strings.Contains(strings.ToLower(raw), strings.ToLower(s)) {
			return s, ""
		}
	}

	for _, m := range wordPattern.FindAllString(raw, -1) {
		if len(m) < 4 {
			continue
		}
		for _, s := range knownSubjects {
			if editDistance(strings.ToLower(m), strings.ToLower(s)) == 1 {
				return s, m
			}
		}
	}
	return "", ""
}

func isKnownSubject(w string) bool {
	for _, s := range knownSubjects {
		if strings.EqualFold(w, s) {
			return true
		}
	}
	return false
}

// isNearSubject keeps misspelled subject words from being mistaken for
// student names.
func isNearSubject(w string) bool {
	for _, s := range knownSubjects {
		if editDistance(strings.ToLower(w), strings.ToLower(s)) == 1 {
			return true
		}
	}
	return false
}

func comparisonOperator(word string) string {
	switch strings.ToLower(word) {
	case "above", "over", "greater than", "more than":
		return ">"
	case "below", "under", "less than":
		return "<"
	default:
		return "="
	}
}

func whereClause(predicates []string) string {
	if len(predicates) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(predicates, " AND ")
}

// correctionSuffix annotates applied spelling fixes inline so the
// executor can extract them into correction notes before running the
// statement.
func correctionSuffix(corrections []string) string {
	var b strings.Builder
	for _, c := range corrections {
		b.WriteString(" -- corrected: ")
		b.WriteString(c)
	}
	return b.String()
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func namePredicate(predicates []string) bool {
	for _, p := range predicates {
		if strings.HasPrefix(p, "Name = ") {
			return true
		}
	}
	return false
}

// editDistance is plain Levenshtein over ASCII words.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(min(curr[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
