package assessment

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildQuery converts loosely typed parameters into query values. Nil and empty
// values are dropped and slices are joined with commas.
func BuildQuery(params map[string]any) url.Values {
	values := url.Values{}
	for key, raw := range params {
		if s, ok := formatParam(raw); ok {
			values.Set(key, s)
		}
	}
	return values
}

func formatParam(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case []string:
		if len(v) == 0 {
			return "", false
		}
		return strings.Join(v, ","), true
	case []int:
		if len(v) == 0 {
			return "", false
		}
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ","), true
	case bool:
		return strconv.FormatBool(v), true
	case *bool:
		if v == nil {
			return "", false
		}
		return strconv.FormatBool(*v), true
	case int:
		return strconv.Itoa(v), true
	case *int:
		if v == nil {
			return "", false
		}
		return strconv.Itoa(*v), true
	case Level:
		return string(v), v != ""
	default:
		s := fmt.Sprint(v)
		return s, s != ""
	}
}

// setPositive adds n when it is greater than zero; zero means "not set" for paging
// and numeric filters.
func setPositive(params map[string]any, key string, n int) {
	if n > 0 {
		params[key] = n
	}
}

// CandidateQuery filters the candidate list.
type CandidateQuery struct {
	Name                 string
	Email                string
	Status               string
	InterviewLevel       Level
	Skills               []string
	ProgrammingLanguages []string
	PreferredStack       string
	YearsOfExperience    *int
	CurrentPosition      string
	Location             string
	Page                 int
	PageSize             int
	SortBy               string
	SortDirection        string
}

func (q CandidateQuery) Values() url.Values {
	params := map[string]any{
		"name":                  q.Name,
		"email":                 q.Email,
		"status":                q.Status,
		"interview_level":       q.InterviewLevel,
		"skills":                q.Skills,
		"programming_languages": q.ProgrammingLanguages,
		"preferred_stack":       q.PreferredStack,
		"years_of_experience":   q.YearsOfExperience,
		"current_position":      q.CurrentPosition,
		"location":              q.Location,
		"sort_by":               q.SortBy,
		"sort_direction":        q.SortDirection,
	}
	setPositive(params, "page", q.Page)
	setPositive(params, "page_size", q.PageSize)
	return BuildQuery(params)
}

// QuestionSearch filters question search. Mode is compact, full or minimalist.
type QuestionSearch struct {
	Topic             string
	Language          string
	Position          string
	SortBy            string
	SortDirection     string
	Page              int
	PageSize          int
	Mode              string
	IgnoreQuestionIDs []string
}

func (q QuestionSearch) Values() url.Values {
	params := map[string]any{
		"topic":               q.Topic,
		"language":            q.Language,
		"position":            q.Position,
		"sort_by":             q.SortBy,
		"sort_direction":      q.SortDirection,
		"mode":                q.Mode,
		"ignore_question_ids": q.IgnoreQuestionIDs,
	}
	setPositive(params, "page", q.Page)
	setPositive(params, "page_size", q.PageSize)
	return BuildQuery(params)
}

// LanguageQuery filters the language list.
type LanguageQuery struct {
	Name           string
	Slug           string
	DesignedBy     string
	FirstAppeared  int
	Paradigm       string
	PopularityRank int
	TypeSystem     string
	Page           int
	Limit          int
	SortBy         string
	SortDirection  string
}

func (q LanguageQuery) Values() url.Values {
	params := map[string]any{
		"name":           q.Name,
		"slug":           q.Slug,
		"designed_by":    q.DesignedBy,
		"paradigm":       q.Paradigm,
		"type_system":    q.TypeSystem,
		"sort_by":        q.SortBy,
		"sort_direction": q.SortDirection,
	}
	setPositive(params, "first_appeared", q.FirstAppeared)
	setPositive(params, "popularity_rank", q.PopularityRank)
	setPositive(params, "page", q.Page)
	setPositive(params, "limit", q.Limit)
	return BuildQuery(params)
}

// PositionQuery filters the position list.
type PositionQuery struct {
	Title         string
	Slug          string
	Level         int
	IsActive      *bool
	Page          int
	Limit         int
	SortBy        string
	SortDirection string
}

func (q PositionQuery) Values() url.Values {
	params := map[string]any{
		"title":          q.Title,
		"slug":           q.Slug,
		"is_active":      q.IsActive,
		"sort_by":        q.SortBy,
		"sort_direction": q.SortDirection,
	}
	setPositive(params, "level", q.Level)
	setPositive(params, "page", q.Page)
	setPositive(params, "limit", q.Limit)
	return BuildQuery(params)
}

// TopicQuery filters the topic list.
type TopicQuery struct {
	Title         string
	SuitableLevel Level
	Page          int
	Limit         int
}

func (q TopicQuery) Values() url.Values {
	params := map[string]any{
		"title":          q.Title,
		"suitable_level": q.SuitableLevel,
	}
	setPositive(params, "page", q.Page)
	setPositive(params, "limit", q.Limit)
	return BuildQuery(params)
}
