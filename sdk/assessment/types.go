// Package assessment exposes typed access to the candidate-assessment API behind
// the gateway, plus the client-side quiz state built from it.
package assessment

// Level is a seniority level shared by candidates and topics.
type Level string

const (
	LevelIntern  Level = "intern"
	LevelFresher Level = "fresher"
	LevelJunior  Level = "junior"
	LevelMiddle  Level = "middle"
	LevelSenior  Level = "senior"
	LevelLead    Level = "lead"
)

// Pagination accompanies list responses.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

type Position struct {
	ID          string `json:"_id,omitempty"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	Level       int    `json:"level"`
	IsActive    *bool  `json:"is_active,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

type Language struct {
	ID             string   `json:"_id,omitempty"`
	Name           string   `json:"name"`
	Slug           string   `json:"slug,omitempty"`
	DesignedBy     string   `json:"designed_by"`
	FirstAppeared  int      `json:"first_appeared"`
	Paradigm       []string `json:"paradigm"`
	Usage          string   `json:"usage"`
	PopularityRank int      `json:"popularity_rank"`
	TypeSystem     string   `json:"type_system"`
	CreatedAt      string   `json:"createdAt,omitempty"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
}

type Topic struct {
	ID            string `json:"_id,omitempty"`
	Title         string `json:"title"`
	Difficulty    int    `json:"difficulty"`
	Popularity    string `json:"popularity"`
	SuitableLevel Level  `json:"suitable_level"`
	Description   string `json:"description"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

type Question struct {
	ID            string   `json:"_id,omitempty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer []int    `json:"correct_answer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	Topic         string   `json:"topic"`
	Difficulty    int      `json:"difficulty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

type Candidate struct {
	ID                   string   `json:"_id,omitempty"`
	FullName             string   `json:"full_name"`
	Email                string   `json:"email"`
	PhoneNumber          string   `json:"phone_number"`
	InterviewLevel       Level    `json:"interview_level"`
	Gender               string   `json:"gender,omitempty"`
	Birthday             string   `json:"birthday,omitempty"`
	Location             string   `json:"location,omitempty"`
	EducationLevel       string   `json:"education_level,omitempty"`
	Major                string   `json:"major,omitempty"`
	YearsOfExperience    int      `json:"years_of_experience,omitempty"`
	CurrentPosition      string   `json:"current_position,omitempty"`
	Skills               []string `json:"skills,omitempty"`
	ProgrammingLanguages []string `json:"programming_languages,omitempty"`
	PreferredStack       string   `json:"preferred_stack,omitempty"`
	AssignedTopics       []string `json:"assigned_topics,omitempty"`
	CVURL                string   `json:"cv_url,omitempty"`
	PortfolioURL         string   `json:"portfolio_url,omitempty"`
	LinkedInURL          string   `json:"linkedin_url,omitempty"`
	Status               string   `json:"status,omitempty"`
	CreatedAt            string   `json:"createdAt,omitempty"`
	UpdatedAt            string   `json:"updatedAt,omitempty"`
}

// Answer is one entry of a submission. Answer is nil until an option is chosen.
type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     *int   `json:"answer"`
	Other      string `json:"other"`
	Point      int    `json:"point"`
	IsSkip     int    `json:"is_skip"`
}

// ReviewedQuestion is the question snapshot embedded in a stored submission.
type ReviewedQuestion struct {
	ID            string   `json:"_id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
	Topic         string   `json:"topic"`
	TopicID       string   `json:"topic_id"`
}

// SubmissionAnswer is an Answer as returned when reviewing a submission.
type SubmissionAnswer struct {
	Answer
	Question *ReviewedQuestion `json:"question,omitempty"`
}

type Essay struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
	IsSkip   int     `json:"is_skip"`
}

type Review struct {
	Comment string `json:"comment"`
	Status  string `json:"status"`
}

type Submission struct {
	ID          string             `json:"_id,omitempty"`
	CandidateID string             `json:"candidate_id"`
	Answers     []SubmissionAnswer `json:"answers"`
	Essay       *Essay             `json:"essay,omitempty"`
	Review      *Review            `json:"review,omitempty"`
	Candidate   *Candidate         `json:"candidate,omitempty"`
	Score       *float64           `json:"score,omitempty"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	UpdatedAt   string             `json:"updatedAt,omitempty"`
}

// SubmitResult is the upstream acknowledgement of a submission.
type SubmitResult struct {
	ID      string   `json:"_id,omitempty"`
	Message string   `json:"message"`
	Score   *float64 `json:"score,omitempty"`
}
