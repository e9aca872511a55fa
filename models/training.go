package models

// Score bounds for evaluations
const (
	MinScore = 1.0
	MaxScore = 5.0
)

// Evaluation rubric aspects, in the order they are reported
const (
	AspectListeningSkills    = "Listening Skills"
	AspectProductKnowledge   = "Product Knowledge"
	AspectObjectionHandling  = "Objection Handling"
	AspectCommunicationStyle = "Communication Style"
)

// Aspects is the fixed rubric every evaluation reports on
var Aspects = []string{
	AspectListeningSkills,
	AspectProductKnowledge,
	AspectObjectionHandling,
	AspectCommunicationStyle,
}

// AspectFeedback is the score and comment for one rubric aspect
type AspectFeedback struct {
	Aspect  string  `json:"aspect"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// EvaluationResult is the structured score report for one call
type EvaluationResult struct {
	OverallScore     float64          `json:"overallScore"`
	DetailedFeedback []AspectFeedback `json:"detailedFeedback"`
	Summary          string           `json:"summary"`
}

// TrainingSession is one completed, evaluated call. Times are Unix milliseconds.
type TrainingSession struct {
	ID               string            `json:"id"`
	UserID           string            `json:"userId"`
	StartTime        int64             `json:"startTime"`
	EndTime          int64             `json:"endTime"`
	Duration         int64             `json:"duration"` // milliseconds
	OverallScore     float64           `json:"overallScore"`
	DetailedFeedback []AspectFeedback  `json:"detailedFeedback"`
	Scenario         ScenarioSelection `json:"scenario"`
}

// UserStats represents aggregated training statistics for a user
type UserStats struct {
	TotalSimulations  int64 `json:"totalSimulations"`
	TotalTrainingTime int64 `json:"totalTrainingTime"` // milliseconds
	LastSessionTime   int64 `json:"lastSessionTime"`
}

// Apply folds a newly recorded session into the stats
func (s *UserStats) Apply(session *TrainingSession, recordedAt int64) {
	s.TotalSimulations++
	s.TotalTrainingTime += session.Duration
	s.LastSessionTime = recordedAt
}

// AverageScore returns the mean overall score of sessions, or nil when empty
func AverageScore(sessions []TrainingSession) *float64 {
	if len(sessions) == 0 {
		return nil
	}
	var total float64
	for _, s := range sessions {
		total += s.OverallScore
	}
	avg := total / float64(len(sessions))
	return &avg
}
