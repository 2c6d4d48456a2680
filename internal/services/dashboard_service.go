package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/spinsight/internal/apperr"
	"github.com/example/spinsight/internal/metrics"
	"github.com/example/spinsight/internal/models"
	"github.com/example/spinsight/internal/repository"
)

const (
	trendWeeks        = 4
	topQuestionsLimit = 5
)

var spinCategoryOrder = []string{"situation", "problem", "implication", "needPayoff"}

// RecordingFinder reads recordings for aggregation.
type RecordingFinder interface {
	Find(ctx context.Context, filter repository.RecordingFilter) ([]models.Recording, error)
}

// AppointmentCounter counts appointments for aggregation.
type AppointmentCounter interface {
	Count(ctx context.Context, filter repository.AppointmentFilter) (int64, error)
}

// StatsQuery holds the raw window parameters of a dashboard request.
type StatsQuery struct {
	Period    string
	StartDate string
	EndDate   string
}

// Empty reports whether no window parameter was supplied.
func (q StatsQuery) Empty() bool {
	return q.Period == "" && q.StartDate == "" && q.EndDate == ""
}

// Window is an inclusive [From, To] reporting range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SentimentDistribution holds rounded percentages; they need not sum to 100.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// SpinTrends holds the trailing weekly averages, oldest first.
type SpinTrends struct {
	Labels []string `json:"labels"`
	Scores []int    `json:"scores"`
}

// TopQuestion is the first example question of one SPIN category of one recording.
type TopQuestion struct {
	Question    string  `json:"question"`
	Category    string  `json:"category"`
	UsageCount  int     `json:"usage_count"`
	SuccessRate float64 `json:"success_rate"`
}

// DashboardStats is the aggregated dashboard payload.
type DashboardStats struct {
	Window                 *Window               `json:"window,omitempty"`
	TotalCalls             int64                 `json:"total_calls"`
	AvgSpinScore           int                   `json:"avg_spin_score"`
	TotalAppointments      int64                 `json:"total_appointments"`
	TotalCallDuration      float64               `json:"total_call_duration"`
	WeeklyImprovement      int                   `json:"weekly_improvement"`
	SentimentDistribution  SentimentDistribution `json:"sentiment_distribution"`
	SpinTrends             SpinTrends            `json:"spin_trends"`
	TopPerformingQuestions []TopQuestion         `json:"top_performing_questions"`
}

// Snapshot converts all-time stats into the user's cached stats.
func (d *DashboardStats) Snapshot() models.UserStats {
	return models.UserStats{
		TotalRecordings:   d.TotalCalls,
		TotalAppointments: d.TotalAppointments,
		AvgSpinScore:      d.AvgSpinScore,
		TotalCallDuration: d.TotalCallDuration,
	}
}

// DashboardService aggregates recordings and appointments into dashboard stats. It never writes.
type DashboardService struct {
	recordings   RecordingFinder
	appointments AppointmentCounter
	loc          *time.Location
	now          func() time.Time
	log          *zap.Logger
}

// NewDashboardService creates a new DashboardService. Day boundaries are taken in loc.
func NewDashboardService(recordings RecordingFinder, appointments AppointmentCounter, loc *time.Location, now func() time.Time, log *zap.Logger) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardService{
		recordings:   recordings,
		appointments: appointments,
		loc:          loc,
		now:          now,
		log:          log,
	}
}

// ComputeStats aggregates the user's data over the window resolved from q.
// With no parameters at all the whole history is covered.
func (s *DashboardService) ComputeStats(ctx context.Context, userID uuid.UUID, q StatsQuery) (*DashboardStats, error) {
	start := time.Now()
	defer func() { metrics.DashboardDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now().In(s.loc)
	window, err := ResolveWindow(q, now, s.loc)
	if err != nil {
		return nil, err
	}

	recFilter := repository.RecordingFilter{UserID: userID, ExcludeDeleted: true}
	apptFilter := repository.AppointmentFilter{UserID: userID}
	if window != nil {
		recFilter.CreatedFrom, recFilter.CreatedTo = &window.From, &window.To
		apptFilter.From, apptFilter.To = &window.From, &window.To
	}

	trendFrom := now.AddDate(0, 0, -7*trendWeeks)
	trendFilter := repository.RecordingFilter{
		UserID:         userID,
		ExcludeDeleted: true,
		CreatedFrom:    &trendFrom,
		CreatedTo:      &now,
	}

	var (
		recordings      []models.Recording
		trendRecordings []models.Recording
		appointments    int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recordings, err = s.recordings.Find(gctx, recFilter)
		return err
	})
	g.Go(func() error {
		var err error
		appointments, err = s.appointments.Count(gctx, apptFilter)
		return err
	})
	g.Go(func() error {
		var err error
		trendRecordings, err = s.recordings.Find(gctx, trendFilter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard data: %w", err)
	}

	stats := &DashboardStats{
		Window:                 window,
		TotalCalls:             int64(len(recordings)),
		AvgSpinScore:           averageSpinScore(recordings),
		TotalAppointments:      appointments,
		TotalCallDuration:      totalDuration(recordings),
		SentimentDistribution:  sentimentDistribution(recordings),
		SpinTrends:             spinTrends(trendRecordings, now),
		TopPerformingQuestions: topQuestions(recordings),
	}
	stats.WeeklyImprovement = weeklyImprovement(stats.SpinTrends.Scores)

	return stats, nil
}

// ResolveWindow turns q into an inclusive window in loc, or nil when q is empty.
// Explicit dates win over period; a missing start is the epoch, a missing end is today.
// Periods: week is today-6..today, month, quarter and year are calendar periods containing today,
// anything else is the current month.
func ResolveWindow(q StatsQuery, now time.Time, loc *time.Location) (*Window, error) {
	if q.Empty() {
		return nil, nil
	}
	now = now.In(loc)

	var from, to time.Time
	switch {
	case q.StartDate != "" || q.EndDate != "":
		from = time.Unix(0, 0).In(loc)
		to = now
		if q.StartDate != "" {
			d, err := parseDate(q.StartDate, loc)
			if err != nil {
				return nil, apperr.Validation("start_date must be YYYY-MM-DD or RFC 3339")
			}
			from = d
		}
		if q.EndDate != "" {
			d, err := parseDate(q.EndDate, loc)
			if err != nil {
				return nil, apperr.Validation("end_date must be YYYY-MM-DD or RFC 3339")
			}
			to = d
		}
	default:
		y, m, _ := now.Date()
		switch q.Period {
		case "week":
			from, to = now.AddDate(0, 0, -6), now
		case "quarter":
			qStart := time.Month((int(m)-1)/3*3 + 1)
			from = time.Date(y, qStart, 1, 0, 0, 0, 0, loc)
			to = time.Date(y, qStart+3, 0, 0, 0, 0, 0, loc)
		case "year":
			from = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
			to = time.Date(y, time.December, 31, 0, 0, 0, 0, loc)
		default:
			from = time.Date(y, m, 1, 0, 0, 0, 0, loc)
			to = time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
		}
	}

	return &Window{From: startOfDay(from, loc), To: endOfDay(to, loc)}, nil
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// averageSpinScore averages the overall score of the recordings that carry one.
func averageSpinScore(recordings []models.Recording) int {
	var sum float64
	var n int
	for _, r := range recordings {
		if score, ok := r.Analysis.Data().OverallSpinScore(); ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round(sum / float64(n))
}

func totalDuration(recordings []models.Recording) float64 {
	var total float64
	for _, r := range recordings {
		total += r.Audio.Duration
	}
	return total
}

func sentimentDistribution(recordings []models.Recording) SentimentDistribution {
	var positive, neutral, negative int
	for _, r := range recordings {
		sentiment := r.Analysis.Data().Sentiment
		if sentiment == nil || sentiment.Overall == "" {
			continue
		}
		overall := sentiment.Overall
		switch {
		case strings.Contains(overall, "positive"):
			positive++
		case strings.Contains(overall, "negative"):
			negative++
		default:
			neutral++
		}
	}

	total := positive + neutral + negative
	if total == 0 {
		total = 1
	}
	pct := func(n int) int { return round(float64(n) / float64(total) * 100) }

	return SentimentDistribution{
		Positive: pct(positive),
		Neutral:  pct(neutral),
		Negative: pct(negative),
	}
}

// spinTrends buckets recordings into the four trailing weeks ending at now.
// Week k covers (now-(5-k)*7d, now-(4-k)*7d].
func spinTrends(recordings []models.Recording, now time.Time) SpinTrends {
	trends := SpinTrends{
		Labels: make([]string, 0, trendWeeks),
		Scores: make([]int, 0, trendWeeks),
	}

	for k := 1; k <= trendWeeks; k++ {
		end := now.AddDate(0, 0, -7*(trendWeeks-k))
		start := end.AddDate(0, 0, -7)

		var sum float64
		var n int
		for _, r := range recordings {
			if !r.CreatedAt.After(start) || r.CreatedAt.After(end) {
				continue
			}
			if score, ok := r.Analysis.Data().OverallSpinScore(); ok {
				sum += score
				n++
			}
		}

		avg := 0
		if n > 0 {
			avg = round(sum / float64(n))
		}
		trends.Labels = append(trends.Labels, fmt.Sprintf("Week %d", k))
		trends.Scores = append(trends.Scores, avg)
	}

	return trends
}

func weeklyImprovement(scores []int) int {
	if len(scores) < 2 {
		return 0
	}
	return scores[len(scores)-1] - scores[len(scores)-2]
}

// topQuestions takes the first example of each category of each recording, in order, capped at five.
func topQuestions(recordings []models.Recording) []TopQuestion {
	questions := make([]TopQuestion, 0, topQuestionsLimit)
	for _, r := range recordings {
		spin := r.Analysis.Data().Spin
		if spin == nil {
			continue
		}
		for _, name := range spinCategoryOrder {
			category := spin.Category(name)
			if category == nil || len(category.Examples) == 0 {
				continue
			}
			var score float64
			if category.Score != nil {
				score = *category.Score
			}
			questions = append(questions, TopQuestion{
				Question:    category.Examples[0],
				Category:    name,
				UsageCount:  category.Count,
				SuccessRate: score / 100,
			})
			if len(questions) == topQuestionsLimit {
				return questions
			}
		}
	}
	return questions
}
