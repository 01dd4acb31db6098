package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/intervention"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
)

const (
	defaultPatternDays = 30
	maxPatternDays     = 365
	moodWindow         = 7 * 24 * time.Hour
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Services: map[string]string{"database": "ok"}}
	if err := s.svc.Store.Ping(c.Request().Context()); err != nil {
		resp.Status = "degraded"
		resp.Services["database"] = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetPersonalization(c echo.Context) error {
	eff, err := s.svc.Personalization.Effective(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eff)
}

func (s *Server) handleSetOverrides(c echo.Context) error {
	var overrides domain.UserOverrides
	if err := c.Bind(&overrides); err != nil {
		return badRequest("invalid request body")
	}
	p, err := s.svc.Personalization.SetOverrides(c.Request().Context(), c.Param("userID"), overrides)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleClearOverrides(c echo.Context) error {
	p, err := s.svc.Personalization.ClearOverrides(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleAnalyze(c echo.Context) error {
	force := false
	if v := c.QueryParam("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest("force must be a boolean")
		}
		force = b
	}
	out, err := s.svc.Updater.Update(c.Request().Context(), c.Param("userID"), force)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handlePatterns(c echo.Context) error {
	days := defaultPatternDays
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPatternDays {
			return badRequest("days must be between 1 and %d", maxPatternDays)
		}
		days = n
	}
	userID := c.Param("userID")
	res, err := s.svc.Patterns.Analyze(c.Request().Context(), userID, days)
	if err != nil {
		return err
	}
	all := res.All()
	if all == nil {
		all = []patterns.UserPattern{}
	}
	return c.JSON(http.StatusOK, PatternsResponse{
		UserID:        userID,
		Days:          days,
		SampleSize:    res.SampleSize(),
		Patterns:      all,
		Top:           res.Top,
		TimePatterns:  res.TimePatterns,
		Engagement:    res.Engagement,
		Communication: res.Communication,
	})
}

// handleDetect runs detection, gating and ranking without generating a
// reply. Suggestions are recorded for the cooldown.
func (s *Server) handleDetect(c echo.Context) error {
	var req DetectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest("message is required")
	}
	ctx := c.Request().Context()
	userID := c.Param("userID")

	now := s.now().UTC()
	moods, err := s.svc.Store.MoodsBetween(ctx, userID, now.Add(-moodWindow), now)
	if err != nil {
		return err
	}
	need := s.svc.Detector.Detect(req.Message, req.RecentMessages, intervention.MoodContext{
		SevenDayAverage: patterns.AverageMood(moods),
	})
	resp := DetectResponse{Need: need, Recommendations: []intervention.Intervention{}}
	if need == nil {
		return c.JSON(http.StatusOK, resp)
	}

	g := s.svc.Gate.ShouldSuggest(ctx, userID, need.Type, req.Message, req.RecentMessages)
	resp.Gating = &g
	if !g.ShouldSuggest {
		return c.JSON(http.StatusOK, resp)
	}

	experience := domain.DifficultyBeginner
	if eff, err := s.svc.Personalization.Effective(ctx, userID); err == nil && eff.ExperienceLevel.Valid() {
		experience = eff.ExperienceLevel
	}
	recs, err := s.svc.Recommender.GetRecommendedInterventions(ctx, userID, need.Type, experience)
	if err != nil {
		return err
	}
	if len(recs) > 0 {
		resp.Recommendations = recs
		if err := s.svc.Gate.RecordSuggestion(ctx, userID, need.Type); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStart(c echo.Context) error {
	p, err := s.svc.Tracker.Start(c.Request().Context(), c.Param("userID"), c.Param("interventionID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleCompleteStep(c echo.Context) error {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		return badRequest("step must be an integer")
	}
	p, err := s.svc.Tracker.CompleteStep(c.Request().Context(), c.Param("userID"), c.Param("interventionID"), step)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

type transitionFunc func(t Tracker, ctx context.Context, userID, interventionID string) (*domain.InterventionProgress, error)

func (s *Server) transition(fn transitionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := fn(s.svc.Tracker, c.Request().Context(), c.Param("userID"), c.Param("interventionID"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
}

func (s *Server) handleRating(c echo.Context) error {
	var req RatingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	res, err := s.svc.Tracker.ProcessEffectivenessRating(c.Request().Context(), c.Param("userID"), c.Param("interventionID"), req.Rating)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleOutcome(c echo.Context) error {
	out, err := s.svc.Tracker.MeasureOutcome(c.Request().Context(), c.Param("userID"), c.Param("interventionID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest("message is required")
	}
	ctx := c.Request().Context()
	s.logger.Debug(ctx, "chat message received",
		logging.RedactedString("message", req.Message),
		zap.Int("recent", len(req.RecentMessages)))
	reply, err := s.svc.Chat.Respond(ctx, c.Param("userID"), req.Message, req.RecentMessages)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) handleErase(c echo.Context) error {
	userID := c.Param("userID")
	deleted, err := s.svc.Store.EraseUserData(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	var total int64
	for _, n := range deleted {
		total += n
	}
	return c.JSON(http.StatusOK, ErasureResponse{UserID: userID, Deleted: deleted, Total: total})
}
