package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/gin-gonic/gin"
)

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, news.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, news.ErrNoResults), errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrUserExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, news.ErrNoContent):
		return http.StatusUnprocessableEntity, "no_content"
	case errors.Is(err, news.ErrConfiguration):
		return http.StatusInternalServerError, "configuration"
	case errors.Is(err, news.ErrSearch), errors.Is(err, news.ErrSummarization):
		return http.StatusBadGateway, "upstream"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func (s *Server) store() (storage.Backend, error) {
	if s.cfg.Store == nil {
		return nil, fmt.Errorf("%w: no user store configured", news.ErrConfiguration)
	}
	return s.cfg.Store, nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Format(time.RFC3339)})
}

func (s *Server) summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", news.ErrValidation, err))
		return
	}

	maxArticles := DefaultMaxArticles
	if req.MaxArticles != nil {
		if *req.MaxArticles < news.MinResultCap {
			s.fail(c, fmt.Errorf("%w: max_articles must be between %d and %d", news.ErrValidation, news.MinResultCap, news.MaxResultCap))
			return
		}
		maxArticles = *req.MaxArticles
	}

	d, err := s.cfg.Pipeline.Run(c.Request.Context(), pipeline.Request{
		Topic:       req.Topic,
		Window:      req.TimePeriod,
		MaxArticles: maxArticles,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	if s.cfg.Store != nil {
		if err := s.cfg.Store.SaveDigest(c.Request.Context(), d.Record("")); err != nil {
			s.logger.Warn("failed to store digest", "topic", d.Topic, "err", err)
		}
	}

	c.JSON(http.StatusOK, toSummarizeResponse(d))
}

func (s *Server) registerUser(c *gin.Context) {
	st, err := s.store()
	if err != nil {
		s.fail(c, err)
		return
	}

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", news.ErrValidation, err))
		return
	}

	u := &storage.User{Name: req.Name, MobileNo: string(req.MobileNo), Topics: req.Topics}
	if err := st.CreateUser(c.Request.Context(), u); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("registered user", "mobile_no", u.MobileNo, "topics", len(u.Topics))
	c.JSON(http.StatusCreated, toUserResponse(u))
}

func (s *Server) lookupUser(c *gin.Context) (storage.Backend, *storage.User, bool) {
	st, err := s.store()
	if err != nil {
		s.fail(c, err)
		return nil, nil, false
	}
	mobileNo := c.Param("mobile_no")
	if err := storage.ValidateMobileNo(mobileNo); err != nil {
		s.fail(c, err)
		return nil, nil, false
	}
	u, err := st.GetUser(c.Request.Context(), mobileNo)
	if err != nil {
		s.fail(c, err)
		return nil, nil, false
	}
	return st, u, true
}

func (s *Server) getUser(c *gin.Context) {
	_, u, ok := s.lookupUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (s *Server) userNewsSummary(c *gin.Context) {
	st, u, ok := s.lookupUser(c)
	if !ok {
		return
	}
	if len(u.Topics) == 0 {
		s.fail(c, fmt.Errorf("%w: no topics of interest for this user", news.ErrNoResults))
		return
	}

	ctx := c.Request.Context()
	results := s.cfg.Pipeline.RunTopics(ctx, u.Topics, s.cfg.Window, s.cfg.MaxArticles)

	resp := UserSummaryResponse{UserName: u.Name}
	var firstErr error
	for _, r := range results {
		switch {
		case r.Digest != nil:
			resp.Summaries = append(resp.Summaries, TopicSummary{
				Topic:    r.Topic,
				Summary:  r.Digest.Summary,
				Articles: toArticles(r.Digest.Articles),
			})
			if err := st.SaveDigest(ctx, r.Digest.Record(u.MobileNo)); err != nil {
				s.logger.Warn("failed to store digest", "mobile_no", u.MobileNo, "topic", r.Topic, "err", err)
			}
		case r.Err != nil:
			resp.Failed = append(resp.Failed, r.Topic)
			if firstErr == nil {
				firstErr = r.Err
			}
		}
	}

	if len(resp.Summaries) == 0 {
		if firstErr != nil {
			s.fail(c, firstErr)
			return
		}
		resp.Message = "No news found for any of your topics of interest"
		resp.TopicsSearched = u.Topics
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) updateTopics(c *gin.Context) {
	st, u, ok := s.lookupUser(c)
	if !ok {
		return
	}

	var req UpdateTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", news.ErrValidation, err))
		return
	}

	updated, err := st.UpdateTopics(c.Request.Context(), u.MobileNo, req.Topics)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Topics updated successfully",
		"mobile_no":      updated.MobileNo,
		"name":           updated.Name,
		"updated_topics": updated.Topics,
	})
}

// getQueryInt returns def unless key holds an integer of at least floor.
func getQueryInt(c *gin.Context, key string, def, floor int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < floor {
		return def
	}
	return v
}

func (s *Server) listDigests(c *gin.Context) {
	st, err := s.store()
	if err != nil {
		s.fail(c, err)
		return
	}

	filter := storage.Filter{
		Topic:    c.Query("topic"),
		MobileNo: c.Query("mobile_no"),
		Limit:    min(getQueryInt(c, "limit", 10, 1), 100),
		Offset:   getQueryInt(c, "offset", 0, 0),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.fail(c, fmt.Errorf("%w: since must be RFC3339", news.ErrValidation))
			return
		}
		filter.Since = &t
	}

	records, err := st.QueryDigests(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := DigestsResponse{Digests: make([]DigestResponse, 0, len(records)), Limit: filter.Limit, Offset: filter.Offset}
	for _, r := range records {
		resp.Digests = append(resp.Digests, toDigestResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}
