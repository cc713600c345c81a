package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hyperjump/stargaze/internal/config"
	"github.com/hyperjump/stargaze/internal/gallery"
	"github.com/hyperjump/stargaze/internal/modal"
	"github.com/hyperjump/stargaze/internal/models"
	"github.com/hyperjump/stargaze/internal/page"
	"github.com/hyperjump/stargaze/internal/web"
	"go.uber.org/zap"
)

type rangeQuery struct {
	StartDate string `query:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"required,datetime=2006-01-02"`
}

type layoutQuery struct {
	Src string  `query:"src" validate:"required,url"`
	VW  float64 `query:"vw" validate:"omitempty,gt=0"`
	VH  float64 `query:"vh" validate:"omitempty,gt=0"`
}

type cardResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Date          string `json:"date"`
	URL           string `json:"url"`
	HDURL         string `json:"hdurl,omitempty"`
	Explanation   string `json:"explanation"`
	ImageSource   string `json:"image_source"`
	RevealDelayMS int64  `json:"reveal_delay_ms"`
}

type galleryResponse struct {
	Outcome   page.Outcome   `json:"outcome"`
	StartDate string         `json:"start_date,omitempty"`
	EndDate   string         `json:"end_date,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Cards     []cardResponse `json:"cards"`
}

// pipeline is one request's gallery: a document with a renderer, a modal and a
// page controller drawing on it.
type pipeline struct {
	doc        *web.Document
	modal      *modal.Modal
	controller *page.Controller
}

func (s *Server) newPipeline(cfg config.Config, start, end string, vp modal.Viewport) *pipeline {
	doc := web.NewDocument()
	mdl := modal.New(doc, s.loader, func() modal.Viewport { return vp },
		modal.WithParams(modalParams(cfg)),
		modal.WithLogger(s.logger))
	rng := rand.New(rand.NewPCG(uint64(s.now().UnixNano()), rand.Uint64()))
	renderer := gallery.NewRenderer(doc, mdl,
		gallery.WithScheduler(gallery.ImmediateScheduler{}),
		gallery.WithDelay(gallery.UniformDelay(rng, cfg.Gallery.MinRevealDelay, cfg.Gallery.MaxRevealDelay)),
		gallery.WithLogger(s.logger))
	ctrl := page.NewController(page.StaticRange{Start: start, End: end}, s.archive, renderer, doc, doc,
		page.WithLogger(s.logger), page.WithClock(s.now))
	return &pipeline{doc: doc, modal: mdl, controller: ctrl}
}

func modalParams(cfg config.Config) modal.Params {
	return modal.Params{
		HorizontalPadding: cfg.Modal.HorizontalPadding,
		VerticalPadding:   cfg.Modal.VerticalPadding,
		FitFraction:       cfg.Modal.FitFraction,
		CeilingFraction:   cfg.Modal.CeilingFraction,
	}
}

// viewport reads vw and vh, falling back to the configured default. explicit
// reports whether both came from the request.
func viewport(q url.Values, cfg config.Config) (vp modal.Viewport, explicit bool) {
	vp = modal.Viewport{Width: cfg.Modal.DefaultViewportWidth, Height: cfg.Modal.DefaultViewportHeight}
	w, werr := strconv.ParseFloat(q.Get("vw"), 64)
	h, herr := strconv.ParseFloat(q.Get("vh"), 64)
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return vp, false
	}
	return modal.Viewport{Width: w, Height: h}, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := s.Config()
	q := r.URL.Query()
	now := s.now()
	def := models.DefaultDateRange(now)
	vp, explicit := viewport(q, cfg)

	p := web.Page{
		StartDate: def.StartString(),
		EndDate:   def.EndString(),
		MinDate:   models.ArchiveEpoch.Format(models.DateLayout),
		MaxDate:   models.Day(now).Format(models.DateLayout),
	}
	if explicit {
		p.Viewport = vp
	}

	doc := web.NewDocument()
	if q.Has("start_date") || q.Has("end_date") {
		p.StartDate, p.EndDate = q.Get("start_date"), q.Get("end_date")
		pl := s.newPipeline(cfg, p.StartDate, p.EndDate, vp)
		doc = pl.doc
		res := pl.controller.Search(ctx)
		doc.SetRevealDelays(res.Cards)

		if open := q.Get("open"); open != "" && res.Outcome == page.OutcomeRendered {
			if id, ok := doc.CardByDate(open); ok && doc.Activate(id) {
				p.OpenDate = open
				if t, ok := modal.ParseTarget(q.Get("click")); ok {
					pl.modal.HandleClick(t)
				}
				if pl.modal.Visible() {
					if err := pl.modal.Wait(ctx); err != nil {
						s.logger.Warn("modal image not measured", zap.String("date", open), zap.Error(err))
					}
				}
			}
		}
	}
	p.View = doc.Snapshot()

	var buf bytes.Buffer
	if err := web.RenderPage(&buf, p); err != nil {
		s.logger.Error("rendering page failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	var in rangeQuery
	if err := bindQuery(r, &in); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	dr, err := models.ParseDateRange(in.StartDate, in.EndDate, s.now())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("images request", zap.String("range", dr.String()))
	records, err := s.archive.Fetch(r.Context(), dr)
	if err != nil {
		s.logger.Error("fetching images failed", zap.String("range", dr.String()), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := s.Config()
	vp, _ := viewport(q, cfg)
	pl := s.newPipeline(cfg, q.Get("start_date"), q.Get("end_date"), vp)
	res := pl.controller.Search(r.Context())

	resp := galleryResponse{
		Outcome: res.Outcome,
		Message: res.Message,
		Cards:   make([]cardResponse, 0, len(res.Cards)),
	}
	if !res.Range.Start.IsZero() {
		resp.StartDate, resp.EndDate = res.Range.StartString(), res.Range.EndString()
	}
	for _, c := range res.Cards {
		resp.Cards = append(resp.Cards, cardResponse{
			ID:            c.ID,
			Title:         c.Record.Title,
			Date:          c.Record.Date,
			URL:           c.Record.URL,
			HDURL:         c.Record.HDURL,
			Explanation:   c.Record.Explanation,
			ImageSource:   c.ImageSource(),
			RevealDelayMS: c.RevealDelay.Milliseconds(),
		})
	}

	status := http.StatusOK
	switch res.Outcome {
	case page.OutcomeInvalidInput:
		status = http.StatusBadRequest
	case page.OutcomeFailed:
		status = http.StatusBadGateway
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleModalLayout(w http.ResponseWriter, r *http.Request) {
	var in layoutQuery
	if err := bindQuery(r, &in); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := s.Config()
	if !cfg.Archive.AllowsImageURL(in.Src) {
		s.logger.Warn("image probe refused", zap.String("src", in.Src))
		s.respondError(w, http.StatusBadRequest, "src must be an http(s) URL on an allowed image host")
		return
	}
	if s.loader == nil {
		s.respondError(w, http.StatusNotImplemented, "image probing not enabled")
		return
	}
	vp := modal.Viewport{Width: cfg.Modal.DefaultViewportWidth, Height: cfg.Modal.DefaultViewportHeight}
	if in.VW > 0 && in.VH > 0 {
		vp = modal.Viewport{Width: in.VW, Height: in.VH}
	}
	dims, err := s.loader.Load(r.Context(), in.Src)
	if err != nil {
		s.logger.Error("image probe failed", zap.String("src", in.Src), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "image probe failed")
		return
	}
	layout := modal.ComputeLayout(dims, vp, modalParams(cfg))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"image":    dims,
		"viewport": vp,
		"layout":   layout,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": s.now().UTC().Format(time.RFC3339)})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		s.logger.Debug("writing response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
