// Package web serves the interactive upload → parse → analyze → download
// flow. Each user action is one synchronous pipeline stage; runs live in an
// in-memory session store and are never persisted.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"testwise/internal/config"
	"testwise/internal/llm"
	"testwise/internal/logging"
	"testwise/internal/parse"
	"testwise/internal/report"
	"testwise/internal/rootcause"
	"testwise/internal/summarize"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// maxUploadBytes caps uploaded log files.
const maxUploadBytes = 16 << 20

// Server wires the HTTP handlers to the analysis pipeline.
type Server struct {
	cfg       config.Config
	completer llm.Completer
	store     *Store
	templates *template.Template
	logger    *slog.Logger
}

// NewServer creates the web server. completer may be nil; every LLM-backed
// section then degrades to its local fallback.
func NewServer(cfg config.Config, completer llm.Completer) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{
		cfg:       cfg,
		completer: completer,
		store:     NewStore(cfg.SessionTTL.Std()),
		templates: tmpl,
		logger:    logging.New("web"),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /run/{id}", s.handleRun)
	mux.HandleFunc("POST /run/{id}/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /run/{id}/report.md", s.handleReportMarkdown)
	mux.HandleFunc("GET /run/{id}/report.pdf", s.handleReportPDF)
	mux.HandleFunc("GET /run/{id}/summary.md", s.handleSummaryMarkdown)
	mux.HandleFunc("GET /run/{id}/rootcause.md", s.handleRootCauseMarkdown)
	return mux
}

type indexView struct {
	Error string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index", indexView{Error: r.URL.Query().Get("error")})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("logfile")
	if err != nil {
		s.redirectError(w, r, "no file uploaded")
		return
	}
	defer file.Close()

	format, err := parse.DetectFormat(header.Filename)
	if err != nil {
		s.redirectError(w, r, err.Error())
		return
	}

	run, err := parse.Parse(file, format)
	if err != nil {
		s.logger.Warn("parse failed", "file", header.Filename, "error", err)
		s.redirectError(w, r, err.Error())
		return
	}

	sess := s.store.Put(header.Filename, run)
	s.logger.Info("log parsed",
		"file", header.Filename,
		"records", len(run.Records),
		"problems", len(run.Problems),
		"session", sess.ID)
	http.Redirect(w, r, "/run/"+sess.ID, http.StatusSeeOther)
}

type runFilter struct {
	Status     string
	Module     string
	Kind       string
	FailedOnly bool
}

type runView struct {
	Session   *Session
	Records   []parse.TestRecord
	Statuses  []parse.Status
	Modules   []string
	Kinds     []string
	Filter    runFilter
	Agg       *summarize.Aggregate
	Summary   *summarize.Result
	RootCause *rootcause.Result
	ChartSVG  template.HTML
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	filter := runFilter{
		Status:     r.URL.Query().Get("status"),
		Module:     r.URL.Query().Get("module"),
		Kind:       r.URL.Query().Get("kind"),
		FailedOnly: r.URL.Query().Get("failed") == "1",
	}
	records := filterRecords(sess.Run.Records, filter)
	filtered := &parse.TestRun{Records: records, Partial: sess.Run.Partial}

	summary := sess.Summary(func() *summarize.Result { return s.summarize(r, sess) })

	var chart template.HTML
	agg := summarize.Compute(filtered)
	if svg, err := report.ChartSVG(agg.Errors); err == nil {
		chart = template.HTML(svg)
	}

	s.render(w, "run", runView{
		Session:   sess,
		Records:   records,
		Statuses:  parse.Statuses(),
		Modules:   sess.Run.Modules(),
		Kinds:     sess.Run.Kinds(),
		Filter:    filter,
		Agg:       agg,
		Summary:   summary,
		RootCause: sess.RootCause(),
		ChartSVG:  chart,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	result := rootcause.Analyze(r.Context(), s.completer, sess.Run, s.cfg.TopFailures)
	sess.SetRootCause(result)
	s.logger.Info("root cause analyzed",
		"session", sess.ID,
		"failures", len(result.Failures),
		"degraded", result.Degraded)
	http.Redirect(w, r, "/run/"+sess.ID, http.StatusSeeOther)
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	md := report.Markdown(s.reportData(r, sess), report.Options{})
	serveDownload(w, "testwise_report.md", "text/markdown", []byte(md))
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	md := report.Markdown(s.reportData(r, sess), report.Options{ForPDF: true, EmbedChart: true})
	htmlDoc, err := report.HTML(md)
	if err != nil {
		http.Error(w, "render report: "+err.Error(), http.StatusInternalServerError)
		return
	}
	pdf, err := report.PDF(r.Context(), htmlDoc)
	if err != nil {
		s.logger.Warn("pdf rendering unavailable", "error", err)
		http.Error(w, "PDF rendering unavailable; download the Markdown report instead", http.StatusServiceUnavailable)
		return
	}
	serveDownload(w, "testwise_report.pdf", "application/pdf", pdf)
}

func (s *Server) handleSummaryMarkdown(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	summary := sess.Summary(func() *summarize.Result { return s.summarize(r, sess) })
	body := "# LLM Summary\n\n"
	if summary.Degraded || summary.Narrative == "" {
		body += "_Unavailable: " + summary.Reason + "_\n"
	} else {
		body += summary.Narrative + "\n"
	}
	serveDownload(w, "summary.md", "text/markdown", []byte(body))
}

func (s *Server) handleRootCauseMarkdown(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	rc := sess.RootCause()
	if rc == nil {
		http.Error(w, "no root cause analysis yet; run Analyze Top Failures first", http.StatusNotFound)
		return
	}
	body := "# Root Cause Suggestions\n\n"
	if rc.Degraded || rc.Analysis == "" {
		body += "_Unavailable: " + rc.Reason + "_\n"
	} else {
		body += rc.Analysis + "\n"
	}
	serveDownload(w, "root_cause.md", "text/markdown", []byte(body))
}

// --- helpers ---

func (s *Server) summarize(r *http.Request, sess *Session) *summarize.Result {
	return summarize.SummarizeChunked(r.Context(), s.completer, sess.Run, s.cfg.ChunkSize)
}

func (s *Server) reportData(r *http.Request, sess *Session) *report.Data {
	return &report.Data{
		GeneratedAt: time.Now(),
		Source:      sess.Source,
		Summary:     sess.Summary(func() *summarize.Result { return s.summarize(r, sess) }),
		RootCause:   sess.RootCause(),
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found or expired", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render template", "template", name, "error", err)
	}
}

func (s *Server) redirectError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/?error="+template.URLQueryEscaper(msg), http.StatusSeeOther)
}

func filterRecords(records []parse.TestRecord, f runFilter) []parse.TestRecord {
	out := make([]parse.TestRecord, 0, len(records))
	for _, rec := range records {
		if f.Status != "" && string(rec.Status) != f.Status {
			continue
		}
		if f.Module != "" && rec.Module != f.Module {
			continue
		}
		if f.Kind != "" && rec.Kind != f.Kind {
			continue
		}
		if f.FailedOnly && !rec.Status.Failed() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func serveDownload(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(body)
}
