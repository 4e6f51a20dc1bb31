package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dimkroon/translate-subs/internal/jobs"
	"github.com/dimkroon/translate-subs/internal/subtitle"
)

const (
	defaultJobPreviewLimit = 80
	maxJobPreviewLimit     = 500
)

var (
	errJobNotFound     = errors.New("job not found")
	errJobInProgress   = errors.New("job is running")
	errJobNotCompleted = errors.New("job is not completed")
	errInvalidLine     = errors.New("cue index not in output")
)

type jobDetailResponse struct {
	Job           *jobs.TranslationJob `json:"job"`
	Progress      jobProgressResponse  `json:"progress"`
	Preview       []jobPreviewLine     `json:"preview"`
	PreviewOffset int                  `json:"preview_offset"`
	PreviewLimit  int                  `json:"preview_limit"`
	Editable      bool                 `json:"editable"`
}

type jobProgressResponse struct {
	TranslatedCues int     `json:"translated_cues"`
	TotalCues      int     `json:"total_cues"`
	Percent        float64 `json:"percent"`
}

// jobPreviewLine pairs a source cue with the output cue starting at the
// same time. OutputIndex is 0 when the cue was dropped or not written yet.
type jobPreviewLine struct {
	Index          int    `json:"index"`
	OutputIndex    int    `json:"output_index"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
}

type updateJobLinesRequest struct {
	Lines []updateJobLineRequest `json:"lines"`
}

type updateJobLineRequest struct {
	OutputIndex    int    `json:"output_index"`
	TranslatedText string `json:"translated_text"`
}

// jobFiles pairs a job's source cues with its written output.
type jobFiles struct {
	job    *jobs.TranslationJob
	source []subtitle.Cue
	output []subtitle.Cue
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	offset := parsePositiveIntWithDefault(r.URL.Query().Get("offset"), 0)
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), defaultJobPreviewLimit)
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}
	if limit > maxJobPreviewLimit {
		limit = maxJobPreviewLimit
	}

	detail, err := s.buildJobDetail(chi.URLParam(r, "id"), offset, limit)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateJobLines(w http.ResponseWriter, r *http.Request) {
	var req updateJobLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "lines is required")
		return
	}

	detail, err := s.updateJobLines(chi.URLParam(r, "id"), req.Lines)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errJobInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errJobNotCompleted), errors.Is(err, errInvalidLine):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeAppError(w, err)
	}
}

func parsePositiveIntWithDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) buildJobDetail(jobID string, offset int, limit int) (jobDetailResponse, error) {
	files, err := s.loadJobFiles(jobID)
	if err != nil {
		return jobDetailResponse{}, err
	}

	translated := cuesByStart(files.output)
	return jobDetailResponse{
		Job:           files.job,
		Progress:      computeJobProgress(files.source, translated),
		Preview:       buildPreviewLines(files.source, translated, offset, limit),
		PreviewOffset: offset,
		PreviewLimit:  limit,
		Editable:      files.job.Status == jobs.StatusSuccess && files.output != nil,
	}, nil
}

// updateJobLines rewrites cue texts of a finished job's output file.
func (s *Server) updateJobLines(jobID string, patches []updateJobLineRequest) (jobDetailResponse, error) {
	files, err := s.loadJobFiles(jobID)
	if err != nil {
		return jobDetailResponse{}, err
	}
	if files.job.Active() {
		return jobDetailResponse{}, errJobInProgress
	}
	if files.job.Status != jobs.StatusSuccess || files.output == nil {
		return jobDetailResponse{}, errJobNotCompleted
	}

	pos := make(map[int]int, len(files.output))
	for i, c := range files.output {
		pos[c.Index] = i
	}
	for _, patch := range patches {
		i, ok := pos[patch.OutputIndex]
		if !ok {
			return jobDetailResponse{}, errInvalidLine
		}
		files.output[i].Text = patch.TranslatedText
	}

	if err := subtitle.NewWriter().Write(files.job.OutputFile, files.output); err != nil {
		return jobDetailResponse{}, err
	}
	return s.buildJobDetail(jobID, 0, defaultJobPreviewLimit)
}

func (s *Server) loadJobFiles(jobID string) (jobFiles, error) {
	job, ok := s.queue.Get(jobID)
	if !ok {
		return jobFiles{}, errJobNotFound
	}

	files := jobFiles{job: job}
	src, err := readCuesIfFileExists(job.Payload.SubtitleFile)
	if err != nil {
		return jobFiles{}, err
	}
	files.source = src
	if job.OutputFile != "" {
		if files.output, err = readCuesIfFileExists(job.OutputFile); err != nil {
			return jobFiles{}, err
		}
	}
	return files, nil
}

func readCuesIfFileExists(path string) ([]subtitle.Cue, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	file, err := subtitle.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return file.Cues, nil
}

// cuesByStart indexes output cues by start time, which translation keeps
// while renumbering them.
func cuesByStart(cues []subtitle.Cue) map[time.Duration]subtitle.Cue {
	ret := make(map[time.Duration]subtitle.Cue, len(cues))
	for _, c := range cues {
		ret[c.Start] = c
	}
	return ret
}

func computeJobProgress(source []subtitle.Cue, translated map[time.Duration]subtitle.Cue) jobProgressResponse {
	if len(source) == 0 {
		return jobProgressResponse{}
	}
	done := 0
	for _, c := range source {
		if strings.TrimSpace(translated[c.Start].Text) != "" {
			done++
		}
	}
	return jobProgressResponse{
		TranslatedCues: done,
		TotalCues:      len(source),
		Percent:        (float64(done) / float64(len(source))) * 100,
	}
}

func buildPreviewLines(source []subtitle.Cue, translated map[time.Duration]subtitle.Cue, offset int, limit int) []jobPreviewLine {
	if offset >= len(source) {
		return []jobPreviewLine{}
	}
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}

	end := min(len(source), offset+limit)
	ret := make([]jobPreviewLine, 0, end-offset)
	for _, c := range source[offset:end] {
		out := translated[c.Start]
		ret = append(ret, jobPreviewLine{
			Index:          c.Index,
			OutputIndex:    out.Index,
			OriginalText:   c.Text,
			TranslatedText: out.Text,
		})
	}
	return ret
}
