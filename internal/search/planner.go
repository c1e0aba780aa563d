package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gazehq/gaze-engine/internal/catalog"
	"github.com/gazehq/gaze-engine/internal/config"
	"github.com/gazehq/gaze-engine/internal/constants"
	"github.com/gazehq/gaze-engine/internal/media"
	"github.com/gazehq/gaze-engine/internal/ml"
	"github.com/gazehq/gaze-engine/internal/vectors"
)

const (
	ModeTranscript = "transcript"
	ModeVisual     = "visual"
	ModeBoth       = "both"

	defaultLimit = 50

	// detectionFusionBoost rewards moments confirmed by both the
	// detector and the similarity pass.
	detectionFusionBoost = 0.1
)

// Request is one search call.
type Request struct {
	Query     string   `json:"query"`
	Mode      string   `json:"mode"`
	Labels    []string `json:"labels,omitempty"`
	PersonIDs []string `json:"person_ids,omitempty"`
	LibraryID string   `json:"library_id,omitempty"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// PersonMatch is one person attached to a result, with how many of
// their faces fall near the result's timestamp.
type PersonMatch struct {
	PersonID  string `json:"person_id"`
	Name      string `json:"name"`
	FaceCount int    `json:"face_count"`
}

// Result is one ranked moment.
type Result struct {
	VideoID       string        `json:"video_id"`
	TimestampMs   int64         `json:"timestamp_ms"`
	Score         float64       `json:"score"`
	MatchType     string        `json:"match_type"`
	Snippet       string        `json:"transcript_snippet,omitempty"`
	ThumbnailPath string        `json:"thumbnail_path,omitempty"`
	Labels        []string      `json:"labels,omitempty"`
	Persons       []PersonMatch `json:"persons,omitempty"`
}

// Response is the paginated result set with the pre-pagination total.
type Response struct {
	Results     []Result `json:"results"`
	Total       int      `json:"total"`
	QueryTimeMs int64    `json:"query_time_ms"`
}

// Planner classifies a query and fans out to the transcript index, the
// vector shards and the detection tables, fusing everything into one
// ranked list.
type Planner struct {
	store    *catalog.Store
	log      *slog.Logger
	embedder ml.Embedder
	shards   *vectors.Cache
}

// NewPlanner wires a planner over the catalog and the shard directory.
// embedder may be nil when no model backend is available; the
// similarity pass is then skipped.
func NewPlanner(store *catalog.Store, cfg *config.Config, log *slog.Logger, embedder ml.Embedder) *Planner {
	shards := vectors.NewCache(constants.DefaultShardCacheSize, func(mediaID string) (*vectors.Shard, error) {
		return vectors.Load(vectors.ShardPath(cfg.ShardsDir(), mediaID))
	})
	return &Planner{store: store, log: log, embedder: embedder, shards: shards}
}

// Shards exposes the planner's shard cache so the pipeline can push
// fresh shards and invalidate stale ones.
func (p *Planner) Shards() *vectors.Cache { return p.shards }

// Search runs one query end to end.
func (p *Planner) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeBoth
	}
	query := strings.TrimSpace(req.Query)

	p.shards.Resize(p.store.SettingInt(ctx, "faiss_cache_max", constants.DefaultShardCacheSize))

	// A blank query with labels is a pure detection lookup; pagination
	// happens in SQL so the full moment set is never materialized.
	if query == "" && len(req.Labels) > 0 {
		return p.labelOnly(ctx, req, start)
	}

	var (
		results []Result
		err     error
	)
	if query == "" && len(req.PersonIDs) > 0 {
		results, err = p.personWindows(ctx, req)
	} else {
		results, err = p.plan(ctx, req, mode, query)
	}
	if err != nil {
		return nil, err
	}

	if err := p.enrichPersons(ctx, results); err != nil {
		p.log.Warn("person enrichment failed", "error", err)
	}
	return finalize(results, req, start), nil
}

func (p *Planner) labelOnly(ctx context.Context, req Request, start time.Time) (*Response, error) {
	total, err := p.store.CountLabelMoments(ctx, req.Labels, req.LibraryID)
	if err != nil {
		return nil, err
	}
	moments, err := p.store.LabelMoments(ctx, req.Labels, req.LibraryID, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(moments))
	for _, m := range moments {
		results = append(results, Result{
			VideoID:       m.VideoID,
			TimestampMs:   m.TimestampMs,
			Score:         float64(len(m.Labels)) / float64(len(req.Labels)),
			MatchType:     ModeVisual,
			ThumbnailPath: m.ThumbnailPath,
			Labels:        m.Labels,
		})
	}
	return &Response{
		Results:     results,
		Total:       total,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (p *Planner) plan(ctx context.Context, req Request, mode, query string) ([]Result, error) {
	category := ObjectCategory(query)
	color := queryColor(query)

	var results []Result
	if mode == ModeTranscript || mode == ModeBoth {
		hits, err := p.store.SearchTranscripts(ctx, query, req.LibraryID, req.Limit)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			results = append(results, Result{
				VideoID:     h.VideoID,
				TimestampMs: h.StartMs,
				Score:       1 / (1 + math.Abs(h.Rank)),
				MatchType:   ModeTranscript,
				Snippet:     h.Snippet,
			})
		}
	}

	if mode == ModeVisual || mode == ModeBoth {
		visual, err := p.visualPass(ctx, req, query, category, color)
		if err != nil {
			return nil, err
		}
		results = append(results, visual...)
	}

	if len(req.Labels) > 0 {
		filtered, err := p.filterByLabels(ctx, results, req.Labels)
		if err != nil {
			return nil, err
		}
		results = filtered
	}
	if len(req.PersonIDs) > 0 {
		filtered, err := p.filterByPersons(ctx, results, req.PersonIDs, req.LibraryID)
		if err != nil {
			return nil, err
		}
		results = filtered
	}
	if mode == ModeBoth {
		results = collapseBoth(results)
	}
	return results, nil
}

type momentKey struct {
	videoID string
	ts      int64
}

// visualPass runs the detection lookup and the shard similarity pass
// and fuses moments that appear in both.
func (p *Planner) visualPass(ctx context.Context, req Request, query, category, color string) ([]Result, error) {
	detCache := map[momentKey]*Result{}
	if category != "" {
		moments, err := p.store.DetectionMoments(ctx, category, req.LibraryID, req.Limit*2)
		if err != nil {
			return nil, err
		}
		for _, m := range moments {
			detCache[momentKey{m.VideoID, m.TimestampMs}] = &Result{
				VideoID:       m.VideoID,
				TimestampMs:   m.TimestampMs,
				Score:         0.5 + 0.5*m.MaxConfidence,
				MatchType:     ModeVisual,
				ThumbnailPath: m.ThumbnailPath,
				Labels:        m.Labels,
			}
		}
	}

	floor := constants.VisualSimilarityThreshold
	if category != "" {
		floor = constants.ObjectQuerySimilarityThreshold
	}

	var clip []Result
	if p.embedder == nil {
		p.log.Warn("no embedder configured, skipping similarity pass")
	} else if qvec, err := p.embedder.EmbedText(ctx, query); err != nil {
		p.log.Warn("query embedding failed, skipping similarity pass", "error", err)
	} else {
		ids, err := p.store.DoneMediaIDs(ctx, req.LibraryID)
		if err != nil {
			return nil, err
		}
		k := constants.ShardTopK
		if req.Limit < k {
			k = req.Limit
		}
		for _, id := range ids {
			shard, err := p.shards.Get(id)
			if err != nil {
				// Items indexed before embedding support have no shard.
				continue
			}
			hits, err := shard.Search(qvec, k)
			if err != nil {
				p.log.Warn("shard search failed", "media_id", id, "error", err)
				continue
			}
			indexes := make([]int, 0, len(hits))
			for _, h := range hits {
				indexes = append(indexes, h.FrameIndex)
			}
			frames, err := p.store.FramesByIndex(ctx, id, indexes)
			if err != nil {
				return nil, err
			}

			for _, h := range hits {
				if h.Similarity < floor {
					continue
				}
				frame, ok := frames[h.FrameIndex]
				if !ok {
					continue
				}
				score := h.Similarity
				colorMatched := false
				if color != "" {
					if frameHasColor(frame.Colors, color) {
						colorMatched = true
						score = math.Min(1.0, score+constants.ColorBoost)
					} else {
						score *= constants.ColorPenalty
					}
				}

				key := momentKey{id, frame.TimestampMs}
				if det, ok := detCache[key]; ok {
					fused := math.Min(1.0, math.Max(h.Similarity, det.Score)+detectionFusionBoost)
					if colorMatched {
						fused = math.Min(1.0, fused+detectionFusionBoost)
					}
					det.Score = fused
					if det.ThumbnailPath == "" {
						det.ThumbnailPath = frame.ThumbnailPath
					}
					// The fused detection entry supersedes the raw hit.
					continue
				}
				if category != "" {
					score *= constants.NonDetectionPenalty
				}
				clip = append(clip, Result{
					VideoID:       id,
					TimestampMs:   frame.TimestampMs,
					Score:         score,
					MatchType:     ModeVisual,
					ThumbnailPath: frame.ThumbnailPath,
				})
			}
		}
	}

	out := clip
	for _, det := range detCache {
		out = append(out, *det)
	}
	return out, nil
}

func (p *Planner) filterByLabels(ctx context.Context, results []Result, labels []string) ([]Result, error) {
	var kept []Result
	for _, r := range results {
		matched, err := p.store.DetectionLabelsNear(ctx, r.VideoID, r.TimestampMs, constants.LabelFilterWindowMs, labels)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			continue
		}
		r.Labels = matched
		r.Score = math.Min(1.0, r.Score+math.Min(0.15, 0.05*float64(len(matched))))
		kept = append(kept, r)
	}
	return kept, nil
}

func (p *Planner) filterByPersons(ctx context.Context, results []Result, personIDs []string, libraryID string) ([]Result, error) {
	apps, err := p.store.PersonAppearances(ctx, personIDs, libraryID)
	if err != nil {
		return nil, err
	}
	idx := buildWindows(apps)

	var kept []Result
	for _, r := range results {
		matches := personsNear(idx, r.VideoID, r.TimestampMs)
		if len(matches) == 0 {
			continue
		}
		r.Persons = matches
		r.Score = math.Min(1.0, r.Score+math.Min(0.2, 0.1*float64(len(matches))))
		kept = append(kept, r)
	}
	return kept, nil
}

// personWindows answers a blank query over person_ids: one result per
// 5-second window a requested person appears in, scored by how many of
// the requested persons share the window.
func (p *Planner) personWindows(ctx context.Context, req Request) ([]Result, error) {
	apps, err := p.store.PersonAppearances(ctx, req.PersonIDs, req.LibraryID)
	if err != nil {
		return nil, err
	}
	idx := buildWindows(apps)

	var results []Result
	for videoID, windows := range idx {
		for start, windowApps := range windows {
			matches := collectMatches(windowApps)
			thumb, err := p.store.FrameThumbnailInWindow(ctx, videoID, start, start+constants.PersonWindowMs)
			if err != nil {
				return nil, err
			}
			results = append(results, Result{
				VideoID:       videoID,
				TimestampMs:   start,
				Score:         float64(len(matches)) / float64(len(req.PersonIDs)),
				MatchType:     ModeVisual,
				ThumbnailPath: thumb,
				Persons:       matches,
			})
		}
	}
	return results, nil
}

// enrichPersons attaches nearby assigned persons to results the person
// branch did not already annotate.
func (p *Planner) enrichPersons(ctx context.Context, results []Result) error {
	bare := false
	for i := range results {
		if len(results[i].Persons) == 0 {
			bare = true
			break
		}
	}
	if !bare {
		return nil
	}

	persons, err := p.store.ListPersons(ctx)
	if err != nil {
		return err
	}
	if len(persons) == 0 {
		return nil
	}
	ids := make([]string, len(persons))
	for i, pe := range persons {
		ids[i] = pe.PersonID
	}
	apps, err := p.store.PersonAppearances(ctx, ids, "")
	if err != nil {
		return err
	}
	idx := buildWindows(apps)

	for i := range results {
		if len(results[i].Persons) > 0 {
			continue
		}
		results[i].Persons = personsNear(idx, results[i].VideoID, results[i].TimestampMs)
	}
	return nil
}

// collapseBoth merges results sharing a moment across the transcript
// and visual branches.
func collapseBoth(results []Result) []Result {
	byKey := map[momentKey]int{}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := momentKey{r.VideoID, r.TimestampMs}
		i, ok := byKey[key]
		if !ok {
			byKey[key] = len(out)
			out = append(out, r)
			continue
		}
		m := &out[i]
		if m.MatchType != r.MatchType {
			m.MatchType = ModeBoth
		}
		if r.Score > m.Score {
			m.Score = r.Score
		}
		if m.Snippet == "" {
			m.Snippet = r.Snippet
		}
		if m.ThumbnailPath == "" {
			m.ThumbnailPath = r.ThumbnailPath
		}
		if len(m.Labels) == 0 {
			m.Labels = r.Labels
		}
	}
	return out
}

// finalize orders by score and applies offset/limit, reporting the
// pre-pagination total.
func finalize(results []Result, req Request, start time.Time) *Response {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].VideoID != results[j].VideoID {
			return results[i].VideoID < results[j].VideoID
		}
		return results[i].TimestampMs < results[j].TimestampMs
	})

	total := len(results)
	switch {
	case req.Offset >= total:
		results = nil
	default:
		results = results[req.Offset:]
		if len(results) > req.Limit {
			results = results[:req.Limit]
		}
	}
	return &Response{
		Results:     results,
		Total:       total,
		QueryTimeMs: time.Since(start).Milliseconds(),
	}
}

type windowIndex map[string]map[int64][]catalog.PersonAppearance

// buildWindows buckets appearances into 5-second windows per item.
func buildWindows(apps []catalog.PersonAppearance) windowIndex {
	idx := windowIndex{}
	for _, a := range apps {
		start := (a.TimestampMs / constants.PersonWindowMs) * constants.PersonWindowMs
		windows, ok := idx[a.VideoID]
		if !ok {
			windows = map[int64][]catalog.PersonAppearance{}
			idx[a.VideoID] = windows
		}
		windows[start] = append(windows[start], a)
	}
	return idx
}

// personsNear gathers the persons appearing in the window around a
// timestamp and its two neighbors.
func personsNear(idx windowIndex, videoID string, timestampMs int64) []PersonMatch {
	windows, ok := idx[videoID]
	if !ok {
		return nil
	}
	base := (timestampMs / constants.PersonWindowMs) * constants.PersonWindowMs
	var apps []catalog.PersonAppearance
	for _, start := range []int64{base - constants.PersonWindowMs, base, base + constants.PersonWindowMs} {
		apps = append(apps, windows[start]...)
	}
	return collectMatches(apps)
}

// collectMatches dedupes appearances into per-person matches with face
// counts, most faces first.
func collectMatches(apps []catalog.PersonAppearance) []PersonMatch {
	if len(apps) == 0 {
		return nil
	}
	byID := map[string]*PersonMatch{}
	for _, a := range apps {
		m, ok := byID[a.PersonID]
		if !ok {
			m = &PersonMatch{PersonID: a.PersonID, Name: a.PersonName}
			byID[a.PersonID] = m
		}
		m.FaceCount++
	}
	out := make([]PersonMatch, 0, len(byID))
	for _, m := range byID {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FaceCount != out[j].FaceCount {
			return out[i].FaceCount > out[j].FaceCount
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}

// queryColor extracts the first canonical color named in the query.
func queryColor(query string) string {
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if c := media.CanonicalColor(word); c != "" {
			return c
		}
	}
	return ""
}

// frameHasColor checks a frame's stored palette (a JSON string array)
// for the canonical color.
func frameHasColor(colors *string, color string) bool {
	if colors == nil || *colors == "" {
		return false
	}
	var names []string
	if err := json.Unmarshal([]byte(*colors), &names); err != nil {
		return false
	}
	for _, n := range names {
		if n == color {
			return true
		}
	}
	return false
}
