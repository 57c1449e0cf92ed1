package webd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/trajd/batch"
	"github.com/rotblauer/trajd/column"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/params"
	"github.com/rotblauer/trajd/resultdb"
	"github.com/rotblauer/trajd/types"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
	Cached    int                     `json:"cached"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		WSOpen:    !s.melodyInstance.IsClosed(),
		WSConns:   s.melodyInstance.Len(),
		Config:    s.Config,
		Cached:    s.computeCache.Len(),
	}
	s.writeJSON(w, st)
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(j); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// errorStatus maps computation errors to HTTP statuses.
// Anything the caller sent wrong is a 400.
func errorStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, trajectory.ErrEmptyInput),
		errors.Is(err, trajectory.ErrSizeMismatch),
		errors.Is(err, trajectory.ErrUnsupportedType),
		errors.Is(err, trajectory.ErrTypeMismatch),
		errors.Is(err, trajectory.ErrNulls),
		errors.Is(err, trajectory.ErrGroupOutOfRange),
		errors.Is(err, column.ErrUnsupportedSlice):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleCompute reduces columns posted as a computeRequest.
// Repeat requests are answered from cache under their first batch ID.
func (s *WebDaemon) handleCompute(w http.ResponseWriter, r *http.Request) {
	req := &computeRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.logger.Warn("Failed to decode compute request", "error", err)
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key, hashErr := hashstructure.Hash(req, hashstructure.FormatV2, nil)
	var res *computeResponse
	var hit bool
	if hashErr == nil {
		res, hit = s.computeCache.Get(key)
	}
	if hit {
		s.logger.Debug("Compute cache hit", "batch", res.BatchID)
	} else {
		var err error
		if res, err = s.compute(req); err != nil {
			s.logger.Warn("Failed to compute", "error", err)
			http.Error(w, err.Error(), errorStatus(err))
			return
		}
		res.BatchID = resultdb.NewBatchID()
		if hashErr == nil {
			s.computeCache.Add(key, res)
		}
	}

	// A hit keeps its batch ID but is still the latest batch.
	s.finishBatch(BatchEvent{
		BatchID: res.BatchID,
		Created: time.Now().UTC(),
		Source:  "compute",
		Points:  len(req.X),
		Stats:   res.Stats,
	}, res.Summaries)
	s.writeJSON(w, res)
}

type pointsResponse struct {
	BatchID   string                `json:"batch_id"`
	Stats     trajectory.BatchStats `json:"stats"`
	Summaries []trajectory.Summary  `json:"summaries"`
}

// handlePoints groups posted points (NDJSON, JSON arrays, GeoJSON) by trajectory and reduces them.
// Query parameters element and timestamp pick the reducer dtypes.
func (s *WebDaemon) handlePoints(w http.ResponseWriter, r *http.Request) {
	elem, ts := column.Float64, column.TimestampMilliseconds
	var err error
	if v := r.URL.Query().Get("element"); v != "" {
		if elem, err = column.ParseDType(v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("timestamp"); v != "" {
		if ts, err = column.ParseTimestampUnit(v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	points, errs := types.StreamTrackPoints(ctx, r.Body)
	bt, err := batch.Collect(ctx, batch.Valid(ctx, points), params.DefaultBuilderConfig(), nil)
	if err != nil {
		s.logger.Warn("Failed to collect points", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := <-errs; err != nil {
		s.logger.Warn("Failed to decode points", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, sums, err := bt.Compute(s.reducer, elem, ts)
	if err != nil {
		s.logger.Warn("Failed to compute", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := pointsResponse{
		BatchID:   resultdb.NewBatchID(),
		Stats:     res.Stats(),
		Summaries: sums,
	}
	s.finishBatch(BatchEvent{
		BatchID: out.BatchID,
		Created: time.Now().UTC(),
		Source:  "points",
		Points:  bt.Points(),
		Stats:   out.Stats,
	}, sums)
	s.writeJSON(w, out)
}

// finishBatch remembers, stores and broadcasts a computed batch.
func (s *WebDaemon) finishBatch(ev BatchEvent, sums []trajectory.Summary) {
	s.lastBatch.Set(lastBatchKey, ev, ttlcache.DefaultTTL)
	if s.store != nil {
		err := s.store.PutBatch(resultdb.Meta{
			BatchID:      ev.BatchID,
			Created:      ev.Created,
			Source:       ev.Source,
			Trajectories: ev.Stats.Trajectories,
			Points:       ev.Points,
			Stats:        ev.Stats,
		}, sums)
		if err != nil {
			s.logger.Error("Failed to store batch", "batch", ev.BatchID, "error", err)
		}
	}
	s.feedComputed.Send(ev)
}

func (s *WebDaemon) handleLast(w http.ResponseWriter, r *http.Request) {
	item := s.lastBatch.Get(lastBatchKey)
	if item == nil {
		http.Error(w, "No batch computed yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, item.Value())
}

func (s *WebDaemon) handleBatches(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "No results store", http.StatusNotFound)
		return
	}
	metas, err := s.store.Batches()
	if err != nil {
		s.logger.Error("Failed to list batches", "error", err)
		http.Error(w, "Failed to list batches", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, metas)
}

func (s *WebDaemon) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "No results store", http.StatusNotFound)
		return
	}
	id := mux.Vars(r)["id"]
	sums, err := s.store.Summaries(id)
	if errors.Is(err, resultdb.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to read batch", "batch", id, "error", err)
		http.Error(w, "Failed to read batch", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, sums)
}
