package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/app"
	"github.com/wave-portal/pkg/db"
	"github.com/wave-portal/pkg/feed"
	"github.com/wave-portal/pkg/submit"
	"github.com/wave-portal/pkg/wave"
)

// Backend is what the dashboard renders and drives. *app.App implements it.
type Backend interface {
	State() app.State
	Send(ctx context.Context, text string) (*submit.Result, error)
}

// Watcher streams feed updates. *feed.Synchronizer implements it.
type Watcher interface {
	Watch() (<-chan feed.Update, func())
}

// Journal exposes the local submission journal.
type Journal interface {
	GetStats() (map[string]int, error)
	GetRecentSubmissions(limit int) ([]db.Submission, error)
}

const maxMessageBytes = 4096

type Dashboard struct {
	backend Backend
	watcher Watcher
	journal Journal
	addr    string

	upgrader websocket.Upgrader
}

func New(backend Backend, watcher Watcher, journal Journal, addr string) *Dashboard {
	return &Dashboard{
		backend: backend,
		watcher: watcher,
		journal: journal,
		addr:    addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (d *Dashboard) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors)

	r.Get("/api/stats", d.handleStats)
	r.Get("/api/waves", d.handleWaves)
	r.Post("/api/waves", d.handleSendWave)
	r.Get("/api/submissions", d.handleSubmissions)
	r.Get("/ws", d.handleWS)

	r.Get("/", d.serveFrontend)
	return r
}

// Run serves until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              d.addr,
		Handler:           d.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", d.addr).Msg("🌐 dashboard started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseLimit reads ?limit=, falling back to def. Malformed or negative values
// are rejected. Zero means no limit.
func parseLimit(r *http.Request, def int) (int, bool) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return def, true
	}
	n, err := strconv.Atoi(l)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, wave.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, wave.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, wave.ErrProviderMissing), errors.Is(err, wave.ErrUserRejected):
		status = http.StatusForbidden
	case errors.Is(err, wave.ErrTransactionFailed), errors.Is(err, wave.ErrReadFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"error":  wave.Kind(err),
		"notice": wave.Notice(err),
	})
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	st := d.backend.State()
	out := map[string]interface{}{
		"total_waves": st.Feed.Total,
		"shown_waves": len(st.Feed.Records),
		"ready":       st.Feed.Ready,
		"connected":   st.Connected,
		"pending":     st.Pending,
	}
	if st.Connected {
		out["account"] = st.Account.Hex()
	}
	if st.Notice != "" {
		out["notice"] = st.Notice
	}
	if d.journal != nil {
		subs, err := d.journal.GetStats()
		if err != nil {
			log.Warn().Err(err).Msg("journal stats")
		} else {
			out["submissions"] = subs
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *Dashboard) handleWaves(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, 0)
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	records := d.backend.State().Feed.Records
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	if records == nil {
		records = []wave.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (d *Dashboard) handleSendWave(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes+1))
	if err != nil || len(body) > maxMessageBytes {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	res, err := d.backend.Send(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Info().Str("tx", res.TxHash.Hex()).Msg("👋 wave sent via dashboard")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tx_hash":  res.TxHash.Hex(),
		"block":    res.BlockNumber,
		"gas_used": res.GasUsed,
		"status":   "mined",
	})
}

func (d *Dashboard) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if d.journal == nil {
		writeJSON(w, http.StatusOK, []db.Submission{})
		return
	}
	limit, ok := parseLimit(r, 50)
	if !ok {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	if limit == 0 {
		limit = 50
	}
	subs, err := d.journal.GetRecentSubmissions(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []db.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}
