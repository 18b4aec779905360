package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/net/websocket"

	"taskpool/internal/events"
	"taskpool/internal/logger"
	"taskpool/internal/metrics"
	"taskpool/internal/scenario"
	"taskpool/internal/worker"
)

// PoolView は API が参照するプールの操作
type PoolView interface {
	State() worker.State
	Size() int
	LiveWorkers() int
	QueueLen() int
	Workers() []worker.WorkerInfo
	Stats() worker.Stats
}

// Server は管理 API サーバー
type Server struct {
	addr     string
	pool     PoolView
	bus      *events.Bus
	gatherer prometheus.Gatherer
	proc     *process.Process

	mu    sync.Mutex
	bench *scenario.Engine // 実行中のベンチマーク（なければ nil）

	server *http.Server
}

// NewServer は新しい API サーバーを作成する
// bus と gatherer は nil でもよい
func NewServer(addr string, pool PoolView, bus *events.Bus, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		addr:     addr,
		pool:     pool,
		bus:      bus,
		gatherer: gatherer,
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = proc
	} else {
		logger.Warn("api", "process stats unavailable: %v", err)
	}
	return s
}

// Handler はルーティング済みの http.Handler を返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/bench", s.handleBench)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.bus != nil {
		mux.Handle("/ws", websocket.Handler(s.handleWebSocket))
	}

	return mux
}

// Start はサーバーを開始し、ctx が終わるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("api", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	State       string       `json:"state"`
	Size        int          `json:"size"`
	LiveWorkers int          `json:"live_workers"`
	QueueLength int          `json:"queue_length"`
	Stats       worker.Stats `json:"stats"`
	Benching    bool         `json:"benching"`
	Bench       *BenchStatus `json:"bench,omitempty"`
	Process     *ProcessInfo `json:"process,omitempty"`
}

// BenchStatus は実行中のベンチマークの進捗
type BenchStatus struct {
	Scenario string            `json:"scenario"`
	Jobs     *metrics.Snapshot `json:"jobs,omitempty"`
}

// ProcessInfo はプロセスのリソース情報
type ProcessInfo struct {
	PID        int32  `json:"pid"`
	NumThreads int32  `json:"num_threads"`
	RSSBytes   uint64 `json:"rss_bytes"`
}

func (s *Server) status() StatusResponse {
	s.mu.Lock()
	bench := s.bench
	s.mu.Unlock()

	resp := StatusResponse{
		State:       s.pool.State().String(),
		Size:        s.pool.Size(),
		LiveWorkers: s.pool.LiveWorkers(),
		QueueLength: s.pool.QueueLen(),
		Stats:       s.pool.Stats(),
		Process:     s.processInfo(),
	}
	if bench != nil && bench.IsRunning() {
		resp.Benching = true
		resp.Bench = &BenchStatus{
			Scenario: bench.Name(),
			Jobs:     bench.Metrics(),
		}
	}
	return resp
}

// processInfo は取得できた範囲のプロセス情報を返す
func (s *Server) processInfo() *ProcessInfo {
	if s.proc == nil {
		return nil
	}
	info := &ProcessInfo{PID: s.proc.Pid}
	if n, err := s.proc.NumThreads(); err == nil {
		info.NumThreads = n
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		info.RSSBytes = mem.RSS
	}
	return info
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.pool.Workers())
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := scenario.ListPresets()
	presets := make([]PresetInfo, 0, len(names))
	for _, name := range names {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{Name: name, Description: config.Description})
	}

	s.writeJSON(w, presets)
}

// BenchRequest はベンチマーク実行リクエスト
type BenchRequest struct {
	Preset string `json:"preset"`
	Jobs   int    `json:"jobs,omitempty"`
}

// handleBench はプリセットのシナリオを専用プールで実行し、結果を返す
func (s *Server) handleBench(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BenchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	config, ok := scenario.GetPreset(req.Preset)
	if !ok {
		http.Error(w, "Unknown preset", http.StatusNotFound)
		return
	}
	if req.Jobs > 0 {
		config.Jobs = req.Jobs
	}

	engine := scenario.New(config)
	if s.bus != nil {
		engine.SetEventBus(s.bus)
	}

	s.mu.Lock()
	if s.bench != nil {
		s.mu.Unlock()
		http.Error(w, "Benchmark already running", http.StatusConflict)
		return
	}
	s.bench = engine
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.bench = nil
		s.mu.Unlock()
	}()

	result, err := engine.Run(r.Context())
	if err != nil {
		logger.Error("api", "Benchmark failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Info("api", "Benchmark '%s' completed: %d jobs", config.Name, result.Submitted)

	s.writeJSON(w, result)
}

// StreamMessage は WebSocket で送るメッセージ
type StreamMessage struct {
	Type   string          `json:"type"`
	Status *StatusResponse `json:"status,omitempty"`
	Event  *events.Event   `json:"event,omitempty"`
}

// handleWebSocket は接続直後に現在のステータスを送り、以後プールのイベントを流す
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	defer ws.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	status := s.status()
	if err := websocket.JSON.Send(ws, StreamMessage{Type: "status", Status: &status}); err != nil {
		return
	}

	// クライアントが切断したら終了する
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(ws, StreamMessage{Type: "event", Event: &event}); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("api", "Failed to encode JSON: %v", err)
	}
}
