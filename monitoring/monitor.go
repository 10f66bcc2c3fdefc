// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

// ErrServerRunning is returned when starting a monitor server twice.
var ErrServerRunning = errors.New("monitor server already running")

const defaultSnapshotInterval = 1024

// engineStats is implemented by engines that count their events.
type engineStats interface {
	ExecutedEvents() uint64
	PendingEvents() int
}

// Status is the engine state last published by the monitor.
type Status struct {
	Now            float64 `json:"now"`
	ExecutedEvents uint64  `json:"executed_events"`
	PendingEvents  int64   `json:"pending_events"`
}

// DeviceSnapshot is a copy of the counters of a device.
type DeviceSnapshot struct {
	Name    string              `json:"name"`
	Node    uint32              `json:"node"`
	Address string              `json:"address"`
	Stats   network.DeviceStats `json:"stats"`
}

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation. The simulation goroutine publishes its state through
// the monitor hook; HTTP handlers only read published copies.
type Monitor struct {
	engine     sim.Engine
	registry   *network.Registry
	portNumber int
	logger     *zap.Logger

	snapshotInterval uint64
	sinceSnapshot    uint64
	lastNow          sim.VTime

	now      atomic.Int64
	executed atomic.Uint64
	pending  atomic.Int64

	devicesLock sync.Mutex
	devices     []DeviceSnapshot

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	timeBar          *ProgressBar
	idGenerator      sim.IDGenerator

	metrics  *prometheus.Registry
	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		logger:           zap.NewNop(),
		snapshotInterval: defaultSnapshotInterval,
		idGenerator:      sim.NewSequentialIDGenerator(),
	}
	m.metrics = newMetricsRegistry(m)

	return m
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("monitor port not allowed, using a random port",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger

	return m
}

// WithSnapshotInterval sets how many events pass between two device
// snapshots.
func (m *Monitor) WithSnapshotInterval(events uint64) *Monitor {
	if events == 0 {
		events = 1
	}

	m.snapshotInterval = events

	return m
}

// RegisterEngine registers the engine that is used in the simulation and
// hooks the monitor to it.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
	e.AcceptHook(m)
}

// RegisterRegistry registers the entities whose device counters are shown.
func (m *Monitor) RegisterRegistry(r *network.Registry) {
	m.registry = r
}

// Func publishes the engine state after each event. Device counters are
// copied every snapshot interval.
func (m *Monitor) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent {
		return
	}

	m.publishEngine()

	m.sinceSnapshot++
	if m.sinceSnapshot >= m.snapshotInterval {
		m.sinceSnapshot = 0
		m.publishDevices()
	}
}

// Publish copies the current state of the simulation. It must be called from
// the goroutine that runs the engine.
func (m *Monitor) Publish() {
	m.publishEngine()
	m.publishDevices()
}

func (m *Monitor) publishEngine() {
	if m.engine == nil {
		return
	}

	now := m.engine.Now()
	m.now.Store(int64(now))

	if stats, ok := m.engine.(engineStats); ok {
		m.executed.Store(stats.ExecutedEvents())
		m.pending.Store(int64(stats.PendingEvents()))
	}

	if m.timeBar != nil && now > m.lastNow {
		m.timeBar.IncrementFinished(uint64(now - m.lastNow))
	}

	m.lastNow = now
}

func (m *Monitor) publishDevices() {
	if m.registry == nil || m.registry.Destroyed() {
		return
	}

	devices := m.registry.Devices()
	snapshots := make([]DeviceSnapshot, 0, len(devices))

	for _, d := range devices {
		s := DeviceSnapshot{
			Name:  d.Name(),
			Node:  uint32(d.Node().ID()),
			Stats: d.Stats(),
		}

		if d.Address().IsValid() {
			s.Address = d.Address().String()
		}

		snapshots = append(snapshots, s)
	}

	m.devicesLock.Lock()
	m.devices = snapshots
	m.devicesLock.Unlock()
}

// Status returns the last published engine state.
func (m *Monitor) Status() Status {
	return Status{
		Now:            sim.VTime(m.now.Load()).InSec(),
		ExecutedEvents: m.executed.Load(),
		PendingEvents:  m.pending.Load(),
	}
}

// Devices returns the last published device snapshots.
func (m *Monitor) Devices() []DeviceSnapshot {
	m.devicesLock.Lock()
	defer m.devicesLock.Unlock()

	return append([]DeviceSnapshot(nil), m.devices...)
}

// Gatherer returns the prometheus registry of the monitor.
func (m *Monitor) Gatherer() prometheus.Gatherer {
	return m.metrics
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:        m.idGenerator.Generate(),
		name:      name,
		startTime: time.Now(),
		total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// TrackVirtualTime creates a progress bar that advances with the virtual
// time of the engine until stop.
func (m *Monitor) TrackVirtualTime(stop sim.VTime) *ProgressBar {
	m.timeBar = m.CreateProgressBar("virtual time", uint64(stop))

	return m.timeBar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the HTTP routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.nowHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/devices", m.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/device/{name:.+}", m.deviceDetails).
		Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.metrics, promhttp.HandlerOpts{}))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	if m.server != nil {
		return "", ErrServerRunning
	}

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor server stopped", zap.Error(err))
		}
	}()

	url := m.URL()
	m.logger.Info("monitoring simulation", zap.String("url", url))

	return url, nil
}

// URL returns the address of the running server, or an empty string.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenBrowser opens the monitor in the default web browser.
func (m *Monitor) OpenBrowser() error {
	url := m.URL()
	if url == "" {
		return errors.New("monitor server is not running")
	}

	browser.Stdout = os.Stderr

	return browser.OpenURL(url)
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	m.listener = nil

	return err
}

func (m *Monitor) nowHandler(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.Status())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	statuses := make([]ProgressStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		statuses = append(statuses, b.Status())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, statuses)
}

func (m *Monitor) listDevices(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.Devices())
}

func (m *Monitor) deviceDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, d := range m.Devices() {
		if d.Name != name {
			continue
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(&d)
		serializer.SetMaxDepth(2)

		if err := serializer.Serialize(w); err != nil {
			m.logger.Error("serialize device", zap.Error(err))
		}

		return
	}

	http.Error(w, "device not found", http.StatusNotFound)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memory, err := p.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		d, err := time.ParseDuration(s + "s")
		if err != nil || d <= 0 {
			http.Error(w, "invalid seconds", http.StatusBadRequest)
			return
		}

		duration = d
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	select {
	case <-time.After(duration):
	case <-r.Context().Done():
	}

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("write response", zap.Error(err))
	}
}
