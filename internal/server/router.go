package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dayzctl/dayzctl/internal/history"
	"github.com/dayzctl/dayzctl/internal/metrics"
	"github.com/dayzctl/dayzctl/internal/modqueue"
	"github.com/dayzctl/dayzctl/internal/rcon"
	"github.com/dayzctl/dayzctl/internal/store"
	"github.com/dayzctl/dayzctl/internal/supervisor"
)

// Router provides embeddable HTTP handlers for the control API.
// Endpoints (all under basePath):
//
//	POST   /server/start              body: {install_path, profile, params}
//	POST   /server/stop
//	POST   /server/restart            body: {countdown_seconds}
//	GET    /server/status
//	GET    /server/stats
//	GET    /server/players
//	POST   /server/schedule-restart   body: {at, install_path, profile, params}
//	GET    /server/schedule-restart
//	DELETE /server/schedule-restart/:id
//	POST   /rcon/connect              body: {host, port, password}
//	POST   /rcon/disconnect
//	POST   /rcon/command              body: {command}
//	GET    /rcon/status
//	GET    /rcon/players
//	POST   /rcon/kick|ban             body: {player_id, reason}
//	POST   /rcon/say                  body: {message}
//	POST   /rcon/shutdown | /rcon/restart
//	POST   /mods                      body: {workshop_id, name}
//	POST   /mods/collection           body: {collection_id, name}
//	GET    /mods                      installed registry
//	GET    /mods/queue                queue snapshot
//	DELETE /mods/queue/:id
//	POST   /mods/clear-completed | /mods/clear-all
//	DELETE /mods/:workshop_id
//	GET    /events?limit=n
//	GET    /metrics
type Router struct {
	sup      *supervisor.Supervisor
	rc       *rcon.Client
	queue    *modqueue.Queue
	mods     store.Store
	journal  *history.Memory
	sink     history.Sink
	defaults Defaults
	basePath string
	log      *slog.Logger
}

// Defaults fills start/restart requests that omit launch parameters, so
// clients can rely on the daemon's configured server.
type Defaults struct {
	InstallPath string
	Profile     string
	Params      []string
}

type Deps struct {
	Supervisor *supervisor.Supervisor
	Rcon       *rcon.Client
	Queue      *modqueue.Queue
	Mods       store.Store
	Journal    *history.Memory
	Sink       history.Sink
	Defaults   Defaults
	Log        *slog.Logger
}

func NewRouter(basePath string, d Deps) *Router {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Router{
		sup:      d.Supervisor,
		rc:       d.Rcon,
		queue:    d.Queue,
		mods:     d.Mods,
		journal:  d.Journal,
		sink:     d.Sink,
		defaults: d.Defaults,
		basePath: sanitizeBase(basePath),
		log:      d.Log,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)

	srv := group.Group("/server")
	srv.POST("/start", r.handleServerStart)
	srv.POST("/stop", r.handleServerStop)
	srv.POST("/restart", r.handleServerRestart)
	srv.GET("/status", r.handleServerStatus)
	srv.GET("/stats", r.handleServerStats)
	srv.GET("/players", r.handleServerPlayers)
	srv.POST("/schedule-restart", r.handleScheduleRestart)
	srv.GET("/schedule-restart", r.handleListScheduledRestarts)
	srv.DELETE("/schedule-restart/:id", r.handleCancelScheduledRestart)

	rc := group.Group("/rcon")
	rc.POST("/connect", r.handleRconConnect)
	rc.POST("/disconnect", r.handleRconDisconnect)
	rc.POST("/command", r.handleRconCommand)
	rc.GET("/status", r.handleRconStatus)
	rc.GET("/players", r.handleRconPlayers)
	rc.POST("/kick", r.handleRconKick)
	rc.POST("/ban", r.handleRconBan)
	rc.POST("/say", r.handleRconSay)
	rc.POST("/shutdown", r.handleRconShutdown)
	rc.POST("/restart", r.handleRconRestart)

	mods := group.Group("/mods")
	mods.POST("", r.handleModAdd)
	mods.POST("/collection", r.handleModAddCollection)
	mods.GET("", r.handleModList)
	mods.GET("/queue", r.handleQueueStatus)
	mods.DELETE("/queue/:id", r.handleQueueRemove)
	mods.POST("/clear-completed", r.handleQueueClearCompleted)
	mods.POST("/clear-all", r.handleQueueClearAll)
	mods.DELETE("/:workshop_id", r.handleModRemove)

	group.GET("/events", r.handleEvents)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, d Deps) *http.Server {
	r := NewRouter(basePath, d)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Responses and error mapping ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// writeErr maps the typed error taxonomy onto HTTP statuses: conflicts
// for wrong-state operations, 404 for unknown ids, 400 otherwise.
func writeErr(c *gin.Context, err error) {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, supervisor.ErrAlreadyRunning),
		errors.Is(err, supervisor.ErrNotRunning),
		errors.Is(err, rcon.ErrNotConnected),
		errors.Is(err, modqueue.ErrItemBusy),
		errors.Is(err, modqueue.ErrProcessingActive):
		code = http.StatusConflict
	case errors.Is(err, supervisor.ErrScheduleNotFound),
		errors.Is(err, modqueue.ErrItemNotFound),
		errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, rcon.ErrAuthTimeout),
		errors.Is(err, rcon.ErrAuthFailed),
		errors.Is(err, rcon.ErrCommandTimeout),
		errors.Is(err, modqueue.ErrProviderFailure):
		code = http.StatusBadGateway
	}
	writeJSON(c, code, errorResp{Error: err.Error()})
}

// applyDefaults substitutes the daemon's configured server parameters for
// fields the request omitted.
func (r *Router) applyDefaults(installPath, profile *string, params *[]string) {
	if *installPath == "" {
		*installPath = r.defaults.InstallPath
	}
	if *profile == "" {
		*profile = r.defaults.Profile
	}
	if len(*params) == 0 {
		*params = append([]string(nil), r.defaults.Params...)
	}
}

func (r *Router) record(e history.Event) {
	if r.sink == nil {
		return
	}
	e.OccurredAt = time.Now().UTC()
	if err := r.sink.Send(context.Background(), e); err != nil {
		r.log.Warn("history sink send failed", "event", e.Type, "error", err)
	}
}

// --- Server handlers ---

type startReq struct {
	InstallPath string   `json:"install_path"`
	Profile     string   `json:"profile"`
	Params      []string `json:"params"`
}

func (r *Router) handleServerStart(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	r.applyDefaults(&req.InstallPath, &req.Profile, &req.Params)
	if !isSafeAbsPath(req.InstallPath) || req.InstallPath == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid install_path: must be absolute path without traversal"})
		return
	}
	if !isSafeName(req.Profile) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid profile: allowed [A-Za-z0-9._-] and no '..' or path separators"})
		return
	}
	pid, err := r.sup.Start(req.InstallPath, req.Profile, req.Params)
	if err != nil {
		writeErr(c, err)
		return
	}
	r.record(history.Event{Type: history.EventServerStarted, Profile: req.Profile, Subject: req.Profile, Detail: "pid " + strconv.Itoa(pid)})
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "pid": pid})
}

func (r *Router) handleServerStop(c *gin.Context) {
	st := r.sup.GetStatus()
	if err := r.sup.Stop(); err != nil {
		writeErr(c, err)
		return
	}
	r.record(history.Event{Type: history.EventServerStopped, Profile: st.Profile, Subject: st.Profile})
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type restartReq struct {
	InstallPath      string   `json:"install_path"`
	Profile          string   `json:"profile"`
	Params           []string `json:"params"`
	CountdownSeconds int      `json:"countdown_seconds"`
}

func (r *Router) handleServerRestart(c *gin.Context) {
	var req restartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	r.applyDefaults(&req.InstallPath, &req.Profile, &req.Params)
	if req.InstallPath != "" && !isSafeAbsPath(req.InstallPath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid install_path: must be absolute path without traversal"})
		return
	}
	res, err := r.sup.Restart(req.InstallPath, req.Profile, req.Params, req.CountdownSeconds)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleServerStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.GetStatus())
}

func (r *Router) handleServerStats(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.GetProcessStats())
}

func (r *Router) handleServerPlayers(c *gin.Context) {
	st := r.sup.GetStatus()
	writeJSON(c, http.StatusOK, r.sup.GetPlayerCount(st.InstallPath, st.Profile))
}

type scheduleReq struct {
	At          time.Time `json:"at"`
	InstallPath string    `json:"install_path"`
	Profile     string    `json:"profile"`
	Params      []string  `json:"params"`
}

func (r *Router) handleScheduleRestart(c *gin.Context) {
	var req scheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.At.IsZero() {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "at is required (RFC 3339)"})
		return
	}
	if req.InstallPath != "" && !isSafeAbsPath(req.InstallPath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid install_path: must be absolute path without traversal"})
		return
	}
	entry := r.sup.ScheduleRestart(req.At, req.InstallPath, req.Profile, req.Params)
	r.record(history.Event{Type: history.EventRestartScheduled, Profile: req.Profile, Subject: req.At.Format(time.RFC3339)})
	writeJSON(c, http.StatusOK, entry)
}

func (r *Router) handleListScheduledRestarts(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.PendingScheduledRestarts())
}

func (r *Router) handleCancelScheduledRestart(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid id"})
		return
	}
	if err := r.sup.CancelScheduledRestart(id); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// --- RCON handlers ---

type rconConnectReq struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
}

func (r *Router) handleRconConnect(c *gin.Context) {
	var req rconConnectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Host == "" || req.Port <= 0 || req.Port > 65535 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "host and a valid port are required"})
		return
	}
	if err := r.rc.Connect(req.Host, req.Port, req.Password); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRconDisconnect(c *gin.Context) {
	r.rc.Disconnect()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type rconCommandReq struct {
	Command string `json:"command"`
}

func (r *Router) handleRconCommand(c *gin.Context) {
	var req rconCommandReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Command == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "command is required"})
		return
	}
	resp, err := r.rc.SendCommand(req.Command)
	if err != nil {
		writeErr(c, err)
		return
	}
	r.record(history.Event{Type: history.EventRconCommand, Subject: req.Command})
	writeJSON(c, http.StatusOK, gin.H{"response": resp})
}

func (r *Router) handleRconStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.rc.GetStatus())
}

func (r *Router) handleRconPlayers(c *gin.Context) {
	players, err := r.rc.Players()
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, players)
}

type rconPlayerReq struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason"`
}

func (r *Router) handleRconKick(c *gin.Context) {
	r.playerAction(c, r.rc.Kick, "kick")
}

func (r *Router) handleRconBan(c *gin.Context) {
	r.playerAction(c, r.rc.Ban, "ban")
}

func (r *Router) playerAction(c *gin.Context, fn func(string, string) (string, error), verb string) {
	var req rconPlayerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.PlayerID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "player_id is required"})
		return
	}
	resp, err := fn(req.PlayerID, req.Reason)
	if err != nil {
		writeErr(c, err)
		return
	}
	r.record(history.Event{Type: history.EventRconCommand, Subject: verb + " " + req.PlayerID, Detail: req.Reason})
	writeJSON(c, http.StatusOK, gin.H{"response": resp})
}

type rconSayReq struct {
	Message string `json:"message"`
}

func (r *Router) handleRconSay(c *gin.Context) {
	var req rconSayReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Message == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "message is required"})
		return
	}
	resp, err := r.rc.Say(req.Message)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"response": resp})
}

func (r *Router) handleRconShutdown(c *gin.Context) {
	resp, err := r.rc.Shutdown()
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"response": resp})
}

func (r *Router) handleRconRestart(c *gin.Context) {
	resp, err := r.rc.Restart()
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"response": resp})
}

// --- Mod handlers ---

type modAddReq struct {
	WorkshopID string `json:"workshop_id"`
	Name       string `json:"name"`
}

func (r *Router) handleModAdd(c *gin.Context) {
	var req modAddReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isWorkshopID(req.WorkshopID) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "workshop_id must be numeric"})
		return
	}
	id := r.queue.EnqueueMod(req.WorkshopID, req.Name)
	writeJSON(c, http.StatusAccepted, gin.H{"ok": true, "item_id": id})
}

type collectionAddReq struct {
	CollectionID string `json:"collection_id"`
	Name         string `json:"name"`
}

func (r *Router) handleModAddCollection(c *gin.Context) {
	var req collectionAddReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isWorkshopID(req.CollectionID) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "collection_id must be numeric"})
		return
	}
	id, err := r.queue.EnqueueCollection(req.CollectionID, req.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"ok": true, "item_id": id})
}

func (r *Router) handleModList(c *gin.Context) {
	mods, err := r.mods.ListMods(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, mods)
}

func (r *Router) handleModRemove(c *gin.Context) {
	id := c.Param("workshop_id")
	if !isWorkshopID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "workshop_id must be numeric"})
		return
	}
	if err := r.mods.RemoveMod(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleQueueStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.queue.GetStatus())
}

func (r *Router) handleQueueRemove(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid id"})
		return
	}
	if err := r.queue.Remove(id); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleQueueClearCompleted(c *gin.Context) {
	removed := r.queue.ClearCompleted()
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "removed": removed})
}

func (r *Router) handleQueueClearAll(c *gin.Context) {
	if err := r.queue.ClearAll(); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// --- Events ---

func (r *Router) handleEvents(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit"})
			return
		}
		limit = n
	}
	if r.journal == nil {
		writeJSON(c, http.StatusOK, []history.Event{})
		return
	}
	writeJSON(c, http.StatusOK, r.journal.Recent(limit))
}
