package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"sync"
	"time"

	"stagehand/internal/daemon"
	"stagehand/internal/logging"
	"stagehand/internal/logs"
	"stagehand/internal/preflight"
	"stagehand/internal/registry"
	"stagehand/internal/stage"
)

// Server answers CLI control requests with JSON-RPC over a Unix socket.
type Server struct {
	socketPath string
	logger     *slog.Logger

	ln  net.Listener
	srv *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds the control socket and registers the RPC surface.
func NewServer(ctx context.Context, socket string, d *daemon.Daemon, lg *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires a daemon")
	}
	if lg == nil {
		lg = logging.NewNop()
	}

	ln, err := listenUnix(socket)
	if err != nil {
		return nil, err
	}

	srv := rpc.NewServer()
	handlers := &service{
		d:      d,
		logger: lg.With(logging.String("component", "ipc")),
		ctx:    ctx,
	}
	if err := srv.RegisterName("Stagehand", handlers); err != nil {
		ln.Close()
		return nil, fmt.Errorf("register rpc handlers: %w", err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	out := &Server{
		socketPath: socket,
		logger:     lg,

		ln:  ln,
		srv: srv,

		ctx:    srvCtx,
		cancel: cancel,
	}
	return out, nil
}

// listenUnix binds the control socket, clearing any stale file first.
func listenUnix(socket string) (net.Listener, error) {
	if err := os.RemoveAll(socket); err != nil {
		return nil, fmt.Errorf("clear stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("listen on control socket: %w", err)
	}
	return ln, nil
}

// Serve accepts RPC connections until the server context ends.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.socketPath))
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("accept failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ipc_accept_failed"),
				logging.String("impact", "control clients cannot connect"),
				logging.String(logging.FieldErrorHint, "Check socket permissions, then restart the daemon"))
			continue
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	s.srv.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close shuts the listener down and clears the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
	err := os.RemoveAll(s.socketPath)
	if err == nil {
		return
	}
	s.logger.Warn("failed to remove socket",
		logging.String("socket", s.socketPath),
		logging.Error(err),
		logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
		logging.String("impact", "a stale socket file can block the next daemon start"),
		logging.String(logging.FieldErrorHint, "Remove the socket file by hand or rerun stagehand daemon stop"))
}

// service implements the RPC surface. One instance is shared by all
// connections, so handlers must stay goroutine safe.
type service struct {
	d      *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, reply *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.d.Start(s.ctx); err != nil {
		*reply = StartResponse{Message: err.Error()}
		return nil
	}
	*reply = StartResponse{Started: true, Message: "daemon started"}
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, reply *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.d.Stop()
	*reply = StopResponse{Stopped: true}
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, reply *StatusResponse) error {
	status := s.d.Status(s.ctx)
	*reply = StatusResponse{
		Running:        status.Running,
		PID:            status.PID,
		RegistryPath:   status.RegistryPath,
		LockPath:       status.LockFilePath,
		DropMonitoring: status.DropMonitoring,
		QueueStats:     queueStatsByName(status.Workflow.QueueStats),
		LastError:      status.Workflow.LastError,
		StageHealth:    stageHealthRows(status.Workflow.StageHealth),
		Preflight:      preflightRows(status.Preflight),
	}
	if job := status.Workflow.LastJob; job != nil {
		dto := FromJob(job)
		reply.LastJob = &dto
	}
	return nil
}

func queueStatsByName(stats map[registry.Status]int) map[string]int {
	byName := make(map[string]int, len(stats))
	for status, count := range stats {
		byName[string(status)] = count
	}
	return byName
}

func stageHealthRows(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]StageHealth, 0, len(names))
	for _, name := range names {
		rows = append(rows, StageHealth{
			Name:   name,
			Ready:  health[name].Ready,
			Detail: health[name].Detail,
		})
	}
	return rows
}

func preflightRows(checks []preflight.Result) []PreflightCheck {
	if len(checks) == 0 {
		return nil
	}
	rows := make([]PreflightCheck, 0, len(checks))
	for _, check := range checks {
		rows = append(rows, PreflightCheck{
			Name:   check.Name,
			Passed: check.Passed,
			Detail: check.Detail,
		})
	}
	return rows
}

func (s *service) Submit(req SubmitRequest, reply *SubmitResponse) error {
	s.logger.Debug("install submission requested", logging.String("build_tree", req.BuildTree))
	job, err := s.d.SubmitInstall(s.ctx, req.BuildTree, req.Configuration, req.Component)
	if err != nil {
		return err
	}
	reply.Job = FromJob(job)
	s.logger.Info("install submitted via IPC",
		logging.String(logging.FieldEventType, "install_submitted"),
		logging.Int64(logging.FieldJobID, job.ID))
	return nil
}

func (s *service) JobsList(req JobsListRequest, reply *JobsListResponse) error {
	statuses := make([]registry.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		if parsed, ok := registry.ParseStatus(raw); ok {
			statuses = append(statuses, parsed)
		}
	}
	jobs, err := s.d.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	reply.Jobs = make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		reply.Jobs = append(reply.Jobs, FromJob(job))
	}
	return nil
}

func (s *service) JobsDescribe(req JobsDescribeRequest, reply *JobsDescribeResponse) error {
	if req.ID < 1 {
		return fmt.Errorf("invalid job id %d", req.ID)
	}
	job, err := s.d.GetJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %d not found", req.ID)
	}
	reply.Job = FromJob(job)
	return nil
}

func (s *service) JobsClear(req JobsClearRequest, reply *JobsClearResponse) error {
	s.logger.Debug("jobs clear requested", logging.String("scope", req.Scope))
	removed, err := s.d.ClearJobs(s.ctx, req.Scope)
	if err != nil {
		return err
	}
	reply.Removed = removed
	s.logger.Info("jobs cleared",
		logging.String(logging.FieldEventType, "jobs_clear"),
		logging.Int64("removed_count", removed),
		logging.String("scope", req.Scope))
	return nil
}

func (s *service) JobsRetry(req JobsRetryRequest, reply *JobsRetryResponse) error {
	s.logger.Debug("jobs retry requested", logging.Int("job_count", len(req.IDs)))
	updated, err := s.d.RetryJobs(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	reply.Updated = updated
	s.logger.Info("jobs retried",
		logging.String(logging.FieldEventType, "jobs_retry"),
		logging.Int64("retried_count", updated))
	return nil
}

func (s *service) LogTail(req LogTailRequest, reply *LogTailResponse) error {
	path := s.d.LogPath()
	if path == "" {
		return nil
	}
	waitFor := time.Duration(req.WaitMillis) * time.Millisecond
	if req.Follow && waitFor <= 0 {
		waitFor = time.Second
	}

	tailCtx := s.ctx
	if req.Follow && waitFor > 0 {
		var stop context.CancelFunc
		tailCtx, stop = context.WithTimeout(s.ctx, waitFor+500*time.Millisecond)
		defer stop()
	}

	opts := logs.TailOptions{Offset: req.Offset, Limit: req.Limit, Follow: req.Follow, Wait: waitFor}
	result, err := logs.Tail(tailCtx, path, opts)
	switch {
	case err == nil:
		reply.Lines = result.Lines
		reply.Offset = result.Offset
		return nil
	case errors.Is(err, context.Canceled):
		reply.Offset = result.Offset
		return nil
	default:
		return err
	}
}

func (s *service) RegistryHealth(_ RegistryHealthRequest, reply *RegistryHealthResponse) error {
	health, err := s.d.RegistryHealth(s.ctx)
	if err != nil {
		return err
	}
	*reply = RegistryHealthResponse{
		Total:      health.Total,
		Pending:    health.Pending,
		Processing: health.Processing,
		Failed:     health.Failed,
		Review:     health.Review,
		Completed:  health.Completed,
	}
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, reply *DatabaseHealthResponse) error {
	report, err := s.d.DatabaseHealth(s.ctx)
	if err != nil && report.Error == "" {
		return err
	}
	*reply = DatabaseHealthResponse{
		DBPath:           report.DBPath,
		DatabaseExists:   report.DatabaseExists,
		DatabaseReadable: report.DatabaseReadable,
		SchemaVersion:    report.SchemaVersion,
		TableExists:      report.TableExists,
		ColumnsPresent:   append([]string(nil), report.ColumnsPresent...),
		MissingColumns:   append([]string(nil), report.MissingColumns...),
		IntegrityCheck:   report.IntegrityCheck,
		TotalJobs:        report.TotalJobs,
		Error:            report.Error,
	}
	return err
}
