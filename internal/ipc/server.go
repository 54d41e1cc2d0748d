package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"camwatch/internal/daemon"
	"camwatch/internal/logging"
	"camwatch/internal/session"
)

// ServiceName is the RPC receiver name clients address.
const ServiceName = "Camwatch"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown, when
// set, is invoked by the Shutdown RPC to end the daemon process.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, shutdown func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx, shutdown: shutdown}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) cameraStatus(name string) session.Status {
	st, _ := s.daemon.CameraStatus(name)
	return st
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockPath
	resp.JournalPath = status.JournalPath
	resp.APIAddress = status.APIAddress
	resp.Hotplug = status.Hotplug
	resp.Host = status.Host
	resp.Cameras = status.Cameras
	return nil
}

func (s *service) Start(req CameraRequest, resp *CameraResponse) error {
	s.logger.Debug("camera start requested", logging.String(logging.FieldCamera, req.Name))
	if err := s.daemon.StartCamera(s.ctx, req.Name); err != nil {
		return err
	}
	resp.Camera = s.cameraStatus(req.Name)
	return nil
}

func (s *service) Stop(req CameraRequest, resp *CameraResponse) error {
	s.logger.Debug("camera stop requested", logging.String(logging.FieldCamera, req.Name))
	if err := s.daemon.StopCamera(s.ctx, req.Name); err != nil {
		return err
	}
	resp.Camera = s.cameraStatus(req.Name)
	return nil
}

func (s *service) Restart(req CameraRequest, resp *CameraResponse) error {
	s.logger.Debug("camera restart requested",
		logging.String(logging.FieldCamera, req.Name),
		logging.String("reason", req.Reason))
	if err := s.daemon.RestartCamera(s.ctx, req.Name, req.Reason); err != nil {
		return err
	}
	resp.Camera = s.cameraStatus(req.Name)
	return nil
}

func (s *service) Toggle(req CameraRequest, resp *ToggleResponse) error {
	running, err := s.daemon.ToggleCamera(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.Running = running
	resp.Camera = s.cameraStatus(req.Name)
	return nil
}

func (s *service) View(req ViewRequest, resp *ViewResponse) error {
	state, err := s.daemon.UpdateView(req.Name, daemon.ViewChange{
		ZoomDelta: req.ZoomDelta,
		PanDX:     req.PanDX,
		PanDY:     req.PanDY,
		Reset:     req.Reset,
	})
	if err != nil {
		return err
	}
	resp.View = state
	return nil
}

func (s *service) Capture(req CaptureRequest, resp *CaptureResponse) error {
	ok, err := s.daemon.Capture(req.Name, req.Label)
	if err != nil {
		return err
	}
	resp.Captured = ok
	return nil
}

func (s *service) Save(req CameraRequest, resp *SaveResponse) error {
	res, err := s.daemon.Save(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.Path = res.Path
	resp.Bytes = res.Bytes
	resp.Width = res.Meta.Width
	resp.Height = res.Meta.Height
	resp.Label = res.Meta.Label
	s.logger.Info("capture saved via IPC",
		logging.String(logging.FieldEventType, "ipc_save"),
		logging.String(logging.FieldCamera, req.Name),
		logging.String("path", res.Path))
	return nil
}

func (s *service) Frame(req FrameRequest, resp *FrameResponse) error {
	data, err := s.daemon.Frame(req.Name, req.Width, req.Height)
	if err != nil {
		return err
	}
	resp.JPEG = data
	return nil
}

func (s *service) Captures(req JournalRequest, resp *CapturesResponse) error {
	items, err := s.daemon.Captures(s.ctx, req.Camera, req.Limit)
	if err != nil {
		return err
	}
	resp.Captures = items
	return nil
}

func (s *service) Events(req JournalRequest, resp *EventsResponse) error {
	items, err := s.daemon.Events(s.ctx, req.Camera, req.Limit)
	if err != nil {
		return err
	}
	resp.Events = items
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	if s.shutdown == nil {
		return errors.New("daemon shutdown is not available over IPC")
	}
	s.logger.Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	resp.Accepted = true
	go s.shutdown()
	return nil
}
