package archive

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"
)

// WebdavServer exposes an Archive's root directory read/write over WebDAV,
// so captured images and recordings can be pulled by any WebDAV client.
type WebdavServer struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	port   int
	dir    string
	logger *zap.SugaredLogger
}

func NewWebdavServer(port int, dir string, logger *zap.SugaredLogger) *WebdavServer {
	return &WebdavServer{port: port, dir: dir, logger: logger}
}

// Start begins serving in the background. Calling Start while already
// running is a no-op.
func (s *WebdavServer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	serveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	serveWebdav(serveCtx, s.port, s.dir, s.logger)
}

// Stop shuts the server down if it's running.
func (s *WebdavServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func serveWebdav(ctx context.Context, port int, dir string, logger *zap.SugaredLogger) {
	handler := &webdav.Handler{
		FileSystem: webdav.Dir(dir),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Errorw("webdav request error", "method", r.Method, "url", r.URL.String(), "err", err)
			}
		},
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("webdav server exited", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("webdav server shutdown error", "err", err)
		}
	}()
}
