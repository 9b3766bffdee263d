// Command ov534d opens the first attached OV534/OV772x camera, starts
// streaming, and serves its control surface, live preview, and capture
// archive over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ov534cam/pkg/archive"
	"ov534cam/pkg/httpapi"
	"ov534cam/pkg/logging"
	"ov534cam/pkg/ov534"
)

var (
	port       = flag.Int("port", 9999, "http api port")
	webdavPort = flag.Int("webdav-port", 9998, "webdav port")
	storageDir = flag.String("dir", "./ov534cam-data", "capture archive root directory")
	sessionTag = flag.String("session", "default", "name of this capture session's archive directory")
	resolution = flag.String("resolution", "vga", "capture resolution: vga or qvga")
	framerate  = flag.Int("fps", 60, "requested capture frame rate")
	debug      = flag.Bool("debug", false, "set the driver's debug level (ov534.SetDebug)")
	ntpServer  = flag.String("ntp-server", "pool.ntp.org", "server used by /api/system/clock")
)

func main() {
	flag.Parse()

	logger := logging.Get()
	defer logger.Sync()

	ov534.SetLogger(logger)
	ov534.SetDebug(*debug)

	res := ov534.ResolutionVGA
	if *resolution == "qvga" {
		res = ov534.ResolutionQVGA
	}

	cameras, err := ov534.ListDevices()
	if err != nil {
		logger.Fatalw("enumerate cameras", "err", err)
	}
	if len(cameras) == 0 {
		logger.Fatal("no ov534 camera found")
	}
	cam := cameras[0]

	if !cam.Init(res, *framerate, ov534.FormatRGB) {
		logger.Fatalw("init camera", "err", cam.ErrorString())
	}
	if !cam.Start() {
		logger.Fatalw("start streaming", "err", cam.ErrorString())
	}
	defer func() {
		cam.Stop()
		cam.Release()
	}()

	registry, err := archive.OpenRegistry(*storageDir)
	if err != nil {
		logger.Fatalw("open session registry", "err", err)
	}
	arc, err := registry.Ensure(*sessionTag, fmt.Sprintf("%s @ %dfps", *resolution, *framerate))
	if err != nil {
		logger.Fatalw("open capture archive", "err", err)
	}

	webdavSrv := archive.NewWebdavServer(*webdavPort, arc.RootDir(), logger)
	defer webdavSrv.Stop()

	router := httpapi.NewRouter(httpapi.Config{
		Camera:    cam,
		Archive:   arc,
		Registry:  registry,
		Webdav:    webdavSrv,
		NTPServer: *ntpServer,
		Logger:    logger,
	})

	listenAndServe(router, *port, logger)
}

func listenAndServe(handler *gin.Engine, port int, logger *zap.SugaredLogger) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("http server exited", "err", err)
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	<-signalCh

	logger.Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorw("http server shutdown error", "err", err)
	}
}
