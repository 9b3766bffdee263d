// Package httpapi exposes the camera's control surface, a live MJPEG
// stream, the capture archive, and a handful of operational diagnostics
// over HTTP, using the teacher's gin + cors + jsend idiom.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	jsend "github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"ov534cam/pkg/archive"
	"ov534cam/pkg/diag"
	"ov534cam/pkg/ov534"
	"ov534cam/pkg/sysstat"
)

// Config bundles everything the router needs beyond the camera itself.
type Config struct {
	Camera    *ov534.Camera
	Archive   *archive.Archive
	Registry  *archive.Registry
	Webdav    *archive.WebdavServer
	NTPServer string
	Logger    *zap.SugaredLogger
}

// NewRouter builds the gin engine serving every route under /api.
func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	api := r.Group("/api")

	cameraGroup := api.Group("/camera")
	cameraGroup.GET("/settings", getSettings(cfg.Camera))
	cameraGroup.PUT("/settings", putSettings(cfg.Camera))
	cameraGroup.GET("/stream", streamMJPEG(cfg.Camera, cfg.Logger))
	cameraGroup.POST("/snapshot", snapshot(cfg.Camera, cfg.Archive))

	archiveGroup := api.Group("/archive")
	archiveGroup.GET("/images", listImages(cfg.Archive))
	archiveGroup.GET("/images/latest", latestImage(cfg.Archive))
	archiveGroup.PUT("/webdav", ctlWebdav(cfg.Webdav))
	archiveGroup.GET("/sessions", listSessions(cfg.Registry))

	systemGroup := api.Group("/system")
	systemGroup.GET("/stats", systemStats(cfg.Archive))
	systemGroup.GET("/clock", clockOffset(cfg.NTPServer))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "PUT", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Settings is the wire shape for GET/PUT /camera/settings.
type Settings struct {
	Gain             *int  `json:"gain,omitempty"`
	Exposure         *int  `json:"exposure,omitempty"`
	Sharpness        *int  `json:"sharpness,omitempty"`
	Contrast         *int  `json:"contrast,omitempty"`
	Brightness       *int  `json:"brightness,omitempty"`
	Hue              *int  `json:"hue,omitempty"`
	RedBalance       *int  `json:"redBalance,omitempty"`
	BlueBalance      *int  `json:"blueBalance,omitempty"`
	GreenBalance     *int  `json:"greenBalance,omitempty"`
	Saturation       *int  `json:"saturation,omitempty"`
	AutoGain         *bool `json:"autoGain,omitempty"`
	AutoWhiteBalance *bool `json:"autoWhiteBalance,omitempty"`
	FlipHorizontal   *bool `json:"flipHorizontal,omitempty"`
	FlipVertical     *bool `json:"flipVertical,omitempty"`
}

func getSettings(cam *ov534.Camera) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, v := cam.FlipStatus()
		gain, exposure, sharpness := int(cam.Gain()), int(cam.Exposure()), int(cam.Sharpness())
		contrast, brightness, hue := int(cam.Contrast()), int(cam.Brightness()), int(cam.Hue())
		red, blue, green := int(cam.RedBalance()), int(cam.BlueBalance()), int(cam.GreenBalance())
		sat := int(cam.Saturation())
		autoGain, awb := cam.AutoGain(), cam.AutoWhiteBalance()

		c.JSON(http.StatusOK, jsend.Success(Settings{
			Gain: &gain, Exposure: &exposure, Sharpness: &sharpness,
			Contrast: &contrast, Brightness: &brightness, Hue: &hue,
			RedBalance: &red, BlueBalance: &blue, GreenBalance: &green,
			Saturation: &sat, AutoGain: &autoGain, AutoWhiteBalance: &awb,
			FlipHorizontal: &h, FlipVertical: &v,
		}))
	}
}

func putSettings(cam *ov534.Camera) gin.HandlerFunc {
	return func(c *gin.Context) {
		var s Settings
		if err := c.BindJSON(&s); err != nil {
			return
		}
		if s.Gain != nil {
			cam.SetGain(*s.Gain)
		}
		if s.Exposure != nil {
			cam.SetExposure(*s.Exposure)
		}
		if s.Sharpness != nil {
			cam.SetSharpness(*s.Sharpness)
		}
		if s.Contrast != nil {
			cam.SetContrast(*s.Contrast)
		}
		if s.Brightness != nil {
			cam.SetBrightness(*s.Brightness)
		}
		if s.Hue != nil {
			cam.SetHue(*s.Hue)
		}
		if s.RedBalance != nil {
			cam.SetRedBalance(*s.RedBalance)
		}
		if s.BlueBalance != nil {
			cam.SetBlueBalance(*s.BlueBalance)
		}
		if s.GreenBalance != nil {
			cam.SetGreenBalance(*s.GreenBalance)
		}
		if s.Saturation != nil {
			cam.SetSaturation(*s.Saturation)
		}
		if s.AutoGain != nil {
			cam.SetAutoGain(*s.AutoGain)
		}
		if s.AutoWhiteBalance != nil {
			cam.SetAutoWhiteBalance(*s.AutoWhiteBalance)
		}
		if s.FlipHorizontal != nil || s.FlipVertical != nil {
			h, v := cam.FlipStatus()
			if s.FlipHorizontal != nil {
				h = *s.FlipHorizontal
			}
			if s.FlipVertical != nil {
				v = *s.FlipVertical
			}
			cam.SetFlipStatus(h, v)
		}
		c.JSON(http.StatusOK, jsend.Success(nil))
	}
}

// streamMJPEG writes a continuous multipart/x-mixed-replace JPEG stream,
// reading frames from the camera until the client disconnects.
func streamMJPEG(cam *ov534.Camera, logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		mimeWriter := multipart.NewWriter(c.Writer)
		c.Header("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
		partHeader := make(textproto.MIMEHeader)
		partHeader.Add("Content-Type", "image/jpeg")

		buf := make([]byte, cam.Width()*cam.Height()*cam.BytesPerPixel())
		for {
			select {
			case <-c.Request.Context().Done():
				return
			default:
			}

			if !cam.GetFrame(buf) {
				continue
			}
			jpegBytes, err := encodeJPEG(buf, cam.Width(), cam.Height(), cam.BytesPerPixel())
			if err != nil {
				if logger != nil {
					logger.Errorw("encode stream frame", "err", err)
				}
				continue
			}
			partWriter, err := mimeWriter.CreatePart(partHeader)
			if err != nil {
				return
			}
			if _, err := partWriter.Write(jpegBytes); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func snapshot(cam *ov534.Camera, arc *archive.Archive) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf := make([]byte, cam.Width()*cam.Height()*cam.BytesPerPixel())
		if !cam.GetFrame(buf) {
			c.JSON(http.StatusServiceUnavailable, jsend.SimpleErr("no frame available"))
			return
		}
		jpegBytes, err := encodeJPEG(buf, cam.Width(), cam.Height(), cam.BytesPerPixel())
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		name, err := arc.SaveImage(jpegBytes)
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(name))
	}
}

func listImages(arc *archive.Archive) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := arc.ListImages()
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(names))
	}
}

func latestImage(arc *archive.Archive) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := arc.LatestImage()
		if err != nil {
			c.JSON(http.StatusNotFound, jsend.SimpleErr(err.Error()))
			return
		}
		c.Data(http.StatusOK, "image/jpeg", data)
	}
}

func listSessions(reg *archive.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := reg.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(sessions))
	}
}

const (
	webdavOpStart    = "start"
	webdavOpShutdown = "shutdown"
)

func ctlWebdav(w *archive.WebdavServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Query("op") {
		case webdavOpStart:
			w.Start(context.Background())
			c.JSON(http.StatusOK, jsend.Success("webdav started"))
		case webdavOpShutdown:
			w.Stop()
			c.JSON(http.StatusOK, jsend.Success("webdav stopped"))
		default:
			c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
		}
	}
}

func systemStats(arc *archive.Archive) gin.HandlerFunc {
	return func(c *gin.Context) {
		cpuStat, err := sysstat.CPUStatus()
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		memStat, err := sysstat.MemoryStatus()
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		diskStat, err := sysstat.DiskStatus(arc.RootDir())
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(gin.H{
			"cpu":  cpuStat,
			"mem":  memStat,
			"disk": diskStat,
		}))
	}
}

func clockOffset(server string) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, err := diag.ClockOffset(server)
		if err != nil {
			c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(gin.H{"offsetMillis": offset.Milliseconds()}))
	}
}

// encodeJPEG converts a GetFrame buffer (Bayer/Gray/BGR/RGB per
// bytesPerPixel) into a JPEG. Only the 3-byte interleaved formats are
// supported here, and pixels are read in R, G, B order, so callers
// configure the camera for FormatRGB before streaming or snapshotting.
func encodeJPEG(buf []byte, width, height, bytesPerPixel int) ([]byte, error) {
	if bytesPerPixel != 3 {
		return nil, fmt.Errorf("httpapi: unsupported bytes-per-pixel %d for JPEG encode", bytesPerPixel)
	}
	img := &image.RGBA{
		Pix:    toRGBA(buf, width*height),
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: jpeg.DefaultQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func toRGBA(rgb []byte, pixels int) []byte {
	out := make([]byte, pixels*4)
	for i := 0; i < pixels; i++ {
		out[i*4+0] = rgb[i*3+0]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = 0xff
	}
	return out
}
