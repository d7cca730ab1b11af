package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/vespai/vespai-go/internal/overlay"
)

func writeSSE(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func encodeJPEG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	blankOnce sync.Once
	blankData []byte
)

// blankJPEG renders the placeholder shown before the first frame is
// published. Expected startup condition, not an error.
func blankJPEG() []byte {
	blankOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 960, 540))
		dark := color.RGBA{R: 18, G: 22, B: 18, A: 255}
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = dark.R
			img.Pix[i+1] = dark.G
			img.Pix[i+2] = dark.B
			img.Pix[i+3] = dark.A
		}
		overlay.Banner(img, "VespAI - waiting for first frame")
		data, err := encodeJPEG(img)
		if err != nil {
			return
		}
		blankData = data
	})
	return blankData
}

type jpegProvider func() ([]byte, bool)

// streamMJPEG writes a multipart MJPEG stream, pulling the newest frame
// from the provider on each tick. Falls back to the placeholder while
// no frame exists. Returns when the client disconnects or ctx ends.
func streamMJPEG(ctx context.Context, w http.ResponseWriter, interval time.Duration, provider jpegProvider) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jpegData := blankJPEG()
		if data, ok := provider(); ok {
			jpegData = data
		}

		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			return
		}
		if _, err := w.Write(jpegData); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
