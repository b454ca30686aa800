// Package staticmap downloads satellite imagery tiles over HTTP and
// converts them into the pipeline's raster model.
package staticmap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/sells-group/canopy-cli/internal/model"
	"github.com/sells-group/canopy-cli/internal/resilience"
)

// equatorMetersPerPixel is the web-mercator ground resolution at zoom 0.
const equatorMetersPerPixel = 156543.03392

// Client fetches square satellite tiles centered on a coordinate.
type Client struct {
	endpoint   string
	key        string
	sizePx     int
	zoom       int
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// New builds a static map client. sizePx is the edge length of the
// requested (and returned) square tile.
func New(endpoint, key string, sizePx, zoom int, timeout time.Duration) *Client {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("staticmap", "fetch")
	return &Client{
		endpoint:   endpoint,
		key:        key,
		sizePx:     sizePx,
		zoom:       zoom,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

// MetersPerPixel returns the ground resolution of a tile centered at the
// given latitude.
func (c *Client) MetersPerPixel(lat float64) float64 {
	return equatorMetersPerPixel * math.Cos(lat*math.Pi/180) / math.Pow(2, float64(c.zoom))
}

// FetchRaster downloads the tile centered on the location and returns it
// as a raster buffer with its geographic registration.
func (c *Client) FetchRaster(ctx context.Context, loc model.Location) (*model.RasterBuffer, error) {
	params := url.Values{
		"center":  {fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude)},
		"zoom":    {fmt.Sprintf("%d", c.zoom)},
		"size":    {fmt.Sprintf("%dx%d", c.sizePx, c.sizePx)},
		"maptype": {"satellite"},
	}
	if c.key != "" {
		params.Set("key", c.key)
	}
	reqURL := c.endpoint + "?" + params.Encode()

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "staticmap: fetch tile")
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "staticmap: decode tile")
	}

	return c.toRaster(img, loc), nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "staticmap: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("staticmap: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

// toRaster resamples the decoded image to the configured tile size and
// packs it into the raster model with its bounding box.
func (c *Client) toRaster(img image.Image, loc model.Location) *model.RasterBuffer {
	if img.Bounds().Dx() != c.sizePx || img.Bounds().Dy() != c.sizePx {
		dst := image.NewRGBA(image.Rect(0, 0, c.sizePx, c.sizePx))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
		img = dst
	}

	mpp := c.MetersPerPixel(loc.Latitude)
	halfM := float64(c.sizePx) / 2 * mpp
	latHalf := halfM / 111320.0
	lngHalf := halfM / (111320.0 * math.Cos(loc.Latitude*math.Pi/180))

	raster := model.NewRasterBuffer(c.sizePx, c.sizePx, model.BBox{
		MinLng: loc.Longitude - lngHalf,
		MinLat: loc.Latitude - latHalf,
		MaxLng: loc.Longitude + lngHalf,
		MaxLat: loc.Latitude + latHalf,
	}, mpp)

	b := img.Bounds()
	for y := 0; y < c.sizePx; y++ {
		for x := 0; x < c.sizePx; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			raster.SetRGB(x, y, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	return raster
}
