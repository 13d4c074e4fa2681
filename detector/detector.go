// Package detector turns faces found in an image into circular obstacles
// for the fluid.
package detector

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	pigo "github.com/esimov/pigo/core"

	fluid "github.com/esimov/flip-fluid/fluid-solver"
)

// ErrNoCascade is returned when no cascade data is given.
var ErrNoCascade = errors.New("detector: empty cascade")

// Params holds the cascade search parameters.
type Params struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32 // Detections scoring below this are dropped
}

// Detector wraps an unpacked pigo face classifier.
type Detector struct {
	classifier *pigo.Pigo
	params     Params
}

// New unpacks the facefinder cascade.
func New(cascade []byte, p Params) (*Detector, error) {
	if len(cascade) == 0 {
		return nil, ErrNoCascade
	}
	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking the facefinder cascade: %w", err)
	}
	return &Detector{classifier: classifier, params: p}, nil
}

// LoadImage decodes the image at path.
func LoadImage(path string) (image.Image, error) {
	img, err := pigo.GetImage(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return img, nil
}

// Detect runs the cascade over img and returns the clustered detections
// that pass the quality threshold.
func (d *Detector) Detect(img image.Image) []pigo.Detection {
	src := toNRGBA(img)
	b := src.Bounds()

	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     d.params.MaxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   b.Dy(),
			Cols:   b.Dx(),
			Dim:    b.Dx(),
		},
	}

	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	kept := dets[:0]
	for _, det := range dets {
		if det.Q >= d.params.MinQuality {
			kept = append(kept, det)
		}
	}
	return kept
}

// Obstacles maps detections in an imgW x imgH image onto a
// domainW x domainH fluid domain. Image rows grow downwards while the
// fluid's y axis points up.
func Obstacles(dets []pigo.Detection, imgW, imgH int, domainW, domainH float64) []fluid.Obstacle {
	if imgW <= 0 || imgH <= 0 {
		return nil
	}
	sx := domainW / float64(imgW)
	sy := domainH / float64(imgH)
	sr := math.Min(sx, sy)

	obstacles := make([]fluid.Obstacle, 0, len(dets))
	for _, det := range dets {
		obstacles = append(obstacles, fluid.Obstacle{
			X:      float64(det.Col) * sx,
			Y:      domainH - float64(det.Row)*sy,
			Radius: float64(det.Scale) / 2 * sr,
		})
	}
	return obstacles
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
