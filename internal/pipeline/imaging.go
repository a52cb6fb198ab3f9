package pipeline

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/models"
)

const jpegQuality = 85

// resizeJPEG scales an image to fit within maxSize on its longer edge,
// keeping aspect ratio, and re-encodes as JPEG. Images already small
// enough are re-encoded without scaling so output format is uniform.
func resizeJPEG(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "decode image")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return encodeJPEG(img)
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = height * maxSize / width
	} else {
		newHeight = maxSize
		newWidth = width * maxSize / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return encodeJPEG(resized)
}

// cropJPEG cuts the given region out of an image and encodes it as JPEG.
// The box is clamped to the image bounds; a box that clamps to nothing is
// a validation error.
func cropJPEG(data []byte, box models.BoundingBox) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "decode image")
	}

	bounds := img.Bounds()
	x1 := max(box.X1, bounds.Min.X)
	y1 := max(box.Y1, bounds.Min.Y)
	x2 := min(box.X2, bounds.Max.X)
	y2 := min(box.Y2, bounds.Max.Y)
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil, apperr.New(apperr.KindValidation, "crop region outside image bounds")
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	draw.Draw(crop, crop.Bounds(), img, image.Pt(x1, y1), draw.Src)
	return encodeJPEG(crop)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// imageSize returns the pixel dimensions without decoding the full image.
func imageSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
