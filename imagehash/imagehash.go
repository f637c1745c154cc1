package imagehash

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	// Only JPEG and PNG uploads are accepted; no other decoders are
	// registered.
	_ "image/jpeg"
	_ "image/png"

	sha256 "github.com/minio/sha256-simd"
)

// Hash decodes the image in buf and computes its hash pair. Only JPEG and
// PNG inputs are accepted; anything else fails with ErrUnsupportedFormat.
func Hash(buf []byte) (VeracityHash, error) {
	img, format, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return VeracityHash{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, err)
	}
	switch format {
	case "jpeg", "png":
	default:
		return VeracityHash{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	pix := toNRGBA(img)
	return VeracityHash{
		Crypto:     CryptoHash(sha256.Sum256(pix.Pix)),
		Perceptual: blockhash256(pix),
	}, nil
}

// toNRGBA normalizes the decoded image to an 8-bit RGBA pixel buffer, so the
// cryptographic hash does not depend on the decoder's internal color model.
func toNRGBA(img image.Image) *image.NRGBA {
	if pix, ok := img.(*image.NRGBA); ok && pix.Rect.Min == (image.Point{}) && pix.Stride == 4*pix.Rect.Dx() {
		return pix
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
