package veracity

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/image-veracity/veracity/imagehash"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const uploadForm = `<!DOCTYPE html>
<html>
<head><title>veracity</title></head>
<body>
<h1>Upload an image</h1>
<form method="post" enctype="multipart/form-data">
<input type="file" name="image" accept="image/jpeg,image/png">
<button type="submit">Upload</button>
</form>
</body>
</html>
`

func (s *Server) handleUploadForm(c echo.Context) error {
	return c.HTML(http.StatusOK, uploadForm)
}

func (s *Server) handleUpload(c echo.Context) error {
	uploadsReceived.Inc()
	ctx := c.Request().Context()

	fh, err := c.FormFile("image")
	if err != nil {
		uploadsFailed.WithLabelValues("bad-request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "expected multipart field 'image'")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	buf, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	start := time.Now()
	h, err := s.hasher.Hash(ctx, buf)
	hashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, imagehash.ErrUnsupportedFormat) {
			uploadsFailed.WithLabelValues("unsupported-format").Inc()
			return echo.NewHTTPError(http.StatusBadRequest, "unsupported image format, expected JPEG or PNG")
		}
		uploadsFailed.WithLabelValues("hash").Inc()
		return err
	}

	img := Image{CHash: h.Crypto[:], PHash: h.Perceptual[:]}
	res := s.db.Where("c_hash = ?", h.Crypto[:]).FirstOrCreate(&img)
	if res.Error != nil {
		uploadsFailed.WithLabelValues("database").Inc()
		return res.Error
	}
	if res.RowsAffected > 0 {
		imagesStored.Inc()
	}

	if s.tlog != nil {
		leaf, err := s.tlog.QueueLeaf(ctx, s.treeID, h.Crypto[:], h.Perceptual[:])
		if err != nil {
			s.logger.Error("failed to queue leaf", "err", err, "cryptoHash", h.Crypto)
			uploadsFailed.WithLabelValues("tlog").Inc()
			return echo.NewHTTPError(http.StatusServiceUnavailable, "transparency log unavailable")
		}
		leavesQueued.Inc()
		if leaf.LeafIndex != img.LeafIndex {
			img.LeafIndex = leaf.LeafIndex
			if err := s.db.Save(&img).Error; err != nil {
				return err
			}
		}
	}

	if err := s.tiles.Stage(MapLeaf(h)); err != nil {
		s.logger.Error("failed to stage map leaf", "err", err, "cryptoHash", h.Crypto)
		return err
	}

	s.imageCache.Add(h.Crypto, &img)
	s.logger.Info("image uploaded", "cryptoHash", h.Crypto, "perceptualHash", h.Perceptual, "size", len(buf))
	return c.JSON(http.StatusCreated, h)
}

func (s *Server) handleGetImage(c echo.Context) error {
	start := time.Now()
	defer func() { lookupDuration.Observe(time.Since(start).Seconds()) }()

	chash, err := imagehash.ParseCryptoHash(c.Param("hash"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid crypto hash")
	}

	img, ok := s.imageCache.Get(chash)
	if !ok {
		var rec Image
		if err := s.db.First(&rec, "c_hash = ?", chash[:]).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "image not found")
			}
			return err
		}
		img = &rec
		s.imageCache.Add(chash, img)
	}

	var out imagehash.VeracityHash
	copy(out.Crypto[:], img.CHash)
	copy(out.Perceptual[:], img.PHash)
	return c.JSON(http.StatusOK, out)
}
