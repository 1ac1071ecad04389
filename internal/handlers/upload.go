package handlers

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

const thumbnailWidth = 320

// UploadHandler stores product images from multipart form uploads and
// generates thumbnails.
type UploadHandler struct {
	db        *gorm.DB
	uploadDir string
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(db *gorm.DB, uploadDir string) *UploadHandler {
	return &UploadHandler{db: db, uploadDir: uploadDir}
}

// UploadProductImage accepts a multipart "image" file, stores it with its
// thumbnail, and attaches both to the product. Admin only.
func (h *UploadHandler) UploadProductImage(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "image file is required")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return fiber.NewError(fiber.StatusBadRequest, "only jpeg and png images are supported")
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return err
	}

	name := uuid.New().String() + ext
	fullPath := filepath.Join(h.uploadDir, name)
	if err := c.SaveFile(fileHeader, fullPath); err != nil {
		return err
	}

	thumbName, err := h.writeThumbnail(fullPath, ext)
	if err != nil {
		// Keep the original upload even when thumbnailing fails.
		thumbName = name
	}

	imageURL := "/uploads/" + name
	thumbURL := "/uploads/" + thumbName

	product.HeroImage = imageURL
	product.Thumbnail = thumbURL
	product.Gallery = append(product.Gallery, imageURL)
	if err := h.db.Save(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"image":     imageURL,
			"thumbnail": thumbURL,
		},
	})
}

// writeThumbnail decodes the stored image and writes a resized copy next to
// it, returning the thumbnail file name.
func (h *UploadHandler) writeThumbnail(fullPath, ext string) (string, error) {
	src, err := os.Open(fullPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	thumb := resize.Resize(thumbnailWidth, 0, img, resize.Lanczos3)

	base := strings.TrimSuffix(filepath.Base(fullPath), ext)
	thumbName := base + "_thumb" + ext
	out, err := os.Create(filepath.Join(h.uploadDir, thumbName))
	if err != nil {
		return "", err
	}
	defer out.Close()

	switch ext {
	case ".png":
		err = png.Encode(out, thumb)
	default:
		err = jpeg.Encode(out, thumb, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return "", err
	}

	return thumbName, nil
}
