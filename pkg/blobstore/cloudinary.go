package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// CloudinaryConfig holds Cloudinary credentials (from env or config).
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Delivery params for obscured images; they are already small, so only
// format and quality are negotiated.
const cloudinaryDelivery = "q_auto,f_auto"

// Cloudinary is a Public bucket on the Cloudinary CDN. Keys map to public IDs
// inside Folder with the extension dropped.
type Cloudinary struct {
	cloudName string
	folder    string
	uploader  *uploader.API
}

func NewCloudinary(cfg CloudinaryConfig) (*Cloudinary, error) {
	c, err := config.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(c)
	if err != nil {
		return nil, err
	}
	return &Cloudinary{
		cloudName: cfg.CloudName,
		folder:    strings.Trim(cfg.Folder, "/"),
		uploader:  up,
	}, nil
}

func (c *Cloudinary) publicID(key string) string {
	id := strings.TrimSuffix(key, path.Ext(key))
	if c.folder == "" {
		return id
	}
	return c.folder + "/" + id
}

func (c *Cloudinary) Put(ctx context.Context, key string, body []byte, contentType string) error {
	overwrite := true
	_, err := c.uploader.Upload(ctx, bytes.NewReader(body), uploader.UploadParams{
		PublicID:  c.publicID(key),
		Overwrite: &overwrite,
	})
	if err != nil {
		return fmt.Errorf("cloudinary upload %s: %w", key, err)
	}
	return nil
}

func (c *Cloudinary) Delete(ctx context.Context, key string) error {
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: c.publicID(key)})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", key, err)
	}
	return nil
}

// URL returns the delivery URL; obscured derivatives are always JPEG.
func (c *Cloudinary) URL(key string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s/%s.jpg",
		c.cloudName, cloudinaryDelivery, c.publicID(key))
}
