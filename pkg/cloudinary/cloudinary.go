// Package cloudinary wraps the Cloudinary upload API behind a small client
// interface so handlers and tests never touch the SDK directly.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client uploads ad media and returns delivery URLs.
type Client interface {
	UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (url string, err error)
	UploadVideo(ctx context.Context, file io.Reader, folder, publicID string) (url string, err error)
	DeleteByURL(ctx context.Context, url string) error
}

// Eager transformations applied at upload so the gallery serves optimized
// assets without on-the-fly transforms.
const (
	imageEager = "q_auto,f_auto,w_800,c_fill"
	videoEager = "q_auto:low,f_auto,w_1280"
)

var eagerSync = false

type client struct {
	cloudName string
	uploader  *uploader.API
}

// New builds a Client from Cloudinary credentials.
func New(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &client{cloudName: cloudName, uploader: up}, nil
}

func (c *client) UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     folder,
		PublicID:   publicID,
		Eager:      imageEager,
		EagerAsync: &eagerSync,
	})
	if err != nil {
		return "", err
	}
	if len(result.Eager) > 0 {
		return result.Eager[0].SecureURL, nil
	}
	return result.SecureURL, nil
}

func (c *client) UploadVideo(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "video",
		Eager:        videoEager,
		EagerAsync:   &eagerSync,
	})
	if err != nil {
		return "", err
	}
	if len(result.Eager) > 0 {
		return result.Eager[0].SecureURL, nil
	}
	return result.SecureURL, nil
}

// DeleteByURL removes an uploaded asset given its delivery URL.
func (c *client) DeleteByURL(ctx context.Context, url string) error {
	publicID, resourceType := parseDeliveryURL(url)
	if publicID == "" {
		return fmt.Errorf("not a cloudinary URL: %s", url)
	}
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	return err
}

// parseDeliveryURL extracts the public ID and resource type from a delivery
// URL of the form
// https://res.cloudinary.com/<cloud>/<type>/upload/[transforms/]<public_id>.<ext>.
func parseDeliveryURL(url string) (publicID, resourceType string) {
	const marker = "res.cloudinary.com/"
	i := strings.Index(url, marker)
	if i < 0 {
		return "", ""
	}
	parts := strings.Split(url[i+len(marker):], "/")
	// parts: cloud, type, "upload", [transforms...], file
	if len(parts) < 4 || parts[2] != "upload" {
		return "", ""
	}
	resourceType = parts[1]
	file := parts[len(parts)-1]
	if dot := strings.LastIndex(file, "."); dot > 0 {
		file = file[:dot]
	}
	// Folder segments sit between "upload" (plus any transform segment) and
	// the file; transform segments contain commas or start with "v"+digits.
	var folders []string
	for _, seg := range parts[3 : len(parts)-1] {
		if strings.Contains(seg, ",") || isVersionSegment(seg) {
			continue
		}
		folders = append(folders, seg)
	}
	if len(folders) > 0 {
		return strings.Join(folders, "/") + "/" + file, resourceType
	}
	return file, resourceType
}

func isVersionSegment(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
