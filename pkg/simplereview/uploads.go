package simplereview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// UploadPolicy bounds what uploads are accepted. Every check runs before any
// bytes are written.
type UploadPolicy struct {
	AllowedImageTypes []string
	MaxImageBytes     int64
	MaxImages         int
	MaxDocumentBytes  int64
}

// DefaultUploadPolicy returns the default acceptance policy
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		AllowedImageTypes: []string{"image/jpeg", "image/png", "image/webp"},
		MaxImageBytes:     5 << 20,
		MaxImages:         3,
		MaxDocumentBytes:  1 << 20,
	}
}

// Validate checks the policy is usable
func (p UploadPolicy) Validate() error {
	if len(p.AllowedImageTypes) == 0 {
		return errors.New("upload policy: at least one image type must be allowed")
	}
	if p.MaxImageBytes <= 0 || p.MaxDocumentBytes <= 0 {
		return errors.New("upload policy: size ceilings must be positive")
	}
	if p.MaxImages < 0 || p.MaxImages > 3 {
		return errors.New("upload policy: max images must be between 0 and 3")
	}
	return nil
}

// checkImage returns the normalized MIME type of an acceptable upload. The
// declared type must be allowed and must match what the bytes sniff as.
func (p UploadPolicy) checkImage(req ImageUpload) (string, error) {
	if len(req.Data) == 0 {
		return "", fmt.Errorf("%w: image is empty", ErrInvalidArgument)
	}
	if int64(len(req.Data)) > p.MaxImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrPayloadTooLarge, p.MaxImageBytes)
	}
	declared := normalizeMIME(req.MimeType)
	if !p.allows(declared) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, req.MimeType)
	}
	if sniffed := normalizeMIME(http.DetectContentType(req.Data)); sniffed != declared {
		return "", fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedMediaType, declared, sniffed)
	}
	return declared, nil
}

func (p UploadPolicy) allows(mimeType string) bool {
	for _, allowed := range p.AllowedImageTypes {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

func normalizeMIME(value string) string {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	if mediaType == "image/jpg" || mediaType == "image/pjpeg" {
		return "image/jpeg"
	}
	return mediaType
}

func (s *service) UploadImage(ctx context.Context, actor *Actor, scriptID uuid.UUID, req ImageUpload) (*ImageAsset, error) {
	if err := s.authenticate(ctx, actor); err != nil {
		return nil, err
	}
	mimeType, err := s.policy.checkImage(req)
	if err != nil {
		return nil, err
	}

	script, err := s.store.Scripts().GetScript(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(actor, script); err != nil {
		return nil, err
	}
	if script.State == StateAbandoned {
		return nil, fmt.Errorf("%w: cannot attach images to a deleted script", ErrInvalidState)
	}
	count, err := s.store.Images().CountImages(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if count >= s.policy.MaxImages {
		return nil, ErrTooManyImages
	}

	ref, err := s.content.Save(ctx, req.Data, req.FileName, mimeType)
	if err != nil {
		return nil, err
	}

	var image *ImageAsset
	err = s.store.WithTx(ctx, func(tx Repositories) error {
		if _, err := tx.Scripts().GetScriptForUpdate(ctx, scriptID); err != nil {
			return err
		}
		n, err := tx.Images().CountImages(ctx, scriptID)
		if err != nil {
			return err
		}
		if n >= s.policy.MaxImages {
			return ErrTooManyImages
		}
		image = &ImageAsset{
			ID:        uuid.New(),
			ScriptID:  scriptID,
			Path:      ref.Path,
			MimeType:  ref.MimeType,
			Size:      ref.Size,
			SHA256:    ref.SHA256,
			SortOrder: n,
			IsCover:   n == 0,
			CreatedAt: s.now(),
		}
		return tx.Images().CreateImage(ctx, image)
	})
	if err != nil {
		return nil, s.scriptError(scriptID, "upload_image", err)
	}

	s.invalidate(ScriptBucket(scriptID))
	image.URL = s.mediaURL(image.Path)
	return image, nil
}

// RemoveImage deletes an image record, compacts the sort order and promotes
// the first remaining image to cover.
func (s *service) RemoveImage(ctx context.Context, actor *Actor, imageID uuid.UUID) error {
	if err := s.authenticate(ctx, actor); err != nil {
		return err
	}
	image, err := s.store.Images().GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	script, err := s.store.Scripts().GetScript(ctx, image.ScriptID)
	if err != nil {
		return err
	}
	if err := requireManager(actor, script); err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx Repositories) error {
		if _, err := tx.Scripts().GetScriptForUpdate(ctx, script.ID); err != nil {
			return err
		}
		if err := tx.Images().DeleteImage(ctx, imageID); err != nil {
			return err
		}
		remaining, err := tx.Images().ListImages(ctx, script.ID)
		if err != nil {
			return err
		}
		sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].SortOrder < remaining[j].SortOrder })
		for i, img := range remaining {
			if img.SortOrder == i && img.IsCover == (i == 0) {
				continue
			}
			img.SortOrder = i
			img.IsCover = i == 0
			if err := tx.Images().UpdateImage(ctx, img); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.scriptError(script.ID, "remove_image", err)
	}

	s.invalidate(ScriptBucket(script.ID))
	return nil
}

// OpenMedia streams stored bytes. Paths that do not resolve inside the store
// are reported as not found.
func (s *service) OpenMedia(ctx context.Context, path string) (io.ReadCloser, *ObjectMeta, error) {
	meta, err := s.content.Stat(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.content.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return rc, meta, nil
}

func (s *service) MediaURL(path string) (string, error) {
	if s.signer == nil {
		return "/media/" + strings.TrimPrefix(path, "/"), nil
	}
	return s.signer.SignPath(path)
}

func (s *service) mediaURL(path string) string {
	url, err := s.MediaURL(path)
	if err != nil {
		s.logger.Warn("failed to sign media url", "err", err)
		return ""
	}
	return url
}
