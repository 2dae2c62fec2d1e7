package lots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

const maxCertificateName = 128

var errBlobStoreRequired = errors.New("certificate storage is not configured")

type AttachCertificateInput struct {
	LotID       string
	Name        string
	ContentType string
	Body        io.Reader
}

// CertificateContent is either a stream or, for stores that can presign, a
// direct URL. Exactly one of Body and URL is set.
type CertificateContent struct {
	Info ports.BlobInfo
	Body io.ReadCloser
	URL  string
}

func certificateKey(lotID string, name string) string {
	return "certificates/" + lotID + "/" + name
}

// AttachCertificate stores a document for a lot owned by the signed-in
// farmer. History is untouched; only the certificates list and version move.
func (s *Service) AttachCertificate(ctx context.Context, actor ports.Actor, input AttachCertificateInput) (lot.Certificate, error) {
	if err := s.ready(ctx); err != nil {
		return lot.Certificate{}, err
	}
	if s.blobs == nil {
		return lot.Certificate{}, errBlobStoreRequired
	}

	name, err := cleanCertificateName(input.Name)
	if err != nil {
		return lot.Certificate{}, err
	}
	if input.Body == nil {
		return lot.Certificate{}, fieldError("file", "is required")
	}

	current, err := s.GetLot(ctx, input.LotID)
	if err != nil {
		return lot.Certificate{}, err
	}
	if actor.Role != lot.RoleAdmin && (actor.Role != lot.RoleFarmer || current.Farmer.ID != actor.ID) {
		return lot.Certificate{}, fmt.Errorf("%w: only the owning farmer can attach certificates to %s", lot.ErrUnauthorizedRole, current.ID)
	}
	if current.HasCertificate(name) {
		return lot.Certificate{}, fmt.Errorf("%w: %q", ErrCertificateExists, name)
	}

	key := certificateKey(current.ID, name)
	info, err := s.blobs.Put(ctx, key, input.Body, ports.BlobPutOptions{
		ContentType: strings.TrimSpace(input.ContentType),
		Metadata:    map[string]string{"lot-id": current.ID},
	})
	if err != nil {
		if errors.Is(err, ports.ErrBlobExists) {
			return lot.Certificate{}, fmt.Errorf("%w: %q", ErrCertificateExists, name)
		}
		return lot.Certificate{}, errs.Wrap(err, "store certificate")
	}

	cert := lot.Certificate{
		Name:        name,
		Key:         key,
		ContentType: info.ContentType,
		Size:        info.Size,
		UploadedAt:  s.nowUTCString(),
	}
	certs := append(append([]lot.Certificate(nil), current.Certificates...), cert)
	if _, err := s.repo.ReplaceCertificates(ctx, current.ID, current.Version, certs, cert.UploadedAt); err != nil {
		if _, delErr := s.blobs.Delete(ctx, key); delErr != nil {
			logging.Warn(
				logging.WithAttrs(ctx, slog.String("component", "usecase.lots")),
				"orphaned certificate blob",
				slog.String("key", key),
				slog.Any("err", errs.Loggable(delErr)),
			)
		}
		return lot.Certificate{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.lots")),
		"certificate attached",
		slog.String("lot_id", current.ID),
		slog.String("name", name),
		slog.Int64("size", cert.Size),
	)
	return cert, nil
}

// OpenCertificate prefers a presigned URL and falls back to streaming.
func (s *Service) OpenCertificate(ctx context.Context, lotID string, name string) (CertificateContent, error) {
	if s.blobs == nil {
		return CertificateContent{}, errBlobStoreRequired
	}
	current, err := s.GetLot(ctx, lotID)
	if err != nil {
		return CertificateContent{}, err
	}
	var cert *lot.Certificate
	for i := range current.Certificates {
		if current.Certificates[i].Name == name {
			cert = &current.Certificates[i]
			break
		}
	}
	if cert == nil {
		return CertificateContent{}, fmt.Errorf("%w: certificate %q", ports.ErrBlobNotFound, name)
	}

	url, err := s.blobs.PresignURL(ctx, cert.Key, 15*time.Minute)
	if err == nil {
		return CertificateContent{Info: ports.BlobInfo{Key: cert.Key, ContentType: cert.ContentType, Size: cert.Size}, URL: url}, nil
	}
	if !errors.Is(err, ports.ErrBlobUnsupported) {
		return CertificateContent{}, err
	}

	info, body, err := s.blobs.Get(ctx, cert.Key)
	if err != nil {
		return CertificateContent{}, err
	}
	return CertificateContent{Info: info, Body: body}, nil
}

func cleanCertificateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", fieldError("name", "is required")
	case len(name) > maxCertificateName:
		return "", fieldError("name", "is too long")
	case strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.HasSuffix(name, ".meta"):
		return "", fieldError("name", "must be a plain file name")
	}
	return name, nil
}
