package upload

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
)

// Document types accepted by the registration flow.
const (
	TypeKTPPhoto        = "ktp_photo"
	TypeSelfieWithKTP   = "selfie_with_ktp"
	TypeNPWPPhoto       = "npwp_photo"
	TypeBankStatement   = "bank_statement"
	TypeLandCertificate = "land_certificate"
	TypeBusinessLicense = "business_license"
)

// RequiredTypes are the documents a registration cannot proceed without.
var RequiredTypes = []string{TypeKTPPhoto, TypeSelfieWithKTP}

// OptionalTypes are accepted but not required.
var OptionalTypes = []string{TypeNPWPPhoto, TypeBankStatement, TypeLandCertificate, TypeBusinessLicense}

// ErrMissingRequiredDocuments is returned before any network call when a
// mandatory document type has no file attached.
var ErrMissingRequiredDocuments = errors.New("missing required documents")

// ErrUnknownDocumentType is returned for a document type outside the
// accepted set.
var ErrUnknownDocumentType = errors.New("unknown document type")

// File is one document to upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Presigner issues upload URLs for a batch of document types.
type Presigner interface {
	PresignDocuments(ctx context.Context, documentTypes []string) ([]backend.PresignedURL, error)
}

// Putter performs the raw upload to a presigned URL.
type Putter interface {
	PutBytes(ctx context.Context, rawURL, contentType string, body []byte) error
}

// Orchestrator drives the presign-then-upload flow for farmer documents.
type Orchestrator struct {
	presigner Presigner
	putter    Putter
	log       *zap.Logger
}

// NewOrchestrator wires the upload flow.
func NewOrchestrator(presigner Presigner, putter Putter, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{presigner: presigner, putter: putter, log: log}
}

// Validate checks that every mandatory document type has a file and that no
// unknown types are present. It performs no network calls.
func Validate(files map[string]File) error {
	known := make(map[string]struct{}, len(RequiredTypes)+len(OptionalTypes))
	for _, t := range RequiredTypes {
		known[t] = struct{}{}
	}
	for _, t := range OptionalTypes {
		known[t] = struct{}{}
	}
	for docType := range files {
		if _, ok := known[docType]; !ok {
			return errors.Wrap(ErrUnknownDocumentType, docType)
		}
	}

	var missing []string
	for _, t := range RequiredTypes {
		if f, ok := files[t]; !ok || len(f.Data) == 0 {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Wrap(ErrMissingRequiredDocuments, strings.Join(missing, ", "))
	}
	return nil
}

// UploadAll validates the file set, requests presigned URLs for the whole
// batch, then uploads each file independently. A failed mandatory upload
// fails the batch; optional documents that fail to land are dropped from
// the result so the registration can proceed without them.
func (o *Orchestrator) UploadAll(ctx context.Context, files map[string]File) ([]backend.UploadedDocument, error) {
	if err := Validate(files); err != nil {
		return nil, err
	}

	docTypes := make([]string, 0, len(files))
	for docType := range files {
		docTypes = append(docTypes, docType)
	}
	sort.Strings(docTypes)

	urls, err := o.presigner.PresignDocuments(ctx, docTypes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to presign document uploads")
	}
	byType := make(map[string]backend.PresignedURL, len(urls))
	for _, u := range urls {
		byType[u.DocumentType] = u
	}
	for _, docType := range docTypes {
		if _, ok := byType[docType]; !ok {
			return nil, errors.Errorf("no upload url issued for %s", docType)
		}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []backend.UploadedDocument
		failed  = make(map[string]error)
	)
	for _, docType := range docTypes {
		docType := docType
		file := files[docType]
		target := byType[docType]

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.putter.PutBytes(ctx, target.UploadURL, file.ContentType, file.Data); err != nil {
				mu.Lock()
				failed[docType] = err
				mu.Unlock()
				return
			}
			o.log.Debug("document uploaded",
				zap.String("document_type", docType),
				zap.String("file_key", target.FileKey),
				zap.Int("size", len(file.Data)))
			mu.Lock()
			results = append(results, backend.UploadedDocument{
				DocumentType: docType,
				FileKey:      target.FileKey,
				FileName:     file.Name,
				FileSize:     int64(len(file.Data)),
				MimeType:     file.ContentType,
			})
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, t := range RequiredTypes {
		if err, ok := failed[t]; ok {
			return nil, errors.Wrapf(ErrMissingRequiredDocuments, "upload of %s failed: %v", t, err)
		}
	}
	for docType, err := range failed {
		o.log.Warn("optional document dropped after failed upload",
			zap.String("document_type", docType),
			zap.Error(err))
	}
	sort.Slice(results, func(i, k int) bool {
		return results[i].DocumentType < results[k].DocumentType
	})
	return results, nil
}
