package details

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"srms_backend/internals/features/certificates/ledger"
	recordController "srms_backend/internals/features/certificates/records/controller"
	"srms_backend/internals/features/certificates/records/repository"
	recordRoute "srms_backend/internals/features/certificates/records/route"
	recordService "srms_backend/internals/features/certificates/records/service"
	"srms_backend/internals/helpers/blob"
)

type CertificateOptions struct {
	PublicBaseURL string
	LedgerTimeout time.Duration
	MaxFileBytes  int64
}

// CertificateRoutes wires issuance, verification and file access over one
// record store, blob store and ledger.
func CertificateRoutes(api fiber.Router, store *repository.RecordStore, blobs blob.Store, l ledger.Ledger, opts CertificateOptions, protect fiber.Handler) {
	issuer := recordService.NewIssuanceService(store, blobs, l, recordService.IssuanceOptions{
		LedgerTimeout: opts.LedgerTimeout,
		PublicBaseURL: opts.PublicBaseURL,
	})
	verifier := recordService.NewVerificationService(store, l, opts.PublicBaseURL, opts.LedgerTimeout)

	rc := recordController.NewRecordController(issuer, verifier, store, opts.PublicBaseURL, opts.MaxFileBytes)
	fc := recordController.NewFileController(recordService.NewFileService(store, blobs))
	recordRoute.RecordRoutes(api, rc, fc, protect)
}
